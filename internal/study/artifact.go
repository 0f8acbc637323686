package study

import "time"

// Artifact kinds recorded by the pipeline commands.
const (
	KindDataset = "dataset"
	KindTable   = "table"
	KindModel   = "model"
	KindSummary = "summary"
)

// Artifact is one file a command produced.
type Artifact struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	Bytes       int64     `json:"bytes"`
	CreatedAt   time.Time `json:"created_at"`
}
