package report

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTopN indicates a non-positive number of configurations was requested.
var ErrInvalidTopN = errors.New("number of top models must be positive")

// MissingMetricError indicates the requested scoring key has no rank, mean
// test or mean train column in the search results, i.e. the search was not
// configured with that metric.
type MissingMetricError struct {
	ScoringKey string
	Column     string
	Available  []string
}

func (e *MissingMetricError) Error() string {
	msg := fmt.Sprintf("scoring key %q not found: results have no column %q", e.ScoringKey, e.Column)
	if len(e.Available) > 0 {
		msg += fmt.Sprintf(" (configured: %s)", strings.Join(e.Available, ", "))
	}
	return msg
}

// MissingColumnError indicates a requested column is absent from the results.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not found in search results", e.Column)
}
