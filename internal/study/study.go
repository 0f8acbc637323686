// Package study keeps the manifest of a tuning study: the files each
// pipeline step wrote under an output directory.
package study

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/scoretune/internal/utils"
	"github.com/google/uuid"
)

const manifestFileName = "manifest.json"

// Study is a manifest persisted as manifest.json in its root directory.
type Study struct {
	Name      string               `json:"name"`
	Artifacts map[string]*Artifact `json:"artifacts"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`

	rootDir string
}

// New constructs an in-memory study rooted at dir. Call Save to persist.
func New(name, dir string) *Study {
	now := time.Now()
	return &Study{
		Name:      name,
		Artifacts: make(map[string]*Artifact),
		CreatedAt: now,
		UpdatedAt: now,
		rootDir:   dir,
	}
}

// Load reads the manifest from dir.
func Load(dir string) (*Study, error) {
	path := filepath.Join(dir, manifestFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("study not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var s Study
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if s.Artifacts == nil {
		s.Artifacts = make(map[string]*Artifact)
	}
	s.rootDir = dir
	return &s, nil
}

// Open loads the manifest in dir, or starts a new one named name when none
// exists yet.
func Open(name, dir string) (*Study, error) {
	s, err := Load(dir)
	if err == nil {
		return s, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return New(name, dir), nil
	}
	return nil, err
}

// RootDir returns the directory holding manifest.json.
func (s *Study) RootDir() string { return s.rootDir }

// Save writes manifest.json atomically.
func (s *Study) Save() error {
	if s.rootDir == "" {
		return errors.New("study root directory not set")
	}
	s.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(s)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(s.rootDir, manifestFileName), data)
}

// AddArtifact records a written file. Paths are stored relative to the study
// root when possible; recording the same path again replaces the entry.
func (s *Study) AddArtifact(path, kind, description string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("artifact %s is a directory", path)
	}
	rel := s.relPath(path)
	for id, a := range s.Artifacts {
		if a.Path == rel {
			delete(s.Artifacts, id)
		}
	}
	a := &Artifact{
		ID:          uuid.NewString(),
		Path:        rel,
		Kind:        kind,
		Description: description,
		Bytes:       info.Size(),
		CreatedAt:   info.ModTime(),
	}
	if s.Artifacts == nil {
		s.Artifacts = make(map[string]*Artifact)
	}
	s.Artifacts[a.ID] = a
	s.UpdatedAt = time.Now()
	return a, nil
}

// List returns the artifacts ordered by path, optionally filtered by kind.
func (s *Study) List(kind string) []*Artifact {
	out := make([]*Artifact, 0, len(s.Artifacts))
	for _, a := range s.Artifacts {
		if kind == "" || a.Kind == kind {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (s *Study) relPath(path string) string {
	if s.rootDir == "" {
		return filepath.ToSlash(path)
	}
	absRoot, err1 := filepath.Abs(s.rootDir)
	absPath, err2 := filepath.Abs(path)
	if err1 != nil || err2 != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(absPath)
	}
	return filepath.ToSlash(rel)
}
