package vindex

import (
	"fmt"
	"path/filepath"
)

// Index names.
const (
	Papers = "papers"
	Forces = "forces"
)

// Set holds the papers and forces indices. Both share one embedding space.
type Set struct {
	papers *Index
	forces *Index
}

// Stats summarizes a Set.
type Stats struct {
	ModelName  string `json:"model_name"`
	Dimensions int    `json:"dimensions"`
	Papers     int    `json:"papers"`
	Forces     int    `json:"forces"`
}

// OpenSet opens (or creates) both indices under dir.
func OpenSet(dir, modelName string, dimensions int) (*Set, error) {
	papers, err := Open(filepath.Join(dir, Papers+".idx"), Papers, modelName, dimensions)
	if err != nil {
		return nil, err
	}
	forces, err := Open(filepath.Join(dir, Forces+".idx"), Forces, modelName, dimensions)
	if err != nil {
		return nil, err
	}
	return &Set{papers: papers, forces: forces}, nil
}

// Refresh reloads either index whose file changed on disk.
func (s *Set) Refresh() error {
	if err := s.papers.Refresh(); err != nil {
		return err
	}
	return s.forces.Refresh()
}

// Papers returns the index of paper vectors.
func (s *Set) Papers() *Index { return s.papers }

// Forces returns the index of force model vectors.
func (s *Set) Forces() *Index { return s.forces }

// Get returns the index with the given name.
func (s *Set) Get(name string) (*Index, error) {
	switch name {
	case Papers:
		return s.papers, nil
	case Forces:
		return s.forces, nil
	default:
		return nil, fmt.Errorf("unknown index %q", name)
	}
}

// ModelName returns the embedding model shared by both indices.
func (s *Set) ModelName() string { return s.papers.ModelName() }

// Dimensions returns the vector width shared by both indices.
func (s *Set) Dimensions() int { return s.papers.Dimensions() }

// CheckProvider verifies that an embedding provider produces vectors in the
// same space as the indices.
func (s *Set) CheckProvider(modelName string, dimensions int) error {
	if modelName != s.ModelName() || dimensions != s.Dimensions() {
		return fmt.Errorf("%w: indices use %s/%d, provider is %s/%d",
			ErrModelMismatch, s.ModelName(), s.Dimensions(), modelName, dimensions)
	}
	return nil
}

// Stats returns entry counts.
func (s *Set) Stats() Stats {
	return Stats{
		ModelName:  s.ModelName(),
		Dimensions: s.Dimensions(),
		Papers:     s.papers.Len(),
		Forces:     s.forces.Len(),
	}
}
