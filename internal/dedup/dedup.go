// Package dedup gates ingestion on content fingerprints. Registration is
// the insertion of pending rows, so the store's uniqueness constraints are
// the final arbiter between racing writers.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/plasmarag/plasmarag/internal/paper"
	"github.com/plasmarag/plasmarag/internal/storage"
)

// Policy decides what happens when a live paper already has the title hash.
type Policy string

const (
	// PolicyReject treats every title collision as a duplicate.
	PolicyReject Policy = "reject"

	// PolicyReplace accepts a collision from different source bytes and
	// supersedes the existing paper.
	PolicyReplace Policy = "replace"
)

// Reason explains a duplicate.
type Reason string

const (
	ReasonSameSource Reason = "identical source file"
	ReasonSameTitle  Reason = "title already ingested"
)

// DuplicateError reports the live paper a candidate collides with. Status
// is pending when the existing paper is an unfinished earlier attempt.
type DuplicateError struct {
	ExistingID string
	Title      string
	Reason     Reason
	Status     paper.Status
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate of paper %s (%s): %s", e.ExistingID, e.Title, e.Reason)
}

// IsDuplicate reports whether err is a *DuplicateError.
func IsDuplicate(err error) bool {
	var d *DuplicateError
	return errors.As(err, &d)
}

// Store is the subset of the metadata store used for dedup.
type Store interface {
	FindLiveByTitleHash(ctx context.Context, titleHash string) (*paper.Paper, error)
	FindLiveBySourceHash(ctx context.Context, sourceHash string) (*paper.Paper, error)
	InsertPending(ctx context.Context, p *paper.Paper, supersedes string) error
}

// Result is the outcome of a dedup check.
type Result struct {
	Accepted    bool
	DuplicateOf string // set when rejected
	Supersedes  string // set when accepted under PolicyReplace
}

// Service checks and registers papers against the store.
type Service struct {
	store  Store
	policy Policy
}

// New creates a Service. An unknown policy behaves as PolicyReject.
func New(store Store, policy Policy) *Service {
	if policy != PolicyReplace {
		policy = PolicyReject
	}
	return &Service{store: store, policy: policy}
}

// Policy returns the active duplicate policy.
func (s *Service) Policy() Policy {
	return s.policy
}

// CheckSource rejects source bytes that are already live, under any policy.
func (s *Service) CheckSource(ctx context.Context, sourceHash string) error {
	if sourceHash == "" {
		return nil
	}
	existing, err := s.store.FindLiveBySourceHash(ctx, sourceHash)
	if err != nil {
		return fmt.Errorf("looking up source hash: %w", err)
	}
	if existing != nil {
		return &DuplicateError{ExistingID: existing.ID, Title: existing.Title, Reason: ReasonSameSource, Status: existing.Status}
	}
	return nil
}

// Check looks p up without registering it. A rejection returns both the
// Result and a *DuplicateError.
func (s *Service) Check(ctx context.Context, p *paper.Paper) (Result, error) {
	if err := s.CheckSource(ctx, p.SourceHash); err != nil {
		return rejected(err), err
	}

	existing, err := s.store.FindLiveByTitleHash(ctx, p.TitleHash)
	if err != nil {
		return Result{}, fmt.Errorf("looking up title hash: %w", err)
	}
	if existing == nil {
		return Result{Accepted: true}, nil
	}

	if s.policy == PolicyReplace && p.SourceHash != "" && p.SourceHash != existing.SourceHash {
		return Result{Accepted: true, Supersedes: existing.ID}, nil
	}
	dup := &DuplicateError{ExistingID: existing.ID, Title: existing.Title, Reason: ReasonSameTitle, Status: existing.Status}
	return rejected(dup), dup
}

// CheckAndRegister checks p and, if accepted, inserts it with its children
// as pending rows. Repeated formulas inside p are dropped first.
func (s *Service) CheckAndRegister(ctx context.Context, p *paper.Paper) (Result, error) {
	p.ForceModels = UniqueForces(p.ForceModels)

	res, err := s.Check(ctx, p)
	if err != nil {
		return res, err
	}

	if err := s.store.InsertPending(ctx, p, res.Supersedes); err != nil {
		if !errors.Is(err, storage.ErrDuplicateTitle) {
			return Result{}, err
		}
		// Lost a race with another writer; report the winner.
		dup := &DuplicateError{Reason: ReasonSameTitle, Title: p.Title}
		if existing, lookupErr := s.store.FindLiveByTitleHash(ctx, p.TitleHash); lookupErr == nil && existing != nil {
			dup.ExistingID = existing.ID
			dup.Status = existing.Status
		}
		return rejected(dup), dup
	}
	return res, nil
}

func rejected(err error) Result {
	var d *DuplicateError
	if errors.As(err, &d) {
		return Result{DuplicateOf: d.ExistingID}
	}
	return Result{}
}

// UniqueForces drops force models whose formula hash repeats an earlier one.
func UniqueForces(forces []paper.ForceModel) []paper.ForceModel {
	if len(forces) < 2 {
		return forces
	}
	seen := make(map[string]bool, len(forces))
	out := forces[:0:0]
	for _, f := range forces {
		if seen[f.FormulaHash] {
			continue
		}
		seen[f.FormulaHash] = true
		out = append(out, f)
	}
	return out
}
