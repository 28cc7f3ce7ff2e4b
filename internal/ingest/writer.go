package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/plasmarag/plasmarag/internal/dedup"
	"github.com/plasmarag/plasmarag/internal/embedding"
	"github.com/plasmarag/plasmarag/internal/lock"
	"github.com/plasmarag/plasmarag/internal/logger"
	"github.com/plasmarag/plasmarag/internal/paper"
)

// Named locks held by a writer.
const (
	LockMetadata    = "metadata"
	LockPapersIndex = "index-papers"
	LockForcesIndex = "index-forces"
)

// DefaultLockTimeout bounds how long a writer waits for its locks.
const DefaultLockTimeout = 10 * time.Second

// Store is the metadata store as seen by the writer.
type Store interface {
	dedup.Store
	GetPaper(ctx context.Context, id string) (*paper.Paper, error)
	Activate(ctx context.Context, paperID string) error
	ListPending(ctx context.Context) ([]string, error)
	DeletePending(ctx context.Context, paperID string) error
}

// VectorIndex is one append-only vector index. Refresh picks up entries
// other processes flushed since the index was opened.
type VectorIndex interface {
	Add(id string, vec []float32) (bool, error)
	Contains(id string) bool
	Refresh() error
}

// Locker hands out named locks.
type Locker interface {
	Acquire(ctx context.Context, names ...string) (lock.Release, error)
}

// WriterOptions wires a Writer's collaborators.
type WriterOptions struct {
	Store       Store
	Dedup       *dedup.Service
	Papers      VectorIndex
	Forces      VectorIndex
	Embedder    embedding.Provider
	Locks       Locker
	LockTimeout time.Duration
}

// Writer commits papers so that the store and both indices never diverge
// visibly: rows are inserted pending, vectors are appended and flushed,
// then rows are flipped to active.
type Writer struct {
	store       Store
	dedup       *dedup.Service
	papers      VectorIndex
	forces      VectorIndex
	embedder    embedding.Provider
	locks       Locker
	lockTimeout time.Duration
	log         *zap.Logger
}

// NewWriter creates a Writer.
func NewWriter(opts WriterOptions) *Writer {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Locks == nil {
		opts.Locks = lock.New("")
	}
	return &Writer{
		store:       opts.Store,
		dedup:       opts.Dedup,
		papers:      opts.Papers,
		forces:      opts.Forces,
		embedder:    opts.Embedder,
		locks:       opts.Locks,
		lockTimeout: opts.LockTimeout,
		log:         logger.Named("writer"),
	}
}

// Commit registers p through the dedup gate and makes it visible. A
// duplicate returns a *dedup.DuplicateError before any embedding work;
// other failures return a *WriteError.
func (w *Writer) Commit(ctx context.Context, p *paper.Paper) (dedup.Result, error) {
	release, err := w.acquire(ctx)
	if err != nil {
		return dedup.Result{}, err
	}
	defer release()

	res, err := w.dedup.CheckAndRegister(ctx, p)
	if err != nil {
		if dedup.IsDuplicate(err) {
			return res, err
		}
		return res, &WriteError{Op: OpStorePending, PaperID: p.ID, Err: err}
	}

	if _, err := w.complete(ctx, p); err != nil {
		return res, err
	}

	w.log.Info("paper committed",
		zap.String("id", p.ID),
		zap.String("title", p.Title),
		zap.Int("force_models", len(p.ForceModels)),
		zap.String("supersedes", res.Supersedes))
	return res, nil
}

// appendVectors embeds and appends every vector of p not already indexed.
// Returns the number of vectors appended.
func (w *Writer) appendVectors(ctx context.Context, p *paper.Paper) (int, error) {
	appended := 0
	add := func(idx VectorIndex, id, text string) error {
		if idx.Contains(id) {
			return nil
		}
		emb, err := w.embedder.Embed(ctx, text)
		if err != nil {
			return &WriteError{Op: OpEmbed, PaperID: p.ID, Err: err}
		}
		added, err := idx.Add(id, emb.Vector)
		if err != nil {
			return &WriteError{Op: OpIndexAppend, PaperID: p.ID, Err: err}
		}
		if added {
			appended++
		}
		return nil
	}

	if err := add(w.papers, p.ID, p.EmbeddingText()); err != nil {
		return appended, err
	}
	for i := range p.ForceModels {
		f := &p.ForceModels[i]
		if err := add(w.forces, f.ID, f.EmbeddingText()); err != nil {
			return appended, err
		}
	}
	return appended, nil
}

// acquire takes the writer locks and brings both indices up to date with
// their files.
func (w *Writer) acquire(ctx context.Context) (lock.Release, error) {
	lockCtx, cancel := context.WithTimeout(ctx, w.lockTimeout)
	defer cancel()

	release, err := w.locks.Acquire(lockCtx, LockMetadata, LockPapersIndex, LockForcesIndex)
	if err != nil {
		return nil, &WriteError{Op: OpLock, Err: err}
	}
	for _, idx := range []VectorIndex{w.papers, w.forces} {
		if err := idx.Refresh(); err != nil {
			release()
			return nil, &WriteError{Op: OpIndexRefresh, Err: err}
		}
	}
	return release, nil
}

// Resume completes one paper left pending by an earlier attempt. It returns
// the paper once active, or nil if it is no longer pending or active (purged
// or retracted meanwhile).
func (w *Writer) Resume(ctx context.Context, id string) (*paper.Paper, error) {
	release, err := w.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := w.store.GetPaper(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading pending paper: %w", err)
	}
	if p == nil || !p.Status.IsLive() {
		return nil, nil
	}
	if p.Status == paper.StatusActive {
		return p, nil
	}

	n, err := w.complete(ctx, p)
	if err != nil {
		return nil, err
	}
	w.log.Info("pending paper resumed", zap.String("id", id), zap.Int("vectors_appended", n))
	return p, nil
}

// complete appends the missing vectors of a pending paper and activates it.
func (w *Writer) complete(ctx context.Context, p *paper.Paper) (int, error) {
	n, err := w.appendVectors(ctx, p)
	if err != nil {
		return n, err
	}
	if err := w.store.Activate(ctx, p.ID); err != nil {
		return n, &WriteError{Op: OpStoreActivate, PaperID: p.ID, Err: err}
	}
	p.Status = paper.StatusActive
	for i := range p.ForceModels {
		p.ForceModels[i].Status = paper.StatusActive
	}
	return n, nil
}

// RecoverOptions controls a recovery pass.
type RecoverOptions struct {
	// Purge deletes pending papers instead of completing them.
	Purge bool
}

// RecoveryReport summarizes a recovery pass.
type RecoveryReport struct {
	Pending         int               `json:"pending"`
	Activated       []string          `json:"activated,omitempty"`
	Purged          []string          `json:"purged,omitempty"`
	VectorsAppended int               `json:"vectors_appended"`
	Failed          map[string]string `json:"failed,omitempty"`
}

// Recover completes papers left pending by interrupted writers: missing
// vectors are appended (ids already present are skipped) and rows are
// flipped to active. Per-paper failures are reported, not returned.
func (w *Writer) Recover(ctx context.Context, opts RecoverOptions) (*RecoveryReport, error) {
	release, err := w.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ids, err := w.store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending papers: %w", err)
	}

	report := &RecoveryReport{Pending: len(ids)}
	fail := func(id string, err error) {
		if report.Failed == nil {
			report.Failed = make(map[string]string)
		}
		report.Failed[id] = err.Error()
		w.log.Warn("recovery failed", zap.String("id", id), zap.Error(err))
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if opts.Purge {
			if err := w.store.DeletePending(ctx, id); err != nil {
				fail(id, err)
				continue
			}
			report.Purged = append(report.Purged, id)
			continue
		}

		p, err := w.store.GetPaper(ctx, id)
		if err != nil {
			fail(id, fmt.Errorf("loading pending paper: %w", err))
			continue
		}
		if p == nil {
			fail(id, fmt.Errorf("pending paper vanished"))
			continue
		}
		n, err := w.complete(ctx, p)
		report.VectorsAppended += n
		if err != nil {
			fail(id, err)
			continue
		}
		report.Activated = append(report.Activated, id)
	}

	if len(ids) > 0 {
		w.log.Info("recovery pass complete",
			zap.Int("pending", len(ids)),
			zap.Int("activated", len(report.Activated)),
			zap.Int("purged", len(report.Purged)),
			zap.Int("failed", len(report.Failed)))
	}
	return report, nil
}
