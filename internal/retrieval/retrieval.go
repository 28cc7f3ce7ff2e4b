// Package retrieval answers similarity queries against both vector indices
// and resolves hits to active records in the metadata store.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plasmarag/plasmarag/internal/embedding"
	"github.com/plasmarag/plasmarag/internal/logger"
	"github.com/plasmarag/plasmarag/internal/paper"
	"github.com/plasmarag/plasmarag/internal/vindex"
)

// Store resolves index ids to records.
type Store interface {
	GetPaper(ctx context.Context, id string) (*paper.Paper, error)
	GetForceModel(ctx context.Context, id string) (*paper.ForceModel, error)
}

// Searcher is one vector index.
type Searcher interface {
	Search(query []float32, k int) ([]vindex.Hit, error)
}

// PaperHit is a resolved paper result.
type PaperHit struct {
	Paper    *paper.Paper `json:"paper"`
	Distance float32      `json:"distance"`
}

// ForceHit is a resolved force model result.
type ForceHit struct {
	ForceModel *paper.ForceModel `json:"force_model"`
	Distance   float32           `json:"distance"`
}

// Results holds the two independent rankings.
type Results struct {
	Papers []PaperHit `json:"papers"`
	Forces []ForceHit `json:"forces"`
}

// Service runs similarity search. It takes no writer locks; a paper being
// committed becomes visible once it is flipped to active.
type Service struct {
	embedder embedding.Provider
	papers   Searcher
	forces   Searcher
	store    Store
	log      *zap.Logger
}

// New creates a Service over explicit indices.
func New(embedder embedding.Provider, papers, forces Searcher, store Store) *Service {
	return &Service{
		embedder: embedder,
		papers:   papers,
		forces:   forces,
		store:    store,
		log:      logger.Named("retrieval"),
	}
}

// FromSet creates a Service over an index set, refusing an embedder whose
// model or width differs from the one the indices were built with.
func FromSet(embedder embedding.Provider, set *vindex.Set, store Store) (*Service, error) {
	if err := set.CheckProvider(embedder.ModelName(), embedder.Dimensions()); err != nil {
		return nil, err
	}
	return New(embedder, set.Papers(), set.Forces(), store), nil
}

// Search embeds query once and returns up to topK active papers and topK
// active force models, each ranked by ascending distance.
func (s *Service) Search(ctx context.Context, query string, topK int) (*Results, error) {
	res := &Results{}
	if topK <= 0 {
		return res, nil
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := s.searchPapers(gctx, emb.Vector, topK)
		res.Papers = hits
		return err
	})
	g.Go(func() error {
		hits, err := s.searchForces(gctx, emb.Vector, topK)
		res.Forces = hits
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) searchPapers(ctx context.Context, vec []float32, topK int) ([]PaperHit, error) {
	cache := make(map[string]*paper.Paper)
	var out []PaperHit
	err := overfetch(s.papers, vec, topK, func(hits []vindex.Hit) (int, error) {
		out = out[:0]
		for _, h := range hits {
			p, ok := cache[h.ID]
			if !ok {
				var err error
				if p, err = s.store.GetPaper(ctx, h.ID); err != nil {
					return 0, fmt.Errorf("resolving paper %s: %w", h.ID, err)
				}
				cache[h.ID] = p
			}
			if p == nil || p.Status != paper.StatusActive {
				continue
			}
			out = append(out, PaperHit{Paper: p, Distance: h.Distance})
			if len(out) == topK {
				break
			}
		}
		return len(out), nil
	})
	return out, err
}

func (s *Service) searchForces(ctx context.Context, vec []float32, topK int) ([]ForceHit, error) {
	cache := make(map[string]*paper.ForceModel)
	var out []ForceHit
	err := overfetch(s.forces, vec, topK, func(hits []vindex.Hit) (int, error) {
		out = out[:0]
		for _, h := range hits {
			f, ok := cache[h.ID]
			if !ok {
				var err error
				if f, err = s.store.GetForceModel(ctx, h.ID); err != nil {
					return 0, fmt.Errorf("resolving force model %s: %w", h.ID, err)
				}
				cache[h.ID] = f
			}
			if f == nil || f.Status != paper.StatusActive {
				continue
			}
			out = append(out, ForceHit{ForceModel: f, Distance: h.Distance})
			if len(out) == topK {
				break
			}
		}
		return len(out), nil
	})
	return out, err
}

// overfetch searches with a growing k until resolve keeps topK results or
// the index has no more entries. resolve drops masked entries: pending,
// retracted, superseded or unknown ids.
func overfetch(idx Searcher, vec []float32, topK int, resolve func([]vindex.Hit) (int, error)) error {
	k := topK
	for {
		hits, err := idx.Search(vec, k)
		if err != nil {
			return err
		}
		kept, err := resolve(hits)
		if err != nil {
			return err
		}
		if kept >= topK || len(hits) < k {
			return nil
		}
		k *= 2
	}
}
