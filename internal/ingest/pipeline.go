// Package ingest orchestrates parsing, extraction, figure annotation and
// the consistency-preserving commit of a paper.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/plasmarag/plasmarag/internal/dedup"
	"github.com/plasmarag/plasmarag/internal/extract"
	"github.com/plasmarag/plasmarag/internal/fingerprint"
	"github.com/plasmarag/plasmarag/internal/logger"
	"github.com/plasmarag/plasmarag/internal/paper"
	"github.com/plasmarag/plasmarag/internal/pdf"
)

// Parser turns a PDF into text and page images.
type Parser interface {
	Parse(ctx context.Context, path string) (*pdf.Document, error)
}

// Extractor turns paper text into a validated record.
type Extractor interface {
	Extract(ctx context.Context, text string) (*extract.Record, error)
}

// Annotator stores and captions page images.
type Annotator interface {
	Annotate(ctx context.Context, key string, pages []pdf.PageImage, p *paper.Paper) ([]paper.Figure, error)
}

// Outcome describes a committed paper.
type Outcome struct {
	Paper           *paper.Paper `json:"paper"`
	Supersedes      string       `json:"supersedes,omitempty"`
	Figures         int          `json:"figures"`
	CaptionFailures int          `json:"caption_failures"`
	Resumed         bool         `json:"resumed,omitempty"` // completed a pending earlier attempt
}

// Pipeline runs one PDF from bytes to an active paper.
type Pipeline struct {
	parser    Parser
	extractor Extractor
	annotator Annotator // nil disables figures
	dedup     *dedup.Service
	writer    *Writer
	log       *zap.Logger
}

// NewPipeline creates a Pipeline. annotator may be nil.
func NewPipeline(parser Parser, extractor Extractor, annotator Annotator, dd *dedup.Service, writer *Writer) *Pipeline {
	return &Pipeline{
		parser:    parser,
		extractor: extractor,
		annotator: annotator,
		dedup:     dd,
		writer:    writer,
		log:       logger.Named("ingest"),
	}
}

// IngestFile ingests one PDF. Duplicates short-circuit before extraction
// when the bytes match and before annotation and embedding when the title
// matches; the returned error is then a *dedup.DuplicateError.
func (pl *Pipeline) IngestFile(ctx context.Context, path string) (*Outcome, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	sourceHash := fingerprint.SourceHash(data)

	if err := pl.dedup.CheckSource(ctx, sourceHash); err != nil {
		var dup *dedup.DuplicateError
		if !errors.As(err, &dup) || dup.Status != paper.StatusPending {
			return nil, err
		}
		// An earlier attempt on these bytes stopped after registration.
		p, err := pl.writer.Resume(ctx, dup.ExistingID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			pl.log.Info("ingested", zap.String("path", path), zap.String("id", p.ID), zap.Bool("resumed", true))
			return &Outcome{Paper: p, Figures: len(p.Figures), Resumed: true}, nil
		}
	}

	doc, err := pl.parser.Parse(ctx, abs)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	rec, err := pl.extractor.Extract(ctx, doc.Text)
	if err != nil {
		return nil, err
	}

	p := rec.ToPaper()
	p.SourcePath = abs
	p.SourceHash = sourceHash
	if p.DOI == "" {
		p.DOI = doc.DOI
	}

	if _, err := pl.dedup.Check(ctx, p); err != nil {
		return nil, err
	}

	out := &Outcome{Paper: p}
	if pl.annotator != nil && len(doc.Pages) > 0 {
		figures, err := pl.annotator.Annotate(ctx, paper.Key(p.TitleHash), doc.Pages, p)
		if err != nil {
			return nil, fmt.Errorf("annotating figures: %w", err)
		}
		p.Figures = figures
		out.Figures = len(figures)
		for _, f := range figures {
			if f.Caption == "" {
				out.CaptionFailures++
			}
		}
	}

	res, err := pl.writer.Commit(ctx, p)
	if err != nil {
		return nil, err
	}
	out.Supersedes = res.Supersedes

	pl.log.Info("ingested",
		zap.String("path", path),
		zap.String("id", p.ID),
		zap.Int("figures", out.Figures),
		zap.Int("caption_failures", out.CaptionFailures))
	return out, nil
}

// FileResult is the outcome of one file in a batch.
type FileResult struct {
	Path    string
	Outcome *Outcome
	Err     error
}

// IngestAll ingests paths on a bounded worker pool. Results keep the order
// of paths; one file's failure does not stop the others.
func (pl *Pipeline) IngestAll(ctx context.Context, paths []string, workers int) ([]FileResult, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v interface{}) {
		pl.log.Error("ingest worker panic", zap.Any("panic", v))
	}))
	if err != nil {
		return nil, fmt.Errorf("creating ingest pool: %w", err)
	}
	defer pool.Release()

	results := make([]FileResult, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		i, path := i, path
		results[i].Path = path
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results[i].Outcome, results[i].Err = pl.IngestFile(ctx, path)
		})
		if err != nil {
			wg.Done()
			results[i].Err = fmt.Errorf("scheduling: %w", err)
		}
	}
	wg.Wait()
	return results, ctx.Err()
}
