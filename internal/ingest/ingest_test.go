package ingest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/plasmarag/plasmarag/internal/dedup"
	"github.com/plasmarag/plasmarag/internal/embedding"
	"github.com/plasmarag/plasmarag/internal/extract"
	"github.com/plasmarag/plasmarag/internal/figure"
	"github.com/plasmarag/plasmarag/internal/llm"
	"github.com/plasmarag/plasmarag/internal/lock"
	"github.com/plasmarag/plasmarag/internal/paper"
	"github.com/plasmarag/plasmarag/internal/pdf"
	"github.com/plasmarag/plasmarag/internal/storage"
	"github.com/plasmarag/plasmarag/internal/vindex"
)

const testDims = 16

// wordEmbedder hashes words into buckets and normalizes, so texts sharing
// words land close together.
type wordEmbedder struct {
	calls atomic.Int32
	err   error
}

func (e *wordEmbedder) Embed(ctx context.Context, text string) (embedding.Embedding, error) {
	e.calls.Add(1)
	if e.err != nil {
		return embedding.Embedding{}, e.err
	}
	vec := make([]float32, testDims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(w, ".,:")))
		vec[h.Sum32()%testDims]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm > 0 {
		for i := range vec {
			vec[i] /= float32(math.Sqrt(norm))
		}
	}
	return embedding.Embedding{Vector: vec}, nil
}

func (e *wordEmbedder) ModelName() string { return "words" }
func (e *wordEmbedder) Dimensions() int   { return testDims }

// fakeParser serves the file contents as text and renders n blank pages.
type fakeParser struct {
	pages int
}

func (f *fakeParser) Parse(ctx context.Context, path string) (*pdf.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := &pdf.Document{Path: path, Text: string(data)}
	for i := 1; i <= f.pages; i++ {
		doc.Pages = append(doc.Pages, pdf.PageImage{Page: i, PNG: []byte{byte(i)}})
	}
	return doc, nil
}

// fakeExtractor maps the first line of the text to a record.
type fakeExtractor struct {
	records map[string]string
	calls   atomic.Int32
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) (*extract.Record, error) {
	f.calls.Add(1)
	key := strings.SplitN(text, "\n", 2)[0]
	raw, ok := f.records[key]
	if !ok {
		return nil, &extract.Error{Stage: extract.StageFormatting, Attempts: 3, Err: errors.New("unparsable")}
	}
	return extract.ParseRecord(raw)
}

// countingAnnotator records calls and returns captioned figures.
type countingAnnotator struct {
	calls atomic.Int32
}

func (a *countingAnnotator) Annotate(ctx context.Context, key string, pages []pdf.PageImage, p *paper.Paper) ([]paper.Figure, error) {
	a.calls.Add(1)
	var figs []paper.Figure
	for _, pg := range pages {
		figs = append(figs, paper.Figure{Page: pg.Page, ImagePath: key + "/x.png", Caption: "caption"})
	}
	return figs, nil
}

const chainRecord = `{
  "metadata": {"title": "Chain Formation in Complex Plasma", "journal": "Phys. Plasmas", "year": 2021, "doi": "", "innovations": ["wake-driven chains"]},
  "physics_context": {"environment": "RF argon discharge", "detailed_background": "Dust particles form vertical chains in the ion flow."},
  "observed_phenomena": ["chain structure formation"],
  "simulation_results_description": "",
  "keywords": ["chains", "ion wake"],
  "experiment_setup": "",
  "parameters": [{"category": "electrical", "name": "particle_charge", "symbol": "Q", "value": "1.2e4", "unit": "e", "meaning": "", "enriched_physics": "", "source": "stated"}],
  "force_fields": [{"name": "Yukawa potential", "formula": "\\phi(r) = \\frac{Q}{r} e^{-\\kappa r}", "physical_significance": "screened Coulomb, kappa=2", "computational_hint": ""}]
}`

const crystalRecord = `{
  "metadata": {"title": "Plasma Crystal Melting", "journal": "", "year": 2019, "doi": "", "innovations": []},
  "physics_context": {"environment": "", "detailed_background": "Melting of a 2D plasma crystal."},
  "observed_phenomena": ["melting"],
  "simulation_results_description": "",
  "keywords": [],
  "experiment_setup": "",
  "parameters": [{"category": "dimensionless", "name": "coupling", "symbol": "Gamma", "value": "170", "unit": "", "meaning": "", "enriched_physics": "", "source": "stated"}],
  "force_fields": []
}`

type env struct {
	db        *storage.DB
	set       *vindex.Set
	embedder  *wordEmbedder
	extractor *fakeExtractor
	annotator *countingAnnotator
	dedup     *dedup.Service
	writer    *Writer
	pipeline  *Pipeline
	dir       string
}

func newEnv(t *testing.T, policy dedup.Policy) *env {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.OpenDB(filepath.Join(dir, "knowledge.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	set, err := vindex.OpenSet(filepath.Join(dir, "index"), "words", testDims)
	if err != nil {
		t.Fatal(err)
	}

	e := &env{
		db:       db,
		set:      set,
		embedder: &wordEmbedder{},
		extractor: &fakeExtractor{records: map[string]string{
			"chain":   chainRecord,
			"crystal": crystalRecord,
		}},
		annotator: &countingAnnotator{},
		dir:       dir,
	}
	e.dedup = dedup.New(db, policy)
	e.writer = e.newWriter(set.Papers(), set.Forces(), db)
	e.pipeline = NewPipeline(&fakeParser{pages: 2}, e.extractor, e.annotator, e.dedup, e.writer)
	return e
}

func (e *env) newWriter(papers, forces VectorIndex, store Store) *Writer {
	return NewWriter(WriterOptions{
		Store:    store,
		Dedup:    dedup.New(store, e.dedup.Policy()),
		Papers:   papers,
		Forces:   forces,
		Embedder: e.embedder,
		Locks:    lock.New(filepath.Join(e.dir, "locks")),
	})
}

func (e *env) writePDF(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIngestFile_ScenarioA(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)

	out, err := e.pipeline.IngestFile(ctx, e.writePDF(t, "a.pdf", "chain\nbody"))
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}

	stored, err := e.db.GetPaper(ctx, out.Paper.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetPaper() = %v, %v", stored, err)
	}
	if stored.Status != paper.StatusActive || stored.Title != "Chain Formation in Complex Plasma" {
		t.Errorf("stored = %s %q", stored.Status, stored.Title)
	}
	if stored.TitleHash == "" || len(stored.ForceModels) != 1 || stored.ForceModels[0].FormulaHash == "" {
		t.Errorf("hashes missing: %+v", stored)
	}
	if stored.ForceModels[0].Status != paper.StatusActive {
		t.Errorf("force model status = %s", stored.ForceModels[0].Status)
	}
	if len(stored.Figures) != 2 || out.Figures != 2 {
		t.Errorf("figures = %d", len(stored.Figures))
	}

	stats := e.set.Stats()
	if stats.Papers != 1 || stats.Forces != 1 {
		t.Errorf("index sizes = %d/%d, want 1/1", stats.Papers, stats.Forces)
	}
	if !e.set.Papers().Contains(out.Paper.ID) || !e.set.Forces().Contains(stored.ForceModels[0].ID) {
		t.Error("vectors not keyed by store ids")
	}
}

func TestIngestFile_ScenarioB_SameBytes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)
	path := e.writePDF(t, "a.pdf", "chain\nbody")

	first, err := e.pipeline.IngestFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	embedCalls := e.embedder.calls.Load()

	_, err = e.pipeline.IngestFile(ctx, path)
	var dup *dedup.DuplicateError
	if !errors.As(err, &dup) || dup.ExistingID != first.Paper.ID {
		t.Fatalf("error = %v, want duplicate of %s", err, first.Paper.ID)
	}
	if e.extractor.calls.Load() != 1 {
		t.Errorf("extractor ran %d times, want 1", e.extractor.calls.Load())
	}
	if e.embedder.calls.Load() != embedCalls {
		t.Error("embeddings computed for a duplicate")
	}
	if stats := e.set.Stats(); stats.Papers != 1 || stats.Forces != 1 {
		t.Errorf("index sizes = %d/%d, want unchanged 1/1", stats.Papers, stats.Forces)
	}
	papers, _ := e.db.ListPapers(ctx, storage.ListOptions{})
	if len(papers) != 1 {
		t.Errorf("stored papers = %d, want 1", len(papers))
	}
}

func TestIngestFile_SameTitleDifferentBytes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)

	first, err := e.pipeline.IngestFile(ctx, e.writePDF(t, "a.pdf", "chain\nv1"))
	if err != nil {
		t.Fatal(err)
	}
	embedCalls := e.embedder.calls.Load()

	_, err = e.pipeline.IngestFile(ctx, e.writePDF(t, "b.pdf", "chain\nv2"))
	var dup *dedup.DuplicateError
	if !errors.As(err, &dup) || dup.ExistingID != first.Paper.ID || dup.Reason != dedup.ReasonSameTitle {
		t.Fatalf("error = %v, want title duplicate", err)
	}
	if e.annotator.calls.Load() != 1 {
		t.Errorf("annotator ran %d times, want 1", e.annotator.calls.Load())
	}
	if e.embedder.calls.Load() != embedCalls {
		t.Error("embeddings computed for a duplicate")
	}
}

func TestIngestFile_ReplacePolicy(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReplace)

	first, err := e.pipeline.IngestFile(ctx, e.writePDF(t, "a.pdf", "chain\nv1"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.pipeline.IngestFile(ctx, e.writePDF(t, "b.pdf", "chain\nv2"))
	if err != nil {
		t.Fatalf("IngestFile(updated) error = %v", err)
	}
	if second.Supersedes != first.Paper.ID {
		t.Errorf("Supersedes = %q, want %s", second.Supersedes, first.Paper.ID)
	}

	old, _ := e.db.GetPaper(ctx, first.Paper.ID)
	if old.Status != paper.StatusSuperseded || old.ForceModels[0].Status != paper.StatusSuperseded {
		t.Errorf("old = %s / %s, want superseded", old.Status, old.ForceModels[0].Status)
	}
	// Old vectors stay in place and are masked by status.
	if stats := e.set.Stats(); stats.Papers != 2 || stats.Forces != 2 {
		t.Errorf("index sizes = %d/%d, want 2/2", stats.Papers, stats.Forces)
	}
}

func TestIngestFile_ExtractionFailurePersistsNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)

	_, err := e.pipeline.IngestFile(ctx, e.writePDF(t, "bad.pdf", "garbage"))
	if extract.FailedStage(err) != extract.StageFormatting {
		t.Fatalf("error = %v, want formatting-stage extraction error", err)
	}
	stats, _ := e.db.Stats(ctx)
	if len(stats.Papers) != 0 || e.set.Stats().Papers != 0 {
		t.Errorf("something was persisted: %+v", stats)
	}
}

// flakyIndex fails Add while fail is set.
type flakyIndex struct {
	VectorIndex
	fail bool
}

func (f *flakyIndex) Add(id string, vec []float32) (bool, error) {
	if f.fail {
		return false, errors.New("disk full")
	}
	return f.VectorIndex.Add(id, vec)
}

func TestCommit_CrashBeforeAppendThenRecover(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)
	forces := &flakyIndex{VectorIndex: e.set.Forces(), fail: true}
	w := e.newWriter(e.set.Papers(), forces, e.db)

	rec, _ := extract.ParseRecord(chainRecord)
	p := rec.ToPaper()
	_, err := w.Commit(ctx, p)
	var werr *WriteError
	if !errors.As(err, &werr) || werr.Op != OpIndexAppend || !werr.Retryable() {
		t.Fatalf("Commit() error = %v, want retryable index-append failure", err)
	}

	stored, _ := e.db.GetPaper(ctx, p.ID)
	if stored.Status != paper.StatusPending {
		t.Fatalf("status = %s, want pending", stored.Status)
	}
	if active, _ := e.db.ListPapers(ctx, storage.ListOptions{}); len(active) != 0 {
		t.Error("pending paper visible to readers")
	}

	forces.fail = false
	report, err := w.Recover(ctx, RecoverOptions{})
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if report.Pending != 1 || len(report.Activated) != 1 || len(report.Failed) != 0 {
		t.Errorf("report = %+v", report)
	}
	// The paper vector was appended before the failure; only the force is new.
	if report.VectorsAppended != 1 {
		t.Errorf("VectorsAppended = %d, want 1", report.VectorsAppended)
	}
	stored, _ = e.db.GetPaper(ctx, p.ID)
	if stored.Status != paper.StatusActive {
		t.Errorf("status after recovery = %s", stored.Status)
	}
	if stats := e.set.Stats(); stats.Papers != 1 || stats.Forces != 1 {
		t.Errorf("index sizes = %d/%d, want 1/1", stats.Papers, stats.Forces)
	}
}

// failingActivate simulates a crash between index append and status flip.
type failingActivate struct {
	*storage.DB
	fail bool
}

func (f *failingActivate) Activate(ctx context.Context, id string) error {
	if f.fail {
		return errors.New("database is locked")
	}
	return f.DB.Activate(ctx, id)
}

func TestCommit_CrashBeforeActivateThenRecover(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)
	store := &failingActivate{DB: e.db, fail: true}
	w := e.newWriter(e.set.Papers(), e.set.Forces(), store)

	rec, _ := extract.ParseRecord(chainRecord)
	p := rec.ToPaper()
	_, err := w.Commit(ctx, p)
	var werr *WriteError
	if !errors.As(err, &werr) || werr.Op != OpStoreActivate {
		t.Fatalf("Commit() error = %v, want store-activate failure", err)
	}
	if stats := e.set.Stats(); stats.Papers != 1 || stats.Forces != 1 {
		t.Fatalf("vectors not appended before failure: %+v", stats)
	}

	store.fail = false
	report, err := w.Recover(ctx, RecoverOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if report.VectorsAppended != 0 || len(report.Activated) != 1 {
		t.Errorf("report = %+v, want activation without re-append", report)
	}
	if stats := e.set.Stats(); stats.Papers != 1 || stats.Forces != 1 {
		t.Errorf("index sizes = %d/%d after recovery, want 1/1", stats.Papers, stats.Forces)
	}
}

func TestCommit_EmbedFailure(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)
	e.embedder.err = llm.ErrRateLimited

	rec, _ := extract.ParseRecord(chainRecord)
	_, err := e.writer.Commit(ctx, rec.ToPaper())
	var werr *WriteError
	if !errors.As(err, &werr) || werr.Op != OpEmbed || !errors.Is(err, llm.ErrRateLimited) {
		t.Fatalf("Commit() error = %v, want embed failure", err)
	}
	if e.set.Stats().Papers != 0 {
		t.Error("vector appended despite embed failure")
	}
}

func TestRecover_Purge(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)
	e.embedder.err = errors.New("offline")

	rec, _ := extract.ParseRecord(chainRecord)
	p := rec.ToPaper()
	if _, err := e.writer.Commit(ctx, p); err == nil {
		t.Fatal("Commit() should fail while embeddings are offline")
	}

	report, err := e.writer.Recover(ctx, RecoverOptions{Purge: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Purged) != 1 || report.Purged[0] != p.ID {
		t.Errorf("report = %+v", report)
	}
	if got, _ := e.db.GetPaper(ctx, p.ID); got != nil {
		t.Error("purged paper still stored")
	}

	// The title is free again.
	e.embedder.err = nil
	if _, err := e.writer.Commit(ctx, rec.ToPaper()); err != nil {
		t.Errorf("Commit() after purge error = %v", err)
	}
}

func TestRecover_ReportsFailures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)
	e.embedder.err = errors.New("offline")

	rec, _ := extract.ParseRecord(chainRecord)
	p := rec.ToPaper()
	_, _ = e.writer.Commit(ctx, p)

	report, err := e.writer.Recover(ctx, RecoverOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := report.Failed[p.ID]; !ok || len(report.Activated) != 0 {
		t.Errorf("report = %+v, want failure for %s", report, p.ID)
	}
}

func TestCommit_ConcurrentSameTitle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)
	rec, _ := extract.ParseRecord(chainRecord)

	const writers = 4
	var wg sync.WaitGroup
	var accepted, duplicates atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := rec.ToPaper()
			p.SourceHash = string(rune('a' + i))
			_, err := e.writer.Commit(ctx, p)
			switch {
			case err == nil:
				accepted.Add(1)
			case dedup.IsDuplicate(err):
				duplicates.Add(1)
			default:
				t.Errorf("Commit() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if accepted.Load() != 1 || duplicates.Load() != writers-1 {
		t.Errorf("accepted = %d, duplicates = %d", accepted.Load(), duplicates.Load())
	}
	if e.set.Stats().Papers != 1 {
		t.Errorf("papers index size = %d, want 1", e.set.Stats().Papers)
	}
}

func TestCommit_SeparateHandlesKeepEachOthersVectors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)

	// A second process: its own store and index handles on the same files.
	db2, err := storage.OpenDB(filepath.Join(e.dir, "knowledge.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db2.Close() })
	set2, err := vindex.OpenSet(filepath.Join(e.dir, "index"), "words", testDims)
	if err != nil {
		t.Fatal(err)
	}
	other := NewWriter(WriterOptions{
		Store:    db2,
		Dedup:    dedup.New(db2, dedup.PolicyReject),
		Papers:   set2.Papers(),
		Forces:   set2.Forces(),
		Embedder: e.embedder,
		Locks:    lock.New(filepath.Join(e.dir, "locks")),
	})

	chain, _ := extract.ParseRecord(chainRecord)
	crystal, _ := extract.ParseRecord(crystalRecord)
	a, b := chain.ToPaper(), crystal.ToPaper()
	if _, err := e.writer.Commit(ctx, a); err != nil {
		t.Fatalf("Commit(a) error = %v", err)
	}
	if _, err := other.Commit(ctx, b); err != nil {
		t.Fatalf("Commit(b) error = %v", err)
	}

	onDisk, err := vindex.OpenSet(filepath.Join(e.dir, "index"), "words", testDims)
	if err != nil {
		t.Fatal(err)
	}
	if !onDisk.Papers().Contains(a.ID) || !onDisk.Papers().Contains(b.ID) {
		t.Errorf("papers index on disk: len=%d containsA=%v containsB=%v",
			onDisk.Papers().Len(), onDisk.Papers().Contains(a.ID), onDisk.Papers().Contains(b.ID))
	}
	if !onDisk.Forces().Contains(a.ForceModels[0].ID) {
		t.Error("forces index lost the first writer's vector")
	}

	// The first handle catches up on its next locked write.
	if _, err := e.writer.Recover(ctx, RecoverOptions{}); err != nil {
		t.Fatal(err)
	}
	if !e.set.Papers().Contains(b.ID) {
		t.Error("first handle did not pick up the other writer's vector")
	}
}

func TestIngestFile_RetryResumesPendingPaper(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)
	path := e.writePDF(t, "a.pdf", "chain\nbody")

	e.embedder.err = llm.ErrRateLimited
	_, err := e.pipeline.IngestFile(ctx, path)
	var werr *WriteError
	if !errors.As(err, &werr) || werr.Op != OpEmbed {
		t.Fatalf("IngestFile() error = %v, want embed failure", err)
	}

	e.embedder.err = nil
	out, err := e.pipeline.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("retry error = %v, want the pending paper completed", err)
	}
	if !out.Resumed || out.Paper.Status != paper.StatusActive {
		t.Errorf("outcome = resumed %v, status %s", out.Resumed, out.Paper.Status)
	}
	if e.extractor.calls.Load() != 1 {
		t.Errorf("extractor ran %d times, want 1", e.extractor.calls.Load())
	}

	stored, _ := e.db.GetPaper(ctx, out.Paper.ID)
	if stored == nil || stored.Status != paper.StatusActive {
		t.Fatalf("stored = %+v, want active", stored)
	}
	if stats := e.set.Stats(); stats.Papers != 1 || stats.Forces != 1 {
		t.Errorf("index sizes = %d/%d, want 1/1", stats.Papers, stats.Forces)
	}

	// Once active, the same bytes are a plain duplicate again.
	_, err = e.pipeline.IngestFile(ctx, path)
	var dup *dedup.DuplicateError
	if !errors.As(err, &dup) || dup.Status != paper.StatusActive {
		t.Errorf("third attempt error = %v, want duplicate of an active paper", err)
	}
}

func TestResume_GonePaper(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)

	p, err := e.writer.Resume(ctx, "missing")
	if err != nil || p != nil {
		t.Errorf("Resume(missing) = %v, %v; want nil, nil", p, err)
	}
}

// visionCompleter fails for one page.
type visionCompleter struct {
	failPage byte
}

func (v *visionCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	if req.Messages[0].Images[0].Data[0] == v.failPage {
		return "", errors.New("vision timeout")
	}
	return `{"caption": "Vertical chains", "linked_parameters": ["Q"]}`, nil
}

func TestIngestFile_CaptionFailureIsolated(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)
	annotator := figure.New(&visionCompleter{failPage: 4}, figure.Options{Dir: filepath.Join(e.dir, "figures"), Workers: 2})
	pl := NewPipeline(&fakeParser{pages: 5}, e.extractor, annotator, e.dedup, e.writer)

	out, err := pl.IngestFile(ctx, e.writePDF(t, "a.pdf", "chain\nbody"))
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	if out.Figures != 5 || out.CaptionFailures != 1 {
		t.Errorf("figures = %d, failures = %d", out.Figures, out.CaptionFailures)
	}

	stored, _ := e.db.GetPaper(ctx, out.Paper.ID)
	captioned := 0
	for _, f := range stored.Figures {
		if f.Caption != "" {
			captioned++
			if len(f.LinkedParameters) != 1 || f.LinkedParameters[0] != "particle_charge" {
				t.Errorf("page %d linked = %v", f.Page, f.LinkedParameters)
			}
		}
	}
	if len(stored.Figures) != 5 || captioned != 4 {
		t.Errorf("stored figures = %d, captioned = %d", len(stored.Figures), captioned)
	}
	if stored.Status != paper.StatusActive {
		t.Errorf("status = %s", stored.Status)
	}
}

func TestIngestAll(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dedup.PolicyReject)
	paths := []string{
		e.writePDF(t, "a.pdf", "chain\nbody"),
		e.writePDF(t, "b.pdf", "crystal\nbody"),
		e.writePDF(t, "c.pdf", "unknown"),
	}

	results, err := e.pipeline.IngestAll(ctx, paths, 2)
	if err != nil {
		t.Fatalf("IngestAll() error = %v", err)
	}
	for i, r := range results {
		if r.Path != paths[i] {
			t.Errorf("results[%d].Path = %s", i, r.Path)
		}
	}
	if results[0].Err != nil || results[1].Err != nil {
		t.Errorf("errors = %v, %v", results[0].Err, results[1].Err)
	}
	if !extract.IsExtractionError(results[2].Err) {
		t.Errorf("results[2].Err = %v, want extraction error", results[2].Err)
	}
	if e.set.Stats().Papers != 2 {
		t.Errorf("papers index size = %d, want 2", e.set.Stats().Papers)
	}
}
