package retrieval

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/plasmarag/plasmarag/internal/embedding"
	"github.com/plasmarag/plasmarag/internal/paper"
	"github.com/plasmarag/plasmarag/internal/storage"
	"github.com/plasmarag/plasmarag/internal/vindex"
)

// mapEmbedder returns fixed vectors per text.
type mapEmbedder struct {
	vecs  map[string][]float32
	calls int
}

func (m *mapEmbedder) Embed(ctx context.Context, text string) (embedding.Embedding, error) {
	m.calls++
	v, ok := m.vecs[text]
	if !ok {
		return embedding.Embedding{}, errors.New("no vector for " + text)
	}
	return embedding.Embedding{Vector: v}, nil
}

func (m *mapEmbedder) ModelName() string { return "fixed" }
func (m *mapEmbedder) Dimensions() int   { return 3 }

type fixture struct {
	db  *storage.DB
	set *vindex.Set
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.OpenDB(filepath.Join(dir, "knowledge.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	set, err := vindex.OpenSet(filepath.Join(dir, "index"), "fixed", 3)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{db: db, set: set}
}

// add stores a paper with one force model and indexes both vectors.
func (f *fixture) add(t *testing.T, id, title string, vec []float32, status paper.Status) {
	t.Helper()
	ctx := context.Background()
	p := &paper.Paper{
		ID:         id,
		Title:      title,
		TitleHash:  "th-" + id,
		SourceHash: "src-" + id,
		ForceModels: []paper.ForceModel{
			{ID: id + "-f", Name: "Yukawa", Formula: "V=e^{-r}/r", FormulaHash: "fh"},
		},
	}
	if err := f.db.InsertPending(ctx, p, ""); err != nil {
		t.Fatal(err)
	}
	switch status {
	case paper.StatusActive:
		if err := f.db.Activate(ctx, id); err != nil {
			t.Fatal(err)
		}
	case paper.StatusRetracted:
		if err := f.db.Retract(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.set.Papers().Add(id, vec); err != nil {
		t.Fatal(err)
	}
	if _, err := f.set.Forces().Add(id+"-f", vec); err != nil {
		t.Fatal(err)
	}
}

func TestSearch_ExactMatchRanksFirst(t *testing.T) {
	f := newFixture(t)
	f.add(t, "a", "Chain Formation in Complex Plasma", []float32{1, 0, 0}, paper.StatusActive)
	f.add(t, "b", "Plasma Crystal Melting", []float32{0, 1, 0}, paper.StatusActive)
	f.add(t, "c", "Dust Acoustic Waves", []float32{0.7, 0.7, 0}, paper.StatusActive)

	emb := &mapEmbedder{vecs: map[string][]float32{"melting": {0, 1, 0}}}
	svc, err := FromSet(emb, f.set, f.db)
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.Search(context.Background(), "melting", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if emb.calls != 1 {
		t.Errorf("query embedded %d times, want 1", emb.calls)
	}
	if len(res.Papers) != 2 || res.Papers[0].Paper.ID != "b" || res.Papers[0].Distance != 0 {
		t.Fatalf("Papers = %+v, want b first at distance 0", res.Papers)
	}
	if res.Papers[1].Paper.ID != "c" {
		t.Errorf("Papers[1] = %s, want c", res.Papers[1].Paper.ID)
	}
	if len(res.Forces) != 2 || res.Forces[0].ForceModel.ID != "b-f" {
		t.Errorf("Forces = %+v, want b-f first", res.Forces)
	}
	if len(res.Papers[0].Paper.ForceModels) != 1 {
		t.Error("paper hits should carry their force models")
	}
}

func TestSearch_MasksInactiveAndOrphans(t *testing.T) {
	f := newFixture(t)
	f.add(t, "retracted", "Old", []float32{1, 0, 0}, paper.StatusRetracted)
	f.add(t, "pending", "In flight", []float32{0.99, 0.01, 0}, paper.StatusPending)
	if _, err := f.set.Papers().Add("orphan", []float32{0.98, 0.02, 0}); err != nil {
		t.Fatal(err)
	}
	f.add(t, "live", "Live", []float32{0, 0, 1}, paper.StatusActive)

	svc := New(&mapEmbedder{vecs: map[string][]float32{"q": {1, 0, 0}}}, f.set.Papers(), f.set.Forces(), f.db)
	res, err := svc.Search(context.Background(), "q", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(res.Papers) != 1 || res.Papers[0].Paper.ID != "live" {
		t.Errorf("Papers = %+v, want only live", res.Papers)
	}
	if len(res.Forces) != 1 || res.Forces[0].ForceModel.ID != "live-f" {
		t.Errorf("Forces = %+v, want only live-f", res.Forces)
	}
}

func TestSearch_FewerThanTopK(t *testing.T) {
	f := newFixture(t)
	f.add(t, "a", "A", []float32{1, 0, 0}, paper.StatusActive)

	svc := New(&mapEmbedder{vecs: map[string][]float32{"q": {0, 1, 0}}}, f.set.Papers(), f.set.Forces(), f.db)
	res, err := svc.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Papers) != 1 || len(res.Forces) != 1 {
		t.Errorf("got %d papers, %d forces; want 1, 1", len(res.Papers), len(res.Forces))
	}

	empty, err := svc.Search(context.Background(), "q", 0)
	if err != nil || len(empty.Papers) != 0 {
		t.Errorf("Search(topK=0) = %+v, %v", empty, err)
	}
}

func TestSearch_ScenarioC(t *testing.T) {
	f := newFixture(t)
	f.add(t, "chain", "Chain Formation in Complex Plasma", []float32{0.9, 0.1, 0}, paper.StatusActive)
	f.add(t, "crystal", "Plasma Crystal Melting", []float32{0, 0.2, 0.9}, paper.StatusActive)

	emb := &mapEmbedder{vecs: map[string][]float32{"chain structure formation": {1, 0, 0}}}
	svc := New(emb, f.set.Papers(), f.set.Forces(), f.db)

	res, err := svc.Search(context.Background(), "chain structure formation", 3)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, h := range res.Papers {
		if h.Paper.Title == "Chain Formation in Complex Plasma" {
			found = true
		}
	}
	if !found || res.Papers[0].Paper.ID != "chain" {
		t.Errorf("Papers = %+v, want the chain paper ranked first", res.Papers)
	}
}

func TestFromSet_RejectsMismatchedProvider(t *testing.T) {
	f := newFixture(t)
	_, err := FromSet(&wideEmbedder{}, f.set, f.db)
	if !errors.Is(err, vindex.ErrModelMismatch) {
		t.Errorf("FromSet() error = %v, want ErrModelMismatch", err)
	}
}

type wideEmbedder struct{ mapEmbedder }

func (w *wideEmbedder) Dimensions() int { return 1536 }

func TestSearch_EmbedError(t *testing.T) {
	f := newFixture(t)
	svc := New(&mapEmbedder{}, f.set.Papers(), f.set.Forces(), f.db)
	if _, err := svc.Search(context.Background(), "unknown", 3); err == nil {
		t.Error("Search() should fail when the query cannot be embedded")
	}
}
