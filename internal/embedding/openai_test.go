package embedding

import (
	"context"
	"errors"
	"testing"
)

type fakeEmbedder struct {
	inputs []string
	dims   int
	vec    []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, model string, dims int, inputs []string) ([][]float32, error) {
	f.inputs = inputs
	f.dims = dims
	if f.err != nil {
		return nil, f.err
	}
	return [][]float32{f.vec}, nil
}

func TestOpenAIProvider_Defaults(t *testing.T) {
	p := NewOpenAIProvider(&fakeEmbedder{})
	if p.ModelName() != DefaultOpenAIModel {
		t.Errorf("ModelName() = %s, want %s", p.ModelName(), DefaultOpenAIModel)
	}
	if p.Dimensions() != DefaultOpenAIDimensions {
		t.Errorf("Dimensions() = %d, want %d", p.Dimensions(), DefaultOpenAIDimensions)
	}
}

func TestOpenAIProvider_Embed(t *testing.T) {
	fake := &fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	p := NewOpenAIProvider(fake, WithOpenAIModel("m"), WithOpenAIDimensions(3, false))

	emb, err := p.Embed(context.Background(), "line one\nline two")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if emb.Dimensions() != 3 {
		t.Errorf("Dimensions() = %d, want 3", emb.Dimensions())
	}
	if fake.inputs[0] != "line one line two" {
		t.Errorf("input = %q, want sanitized text", fake.inputs[0])
	}
	if fake.dims != 0 {
		t.Errorf("dims sent = %d, want 0 when not requested", fake.dims)
	}
}

func TestOpenAIProvider_EmptyInputUsesPlaceholder(t *testing.T) {
	fake := &fakeEmbedder{vec: []float32{1}}
	p := NewOpenAIProvider(fake, WithOpenAIDimensions(1, true))

	if _, err := p.Embed(context.Background(), ""); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if fake.inputs[0] != EmptyPlaceholder {
		t.Errorf("input = %q, want placeholder", fake.inputs[0])
	}
	if fake.dims != 1 {
		t.Errorf("dims sent = %d, want 1", fake.dims)
	}
}

func TestOpenAIProvider_DimensionMismatch(t *testing.T) {
	p := NewOpenAIProvider(&fakeEmbedder{vec: []float32{1, 2}}, WithOpenAIDimensions(3, false))
	if _, err := p.Embed(context.Background(), "x"); err == nil {
		t.Error("Embed() should reject a vector of the wrong width")
	}
}

func TestOpenAIProvider_PropagatesError(t *testing.T) {
	sentinel := errors.New("boom")
	p := NewOpenAIProvider(&fakeEmbedder{err: sentinel})
	if _, err := p.Embed(context.Background(), "x"); !errors.Is(err, sentinel) {
		t.Errorf("Embed() error = %v, want wrapped sentinel", err)
	}
}

func TestOpenAIProvider_ImplementsProvider(t *testing.T) {
	var _ Provider = (*OpenAIProvider)(nil)
}
