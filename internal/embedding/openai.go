package embedding

import (
	"context"
	"fmt"
)

const (
	// DefaultOpenAIModel is the DashScope embedding model.
	DefaultOpenAIModel = "text-embedding-v2"

	// DefaultOpenAIDimensions is the output width of text-embedding-v2.
	DefaultOpenAIDimensions = 1536
)

// Embedder is the slice of the model service client used for embeddings.
type Embedder interface {
	Embed(ctx context.Context, model string, dims int, inputs []string) ([][]float32, error)
}

// OpenAIProvider generates embeddings through an OpenAI-compatible service.
type OpenAIProvider struct {
	client     Embedder
	model      string
	dimensions int
	sendDims   bool
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIModel sets the embedding model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.model = model
	}
}

// WithOpenAIDimensions sets the expected vector width. When requestDims is
// true the width is also sent in the request, for models that support
// shortened embeddings.
func WithOpenAIDimensions(dims int, requestDims bool) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.dimensions = dims
		p.sendDims = requestDims
	}
}

// NewOpenAIProvider creates an embedding provider backed by client.
func NewOpenAIProvider(client Embedder, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		client:     client,
		model:      DefaultOpenAIModel,
		dimensions: DefaultOpenAIDimensions,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Embed generates an embedding for the given text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	dims := 0
	if p.sendDims {
		dims = p.dimensions
	}

	vecs, err := p.client.Embed(ctx, p.model, dims, []string{Sanitize(text)})
	if err != nil {
		return Embedding{}, fmt.Errorf("embedding with %s: %w", p.model, err)
	}
	if len(vecs) != 1 {
		return Embedding{}, fmt.Errorf("embedding with %s: got %d vectors, want 1", p.model, len(vecs))
	}
	emb := Embedding{Vector: vecs[0]}
	if err := checkDimensions(emb, p.dimensions); err != nil {
		return Embedding{}, err
	}
	return emb, nil
}

// ModelName returns the name of the embedding model.
func (p *OpenAIProvider) ModelName() string {
	return p.model
}

// Dimensions returns the expected vector dimensions.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}
