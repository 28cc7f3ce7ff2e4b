package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultOllamaURL is the default Ollama API endpoint.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultOllamaModel is the default local embedding model.
	DefaultOllamaModel = "nomic-embed-text"

	// DefaultOllamaDimensions is the output width of nomic-embed-text.
	DefaultOllamaDimensions = 768

	// DefaultTimeout is the timeout for embedding requests.
	DefaultTimeout = 30 * time.Second

	apiPathTags  = "/api/tags"
	apiPathEmbed = "/api/embed"

	// maxErrorBody caps how much of a failed response ends up in an error.
	maxErrorBody = 4 << 10
)

// OllamaProvider embeds text with a local Ollama server, for knowledge bases
// that keep embeddings off the hosted model service.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithBaseURL sets the Ollama API base URL.
func WithBaseURL(url string) OllamaOption {
	return func(p *OllamaProvider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel sets the embedding model.
func WithModel(model string) OllamaOption {
	return func(p *OllamaProvider) {
		p.model = model
	}
}

// WithDimensions sets the expected vector width.
func WithDimensions(dims int) OllamaOption {
	return func(p *OllamaProvider) {
		p.dimensions = dims
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) OllamaOption {
	return func(p *OllamaProvider) {
		if timeout > 0 {
			p.client.Timeout = timeout
		}
	}
}

// NewOllamaProvider creates an Ollama embedding provider.
func NewOllamaProvider(opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		baseURL:    DefaultOllamaURL,
		model:      DefaultOllamaModel,
		dimensions: DefaultOllamaDimensions,
		client:     &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OllamaProvider) ModelName() string { return p.model }
func (p *OllamaProvider) Dimensions() int   { return p.dimensions }

// Embed embeds one text. Inputs longer than the model context are truncated
// by the server.
func (p *OllamaProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	req := ollamaEmbedRequest{
		Model:    p.model,
		Input:    []string{Sanitize(text)},
		Truncate: true,
	}
	var resp ollamaEmbedResponse
	if err := p.call(ctx, http.MethodPost, apiPathEmbed, req, &resp); err != nil {
		return Embedding{}, err
	}
	if len(resp.Embeddings) != 1 {
		return Embedding{}, fmt.Errorf("ollama returned %d embeddings for one input", len(resp.Embeddings))
	}

	emb := Embedding{Vector: resp.Embeddings[0]}
	if err := checkDimensions(emb, p.dimensions); err != nil {
		return Embedding{}, err
	}
	return emb, nil
}

// IsAvailable reports an error unless the Ollama server answers.
func (p *OllamaProvider) IsAvailable(ctx context.Context) error {
	if _, err := p.models(ctx); err != nil {
		return fmt.Errorf("ollama is not running: %w", err)
	}
	return nil
}

// HasModel reports whether the configured model has been pulled. Untagged
// names match their ":latest" tag.
func (p *OllamaProvider) HasModel(ctx context.Context) (bool, error) {
	names, err := p.models(ctx)
	if err != nil {
		return false, fmt.Errorf("checking models: %w", err)
	}
	want := withDefaultTag(p.model)
	for _, name := range names {
		if withDefaultTag(name) == want {
			return true, nil
		}
	}
	return false, nil
}

func (p *OllamaProvider) models(ctx context.Context) ([]string, error) {
	var resp ollamaTagsResponse
	if err := p.call(ctx, http.MethodGet, apiPathTags, nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// call sends in as JSON (when non-nil) and decodes a 200 response into out.
func (p *OllamaProvider) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama %s: status %d: %s", path, resp.StatusCode, errorMessage(resp.Body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// errorMessage extracts the "error" field Ollama sends on failures, falling
// back to the trimmed raw body.
func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return fmt.Sprintf("(unreadable body: %v)", err)
	}
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}

func withDefaultTag(name string) string {
	if strings.Contains(name, ":") {
		return name
	}
	return name + ":latest"
}

type ollamaEmbedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}
