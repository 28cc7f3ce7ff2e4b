// Package embedding provides vector embedding generation for text.
package embedding

import (
	"context"
	"fmt"
	"strings"
)

// Provider turns text into vectors. Every vector a Provider returns has
// exactly Dimensions() components; indices are tagged with ModelName() and
// Dimensions() and refuse vectors from any other provider.
type Provider interface {
	Embed(ctx context.Context, text string) (Embedding, error)
	ModelName() string
	Dimensions() int
}

// EmptyPlaceholder replaces empty inputs; embedding services reject them.
const EmptyPlaceholder = "empty"

// Embedding is one embedded text.
type Embedding struct {
	Vector []float32
}

// Dimensions returns the dimensionality of the embedding.
func (e Embedding) Dimensions() int {
	return len(e.Vector)
}

// Sanitize flattens newlines and substitutes a placeholder for blank text.
func Sanitize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return EmptyPlaceholder
	}
	return text
}

func checkDimensions(e Embedding, want int) error {
	if got := e.Dimensions(); got != want {
		return fmt.Errorf("unexpected embedding dimensions: got %d, want %d", got, want)
	}
	return nil
}
