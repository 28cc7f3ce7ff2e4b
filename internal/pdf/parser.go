package pdf

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/plasmarag/plasmarag/internal/logger"
)

// Document is the parsed form of one PDF.
type Document struct {
	Path      string
	Text      string
	DOI       string
	PageCount int
	Pages     []PageImage // rendered leading pages; empty when rendering is off or failed
}

// Parser turns a PDF path into text plus page images.
type Parser struct {
	renderer    Renderer
	renderPages int
	extractText func(path string, maxPages int) (string, int, error)
	log         *zap.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithRenderer enables page rendering of the first maxPages pages.
func WithRenderer(r Renderer, maxPages int) ParserOption {
	return func(p *Parser) {
		p.renderer = r
		p.renderPages = maxPages
	}
}

// NewParser creates a Parser. Without WithRenderer no pages are rendered.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		extractText: ExtractText,
		log:         logger.Named("pdf"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts text and renders pages. A render failure is logged and
// yields a Document without pages; a text failure is an error.
func (p *Parser) Parse(ctx context.Context, path string) (*Document, error) {
	text, pageCount, err := p.extractText(path, 0)
	if err != nil {
		return nil, err
	}
	if len(text) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}

	doc := &Document{
		Path:      path,
		Text:      text,
		DOI:       FindDOI(text),
		PageCount: pageCount,
	}

	if p.renderer != nil && p.renderPages > 0 {
		pages, err := p.renderer.Render(ctx, path, p.renderPages)
		if err != nil {
			p.log.Warn("page rendering failed, continuing without figures",
				zap.String("path", path), zap.Error(err))
		} else {
			doc.Pages = pages
		}
	}

	return doc, nil
}
