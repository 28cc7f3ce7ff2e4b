package pdf

import (
	"context"
	"errors"
	"testing"
)

func TestFindDOI(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "doi: 10.1063/1.4895488 received", "10.1063/1.4895488"},
		{"trailing punctuation", "see https://doi.org/10.1103/PhysRevE.95.013207.", "10.1103/PhysRevE.95.013207"},
		{"first wins", "10.1088/1361-6587/aa1234 and 10.1063/5.0001", "10.1088/1361-6587/aa1234"},
		{"none", "no identifiers here", ""},
		{"too short", "10.1234/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindDOI(tt.text); got != tt.want {
				t.Errorf("FindDOI(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestPageNumber(t *testing.T) {
	tests := []struct {
		name   string
		want   int
		wantOK bool
	}{
		{"page-1.png", 1, true},
		{"page-06.png", 6, true},
		{"page-012.png", 12, true},
		{"page-1.ppm", 0, false},
		{"other.png", 0, false},
	}
	for _, tt := range tests {
		got, ok := pageNumber(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("pageNumber(%q) = %d, %v; want %d, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

type fakeRenderer struct {
	pages []PageImage
	err   error
	asked int
}

func (f *fakeRenderer) Render(ctx context.Context, path string, maxPages int) ([]PageImage, error) {
	f.asked = maxPages
	return f.pages, f.err
}

func newTestParser(text string, textErr error, opts ...ParserOption) *Parser {
	p := NewParser(opts...)
	p.extractText = func(string, int) (string, int, error) { return text, 3, textErr }
	return p
}

func TestParser_Parse(t *testing.T) {
	r := &fakeRenderer{pages: []PageImage{{Page: 1, PNG: []byte{0x89}}}}
	p := newTestParser("Title\ndoi 10.1063/1.4895488\nbody", nil, WithRenderer(r, 6))

	doc, err := p.Parse(context.Background(), "paper.pdf")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.DOI != "10.1063/1.4895488" {
		t.Errorf("DOI = %q", doc.DOI)
	}
	if doc.PageCount != 3 || len(doc.Pages) != 1 {
		t.Errorf("PageCount = %d, pages = %d", doc.PageCount, len(doc.Pages))
	}
	if r.asked != 6 {
		t.Errorf("renderer asked for %d pages, want 6", r.asked)
	}
}

func TestParser_RenderFailureIsNotFatal(t *testing.T) {
	r := &fakeRenderer{err: errors.New("pdftoppm missing")}
	p := newTestParser("some text", nil, WithRenderer(r, 6))

	doc, err := p.Parse(context.Background(), "paper.pdf")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(doc.Pages) != 0 {
		t.Errorf("Pages = %d, want 0", len(doc.Pages))
	}
}

func TestParser_TextErrors(t *testing.T) {
	if _, err := newTestParser("", errors.New("bad xref")).Parse(context.Background(), "x.pdf"); err == nil {
		t.Error("Parse() should propagate text extraction errors")
	}
	if _, err := newTestParser("", nil).Parse(context.Background(), "x.pdf"); err == nil {
		t.Error("Parse() should reject a PDF without text")
	}
}

func TestParser_NoRenderer(t *testing.T) {
	doc, err := newTestParser("text", nil).Parse(context.Background(), "x.pdf")
	if err != nil || len(doc.Pages) != 0 {
		t.Errorf("Parse() = %+v, %v", doc, err)
	}
}

func TestExtractText_MissingFile(t *testing.T) {
	if _, _, err := ExtractText("/nonexistent/paper.pdf", 0); err == nil {
		t.Error("ExtractText() should fail for a missing file")
	}
}
