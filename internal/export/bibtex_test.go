package export

import (
	"strings"
	"testing"

	"github.com/plasmarag/plasmarag/internal/paper"
)

func TestToBibTeX_BasicArticle(t *testing.T) {
	p := paper.Paper{
		Title:      "Chain Formation in Complex Plasma",
		Journal:    "Physics of Plasmas",
		Year:       2021,
		DOI:        "10.1063/5.0012345",
		Keywords:   []string{"ion wake", "dust chains"},
		Background: "RF discharge with 50% argon",
		TitleHash:  "1a2b3c4d5e6f7a8b9c0d",
	}

	got := ToBibTeX(p)

	// Check entry type and key
	if !strings.HasPrefix(got, "@article{chain2021-1a2b3c,") {
		t.Errorf("ToBibTeX() should start with @article{chain2021-1a2b3c, got:\n%s", got)
	}

	for _, want := range []string{
		`title = {Chain Formation in Complex Plasma}`,
		`journal = {Physics of Plasmas}`,
		`year = {2021}`,
		`doi = {10.1063/5.0012345}`,
		`keywords = {ion wake, dust chains}`,
		`abstract = {RF discharge with 50\% argon}`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("ToBibTeX() should contain %q, got:\n%s", want, got)
		}
	}

	// Check closing brace
	if !strings.HasSuffix(strings.TrimSpace(got), "}") {
		t.Errorf("ToBibTeX() should end with }, got:\n%s", got)
	}
}

func TestToBibTeX_Inproceedings(t *testing.T) {
	p := paper.Paper{
		Title:   "Dust Acoustic Waves",
		Journal: "Proceedings of the Workshop on Dusty Plasmas",
		Year:    2019,
	}

	got := ToBibTeX(p)

	if !strings.HasPrefix(got, "@inproceedings{") {
		t.Errorf("ToBibTeX() should be inproceedings, got:\n%s", got)
	}
	if !strings.Contains(got, `booktitle = {Proceedings of the Workshop on Dusty Plasmas}`) {
		t.Errorf("ToBibTeX() should use booktitle, got:\n%s", got)
	}
}

func TestToBibTeX_OptionalFields(t *testing.T) {
	got := ToBibTeX(paper.Paper{Title: "Untitled Notes"})

	for _, absent := range []string{"journal", "year", "doi", "keywords", "abstract"} {
		if strings.Contains(got, absent+" = ") {
			t.Errorf("ToBibTeX() should omit %s, got:\n%s", absent, got)
		}
	}
}

func TestCiteKey(t *testing.T) {
	tests := []struct {
		name string
		p    paper.Paper
		want string
	}{
		{"full", paper.Paper{Title: "Chain Formation", Year: 2021, TitleHash: "abcdef0123"}, "chain2021-abcdef"},
		{"punctuation", paper.Paper{Title: "\"Melting\" of plasma crystals", Year: 2000}, "melting2000"},
		{"no title word", paper.Paper{Title: "--- ---", TitleHash: "ff"}, "paper-ff"},
		{"no year", paper.Paper{Title: "Waves"}, "waves"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CiteKey(tt.p); got != tt.want {
				t.Errorf("CiteKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToBibTeXList(t *testing.T) {
	papers := []paper.Paper{
		{Title: "First", Year: 2020},
		{Title: "Second", Year: 2021},
	}

	got := ToBibTeXList(papers)

	if strings.Count(got, "@article{") != 2 {
		t.Errorf("ToBibTeXList() should contain 2 entries, got:\n%s", got)
	}
	if !strings.Contains(got, "}\n\n@article{") {
		t.Errorf("ToBibTeXList() should separate entries with a blank line, got:\n%s", got)
	}
}

func TestEscapeLatex(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Hello World", "Hello World"},
		{"A & B", `A \& B`},
		{"50%", `50\%`},
		{"$x$", `\$x\$`},
		{"#1", `\#1`},
		{"a_b", `a\_b`},
		{"{x}", `\{x\}`},
		{"~", `\textasciitilde{}`},
		{"^", `\textasciicircum{}`},
		{`\kappa`, `\textbackslash{}kappa`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := escapeLatex(tt.input); got != tt.want {
				t.Errorf("escapeLatex(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
