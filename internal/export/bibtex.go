// Package export writes knowledge-base papers to BibTeX and JSONL.
package export

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/plasmarag/plasmarag/internal/paper"
)

// ToBibTeX converts a paper to a BibTeX entry.
func ToBibTeX(p paper.Paper) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", determineEntryType(p), CiteKey(p)))

	// Title
	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(p.Title)))

	// Venue
	if p.Journal != "" {
		fieldName := "journal"
		if determineEntryType(p) == "inproceedings" {
			fieldName = "booktitle"
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", fieldName, escapeLatex(p.Journal)))
	}

	// Year (optional)
	if p.Year > 0 {
		b.WriteString(fmt.Sprintf("  year = {%d},\n", p.Year))
	}

	// DOI (optional)
	if p.DOI != "" {
		b.WriteString(fmt.Sprintf("  doi = {%s},\n", p.DOI))
	}

	if len(p.Keywords) > 0 {
		b.WriteString(fmt.Sprintf("  keywords = {%s},\n", escapeLatex(strings.Join(p.Keywords, ", "))))
	}

	// Background stands in for the abstract
	if p.Background != "" {
		b.WriteString(fmt.Sprintf("  abstract = {%s},\n", escapeLatex(p.Background)))
	}

	b.WriteString("}\n")

	return b.String()
}

// ToBibTeXList converts multiple papers to BibTeX format.
func ToBibTeXList(papers []paper.Paper) string {
	var entries []string
	for _, p := range papers {
		entries = append(entries, ToBibTeX(p))
	}
	return strings.Join(entries, "\n")
}

// CiteKey builds a stable key from the first title word, the year and the
// paper's filesystem key, e.g. chain2021-1a2b3c.
func CiteKey(p paper.Paper) string {
	word := "paper"
	for _, f := range strings.Fields(p.Title) {
		w := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, f)
		if w != "" {
			word = w
			break
		}
	}

	key := word
	if p.Year > 0 {
		key += fmt.Sprintf("%d", p.Year)
	}
	if k := paper.Key(p.TitleHash); k != "" {
		if len(k) > 6 {
			k = k[:6]
		}
		key += "-" + k
	}
	return key
}

// determineEntryType returns the BibTeX entry type for a paper.
func determineEntryType(p paper.Paper) string {
	venue := strings.ToLower(p.Journal)

	// Conference proceedings
	if strings.Contains(venue, "proceedings") ||
		strings.Contains(venue, "conference") ||
		strings.Contains(venue, "workshop") ||
		strings.Contains(venue, "symposium") {
		return "inproceedings"
	}

	// Default to article
	return "article"
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\textbackslash{}`,
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
