// Package fingerprint computes normalized content hashes used for dedup.
package fingerprint

import (
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// latexSpacing are LaTeX spacing commands that carry no meaning for identity.
var latexSpacing = strings.NewReplacer(
	`\,`, "",
	`\;`, "",
	`\:`, "",
	`\!`, "",
	`\ `, "",
	`\quad`, "",
	`\qquad`, "",
)

// NormalizeTitle lowercases, replaces punctuation with spaces and collapses whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeFormula strips math delimiters, LaTeX spacing and all whitespace,
// so operator spacing differences collapse to one form.
func NormalizeFormula(formula string) string {
	s := strings.TrimSpace(formula)
	s = strings.ReplaceAll(s, "$", "")
	s = latexSpacing.Replace(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// TitleHash returns the hex fingerprint of a normalized title.
func TitleHash(title string) string {
	return sum([]byte(NormalizeTitle(title)))
}

// FormulaHash returns the hex fingerprint of a normalized formula.
func FormulaHash(formula string) string {
	return sum([]byte(NormalizeFormula(formula)))
}

// SourceHash returns the hex fingerprint of raw document bytes.
func SourceHash(data []byte) string {
	return sum(data)
}

func sum(data []byte) string {
	h := blake2b.Sum256(data)
	return hex.EncodeToString(h[:])
}
