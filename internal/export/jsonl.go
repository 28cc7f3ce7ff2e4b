package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/plasmarag/plasmarag/internal/fingerprint"
	"github.com/plasmarag/plasmarag/internal/paper"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines.
// Papers carry full parameter tables, so lines run longer than usual.
const MaxJSONLLineCapacity = 4 * 1024 * 1024

// ReadJSONL reads papers from a JSONL file.
func ReadJSONL(path string) ([]paper.Paper, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Empty file returns empty slice
		}
		return nil, fmt.Errorf("opening papers file: %w", err)
	}
	defer f.Close()

	return DecodeJSONL(f)
}

// DecodeJSONL reads one paper per line from r, skipping blank lines.
func DecodeJSONL(r io.Reader) ([]paper.Paper, error) {
	var papers []paper.Paper
	scanner := bufio.NewScanner(r)

	// Increase buffer size for long lines
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}

		var p paper.Paper
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		if p.Title == "" {
			return nil, fmt.Errorf("line %d: paper has no title", lineNum)
		}
		papers = append(papers, p)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading papers: %w", err)
	}

	return papers, nil
}

// EncodeJSONL writes one paper per line to w.
func EncodeJSONL(w io.Writer, papers []paper.Paper) error {
	bw := bufio.NewWriter(w)
	for i, p := range papers {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding paper %d: %w", i, err)
		}

		if _, err := bw.Write(data); err != nil {
			return fmt.Errorf("writing paper %d: %w", i, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	return bw.Flush()
}

// WriteJSONL writes all papers to a JSONL file, replacing existing content.
func WriteJSONL(path string, papers []paper.Paper) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating papers file: %w", err)
	}

	if err := EncodeJSONL(f, papers); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Restore prepares a decoded paper for a fresh commit: lifecycle fields are
// cleared, hashes are recomputed from the text and missing ids are filled.
// Figures keep their image paths relative to the figures root.
func Restore(p paper.Paper) *paper.Paper {
	out := p
	out.Status = ""
	out.Supersedes = ""
	out.Title = strings.TrimSpace(p.Title)
	out.TitleHash = fingerprint.TitleHash(out.Title)
	if out.ID == "" {
		out.ID = uuid.NewString()
	}

	out.ForceModels = make([]paper.ForceModel, len(p.ForceModels))
	for i, f := range p.ForceModels {
		f.Formula = strings.TrimSpace(strings.ReplaceAll(f.Formula, "$", ""))
		f.FormulaHash = fingerprint.FormulaHash(f.Formula)
		f.PaperID = out.ID
		f.Status = ""
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		out.ForceModels[i] = f
	}
	out.Parameters = append([]paper.Parameter(nil), p.Parameters...)
	out.Figures = append([]paper.Figure(nil), p.Figures...)
	return &out
}
