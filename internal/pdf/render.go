package pdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// PageImage is one rasterized page.
type PageImage struct {
	Page int    // 1-based page number
	PNG  []byte // encoded image
}

// Renderer rasterizes the first pages of a PDF.
type Renderer interface {
	Render(ctx context.Context, filePath string, maxPages int) ([]PageImage, error)
}

// DefaultDPI is the rendering resolution used when none is configured.
const DefaultDPI = 100

// PdftoppmRenderer renders pages with poppler's pdftoppm.
type PdftoppmRenderer struct {
	binary string
	dpi    int
}

// NewPdftoppmRenderer creates a renderer. dpi <= 0 uses DefaultDPI.
func NewPdftoppmRenderer(dpi int) *PdftoppmRenderer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &PdftoppmRenderer{binary: "pdftoppm", dpi: dpi}
}

// Available reports whether the pdftoppm binary is on PATH.
func (r *PdftoppmRenderer) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// Render writes pages 1..maxPages to a temp directory and reads them back.
func (r *PdftoppmRenderer) Render(ctx context.Context, filePath string, maxPages int) ([]PageImage, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("checking PDF file: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "prag-render-")
	if err != nil {
		return nil, fmt.Errorf("creating render directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	args := []string{"-png", "-r", strconv.Itoa(r.dpi), "-f", "1"}
	if maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(maxPages))
	}
	args = append(args, filePath, filepath.Join(tmpDir, "page"))

	cmd := exec.CommandContext(ctx, r.binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("running %s: %w: %s", r.binary, err, strings.TrimSpace(string(out)))
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("reading render directory: %w", err)
	}

	var pages []PageImage
	for _, e := range entries {
		n, ok := pageNumber(e.Name())
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tmpDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", n, err)
		}
		pages = append(pages, PageImage{Page: n, PNG: data})
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Page < pages[j].Page })
	return pages, nil
}

// pdftoppm pads page numbers to the width of the last page: page-1.png, page-01.png, ...
var pageFilePattern = regexp.MustCompile(`^page-(\d+)\.png$`)

func pageNumber(name string) (int, bool) {
	m := pageFilePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
