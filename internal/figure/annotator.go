// Package figure stores rendered page images and captions them with a
// vision model, linking each caption to extracted parameters.
package figure

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/plasmarag/plasmarag/internal/llm"
	"github.com/plasmarag/plasmarag/internal/logger"
	"github.com/plasmarag/plasmarag/internal/paper"
	"github.com/plasmarag/plasmarag/internal/pdf"
)

// DefaultMaxPages caps how many pages are stored and captioned per paper.
const DefaultMaxPages = 6

// Completer issues one chat completion.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Options configures an Annotator.
type Options struct {
	Dir      string // figures root; images go to <Dir>/<key>/
	Model    string
	MaxPages int
	Workers  int
}

// Annotator writes page images and captions them concurrently.
type Annotator struct {
	llm  Completer
	opts Options
	log  *zap.Logger
}

// New creates an Annotator.
func New(c Completer, opts Options) *Annotator {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Annotator{llm: c, opts: opts, log: logger.Named("figure")}
}

// Annotate stores up to MaxPages page images under the key namespace and
// captions each one. A failed caption leaves that figure with an empty
// caption; only filesystem setup errors and cancellation abort.
func (a *Annotator) Annotate(ctx context.Context, key string, pages []pdf.PageImage, p *paper.Paper) ([]paper.Figure, error) {
	if len(pages) == 0 {
		return nil, nil
	}
	if len(pages) > a.opts.MaxPages {
		pages = pages[:a.opts.MaxPages]
	}

	dir := filepath.Join(a.opts.Dir, key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating figure directory: %w", err)
	}

	pool, err := ants.NewPool(a.opts.Workers, ants.WithPanicHandler(func(v interface{}) {
		a.log.Error("caption worker panic", zap.Any("panic", v))
	}))
	if err != nil {
		return nil, fmt.Errorf("creating caption pool: %w", err)
	}
	defer pool.Release()

	links := newLinker(p.Parameters)
	summary := parameterSummary(p.Parameters)
	figures := make([]paper.Figure, len(pages))

	var wg sync.WaitGroup
	for i, page := range pages {
		name := fmt.Sprintf("%s_p%d.png", key, page.Page)
		figures[i] = paper.Figure{Page: page.Page, ImagePath: filepath.Join(key, name)}

		if err := writeFileAtomic(filepath.Join(dir, name), page.PNG); err != nil {
			a.log.Warn("figure write failed", zap.Int("page", page.Page), zap.Error(err))
			continue
		}

		i, page := i, page
		wg.Add(1)
		task := func() {
			defer wg.Done()
			caption, linked, err := a.caption(ctx, page, summary)
			if err != nil {
				a.log.Warn("captioning failed", zap.String("key", key), zap.Int("page", page.Page), zap.Error(err))
				return
			}
			figures[i].Caption = caption
			figures[i].LinkedParameters = links.resolve(linked)
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			a.log.Warn("caption task rejected", zap.Int("page", page.Page), zap.Error(err))
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return figures, nil
}

type captionReply struct {
	Caption          string            `json:"caption"`
	LinkedParameters []json.RawMessage `json:"linked_parameters"`
}

// caption asks the vision model for one figure's caption and linked names.
func (a *Annotator) caption(ctx context.Context, page pdf.PageImage, summary string) (string, []string, error) {
	out, err := a.llm.Complete(ctx, llm.Request{
		Model: a.opts.Model,
		Messages: []llm.Message{
			llm.User(captionPrompt(page.Page, summary), llm.Image{MIME: "image/png", Data: page.PNG}),
		},
		Temperature: llm.Temperature(0.1),
	})
	if err != nil {
		return "", nil, err
	}

	var reply captionReply
	if err := llm.DecodeJSON(out, &reply, false); err != nil {
		return "", nil, err
	}
	caption := strings.TrimSpace(reply.Caption)
	if caption == "" {
		return "", nil, fmt.Errorf("empty caption")
	}

	var linked []string
	for _, raw := range reply.LinkedParameters {
		if name := linkedName(raw); name != "" {
			linked = append(linked, name)
		}
	}
	return caption, linked, nil
}

// linkedName accepts either a bare string or an object with symbol or name.
func linkedName(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Symbol != "" {
			return strings.TrimSpace(obj.Symbol)
		}
		return strings.TrimSpace(obj.Name)
	}
	return ""
}

func captionPrompt(page int, summary string) string {
	return fmt.Sprintf(`You are a complex plasma physicist reading a figure from page %d of a paper.
The parameters already extracted from this paper are listed below, one per line.

%s

Tasks:
1. In one sentence, state which physical phenomenon or parameter relationship
   the figure shows.
2. Pick the 1 to 3 parameters from the list most relevant to the figure and
   return their symbol or name exactly as listed.

Reply with JSON only:
{"caption": "one sentence", "linked_parameters": ["symbol or name"]}`, page, summary)
}

func parameterSummary(params []paper.Parameter) string {
	if len(params) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, p := range params {
		fmt.Fprintf(&b, "- %s", p.Name)
		if p.Symbol != "" {
			fmt.Fprintf(&b, " (%s)", p.Symbol)
		}
		if p.Value != "" {
			fmt.Fprintf(&b, " = %s %s", p.Value, p.Unit)
		}
		if p.Meaning != "" {
			fmt.Fprintf(&b, ": %s", p.Meaning)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// linker maps lowercase parameter names and symbols to parameter names.
type linker map[string]string

func newLinker(params []paper.Parameter) linker {
	l := make(linker)
	for _, p := range params {
		if p.Symbol != "" {
			l[strings.ToLower(p.Symbol)] = p.Name
		}
	}
	// Names win over symbols that happen to collide with them
	for _, p := range params {
		l[strings.ToLower(p.Name)] = p.Name
	}
	return l
}

// resolve returns the distinct known parameter names referenced by refs.
func (l linker) resolve(refs []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ref := range refs {
		name, ok := l[strings.ToLower(strings.TrimSpace(ref))]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// writeFileAtomic replaces path with data via a temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fig-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
