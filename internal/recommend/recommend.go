// Package recommend synthesizes simulation parameter recommendations from a
// reference paper, retrieved force models and the user's targets.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/plasmarag/plasmarag/internal/llm"
	"github.com/plasmarag/plasmarag/internal/logger"
	"github.com/plasmarag/plasmarag/internal/paper"
	"github.com/plasmarag/plasmarag/internal/retrieval"
)

// DefaultTopK is how many related records are pulled into the prompt.
const DefaultTopK = 2

var (
	// ErrNoParameters indicates a request without target parameters.
	ErrNoParameters = errors.New("no target parameters given")

	// ErrEmptyResponse indicates the model returned no text.
	ErrEmptyResponse = errors.New("model returned an empty recommendation")
)

// Error is a synthesis failure. Raw holds any text the model returned.
type Error struct {
	Raw string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("recommendation synthesis failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Completer issues one chat completion.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Retriever finds related papers and force models.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) (*retrieval.Results, error)
}

// TargetParam is one parameter the user wants to scan.
type TargetParam struct {
	Name        string `json:"name"`
	Value       string `json:"value,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Description string `json:"description,omitempty"`
}

// Request asks for a recommendation. Reference may be nil, in which case
// the closest papers to Phenomena are used as context.
type Request struct {
	Reference *paper.Paper
	Params    []TargetParam
	Phenomena string
}

// ParameterRecommendation is the proposed scan for one parameter.
type ParameterRecommendation struct {
	Name   string  `json:"name"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Step   float64 `json:"step"`
	Unit   string  `json:"unit"`
	Reason string  `json:"reason"`
}

// ForceRecommendation is the proposed interaction model.
type ForceRecommendation struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Report is the synthesized recommendation. When the model output could
// not be parsed, Parsed is false and Raw carries the text.
type Report struct {
	Parameters []ParameterRecommendation `json:"parameters,omitempty"`
	ForceModel *ForceRecommendation      `json:"force_model,omitempty"`
	References []string                  `json:"references,omitempty"`
	Forces     []string                  `json:"related_forces,omitempty"`
	Parsed     bool                      `json:"parsed"`
	Raw        string                    `json:"raw,omitempty"`
}

// Options configures a Synthesizer.
type Options struct {
	Model string
	TopK  int
}

// Synthesizer produces recommendation reports with a single model call.
type Synthesizer struct {
	llm       Completer
	retriever Retriever
	opts      Options
	log       *zap.Logger
}

// New creates a Synthesizer. retriever may be nil to skip related context.
func New(c Completer, retriever Retriever, opts Options) *Synthesizer {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &Synthesizer{llm: c, retriever: retriever, opts: opts, log: logger.Named("recommend")}
}

// Recommend builds the context, calls the model once and parses the reply.
// A reply that does not parse still yields a Report with Raw set; a failed
// or empty call yields an *Error.
func (s *Synthesizer) Recommend(ctx context.Context, req Request) (*Report, error) {
	if len(req.Params) == 0 {
		return nil, &Error{Err: ErrNoParameters}
	}

	references := []*paper.Paper{}
	if req.Reference != nil {
		references = append(references, req.Reference)
	} else if s.retriever != nil && strings.TrimSpace(req.Phenomena) != "" {
		res, err := s.retriever.Search(ctx, req.Phenomena, s.opts.TopK)
		if err != nil {
			return nil, &Error{Err: fmt.Errorf("finding reference papers: %w", err)}
		}
		for _, h := range res.Papers {
			references = append(references, h.Paper)
		}
	}

	var forces []*paper.ForceModel
	if s.retriever != nil {
		query := req.Phenomena
		if len(references) > 0 {
			query = references[0].SearchQuery()
		}
		if strings.TrimSpace(query) != "" {
			res, err := s.retriever.Search(ctx, query, s.opts.TopK)
			if err != nil {
				s.log.Warn("related force lookup failed", zap.Error(err))
			} else {
				for _, h := range res.Forces {
					forces = append(forces, h.ForceModel)
				}
			}
		}
	}

	prompt, err := buildPrompt(references, forces, req)
	if err != nil {
		return nil, &Error{Err: err}
	}

	out, err := s.llm.Complete(ctx, llm.Request{
		Model: s.opts.Model,
		Messages: []llm.Message{
			llm.System(systemPrompt),
			llm.User(prompt),
		},
	})
	if err != nil {
		return nil, &Error{Err: err}
	}
	if strings.TrimSpace(out) == "" {
		return nil, &Error{Err: ErrEmptyResponse}
	}

	report := &Report{Raw: out}
	for _, p := range references {
		report.References = append(report.References, p.ID)
	}
	for _, f := range forces {
		report.Forces = append(report.Forces, f.ID)
	}
	if err := parseReport(out, req.Params, report); err != nil {
		s.log.Warn("recommendation not parseable, returning raw text", zap.Error(err))
		report.Parameters, report.ForceModel = nil, nil
		return report, nil
	}
	report.Parsed = true
	return report, nil
}

type wireReport struct {
	ParameterRecommendations map[string]wireParam `json:"parameter_recommendations"`
	ForceFieldRecommendation *ForceRecommendation `json:"force_field_recommendation"`
}

type wireParam struct {
	Range  []number `json:"range"`
	Step   number   `json:"step"`
	Unit   string   `json:"unit"`
	Reason string   `json:"reason"`
}

// number accepts a JSON number or a numeric string.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("not a number: %s", data)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*n = number(f)
	return nil
}

// parseReport fills report from model output. Every requested parameter
// needs an interval and a positive step. Parameters follow the order of the
// request, then any extra names alphabetically.
func parseReport(out string, params []TargetParam, report *Report) error {
	var wire wireReport
	if err := llm.DecodeJSON(out, &wire, false); err != nil {
		return err
	}
	if len(wire.ParameterRecommendations) == 0 && wire.ForceFieldRecommendation == nil {
		return fmt.Errorf("reply has no recommendations")
	}

	var names []string
	seen := make(map[string]bool)
	for _, p := range params {
		if seen[p.Name] {
			continue
		}
		if _, ok := wire.ParameterRecommendations[p.Name]; !ok {
			return fmt.Errorf("reply has no recommendation for parameter %s", p.Name)
		}
		names = append(names, p.Name)
		seen[p.Name] = true
	}
	var extra []string
	for name := range wire.ParameterRecommendations {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	for _, name := range names {
		w := wire.ParameterRecommendations[name]
		if len(w.Range) != 2 {
			return fmt.Errorf("parameter %s: range must have two values, got %d", name, len(w.Range))
		}
		if w.Step <= 0 {
			return fmt.Errorf("parameter %s: step must be positive, got %v", name, float64(w.Step))
		}
		lo, hi := float64(w.Range[0]), float64(w.Range[1])
		if lo > hi {
			lo, hi = hi, lo
		}
		report.Parameters = append(report.Parameters, ParameterRecommendation{
			Name:   name,
			Min:    lo,
			Max:    hi,
			Step:   float64(w.Step),
			Unit:   w.Unit,
			Reason: w.Reason,
		})
	}
	if f := wire.ForceFieldRecommendation; f != nil && strings.TrimSpace(f.Name) != "" {
		report.ForceModel = &ForceRecommendation{Name: strings.TrimSpace(f.Name), Reason: f.Reason}
	}
	return nil
}
