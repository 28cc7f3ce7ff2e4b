package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/plasmarag/plasmarag/internal/fingerprint"
	"github.com/plasmarag/plasmarag/internal/llm"
	"github.com/plasmarag/plasmarag/internal/paper"
)

// Record is the closed schema emitted by the formatting stage.
type Record struct {
	Metadata          Metadata         `json:"metadata"`
	PhysicsContext    PhysicsContext   `json:"physics_context"`
	ObservedPhenomena []string         `json:"observed_phenomena"`
	SimulationResults string           `json:"simulation_results_description"`
	Keywords          []string         `json:"keywords"`
	ExperimentSetup   string           `json:"experiment_setup"`
	Parameters        []ParameterEntry `json:"parameters"`
	ForceFields       []ForceEntry     `json:"force_fields"`
}

// Metadata is the bibliographic part of a Record.
type Metadata struct {
	Title       string   `json:"title"`
	Journal     string   `json:"journal"`
	Year        Year     `json:"year"`
	DOI         string   `json:"doi"`
	Innovations []string `json:"innovations"`
}

// PhysicsContext describes the experimental environment.
type PhysicsContext struct {
	Environment string `json:"environment"`
	Background  string `json:"detailed_background"`
}

// ParameterEntry is one extracted physical parameter.
type ParameterEntry struct {
	Category        string `json:"category"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	Value           Scalar `json:"value"`
	Unit            string `json:"unit"`
	Meaning         string `json:"meaning"`
	EnrichedPhysics string `json:"enriched_physics"`
	Source          string `json:"source"`
}

// ForceEntry is one extracted interparticle force model.
type ForceEntry struct {
	Name                 string `json:"name"`
	Formula              string `json:"formula"`
	PhysicalSignificance string `json:"physical_significance"`
	ComputationalHint    string `json:"computational_hint"`
}

// Year accepts a JSON number or a numeric string. Unknown values decode to 0.
type Year int

func (y *Year) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*y = 0
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*y = Year(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("year must be a number: %s", data)
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		*y = Year(n)
		return nil
	}
	*y = 0
	return nil
}

// Scalar is a string that also accepts a bare JSON number.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("value must be a string or number: %s", data)
	}
	*s = Scalar(num.String())
	return nil
}

// ParseRecord decodes and validates formatting-stage output.
func ParseRecord(text string) (*Record, error) {
	var rec Record
	if err := llm.DecodeJSON(text, &rec, true); err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Validate checks schema rules that JSON decoding cannot express.
func (r *Record) Validate() error {
	var errs error
	if strings.TrimSpace(r.Metadata.Title) == "" {
		errs = multierr.Append(errs, fmt.Errorf("metadata.title is required"))
	}
	for i, p := range r.Parameters {
		if strings.TrimSpace(p.Name) == "" {
			errs = multierr.Append(errs, fmt.Errorf("parameters[%d].name is required", i))
		}
		if _, err := paper.ParseCategory(p.Category); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("parameters[%d]: %w", i, err))
		}
	}
	for i, f := range r.ForceFields {
		formula := strings.TrimSpace(f.Formula)
		switch {
		case formula == "":
			errs = multierr.Append(errs, fmt.Errorf("force_fields[%d].formula is required", i))
		case strings.Contains(formula, "$"):
			errs = multierr.Append(errs, fmt.Errorf("force_fields[%d].formula must be bare LaTeX without $ delimiters", i))
		}
		if strings.TrimSpace(f.Name) == "" {
			errs = multierr.Append(errs, fmt.Errorf("force_fields[%d].name is required", i))
		}
	}
	return errs
}

// CheckQuality rejects records that carry no usable physics: a placeholder
// or punctuation-only title, no parameters and no force models, or neither innovation nor
// background.
func (r *Record) CheckQuality() error {
	title := strings.TrimSpace(r.Metadata.Title)
	if title == "" || strings.EqualFold(title, "unknown") {
		return fmt.Errorf("%w: missing title", ErrLowQuality)
	}
	if fingerprint.NormalizeTitle(title) == "" {
		return fmt.Errorf("%w: title %q has no letters or digits", ErrLowQuality, title)
	}
	if len(r.Parameters) == 0 && len(r.ForceFields) == 0 {
		return fmt.Errorf("%w: no parameters or force models", ErrLowQuality)
	}
	if !hasText(r.Metadata.Innovations) && strings.TrimSpace(r.PhysicsContext.Background) == "" {
		return fmt.Errorf("%w: no innovation or background", ErrLowQuality)
	}
	return nil
}

func hasText(items []string) bool {
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

// ToPaper converts a validated record to a Paper with fresh ids and
// fingerprints. Status and provenance are set by the caller.
func (r *Record) ToPaper() *paper.Paper {
	p := &paper.Paper{
		ID:                uuid.NewString(),
		Title:             strings.TrimSpace(r.Metadata.Title),
		Journal:           strings.TrimSpace(r.Metadata.Journal),
		Year:              int(r.Metadata.Year),
		DOI:               strings.TrimSpace(r.Metadata.DOI),
		Innovations:       compact(r.Metadata.Innovations),
		Environment:       strings.TrimSpace(r.PhysicsContext.Environment),
		Background:        strings.TrimSpace(r.PhysicsContext.Background),
		Phenomena:         compact(r.ObservedPhenomena),
		SimulationResults: strings.TrimSpace(r.SimulationResults),
		Keywords:          compact(r.Keywords),
		ExperimentSetup:   strings.TrimSpace(r.ExperimentSetup),
		CreatedAt:         time.Now().UTC(),
	}
	p.TitleHash = fingerprint.TitleHash(p.Title)

	for _, e := range r.Parameters {
		category, err := paper.ParseCategory(e.Category)
		if err != nil {
			category = paper.CategoryOther
		}
		p.Parameters = append(p.Parameters, paper.Parameter{
			Category:        category,
			Name:            strings.TrimSpace(e.Name),
			Symbol:          strings.TrimSpace(e.Symbol),
			Value:           strings.TrimSpace(string(e.Value)),
			Unit:            strings.TrimSpace(e.Unit),
			Meaning:         strings.TrimSpace(e.Meaning),
			EnrichedPhysics: strings.TrimSpace(e.EnrichedPhysics),
			Source:          strings.TrimSpace(e.Source),
		})
	}

	for _, e := range r.ForceFields {
		formula := strings.TrimSpace(e.Formula)
		p.ForceModels = append(p.ForceModels, paper.ForceModel{
			ID:                uuid.NewString(),
			PaperID:           p.ID,
			Name:              strings.TrimSpace(e.Name),
			Formula:           formula,
			Meaning:           strings.TrimSpace(e.PhysicalSignificance),
			ComputationalHint: strings.TrimSpace(e.ComputationalHint),
			FormulaHash:       fingerprint.FormulaHash(formula),
		})
	}
	return p
}

func compact(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
