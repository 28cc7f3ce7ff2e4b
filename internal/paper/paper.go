// Package paper defines the knowledge-base domain types.
package paper

import (
	"fmt"
	"strings"
	"time"
)

// Status is the visibility state of a stored Paper or ForceModel.
type Status string

const (
	StatusPending    Status = "pending"    // Written to the store, vectors not yet committed
	StatusActive     Status = "active"     // Visible to readers
	StatusRetracted  Status = "retracted"  // Soft deleted
	StatusSuperseded Status = "superseded" // Replaced by a later ingestion of the same title
)

// IsLive reports whether the status participates in title uniqueness.
func (s Status) IsLive() bool {
	return s == StatusPending || s == StatusActive
}

// Category classifies a physical parameter.
type Category string

const (
	CategoryGeometric     Category = "geometric"
	CategoryElectrical    Category = "electrical"
	CategoryDimensionless Category = "dimensionless"
	CategoryOther         Category = "other"
)

// Categories lists every valid parameter category.
var Categories = []Category{CategoryGeometric, CategoryElectrical, CategoryDimensionless, CategoryOther}

// ParseCategory normalizes s to one of the fixed categories.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range Categories {
		if c == valid {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid parameter category %q (valid: %v)", s, Categories)
}

// Paper is a single ingested publication.
type Paper struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	Journal           string       `json:"journal,omitempty"`
	Year              int          `json:"year,omitempty"`
	DOI               string       `json:"doi,omitempty"`
	Innovations       []string     `json:"innovations,omitempty"`
	Environment       string       `json:"environment,omitempty"`
	Background        string       `json:"background,omitempty"`
	Phenomena         []string     `json:"phenomena,omitempty"`
	SimulationResults string       `json:"simulation_results,omitempty"`
	Keywords          []string     `json:"keywords,omitempty"`
	ExperimentSetup   string       `json:"experiment_setup,omitempty"`
	Parameters        []Parameter  `json:"parameters,omitempty"`
	ForceModels       []ForceModel `json:"force_models,omitempty"`
	Figures           []Figure     `json:"figures,omitempty"`

	SourcePath string    `json:"source_path,omitempty"`
	SourceHash string    `json:"source_hash,omitempty"`
	TitleHash  string    `json:"title_hash"`
	Status     Status    `json:"status"`
	Supersedes string    `json:"supersedes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ForceModel is a named interaction potential extracted from a Paper.
type ForceModel struct {
	ID                string `json:"id"`
	PaperID           string `json:"paper_id"`
	Name              string `json:"name"`
	Formula           string `json:"formula"`
	Meaning           string `json:"meaning,omitempty"`
	ComputationalHint string `json:"computational_hint,omitempty"`
	FormulaHash       string `json:"formula_hash"`
	Status            Status `json:"status"`
}

// Parameter is a physical quantity reported by a Paper.
type Parameter struct {
	Category        Category `json:"category"`
	Name            string   `json:"name"`
	Symbol          string   `json:"symbol,omitempty"`
	Value           string   `json:"value"`
	Unit            string   `json:"unit,omitempty"`
	Meaning         string   `json:"meaning,omitempty"`
	EnrichedPhysics string   `json:"enriched_physics,omitempty"`
	Source          string   `json:"source,omitempty"`
}

// Figure is a rendered page with a generated caption.
type Figure struct {
	Page             int      `json:"page"`
	ImagePath        string   `json:"image_path"`
	Caption          string   `json:"caption"`
	LinkedParameters []string `json:"linked_parameters,omitempty"`
}

// Key returns the filesystem namespace for a title hash.
// It is stable across re-ingestion of the same title.
func Key(titleHash string) string {
	if len(titleHash) > 16 {
		return titleHash[:16]
	}
	return titleHash
}

// EmbeddingText is the text embedded into the papers index.
func (p *Paper) EmbeddingText() string {
	return fmt.Sprintf("Title: %s. Context: %s", p.Title, p.Background)
}

// EmbeddingText is the text embedded into the forces index.
func (f *ForceModel) EmbeddingText() string {
	return fmt.Sprintf("Interparticle Interaction: %s. Significance: %s", f.Formula, f.Meaning)
}

// SearchQuery builds the retrieval query used to find related work.
func (p *Paper) SearchQuery() string {
	if len(p.Keywords) == 0 {
		return p.Title
	}
	return p.Title + " " + strings.Join(p.Keywords, " ")
}

// ParametersByCategory groups parameters in category order.
func (p *Paper) ParametersByCategory() map[Category][]Parameter {
	out := make(map[Category][]Parameter)
	for _, param := range p.Parameters {
		out[param.Category] = append(out[param.Category], param)
	}
	return out
}
