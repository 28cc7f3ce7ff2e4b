package recommend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/plasmarag/plasmarag/internal/paper"
)

const systemPrompt = "You are a senior scientist expert in complex plasma physics and numerical simulation. Reply with JSON only."

// referenceView is the part of a paper worth spending prompt tokens on.
type referenceView struct {
	Title             string            `json:"title"`
	Journal           string            `json:"journal,omitempty"`
	Year              int               `json:"year,omitempty"`
	Background        string            `json:"background,omitempty"`
	Environment       string            `json:"environment,omitempty"`
	Phenomena         []string          `json:"observed_phenomena,omitempty"`
	SimulationResults string            `json:"simulation_results,omitempty"`
	Parameters        []paper.Parameter `json:"parameters,omitempty"`
	ForceModels       []forceView       `json:"force_models,omitempty"`
}

type forceView struct {
	Name              string `json:"name"`
	Formula           string `json:"formula"`
	Meaning           string `json:"meaning,omitempty"`
	ComputationalHint string `json:"computational_hint,omitempty"`
}

func viewOf(p *paper.Paper) referenceView {
	v := referenceView{
		Title:             p.Title,
		Journal:           p.Journal,
		Year:              p.Year,
		Background:        p.Background,
		Environment:       p.Environment,
		Phenomena:         p.Phenomena,
		SimulationResults: p.SimulationResults,
		Parameters:        p.Parameters,
	}
	for _, f := range p.ForceModels {
		v.ForceModels = append(v.ForceModels, forceViewOf(&f))
	}
	return v
}

func forceViewOf(f *paper.ForceModel) forceView {
	return forceView{Name: f.Name, Formula: f.Formula, Meaning: f.Meaning, ComputationalHint: f.ComputationalHint}
}

func buildPrompt(references []*paper.Paper, forces []*paper.ForceModel, req Request) (string, error) {
	refs := make([]referenceView, 0, len(references))
	for _, p := range references {
		refs = append(refs, viewOf(p))
	}
	related := make([]forceView, 0, len(forces))
	for _, f := range forces {
		related = append(related, forceViewOf(f))
	}

	refJSON, err := json.MarshalIndent(refs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding references: %w", err)
	}
	forceJSON, err := json.MarshalIndent(related, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding related forces: %w", err)
	}
	paramJSON, err := json.MarshalIndent(req.Params, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding parameters: %w", err)
	}

	phenomena := strings.TrimSpace(req.Phenomena)
	if phenomena == "" {
		phenomena = "none stated"
	}

	return fmt.Sprintf(`You are an expert in complex plasma simulation.

Reference papers (structured records):
%s

Related force models from the knowledge base:
%s

Parameters the user wants to simulate (with physical meaning):
%s

Phenomenon the user expects to observe: %s

For EACH parameter above, using its stated physical meaning and the
experimental and theoretical background of the references:
1. Recommend an interval [min, max] consistent with the physical scales involved.
2. Recommend a scan step fine enough to resolve the features that matter.
3. Justify the choice, citing formulas or constants from the references
   (for example the dust plasma frequency).
4. Use exactly the unit the user gave for that parameter.
Adjust the intervals so the expected phenomenon is likely to appear.
Also recommend the single force model best suited to reproduce it.

Reply with JSON only:
{
  "parameter_recommendations": {
    "<parameter name>": {"range": [min, max], "step": value, "unit": "unit", "reason": "why"}
  },
  "force_field_recommendation": {"name": "force model name", "reason": "why"}
}`, refJSON, forceJSON, paramJSON, phenomena), nil
}
