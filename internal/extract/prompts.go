package extract

import "fmt"

const understandingPrompt = `You are an expert in complex (dusty) plasma physics. Read the paper below and
extract its core content using the TAG FORMAT shown. Do not output JSON or
Markdown; write each tag followed by its content. List every parameter and
force field on its own line.

[metadata.title]: title
[metadata.journal]: journal
[metadata.year]: year
[metadata.innovation]: innovation points
[physics_context.environment]: experimental environment
[physics_context.detailed_background]: background description
[observed_phenomena]: observed physical phenomena
[simulation_results_description]: description of simulation results
[keywords]: keyword1, keyword2
[experiment_setup]: description of the experimental setup

[parameter]:
category: (geometric/electrical/dimensionless/other) | name: | symbol: | value: | unit: | meaning: | enriched physical meaning: | source: (stated/inferred)

[force_field]:
name: | formula: | physical significance: | simulation hint (with units):

[interparticle_interaction]:
Only the pair potential or force acting BETWEEN particles. It will drive a
simulation, so give exactly one, the one that best matches the physics.
Never include external AC/DC fields, gravity, magnetic fields or global
confinement here; those belong under [parameter].
format: name: | formula: | physical significance: | simulation hint (with units):`

const formattingPrompt = `You are a strict JSON conversion assistant. Convert the tagged physics
notes supplied by the user into ONE JSON object with exactly this structure:

{
  "metadata": {"title": "", "journal": "", "year": 0, "doi": "", "innovations": [""]},
  "physics_context": {"environment": "", "detailed_background": ""},
  "observed_phenomena": [""],
  "simulation_results_description": "",
  "keywords": [""],
  "experiment_setup": "",
  "parameters": [
    {"category": "", "name": "", "symbol": "", "value": "", "unit": "",
     "meaning": "", "enriched_physics": "", "source": ""}
  ],
  "force_fields": [
    {"name": "", "formula": "", "physical_significance": "", "computational_hint": ""}
  ]
}

Rules:
1. Use exactly these field names and nesting. Do not add fields.
2. "category" is one of: geometric, electrical, dimensionless, other.
3. Keep "value" and "unit" separate. "value" holds only the number or range.
4. "year" is a number; use 0 when unknown.
5. "formula" holds a single bare LaTeX expression with no $ or $$ delimiters
   and no explanatory words. Correct: "W(r) = \\frac{Q^2}{r} e^{-r/\\lambda}".
   Wrong: "$W(r) = ...$".
6. "force_fields" contains only interparticle pair potentials. External or
   background fields go into "parameters".
7. Output only the JSON object. No comments, no trailing commas.`

func formattingInput(notes string) string {
	return "Convert the following notes to JSON:\n\n" + notes
}

func correctionPrompt(err error) string {
	return fmt.Sprintf(`Your previous reply could not be accepted: %v

Reply again with the complete corrected JSON object only, following every rule
and the exact structure given earlier.`, err)
}
