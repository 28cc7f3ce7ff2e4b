package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plasmarag/plasmarag/internal/recommend"
)

var (
	recommendRef        string
	recommendParams     []string
	recommendParamsFile string
	recommendPhenomena  string
	recommendTopK       int
)

func init() {
	recommendCmd.Flags().StringVarP(&recommendRef, "ref", "r", "", "Reference paper ID (default: closest papers to --phenomena)")
	recommendCmd.Flags().StringArrayVarP(&recommendParams, "param", "p", nil, `Target parameter "name=value unit: description" (repeatable)`)
	recommendCmd.Flags().StringVar(&recommendParamsFile, "params-file", "", "JSON file with an array of {name, value, unit, description}")
	recommendCmd.Flags().StringVar(&recommendPhenomena, "phenomena", "", "Phenomenon you expect to observe")
	recommendCmd.Flags().IntVarP(&recommendTopK, "top", "k", recommend.DefaultTopK, "Related papers and force models pulled into the prompt")
	rootCmd.AddCommand(recommendCmd)
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend simulation parameter ranges",
	Long: `Recommend a scan range and step for each target parameter, plus a force model.

The recommendation is grounded in a reference paper (or the papers closest to
the expected phenomenon) and the most related force models in the knowledge
base. When the model reply cannot be parsed, the raw text is returned with
"parsed": false.

Parameter syntax:
  name                          - name only
  name=value                    - with a current value
  name=value unit               - with a unit
  name=value unit: description  - with its physical meaning

Examples:
  prag recommend --ref 3f1c2a9e-... -p "particle_charge=1.2e4 e: dust grain charge" \
      --phenomena "chain structure formation"
  prag recommend --phenomena "crystal melting" -p "pressure=10 Pa" -p "kappa=1.5"`,
	Args: cobra.NoArgs,
	RunE: runRecommend,
}

func runRecommend(cmd *cobra.Command, args []string) error {
	params, err := collectTargetParams(recommendParams, recommendParamsFile)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	if len(params) == 0 {
		exitWithError(ExitError, "at least one --param or --params-file is required")
	}
	if recommendRef == "" && strings.TrimSpace(recommendPhenomena) == "" {
		exitWithError(ExitError, "either --ref or --phenomena is required")
	}

	mustRequireAPIKey()
	a := mustOpenApp()
	defer a.Close()
	a.mustValidateEmbedder()

	ctx, cancel := commandContext(0)
	defer cancel()

	req := recommend.Request{Params: params, Phenomena: recommendPhenomena}
	if recommendRef != "" {
		p, err := a.db.GetPaper(ctx, recommendRef)
		if err != nil {
			exitWithError(ExitError, "getting reference paper: %v", err)
		}
		if p == nil {
			exitWithError(ExitDataError, "reference paper not found: %s", recommendRef)
		}
		req.Reference = p
	}

	svc, err := a.retrieval()
	if err != nil {
		exitWithErr(err, "opening retrieval")
	}

	report, err := a.synthesizer(svc, recommendTopK).Recommend(ctx, req)
	if err != nil {
		exitWithErr(err, "recommending")
	}

	if humanOutput {
		printRecommendationHuman(report)
	} else {
		outputJSON(report)
	}
	return nil
}

// parseTargetParam parses "name=value unit: description".
func parseTargetParam(s string) (recommend.TargetParam, error) {
	var p recommend.TargetParam

	lhs, desc, _ := strings.Cut(s, ":")
	p.Description = strings.TrimSpace(desc)

	name, rest, hasValue := strings.Cut(lhs, "=")
	p.Name = strings.TrimSpace(name)
	if p.Name == "" {
		return p, fmt.Errorf("parameter %q has no name", s)
	}
	if hasValue {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return p, fmt.Errorf("parameter %q has an empty value", s)
		}
		p.Value = fields[0]
		p.Unit = strings.Join(fields[1:], " ")
	}
	return p, nil
}

func collectTargetParams(specs []string, file string) ([]recommend.TargetParam, error) {
	var params []recommend.TargetParam
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading params file: %w", err)
		}
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, fmt.Errorf("parsing params file: %w", err)
		}
		for i, p := range params {
			if strings.TrimSpace(p.Name) == "" {
				return nil, fmt.Errorf("params file entry %d has no name", i+1)
			}
		}
	}
	for _, s := range specs {
		p, err := parseTargetParam(s)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func printRecommendationHuman(r *recommend.Report) {
	if !r.Parsed {
		fmt.Println("The recommendation could not be parsed; raw reply follows.")
		fmt.Println()
		fmt.Println(r.Raw)
		return
	}

	fmt.Println("Parameter ranges:")
	for _, p := range r.Parameters {
		fmt.Printf("  %s: [%g, %g] step %g %s\n", p.Name, p.Min, p.Max, p.Step, p.Unit)
		if p.Reason != "" {
			fmt.Printf("    %s\n", wrapText(p.Reason, DetailTextWrapWidth-4, "    "))
		}
	}
	if r.ForceModel != nil {
		fmt.Println()
		fmt.Printf("Force model: %s\n", r.ForceModel.Name)
		if r.ForceModel.Reason != "" {
			fmt.Printf("  %s\n", wrapText(r.ForceModel.Reason, DetailTextWrapWidth-2, "  "))
		}
	}
	if len(r.References) > 0 {
		fmt.Println()
		fmt.Printf("Based on: %s\n", strings.Join(r.References, ", "))
	}
}
