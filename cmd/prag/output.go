package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/plasmarag/plasmarag/internal/paper"
)

// Constants for output formatting.
const (
	DefaultSearchLimit = 5  // Default top-k for semantic search
	DefaultListLimit   = 50 // Default limit for list command

	SearchTitleMaxLen = 70 // Used in search result summaries
	ListTitleMaxLen   = 60 // Used in list command output
	DetailTitleMaxLen = 70 // Used in get command detail view

	TextWrapWidth       = 60 // Standard text wrap width
	DetailTextWrapWidth = 68 // Wider wrap for detail views
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputJSONLine writes a value as compact JSON on one line, for streams.
func outputJSONLine(v interface{}) error {
	return json.NewEncoder(os.Stdout).Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// outputError writes an error message to stderr and returns the exit code.
func outputError(code int, format string, args ...interface{}) int {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	return code
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// exitWithErr exits with the code mapped from err.
func exitWithErr(err error, context string) {
	exitWithError(exitCodeFor(err), "%s: %v", context, err)
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	ID     string `json:"id,omitempty"`
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PaperSummary is the compact form of a paper used by list and search.
type PaperSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Journal  string   `json:"journal,omitempty"`
	Year     int      `json:"year,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Status   string   `json:"status"`
}

func summarize(p paper.Paper) PaperSummary {
	return PaperSummary{
		ID:       p.ID,
		Title:    p.Title,
		Journal:  p.Journal,
		Year:     p.Year,
		Keywords: p.Keywords,
		Status:   string(p.Status),
	}
}

// printPaperSummary prints one numbered paper line in human format.
func printPaperSummary(n int, p PaperSummary) {
	year := "n.d."
	if p.Year > 0 {
		year = fmt.Sprintf("%d", p.Year)
	}
	fmt.Printf("%d. %s\n", n, truncateString(p.Title, ListTitleMaxLen))
	fmt.Printf("   %s (%s)  %s\n", p.Journal, year, p.ID)
}

// printPaperDetail prints every extracted field of a paper.
func printPaperDetail(p *paper.Paper) {
	fmt.Println(p.ID)
	fmt.Println(strings.Repeat("=", DetailTitleMaxLen))
	fmt.Println()

	fmt.Printf("Title:    %s\n", wrapText(p.Title, TextWrapWidth, "          "))
	if p.Journal != "" {
		fmt.Printf("Journal:  %s\n", p.Journal)
	}
	if p.Year > 0 {
		fmt.Printf("Year:     %d\n", p.Year)
	}
	if p.DOI != "" {
		fmt.Printf("DOI:      %s\n", p.DOI)
	}
	if p.Status.IsLive() {
		fmt.Printf("Status:   %s\n", p.Status)
	} else {
		fmt.Printf("Status:   %s (title free for re-ingestion)\n", p.Status)
	}
	if p.Supersedes != "" {
		fmt.Printf("Replaces: %s\n", p.Supersedes)
	}

	printList("Innovations", p.Innovations)
	printBlock("Environment", p.Environment)
	printBlock("Background", p.Background)
	printList("Observed phenomena", p.Phenomena)
	printBlock("Simulation results", p.SimulationResults)

	if len(p.Parameters) > 0 {
		fmt.Println()
		fmt.Println("Parameters:")
		byCategory := p.ParametersByCategory()
		for _, c := range paper.Categories {
			params := byCategory[c]
			if len(params) == 0 {
				continue
			}
			fmt.Printf("  [%s]\n", c)
			for _, param := range params {
				name := param.Name
				if param.Symbol != "" {
					name += " (" + param.Symbol + ")"
				}
				fmt.Printf("    %s = %s %s\n", name, param.Value, param.Unit)
				if param.Meaning != "" {
					fmt.Printf("      %s\n", wrapText(param.Meaning, DetailTextWrapWidth-6, "      "))
				}
			}
		}
	}

	if len(p.ForceModels) > 0 {
		fmt.Println()
		fmt.Println("Force models:")
		for _, f := range p.ForceModels {
			fmt.Printf("  %s: %s\n", f.Name, f.Formula)
			if f.Meaning != "" {
				fmt.Printf("    %s\n", wrapText(f.Meaning, DetailTextWrapWidth-4, "    "))
			}
		}
	}

	if len(p.Figures) > 0 {
		fmt.Println()
		fmt.Println("Figures:")
		for _, fig := range p.Figures {
			caption := fig.Caption
			if caption == "" {
				caption = "(no caption)"
			}
			fmt.Printf("  p%d %s\n", fig.Page, fig.ImagePath)
			fmt.Printf("    %s\n", wrapText(caption, DetailTextWrapWidth-4, "    "))
			if len(fig.LinkedParameters) > 0 {
				fmt.Printf("    linked: %s\n", strings.Join(fig.LinkedParameters, ", "))
			}
		}
	}
}

func printList(label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Println()
	fmt.Printf("%s:\n", label)
	for _, item := range items {
		fmt.Printf("  - %s\n", wrapText(item, DetailTextWrapWidth-4, "    "))
	}
}

func printBlock(label, text string) {
	if text == "" {
		return
	}
	fmt.Println()
	fmt.Printf("%s:\n", label)
	fmt.Printf("  %s\n", wrapText(text, DetailTextWrapWidth, "  "))
}

// truncateString truncates a string to maxLen runes, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}

// wrapText wraps text to the specified width with indentation on subsequent lines.
func wrapText(text string, width int, indent string) string {
	if len(text) <= width {
		return text
	}

	var lines []string
	words := strings.Fields(text)
	var currentLine strings.Builder

	for _, word := range words {
		if currentLine.Len() == 0 {
			currentLine.WriteString(word)
		} else if currentLine.Len()+1+len(word) <= width {
			currentLine.WriteString(" ")
			currentLine.WriteString(word)
		} else {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
			currentLine.WriteString(word)
		}
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	return strings.Join(lines, "\n"+indent)
}
