// Package main provides the prag CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/plasmarag/plasmarag/internal/config"
	"github.com/plasmarag/plasmarag/internal/logger"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool

	// verboseOutput enables debug logging on stderr
	verboseOutput bool
)

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "prag",
	Short: "Complex plasma literature knowledge base",
	Long: `prag builds a searchable knowledge base from complex plasma papers.

Core features:
  - Two-stage structured extraction of parameters and force models from PDFs
  - Figure captions linked to extracted parameters
  - Dual vector index (papers, force models) kept consistent with SQLite
  - Simulation parameter recommendations grounded in retrieved papers

Data lives in .plasmarag/ at the knowledge-base root.
All commands output JSON by default for agent integration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine
		_ = godotenv.Load()

		opts := logger.Options{Console: humanOutput}
		if verboseOutput {
			opts.Level = "debug"
		}
		return logger.Init(opts)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verboseOutput, "verbose", "v", false, "Log progress to stderr")
	rootCmd.Version = Version
}

// getStartingDirectory returns the directory to start searching for a knowledge base.
// Checks PRAG_ROOT and the global default_root first, then the working directory.
func getStartingDirectory() (string, int) {
	if root := config.DefaultRoot(); root != "" {
		return root, 0
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", outputError(ExitError, "getting current directory: %v", err)
	}
	return cwd, 0
}

// mustFindRepository finds and validates the knowledge base, exits on error.
// Returns the knowledge-base root path.
func mustFindRepository() string {
	start, exitCode := getStartingDirectory()
	if exitCode != 0 {
		os.Exit(exitCode)
	}

	root, err := config.FindRepository(start)
	if err != nil {
		exitWithError(ExitConfigError, "%v\n\nRun 'prag init' to create a knowledge base.", err)
	}
	return root
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig(root string) *config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}
