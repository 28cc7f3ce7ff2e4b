package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plasmarag/plasmarag/internal/config"
	"github.com/plasmarag/plasmarag/internal/storage"
	"github.com/plasmarag/plasmarag/internal/vindex"
)

var (
	initEmbeddingProvider string
	initEmbeddingModel    string
	initEmbeddingDims     int
	initPolicy            string
)

func init() {
	initCmd.Flags().StringVar(&initEmbeddingProvider, "embedding-provider", config.ProviderOpenAI, "Embedding provider: openai or ollama")
	initCmd.Flags().StringVar(&initEmbeddingModel, "embedding-model", "", "Embedding model (default depends on provider)")
	initCmd.Flags().IntVar(&initEmbeddingDims, "embedding-dims", 0, "Embedding dimensions (default depends on provider)")
	initCmd.Flags().StringVar(&initPolicy, "duplicate-policy", config.PolicyReject, "Duplicate policy: reject or replace")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new knowledge base",
	Long: `Initialize a new knowledge base in the current directory.

Creates:
  .plasmarag/
  ├── config.json     # Default config
  ├── knowledge.db    # Metadata store
  ├── index/          # papers.idx, forces.idx
  ├── figures/        # Rendered pages
  └── locks/          # Writer lock files

The embedding model and dimensions are fixed once the indices exist.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}

	// Check if already initialized
	if config.IsRepository(root) {
		exitWithError(ExitError, "directory already contains a plasmarag knowledge base")
	}

	cfg := config.Default()
	cfg.EmbeddingProvider = initEmbeddingProvider
	cfg.DuplicatePolicy = initPolicy
	if initEmbeddingProvider == config.ProviderOllama {
		cfg.EmbeddingModel = "nomic-embed-text"
		cfg.EmbeddingDims = 768
	}
	if initEmbeddingModel != "" {
		cfg.EmbeddingModel = initEmbeddingModel
	}
	if initEmbeddingDims > 0 {
		cfg.EmbeddingDims = initEmbeddingDims
	}
	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	// Create directory structure
	for _, dir := range []string{
		config.DataPath(root),
		config.IndexPath(root),
		config.FiguresPath(root),
		config.LocksPath(root),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			exitWithError(ExitError, "creating %s: %v", dir, err)
		}
	}

	if err := cfg.Save(root); err != nil {
		exitWithError(ExitError, "creating config.json: %v", err)
	}

	db, err := storage.OpenDB(config.DBPath(root))
	if err != nil {
		exitWithError(ExitError, "creating database: %v", err)
	}
	db.Close()

	if _, err := vindex.OpenSet(config.IndexPath(root), cfg.EmbeddingModel, cfg.EmbeddingDims); err != nil {
		exitWithError(ExitError, "creating vector indices: %v", err)
	}

	// Output success
	if humanOutput {
		fmt.Printf("Initialized plasmarag knowledge base in %s\n", root)
		fmt.Printf("  Embeddings: %s/%s (%d dims)\n", cfg.EmbeddingProvider, cfg.EmbeddingModel, cfg.EmbeddingDims)
	} else {
		outputJSON(StatusResponse{
			Status: "initialized",
			Path:   root,
		})
	}

	return nil
}
