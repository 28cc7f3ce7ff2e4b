package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/plasmarag/plasmarag/internal/config"
	"github.com/plasmarag/plasmarag/internal/dedup"
	"github.com/plasmarag/plasmarag/internal/embedding"
	"github.com/plasmarag/plasmarag/internal/extract"
	"github.com/plasmarag/plasmarag/internal/figure"
	"github.com/plasmarag/plasmarag/internal/ingest"
	"github.com/plasmarag/plasmarag/internal/llm"
	"github.com/plasmarag/plasmarag/internal/lock"
	"github.com/plasmarag/plasmarag/internal/logger"
	"github.com/plasmarag/plasmarag/internal/pdf"
	"github.com/plasmarag/plasmarag/internal/recommend"
	"github.com/plasmarag/plasmarag/internal/retrieval"
	"github.com/plasmarag/plasmarag/internal/storage"
	"github.com/plasmarag/plasmarag/internal/vindex"
)

// app holds the opened services of one knowledge base.
type app struct {
	root     string
	cfg      *config.Config
	db       *storage.DB
	set      *vindex.Set
	locks    *lock.Registry
	client   *llm.Client
	embedder embedding.Provider
}

// mustOpenApp opens the store and both indices of the enclosing knowledge
// base, exits on error. The caller is responsible for calling Close().
func mustOpenApp() *app {
	root := mustFindRepository()
	cfg := mustLoadConfig(root)

	db, err := storage.OpenDB(config.DBPath(root))
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}

	set, err := vindex.OpenSet(config.IndexPath(root), cfg.EmbeddingModel, cfg.EmbeddingDims)
	if err != nil {
		db.Close()
		exitWithErr(err, "opening vector indices")
	}

	a := &app{
		root:  root,
		cfg:   cfg,
		db:    db,
		set:   set,
		locks: lock.New(config.LocksPath(root)),
	}
	a.client = newClient(cfg)
	a.embedder = newEmbedder(cfg, a.client)
	return a
}

// Close releases the store.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		logger.L().Warn("closing database", zap.Error(err))
	}
}

// newClient builds the model service client. A missing key is reported on
// first use, so commands that never call a model still work.
func newClient(cfg *config.Config) *llm.Client {
	opts := []llm.ClientOption{
		llm.WithBaseURL(config.ResolveBaseURL(cfg.BaseURL)),
		llm.WithTimeout(cfg.RequestTimeout()),
		llm.WithRateLimit(cfg.RequestsPerSecond),
	}
	retry := llm.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries
	opts = append(opts, llm.WithRetry(retry))
	if key, err := config.ResolveAPIKey(); err == nil {
		opts = append(opts, llm.WithAPIKey(key))
	}
	return llm.NewClient(opts...)
}

func newEmbedder(cfg *config.Config, client *llm.Client) embedding.Provider {
	if cfg.EmbeddingProvider == config.ProviderOllama {
		opts := []embedding.OllamaOption{
			embedding.WithModel(cfg.EmbeddingModel),
			embedding.WithDimensions(cfg.EmbeddingDims),
			embedding.WithTimeout(cfg.RequestTimeout()),
		}
		if cfg.EmbeddingURL != "" {
			opts = append(opts, embedding.WithBaseURL(cfg.EmbeddingURL))
		}
		return embedding.NewOllamaProvider(opts...)
	}
	return embedding.NewOpenAIProvider(client,
		embedding.WithOpenAIModel(cfg.EmbeddingModel),
		embedding.WithOpenAIDimensions(cfg.EmbeddingDims, false))
}

// mustRequireAPIKey exits unless a model service key is configured.
func mustRequireAPIKey() {
	if _, err := config.ResolveAPIKey(); err != nil {
		exitWithErr(err, "model service")
	}
}

// mustValidateEmbedder checks that a local Ollama server is reachable and has
// the configured model pulled. Remote providers are checked on first use.
func (a *app) mustValidateEmbedder() {
	ollama, ok := a.embedder.(*embedding.OllamaProvider)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ollama.IsAvailable(ctx); err != nil {
		exitWithError(ExitConfigError, "Ollama is not reachable: %v\nStart it with: ollama serve", err)
	}
	found, err := ollama.HasModel(ctx)
	if err != nil {
		exitWithError(ExitConfigError, "checking Ollama models: %v", err)
	}
	if !found {
		exitWithError(ExitConfigError, "embedding model %s is not available\nPull it with: ollama pull %s", ollama.ModelName(), ollama.ModelName())
	}
}

func (a *app) dedup(policy string) *dedup.Service {
	if policy == "" {
		policy = a.cfg.DuplicatePolicy
	}
	return dedup.New(a.db, dedup.Policy(policy))
}

func (a *app) writer(dd *dedup.Service) *ingest.Writer {
	return ingest.NewWriter(ingest.WriterOptions{
		Store:       a.db,
		Dedup:       dd,
		Papers:      a.set.Papers(),
		Forces:      a.set.Forces(),
		Embedder:    a.embedder,
		Locks:       a.locks,
		LockTimeout: a.cfg.LockTimeout(),
	})
}

// pipelineOptions overrides configuration for one ingest run.
type pipelineOptions struct {
	policy    string
	noFigures bool
}

func (a *app) pipeline(opts pipelineOptions) (*ingest.Pipeline, *ingest.Writer) {
	dd := a.dedup(opts.policy)
	w := a.writer(dd)

	extractor := extract.New(a.client, extract.Options{
		Understanding: extract.StagePolicy{Model: a.cfg.UnderstandingModel, MaxAttempts: a.cfg.UnderstandingAttempts},
		Formatting:    extract.StagePolicy{Model: a.cfg.FormattingModel, MaxAttempts: a.cfg.FormattingAttempts},
		MaxInputChars: a.cfg.MaxInputChars,
	})

	var parserOpts []pdf.ParserOption
	var annotator ingest.Annotator
	if !opts.noFigures && !a.cfg.DisableFigures {
		renderer := pdf.NewPdftoppmRenderer(a.cfg.RenderDPI)
		if renderer.Available() {
			parserOpts = append(parserOpts, pdf.WithRenderer(renderer, a.cfg.FigurePages))
			annotator = figure.New(a.client, figure.Options{
				Dir:      config.FiguresPath(a.root),
				Model:    a.cfg.VisionModel,
				MaxPages: a.cfg.FigurePages,
				Workers:  a.cfg.FigureWorkers,
			})
		} else {
			logger.L().Warn("pdftoppm not found, ingesting without figures")
		}
	}

	return ingest.NewPipeline(pdf.NewParser(parserOpts...), extractor, annotator, dd, w), w
}

func (a *app) retrieval() (*retrieval.Service, error) {
	return retrieval.FromSet(a.embedder, a.set, a.db)
}

func (a *app) synthesizer(r recommend.Retriever, topK int) *recommend.Synthesizer {
	return recommend.New(a.client, r, recommend.Options{Model: a.cfg.RecommendModel, TopK: topK})
}

// recoverPending completes interrupted commits before new writes.
func recoverPending(ctx context.Context, w *ingest.Writer) {
	report, err := w.Recover(ctx, ingest.RecoverOptions{})
	if err != nil {
		logger.L().Warn("startup recovery failed", zap.Error(err))
		return
	}
	if len(report.Failed) > 0 {
		logger.L().Warn("some pending papers could not be recovered",
			zap.Int("failed", len(report.Failed)))
	}
}

// commandContext returns a context cancelled on interrupt and, when
// timeout is positive, after timeout.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
