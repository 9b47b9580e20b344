package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/recall/internal/config"
	"github.com/harun/recall/internal/logger"
	"github.com/harun/recall/internal/observability"
	"github.com/harun/recall/internal/tracing"
	"github.com/harun/recall/pkg/embedding"
	"github.com/harun/recall/pkg/llm"
	"github.com/harun/recall/pkg/memory"
	"github.com/harun/recall/pkg/oracle"
	"github.com/harun/recall/pkg/vectorstore"
	"github.com/harun/recall/pkg/vectorstore/chromem"
	"github.com/harun/recall/pkg/vectorstore/pgvector"
	"github.com/harun/recall/pkg/vectorstore/sqlitevec"
)

const serviceName = "recall"

// app is the wired memory stack one command runs against
type app struct {
	cfg     *config.Config
	loader  *config.Loader
	log     *logger.Logger
	manager *memory.Manager
	closers []func() error
}

// Logger returns the zerolog logger of the app
func (a *app) Logger() zerolog.Logger {
	return a.log.GetZerolog()
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openApp builds the app for a command. Tests swap it for an in-memory stack.
var openApp = bootstrap

func bootstrap(ctx context.Context, opts rootOptions, console bool) (*app, error) {
	loader := config.NewLoader(opts.configPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(logger.FromConfig(cfg.Logging, console || opts.verbose))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, loader: loader, log: log}
	a.closers = append(a.closers, log.Close)

	if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
		log.Warn().Err(err).Str("path", cfg.Logging.AuditFile).Msg("Failed to open audit log, audit disabled")
		observability.DisableAudit()
	}
	a.closers = append(a.closers, func() error { return observability.GetAuditLogger().Close() })

	if err := initTracing(cfg); err != nil {
		log.Warn().Err(err).Str("path", cfg.Tracing.File).Msg("Failed to initialize tracing, continuing without span export")
	} else {
		a.closers = append(a.closers, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return tracing.ShutdownOpenTelemetry(shutdownCtx)
		})
	}

	mgr, err := buildManager(ctx, cfg, log.GetZerolog())
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.manager = mgr
	a.closers = append(a.closers, mgr.Close)

	return a, nil
}

// initTracing installs the tracer provider, exporting spans to the rotating
// trace file when tracing is enabled
func initTracing(cfg *config.Config) error {
	opts := tracing.Options{ServiceName: serviceName}
	if cfg.Tracing.Enabled {
		w, err := logger.NewRotatingWriter(cfg.Tracing.File, int64(cfg.Logging.MaxSize)<<20, cfg.Logging.MaxAge, cfg.Logging.Compress)
		if err != nil {
			return err
		}
		opts.Output = w
	}
	if err := tracing.InitOpenTelemetry(opts); err != nil {
		if c, ok := opts.Output.(io.Closer); ok {
			_ = c.Close()
		}
		return err
	}
	return nil
}

// buildManager wires store, embedder and oracle from cfg
func buildManager(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*memory.Manager, error) {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	emb, err := embedding.New(embedding.Config{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
		CacheSize: cfg.Embedding.CacheSize,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	gen, err := llm.New(llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create llm generator: %w", err)
	}

	orc, err := oracle.New(oracle.Config{Generator: gen, Logger: log})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	mgr, err := memory.NewManager(memory.Config{
		Store:    store,
		Embedder: emb,
		Oracle:   orc,
		Logger:   log,
		Policy:   policyFrom(cfg.Memory),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return mgr, nil
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (vectorstore.Store, error) {
	var (
		store vectorstore.Store
		err   error
	)
	switch cfg.Store.Backend {
	case "chromem":
		store, err = chromem.New(chromem.Config{
			Namespace: cfg.Store.Namespace,
			Dimension: cfg.Embedding.Dimension,
			Path:      cfg.Store.Path,
			Compress:  cfg.Store.Compress,
		})
	case "sqlite":
		store, err = sqlitevec.New(sqlitevec.Config{
			DBPath:    cfg.Store.Path,
			Namespace: cfg.Store.Namespace,
			Dimension: cfg.Embedding.Dimension,
			Logger:    log,
		})
	case "postgres":
		store, err = pgvector.New(ctx, pgvector.Config{
			DSN:       cfg.Store.DSN,
			Namespace: cfg.Store.Namespace,
			Dimension: cfg.Embedding.Dimension,
		})
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}

	log.Info().
		Str("backend", cfg.Store.Backend).
		Str("namespace", cfg.Store.Namespace).
		Msg("Vector store opened")
	return store, nil
}

func policyFrom(c config.MemoryConfig) memory.Policy {
	return memory.Policy{
		DuplicateThreshold:     c.DuplicateThreshold,
		TieBand:                c.TieBand,
		MinContentLength:       c.MinContentLength,
		ReconcileBatch:         c.ReconcileBatch,
		ConsolidateMin:         c.ConsolidateMin,
		ConsolidatedImportance: c.ConsolidatedImportance,
	}
}

// withApp opens the app under a command-scoped trace context and closes it
// after fn returns.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := tracing.NewCommandContext(cmd.Context(), cmd.Name())

	a, err := openApp(ctx, *opts, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
	}()

	return fn(ctx, a)
}
