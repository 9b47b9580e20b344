package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/recall/internal/config"
	"github.com/harun/recall/internal/observability"
	"github.com/harun/recall/internal/tracing"
	"github.com/harun/recall/pkg/cron"
)

const reconcileJob = "reconcile"

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled maintenance and expose metrics",
		Long: `Serve runs the reconciliation sweep on the configured maintenance schedule,
serves Prometheus metrics and reloads the log level and schedule when the
config file changes. It stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = tracing.NewCommandContext(ctx, cmd.Name())

			a, err := openApp(ctx, *opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := startServer(a)
			if err != nil {
				return err
			}

			<-ctx.Done()
			s.log.Info().Msg("Received shutdown signal")
			return s.stop()
		},
	}
}

// server owns the long-running pieces of `recall serve`
type server struct {
	app     *app
	log     zerolog.Logger
	cron    *cron.Service
	http    *http.Server
	addr    string
	watcher *config.Watcher

	mu          sync.Mutex
	jobID       string
	maintenance config.MaintenanceConfig
}

func startServer(a *app) (*server, error) {
	s := &server{
		app: a,
		log: a.Logger().With().Str("component", "serve").Logger(),
	}

	svc, err := cron.NewService(cron.ServiceOptions{
		StorePath: a.cfg.Maintenance.StatePath,
		Logger:    a.Logger(),
		OnEvent:   s.onEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create maintenance service: %w", err)
	}
	s.cron = svc

	if err := s.registerReconcile(a.cfg.Maintenance); err != nil {
		_ = svc.Stop()
		return nil, err
	}

	if addr := a.cfg.Maintenance.MetricsAddr; addr != "" {
		if err := s.serveMetrics(addr); err != nil {
			_ = svc.Stop()
			return nil, err
		}
	}

	if a.loader != nil {
		w, err := config.NewWatcher(a.loader, a.Logger(), s.applyConfig)
		if err != nil {
			s.log.Warn().Err(err).Msg("Config watch unavailable, changes need a restart")
		} else {
			s.watcher = w
		}
	}

	s.log.Info().
		Str("schedule", a.cfg.Maintenance.Schedule).
		Bool("enabled", a.cfg.Maintenance.Enabled).
		Str("metrics", s.addr).
		Msg("Recall maintenance started")
	return s, nil
}

func (s *server) serveMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.addr = ln.Addr().String()
	s.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// registerReconcile schedules the reconciliation sweep under mc
func (s *server) registerReconcile(mc config.MaintenanceConfig) error {
	schedule, err := cron.ParseSchedule(mc.Schedule)
	if err != nil {
		return fmt.Errorf("invalid maintenance schedule: %w", err)
	}

	job, err := s.cron.AddJob(cron.AddParams{
		Name:        reconcileJob,
		Description: "Merge conflicting salient memories",
		Enabled:     mc.Enabled,
		Schedule:    schedule,
		Task:        s.reconcile,
	})
	if err != nil {
		return fmt.Errorf("failed to register %s job: %w", reconcileJob, err)
	}

	s.mu.Lock()
	s.jobID = job.ID
	s.maintenance = mc
	s.mu.Unlock()
	return nil
}

func (s *server) reconcile(ctx context.Context) error {
	report, err := s.app.manager.ResolveMemoryConflicts(ctx)
	if err != nil {
		return err
	}
	log := tracing.LoggerFromContext(ctx, s.log)
	log.Info().
		Int("examined", report.Examined).
		Int("pairs", report.Pairs).
		Int("merged", report.Merged).
		Msg("Reconciliation sweep finished")
	return nil
}

// applyConfig takes the reloadable settings from a changed config file.
// Store, provider and threshold changes need a restart.
func (s *server) applyConfig(cfg *config.Config) {
	if err := s.app.log.SetLevel(cfg.Logging.Level); err != nil {
		s.log.Warn().Err(err).Msg("Ignoring log level change")
	}

	s.mu.Lock()
	current, jobID := s.maintenance, s.jobID
	s.mu.Unlock()

	next := cfg.Maintenance
	if next.Schedule == current.Schedule && next.Enabled == current.Enabled {
		return
	}
	if _, err := cron.ParseSchedule(next.Schedule); err != nil {
		s.log.Warn().Err(err).Str("schedule", next.Schedule).Msg("Ignoring invalid maintenance schedule")
		return
	}

	if err := s.cron.RemoveJob(jobID); err != nil && !errors.Is(err, cron.ErrJobNotFound) {
		s.log.Error().Err(err).Msg("Failed to remove maintenance job")
		return
	}
	if err := s.registerReconcile(next); err != nil {
		s.log.Error().Err(err).Msg("Failed to reschedule maintenance job")
		return
	}
	s.log.Info().
		Str("schedule", next.Schedule).
		Bool("enabled", next.Enabled).
		Msg("Maintenance schedule updated")
}

func (s *server) onEvent(evt cron.Event) {
	s.log.Debug().
		Str("action", string(evt.Action)).
		Str("jobId", evt.JobID).
		Str("runId", evt.RunID).
		Str("status", evt.Status).
		Msg("Maintenance event")
}

func (s *server) stop() error {
	var errs []error

	if s.watcher != nil {
		errs = append(errs, s.watcher.Stop())
	}
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown metrics server: %w", err))
		}
	}
	if err := s.cron.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop maintenance service: %w", err))
	}

	s.log.Info().Msg("Recall maintenance stopped")
	return errors.Join(errs...)
}
