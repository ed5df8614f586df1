// Registryd mirrors remote package-index repositories and streams the
// resulting change events to a downstream sink.
//
// Usage:
//
//	# Start with a config file
//	registryd --config /etc/registryd/config.yaml
//
//	# Override settings via environment
//	REGISTRYD_LOGGING_LEVEL=debug registryd --config config.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/registryd/internal/config"
	"github.com/fyrsmithlabs/registryd/internal/execx"
	"github.com/fyrsmithlabs/registryd/internal/gitmirror"
	httpapi "github.com/fyrsmithlabs/registryd/internal/http"
	"github.com/fyrsmithlabs/registryd/internal/index"
	"github.com/fyrsmithlabs/registryd/internal/logging"
	"github.com/fyrsmithlabs/registryd/internal/sink"
	"github.com/fyrsmithlabs/registryd/internal/telemetry"
	"github.com/fyrsmithlabs/registryd/internal/translate"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "registryd",
		Short:        "Mirror package-index repositories and stream change events",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(*cobra.Command, []string) {
			fmt.Printf("registryd %s (commit %s, built %s)\n", version, gitCommit, buildDate)
		},
	})
	return cmd
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	provider, err := telemetry.NewProvider(cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	metrics := telemetry.NewMetrics(logger)

	eventSink, cleanup, err := buildSink(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := os.MkdirAll(cfg.Mirrors.Dir, 0o755); err != nil {
		return fmt.Errorf("creating mirrors dir %s: %w", cfg.Mirrors.Dir, err)
	}

	runner := execx.NewRunner(logger.Named("git"))
	translator := translate.NewTranslator()

	workers := make(map[string]*index.Worker, len(cfg.Mirrors.Repos))
	indexers := make(map[string]httpapi.Indexer, len(cfg.Mirrors.Repos))
	for _, m := range cfg.Mirrors.Repos {
		dir := m.Dir
		if dir == "" {
			dir = gitmirror.DirNameFromURL(m.URL)
		}

		repo, err := gitmirror.NewService(filepath.Join(cfg.Mirrors.Dir, dir), m.URL, runner, logger)
		if err != nil {
			return fmt.Errorf("mirror %s: %w", m.Name, err)
		}

		worker, err := index.NewWorker(index.WorkerConfig{
			Mirror:     m.Name,
			Repository: repo,
			Translator: translator,
			Sink:       eventSink,
			Logger:     logger,
			Metrics:    metrics,
		})
		if err != nil {
			return fmt.Errorf("mirror %s: %w", m.Name, err)
		}
		workers[m.Name] = worker
		indexers[m.Name] = worker
	}

	server, err := httpapi.NewServer(indexers, logger, &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	for _, worker := range workers {
		w := worker
		g.Go(func() error {
			if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	// Kick off the initial run for every mirror and arm the configured
	// periodic schedules.
	for _, m := range cfg.Mirrors.Repos {
		worker := workers[m.Name]
		if err := worker.Index(); err != nil {
			logger.Warn("initial index trigger failed", zap.String("mirror", m.Name), zap.Error(err))
		}
		if m.AutoIndex {
			if err := worker.StartAutoIndex(m.Interval.Duration()); err != nil {
				logger.Warn("auto-index start failed", zap.String("mirror", m.Name), zap.Error(err))
			}
		}
	}

	logger.Info("registryd started",
		zap.Int("mirrors", len(workers)),
		zap.String("sink", cfg.Sink.Provider),
		zap.String("version", version))

	return g.Wait()
}

// buildSink constructs the configured sink and a cleanup for its resources.
func buildSink(cfg *config.Config, logger *zap.Logger) (sink.Sink, func(), error) {
	switch cfg.Sink.Provider {
	case "nats":
		nc, err := nats.Connect(cfg.Sink.NATS.URL, nats.Name("registryd"))
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to nats at %s: %w", cfg.Sink.NATS.URL, err)
		}
		s, err := sink.NewNATSSink(nc, cfg.Sink.NATS.SubjectPrefix)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		cleanup := func() {
			if err := s.Close(); err != nil {
				logger.Warn("sink close failed", zap.Error(err))
			}
			nc.Close()
		}
		return s, cleanup, nil
	default:
		return sink.NewLogSink(logger.Named("sink")), func() {}, nil
	}
}
