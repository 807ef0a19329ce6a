package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"team-quiz-service/internal/app"
	"team-quiz-service/internal/config"
	"team-quiz-service/internal/logger"
	"team-quiz-service/internal/metrics"
	transport "team-quiz-service/internal/transport/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), opts)
		},
	}
}

func runServer(ctx context.Context, opts *Options) error {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return err
	}
	m := metrics.New()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if b.pool != nil {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	cat, err := loadCatalog(ctx, cfg, b)
	if err != nil {
		return err
	}

	store, err := app.NewAnswerStore(ctx, cat, cfg.TeamList(), snapshotRepository(cfg, b), m)
	if err != nil {
		return err
	}
	service, err := app.NewQuizService(app.Options{
		Catalog:        cat,
		Teams:          cfg.TeamList(),
		Tolerance:      cfg.Tolerance(),
		SubmissionOpen: cfg.SubmissionOpen(),
		Store:          store,
		Logger:         log,
		Metrics:        m,
	})
	if err != nil {
		return err
	}
	admin := app.NewAdminAuth(cfg.Admin.Password, cfg.Admin.PasswordHash)
	api := transport.NewServer(service, admin, log, m, cfg.PublicURL)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       config.Duration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout:      config.Duration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"port":      cfg.Server.Port,
			"questions": len(cat.Questions),
			"teams":     len(cfg.Teams),
			"storage":   cfg.Storage.Backend,
		}).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// loadConfig reads the config file and applies flag/env overrides.
func loadConfig(opts *Options) (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return cfg, nil, err
	}
	if opts.Port != "" {
		cfg.Server.Port = opts.Port
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Format), nil
}
