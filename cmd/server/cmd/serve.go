package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/api"
	"github.com/Togather-Foundation/eventhub/internal/api/middleware"
	"github.com/Togather-Foundation/eventhub/internal/auth"
	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/domain/accounts"
	"github.com/Togather-Foundation/eventhub/internal/domain/categories"
	"github.com/Togather-Foundation/eventhub/internal/domain/events"
	"github.com/Togather-Foundation/eventhub/internal/domain/users"
	"github.com/Togather-Foundation/eventhub/internal/jobs"
	"github.com/Togather-Foundation/eventhub/internal/metrics"
	"github.com/Togather-Foundation/eventhub/internal/storage/postgres"
	"github.com/Togather-Foundation/eventhub/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveFlags struct {
	host    string
	port    int
	migrate bool
}

func newServeCmd(global *globalFlags) *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Optionally apply pending database migrations (--migrate)
- Create the administrator account if ADMIN_* variables are set
- Start the refresh token cleaner
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  eventhub serve

  # Start on a specific host and port, migrating first
  eventhub serve --host 127.0.0.1 --port 9090 --migrate

  # Start with a config file
  eventhub serve --config /etc/eventhub/config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if flags.host != "" {
				cfg.Server.Host = flags.host
			}
			if flags.port != 0 {
				cfg.Server.Port = flags.port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, flags.migrate)
		},
	}
	cmd.Flags().StringVar(&flags.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "server port (default: 8080)")
	cmd.Flags().BoolVar(&flags.migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config, migrate bool) error {
	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting eventhub")

	metrics.Init(Version, GitCommit, BuildDate)

	cfg.Tracing.ServiceVersion = Version
	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	if migrate {
		if err := postgres.MigrateUp(cfg.Database.URL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("migrations applied")
	}

	db, err := postgres.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	tokens, err := auth.NewTokenProvider(cfg.Tokens)
	if err != nil {
		return fmt.Errorf("token provider: %w", err)
	}
	accountsService := accounts.NewService(db, auth.NewPasswordHasher(cfg.Hash), tokens, cfg.Tokens.RefreshTTL, logger)

	bootstrapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = bootstrapAdmin(bootstrapCtx, accountsService, cfg, logger)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.Environment)
	handler := api.NewRouter(api.RouterDeps{
		Config: cfg,
		Logger: logger,
		Services: api.Services{
			Accounts:   accountsService,
			Categories: categories.NewService(db, logger),
			Events:     events.NewService(db, cfg.Images, logger),
			Users:      users.NewService(db, logger),
		},
		Tokens:      tokens,
		RateLimiter: limiter,
		DB:          db,
		Build:       api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)

	dbCollector := metrics.NewDBCollector(db.Pool)
	g.Go(func() error {
		dbCollector.Start(gctx, 15*time.Second)
		return nil
	})
	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})
	if cfg.Cleaner.Enabled {
		cleaner := jobs.NewTokenCleaner(db, cfg.Cleaner.Interval, logger)
		g.Go(func() error {
			cleaner.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		dbCollector.Stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// bootstrapAdmin creates the configured administrator unless it exists.
func bootstrapAdmin(ctx context.Context, svc *accounts.Service, cfg config.Config, logger zerolog.Logger) error {
	bootstrap := cfg.AdminBootstrap
	if bootstrap.Email == "" || bootstrap.Password == "" {
		logger.Warn().Msg("admin bootstrap env vars not fully set; skipping")
		return nil
	}
	created, err := svc.EnsureAdmin(ctx, accounts.AdminParams{
		Email:     bootstrap.Email,
		Password:  bootstrap.Password,
		FirstName: bootstrap.FirstName,
		LastName:  bootstrap.LastName,
	})
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	// Email is PII; keep it out of production logs.
	if cfg.IsProduction() {
		logger.Info().Msg("bootstrapped admin user")
	} else {
		logger.Info().Str("email", bootstrap.Email).Msg("bootstrapped admin user")
	}
	return nil
}
