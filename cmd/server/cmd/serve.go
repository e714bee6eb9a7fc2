package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Togather-Foundation/favorites/internal/api"
	"github.com/Togather-Foundation/favorites/internal/api/handlers"
	"github.com/Togather-Foundation/favorites/internal/api/middleware"
	"github.com/Togather-Foundation/favorites/internal/auth"
	"github.com/Togather-Foundation/favorites/internal/config"
	"github.com/Togather-Foundation/favorites/internal/directory"
	"github.com/Togather-Foundation/favorites/internal/directory/events"
	"github.com/Togather-Foundation/favorites/internal/directory/users"
	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
	"github.com/Togather-Foundation/favorites/internal/metrics"
	"github.com/Togather-Foundation/favorites/internal/provision"
	"github.com/Togather-Foundation/favorites/internal/storage"
	"github.com/Togather-Foundation/favorites/internal/telemetry"
)

type serveOptions struct {
	host string
	port int
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the favorites HTTP server",
		Long: `Start the favorites HTTP server.

The server loads configuration (defaults, --config YAML, .env, environment),
opens the list store, connects the event and user directories and serves the
API until SIGINT or SIGTERM.

Examples:
  # Start with configuration from the environment
  server serve

  # Start on a specific port with debug logging
  server serve --port 9090 --log-level debug

  # Start with a config file
  server serve --config /etc/togather/favorites.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if opts.host != "" {
				cfg.Server.Host = opts.host
			}
			if opts.port != 0 {
				cfg.Server.Port = opts.port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "server port (default: 8080)")
	return cmd
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, cfg config.Config) error {
	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting favorites server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	openCtx, cancelOpen := context.WithTimeout(ctx, 30*time.Second)
	opened, err := storage.Open(openCtx, storage.Options{
		Driver:      cfg.Storage.Driver,
		DatabaseURL: cfg.Storage.DatabaseURL,
		SQLitePath:  cfg.Storage.SQLitePath,
		AutoMigrate: cfg.Storage.AutoMigrate,
	})
	cancelOpen()
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	defer func() {
		if err := opened.Store.Close(); err != nil {
			logger.Warn().Err(err).Msg("close store")
		}
	}()
	logger.Info().Str("driver", cfg.Storage.Driver).Msg("list store ready")

	checks := map[string]handlers.Pinger{"store": opened.Store}

	var guard favorites.ProvisionGuard = favorites.NewLocalGuard()
	if cfg.Redis.URL != "" {
		client, err := provision.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		guard = provision.NewRedisGuard(client, logger, provision.WithLockTTL(cfg.Redis.LockTTL))
		checks["redis"] = redisPinger{client}
		logger.Info().Msg("provisioning guard: redis")
	}

	directoryOpts := []directory.Option{
		directory.WithTimeout(cfg.Directories.Timeout),
		directory.WithRateLimit(cfg.Directories.RateLimit, cfg.Directories.Burst),
		directory.WithUserAgent("togather-favorites/" + Version),
	}
	service := favorites.NewService(
		opened.Store,
		events.NewClient(cfg.Directories.EventsURL, directoryOpts...),
		users.NewClient(cfg.Directories.UsersURL, directoryOpts...),
		logger,
		favorites.WithProvisionGuard(guard),
	)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.Environment)
	handler := api.NewRouter(cfg, logger, api.Deps{
		Service:     service,
		Identity:    auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.JWTIssuer),
		RateLimiter: rateLimiter,
		Checks:      checks,
		Build:       api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate},
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return gracefulShutdown(server, cfg.Server.ShutdownTimeout, logger)
	})
	g.Go(func() error {
		rateLimiter.Run(gctx, 5*time.Minute)
		return nil
	})
	if opened.Stats != nil {
		collector := metrics.NewDBCollector(opened.Stats)
		g.Go(func() error {
			collector.Run(gctx, 15*time.Second)
			return nil
		})
	}

	return g.Wait()
}

func gracefulShutdown(server *http.Server, timeout time.Duration, logger zerolog.Logger) error {
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
