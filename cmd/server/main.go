package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"PhishSim/internal/api"
	"PhishSim/internal/campaign"
	"PhishSim/internal/config"
	"PhishSim/internal/db"
	"PhishSim/internal/dispatch"
	"PhishSim/internal/email"
	"PhishSim/internal/memstore"
	"PhishSim/internal/metrics"
	"PhishSim/internal/models"
	"PhishSim/internal/templates"
	"PhishSim/internal/tracking"
	"PhishSim/internal/worker"
)

// backend is everything the service needs from persistence. Both the
// postgres store and the in-memory store satisfy it.
type backend interface {
	campaign.Store
	dispatch.Store
	worker.Store
	tracking.Store
	tracking.Index
	templates.Source
}

const shutdownTimeout = 10 * time.Second

func main() {
	root := &cobra.Command{
		Use:           "server",
		Short:         "Phishing simulation campaign service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(func(cfg *config.Config, logger *zap.Logger) error {
				return serve(cmd.Context(), cfg, logger)
			})
		},
	}

	var down bool
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or revert) the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(func(cfg *config.Config, logger *zap.Logger) error {
				store, err := openPostgres(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer store.Close()
				return store.Migrate(cmd.Context(), down, logger)
			})
		},
	}
	migrateCmd.Flags().BoolVar(&down, "down", false, "drop the schema instead of creating it")

	var scenarioID int64
	var subject, bodyFile string
	templateCmd := &cobra.Command{
		Use:   "template",
		Short: "Create or replace the email template of a scenario",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(func(cfg *config.Config, logger *zap.Logger) error {
				content, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("read template body: %w", err)
				}

				store, err := openPostgres(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer store.Close()

				t := &models.Template{ScenarioID: scenarioID, Subject: subject, Content: string(content)}
				if err := store.UpsertTemplate(cmd.Context(), t); err != nil {
					return err
				}
				logger.Info("template stored",
					zap.Int64("scenario_id", t.ScenarioID),
					zap.Int64("template_id", t.ID),
				)
				return nil
			})
		},
	}
	templateCmd.Flags().Int64Var(&scenarioID, "scenario", 0, "scenario id")
	templateCmd.Flags().StringVar(&subject, "subject", "", "email subject")
	templateCmd.Flags().StringVar(&bodyFile, "body", "", "path to the HTML body")
	_ = templateCmd.MarkFlagRequired("scenario")
	_ = templateCmd.MarkFlagRequired("subject")
	_ = templateCmd.MarkFlagRequired("body")

	root.AddCommand(migrateCmd, templateCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withRuntime loads config and builds the logger shared by every command.
func withRuntime(fn func(cfg *config.Config, logger *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var logger *zap.Logger
	if cfg.LogDevelopment {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	defer logger.Sync()

	return fn(cfg, logger)
}

func openPostgres(ctx context.Context, cfg *config.Config) (*db.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return store, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {

	// ------------------------------------------------
	// Storage
	// ------------------------------------------------
	var store backend
	switch cfg.StoreDriver {
	case "memory":
		mem := memstore.New()
		mem.PutTemplate(sampleTemplate(cfg.TrackingURL))
		store = mem
		logger.Warn("using in-memory store, data is lost on exit")
	default:
		pg, err := openPostgres(ctx, cfg)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.Migrate(ctx, false, logger); err != nil {
			return err
		}
		store = pg
	}

	// ------------------------------------------------
	// Token Index (optional Redis)
	// ------------------------------------------------
	var index tracking.Index = store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, resolving tokens from the store", zap.Error(err))
		} else {
			index = tracking.NewRedisIndex(rdb, store, cfg.TokenCacheTTL, logger)
			logger.Info("token index backed by redis", zap.String("addr", cfg.RedisAddr))
		}
	}

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	// ------------------------------------------------
	// Email Sender + Rate Limiter
	// ------------------------------------------------
	sender := email.NewSender(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUser,
		cfg.SMTPPassword,
		cfg.SMTPFrom,
		cfg.RetryAttempts,
	)

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)

	// ------------------------------------------------
	// Worker Pool
	// ------------------------------------------------
	poolCtx, cancelPool := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelPool()

	pool := worker.NewPool(store, sender, logger, worker.Options{
		Workers:     cfg.WorkerCount,
		QueueSize:   cfg.QueueSize,
		Limiter:     limiter,
		SendTimeout: cfg.SMTPTimeout,
		SendDelay:   cfg.SendDelay,
	})
	pool.Start(poolCtx)

	// ------------------------------------------------
	// Services
	// ------------------------------------------------
	engine := dispatch.NewEngine(store, pool, cfg.TrackingURL, logger)
	campaigns := campaign.NewService(
		store,
		templates.NewCache(store, cfg.TemplateCacheTTL),
		engine,
		logger,
	)
	tracker := tracking.NewTracker(store, index, logger)

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Campaigns:   campaigns,
		Tracker:     tracker,
		Log:         logger,
		LandingURL:  cfg.LandingURL,
		JWTSecret:   []byte(cfg.JWTSecret),
		CORSOrigins: cfg.CORSOrigins,
		MaxCSVRows:  cfg.MaxCSVRows,
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty, admin endpoints are unauthenticated")
	}

	apiServer := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           apiHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ------------------------------------------------
	// Run until shutdown
	// ------------------------------------------------
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		return listen(metricsServer)
	})

	g.Go(func() error {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		return listen(apiServer)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down services...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// stop intake first so no request submits to a stopped pool
		errs := []error{
			apiServer.Shutdown(shutdownCtx),
			metricsServer.Shutdown(shutdownCtx),
		}

		drained := make(chan struct{})
		go func() {
			pool.Stop()
			engine.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-shutdownCtx.Done():
			logger.Warn("send queue not drained in time, abandoning in-flight sends")
			cancelPool()
			<-drained
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown with errors", zap.Error(err))
		return err
	}

	logger.Info("application shutdown complete")
	return nil
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// sampleTemplate seeds scenario 1 for the in-memory store. Its link points
// at the click endpoint next to the configured open pixel.
func sampleTemplate(trackingURL string) models.Template {
	link := tracking.ClickURL(trackingURL, models.TrackingPlaceholder)
	return models.Template{
		ScenarioID: 1,
		Subject:    "Action required: verify your account",
		Content: `<p>Hello,</p>
<p>We detected unusual sign-in activity. Please <a href="` + link + `">review your account</a>.</p>`,
	}
}
