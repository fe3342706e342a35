package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/warden/pkg/accounts"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/config"
	"github.com/platinummonkey/warden/pkg/credentials"
	"github.com/platinummonkey/warden/pkg/database"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/requestinfo"
	"github.com/platinummonkey/warden/pkg/session"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "warden: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout)
	ctx := context.Background()

	if err := config.WatchLogLevel(ctx, os.Getenv("WARDEN_CONFIG_FILE"), logger); err != nil {
		logger.WithError(err).Warn("config watcher unavailable, log level is fixed")
	}

	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connected")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Redis.Password != "" {
		redisOpts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB >= 0 {
		redisOpts.DB = cfg.Redis.DB
	}
	if cfg.Redis.MaxRetries > 0 {
		redisOpts.MaxRetries = cfg.Redis.MaxRetries
	}
	if cfg.Redis.PoolSize > 0 {
		redisOpts.PoolSize = cfg.Redis.PoolSize
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	auditStore, err := audit.NewStore(db)
	if err != nil {
		return err
	}
	recorder := audit.NewRecorder(auditStore, logger, metrics)
	engine, err := audit.NewEngine(auditStore, metrics)
	if err != nil {
		return err
	}

	accountStore, err := accounts.NewStore(db)
	if err != nil {
		return err
	}
	directory := accounts.NewDirectory(accountStore)
	hasher := credentials.NewHasher()
	manager := accounts.NewManager(accountStore, directory, hasher, recorder)

	sessions, err := session.NewService(
		[]byte(cfg.Session.Secret), cfg.Session.Issuer, cfg.Session.TTL, redisClient, metrics)
	if err != nil {
		return err
	}

	router := mux.NewRouter()
	router.Use(requestinfo.Middleware)
	session.NewHandlers(sessions, directory, manager, hasher).RegisterRoutes(router)

	authMW := middleware.NewAuthMiddleware(sessions, false)

	// Audit log access is restricted to administrators.
	auditRouter := router.PathPrefix("/audit").Subrouter()
	auditRouter.Use(authMW.Handler, middleware.RequireRole("ROLE_ADMIN"))
	audit.NewHandlers(engine).RegisterRoutes(auditRouter)

	accountRouter := router.PathPrefix("/accounts").Subrouter()
	accountRouter.Use(authMW.Handler)
	accounts.NewHandlers(manager).RegisterRoutes(accountRouter)

	var handler http.Handler = router
	if cfg.Observability.MetricsEnabled {
		handler = metrics.InstrumentHandler("api", handler)
	}
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "warden")
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, redisClient, version)
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-statsCtx.Done():
				return
			case <-ticker.C:
				metrics.CollectDBStats(db)
			}
		}
	}()

	var group errgroup.Group
	group.Go(func() error {
		logger.Infof("serving API on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.Infof("serving health and metrics on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
		shutdown.Register(func(ctx context.Context) error {
			return healthServer.Shutdown(ctx)
		})
		shutdown.Register(func(ctx context.Context) error {
			return observability.ShutdownTracing(ctx, tp, logger)
		})
		shutdown.Register(func(ctx context.Context) error {
			stopStats()
			return nil
		})
		return shutdown.Wait()
	})

	return group.Wait()
}
