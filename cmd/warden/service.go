package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/wardenchat/warden/automod/auditlog"
	"github.com/wardenchat/warden/automod/bridge"
	"github.com/wardenchat/warden/automod/cachestore"
	"github.com/wardenchat/warden/automod/config"
	"github.com/wardenchat/warden/automod/configstore"
	"github.com/wardenchat/warden/automod/consumer"
	"github.com/wardenchat/warden/automod/countstore"
	"github.com/wardenchat/warden/automod/engine"
	"github.com/wardenchat/warden/automod/rules"
	"github.com/wardenchat/warden/automod/setstore"
	"github.com/wardenchat/warden/util/cliutil"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"gorm.io/plugin/opentelemetry/tracing"
)

// request metrics are registered globally, so the middleware is built once per process
var adminMetricsMiddleware = sync.OnceValue(func() echo.MiddlewareFunc {
	return echoprometheus.NewMiddleware("warden_admin")
})

type Config struct {
	Logger           *slog.Logger
	GatewayHost      string
	BridgeHost       string
	BridgeToken      string
	BridgeRateLimit  int
	RedisURL         string
	DatabaseURL      string
	MaxDBConnections int
	SlackWebhookURL  string
	SetsFileJSON     string
	AdminBind        string
	AdminToken       string
	MaxConcurrent    int
	MaxQueue         int
	SweepInterval    time.Duration
	EnforceTimeout   time.Duration
	AuditTimeout     time.Duration
}

type Server struct {
	logger     *slog.Logger
	engine     *engine.Engine
	consumer   *consumer.GatewayConsumer
	auditDB    *auditlog.DBSink
	adminToken string
	echo       *echo.Echo
	httpd      *http.Server
}

func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sets := setstore.NewMemSetStore()
	if cfg.SetsFileJSON != "" {
		if err := sets.LoadFromFileJSON(cfg.SetsFileJSON); err != nil {
			return nil, fmt.Errorf("initializing in-process setstore: %v", err)
		}
		logger.Info("loaded set config from JSON", "path", cfg.SetsFileJSON)
	}

	var counters countstore.CountStore
	var configs configstore.ConfigStore
	var cache cachestore.CacheStore
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}
		counters = countstore.NewRedisCountStoreFromClient(rdb)
		configs = configstore.NewRedisConfigStoreFromClient(rdb)
		cache = cachestore.NewRedisCacheStoreFromClient(rdb, bridge.DefaultPermsTTL, 10_000)
	} else {
		counters = countstore.NewMemCountStore()
		configs = configstore.NewMemConfigStore()
		cache = cachestore.NewMemCacheStore(10_000, bridge.DefaultPermsTTL)
	}

	var platform engine.Platform
	sinks := auditlog.MultiSink{auditlog.NewLogSink(logger)}
	if cfg.BridgeHost != "" {
		bc := bridge.NewClient(cfg.BridgeHost, bridge.ClientOptions{
			Token:     cfg.BridgeToken,
			RateLimit: cfg.BridgeRateLimit,
			Cache:     cache,
		})
		platform = bc
		sinks = append(sinks, bridge.NewChannelAuditSink(bc))
	} else {
		logger.Warn("no bridge host configured, running in dry-run mode")
		platform = engine.NewDryRunPlatform(logger)
	}

	var auditDB *auditlog.DBSink
	if cfg.DatabaseURL != "" {
		db, err := cliutil.SetupDatabase(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return nil, fmt.Errorf("opening audit database: %w", err)
		}
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, err
		}
		auditDB, err = auditlog.NewDBSink(db)
		if err != nil {
			return nil, fmt.Errorf("migrating audit database: %w", err)
		}
		sinks = append(sinks, auditDB)
	}
	if cfg.SlackWebhookURL != "" {
		sinks = append(sinks, auditlog.NewSlackSink(cfg.SlackWebhookURL))
	}

	eng := engine.NewEngine(engine.Options{
		Logger:         logger,
		Rules:          rules.DefaultRules(),
		Configs:        config.NewResolver(configs, logger),
		Counters:       counters,
		Sets:           sets,
		Platform:       platform,
		Audit:          sinks,
		EnforceTimeout: cfg.EnforceTimeout,
		AuditTimeout:   cfg.AuditTimeout,
		SweepInterval:  cfg.SweepInterval,
	})

	srv := &Server{
		logger:     logger,
		engine:     eng,
		auditDB:    auditDB,
		adminToken: cfg.AdminToken,
		consumer: &consumer.GatewayConsumer{
			Host:          cfg.GatewayHost,
			Logger:        logger.With("component", "consumer"),
			RedisClient:   rdb,
			Processor:     eng,
			MaxConcurrent: cfg.MaxConcurrent,
			MaxQueue:      cfg.MaxQueue,
		},
	}
	srv.setupAdmin(cfg.AdminBind)
	return srv, nil
}

func (srv *Server) setupAdmin(bind string) {
	e := echo.New()
	srv.echo = e

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(srv.logger))
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("warden-admin"))
	e.Use(adminMetricsMiddleware())
	e.Use(middleware.BodyLimit("1M"))
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/_health", srv.HandleHealthCheck)

	if srv.adminToken == "" {
		srv.logger.Warn("no admin token configured, admin API disabled")
		return
	}
	admin := e.Group("/admin", srv.checkAdminAuth)
	admin.GET("/stats", srv.HandleStats)
	admin.GET("/counts", srv.HandleGetCount)
	admin.POST("/cleanup", srv.HandleCleanup)
	admin.GET("/tenants/:tenant/config", srv.HandleGetTenantConfig)
	admin.PATCH("/tenants/:tenant/config", srv.HandleUpdateTenantConfig)
	admin.GET("/tenants/:tenant/audit", srv.HandleTenantAudit)
	admin.GET("/tenants/:tenant/authors/:author/violations", srv.HandleGetTenantViolations)
	admin.DELETE("/tenants/:tenant/authors/:author/violations", srv.HandleResetTenantViolations)
	admin.GET("/authors/:author/violations", srv.HandleGetViolations)
	admin.DELETE("/authors/:author/violations", srv.HandleResetViolations)
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

// Runs the consumer and admin API until the context is cancelled, then shuts everything down in order: consumer, admin API, engine.
func (srv *Server) Run(ctx context.Context) error {
	srv.logger.Info("starting admin server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
		}
	}()

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- srv.consumer.Run(ctx)
	}()
	go func() {
		if err := srv.consumer.RunPersistCursor(ctx); err != nil {
			srv.logger.Error("cursor routine failed", "err", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		srv.logger.Info("received shutdown signal")
		runErr = <-consumerDone
	case runErr = <-consumerDone:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.httpd.Shutdown(shutdownCtx); err != nil {
		srv.logger.Error("HTTP server shutdown error", "err", err)
	}
	srv.engine.Shutdown()
	srv.logger.Info("graceful shutdown complete")
	return runErr
}
