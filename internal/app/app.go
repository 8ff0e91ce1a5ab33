package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marksync/internal/config"
	"github.com/MrSnakeDoc/marksync/internal/feed"
	"github.com/MrSnakeDoc/marksync/internal/httpserver"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/records"
	"github.com/MrSnakeDoc/marksync/internal/redis"
	"github.com/MrSnakeDoc/marksync/internal/scheduler"
	"github.com/MrSnakeDoc/marksync/internal/session"
	"github.com/MrSnakeDoc/marksync/internal/store/memory"
	"github.com/MrSnakeDoc/marksync/internal/store/postgres"
	redisstore "github.com/MrSnakeDoc/marksync/internal/store/redis"
	"github.com/MrSnakeDoc/marksync/internal/utils"
	"github.com/MrSnakeDoc/marksync/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	pgStore     *postgres.Store
	broker      feed.Broker
	seeder      *scheduler.SeedReloader
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(context.Background(), redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	checks := map[string]deps.Check{
		"redis": func(ctx context.Context) error {
			return redis.Ping(ctx, redisClient, cfg.RedisPingTimeout)
		},
	}

	// Record storage, and the change feed that matches its reach:
	// shared stores fan out through Redis, the memory store stays in process
	var (
		backend records.Backend
		broker  feed.Broker
		pgStore *postgres.Store
	)
	switch cfg.Store {
	case config.StorePostgres:
		pgStore, err = postgres.Open(cfg.PostgresDSN)
		if err != nil {
			loggerClient.Errorf("Failed to open Postgres: %v", err)
			os.Exit(1)
		}
		checks["postgres"] = pgStore.Ping
		backend = pgStore
		broker = feed.NewRedisBroker(redisClient, cfg.FeedBuffer, loggerClient)
	case config.StoreMemory:
		loggerClient.Warn("memory store selected, bookmarks are lost on restart")
		backend = memory.NewStore()
		broker = feed.NewHub(cfg.FeedBuffer, loggerClient)
	default:
		backend = redisstore.NewStore(redisClient)
		broker = feed.NewRedisBroker(redisClient, cfg.FeedBuffer, loggerClient)
	}
	loggerClient.Info("record store initialized", logger.String("store", cfg.Store))

	sessions, err := session.NewJWT(cfg.JWTSecret, session.Options{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
		Leeway:   cfg.JWTLeeway,
	}, session.NewRedisRevoker(redisClient))
	if err != nil {
		loggerClient.Errorf("Failed to initialize sessions: %v", err)
		os.Exit(1)
	}

	recs := records.NewService(backend, broker, loggerClient)

	// Initialize seed reloader (if a seed file is configured)
	var seeder *scheduler.SeedReloader
	var reloadTrigger chan struct{}
	if cfg.SeedFile != "" {
		loggerClient.Info("seed file configured, initializing seed reloader",
			logger.String("file", cfg.SeedFile))
		reloadTrigger = make(chan struct{}, 1)
		seeder = scheduler.NewSeedReloader(
			cfg.SeedFile,
			cfg.SeedOwner,
			recs,
			loggerClient,
			cfg.ReloadInterval,
			reloadTrigger,
		)
	}

	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		Records:        recs,
		Feed:           broker,
		Sessions:       sessions,
		Checks:         checks,
		RequestTimeout: cfg.RequestTimeout,
		RateBurst:      cfg.RateBurst,
		RatePerMin:     cfg.RateRefillPerMin,
		WSPingInterval: cfg.WSPingInterval,
		WSWriteTimeout: cfg.WSWriteTimeout,
		ReloadTrigger:  reloadTrigger,
	}

	server := httpserver.New(cfg.ListenPort, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		pgStore:     pgStore,
		broker:      broker,
		seeder:      seeder,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting marksync v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String("marksync"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start seed reloader (if enabled)
	if a.seeder != nil {
		if err := a.seeder.Start(ctx); err != nil {
			return fmt.Errorf("failed to start seed reloader: %w", err)
		}
		a.logger.Info("seed reloader started",
			logger.Duration("interval", a.cfg.ReloadInterval))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	if a.seeder != nil {
		a.seeder.Stop()
	}

	// End open feeds first, Shutdown does not wait for hijacked connections
	a.broker.Close()
	a.logger.Info("change feed closed")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.pgStore != nil {
		utils.CloseLogged(a.logger, "postgres", a.pgStore)
	}
	if a.redisClient != nil {
		utils.CloseLogged(a.logger, "redis", a.redisClient)
	}

	a.logger.Info("✅ marksync stopped cleanly")
	return nil
}
