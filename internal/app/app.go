package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/crypto/acme/autocert"

	"github.com/webstead/foyer/internal/config"
	"github.com/webstead/foyer/internal/domain"
	"github.com/webstead/foyer/internal/httpserver"
	"github.com/webstead/foyer/internal/httpserver/deps"
	"github.com/webstead/foyer/internal/logger"
	"github.com/webstead/foyer/internal/proxy"
	"github.com/webstead/foyer/internal/redis"
	"github.com/webstead/foyer/internal/sites"
	redisstore "github.com/webstead/foyer/internal/store/redis"
	"github.com/webstead/foyer/internal/tlsgate"
	"github.com/webstead/foyer/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	watcher     *sites.Watcher
	redisClient *goredis.Client
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Public-port request lines go to their own rotating sink when
	// configured; the process logger keeps everything else.
	accessLog := loggerClient
	if cfg.AccessLogPath != "" {
		accessLog = logger.NewRotating(cfg.AccessLogPath, cfg.AccessLogMaxSizeMB, cfg.AccessLogMaxBackups)
		loggerClient.Info("access log enabled",
			logger.String("path", cfg.AccessLogPath),
			logger.Int("max_size_mb", cfg.AccessLogMaxSizeMB),
			logger.Int("max_backups", cfg.AccessLogMaxBackups))
	}

	var extraRules []domain.Rule
	if cfg.RulesFile != "" {
		rules, err := domain.LoadRules(cfg.RulesFile)
		if err != nil {
			loggerClient.Errorf("Failed to load rewrite rules from %s: %v", cfg.RulesFile, err)
			os.Exit(1)
		}
		extraRules = rules
		loggerClient.Info("operator rewrite rules loaded",
			logger.String("file", cfg.RulesFile),
			logger.Int("rules", len(rules)))
	}

	normalizer := domain.NewNormalizer(cfg.CanonicalWWW, extraRules)
	resolver := sites.NewResolver(cfg.SitesRoot, cfg.SiteCacheTTL, cfg.SiteNegCacheTTL, loggerClient)
	watcher := sites.NewWatcher(resolver, loggerClient)
	gate := tlsgate.New(normalizer, resolver, cfg.AllowAnyHost, loggerClient)

	// Certificates go to local disk unless Redis is configured, in which
	// case every replica shares one cache instead of racing the ACME
	// endpoint. Fail fast if Redis is configured but unreachable.
	var certCache autocert.Cache = autocert.DirCache(cfg.CertDir)
	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(redis.ConnectOptions{
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
		redisClient = client
		certCache = redisstore.NewCertCache(client)
		loggerClient.Info("certificate cache backed by redis")
	}

	issuer, err := tlsgate.NewIssuer(gate, tlsgate.Options{
		Mode:      cfg.TLSIssuer,
		Email:     cfg.CertEmail,
		Directory: cfg.ACMEDirectory,
		Cache:     certCache,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to configure TLS issuer: %v", err)
		os.Exit(1)
	}

	router := proxy.NewRouter(normalizer, resolver, cfg.SitesRoot, cfg.SocketDir)
	dataPlane := proxy.NewHandler(router, cfg.BackendDialTimeout, cfg.BackendTimeout, loggerClient)

	d := deps.Deps{
		Logger:         loggerClient,
		Gate:           gate,
		WebhookSocket:  cfg.WebhookSocket,
		WebhookSecret:  cfg.WebhookSecret,
		WebhookTimeout: cfg.WebhookTimeout,
		TrustProxy:     cfg.TrustProxy,
		AllowedCIDRS:   cfg.AdminAllowedCIDRS,
		RateBurst:      cfg.AdminRateBurst,
		RatePerMin:     cfg.AdminRatePerMin,
	}

	server := httpserver.New(cfg, loggerClient, accessLog, issuer, dataPlane, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		watcher:     watcher,
		redisClient: redisClient,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Foyer v%s (sites=%s, issuer=%s)",
		version.Version, a.cfg.SitesRoot, a.cfg.TLSIssuer)
	a.logger.Infof("Foyer %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The watcher only shortens the window before a deploy or teardown is
	// visible; the resolver converges through its TTLs without it.
	if err := a.watcher.Start(ctx); err != nil {
		a.logger.Warn("site watcher unavailable, relying on cache TTLs",
			logger.Error(err))
	} else {
		a.logger.Info("site watcher started",
			logger.String("root", a.cfg.SitesRoot))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("front door error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.watcher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ Foyer stopped cleanly")
	return nil
}
