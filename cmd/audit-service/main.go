package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	auditcache "github.com/sitescan/engine/internal/audit/cache"
	"github.com/sitescan/engine/internal/audit/events"
	"github.com/sitescan/engine/internal/audit/lead"
	"github.com/sitescan/engine/internal/audit/metrics"
	"github.com/sitescan/engine/internal/audit/orchestrator"
	"github.com/sitescan/engine/internal/audit/probe"
	"github.com/sitescan/engine/internal/audit/psi"
	"github.com/sitescan/engine/internal/audit/server"
	"github.com/sitescan/engine/internal/audit/snapshot"
	"github.com/sitescan/engine/internal/common/config"
	"github.com/sitescan/engine/internal/common/configtypes"
	"github.com/sitescan/engine/internal/common/logger"
	"github.com/sitescan/engine/internal/common/metricsserver"
	"github.com/sitescan/engine/internal/common/redis"
)

func main() {
	configPath := flag.String("c", "configs/audit-service.yaml", "path to configuration file")
	flag.Parse()

	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	initialLogger.Info("Starting audit service", zap.String("config_path", *configPath))

	cfg, err := config.Load(*configPath)
	if err != nil {
		initialLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	appLogger, err := logger.NewLogger(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	defer appLogger.Sync()

	// Cache backend
	var cacheStore auditcache.Store
	var redisClient *goredis.Client
	ttl := time.Duration(cfg.Audit.CacheTTLMs) * time.Millisecond
	if cfg.Cache.Backend == configtypes.CacheBackendRedis {
		redisClient, err = redis.Connect(&cfg.Redis, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		cacheStore = auditcache.NewRedis(redisClient, ttl, cfg.Cache.Compression, appLogger)
		appLogger.Info("Report cache backend: redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		cacheStore = auditcache.NewMemory(ttl)
		appLogger.Info("Report cache backend: memory", zap.Duration("ttl", ttl))
	}

	// Metrics
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, appLogger)
	}
	metricsServer, err := metricsserver.Start(cfg.Metrics.Enabled, cfg.Metrics.Listen, cfg.Metrics.Path, collector, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to start metrics server", zap.Error(err))
	}

	// Audit event log
	var emitter events.Emitter
	if cfg.Events.Enabled {
		fileEmitter, eerr := events.NewFileEmitter(cfg.Events.Log, appLogger)
		if eerr != nil {
			appLogger.Fatal("Failed to create audit event log", zap.Error(eerr))
		}
		emitter = fileEmitter
	}

	// Snapshot store (optional)
	var snapshots *snapshot.BlobStore
	if cfg.Snapshot.Token != "" && cfg.Snapshot.PublicBase != "" {
		snapshots = snapshot.NewBlobStore(cfg.Snapshot.UploadBase, cfg.Snapshot.PublicBase, cfg.Snapshot.Token, appLogger)
		appLogger.Info("Snapshot store enabled", zap.String("public_base", cfg.Snapshot.PublicBase))
	} else {
		appLogger.Info("Snapshot store disabled")
	}

	prober := probe.New(appLogger)
	psiClient := psi.New(cfg.Audit.PSIAPIKey, appLogger)
	if psiClient == nil {
		appLogger.Info("PSI probe disabled (no API key)")
	}

	orch := orchestrator.New(prober, psiClient, collector, orchestrator.Config{
		BudgetMs:       cfg.Audit.BudgetMs,
		SubRequests:    cfg.Audit.SubRequests,
		SitemapSamples: cfg.Audit.SitemapSamples,
		ImageHeads:     cfg.Audit.ImageHeads,
		Debug:          cfg.Audit.Debug,
	}, appLogger)

	forwarder := lead.NewForwarder(cfg.Lead.APIKey, cfg.Lead.From, cfg.Lead.To, appLogger)

	srv := server.New(orch, cacheStore, snapshots, cfg.Snapshot.ShareBase, forwarder, collector, emitter, appLogger)

	httpServer := &fasthttp.Server{
		Handler:            srv.HandleRequest,
		Name:               "SiteScan-Audit",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       time.Duration(cfg.Server.Timeout),
		MaxRequestBodySize: 1 << 20,
		TCPKeepalive:       true,
		TCPKeepalivePeriod: 30 * time.Second,
	}

	go func() {
		appLogger.Info("Audit service listening", zap.String("listen", cfg.Server.Listen))
		if serveErr := httpServer.ListenAndServe(cfg.Server.Listen); serveErr != nil {
			appLogger.Fatal("Server stopped", zap.Error(serveErr))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	appLogger.Info("Shutting down", zap.String("signal", sig.String()))

	if err := httpServer.Shutdown(); err != nil {
		appLogger.Warn("Server shutdown failed", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(); err != nil {
			appLogger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}
	if emitter != nil {
		if err := emitter.Close(); err != nil {
			appLogger.Warn("Event log close failed", zap.Error(err))
		}
	}

	appLogger.Info("Shutdown complete")
}
