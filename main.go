package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/scamlens/orchestrator/internal/activities"
	"github.com/scamlens/orchestrator/internal/config"
	"github.com/scamlens/orchestrator/internal/db"
	"github.com/scamlens/orchestrator/internal/extraction"
	"github.com/scamlens/orchestrator/internal/health"
	"github.com/scamlens/orchestrator/internal/httpapi"
	"github.com/scamlens/orchestrator/internal/reasoner"
	"github.com/scamlens/orchestrator/internal/routing"
	"github.com/scamlens/orchestrator/internal/streaming"
	"github.com/scamlens/orchestrator/internal/temporal"
	"github.com/scamlens/orchestrator/internal/tools"
	"github.com/scamlens/orchestrator/internal/workflows"
	"github.com/scamlens/orchestrator/pkg/anthropic"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/scamlens.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	logger.Info("configuration loaded",
		zap.String("service", cfg.Service.Name),
		zap.String("task_queue", cfg.Temporal.TaskQueue),
	)

	watcher, err := config.NewWatcher(cfgPath, cfg, logger)
	if err != nil {
		logger.Warn("config hot reload unavailable", zap.Error(err))
	} else {
		watcher.OnChange(func(old, new *config.Config) {
			logger.Info("configuration reloaded",
				zap.Bool("agent_disabled", new.Router.AgentDisabled),
			)
		})
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watcher failed to start", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	// Health endpoints come up first so orchestration platforms see the
	// process while the heavier dependencies connect.
	healthMgr := health.NewManager(30*time.Second, logger)
	healthMux := http.NewServeMux()
	health.NewHTTPHandler(healthMgr, logger).RegisterRoutes(healthMux)
	healthSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.HealthPort),
		Handler: healthMux,
	}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", zap.Error(err))
		}
	}()

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	store, err := db.NewClient(cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer store.Close()
	if err := healthMgr.RegisterChecker(health.NewDatabaseChecker(store.DB())); err != nil {
		logger.Fatal("failed to register database checker", zap.Error(err))
	}

	events := streaming.NewManager(cfg.Streaming.RingCapacity)
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		events.SetMirror(streaming.NewRedisMirror(rdb, cfg.Redis.StreamMaxLen, logger))
		if err := healthMgr.RegisterChecker(health.NewRedisChecker(rdb)); err != nil {
			logger.Fatal("failed to register redis checker", zap.Error(err))
		}
		logger.Info("redis event mirror enabled", zap.String("addr", cfg.Redis.Addr))
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporal.NewZapAdapter(logger),
	})
	if err != nil {
		logger.Fatal("failed to connect to temporal", zap.Error(err))
	}
	defer temporalClient.Close()
	if err := healthMgr.RegisterChecker(health.NewTemporalWorkerChecker(
		temporalClient, cfg.Temporal.TaskQueue, 2*time.Second,
	)); err != nil {
		logger.Fatal("failed to register temporal checker", zap.Error(err))
	}

	var llm anthropic.Client
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		llm = anthropic.NewClient(apiKey)
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set, reasoning runs on heuristics only")
	}

	extractor := extraction.NewExtractor()
	heuristic := reasoner.NewHeuristic(cfg.Heuristic)
	rsn := reasoner.New(llm, cfg.LLM, heuristic, logger)

	registry := tools.NewRegistry(
		tools.NewScamDB(store),
		tools.NewPhoneValidator(),
		tools.NewDomainReputation(cfg.Tools.DomainReputationURL, cfg.Tools.CallTimeout),
		tools.NewWebSearch(cfg.Tools.WebSearchURL, cfg.Tools.WebSearchRPS, cfg.Tools.CallTimeout),
		tools.NewCompanyRegistry(cfg.Tools.CompanyRegistryURL, cfg.Tools.CallTimeout),
	)

	acts := activities.NewActivities(extractor, registry, rsn, events, store, logger)

	w := worker.New(temporalClient, cfg.Temporal.TaskQueue, worker.Options{})
	workflows.Register(w, acts)
	if err := w.Start(); err != nil {
		logger.Fatal("failed to start temporal worker", zap.Error(err))
	}
	defer w.Stop()

	healthMgr.Start(ctx)
	defer healthMgr.Stop()

	router := routing.NewRouter(
		extractor, healthMgr, temporalClient, rsn,
		cfg.Router, cfg.Temporal, logger,
	)
	sink := routingSink{store: store}
	router.StartFlusher(ctx, sink, time.Minute)

	apiMux := http.NewServeMux()
	httpapi.NewServer(router, store, events, logger).RegisterRoutes(apiMux)
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Service.HTTPPort),
		Handler:           apiMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http api listening", zap.Int("port", cfg.Service.HTTPPort))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http api server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http api shutdown incomplete", zap.Error(err))
	}
	_ = healthSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	if err := router.FlushDecisions(shutdownCtx, sink); err != nil {
		logger.Warn("final routing flush failed", zap.Error(err))
	}
	cancel()
	logger.Info("shutdown complete")
}

// routingSink adapts the persistence layer to the router's flush interface.
type routingSink struct {
	store *db.Client
}

func (s routingSink) SaveDecisions(ctx context.Context, decisions []routing.Decision) error {
	records := make([]db.RoutingRecord, 0, len(decisions))
	for _, d := range decisions {
		records = append(records, db.RoutingRecord{
			TaskID:         d.TaskID,
			Route:          d.Route,
			FallbackReason: d.FallbackReason,
			EntityCount:    d.EntityCount,
			LatencyMs:      d.LatencyMs,
			DecidedAt:      d.DecidedAt,
		})
	}
	return s.store.SaveRoutingRecords(ctx, records)
}
