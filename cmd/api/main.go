package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"talent-match/internal/api"
	"talent-match/internal/cache"
	"talent-match/internal/config"
	"talent-match/internal/identity"
	"talent-match/internal/index"
	"talent-match/internal/ingest"
	"talent-match/internal/llm"
	"talent-match/internal/logger"
	"talent-match/internal/match"
	"talent-match/internal/resume"
	"talent-match/internal/storage"
)

// @title Talent Match API
// @version 1.0
// @description Recruiter talent-matching core: identity resolution, index building and dual-channel candidate matching

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /api

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	zlog.Info("connecting to database")
	db, err := storage.NewDB(cfg.DatabaseURL, zlog)
	if err != nil {
		zlog.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}
	zlog.Info("database ready")

	embCache, err := cache.New(cfg.Redis, zlog)
	if err != nil {
		zlog.Warn("embedding cache unavailable, continuing without it", zap.Error(err))
	}
	if embCache != nil {
		defer embCache.Close()
	}

	// A nil *cache.EmbeddingCache must not end up inside the interface.
	var embeddings llm.EmbeddingCache
	if embCache != nil {
		embeddings = embCache
	}

	// llm.NewService returns nil when the provider is "none"; match and
	// ingest endpoints then fail fast instead of serving stale behavior.
	llmSvc := llm.NewService(cfg.LLM, embeddings, zlog)
	if llmSvc == nil {
		zlog.Warn("LLM provider disabled; matching and ingestion will be unavailable")
	}

	resolver := identity.NewResolver(cfg.Dedup, zlog)
	builder := index.NewBuilder(db, llmSvc, cfg.Index, zlog)
	engine := match.NewEngine(db.Store(), llmSvc, cfg, zlog)
	parser := resume.NewParser(cfg.UploadsDir)
	ingester := ingest.NewService(db, resolver, llmSvc, parser, builder, cfg.Index.QueueSize, zlog)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	ingester.StartWorker(workerCtx)

	apiSrv := api.NewAPI(db, engine, builder, ingester, resolver, zlog)
	router := api.NewRouter(apiSrv)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			zlog.Warn("server shutdown", zap.Error(err))
		}
		close(idleConnsClosed)
	}()

	zlog.Info("API server listening", zap.String("port", cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zlog.Fatal("server failed", zap.Error(err))
	}

	<-idleConnsClosed
}
