// Command reindex force-rebuilds candidate search indexes from the shell,
// e.g. after bumping the embedding version.
package main

import (
	"context"
	"flag"
	"log"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"talent-match/internal/config"
	"talent-match/internal/index"
	"talent-match/internal/llm"
	"talent-match/internal/logger"
	"talent-match/internal/storage"
)

func main() {
	var ids string
	var since string
	flag.StringVar(&ids, "ids", "", "Comma-separated candidate IDs; empty means all")
	flag.StringVar(&since, "updated-since", "", "Only candidates updated after this RFC3339 timestamp")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zlog, err := logger.New(cfg.Logging.Level, "console")
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	var candidateIDs []int64
	for _, part := range strings.Split(ids, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			zlog.Fatal("invalid candidate id", zap.String("value", part))
		}
		candidateIDs = append(candidateIDs, id)
	}

	var updatedSince *time.Time
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			zlog.Fatal("invalid -updated-since timestamp", zap.Error(err))
		}
		updatedSince = &t
	}

	db, err := storage.NewDB(cfg.DatabaseURL, zlog)
	if err != nil {
		zlog.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close()

	llmSvc := llm.NewService(cfg.LLM, nil, zlog)
	if llmSvc == nil {
		zlog.Fatal("reindexing needs a configured LLM provider for summaries and embeddings")
	}

	builder := index.NewBuilder(db, llmSvc, cfg.Index, zlog)

	start := time.Now()
	success, failed := builder.ReindexAll(context.Background(), candidateIDs, updatedSince)
	zlog.Info("done",
		zap.Int("success", success),
		zap.Int("failed", failed),
		zap.Duration("took", time.Since(start)))
}
