package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"studybuddy/internal/activities"
	"studybuddy/internal/config"
	"studybuddy/internal/providers"
	"studybuddy/internal/storage"
	"studybuddy/internal/vector"
	"studybuddy/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	log := logger.Sugar()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatalw("dial temporal", "error", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalw("connect postgres", "error", err)
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db, cfg.EmbedDim); err != nil {
		log.Fatalw("run migrations", "error", err)
	}
	cancel()

	pm, err := providers.NewManager(cfg)
	if err != nil {
		log.Fatalw("configure providers", "error", err)
	}
	var idx vector.Indexer
	if pm.EmbeddingEnabled() {
		idx = vector.NewPGIndexer(pm, db, cfg.EmbedDim, cfg.EmbedVersion)
	} else {
		idx = vector.NewDisabledIndexer()
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(cfg, db, idx))

	log.Infow("worker listening",
		"temporal", cfg.TemporalAddress,
		"queue", cfg.TemporalTaskQueue,
		"llm_providers", cfg.LLMProviders,
		"embed_providers", cfg.EmbedProviders)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalw("run worker", "error", err)
	}
}
