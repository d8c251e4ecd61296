package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"studybuddy/internal/api"
	"studybuddy/internal/config"
	"studybuddy/internal/providers"
	"studybuddy/internal/storage"
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalw("connect postgres", "error", err)
	}
	if err := storage.Migrate(ctx, db, cfg.EmbedDim); err != nil {
		log.Fatalw("run migrations", "error", err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		log.Fatalw("configure providers", "error", err)
	}
	if !pm.EmbeddingEnabled() {
		if err := storage.NewMaterialRepo(db).MarkAllDisabled(ctx); err != nil {
			log.Fatalw("disable pending materials", "error", err)
		}
		log.Infow("embedding disabled", "embed_providers", cfg.EmbedProviders)
	}
	cancel()
	db.Close()

	h := api.NewServer(cfg, log)
	log.Infow("api listening",
		"addr", cfg.APIAddr,
		"llm_providers", cfg.LLMProviders,
		"embed_providers", cfg.EmbedProviders)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatalw("serve api", "error", err)
	}
}
