package main

import (
	"context"

	"github.com/chainguard-dev/clog"

	"planreview/internal/config"
	"planreview/internal/db"
	"planreview/internal/evaluate"
	"planreview/internal/pipeline"
	"planreview/internal/storage"
	"planreview/internal/store"
)

func main() {
	ctx := context.Background()
	log := clog.FromContext(ctx)

	cfg, err := config.Process(ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	dbase, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	docs, err := storage.New(ctx, storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		Bucket:    cfg.MinioBucket,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
	})
	if err != nil {
		log.Fatalf("connecting to object storage: %v", err)
	}

	w := &pipeline.Worker{
		Store: store.New(dbase),
		Docs:  docs,
		LLM:   evaluate.NewClient(cfg.DeepSeekAPIKey, cfg.DeepSeekBaseURL, cfg.DeepSeekModel, cfg.EvalTimeout),
	}
	log.Infof("worker starting, concurrency %d", cfg.WorkerConcurrency)
	if err := pipeline.Run(cfg.RedisAddr, cfg.WorkerConcurrency, w); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
