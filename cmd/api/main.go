package main

import (
	"context"

	"github.com/chainguard-dev/clog"
	"github.com/hibiken/asynq"

	"planreview/internal/config"
	"planreview/internal/db"
	httpSrv "planreview/internal/http"
	"planreview/internal/migrations"
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

	// Run embedded migrations (idempotent)
	if err := migrations.Run(cfg.DatabaseURL); err != nil {
		log.Fatalf("running migrations: %v", err)
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
	asq := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})

	srv := httpSrv.NewServer(cfg.ListenAddr, &httpSrv.Server{
		Store:    store.New(dbase),
		Docs:     docs,
		Tasks:    asq,
		APIToken: cfg.APIToken,
	})
	log.Infof("api listening on %s", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("serving: %v", err)
	}
}
