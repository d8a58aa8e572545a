package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config carries everything the api and worker binaries need. Processed
// once at startup and passed down explicitly; nothing reads the environment
// after this.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR,default=localhost:6379"`
	ListenAddr  string `env:"LISTEN_ADDR,default=:8000"`
	APIToken    string `env:"API_TOKEN,required"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioBucket    string `env:"MINIO_BUCKET,default=plans"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`

	DeepSeekAPIKey  string        `env:"DEEPSEEK_API_KEY"`
	DeepSeekBaseURL string        `env:"DEEPSEEK_BASE_URL,default=https://api.deepseek.com/v1"`
	DeepSeekModel   string        `env:"DEEPSEEK_MODEL,default=deepseek-chat"`
	EvalTimeout     time.Duration `env:"EVAL_TIMEOUT,default=90s"`

	WorkerConcurrency int `env:"WORKER_CONCURRENCY,default=5"`
}

func Process(ctx context.Context) (Config, error) {
	var cfg Config
	err := envconfig.Process(ctx, &cfg)
	return cfg, err
}
