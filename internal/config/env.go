package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".chainagent/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"chainagent/"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
}

type MarketEnv struct {
	// QuoteToken funds the purchases, BaseToken is what gets bought.
	QuoteToken string `envconfig:"QUOTE_TOKEN" default:"USDC"`
	BaseToken  string `envconfig:"BASE_TOKEN" default:"ETH"`
	// SeedPrice uses 8 implied decimals ($3000.00000000).
	SeedPrice int64 `envconfig:"SEED_PRICE" default:"300000000000"`
	// ExecutorAddress identifies this service when it acts as the
	// delegated executor.
	ExecutorAddress string `envconfig:"EXECUTOR_ADDRESS" default:"execution-agent"`
	// DelegationRatioBps is the default slice of the daily limit handed
	// to the executor when no explicit amount is given (6000 = 60%).
	DelegationRatioBps int64 `envconfig:"DELEGATION_RATIO_BPS" default:"6000"`
}

type RecordStoreEnv struct {
	// Type selects the execution record store: "yaml" or "clickhouse".
	Type               string `envconfig:"RECORD_STORE_TYPE" default:"yaml"`
	ClickHouseAddr     string `envconfig:"CLICKHOUSE_ADDR" default:"localhost:9000"`
	ClickHouseDatabase string `envconfig:"CLICKHOUSE_DATABASE" default:"default"`
	ClickHouseUsername string `envconfig:"CLICKHOUSE_USERNAME" default:""`
	ClickHousePassword string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	ClickHouseTimeout  int    `envconfig:"CLICKHOUSE_TIMEOUT" default:"10"`
}

type CacheEnv struct {
	// Type selects the stats cache: "none" or "redis".
	Type          string `envconfig:"CACHE_TYPE" default:"none"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

type KafkaEnv struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"chainagent-events"`
}

type Env struct {
	BaseEnv
	StorageEnv
	MarketEnv
	RecordStoreEnv
	CacheEnv
	KafkaEnv
}

const namespace = "CHAINAGENT"

// LoadEnv reads configuration from the environment, with an optional
// .env file for local development.
func LoadEnv() (*Env, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}
