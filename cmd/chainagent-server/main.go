package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	server "github.com/chainagent/chainagent/internal"
	"github.com/chainagent/chainagent/internal/config"
	"github.com/chainagent/chainagent/internal/delegation"
	delegrepo "github.com/chainagent/chainagent/internal/delegation/repositoryimpl"
	"github.com/chainagent/chainagent/internal/event"
	"github.com/chainagent/chainagent/internal/eventbus"
	"github.com/chainagent/chainagent/internal/eventsink"
	"github.com/chainagent/chainagent/internal/execution"
	execrepo "github.com/chainagent/chainagent/internal/execution/repositoryimpl"
	"github.com/chainagent/chainagent/internal/oracle"
	"github.com/chainagent/chainagent/internal/permission"
	permrepo "github.com/chainagent/chainagent/internal/permission/repositoryimpl"
	"github.com/chainagent/chainagent/internal/quota"
	"github.com/chainagent/chainagent/internal/stats"
	"github.com/chainagent/chainagent/pkg/clog"
	"github.com/chainagent/chainagent/pkg/panicerr"
	"github.com/chainagent/chainagent/pkg/storage"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(ctx, env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	// Setup event bus
	bus := eventbus.New()

	// Setup registries and ledger
	perms := permission.NewRegistry(permrepo.NewYAMLRepository(store), bus)
	delegs := delegation.NewRegistry(delegrepo.NewYAMLRepository(store), perms, bus)
	perms.SetCascade(delegs)
	ledger := quota.NewLedger(perms)

	// Setup execution record store
	var records execution.Repository
	switch env.RecordStoreEnv.Type {
	case "clickhouse":
		records, err = execrepo.NewClickHouseRepository(ctx, execrepo.ClickHouseConfig{
			Addr:     env.RecordStoreEnv.ClickHouseAddr,
			Database: env.RecordStoreEnv.ClickHouseDatabase,
			Username: env.RecordStoreEnv.ClickHouseUsername,
			Password: env.RecordStoreEnv.ClickHousePassword,
			Timeout:  env.RecordStoreEnv.ClickHouseTimeout,
		})
		if err != nil {
			slog.Error("failed to connect to clickhouse", "error", err)
			os.Exit(1)
		}
	default:
		records = execrepo.NewYAMLRepository(store)
	}

	// Setup oracle, stats, and engine
	orc := oracle.NewMockOracle(env.MarketEnv.SeedPrice, bus)
	agg := stats.NewAggregator(ledger)
	if env.CacheEnv.Type == "redis" {
		agg.SetCache(stats.NewRedisCache(env.CacheEnv.RedisAddr, env.CacheEnv.RedisPassword, env.CacheEnv.RedisDB))
	}
	engine := execution.NewEngine(
		delegs, perms, ledger, orc, records, bus, agg,
		env.MarketEnv.QuoteToken, env.MarketEnv.BaseToken,
	)

	// Replay persisted state: permissions and delegations first, then
	// the record log into the ledger and stats.
	if err := perms.Load(ctx); err != nil {
		slog.Error("failed to load permissions", "error", err)
		os.Exit(1)
	}
	if err := delegs.Load(ctx); err != nil {
		slog.Error("failed to load delegations", "error", err)
		os.Exit(1)
	}
	history, err := records.List(ctx)
	if err != nil {
		slog.Error("failed to load execution records", "error", err)
		os.Exit(1)
	}
	for _, rec := range history {
		ledger.Restore(rec.User, rec.Timestamp, rec.AmountIn)
	}
	agg.Rebuild(history)
	slog.Info("replayed execution history", "records", len(history))

	srv := server.NewServer(
		env,
		permission.NewServer(perms, ledger),
		delegation.NewServer(delegs),
		oracle.NewServer(orc),
		execution.NewServer(engine, env.MarketEnv.ExecutorAddress),
		stats.NewServer(agg),
		event.NewServer(bus),
	)

	var wg conc.WaitGroup
	if env.KafkaEnv.Enabled {
		sink := eventsink.NewKafkaSink(bus, env.KafkaEnv.Brokers, env.KafkaEnv.Topic)
		wg.Go(func() {
			if err := panicerr.SafeContext(sink.Run)(ctx); err != nil {
				slog.Error("kafka sink error", "error", err)
			}
		})
	}

	audit, err := event.NewAuditLog(filepath.Join(env.StorageEnv.BaseDir, "audit"))
	if err != nil {
		slog.Error("failed to create audit log", "error", err)
		os.Exit(1)
	}
	wg.Go(func() {
		if err := panicerr.SafeContext(func(ctx context.Context) error {
			return audit.Run(ctx, bus)
		})(ctx); err != nil {
			slog.Error("audit log error", "error", err)
		}
	})

	wg.Go(func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	})

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	wg.Wait()
}
