// cmd/querydesk/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"querydesk/internal/common/config"
	"querydesk/internal/common/database"
	"querydesk/internal/common/logger"
	"querydesk/internal/common/observability"
	"querydesk/internal/datastore"
	"querydesk/internal/nlq/domaincache"
	"querydesk/internal/nlq/executor"
	"querydesk/internal/nlq/lexicon"
	"querydesk/internal/nlq/pipeline"
	"querydesk/internal/nlq/tagger"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting querydesk...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("querydesk")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Load lexicon ---
	var lex *lexicon.Lexicon
	if cfg.Lexicon.Path != "" {
		lex, err = lexicon.Load(cfg.Lexicon.Path)
		if err != nil {
			zapLog.Fatal("lexicon load failed", zap.Error(err), zap.String("path", cfg.Lexicon.Path))
		}
		zapLog.Info("Lexicon loaded", zap.String("path", cfg.Lexicon.Path), zap.Int("tables", len(lex.Tables)))
	} else {
		lex = lexicon.Default()
		zapLog.Info("Using compiled-in default lexicon", zap.Int("tables", len(lex.Tables)))
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry (optional) ---
	var redisClient *redis.Client
	if cfg.Database.Redis.Enabled {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			// Test the connection with context
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		redisClient = rdb.Client
		zapLog.Info("Redis connected successfully")
	} else {
		zapLog.Info("Redis disabled, result caching off")
	}

	// --- Assemble the pipeline ---
	store := datastore.NewPostgres(pg.DB, lex, log)
	dcache := domaincache.New(store, lex, cfg.Query.DomainCacheLimit, log)
	tag := tagger.New(lex, dcache, log)

	var resultCache *executor.ResultCache
	if cfg.Query.ResultCacheTTL > 0 {
		resultCache = executor.NewResultCache(redisClient, log, time.Duration(cfg.Query.ResultCacheTTL)*time.Second)
	}
	exec := executor.New(store, resultCache, log, executor.Options{
		RowLimit:        cfg.Query.RowLimit,
		PerTableTimeout: config.GetDuration(cfg.Query.PerTableTimeout),
	})

	pipe := pipeline.New(lex, dcache, tag, exec, pipeline.SystemClock(), obs, log)

	// Warm the domain cache; a cold load failure is not fatal, the cache
	// retries on the next refresh.
	dcache.EnsureLoaded(ctx)

	// --- HTTP Server ---
	srv := newServer(pipe, cfg, log)
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("querydesk stopped gracefully")
}
