package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"anchorline.app/resolver/common/id"
	"anchorline.app/resolver/common/llm"
	"anchorline.app/resolver/common/logger"
	"anchorline.app/resolver/common/otel"
	"anchorline.app/resolver/core/config"
	"anchorline.app/resolver/core/db"
	"anchorline.app/resolver/internal/engine"
	"anchorline.app/resolver/internal/queue"
	"anchorline.app/resolver/internal/service"
	"anchorline.app/resolver/internal/store"
	"anchorline.app/resolver/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "resolver worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Queue.Group,
		"consumer_name", cfg.Queue.Consumer)

	// Different node ID than the server so snowflake ids never collide
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Queue.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Queue.Stream)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Queue.Stream,
		Group:        cfg.Queue.Group,
		Consumer:     cfg.Queue.Consumer,
		DLQStream:    cfg.Queue.DLQStream,
		BatchSize:    cfg.Worker.BatchSize,
		Block:        cfg.Worker.Block,
		MaxAttempts:  cfg.Worker.MaxAttempts,
		RequeueDelay: cfg.Worker.RequeueDelay,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	stores := store.NewStores(database.Pool())
	txRunner := &workerTxRunnerAdapter{db: database}

	// The classifier is fail-open: a broken LLM config degrades to the
	// deterministic strategies instead of taking the worker down.
	var llmClient llm.Client
	if cfg.Classifier.Enabled() {
		llmClient, err = llm.New(llm.Config{
			Provider: cfg.Classifier.Provider,
			APIKey:   cfg.Classifier.APIKey,
			BaseURL:  cfg.Classifier.BaseURL,
			Model:    cfg.Classifier.Model,
		})
		if err != nil {
			slog.WarnContext(ctx, "classifier disabled, llm client failed to initialize", "error", err)
			llmClient = nil
		} else {
			slog.InfoContext(ctx, "classifier enabled",
				"provider", cfg.Classifier.Provider,
				"model", llmClient.Model())
		}
	}

	resolver := engine.New(engine.Config{
		AutoLinkThreshold: cfg.Resolver.AutoLinkThreshold,
		ShortlistFloor:    cfg.Resolver.ShortlistFloor,
		ShortlistSize:     cfg.Resolver.ShortlistSize,
		FreeMailDomains:   cfg.Resolver.FreeMailDomains,
		StaffDomains:      cfg.Resolver.StaffDomains,
		ClassifierTimeout: cfg.Classifier.Timeout,
	}, llmClient)

	w := worker.New(consumer, stores, txRunner, resolver, worker.Config{
		MaxAttempts: cfg.Worker.MaxAttempts,
	})

	// Reclaimed deliveries go through the full retry accounting, so a record
	// that keeps crashing its worker still ends up in the DLQ.
	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Queue.Stream,
		Group:     cfg.Queue.Group,
		Consumer:  cfg.Queue.Consumer + "-reclaimer",
		MinIdle:   cfg.Worker.ReclaimMinIdle,
		Interval:  cfg.Worker.ReclaimInterval,
		BatchSize: 10,
	}, consumer, w.ProcessReclaimed)

	producer := queue.NewRedisProducer(redisClient, cfg.Queue.Stream, nil)
	resweeper := service.NewResweepService(stores, producer)

	resweepStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Worker.ResweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-resweepStop:
				return
			case <-ticker.C:
				n, err := resweeper.Resweep(ctx, cfg.Worker.ResweepMinAge, 0)
				if err != nil {
					slog.ErrorContext(ctx, "resweep failed", "error", err)
				} else if n > 0 {
					slog.InfoContext(ctx, "resweep re-enqueued records", "count", n)
				}
			}
		}
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	close(resweepStop)

	// Stop reclaimer first (quick), then the worker (may be mid-batch)
	reclaimer.Stop()
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

// workerTxRunnerAdapter bridges db.DB to worker.TxRunner.
type workerTxRunnerAdapter struct {
	db *db.DB
}

func (a *workerTxRunnerAdapter) WithTx(ctx context.Context, fn func(stores worker.StoreProvider) error) error {
	return a.db.WithTx(ctx, func(tx pgx.Tx) error {
		stores := store.NewStores(tx)
		return fn(stores)
	})
}

const banner = `
██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
 ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
