package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"anchorline.app/resolver/internal/engine"
	"anchorline.app/resolver/internal/queue"
)

type Config struct {
	MaxAttempts int
}

// Worker drains the resolution stream. Each batch resolves against one
// consistent snapshot of the catalog and pattern store, so reviews landing
// mid-batch never produce half-old half-new decisions.
type Worker struct {
	consumer Consumer
	stores   StoreProvider
	txRunner TxRunner
	resolver Resolver
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, stores StoreProvider, txRunner TxRunner, resolver Resolver, cfg Config) *Worker {
	return &Worker{
		consumer:  consumer,
		stores:    stores,
		txRunner:  txRunner,
		resolver:  resolver,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	snaps, err := w.loadSnapshots(ctx)
	if err != nil {
		// Nothing gets acked: the whole batch stays pending and the
		// reclaimer redelivers it once the store recovers.
		return fmt.Errorf("loading snapshots: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg, snaps); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"record_id", msg.RecordID)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message, snaps *snapshots) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"record_id", msg.RecordID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.processWithSnapshots(ctx, msg, snaps)
}

// ProcessMessage resolves one record end to end, loading fresh snapshots.
// Exported so it can be reused by the reclaimer, which has no batch to share
// snapshots with.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	snaps, err := w.loadSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("loading snapshots: %w", err)
	}
	return w.processWithSnapshots(ctx, msg, snaps)
}

// ProcessReclaimed runs a reclaimed message through the normal pipeline and
// routes failures into the same requeue/DLQ policy as fresh deliveries, so
// a crashing record cannot circle through the reclaimer forever.
func (w *Worker) ProcessReclaimed(ctx context.Context, msg queue.Message) error {
	snaps, err := w.loadSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("loading snapshots: %w", err)
	}
	if err := w.processMessageSafe(ctx, msg, snaps); err != nil {
		slog.ErrorContext(ctx, "reclaimed message processing failed",
			"error", err,
			"message_id", msg.ID,
			"record_id", msg.RecordID)
		w.handleFailedMessage(ctx, msg, err)
	}
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"record_id", msg.RecordID,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"record_id", msg.RecordID,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}

// snapshots is the immutable catalog+pattern view one batch resolves against.
type snapshots struct {
	catalog  *engine.CatalogSnapshot
	patterns *engine.PatternSnapshot
}

func (w *Worker) loadSnapshots(ctx context.Context) (*snapshots, error) {
	entities, err := w.stores.Entities().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	patterns, err := w.stores.Patterns().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading patterns: %w", err)
	}

	return &snapshots{
		catalog:  engine.NewCatalogSnapshot(entities),
		patterns: engine.NewPatternSnapshot(patterns),
	}, nil
}
