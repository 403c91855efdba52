package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"anchorline.app/resolver/internal/queue"
)

const defaultResweepLimit = 100

// ResweepService is the queue safety net. Records whose enqueue was lost, or
// that stayed unresolved while the pattern store kept learning, get another
// resolution pass. Re-enqueueing an already-handled record is harmless: the
// worker skips records that moved past pending or unresolved.
type ResweepService interface {
	Resweep(ctx context.Context, minAge time.Duration, limit int32) (int, error)
}

type resweepService struct {
	stores StoreProvider
	queue  queue.Producer
}

func NewResweepService(stores StoreProvider, queue queue.Producer) ResweepService {
	return &resweepService{stores: stores, queue: queue}
}

func (s *resweepService) Resweep(ctx context.Context, minAge time.Duration, limit int32) (int, error) {
	if limit <= 0 {
		limit = defaultResweepLimit
	}
	cutoff := time.Now().UTC().Add(-minAge)

	records, err := s.stores.Records().ListResolvableBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("listing records for resweep: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	enqueued := 0
	for i := range records {
		rec := &records[i]
		if err := s.queue.Enqueue(ctx, queue.Task{
			TaskType: queue.TaskTypeResolveRecord,
			RecordID: rec.ID,
			Attempt:  1,
		}); err != nil {
			slog.WarnContext(ctx, "resweep enqueue failed",
				"record_id", rec.ID,
				"error", err)
			continue
		}
		enqueued++
	}

	slog.InfoContext(ctx, "resweep completed",
		"candidates", len(records),
		"enqueued", enqueued,
		"cutoff", cutoff)
	return enqueued, nil
}
