package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Enqueue(ctx context.Context, task Task) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, task Task) error {
	attempt := task.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	taskType := task.TaskType
	if taskType == "" {
		taskType = TaskTypeResolveRecord
	}

	fields := map[string]any{
		"task_type": string(taskType),
		"record_id": task.RecordID,
		"attempt":   attempt,
	}

	if task.TraceID != nil && *task.TraceID != "" {
		fields["trace_id"] = *task.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued resolution task", "record_id", task.RecordID, "task_type", string(taskType), "attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
