package worker

import (
	"context"

	"anchorline.app/resolver/internal/domain"
	"anchorline.app/resolver/internal/engine"
	"anchorline.app/resolver/internal/model"
	"anchorline.app/resolver/internal/queue"
	"anchorline.app/resolver/internal/store"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// Mirrors service.StoreProvider - defined here to avoid import cycles.
type StoreProvider interface {
	Records() store.RecordStore
	Entities() store.EntityStore
	Patterns() store.PatternStore
	Suggestions() store.SuggestionStore
	Bindings() store.BindingStore
	Events() store.EventStore
}

// Mirrors service.TxRunner - defined here to avoid import cycles.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

// Resolver abstracts the resolution engine for testability.
type Resolver interface {
	Resolve(ctx context.Context, rec *model.Record, cat *engine.CatalogSnapshot, pat *engine.PatternSnapshot) domain.Resolution
}
