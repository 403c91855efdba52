package store

import (
	"context"
	"time"

	"anchorline.app/resolver/internal/model"
)

// RecordStore defines the contract for record data access. Record content is
// write-once; only the resolution status moves after ingest.
type RecordStore interface {
	Create(ctx context.Context, rec *model.Record) error
	GetByID(ctx context.Context, id int64) (*model.Record, error)
	GetByShortID(ctx context.Context, shortID string) (*model.Record, error)
	SetResolutionStatus(ctx context.Context, id int64, status model.RecordStatus) error
	ListResolvableBefore(ctx context.Context, cutoff time.Time, limit int32) ([]model.Record, error)
}

// EntityStore defines the contract for catalog data access. The catalog is
// owned externally and synced upsert-only; nothing here deletes.
type EntityStore interface {
	Upsert(ctx context.Context, e *model.Entity) error
	GetByCode(ctx context.Context, code string) (*model.Entity, error)
	List(ctx context.Context) ([]model.Entity, error)
	ListActive(ctx context.Context) ([]model.Entity, error)
}

// PatternStore defines the contract for learned pattern data access.
// Generators read patterns only through snapshots; the mutation surface
// below is used by the reinforcement loop alone, inside transactions.
// Confidence arithmetic happens in the caller; the store only persists.
type PatternStore interface {
	GetByID(ctx context.Context, id int64) (*model.LearnedPattern, error)
	FindByKey(ctx context.Context, typ model.PatternType, key string) ([]model.LearnedPattern, error)
	ListActive(ctx context.Context) ([]model.LearnedPattern, error)
	ListActiveByKey(ctx context.Context, key string) ([]model.LearnedPattern, error)
	Upsert(ctx context.Context, p *model.LearnedPattern) error
	Penalize(ctx context.Context, id int64, confidence float64, note string) error
	Deactivate(ctx context.Context, id int64) error
	MarkUsed(ctx context.Context, ids []int64, usedAt time.Time) error
	Stats(ctx context.Context, topEntities int32) (*model.PatternStats, error)
}

// SuggestionStore defines the contract for suggestion data access.
type SuggestionStore interface {
	Create(ctx context.Context, s *model.Suggestion) error
	GetByID(ctx context.Context, id int64) (*model.Suggestion, error)
	GetByShortID(ctx context.Context, shortID string) (*model.Suggestion, error)
	ListPending(ctx context.Context, limit int32) ([]model.Suggestion, error)
	ListByRecord(ctx context.Context, recordID int64) ([]model.Suggestion, error)
	HasPendingForRecord(ctx context.Context, recordID int64, entityCode string) (bool, error)
	// MarkReviewed transitions a pending suggestion in place. Returns
	// ErrNotFound when the row is missing or no longer pending.
	MarkReviewed(ctx context.Context, id int64, status model.SuggestionStatus, reviewerNote *string) (*model.Suggestion, error)
	MarkApplied(ctx context.Context, id int64) error
}

// BindingStore defines the contract for record↔entity binding data access.
type BindingStore interface {
	Create(ctx context.Context, b *model.RecordBinding) error
	ListByRecord(ctx context.Context, recordID int64) ([]model.RecordBinding, error)
	ExistsForRecord(ctx context.Context, recordID int64) (bool, error)
}

// EventStore defines the contract for the append-only resolution audit trail.
type EventStore interface {
	Append(ctx context.Context, ev *model.ResolutionEvent) error
	ListByRecord(ctx context.Context, recordID int64, limit int32) ([]model.ResolutionEvent, error)
}
