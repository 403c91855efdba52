package service_test

import (
	"context"
	"time"

	"anchorline.app/resolver/internal/model"
	"anchorline.app/resolver/internal/queue"
	"anchorline.app/resolver/internal/service"
	"anchorline.app/resolver/internal/store"
)

type mockRecordStore struct {
	createFn              func(ctx context.Context, rec *model.Record) error
	getByIDFn             func(ctx context.Context, id int64) (*model.Record, error)
	getByShortIDFn        func(ctx context.Context, shortID string) (*model.Record, error)
	listResolvableFn      func(ctx context.Context, cutoff time.Time, limit int32) ([]model.Record, error)
	capturedRecord        *model.Record
	capturedStatusUpdates []model.RecordStatus
}

func (m *mockRecordStore) Create(ctx context.Context, rec *model.Record) error {
	m.capturedRecord = rec
	if m.createFn != nil {
		return m.createFn(ctx, rec)
	}
	return nil
}

func (m *mockRecordStore) GetByID(ctx context.Context, id int64) (*model.Record, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockRecordStore) GetByShortID(ctx context.Context, shortID string) (*model.Record, error) {
	if m.getByShortIDFn != nil {
		return m.getByShortIDFn(ctx, shortID)
	}
	return nil, store.ErrNotFound
}

func (m *mockRecordStore) SetResolutionStatus(ctx context.Context, id int64, status model.RecordStatus) error {
	m.capturedStatusUpdates = append(m.capturedStatusUpdates, status)
	return nil
}

func (m *mockRecordStore) ListResolvableBefore(ctx context.Context, cutoff time.Time, limit int32) ([]model.Record, error) {
	if m.listResolvableFn != nil {
		return m.listResolvableFn(ctx, cutoff, limit)
	}
	return nil, nil
}

type mockEntityStore struct {
	getByCodeFn      func(ctx context.Context, code string) (*model.Entity, error)
	listFn           func(ctx context.Context) ([]model.Entity, error)
	capturedUpserts  []*model.Entity
	upsertErr        error
	failUpsertAfterN int
}

func (m *mockEntityStore) Upsert(ctx context.Context, e *model.Entity) error {
	if m.upsertErr != nil && len(m.capturedUpserts) >= m.failUpsertAfterN {
		return m.upsertErr
	}
	m.capturedUpserts = append(m.capturedUpserts, e)
	return nil
}

func (m *mockEntityStore) GetByCode(ctx context.Context, code string) (*model.Entity, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, code)
	}
	return nil, store.ErrNotFound
}

func (m *mockEntityStore) List(ctx context.Context) ([]model.Entity, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockEntityStore) ListActive(ctx context.Context) ([]model.Entity, error) {
	return nil, nil
}

type mockPatternStore struct {
	findByKeyFn       func(ctx context.Context, typ model.PatternType, key string) ([]model.LearnedPattern, error)
	listActiveByKeyFn func(ctx context.Context, key string) ([]model.LearnedPattern, error)
	statsFn           func(ctx context.Context, topEntities int32) (*model.PatternStats, error)
	capturedUpserts   []*model.LearnedPattern
	capturedPenalties []penalizeCall
	deactivatedIDs    []int64
}

type penalizeCall struct {
	id         int64
	confidence float64
	note       string
}

func (m *mockPatternStore) GetByID(ctx context.Context, id int64) (*model.LearnedPattern, error) {
	return nil, store.ErrNotFound
}

func (m *mockPatternStore) FindByKey(ctx context.Context, typ model.PatternType, key string) ([]model.LearnedPattern, error) {
	if m.findByKeyFn != nil {
		return m.findByKeyFn(ctx, typ, key)
	}
	return nil, nil
}

func (m *mockPatternStore) ListActive(ctx context.Context) ([]model.LearnedPattern, error) {
	return nil, nil
}

func (m *mockPatternStore) ListActiveByKey(ctx context.Context, key string) ([]model.LearnedPattern, error) {
	if m.listActiveByKeyFn != nil {
		return m.listActiveByKeyFn(ctx, key)
	}
	return nil, nil
}

func (m *mockPatternStore) Upsert(ctx context.Context, p *model.LearnedPattern) error {
	m.capturedUpserts = append(m.capturedUpserts, p)
	return nil
}

func (m *mockPatternStore) Penalize(ctx context.Context, id int64, confidence float64, note string) error {
	m.capturedPenalties = append(m.capturedPenalties, penalizeCall{id: id, confidence: confidence, note: note})
	return nil
}

func (m *mockPatternStore) Deactivate(ctx context.Context, id int64) error {
	m.deactivatedIDs = append(m.deactivatedIDs, id)
	return nil
}

func (m *mockPatternStore) MarkUsed(ctx context.Context, ids []int64, usedAt time.Time) error {
	return nil
}

func (m *mockPatternStore) Stats(ctx context.Context, topEntities int32) (*model.PatternStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, topEntities)
	}
	return &model.PatternStats{}, nil
}

// upsertOfType filters the captured pattern upserts by type, in call order.
func (m *mockPatternStore) upsertsOfType(typ model.PatternType) []*model.LearnedPattern {
	var out []*model.LearnedPattern
	for _, p := range m.capturedUpserts {
		if p.Type == typ {
			out = append(out, p)
		}
	}
	return out
}

type mockSuggestionStore struct {
	getByIDFn      func(ctx context.Context, id int64) (*model.Suggestion, error)
	getByShortIDFn func(ctx context.Context, shortID string) (*model.Suggestion, error)
	listPendingFn  func(ctx context.Context, limit int32) ([]model.Suggestion, error)
	listByRecordFn func(ctx context.Context, recordID int64) ([]model.Suggestion, error)
	markReviewedFn func(ctx context.Context, id int64, status model.SuggestionStatus, reviewerNote *string) (*model.Suggestion, error)
	reviewedWith   []model.SuggestionStatus
	appliedIDs     []int64
}

func (m *mockSuggestionStore) Create(ctx context.Context, s *model.Suggestion) error {
	return nil
}

func (m *mockSuggestionStore) GetByID(ctx context.Context, id int64) (*model.Suggestion, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockSuggestionStore) GetByShortID(ctx context.Context, shortID string) (*model.Suggestion, error) {
	if m.getByShortIDFn != nil {
		return m.getByShortIDFn(ctx, shortID)
	}
	return nil, store.ErrNotFound
}

func (m *mockSuggestionStore) ListPending(ctx context.Context, limit int32) ([]model.Suggestion, error) {
	if m.listPendingFn != nil {
		return m.listPendingFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockSuggestionStore) ListByRecord(ctx context.Context, recordID int64) ([]model.Suggestion, error) {
	if m.listByRecordFn != nil {
		return m.listByRecordFn(ctx, recordID)
	}
	return nil, nil
}

func (m *mockSuggestionStore) HasPendingForRecord(ctx context.Context, recordID int64, entityCode string) (bool, error) {
	return false, nil
}

func (m *mockSuggestionStore) MarkReviewed(ctx context.Context, id int64, status model.SuggestionStatus, reviewerNote *string) (*model.Suggestion, error) {
	m.reviewedWith = append(m.reviewedWith, status)
	if m.markReviewedFn != nil {
		return m.markReviewedFn(ctx, id, status, reviewerNote)
	}
	return &model.Suggestion{ID: id, Status: status, ReviewerNote: reviewerNote}, nil
}

func (m *mockSuggestionStore) MarkApplied(ctx context.Context, id int64) error {
	m.appliedIDs = append(m.appliedIDs, id)
	return nil
}

type mockBindingStore struct {
	existsForRecordFn func(ctx context.Context, recordID int64) (bool, error)
	listByRecordFn    func(ctx context.Context, recordID int64) ([]model.RecordBinding, error)
	capturedBinding   *model.RecordBinding
	createErr         error
}

func (m *mockBindingStore) Create(ctx context.Context, b *model.RecordBinding) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.capturedBinding = b
	return nil
}

func (m *mockBindingStore) ListByRecord(ctx context.Context, recordID int64) ([]model.RecordBinding, error) {
	if m.listByRecordFn != nil {
		return m.listByRecordFn(ctx, recordID)
	}
	return nil, nil
}

func (m *mockBindingStore) ExistsForRecord(ctx context.Context, recordID int64) (bool, error) {
	if m.existsForRecordFn != nil {
		return m.existsForRecordFn(ctx, recordID)
	}
	return false, nil
}

type mockEventStore struct {
	capturedEvents []*model.ResolutionEvent
	appendErr      error
}

func (m *mockEventStore) Append(ctx context.Context, ev *model.ResolutionEvent) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.capturedEvents = append(m.capturedEvents, ev)
	return nil
}

func (m *mockEventStore) ListByRecord(ctx context.Context, recordID int64, limit int32) ([]model.ResolutionEvent, error) {
	return nil, nil
}

type mockStoreProvider struct {
	records     *mockRecordStore
	entities    *mockEntityStore
	patterns    *mockPatternStore
	suggestions *mockSuggestionStore
	bindings    *mockBindingStore
	events      *mockEventStore
}

func newMockStoreProvider() *mockStoreProvider {
	return &mockStoreProvider{
		records:     &mockRecordStore{},
		entities:    &mockEntityStore{},
		patterns:    &mockPatternStore{},
		suggestions: &mockSuggestionStore{},
		bindings:    &mockBindingStore{},
		events:      &mockEventStore{},
	}
}

func (m *mockStoreProvider) Records() store.RecordStore         { return m.records }
func (m *mockStoreProvider) Entities() store.EntityStore        { return m.entities }
func (m *mockStoreProvider) Patterns() store.PatternStore       { return m.patterns }
func (m *mockStoreProvider) Suggestions() store.SuggestionStore { return m.suggestions }
func (m *mockStoreProvider) Bindings() store.BindingStore       { return m.bindings }
func (m *mockStoreProvider) Events() store.EventStore           { return m.events }

type mockTxRunner struct {
	provider *mockStoreProvider
	withTxFn func(ctx context.Context, fn func(sp service.StoreProvider) error) error
	txCalls  int
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(sp service.StoreProvider) error) error {
	m.txCalls++
	if m.withTxFn != nil {
		return m.withTxFn(ctx, fn)
	}
	if m.provider == nil {
		m.provider = newMockStoreProvider()
	}
	return fn(m.provider)
}

type mockQueueProducer struct {
	enqueueFn     func(ctx context.Context, task queue.Task) error
	enqueuedTasks []queue.Task
}

func (m *mockQueueProducer) Enqueue(ctx context.Context, task queue.Task) error {
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, task)
	}
	m.enqueuedTasks = append(m.enqueuedTasks, task)
	return nil
}

func (m *mockQueueProducer) Close() error {
	return nil
}
