package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"anchorline.app/resolver/common/id"
	"anchorline.app/resolver/internal/model"
	"anchorline.app/resolver/internal/queue"
	"anchorline.app/resolver/internal/store"
)

var (
	ErrInvalidRecord  = errors.New("invalid record")
	ErrRecordNotFound = errors.New("record not found")
)

type RecordIngestParams struct {
	SenderAddress string    `json:"sender_address"`
	SenderName    *string   `json:"sender_name,omitempty"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	SourceKind    string    `json:"source_kind,omitempty"`
	OccurredAt    time.Time `json:"occurred_at,omitempty"`

	TraceID *string `json:"trace_id,omitempty"`
}

type RecordIngestResult struct {
	Record   *model.Record
	Enqueued bool
}

// RecordDetail is a record together with everything resolution produced
// for it.
type RecordDetail struct {
	Record      *model.Record
	Bindings    []model.RecordBinding
	Suggestions []model.Suggestion
}

type RecordIngestService interface {
	Ingest(ctx context.Context, params RecordIngestParams) (*RecordIngestResult, error)
	Get(ctx context.Context, ref string) (*RecordDetail, error)
}

type recordIngestService struct {
	stores   StoreProvider
	txRunner TxRunner
	queue    queue.Producer
	logger   *slog.Logger
}

func NewRecordIngestService(stores StoreProvider, txRunner TxRunner, queue queue.Producer, logger *slog.Logger) RecordIngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &recordIngestService{
		stores:   stores,
		txRunner: txRunner,
		queue:    queue,
		logger:   logger,
	}
}

func (s *recordIngestService) Ingest(ctx context.Context, params RecordIngestParams) (*RecordIngestResult, error) {
	sender := strings.TrimSpace(params.SenderAddress)
	subject := strings.TrimSpace(params.Subject)
	if sender == "" {
		return nil, fmt.Errorf("%w: sender_address is required", ErrInvalidRecord)
	}
	if subject == "" && strings.TrimSpace(params.Body) == "" {
		return nil, fmt.Errorf("%w: subject or body is required", ErrInvalidRecord)
	}

	sourceKind := model.SourceKindCorrespondence
	if params.SourceKind != "" {
		switch model.SourceKind(params.SourceKind) {
		case model.SourceKindCorrespondence, model.SourceKindTranscript:
			sourceKind = model.SourceKind(params.SourceKind)
		default:
			return nil, fmt.Errorf("%w: unknown source_kind %q", ErrInvalidRecord, params.SourceKind)
		}
	}

	occurredAt := params.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	recordID := id.New()
	rec := &model.Record{
		ID:               recordID,
		ShortID:          id.Ref("rec", recordID),
		SenderAddress:    sender,
		SenderName:       params.SenderName,
		Subject:          subject,
		Body:             params.Body,
		SourceKind:       sourceKind,
		OccurredAt:       occurredAt,
		ResolutionStatus: model.RecordStatusPending,
	}

	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		return sp.Records().Create(ctx, rec)
	}); err != nil {
		return nil, err
	}

	// The record is durable at this point. A failed enqueue is recoverable,
	// the resweep picks stale pending records back up, so it downgrades to a
	// warning instead of failing the ingest.
	enqueued := true
	if err := s.queue.Enqueue(ctx, queue.Task{
		TaskType: queue.TaskTypeResolveRecord,
		RecordID: rec.ID,
		Attempt:  1,
		TraceID:  params.TraceID,
	}); err != nil {
		enqueued = false
		s.logger.WarnContext(ctx, "enqueue failed, record left for resweep",
			"record_id", rec.ID,
			"error", err)
	}

	s.logger.InfoContext(ctx, "record ingested",
		"record_id", rec.ID,
		"short_id", rec.ShortID,
		"source_kind", string(rec.SourceKind),
		"enqueued", enqueued)

	return &RecordIngestResult{Record: rec, Enqueued: enqueued}, nil
}

func (s *recordIngestService) Get(ctx context.Context, ref string) (*RecordDetail, error) {
	var (
		rec *model.Record
		err error
	)
	if numericID, parseErr := strconv.ParseInt(ref, 10, 64); parseErr == nil {
		rec, err = s.stores.Records().GetByID(ctx, numericID)
	} else {
		rec, err = s.stores.Records().GetByShortID(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("fetching record: %w", err)
	}

	bindings, err := s.stores.Bindings().ListByRecord(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("listing bindings: %w", err)
	}
	suggestions, err := s.stores.Suggestions().ListByRecord(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("listing suggestions: %w", err)
	}

	return &RecordDetail{
		Record:      rec,
		Bindings:    bindings,
		Suggestions: suggestions,
	}, nil
}
