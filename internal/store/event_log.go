package store

import (
	"context"
	"fmt"

	"anchorline.app/resolver/internal/model"
)

type eventStore struct {
	db DBTX
}

func newEventStore(db DBTX) EventStore {
	return &eventStore{db: db}
}

func (s *eventStore) Append(ctx context.Context, ev *model.ResolutionEvent) error {
	query := `
		INSERT INTO resolution_events (id, record_id, kind, detail)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	detail := []byte(ev.Detail)
	if len(detail) == 0 {
		detail = []byte("{}")
	}

	err := s.db.QueryRow(ctx, query,
		ev.ID,
		ev.RecordID,
		string(ev.Kind),
		detail,
	).Scan(&ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending resolution event: %w", err)
	}
	return nil
}

func (s *eventStore) ListByRecord(ctx context.Context, recordID int64, limit int32) ([]model.ResolutionEvent, error) {
	query := `
		SELECT id, record_id, kind, detail, created_at
		FROM resolution_events
		WHERE record_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, recordID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing resolution events: %w", err)
	}
	defer rows.Close()

	var events []model.ResolutionEvent
	for rows.Next() {
		var ev model.ResolutionEvent
		var kind string
		var detail []byte
		if err := rows.Scan(&ev.ID, &ev.RecordID, &kind, &detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Kind = model.ResolutionEventKind(kind)
		ev.Detail = detail
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating resolution events: %w", err)
	}
	return events, nil
}
