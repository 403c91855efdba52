package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"anchorline.app/resolver/internal/model"
)

type recordStore struct {
	db DBTX
}

func newRecordStore(db DBTX) RecordStore {
	return &recordStore{db: db}
}

const recordColumns = `id, short_id, sender_address, sender_name, subject, body,
	source_kind, occurred_at, resolution_status, created_at, updated_at`

func (s *recordStore) Create(ctx context.Context, rec *model.Record) error {
	query := `
		INSERT INTO records (
			id, short_id, sender_address, sender_name, subject, body,
			source_kind, occurred_at, resolution_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		rec.ID,
		rec.ShortID,
		rec.SenderAddress,
		rec.SenderName,
		rec.Subject,
		rec.Body,
		string(rec.SourceKind),
		rec.OccurredAt,
		string(rec.ResolutionStatus),
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating record: %w", err)
	}
	return nil
}

func (s *recordStore) GetByID(ctx context.Context, id int64) (*model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1`
	return scanRecord(s.db.QueryRow(ctx, query, id))
}

func (s *recordStore) GetByShortID(ctx context.Context, shortID string) (*model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE short_id = $1`
	return scanRecord(s.db.QueryRow(ctx, query, shortID))
}

func (s *recordStore) SetResolutionStatus(ctx context.Context, id int64, status model.RecordStatus) error {
	query := `
		UPDATE records
		SET resolution_status = $2, updated_at = now()
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("updating record status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListResolvableBefore returns records still eligible for a resolution pass
// that have not been touched since the cutoff. Pending rows this old lost
// their enqueue; unresolved rows get another chance once patterns grow.
func (s *recordStore) ListResolvableBefore(ctx context.Context, cutoff time.Time, limit int32) ([]model.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE resolution_status = ANY($1) AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`

	statuses := []string{
		string(model.RecordStatusPending),
		string(model.RecordStatusUnresolved),
	}
	rows, err := s.db.Query(ctx, query, statuses, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("listing resolvable records: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		rec, err := scanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*model.Record, error) {
	rec, err := scanRecordRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func scanRecordRow(row pgx.Row) (*model.Record, error) {
	var rec model.Record
	var sourceKind, status string

	err := row.Scan(
		&rec.ID,
		&rec.ShortID,
		&rec.SenderAddress,
		&rec.SenderName,
		&rec.Subject,
		&rec.Body,
		&sourceKind,
		&rec.OccurredAt,
		&status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.SourceKind = model.SourceKind(sourceKind)
	rec.ResolutionStatus = model.RecordStatus(status)
	return &rec, nil
}
