package store

import (
	"context"
	"fmt"

	"anchorline.app/resolver/internal/model"
)

type bindingStore struct {
	db DBTX
}

func newBindingStore(db DBTX) BindingStore {
	return &bindingStore{db: db}
}

func (s *bindingStore) Create(ctx context.Context, b *model.RecordBinding) error {
	query := `
		INSERT INTO record_bindings (id, record_id, entity_code, source, method, score)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING bound_at
	`

	err := s.db.QueryRow(ctx, query,
		b.ID,
		b.RecordID,
		b.EntityCode,
		string(b.Source),
		string(b.Method),
		b.Score,
	).Scan(&b.BoundAt)
	if err != nil {
		return fmt.Errorf("creating binding: %w", err)
	}
	return nil
}

func (s *bindingStore) ListByRecord(ctx context.Context, recordID int64) ([]model.RecordBinding, error) {
	query := `
		SELECT id, record_id, entity_code, source, method, score, bound_at
		FROM record_bindings
		WHERE record_id = $1
		ORDER BY bound_at ASC
	`

	rows, err := s.db.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("listing bindings: %w", err)
	}
	defer rows.Close()

	var bindings []model.RecordBinding
	for rows.Next() {
		var b model.RecordBinding
		var source, method string
		if err := rows.Scan(&b.ID, &b.RecordID, &b.EntityCode, &source, &method, &b.Score, &b.BoundAt); err != nil {
			return nil, err
		}
		b.Source = model.BindingSource(source)
		b.Method = model.Method(method)
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bindings: %w", err)
	}
	return bindings, nil
}

func (s *bindingStore) ExistsForRecord(ctx context.Context, recordID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM record_bindings WHERE record_id = $1)`

	var exists bool
	if err := s.db.QueryRow(ctx, query, recordID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking bindings: %w", err)
	}
	return exists, nil
}
