package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"anchorline.app/resolver/internal/model"
)

type suggestionStore struct {
	db DBTX
}

func newSuggestionStore(db DBTX) SuggestionStore {
	return &suggestionStore{db: db}
}

const suggestionColumns = `id, short_id, record_id, top_entity_code, chosen_method,
	shortlist, status, reviewer_note, reviewed_at, applied_at, created_at, updated_at`

// Create inserts a pending suggestion. Duplicate (record, top-entity) pending
// pairs hit the partial unique index; callers absorb that with
// IsUniqueViolation as the idempotent no-op.
func (s *suggestionStore) Create(ctx context.Context, sug *model.Suggestion) error {
	shortlist, err := json.Marshal(sug.Shortlist)
	if err != nil {
		return fmt.Errorf("encoding shortlist: %w", err)
	}

	query := `
		INSERT INTO suggestions (
			id, short_id, record_id, top_entity_code, chosen_method,
			shortlist, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err = s.db.QueryRow(ctx, query,
		sug.ID,
		sug.ShortID,
		sug.RecordID,
		sug.TopEntityCode,
		string(sug.ChosenMethod),
		shortlist,
		string(sug.Status),
	).Scan(&sug.CreatedAt, &sug.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating suggestion: %w", err)
	}
	return nil
}

func (s *suggestionStore) GetByID(ctx context.Context, id int64) (*model.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE id = $1`
	return s.get(ctx, query, id)
}

func (s *suggestionStore) GetByShortID(ctx context.Context, shortID string) (*model.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE short_id = $1`
	return s.get(ctx, query, shortID)
}

func (s *suggestionStore) ListPending(ctx context.Context, limit int32) ([]model.Suggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM suggestions
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	return s.list(ctx, query, string(model.SuggestionStatusPending), limit)
}

func (s *suggestionStore) ListByRecord(ctx context.Context, recordID int64) ([]model.Suggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM suggestions
		WHERE record_id = $1
		ORDER BY created_at DESC
	`
	return s.list(ctx, query, recordID)
}

func (s *suggestionStore) HasPendingForRecord(ctx context.Context, recordID int64, entityCode string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM suggestions
			WHERE record_id = $1 AND top_entity_code = $2 AND status = $3
		)
	`

	var exists bool
	err := s.db.QueryRow(ctx, query, recordID, entityCode, string(model.SuggestionStatusPending)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking pending suggestion: %w", err)
	}
	return exists, nil
}

// MarkReviewed moves a pending suggestion to a reviewed status. The WHERE
// guard makes concurrent reviews race-safe: the losing call sees ErrNotFound
// and the service reports the suggestion as already reviewed.
func (s *suggestionStore) MarkReviewed(ctx context.Context, id int64, status model.SuggestionStatus, reviewerNote *string) (*model.Suggestion, error) {
	query := `
		UPDATE suggestions
		SET status = $2, reviewer_note = $3, reviewed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $4
		RETURNING ` + suggestionColumns

	sug, err := scanSuggestion(s.db.QueryRow(ctx, query,
		id, string(status), reviewerNote, string(model.SuggestionStatusPending)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sug, nil
}

func (s *suggestionStore) MarkApplied(ctx context.Context, id int64) error {
	query := `
		UPDATE suggestions
		SET status = $2, applied_at = now(), updated_at = now()
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query, id, string(model.SuggestionStatusApplied))
	if err != nil {
		return fmt.Errorf("marking suggestion applied: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *suggestionStore) get(ctx context.Context, query string, arg any) (*model.Suggestion, error) {
	sug, err := scanSuggestion(s.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sug, nil
}

func (s *suggestionStore) list(ctx context.Context, query string, args ...any) ([]model.Suggestion, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []model.Suggestion
	for rows.Next() {
		sug, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, *sug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating suggestions: %w", err)
	}
	return suggestions, nil
}

func scanSuggestion(row pgx.Row) (*model.Suggestion, error) {
	var sug model.Suggestion
	var chosenMethod, status string
	var shortlist []byte

	err := row.Scan(
		&sug.ID,
		&sug.ShortID,
		&sug.RecordID,
		&sug.TopEntityCode,
		&chosenMethod,
		&shortlist,
		&status,
		&sug.ReviewerNote,
		&sug.ReviewedAt,
		&sug.AppliedAt,
		&sug.CreatedAt,
		&sug.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sug.ChosenMethod = model.Method(chosenMethod)
	sug.Status = model.SuggestionStatus(status)
	if len(shortlist) > 0 {
		if err := json.Unmarshal(shortlist, &sug.Shortlist); err != nil {
			return nil, fmt.Errorf("decoding shortlist: %w", err)
		}
	}
	return &sug, nil
}
