package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"anchorline.app/resolver/internal/model"
)

type patternStore struct {
	db DBTX
}

func newPatternStore(db DBTX) PatternStore {
	return &patternStore{db: db}
}

const patternColumns = `id, pattern_type, key, target_entity_code, confidence,
	times_correct, times_rejected, active, note, created_from_record_id,
	last_used_at, created_at, updated_at`

func (s *patternStore) GetByID(ctx context.Context, id int64) (*model.LearnedPattern, error) {
	query := `SELECT ` + patternColumns + ` FROM learned_patterns WHERE id = $1`

	p, err := scanPattern(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// FindByKey returns every pattern of one type for a normalized key, active or
// not. The reinforcement loop needs the inactive ones too so a re-approved
// pattern resumes its history instead of starting a duplicate.
func (s *patternStore) FindByKey(ctx context.Context, typ model.PatternType, key string) ([]model.LearnedPattern, error) {
	query := `
		SELECT ` + patternColumns + `
		FROM learned_patterns
		WHERE pattern_type = $1 AND key = $2
		ORDER BY target_entity_code ASC
	`
	return s.list(ctx, query, string(typ), key)
}

func (s *patternStore) ListActive(ctx context.Context) ([]model.LearnedPattern, error) {
	query := `
		SELECT ` + patternColumns + `
		FROM learned_patterns
		WHERE active
		ORDER BY pattern_type ASC, key ASC
	`
	return s.list(ctx, query)
}

func (s *patternStore) ListActiveByKey(ctx context.Context, key string) ([]model.LearnedPattern, error) {
	query := `
		SELECT ` + patternColumns + `
		FROM learned_patterns
		WHERE active AND lower(key) = lower($1)
		ORDER BY pattern_type ASC, target_entity_code ASC
	`
	return s.list(ctx, query, key)
}

// Upsert writes a pattern keyed by (type, key, target). Confidence and
// counters are taken as computed by the caller; concurrent writers are
// last-writer-wins on confidence.
func (s *patternStore) Upsert(ctx context.Context, p *model.LearnedPattern) error {
	query := `
		INSERT INTO learned_patterns (
			id, pattern_type, key, target_entity_code, confidence,
			times_correct, times_rejected, active, note, created_from_record_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (pattern_type, key, target_entity_code)
		DO UPDATE SET
			confidence = EXCLUDED.confidence,
			times_correct = EXCLUDED.times_correct,
			times_rejected = EXCLUDED.times_rejected,
			active = EXCLUDED.active,
			note = COALESCE(EXCLUDED.note, learned_patterns.note),
			updated_at = now()
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		p.ID,
		string(p.Type),
		p.Key,
		p.TargetEntityCode,
		p.Confidence,
		p.TimesCorrect,
		p.TimesRejected,
		p.Active,
		p.Note,
		p.CreatedFromRecordID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting pattern %s/%s: %w", p.Type, p.Key, err)
	}
	return nil
}

func (s *patternStore) Penalize(ctx context.Context, id int64, confidence float64, note string) error {
	query := `
		UPDATE learned_patterns
		SET confidence = $2,
			times_rejected = times_rejected + 1,
			note = $3,
			updated_at = now()
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query, id, confidence, note)
	if err != nil {
		return fmt.Errorf("penalizing pattern %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *patternStore) Deactivate(ctx context.Context, id int64) error {
	query := `
		UPDATE learned_patterns
		SET active = false, updated_at = now()
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivating pattern %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *patternStore) MarkUsed(ctx context.Context, ids []int64, usedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE learned_patterns SET last_used_at = $2 WHERE id = ANY($1)`
	if _, err := s.db.Exec(ctx, query, ids, usedAt); err != nil {
		return fmt.Errorf("marking patterns used: %w", err)
	}
	return nil
}

func (s *patternStore) Stats(ctx context.Context, topEntities int32) (*model.PatternStats, error) {
	stats := &model.PatternStats{
		CountsByType:        make(map[model.PatternType]int),
		AvgConfidenceByType: make(map[model.PatternType]float64),
	}

	byType := `
		SELECT pattern_type, COUNT(*), AVG(confidence)
		FROM learned_patterns
		WHERE active
		GROUP BY pattern_type
	`
	rows, err := s.db.Query(ctx, byType)
	if err != nil {
		return nil, fmt.Errorf("counting patterns by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var count int
		var avg float64
		if err := rows.Scan(&typ, &count, &avg); err != nil {
			return nil, err
		}
		stats.CountsByType[model.PatternType(typ)] = count
		stats.AvgConfidenceByType[model.PatternType(typ)] = avg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating type counts: %w", err)
	}

	topQuery := `
		SELECT target_entity_code, COUNT(*) AS pattern_count
		FROM learned_patterns
		WHERE active AND target_entity_code <> ''
		GROUP BY target_entity_code
		ORDER BY pattern_count DESC, target_entity_code ASC
		LIMIT $1
	`
	topRows, err := s.db.Query(ctx, topQuery, topEntities)
	if err != nil {
		return nil, fmt.Errorf("ranking entities by pattern count: %w", err)
	}
	defer topRows.Close()

	for topRows.Next() {
		var ec model.EntityPatternCount
		if err := topRows.Scan(&ec.EntityCode, &ec.PatternCount); err != nil {
			return nil, err
		}
		stats.TopEntities = append(stats.TopEntities, ec)
	}
	if err := topRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating top entities: %w", err)
	}

	return stats, nil
}

func (s *patternStore) list(ctx context.Context, query string, args ...any) ([]model.LearnedPattern, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing patterns: %w", err)
	}
	defer rows.Close()

	var patterns []model.LearnedPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patterns: %w", err)
	}
	return patterns, nil
}

func scanPattern(row pgx.Row) (*model.LearnedPattern, error) {
	var p model.LearnedPattern
	var typ string

	err := row.Scan(
		&p.ID,
		&typ,
		&p.Key,
		&p.TargetEntityCode,
		&p.Confidence,
		&p.TimesCorrect,
		&p.TimesRejected,
		&p.Active,
		&p.Note,
		&p.CreatedFromRecordID,
		&p.LastUsedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Type = model.PatternType(typ)
	return &p, nil
}
