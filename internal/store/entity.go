package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"anchorline.app/resolver/internal/model"
)

type entityStore struct {
	db DBTX
}

func newEntityStore(db DBTX) EntityStore {
	return &entityStore{db: db}
}

const entityColumns = `id, kind, code, name, aliases, company, domain, active,
	created_at, updated_at`

// Upsert inserts or refreshes one catalog entity, keyed by code. The sync
// endpoint is owner-driven and upsert-only, so there is no delete path.
func (s *entityStore) Upsert(ctx context.Context, e *model.Entity) error {
	query := `
		INSERT INTO entities (id, kind, code, name, aliases, company, domain, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code)
		DO UPDATE SET
			kind = EXCLUDED.kind,
			name = EXCLUDED.name,
			aliases = EXCLUDED.aliases,
			company = EXCLUDED.company,
			domain = EXCLUDED.domain,
			active = EXCLUDED.active,
			updated_at = now()
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		e.ID,
		string(e.Kind),
		e.Code,
		e.Name,
		e.Aliases,
		e.Company,
		e.Domain,
		e.Active,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting entity %s: %w", e.Code, err)
	}
	return nil
}

func (s *entityStore) GetByCode(ctx context.Context, code string) (*model.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE code = $1`

	e, err := scanEntity(s.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *entityStore) List(ctx context.Context) ([]model.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities ORDER BY code ASC`
	return s.list(ctx, query)
}

func (s *entityStore) ListActive(ctx context.Context) ([]model.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE active ORDER BY code ASC`
	return s.list(ctx, query)
}

func (s *entityStore) list(ctx context.Context, query string) ([]model.Entity, error) {
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	var entities []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

func scanEntity(row pgx.Row) (*model.Entity, error) {
	var e model.Entity
	var kind string

	err := row.Scan(
		&e.ID,
		&kind,
		&e.Code,
		&e.Name,
		&e.Aliases,
		&e.Company,
		&e.Domain,
		&e.Active,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Kind = model.EntityKind(kind)
	return &e, nil
}
