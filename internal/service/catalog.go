package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"anchorline.app/resolver/common/id"
	"anchorline.app/resolver/internal/model"
	"anchorline.app/resolver/internal/store"
)

var ErrInvalidEntity = errors.New("invalid entity")

// CatalogEntry is one entity as pushed by the catalog owner. Unset fields
// take their defaults (kind project, active true) rather than erroring, so
// the owner can sync a minimal code+name list.
type CatalogEntry struct {
	Kind    string   `json:"kind,omitempty"`
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Company *string  `json:"company,omitempty"`
	Domain  *string  `json:"domain,omitempty"`
	Active  *bool    `json:"active,omitempty"`
}

type CatalogSyncResult struct {
	Synced int `json:"synced"`
}

// CatalogService maintains the entity catalog. Sync is upsert-only: entities
// absent from a push are left untouched, and retirement happens by pushing
// active=false, never by deletion.
type CatalogService interface {
	Sync(ctx context.Context, entries []CatalogEntry) (*CatalogSyncResult, error)
	List(ctx context.Context) ([]model.Entity, error)
	Get(ctx context.Context, code string) (*model.Entity, error)
}

type catalogService struct {
	stores   StoreProvider
	txRunner TxRunner
}

func NewCatalogService(stores StoreProvider, txRunner TxRunner) CatalogService {
	return &catalogService{stores: stores, txRunner: txRunner}
}

func (s *catalogService) Sync(ctx context.Context, entries []CatalogEntry) (*CatalogSyncResult, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: at least one entity is required", ErrInvalidEntity)
	}

	// Validate the whole push before touching the catalog, so a bad entry
	// halfway through cannot leave a partial sync behind.
	entities := make([]*model.Entity, 0, len(entries))
	for i, entry := range entries {
		e, err := normalizeEntry(i, entry)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}

	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		for _, e := range entities {
			if err := sp.Entities().Upsert(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "catalog synced", "entities", len(entities))
	return &CatalogSyncResult{Synced: len(entities)}, nil
}

func (s *catalogService) List(ctx context.Context) ([]model.Entity, error) {
	return s.stores.Entities().List(ctx)
}

func (s *catalogService) Get(ctx context.Context, code string) (*model.Entity, error) {
	entity, err := s.stores.Entities().GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("fetching entity: %w", err)
	}
	return entity, nil
}

func normalizeEntry(i int, entry CatalogEntry) (*model.Entity, error) {
	code := strings.ToUpper(strings.TrimSpace(entry.Code))
	if code == "" {
		return nil, fmt.Errorf("%w: entry %d: code is required", ErrInvalidEntity, i)
	}
	name := strings.TrimSpace(entry.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: entry %d (%s): name is required", ErrInvalidEntity, i, code)
	}

	kind := model.EntityKindProject
	if entry.Kind != "" {
		switch model.EntityKind(entry.Kind) {
		case model.EntityKindProject, model.EntityKindProposal, model.EntityKindContact:
			kind = model.EntityKind(entry.Kind)
		default:
			return nil, fmt.Errorf("%w: entry %d (%s): unknown kind %q", ErrInvalidEntity, i, code, entry.Kind)
		}
	}

	var aliases []string
	for _, alias := range entry.Aliases {
		if alias = strings.TrimSpace(alias); alias != "" {
			aliases = append(aliases, alias)
		}
	}

	var company *string
	if entry.Company != nil {
		if c := strings.TrimSpace(*entry.Company); c != "" {
			company = &c
		}
	}
	var domain *string
	if entry.Domain != nil {
		if d := strings.ToLower(strings.TrimSpace(*entry.Domain)); d != "" {
			domain = &d
		}
	}

	active := true
	if entry.Active != nil {
		active = *entry.Active
	}

	return &model.Entity{
		ID:      id.New(),
		Kind:    kind,
		Code:    code,
		Name:    name,
		Aliases: aliases,
		Company: company,
		Domain:  domain,
		Active:  active,
	}, nil
}
