package engine

import (
	"context"

	"anchorline.app/resolver/internal/domain"
	"anchorline.app/resolver/internal/model"
)

// Generator is one independent matching strategy. Implementations read the
// snapshots and never write anything; a generator that cannot contribute
// returns an empty slice, including on internal failure (fail-open).
type Generator interface {
	Name() string
	Generate(ctx context.Context, rec *model.Record, cat *CatalogSnapshot, pat *PatternSnapshot) []domain.Candidate
}
