package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"anchorline.app/resolver/internal/model"
)

var ErrInvalidPatternQuery = errors.New("invalid pattern query")

const defaultTopEntities = 5

// StatsService exposes the operational view of the pattern store: what has
// been learned, how confident it is, and which entities have accumulated the
// most evidence.
type StatsService interface {
	PatternStats(ctx context.Context, topEntities int32) (*model.PatternStats, error)
	PatternsForKey(ctx context.Context, key string) ([]model.LearnedPattern, error)
}

type statsService struct {
	stores StoreProvider
}

func NewStatsService(stores StoreProvider) StatsService {
	return &statsService{stores: stores}
}

func (s *statsService) PatternStats(ctx context.Context, topEntities int32) (*model.PatternStats, error) {
	if topEntities <= 0 {
		topEntities = defaultTopEntities
	}
	stats, err := s.stores.Patterns().Stats(ctx, topEntities)
	if err != nil {
		return nil, fmt.Errorf("computing pattern stats: %w", err)
	}
	return stats, nil
}

func (s *statsService) PatternsForKey(ctx context.Context, key string) ([]model.LearnedPattern, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", ErrInvalidPatternQuery)
	}
	patterns, err := s.stores.Patterns().ListActiveByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("listing patterns for key: %w", err)
	}
	return patterns, nil
}
