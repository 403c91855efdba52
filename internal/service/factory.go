package service

import (
	"anchorline.app/resolver/core/config"
	"anchorline.app/resolver/internal/queue"
	"anchorline.app/resolver/internal/store"
)

type Services struct {
	stores   *store.Stores
	txRunner TxRunner
	queue    queue.Producer
	resolver config.ResolverConfig
}

func NewServices(stores *store.Stores, txRunner TxRunner, queue queue.Producer, resolver config.ResolverConfig) *Services {
	return &Services{
		stores:   stores,
		txRunner: txRunner,
		queue:    queue,
		resolver: resolver,
	}
}

func (s *Services) Records() RecordIngestService {
	return NewRecordIngestService(s.stores, s.txRunner, s.queue, nil)
}

func (s *Services) Reviews() ReviewService {
	return NewReviewService(s.stores, s.txRunner, s.resolver)
}

func (s *Services) Catalog() CatalogService {
	return NewCatalogService(s.stores, s.txRunner)
}

func (s *Services) Redirects() RedirectService {
	return NewRedirectService(s.txRunner)
}

func (s *Services) Stats() StatsService {
	return NewStatsService(s.stores)
}

func (s *Services) Resweep() ResweepService {
	return NewResweepService(s.stores, s.queue)
}
