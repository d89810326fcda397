package repository

import (
	"context"
	"errors"
	"fmt"

	"PriceProbe/internal/domain/models"
	drepo "PriceProbe/internal/domain/repository"
	"PriceProbe/pkg/cache"
)

// SnapshotStore keeps the latest observation per symbol in a cache.Service.
// It is overwritten every cycle and holds no history.
type SnapshotStore struct {
	cache cache.Service
}

// NewSnapshotStore creates a store backed by c.
func NewSnapshotStore(c cache.Service) drepo.SnapshotStore {
	return &SnapshotStore{cache: c}
}

func (s *SnapshotStore) Put(ctx context.Context, o *models.Observation) error {
	if o == nil || o.Symbol == "" {
		return fmt.Errorf("snapshot: observation without symbol")
	}
	return s.cache.Set(ctx, o.Symbol, o, 0)
}

func (s *SnapshotStore) Get(ctx context.Context, symbol string) (*models.Observation, error) {
	o, err := cache.GetTyped[models.Observation](ctx, s.cache, symbol)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, drepo.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// All returns the snapshot ordered by symbol.
func (s *SnapshotStore) All(ctx context.Context) ([]*models.Observation, error) {
	keys, err := s.cache.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Observation, 0, len(keys))
	for _, k := range keys {
		o, err := s.Get(ctx, k)
		if errors.Is(err, drepo.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
