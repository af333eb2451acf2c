package delivery

import (
	"context"

	"github.com/sirupsen/logrus"

	"domiflash/internal/cache"
)

// CachedStore serves restaurant coordinates from the cache and delegates
// everything else to the wrapped Store. Cache failures fall through to the store.
type CachedStore struct {
	Store
	cache *cache.Cache
	log   logrus.FieldLogger
}

func NewCachedStore(store Store, c *cache.Cache, log logrus.FieldLogger) *CachedStore {
	return &CachedStore{Store: store, cache: c, log: log}
}

func (s *CachedStore) RestaurantLocation(ctx context.Context, restaurantID uint) (*RestaurantLocation, error) {
	key := cache.RestaurantLocationKey(restaurantID)

	var loc RestaurantLocation
	found, err := s.cache.Get(ctx, key, &loc)
	switch {
	case err != nil:
		CacheRequestsTotal.WithLabelValues("error").Inc()
		s.log.WithError(err).WithField("restaurant_id", restaurantID).Warn("restaurant location cache read failed")
	case found:
		CacheRequestsTotal.WithLabelValues("hit").Inc()
		return &loc, nil
	default:
		CacheRequestsTotal.WithLabelValues("miss").Inc()
	}

	fresh, err := s.Store.RestaurantLocation(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, fresh); err != nil {
		s.log.WithError(err).WithField("restaurant_id", restaurantID).Warn("restaurant location cache write failed")
	}
	return fresh, nil
}
