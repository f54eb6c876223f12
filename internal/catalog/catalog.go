// Package catalog provides the list of services the funnel offers, backed by
// the lead backend with layered caching.
package catalog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sonnkraft/funnel-backend/internal/cache/redis"
	"github.com/sonnkraft/funnel-backend/internal/types"
)

const (
	// servicesCacheKey is the Redis key for the cached service list.
	servicesCacheKey = "funnel:catalog:services"
	// servicesCacheTTL is short so catalog edits in the lead backend show up
	// without a redeploy.
	servicesCacheTTL = 5 * time.Minute
)

// defaultServices is the built-in fallback when the lead backend is
// unreachable and no cache exists. The funnel must always have a menu.
var defaultServices = []types.Service{
	{ID: "photovoltaik", Name: "Photovoltaik-Anlage"},
	{ID: "waermepumpe", Name: "Wärmepumpe"},
	{ID: "stromspeicher", Name: "Stromspeicher"},
	{ID: "wallbox", Name: "Wallbox"},
}

// Fetcher pulls the current service list from the lead backend.
type Fetcher interface {
	FetchServices(ctx context.Context) ([]types.Service, error)
}

// Service manages service discovery with an in-memory and a Redis cache.
type Service struct {
	fetcher Fetcher
	redis   *redis.Client
	logger  *logrus.Logger

	mu          sync.RWMutex
	services    []types.Service
	cacheExpiry time.Time
}

// NewService creates a new catalog service. redisClient may be nil.
func NewService(fetcher Fetcher, redisClient *redis.Client, logger *logrus.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		redis:   redisClient,
		logger:  logger,
	}
}

// Services returns the current catalog. It never fails: on backend trouble it
// serves the stale in-memory copy, and failing that the built-in defaults.
func (s *Service) Services(ctx context.Context) []types.Service {
	s.mu.RLock()
	if time.Now().Before(s.cacheExpiry) && len(s.services) > 0 {
		services := s.services
		s.mu.RUnlock()
		return services
	}
	s.mu.RUnlock()

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, servicesCacheKey)
		if err == nil && cached != "" {
			var services []types.Service
			if err := json.Unmarshal([]byte(cached), &services); err == nil && len(services) > 0 {
				s.remember(services)
				return services
			}
		}
	}

	services, err := s.fetcher.FetchServices(ctx)
	if err != nil || len(services) == 0 {
		if err != nil {
			s.logger.WithError(err).Warn("failed to fetch service catalog")
		}
		s.mu.RLock()
		stale := s.services
		s.mu.RUnlock()
		if len(stale) > 0 {
			return stale
		}
		return defaultServices
	}

	s.remember(services)

	if s.redis != nil {
		data, err := json.Marshal(services)
		if err == nil {
			if err := s.redis.Set(ctx, servicesCacheKey, string(data), servicesCacheTTL); err != nil {
				s.logger.WithError(err).Warn("failed to cache service catalog in Redis")
			}
		}
	}

	s.logger.WithField("count", len(services)).Debug("fetched service catalog from lead backend")
	return services
}

func (s *Service) remember(services []types.Service) {
	s.mu.Lock()
	s.services = services
	s.cacheExpiry = time.Now().Add(servicesCacheTTL)
	s.mu.Unlock()
}

// InvalidateCache clears both cache layers, forcing a fresh fetch.
func (s *Service) InvalidateCache(ctx context.Context) {
	s.mu.Lock()
	s.cacheExpiry = time.Time{}
	s.mu.Unlock()

	if s.redis != nil {
		_ = s.redis.Delete(ctx, servicesCacheKey)
	}
}
