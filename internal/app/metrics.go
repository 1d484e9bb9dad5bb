package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nftlens/clients/analytics"

	"go.uber.org/zap"
)

// MetricsAPI is the slice of the analytics client the service needs.
type MetricsAPI interface {
	CollectionMetrics(ctx context.Context, blockchain, contract string, windowDays int) ([]analytics.MetricPoint, error)
	ResolveSlug(ctx context.Context, slug string) (*analytics.CollectionRef, error)
}

// SeriesCache persists fetched metric series. *store.Store implements this.
type SeriesCache interface {
	SaveMetricSeries(ctx context.Context, collection string, windowDays int, points []analytics.MetricPoint) error
	MetricSeries(ctx context.Context, collection string, windowDays int) ([]analytics.MetricPoint, time.Time, error)
}

// MetricsFetcher is the metrics surface the router and watcher consume.
type MetricsFetcher interface {
	CollectionMetrics(ctx context.Context, blockchain, contract string, windowDays int) ([]analytics.MetricPoint, error)
}

// MetricsService serves collection metric series from the local cache,
// falling through to the analytics API when the cached series is older than
// the TTL. A stale cached series is still returned when the API fails.
type MetricsService struct {
	logger *zap.Logger
	api    MetricsAPI
	cache  SeriesCache
	ttl    time.Duration

	// nowFn is replaceable in tests.
	nowFn func() time.Time
}

// NewMetricsService creates a cache-backed metrics service. cache may be nil,
// in which case every call goes to the API.
func NewMetricsService(logger *zap.Logger, api MetricsAPI, cache SeriesCache, ttl time.Duration) *MetricsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsService{
		logger: logger.Named("metrics"),
		api:    api,
		cache:  cache,
		ttl:    ttl,
		nowFn:  time.Now,
	}
}

func seriesKey(blockchain, contract string) string {
	return blockchain + "/" + contract
}

// CollectionMetrics returns the metric series for a collection over the
// trailing window.
func (m *MetricsService) CollectionMetrics(ctx context.Context, blockchain, contract string, windowDays int) ([]analytics.MetricPoint, error) {
	key := seriesKey(blockchain, contract)

	var (
		cached    []analytics.MetricPoint
		haveStale bool
	)
	if m.cache != nil {
		points, fetchedAt, err := m.cache.MetricSeries(ctx, key, windowDays)
		if err == nil {
			if m.nowFn().Sub(fetchedAt) < m.ttl {
				return points, nil
			}
			cached = points
			haveStale = true
		}
	}

	points, err := m.api.CollectionMetrics(ctx, blockchain, contract, windowDays)
	if err != nil {
		if haveStale {
			m.logger.Warn("metrics fetch failed, serving stale series",
				zap.String("collection", key),
				zap.Error(err),
			)
			return cached, nil
		}
		return nil, fmt.Errorf("fetch metrics for %s: %w", key, err)
	}

	if m.cache != nil {
		if err := m.cache.SaveMetricSeries(ctx, key, windowDays, points); err != nil {
			m.logger.Warn("failed to cache metric series",
				zap.String("collection", key),
				zap.Error(err),
			)
		}
	}
	return points, nil
}

// ResolveIdentity upgrades a low-confidence slug identity into a verified
// contract identity via the analytics API. High-confidence identities are
// returned unchanged.
func (m *MetricsService) ResolveIdentity(ctx context.Context, id *NFTIdentity) (*NFTIdentity, error) {
	if id == nil {
		return nil, errors.New("nil identity")
	}
	if !id.LowConfidence() {
		return id, nil
	}

	ref, err := m.api.ResolveSlug(ctx, id.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve slug %q: %w", id.ContractAddress, err)
	}
	if ref.ContractAddress == "" {
		return nil, fmt.Errorf("slug %q has no contract address", id.ContractAddress)
	}

	resolved := *id
	resolved.Blockchain = ref.Blockchain
	if resolved.Blockchain == "" {
		resolved.Blockchain = defaultBlockchain
	}
	resolved.ContractAddress = ref.ContractAddress
	return &resolved, nil
}
