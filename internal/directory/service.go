package directory

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/userboard/internal/observability"
)

// Source is the upstream the service reads through.
type Source interface {
	List(ctx context.Context, q Query) (Listing, error)
}

// Service serves listing windows from cache, collapsing identical
// concurrent upstream calls into one.
type Service struct {
	source  Source
	cache   *Cache
	metrics *observability.Metrics
	logger  *slog.Logger
	group   singleflight.Group
}

// NewService builds Service instance. cache, metrics and logger may be nil.
func NewService(source Source, cache *Cache, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, cache: cache, metrics: metrics, logger: logger}
}

// List returns the requested window.
func (s *Service) List(ctx context.Context, q Query) (Listing, error) {
	key, err := s.cache.Key(ctx, q)
	if err != nil {
		s.logger.Warn("directory cache key", slog.Any("error", err))
		key = listKey(q)
	}
	if listing, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("directory cache get", slog.String("key", key), slog.Any("error", err))
	} else if ok {
		s.metrics.ObserveFetch(observability.FetchCached, 0)
		return listing, nil
	}

	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		return s.fetch(context.WithoutCancel(ctx), key, q)
	})
	select {
	case <-ctx.Done():
		return Listing{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Listing{}, res.Err
		}
		return res.Val.(Listing), nil
	}
}

// Warm prefetches the first pages of the unfiltered listing.
func (s *Service) Warm(ctx context.Context, pages, perPage int) (int, error) {
	warmed := 0
	for page := 1; page <= pages; page++ {
		q := Query{Start: (page - 1) * perPage, Limit: perPage}
		listing, err := s.List(ctx, q)
		if err != nil {
			return warmed, err
		}
		warmed++
		if listing.Total <= page*perPage {
			break
		}
	}
	return warmed, nil
}

// Invalidate drops every cached window.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) fetch(ctx context.Context, key string, q Query) (Listing, error) {
	start := time.Now()
	listing, err := s.source.List(ctx, q)
	if err != nil {
		s.metrics.ObserveFetch(observability.FetchFailed, time.Since(start))
		return Listing{}, err
	}
	s.metrics.ObserveFetch(observability.FetchSucceeded, time.Since(start))
	if !listing.TotalKnown {
		s.logger.Debug("listing without total count", slog.Int("start", q.Start), slog.String("name_like", q.NameLike))
	}
	if err := s.cache.Put(ctx, key, listing); err != nil {
		s.logger.Warn("directory cache put", slog.String("key", key), slog.Any("error", err))
	}
	return listing, nil
}
