package perf

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/userboard/internal/directory"
	"github.com/noah-isme/userboard/internal/testing/fakedirectory"
)

func newDirectoryService(t testing.TB) (*directory.Service, *fakedirectory.Server) {
	t.Helper()
	upstream := fakedirectory.New(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := directory.NewService(directory.NewClientWithHTTP(upstream.URL, upstream.Client()), directory.NewCache(client, time.Minute), nil, logger)
	return svc, upstream
}

func TestListingLatencyTargets(t *testing.T) {
	svc, _ := newDirectoryService(t)
	ctx := context.Background()
	q := directory.Query{Start: 0, Limit: 4}

	var cold, cached []time.Duration
	for i := 0; i < 10; i++ {
		if err := svc.Invalidate(ctx); err != nil {
			t.Fatalf("invalidate: %v", err)
		}
		start := time.Now()
		if _, err := svc.List(ctx, q); err != nil {
			t.Fatalf("cold list: %v", err)
		}
		cold = append(cold, time.Since(start))
	}
	for i := 0; i < 20; i++ {
		start := time.Now()
		if _, err := svc.List(ctx, q); err != nil {
			t.Fatalf("cached list: %v", err)
		}
		cached = append(cached, time.Since(start))
	}

	scenarios := []struct {
		name      string
		samples   []time.Duration
		threshold time.Duration
	}{
		{name: "cached", samples: cached, threshold: 100 * time.Millisecond},
		{name: "cold", samples: cold, threshold: 500 * time.Millisecond},
	}
	for _, scenario := range scenarios {
		p95 := percentile95(scenario.samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func BenchmarkCachedListing(b *testing.B) {
	svc, upstream := newDirectoryService(b)
	ctx := context.Background()
	q := directory.Query{Start: 4, Limit: 4}
	if _, err := svc.List(ctx, q); err != nil {
		b.Fatalf("prime: %v", err)
	}
	served := upstream.Requests()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.List(ctx, q); err != nil {
			b.Fatalf("list: %v", err)
		}
	}
	b.StopTimer()
	if upstream.Requests() != served {
		b.Fatalf("cached listing reached upstream: %d requests", upstream.Requests()-served)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
