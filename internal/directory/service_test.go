package directory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls   atomic.Int32
	listing Listing
	err     error
	gate    chan struct{}
}

func (s *countingSource) List(ctx context.Context, q Query) (Listing, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return Listing{}, s.err
	}
	return s.listing, nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func sampleListing() Listing {
	return Listing{
		Users:      []User{{ID: 1, Name: "Leanne Graham", Email: "Sincere@april.biz", Phone: "1-770-736-8031"}},
		Total:      10,
		TotalKnown: true,
	}
}

func TestServiceServesRepeatQueriesFromCache(t *testing.T) {
	source := &countingSource{listing: sampleListing()}
	svc := NewService(source, newTestCache(t), nil, nil)
	q := Query{Start: 0, Limit: 4}

	first, err := svc.List(context.Background(), q)
	require.NoError(t, err)
	second, err := svc.List(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, source.calls.Load())
}

func TestServiceInvalidateForcesRefetch(t *testing.T) {
	source := &countingSource{listing: sampleListing()}
	svc := NewService(source, newTestCache(t), nil, nil)
	q := Query{Start: 4, Limit: 4, NameLike: "Leanne"}

	_, err := svc.List(context.Background(), q)
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(context.Background()))
	_, err = svc.List(context.Background(), q)
	require.NoError(t, err)

	assert.EqualValues(t, 2, source.calls.Load())
}

func TestServiceDoesNotCacheFailures(t *testing.T) {
	source := &countingSource{err: ErrUpstream}
	svc := NewService(source, newTestCache(t), nil, nil)
	q := Query{Limit: 4}

	_, err := svc.List(context.Background(), q)
	require.ErrorIs(t, err, ErrUpstream)
	_, err = svc.List(context.Background(), q)
	require.ErrorIs(t, err, ErrUpstream)

	assert.EqualValues(t, 2, source.calls.Load())
}

func TestServiceCollapsesConcurrentIdenticalQueries(t *testing.T) {
	source := &countingSource{listing: sampleListing(), gate: make(chan struct{})}
	svc := NewService(source, nil, nil, nil)
	q := Query{Limit: 4}

	var wg sync.WaitGroup
	results := make([]Listing, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			listing, err := svc.List(context.Background(), q)
			assert.NoError(t, err)
			results[i] = listing
		}(i)
	}

	require.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(source.gate)
	wg.Wait()

	assert.EqualValues(t, 1, source.calls.Load())
	for _, listing := range results {
		assert.Equal(t, 10, listing.Total)
	}
}

func TestServiceListHonoursCallerCancellation(t *testing.T) {
	source := &countingSource{listing: sampleListing(), gate: make(chan struct{})}
	defer close(source.gate)
	svc := NewService(source, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.List(ctx, Query{Limit: 4})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestServiceWarmStopsAtLastPage(t *testing.T) {
	source := &countingSource{listing: Listing{Users: []User{{ID: 1}}, Total: 6, TotalKnown: true}}
	svc := NewService(source, newTestCache(t), nil, nil)

	warmed, err := svc.Warm(context.Background(), 5, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, warmed)
	assert.EqualValues(t, 2, source.calls.Load())
}
