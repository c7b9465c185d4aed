package views

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/colloquyhq/colloquy/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An EntryFetcher the tests can gate and observe. Fetch blocks until the
// test releases it, and every call is counted.
type gatedFetcher struct {
	mu      sync.Mutex
	entries map[int][]*models.Entry
	err     error

	calls   int32
	started chan struct{}
	release chan struct{}
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		entries: make(map[int][]*models.Entry),
		started: make(chan struct{}, 100),
		release: make(chan struct{}),
	}
}

func (f *gatedFetcher) fetch(ctx context.Context, topicID int) ([]*models.Entry, error) {
	atomic.AddInt32(&f.calls, 1)
	f.started <- struct{}{}
	<-f.release

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[topicID], nil
}

func (f *gatedFetcher) callCount() int32 {
	return atomic.LoadInt32(&f.calls)
}

func (f *gatedFetcher) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// A fetcher with no gating, for tests that only care about outcomes.
func instantFetcher(entries map[int][]*models.Entry) EntryFetcher {
	return func(ctx context.Context, topicID int) ([]*models.Entry, error) {
		return entries[topicID], nil
	}
}

func waitReady(t *testing.T, c *ViewCache, topicID int) *MaterializedView {
	t.Helper()
	var view *MaterializedView
	require.Eventually(t, func() bool {
		res := c.Get(topicID)
		if res.Ready {
			view = res.View
		}
		return res.Ready
	}, 5*time.Second, 5*time.Millisecond)
	return view
}

func TestViewCacheGetNeverBlocks(t *testing.T) {
	fetcher := newGatedFetcher()
	c := NewViewCache(context.Background(), fetcher.fetch)

	done := make(chan Result, 1)
	go func() { done <- c.Get(7) }()

	select {
	case res := <-done:
		assert.False(t, res.Ready)
	case <-time.After(2 * time.Second):
		t.Fatal("Get blocked on an in-flight rebuild")
	}

	close(fetcher.release)
	view := waitReady(t, c, 7)
	assert.Equal(t, 7, view.TopicID)
	assert.Equal(t, uint64(1), view.Generation)
}

func TestViewCacheSingleFlight(t *testing.T) {
	fetcher := newGatedFetcher()
	a := testEntry(1, nil, 10, time.Minute)
	fetcher.entries[7] = []*models.Entry{a}
	c := NewViewCache(context.Background(), fetcher.fetch)

	// A burst of readers while the first rebuild is stuck in the fetcher.
	assert.False(t, c.Get(7).Ready)
	<-fetcher.started
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.False(t, c.Get(7).Ready)
		}()
	}
	wg.Wait()

	close(fetcher.release)
	view := waitReady(t, c, 7)

	// Exactly one build satisfied the whole burst.
	assert.EqualValues(t, 1, fetcher.callCount())
	assert.Equal(t, []int{1}, view.EntryIDs)

	// And a Ready cache schedules nothing further.
	c.Get(7)
	c.Get(7)
	assert.EqualValues(t, 1, fetcher.callCount())
}

func TestViewCacheInvalidateDuringRebuild(t *testing.T) {
	fetcher := newGatedFetcher()
	fetcher.entries[7] = []*models.Entry{testEntry(1, nil, 10, time.Minute)}
	c := NewViewCache(context.Background(), fetcher.fetch)

	assert.False(t, c.Get(7).Ready)
	<-fetcher.started

	// The write lands while the rebuild is mid-fetch. The generation the
	// rebuild produces is stale on arrival and a later read rebuilds again.
	c.Invalidate(7)
	fetcher.release <- struct{}{}

	require.Eventually(t, func() bool {
		res := c.Get(7)
		if !res.Ready {
			select {
			case fetcher.release <- struct{}{}:
			default:
			}
		}
		return res.Ready
	}, 5*time.Second, 5*time.Millisecond)

	assert.EqualValues(t, 2, fetcher.callCount())
	view := c.Get(7)
	require.True(t, view.Ready)
	assert.Equal(t, uint64(2), view.View.Generation)
}

func TestViewCacheInvalidateThenRead(t *testing.T) {
	entries := map[int][]*models.Entry{
		7: {testEntry(1, nil, 10, time.Minute)},
	}
	c := NewViewCache(context.Background(), instantFetcher(entries))

	first := waitReady(t, c, 7)
	assert.Equal(t, []int{1}, first.EntryIDs)

	entries[7] = append(entries[7], testEntry(2, nil, 11, 2*time.Minute))
	c.Invalidate(7)

	res := c.Get(7)
	assert.False(t, res.Ready, "stale view must not be served")

	second := waitReady(t, c, 7)
	assert.Equal(t, []int{2, 1}, second.EntryIDs)
	assert.Greater(t, second.Generation, first.Generation)
}

func TestViewCacheRebuildFailureRetries(t *testing.T) {
	fetcher := newGatedFetcher()
	fetcher.entries[7] = []*models.Entry{testEntry(1, nil, 10, time.Minute)}
	fetcher.setError(errors.New("snapshot torn"))
	close(fetcher.release)
	c := NewViewCache(context.Background(), fetcher.fetch)

	assert.False(t, c.Get(7).Ready)
	require.Eventually(t, func() bool {
		return fetcher.callCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Failure surfaces as Pending, and immediate re-reads do not hammer the
	// store while the retry window is open.
	assert.False(t, c.Get(7).Ready)
	assert.False(t, c.Get(7).Ready)
	assert.EqualValues(t, 1, fetcher.callCount())

	// Once the store recovers, a later read rebuilds and succeeds.
	fetcher.setError(nil)
	view := waitReady(t, c, 7)
	assert.Equal(t, []int{1}, view.EntryIDs)
}

func TestViewCacheRebuildSurvivesPanic(t *testing.T) {
	// The db layer panics on mid-iteration errors (dropped connections), so
	// a rebuild can die by panic rather than by returned error. That must
	// not wedge the topic: later reads retry like any other failure.
	var calls int32
	fetch := func(ctx context.Context, topicID int) ([]*models.Entry, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic(errors.New("connection dropped mid-query"))
		}
		return []*models.Entry{testEntry(1, nil, 10, time.Minute)}, nil
	}
	c := NewViewCache(context.Background(), fetch)

	assert.False(t, c.Get(7).Ready)
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, 2*time.Second, 5*time.Millisecond)

	view := waitReady(t, c, 7)
	assert.Equal(t, []int{1}, view.EntryIDs)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))

	// The recovered entry is a normal entry again: idle eviction still
	// applies to it.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, c.EvictIdle(time.Nanosecond))
}

func TestViewCacheEvictIdle(t *testing.T) {
	entries := map[int][]*models.Entry{
		7: {testEntry(1, nil, 10, time.Minute)},
	}
	c := NewViewCache(context.Background(), instantFetcher(entries))

	waitReady(t, c, 7)
	assert.Equal(t, 0, c.EvictIdle(time.Hour))

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, c.EvictIdle(time.Nanosecond))

	// Evicted means the next read rebuilds from scratch.
	assert.False(t, c.Get(7).Ready)
	waitReady(t, c, 7)
}
