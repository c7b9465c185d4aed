package views

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/colloquyhq/colloquy/src/logging"
	"github.com/colloquyhq/colloquy/src/models"
	"github.com/colloquyhq/colloquy/src/utils"
	"github.com/jpillora/backoff"
	"golang.org/x/sync/singleflight"
)

// Loads the flat entry list a rebuild works from. In production this is
// cqdata.FetchEntriesForView over the connection pool; tests substitute
// their own.
type EntryFetcher func(ctx context.Context, topicID int) ([]*models.Entry, error)

/*
The outcome of a cache read. Pending is an expected, frequent, non-error
outcome: the caller serves a "try again soon" response and the client polls.
*/
type Result struct {
	Ready bool
	View  *MaterializedView // set only when Ready
}

type cacheEntry struct {
	view *MaterializedView

	// Bumped on every Invalidate. A build snapshots the counter when it
	// starts; the view it produces is current only if the counter has not
	// moved by the time it lands.
	invalidations uint64
	builtFor      uint64

	building    bool
	generation  uint64
	lastAccess  time.Time
	retry       *backoff.Backoff
	nextAttempt time.Time
}

/*
Owns one cached serialized view per topic.

Get never blocks on a rebuild: a miss or a stale hit comes back Pending
immediately and schedules at most one background rebuild for that topic.
Writers call Invalidate and nothing else; rebuilds are lazy, so a hot writer
on a rarely-read topic never causes a rebuild storm.
*/
type ViewCache struct {
	fetch EntryFetcher

	mu      sync.Mutex
	entries map[int]*cacheEntry
	flight  singleflight.Group

	// Background rebuilds outlive the request that triggered them.
	ctx context.Context
}

func NewViewCache(ctx context.Context, fetch EntryFetcher) *ViewCache {
	return &ViewCache{
		fetch:   fetch,
		entries: make(map[int]*cacheEntry),
		ctx:     ctx,
	}
}

func (c *ViewCache) entry(topicID int) *cacheEntry {
	e, ok := c.entries[topicID]
	if !ok {
		e = &cacheEntry{
			retry: &backoff.Backoff{
				Min:    250 * time.Millisecond,
				Max:    30 * time.Second,
				Factor: 2,
				Jitter: true,
			},
		}
		c.entries[topicID] = e
	}
	return e
}

/*
Returns the current view for the topic if one exists and is not stale, and
Pending otherwise. Pending schedules a rebuild unless one is already in
flight or the last attempt failed too recently; the caller is expected to
call Get again later rather than wait.
*/
func (c *ViewCache) Get(topicID int) Result {
	c.mu.Lock()
	e := c.entry(topicID)
	e.lastAccess = time.Now()

	if e.view != nil && e.builtFor == e.invalidations {
		view := e.view
		c.mu.Unlock()
		return Result{Ready: true, View: view}
	}

	shouldBuild := !e.building && !time.Now().Before(e.nextAttempt)
	if shouldBuild {
		e.building = true
	}
	c.mu.Unlock()

	if shouldBuild {
		go c.rebuild(topicID)
	}
	return Result{}
}

// Marks the topic's cached view stale. Cheap and always safe to call; a
// rebuild already in flight simply produces a view that is stale on arrival
// and gets rebuilt again on the next Get.
func (c *ViewCache) Invalidate(topicID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(topicID).invalidations++
}

func (c *ViewCache) rebuild(topicID int) {
	defer logging.LogPanics(logging.ExtractLogger(c.ctx))

	_, err, _ := c.flight.Do(strconv.Itoa(topicID), func() (interface{}, error) {
		return nil, c.buildOnce(topicID)
	})
	if err != nil {
		logging.ExtractLogger(c.ctx).Error().
			Err(err).
			Int("topic", topicID).
			Msg("view rebuild failed; will retry on a later read")
	}
}

func (c *ViewCache) buildOnce(topicID int) error {
	c.mu.Lock()
	e := c.entry(topicID)
	target := e.invalidations
	generation := e.generation + 1
	c.mu.Unlock()

	view, err := c.buildView(topicID, generation)

	c.mu.Lock()
	defer c.mu.Unlock()
	e.building = false
	if err != nil {
		e.nextAttempt = time.Now().Add(e.retry.Duration())
		return err
	}

	// Atomic swap. If an invalidation landed mid-build the new view is
	// already stale and the next Get schedules another pass; convergence is
	// guaranteed because target always catches up.
	e.view = view
	e.builtFor = target
	e.generation = generation
	e.retry.Reset()
	e.nextAttempt = time.Time{}
	return nil
}

func (c *ViewCache) buildView(topicID int, generation uint64) (view *MaterializedView, err error) {
	// The db layer panics on mid-iteration errors (e.g. a dropped
	// connection), so a panicking fetch must land on the same retry path as
	// a returned error. Otherwise the entry stays marked building and the
	// topic never rebuilds again.
	defer utils.RecoverPanicAsError(&err)

	entries, err := c.fetch(c.ctx, topicID)
	if err != nil {
		return nil, err
	}
	view, err = Build(topicID, entries)
	if err != nil {
		return nil, err
	}
	view.Generation = generation
	return view, nil
}

/*
Drops cached views that nobody has read for at least idleFor, bounding the
cache's memory to the working set of recently-read topics. Run periodically
by the eviction sweeper job. Returns how many views were dropped.

An entry with a rebuild in flight is left alone; the sweeper gets another
chance next pass.
*/
func (c *ViewCache) EvictIdle(idleFor time.Duration) int {
	cutoff := time.Now().Add(-idleFor)

	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for topicID, e := range c.entries {
		if e.building || e.lastAccess.After(cutoff) {
			continue
		}
		delete(c.entries, topicID)
		evicted++
	}
	return evicted
}
