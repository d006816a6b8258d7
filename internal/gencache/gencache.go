// Package gencache deduplicates concurrent generation of the same scene
// content. Identical requests collapse onto a single in-flight unit: the
// first caller becomes the owner and performs the expensive work, every
// later caller becomes a follower and waits for the owner's outcome.
//
// Successful results stay cached and are served to followers immediately.
// Failures are never cached: a failed unit is evicted at settle time so
// the next request starts fresh. A pending unit whose owner has gone
// quiet past the staleness deadline is likewise evicted, its followers
// released with ErrStalePending, so one wedged owner cannot block a
// scene forever.
package gencache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inkloom/loom/internal/narrative"
)

// ErrStalePending is returned to followers of a pending unit whose owner
// exceeded the staleness deadline. The unit has been evicted; callers
// should re-acquire, at which point one of them becomes the new owner.
var ErrStalePending = errors.New("pending generation went stale")

// State describes a unit's lifecycle stage.
type State string

const (
	// StatePending means the owner is still working.
	StatePending State = "pending"
	// StateCommitted means the unit holds a validated artifact.
	StateCommitted State = "committed"
	// StateFailed means the owner settled with an error. Failed units
	// are evicted immediately and never observed by a later Acquire.
	StateFailed State = "failed"
)

// unit is one deduplicated generation attempt. Mutations go through the
// cache mutex; done is closed exactly once on settlement or eviction.
type unit struct {
	identity  narrative.ContentIdentity
	episode   uuid.UUID
	state     State
	artifact  *narrative.Artifact
	err       error
	started   time.Time
	transient int
	rejected  int
	done      chan struct{}
}

// Options tune cache behavior. Zero values disable the corresponding
// mechanism.
type Options struct {
	// PendingTTL is how long a pending unit may exist before it is
	// considered abandoned and evicted.
	PendingTTL time.Duration
	// MaxCommitted bounds the number of committed artifacts retained in
	// memory; the least recently touched entry is evicted first.
	MaxCommitted int
	// JanitorInterval is how often stale pending units are swept. When
	// zero, staleness is still enforced lazily on Acquire.
	JanitorInterval time.Duration
}

// Cache is the single-flight generation cache. Safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	units map[string]*unit
	// recency tracks committed keys, least recently used first.
	recency []string
	opts    Options

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a cache and, if a janitor interval is configured, starts
// the background sweep. Call Close to stop it.
func New(opts Options) *Cache {
	c := &Cache{
		units: make(map[string]*unit),
		opts:  opts,
		stop:  make(chan struct{}),
	}
	if opts.JanitorInterval > 0 {
		go c.janitor()
	}
	return c
}

// Close stops the janitor. Pending units are left to settle normally.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Acquire joins the unit for the given identity, creating it if absent.
// The boolean reports ownership: the owner must eventually call Settle
// exactly once; followers only Wait.
func (c *Cache) Acquire(id narrative.ContentIdentity) (*Entry, bool) {
	key := id.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	if u, ok := c.units[key]; ok {
		if u.state == StatePending && c.stalePendingLocked(u) {
			c.evictLocked(key, u, ErrStalePending)
		} else {
			if u.state == StateCommitted {
				c.touchLocked(key)
			}
			return &Entry{cache: c, unit: u}, false
		}
	}

	u := &unit{
		identity: id,
		episode:  uuid.New(),
		state:    StatePending,
		started:  time.Now(),
		done:     make(chan struct{}),
	}
	c.units[key] = u
	return &Entry{cache: c, unit: u}, true
}

// Peek returns the committed artifact for the identity without joining
// the unit, or false when nothing committed is cached.
func (c *Cache) Peek(id narrative.ContentIdentity) (*narrative.Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.units[id.String()]
	if !ok || u.state != StateCommitted {
		return nil, false
	}
	c.touchLocked(id.String())
	return u.artifact, true
}

// Len returns the number of resident units, pending included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.units)
}

func (c *Cache) janitor() {
	ticker := time.NewTicker(c.opts.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

// sweep evicts every pending unit past the staleness deadline.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, u := range c.units {
		if u.state == StatePending && c.stalePendingLocked(u) {
			c.evictLocked(key, u, ErrStalePending)
		}
	}
}

func (c *Cache) stalePendingLocked(u *unit) bool {
	return c.opts.PendingTTL > 0 && time.Since(u.started) > c.opts.PendingTTL
}

// evictLocked removes a unit and, if it was still pending, releases its
// followers with the given error.
func (c *Cache) evictLocked(key string, u *unit, cause error) {
	if u.state == StatePending {
		u.state = StateFailed
		u.err = cause
		close(u.done)
	}
	delete(c.units, key)
	c.forgetLocked(key)
}

// touchLocked moves a committed key to the most-recent end.
func (c *Cache) touchLocked(key string) {
	c.forgetLocked(key)
	c.recency = append(c.recency, key)
}

func (c *Cache) forgetLocked(key string) {
	for i, k := range c.recency {
		if k == key {
			c.recency = append(c.recency[:i], c.recency[i+1:]...)
			return
		}
	}
}

// trimLocked enforces the committed-artifact bound.
func (c *Cache) trimLocked() {
	if c.opts.MaxCommitted <= 0 {
		return
	}
	for len(c.recency) > c.opts.MaxCommitted {
		victim := c.recency[0]
		c.recency = c.recency[1:]
		delete(c.units, victim)
	}
}

// Entry is a caller's handle on a unit. Owners settle it; followers wait
// on it. All methods are safe for concurrent use.
type Entry struct {
	cache *Cache
	unit  *unit
}

// EpisodeID identifies this generation attempt across log lines.
func (e *Entry) EpisodeID() uuid.UUID { return e.unit.episode }

// Identity returns the content identity the entry was acquired for.
func (e *Entry) Identity() narrative.ContentIdentity { return e.unit.identity }

// Settle records the owner's outcome and releases all followers. On
// success the artifact is retained for later hits; on error the unit is
// evicted so the failure is not served to anyone who arrives later.
// Settling an already settled or evicted unit is a no-op.
func (e *Entry) Settle(artifact *narrative.Artifact, err error) {
	c := e.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	u := e.unit
	if u.state != StatePending {
		return
	}
	key := u.identity.String()
	if err != nil {
		c.evictLocked(key, u, err)
		return
	}
	u.state = StateCommitted
	u.artifact = artifact
	close(u.done)
	c.touchLocked(key)
	c.trimLocked()
}

// Wait blocks until the unit settles, returning the committed artifact
// or the owner's error. A committed unit returns immediately. Followers
// of an evicted stale unit receive ErrStalePending and should re-acquire.
func (e *Entry) Wait(ctx context.Context) (*narrative.Artifact, error) {
	select {
	case <-e.unit.done:
		if e.unit.err != nil {
			return nil, e.unit.err
		}
		return e.unit.artifact, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RecordTransient bumps the transient-failure count for this unit and
// returns the new total.
func (e *Entry) RecordTransient() int {
	e.cache.mu.Lock()
	defer e.cache.mu.Unlock()
	e.unit.transient++
	return e.unit.transient
}

// RecordRejection bumps the validation-rejection count for this unit and
// returns the new total. Rejections are tracked separately from
// transient failures; neither budget consumes the other.
func (e *Entry) RecordRejection() int {
	e.cache.mu.Lock()
	defer e.cache.mu.Unlock()
	e.unit.rejected++
	return e.unit.rejected
}

// Attempts reports the unit's transient and rejection counts so far.
func (e *Entry) Attempts() (transient, rejected int) {
	e.cache.mu.Lock()
	defer e.cache.mu.Unlock()
	return e.unit.transient, e.unit.rejected
}
