// Package cache keeps an in-memory snapshot of every registered name,
// rebuilt from the registry on demand.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/Mohsinsiddi/w3ns/internal/logger"
	"github.com/Mohsinsiddi/w3ns/internal/registry"
)

// DefaultConcurrency bounds the number of lookups in flight during a refresh.
const DefaultConcurrency = 8

// ErrSuperseded is returned by a Refresh whose result was discarded because
// a newer Refresh started.
var ErrSuperseded = errors.New("cache refresh superseded")

// Source is the part of the registry client a refresh reads from.
type Source interface {
	ListNames(ctx context.Context) ([]string, error)
	Lookup(ctx context.Context, name string) (registry.Entry, error)
}

// Record is one registered name. Index is the name's position in the
// registry's enumeration and changes if the registry reorders.
type Record struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
	Text  string `json:"record"`
	Index int    `json:"index"`
}

// OwnedBy reports whether addr owns r, ignoring case.
func (r Record) OwnedBy(addr string) bool {
	return addr != "" && strings.EqualFold(r.Owner, addr)
}

// Cache is safe for concurrent use.
type Cache struct {
	src   Source
	limit int
	log   logger.Logger
	now   func() time.Time

	gen    atomic.Uint64
	runMu  sync.Mutex
	cancel context.CancelFunc

	mu      sync.RWMutex
	records []Record
	byName  map[string]int
	updated time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithConcurrency bounds concurrent lookups. n <= 0 keeps the default.
func WithConcurrency(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithLogger sets the cache's logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates an empty cache over src.
func New(src Source, opts ...Option) *Cache {
	c := &Cache{
		src:    src,
		limit:  DefaultConcurrency,
		log:    logger.NoopLogger{},
		now:    time.Now,
		byName: make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh rebuilds the snapshot. Starting a Refresh cancels any that is
// still running; the older call returns ErrSuperseded and its result is
// dropped. On any failure the previous snapshot is kept.
func (c *Cache) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.runMu.Lock()
	gen := c.gen.Inc()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.runMu.Unlock()

	defer func() {
		c.runMu.Lock()
		if c.gen.Load() == gen {
			c.cancel = nil
		}
		c.runMu.Unlock()
	}()

	start := c.now()
	records, err := c.fetch(ctx)
	if c.gen.Load() != gen {
		c.log.Debug("refresh superseded", map[string]any{"generation": gen})
		return ErrSuperseded
	}
	if err != nil {
		c.log.Warn("cache refresh failed", map[string]any{"error": err})
		return err
	}

	c.mu.Lock()
	// Re-check under the write lock so a newer refresh that already
	// published is never overwritten.
	if c.gen.Load() != gen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.publish(records)
	c.mu.Unlock()

	c.log.Info("cache refreshed", map[string]any{
		"names":    len(records),
		"duration": c.now().Sub(start).String(),
	})
	return nil
}

func (c *Cache) fetch(ctx context.Context) ([]Record, error) {
	names, err := c.src.ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing names: %w", err)
	}

	records := make([]Record, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)
	for i, name := range names {
		g.Go(func() error {
			e, err := c.src.Lookup(gctx, name)
			if err != nil {
				return fmt.Errorf("looking up %q: %w", name, err)
			}
			records[i] = Record{Name: name, Owner: strings.ToLower(e.Owner), Text: e.Record, Index: i}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// publish must be called with mu held.
func (c *Cache) publish(records []Record) {
	byName := make(map[string]int, len(records))
	out := records[:0]
	for _, r := range records {
		if _, dup := byName[r.Name]; dup {
			continue
		}
		byName[r.Name] = len(out)
		out = append(out, r)
	}
	c.records = out
	c.byName = byName
	c.updated = c.now()
}

// Records returns a copy of the snapshot in registry order.
func (c *Cache) Records() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Record(nil), c.records...)
}

// Get returns the record for name.
func (c *Cache) Get(name string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byName[name]
	if !ok {
		return Record{}, false
	}
	return c.records[i], true
}

// OwnedBy returns the records owned by addr, in registry order.
func (c *Cache) OwnedBy(addr string) []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Record
	for _, r := range c.records {
		if r.OwnedBy(addr) {
			out = append(out, r)
		}
	}
	return out
}

// Suggest returns up to n cached names that fuzzily match input, best
// match first.
func (c *Cache) Suggest(input string, n int) []string {
	c.mu.RLock()
	names := make([]string, len(c.records))
	for i, r := range c.records {
		names[i] = r.Name
	}
	c.mu.RUnlock()

	input = strings.ToLower(input)
	var out []string
	for _, m := range fuzzy.Find(input, names) {
		if len(out) == n {
			break
		}
		if m.Str != input {
			out = append(out, m.Str)
		}
	}
	return out
}

// Len returns the number of cached names.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Updated returns when the snapshot was last replaced, or the zero time.
func (c *Cache) Updated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updated
}
