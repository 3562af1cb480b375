/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package routing caches one routing table per database name and refreshes
// it from a candidate router on demand, collapsing concurrent refreshers for
// the same database into a single in-flight request.
package routing

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github/sabouaram/boltdriver/address"
	libcache "github/sabouaram/boltdriver/cache"
	liberr "github/sabouaram/boltdriver/errors"
	errpool "github/sabouaram/boltdriver/errors/pool"
	"github/sabouaram/boltdriver/metrics"
)

// Table is one database's routing table, as parsed from a ROUTE reply.
type Table struct {
	Routers   []address.Address
	Readers   []address.Address
	Writers   []address.Address
	TTL       time.Duration
	FetchedAt time.Time
}

// Expired reports whether the table is past its server-declared TTL.
func (t Table) Expired() bool {
	return time.Now().After(t.FetchedAt.Add(t.TTL))
}

// Fetcher round-trips a ROUTE request against one router address and
// returns the table it replied with.
type Fetcher func(ctx context.Context, router address.Address, db, impersonatedUser string, bookmarks []string) (Table, error)

// seedCacheTTL is the Cache's own housekeeping interval; actual per-entry
// staleness is judged by Table.Expired against the server-declared TTL, not
// by this value, since every database can get a different TTL.
const seedCacheTTL = time.Hour

// Registry owns one Table per database name plus a bounded recent-router
// shortlist, and serializes concurrent refreshes of the same database.
type Registry struct {
	ctx    context.Context
	tables libcache.Cache[string, Table]
	seeds  []address.Address
	recent *lru.Cache
	fetch  Fetcher
	group  singleflight.Group

	// metrics, if non-nil, counts refresh attempts by outcome.
	metrics *metrics.Collectors
}

// NewRegistry builds a Registry seeded with the driver's configured router
// addresses (the ones given at construction time, e.g. from the connection
// URI), used as the first candidates for a cold refresh.
func NewRegistry(ctx context.Context, seeds []address.Address, fetch Fetcher) *Registry {
	recent, _ := lru.New(16)
	return &Registry{
		ctx:    ctx,
		tables: libcache.New[string, Table](ctx, seedCacheTTL),
		seeds:  seeds,
		recent: recent,
		fetch:  fetch,
	}
}

// WithMetrics attaches a collector set the Registry reports refresh outcomes
// to; it returns the Registry to allow chaining after NewRegistry.
func (r *Registry) WithMetrics(m *metrics.Collectors) *Registry {
	r.metrics = m
	return r
}

// dbKey normalizes the routing table key: the default database is cached
// under a sentinel distinct from any real database name.
func dbKey(db string) string {
	if db == "" {
		return "\x00default"
	}
	return db
}

// Get returns a non-expired cached table for db if one exists.
func (r *Registry) Get(db string) (Table, bool) {
	t, _, ok := r.tables.Load(dbKey(db))
	if !ok || t.Expired() {
		return Table{}, false
	}
	return t, true
}

// Refresh fetches a new table for db, trying the last router that served it
// successfully before falling back to the configured seeds, and collapses
// concurrent callers for the same database into one round trip.
func (r *Registry) Refresh(ctx context.Context, db, impersonatedUser string, bookmarks []string) (Table, error) {
	v, err, _ := r.group.Do(dbKey(db), func() (interface{}, error) {
		return r.refreshLocked(ctx, db, impersonatedUser, bookmarks)
	})
	if err != nil {
		return Table{}, err
	}
	return v.(Table), nil
}

func (r *Registry) refreshLocked(ctx context.Context, db, impersonatedUser string, bookmarks []string) (Table, error) {
	t, err := r.doRefresh(ctx, db, impersonatedUser, bookmarks)
	if r.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		label := db
		if label == "" {
			label = "default"
		}
		r.metrics.RoutingTableRefreshesTotal.WithLabelValues(label, outcome).Inc()
	}
	return t, err
}

func (r *Registry) doRefresh(ctx context.Context, db, impersonatedUser string, bookmarks []string) (Table, error) {
	candidates := r.candidates(db)
	if len(candidates) == 0 {
		return Table{}, liberr.RoutingNoRouters.Error()
	}

	// attempts collects every candidate's failure so a total refresh
	// failure reports all of them, not just the last one tried.
	attempts := errpool.New()
	for _, router := range candidates {
		t, err := r.fetch(ctx, router, db, impersonatedUser, bookmarks)
		if err != nil {
			attempts.Add(fmt.Errorf("%s: %w", router.String(), err))
			continue
		}
		if len(t.Routers) == 0 {
			attempts.Add(fmt.Errorf("%s: %w", router.String(), liberr.RoutingNoRouters.Error()))
			continue
		}
		if len(t.Writers) == 0 && len(t.Readers) == 0 {
			attempts.Add(fmt.Errorf("%s: %w", router.String(), liberr.RoutingNoWriters.Error()))
			continue
		}

		t.FetchedAt = time.Now()
		r.tables.Store(dbKey(db), t)
		r.recent.Add(dbKey(db), router)
		return t, nil
	}

	return Table{}, liberr.RoutingRefreshFailed.Error(fmt.Errorf("tried %d candidate routers: %w", len(candidates), attempts.Error()))
}

// candidates orders refresh targets: the router that served this database
// last time, then the cached table's own router list (if any, even if
// stale), then the original seed addresses.
func (r *Registry) candidates(db string) []address.Address {
	var out []address.Address
	seen := make(map[string]struct{})

	add := func(a address.Address) {
		if _, ok := seen[a.Key()]; ok {
			return
		}
		seen[a.Key()] = struct{}{}
		out = append(out, a)
	}

	if v, ok := r.recent.Get(dbKey(db)); ok {
		add(v.(address.Address))
	}
	if t, _, ok := r.tables.Load(dbKey(db)); ok {
		for _, a := range t.Routers {
			add(a)
		}
	}
	for _, a := range r.seeds {
		add(a)
	}
	return out
}

// Forget evicts the cached table for db, forcing the next Get to miss; used
// when a connection reports a routing-sensitive failure against it.
func (r *Registry) Forget(db string) {
	r.tables.Delete(dbKey(db))
}
