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

// Package metrics exposes the pool and connection counters a driver
// deployment scrapes alongside its own application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors groups every gauge/counter the pool and connection layers
// update; construct one with NewCollectors and register it with whatever
// prometheus.Registerer the embedding application uses.
type Collectors struct {
	PoolConnectionsOpen  *prometheus.GaugeVec
	PoolConnectionsInUse *prometheus.GaugeVec
	PoolAcquireWaitSeconds *prometheus.HistogramVec
	ConnectionsOpenedTotal *prometheus.CounterVec
	ConnectionsClosedTotal *prometheus.CounterVec
	RoutingTableRefreshesTotal *prometheus.CounterVec
	RetryAttemptsTotal   prometheus.Counter
}

// NewCollectors builds an unregistered set of collectors, labeled per
// server address where that distinction matters (pool size, in-use count).
func NewCollectors(namespace string) *Collectors {
	return &Collectors{
		PoolConnectionsOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_connections_open",
			Help:      "Number of pooled connections currently open, per server address.",
		}, []string{"address"}),
		PoolConnectionsInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_connections_in_use",
			Help:      "Number of pooled connections currently borrowed, per server address.",
		}, []string{"address"}),
		PoolAcquireWaitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pool_acquire_wait_seconds",
			Help:      "Time spent waiting to acquire a pooled connection.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"address"}),
		ConnectionsOpenedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "Total connections dialed, per server address.",
		}, []string{"address"}),
		ConnectionsClosedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Total connections closed, per server address and reason.",
		}, []string{"address", "reason"}),
		RoutingTableRefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_table_refreshes_total",
			Help:      "Total routing table refresh attempts, per database and outcome.",
		}, []string{"database", "outcome"}),
		RetryAttemptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total retried attempts across all transaction functions.",
		}),
	}
}

// MustRegister registers every collector against r, panicking on a
// duplicate registration the same way prometheus.MustRegister does.
func (c *Collectors) MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		c.PoolConnectionsOpen,
		c.PoolConnectionsInUse,
		c.PoolAcquireWaitSeconds,
		c.ConnectionsOpenedTotal,
		c.ConnectionsClosedTotal,
		c.RoutingTableRefreshesTotal,
		c.RetryAttemptsTotal,
	)
}
