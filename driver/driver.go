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

// Package driver is the composition root: it parses a connection URI, wires
// a TLS configuration, a per-address connection pool, an optional routing
// registry, and a retry policy into a single facade a caller drives with
// ExecuteRead/ExecuteWrite, the same way HelperLDAP composes a context, a
// TLS config, and a bind policy behind one constructor.
package driver

import (
	"context"
	"crypto/tls"
	"sync"

	"github/sabouaram/boltdriver/address"
	"github/sabouaram/boltdriver/auth"
	"github/sabouaram/boltdriver/boltconn"
	libcrt "github/sabouaram/boltdriver/certificates"
	libctx "github/sabouaram/boltdriver/context"
	"github/sabouaram/boltdriver/driverconfig"
	liberr "github/sabouaram/boltdriver/errors"
	"github/sabouaram/boltdriver/handshake"
	liblog "github/sabouaram/boltdriver/logger"
	"github/sabouaram/boltdriver/metrics"
	"github/sabouaram/boltdriver/pool"
	"github/sabouaram/boltdriver/retry"
	"github/sabouaram/boltdriver/routing"
)

// defaultProposals is the handshake offer sent by every dialed connection,
// newest first, the same four-slot shape the reference client proposes.
var defaultProposals = []handshake.Version{
	{Major: 5, Minor: 8},
	{Major: 5, Minor: 4},
	{Major: 5, Minor: 1},
	{Major: 5, Minor: 0},
}

// Driver is a running client for one connection URI: it owns a pool per
// server address it has dialed, refreshing the routing table (when the
// scheme requests it) to discover new ones.
type Driver struct {
	ctx   libctx.Config[string]
	cfg   driverconfig.Config
	uri   ParsedURI
	certs libcrt.TLSConfig // nil unless the scheme requests TLS
	auth  *auth.Token
	log   liblog.FuncLog

	mu    sync.Mutex
	pools map[string]*pool.Pool

	routing *routing.Registry
	retryP  retry.Policy

	// metrics is nil unless the caller opts in via WithMetrics.
	metrics *metrics.Collectors
}

// WithMetrics attaches a collector set the driver reports pool, routing, and
// retry activity to; call it right after New, before any pool is dialed.
func (d *Driver) WithMetrics(m *metrics.Collectors) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metrics = m
	d.retryP.Metrics = m
	if d.routing != nil {
		d.routing.WithMetrics(m)
	}
	return d
}

// New builds a Driver from a fully-loaded configuration. ctx roots every
// background operation the Driver starts (routing refreshes, pool upkeep);
// it is isolated with context.IsolateParent so a caller canceling one
// request context never tears down the whole driver, mirroring the way
// HelperLDAP isolates its own root context at construction time.
func New(ctx context.Context, cfg driverconfig.Config, log liblog.FuncLog) (*Driver, error) {
	if err := driverconfig.Validate(cfg); err != nil {
		return nil, err
	}

	uri, err := ParseURI(cfg.URI)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = func() liblog.Logger { return liblog.Discard() }
	}

	root := libctx.New[string](libctx.IsolateParent(ctx))

	d := &Driver{
		ctx:   root,
		cfg:   cfg,
		uri:   uri,
		auth:  auth.Basic(cfg.Username, cfg.Password, cfg.Realm),
		log:   log,
		pools: make(map[string]*pool.Pool),
		retryP: retry.Policy{
			MaxElapsed:  cfg.MaxTransactionRetryTime.Time(),
			InitialWait: retry.DefaultPolicy().InitialWait,
			MaxWait:     retry.DefaultPolicy().MaxWait,
			Multiplier:  retry.DefaultPolicy().Multiplier,
			Classify:    retry.DefaultClassifier,
		},
	}

	if uri.TLSMode != TLSNone {
		c := libcrt.New()
		if cfg.TrustedCertificatesPath != "" {
			if err := c.AddRootCAFile(cfg.TrustedCertificatesPath); err != nil {
				return nil, liberr.DriverConfigInvalid.Error(err)
			}
		}
		d.certs = c
	}

	if uri.Routed {
		d.routing = routing.NewRegistry(root.GetContext(), []address.Address{uri.Address}, d.fetchRoute)
	}

	return d, nil
}

// Close releases every pool the driver has opened.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for _, p := range d.pools {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.pools = make(map[string]*pool.Pool)
	return firstErr
}

// poolFor returns (creating if necessary) the pool bound to addr.
func (d *Driver) poolFor(addr address.Address) *pool.Pool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pools[addr.Key()]; ok {
		return p
	}

	p := pool.New(addr, pool.Options{
		MaxSize:             d.cfg.MaxConnectionPoolSize,
		MaxLifetime:         d.cfg.MaxConnectionLifetime.Time(),
		MaxIdleTime:         d.cfg.MaxConnectionIdleTime.Time(),
		LivenessCheckTimeout: d.cfg.ConnectionLivenessCheckTimeout.Time(),
		Dial:                d.dial,
		UserAgent:           d.cfg.UserAgent,
		Auth:                d.auth,
		RoutingContext:      d.uri.RoutingContext,
		Metrics:             d.metrics,
	})
	d.pools[addr.Key()] = p
	return p
}

// dial opens and handshakes a fresh connection to addr; HELLO/LOGON is the
// pool's job once the handshake settles on a version.
func (d *Driver) dial(ctx context.Context, addr address.Address) (*boltconn.Connection, error) {
	var tlsCfg *tls.Config
	if d.certs != nil {
		tlsCfg = d.certs.TlsConfig(addr.Host)
		if d.uri.TLSMode == TLSInsecure {
			tlsCfg.InsecureSkipVerify = true
		}
	}

	timeout := d.cfg.ConnectionTimeout.Time()
	return boltconn.Dial(addr, boltconn.DialOptions{
		TLS:               tlsCfg,
		ConnectTimeout:    timeout,
		Proposals:         defaultProposals,
		V2ManifestCapable: true,
		Logger:            d.log,
	})
}
