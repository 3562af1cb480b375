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

package driver

import (
	"context"
	"time"

	"github/sabouaram/boltdriver/address"
	"github/sabouaram/boltdriver/boltconn"
	liberr "github/sabouaram/boltdriver/errors"
	"github/sabouaram/boltdriver/message"
	"github/sabouaram/boltdriver/routing"
	"github/sabouaram/boltdriver/value"
)

// fetchRoute implements routing.Fetcher against one candidate router: it
// borrows a connection from that router's own pool, sends ROUTE, and turns
// the "rt" metadata back into a routing.Table.
func (d *Driver) fetchRoute(ctx context.Context, router address.Address, db, impersonatedUser string, bookmarks []string) (routing.Table, error) {
	p := d.poolFor(router)
	conn, h, err := p.Acquire(ctx)
	if err != nil {
		return routing.Table{}, err
	}
	defer p.Release(conn, h)

	var table routing.Table
	var routeErr error
	done := false

	err = h.Route(conn, message.RouteParameters{
		RoutingContext:   d.uri.RoutingContext,
		Bookmarks:        bookmarks,
		Database:         db,
		ImpersonatedUser: impersonatedUser,
	}, boltconn.Callbacks{
		OnSuccess: func(meta map[string]value.Value) {
			table, routeErr = parseRoutingTable(meta)
			done = true
		},
		OnFailure: func(meta map[string]value.Value) {
			routeErr = liberr.RoutingRefreshFailed.Error()
			done = true
		},
	})
	if err != nil {
		return routing.Table{}, err
	}
	for !done {
		if err := conn.ReceiveOne(); err != nil {
			return routing.Table{}, err
		}
	}
	return table, routeErr
}

// parseRoutingTable reads a ROUTE success's "rt" field: {ttl, servers:
// [{role, addresses}]}.
func parseRoutingTable(meta map[string]value.Value) (routing.Table, error) {
	rtv, ok := meta["rt"]
	if !ok {
		return routing.Table{}, liberr.RoutingRefreshFailed.Error()
	}
	rt, err := rtv.AsDict()
	if err != nil {
		return routing.Table{}, liberr.RoutingRefreshFailed.Error(err)
	}

	var t routing.Table
	if ttl, ok := rt["ttl"]; ok {
		if n, err := ttl.AsInt(); err == nil {
			t.TTL = time.Duration(n) * time.Millisecond
		}
	}

	servers, err := rt["servers"].AsList()
	if err != nil {
		return routing.Table{}, liberr.RoutingRefreshFailed.Error(err)
	}
	for _, sv := range servers {
		sd, err := sv.AsDict()
		if err != nil {
			continue
		}
		role, _ := sd["role"].AsString()
		addrs, err := sd["addresses"].AsList()
		if err != nil {
			continue
		}
		var parsed []address.Address
		for _, av := range addrs {
			s, err := av.AsString()
			if err != nil {
				continue
			}
			a, err := address.Parse(s)
			if err != nil {
				continue
			}
			a.Resolved = true
			parsed = append(parsed, a)
		}
		switch role {
		case "ROUTE":
			t.Routers = parsed
		case "READ":
			t.Readers = parsed
		case "WRITE":
			t.Writers = parsed
		}
	}
	return t, nil
}
