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

// Package address identifies a server endpoint the driver can dial, and the
// normalized key used to deduplicate pools and routing-table entries that
// refer to the same endpoint.
package address

import (
	"net"
	"strconv"
	"strings"
)

// Address is a dial target: a host (name or literal IP) and a port.
type Address struct {
	Host string
	Port uint16

	// Resolved marks an address produced by a DNS or custom resolver, as
	// opposed to one typed by a caller or parsed from a server ROUTE reply.
	Resolved bool
	// CustomResolved marks an address produced by the caller-supplied
	// custom resolver hook, before DNS resolution runs on top of it.
	CustomResolved bool
}

// New builds an Address from a host and port.
func New(host string, port uint16) Address {
	return Address{Host: host, Port: port}
}

// Parse splits a "host:port" string into an Address.
func Parse(hostport string) (Address, error) {
	h, p, err := net.SplitHostPort(hostport)
	if err != nil {
		return Address{}, err
	}

	n, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return Address{}, err
	}

	return Address{Host: h, Port: uint16(n)}, nil
}

// Key returns the normalized identity used for map/set membership: the IP
// literal form when Host parses as one, the verbatim host otherwise, always
// lower-cased and joined with the port.
func (a Address) Key() string {
	h := a.Host
	if ip := net.ParseIP(h); ip != nil {
		h = ip.String()
	} else {
		h = strings.ToLower(h)
	}
	return net.JoinHostPort(h, strconv.FormatUint(uint64(a.Port), 10))
}

// String renders the address in dial form.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.FormatUint(uint64(a.Port), 10))
}

// Equal reports whether two addresses share the same normalized key.
func (a Address) Equal(o Address) bool {
	return a.Key() == o.Key()
}

// Resolver resolves one address into zero or more candidates, used for the
// caller-supplied custom resolver hook described by the routing component.
type Resolver func(a Address) ([]Address, error)

// DNSResolver resolves a hostname into socket addresses, used as the final
// step before dialing a candidate produced by the custom resolver (or the
// seed address itself when no custom resolver is configured).
type DNSResolver func(host string) ([]net.IPAddr, error)

// DefaultDNSResolver resolves via the standard library resolver.
func DefaultDNSResolver(host string) ([]net.IPAddr, error) {
	return net.DefaultResolver.LookupIPAddr(nil, host)
}

// Dedup removes addresses sharing the same Key, preserving first-seen order.
func Dedup(in []Address) []Address {
	seen := make(map[string]struct{}, len(in))
	out := make([]Address, 0, len(in))
	for _, a := range in {
		k := a.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, a)
	}
	return out
}
