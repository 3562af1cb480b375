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
	"fmt"
	"net/url"
	"strconv"

	"github/sabouaram/boltdriver/address"
	liberr "github/sabouaram/boltdriver/errors"
)

// TLSMode is the transport-security posture selected by a connection URI's
// scheme suffix.
type TLSMode int

const (
	// TLSNone is a plaintext connection ("bolt", "neo4j").
	TLSNone TLSMode = iota
	// TLSVerify validates the server certificate against the trusted root
	// pool ("bolt+s", "neo4j+s").
	TLSVerify
	// TLSInsecure accepts any server certificate, including self-signed
	// ones ("bolt+ssc", "neo4j+ssc").
	TLSInsecure
)

const defaultPort = 7687

// schemeInfo is what a URI scheme tells the driver about routing and TLS,
// independent of the host/port/query it is paired with.
type schemeInfo struct {
	routed  bool
	tlsMode TLSMode
}

var schemes = map[string]schemeInfo{
	"bolt":       {routed: false, tlsMode: TLSNone},
	"bolt+s":     {routed: false, tlsMode: TLSVerify},
	"bolt+ssc":   {routed: false, tlsMode: TLSInsecure},
	"neo4j":      {routed: true, tlsMode: TLSNone},
	"neo4j+s":    {routed: true, tlsMode: TLSVerify},
	"neo4j+ssc":  {routed: true, tlsMode: TLSInsecure},
}

// ParsedURI is a connection URI split into the pieces the driver needs: the
// initial router/server address, whether the scheme requests routing, and
// the TLS posture it implies.
type ParsedURI struct {
	Address        address.Address
	Routed         bool
	TLSMode        TLSMode
	RoutingContext map[string]string
}

// ParseURI parses a bolt connection URI per scheme: "bolt"/"bolt+s"/"bolt+ssc"
// dial exactly the given address; "neo4j"/"neo4j+s"/"neo4j+ssc" additionally
// enable server-side routing, using the given address as the first router.
// Any query parameters are carried through as routing context, forwarded to
// the server verbatim on ROUTE/HELLO.
func ParseURI(raw string) (ParsedURI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ParsedURI{}, liberr.DriverConfigInvalid.Error(err)
	}

	info, ok := schemes[u.Scheme]
	if !ok {
		return ParsedURI{}, liberr.DriverConfigInvalid.Error(fmt.Errorf("unrecognized uri scheme %q", u.Scheme))
	}

	host := u.Hostname()
	if host == "" {
		return ParsedURI{}, liberr.DriverConfigInvalid.Error(fmt.Errorf("uri %q has no host", raw))
	}

	port := uint16(defaultPort)
	if p := u.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return ParsedURI{}, liberr.DriverConfigInvalid.Error(fmt.Errorf("uri %q has invalid port: %w", raw, err))
		}
		port = uint16(n)
	}

	rc := make(map[string]string)
	for k, v := range u.Query() {
		if len(v) > 0 {
			rc[k] = v[0]
		}
	}

	return ParsedURI{
		Address:        address.New(host, port),
		Routed:         info.routed,
		TLSMode:        info.tlsMode,
		RoutingContext: rc,
	}, nil
}
