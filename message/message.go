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

// Package message defines the wire tags and typed parameter records for
// every bolt request message, plus the shared "extra" dictionary encoding
// rules used by RUN, BEGIN, and ROUTE.
package message

import (
	"github/sabouaram/boltdriver/auth"
	"github/sabouaram/boltdriver/packstream"
	"github/sabouaram/boltdriver/value"
)

// Request message tags.
const (
	TagHello    = 0x01
	TagLogon    = 0x6A
	TagLogoff   = 0x6B
	TagGoodbye  = 0x02
	TagReset    = 0x0F
	TagRun      = 0x10
	TagDiscard  = 0x2F
	TagPull     = 0x3F
	TagBegin    = 0x11
	TagCommit   = 0x12
	TagRollback = 0x13
	TagRoute    = 0x66
	TagTelemetry = 0x54
)

// Response message tags.
const (
	TagSuccess = 0x70
	TagRecord  = 0x71
	TagIgnored = 0x7E
	TagFailure = 0x7F
)

// AccessMode selects the routing role a unit of work targets.
type AccessMode string

const (
	ModeWrite AccessMode = "w"
	ModeRead  AccessMode = "r"
)

// NotificationSeverity enumerates the minimum severity filter value.
type NotificationSeverity string

const (
	SeverityOff      NotificationSeverity = "OFF"
	SeverityWarning  NotificationSeverity = "WARNING"
	SeverityInformation NotificationSeverity = "INFORMATION"
)

// NotificationFilter narrows which server notifications accompany a result,
// available from protocol 5.2 onward.
type NotificationFilter struct {
	MinimumSeverity     NotificationSeverity
	DisabledCategories  []string
	DisabledClassifications []string // 5.7+ name for the same concept
}

func (f *NotificationFilter) encode(pairs []packstream.KV, useClassifications bool) []packstream.KV {
	if f == nil {
		return pairs
	}
	if f.MinimumSeverity != "" {
		sev := string(f.MinimumSeverity)
		pairs = append(pairs, packstream.KV{
			Key:    "notifications_minimum_severity",
			Encode: func(w *packstream.Writer) { w.String(sev) },
		})
	}

	cats := f.DisabledCategories
	key := "notifications_disabled_categories"
	if useClassifications {
		cats = f.DisabledClassifications
		key = "notifications_disabled_classifications"
	}
	if len(cats) > 0 {
		c := cats
		pairs = append(pairs, packstream.KV{
			Key: key,
			Encode: func(w *packstream.Writer) {
				w.ListHeader(len(c))
				for _, s := range c {
					w.String(s)
				}
			},
		})
	}
	return pairs
}

// BoltAgent is the 5.3+ self-identification dictionary.
type BoltAgent struct {
	Product          string
	Platform         string
	Language         string
	LanguageDetails  string
}

// HelloParameters carries every field HELLO may send, across versions; the
// per-version handler decides which subset actually gets encoded.
type HelloParameters struct {
	UserAgent      string
	RoutingContext map[string]string
	Auth           *auth.Token // only for protocol < 5.1, where auth travels inside HELLO
	BoltAgent      *BoltAgent  // 5.3+
	PatchBolt      []string    // utc patch negotiation, pre-5.0 only
	RequestSSR     bool        // 5.8+
}

// Encode writes HELLO's field list (a single dictionary) honoring which
// optional fields are populated; callers pick Auth vs separate LOGON based
// on the negotiated minor version before constructing these parameters.
func (p HelloParameters) Encode(w *packstream.Writer) {
	pairs := []packstream.KV{
		{Key: "user_agent", Encode: func(w *packstream.Writer) { w.String(p.UserAgent) }},
	}

	if len(p.RoutingContext) > 0 {
		rc := p.RoutingContext
		pairs = append(pairs, packstream.KV{
			Key: "routing",
			Encode: func(w *packstream.Writer) {
				keys := sortedKeys(rc)
				w.DictHeader(len(keys))
				for _, k := range keys {
					w.String(k)
					w.String(rc[k])
				}
			},
		})
	}

	if p.BoltAgent != nil {
		ba := p.BoltAgent
		pairs = append(pairs, packstream.KV{
			Key: "bolt_agent",
			Encode: func(w *packstream.Writer) {
				w.DictHeader(4)
				w.String("product")
				w.String(ba.Product)
				w.String("platform")
				w.String(ba.Platform)
				w.String("language")
				w.String(ba.Language)
				w.String("language_details")
				w.String(ba.LanguageDetails)
			},
		})
	}

	if len(p.PatchBolt) > 0 {
		patch := p.PatchBolt
		pairs = append(pairs, packstream.KV{
			Key: "patch_bolt",
			Encode: func(w *packstream.Writer) {
				w.ListHeader(len(patch))
				for _, s := range patch {
					w.String(s)
				}
			},
		})
	}

	if p.RequestSSR {
		pairs = append(pairs, packstream.KV{
			Key:    "ssr_enabled",
			Encode: func(w *packstream.Writer) { w.Bool(true) },
		})
	}

	if p.Auth != nil {
		// Pre-5.1 servers expect auth fields merged directly into HELLO.
		w.DictHeader(len(pairs) + p.Auth.FieldCount())
		for _, kv := range pairs {
			w.String(kv.Key)
			kv.Encode(w)
		}
		p.Auth.Encode(w)
		return
	}

	w.Dict(pairs)
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// RunExtra is the shared "extra" dictionary shape for RUN and BEGIN.
type RunExtra struct {
	Bookmarks           []string
	TxTimeoutMillis     *int64
	TxMetadata          map[string]value.Value
	Mode                AccessMode // encoded only when not ModeWrite (the default)
	Database            string
	ImpersonatedUser    string
	NotificationFilter  *NotificationFilter
	UseClassifications  bool // 5.7+ renames disabled_categories to disabled_classifications
}

func (e RunExtra) encode() []packstream.KV {
	var pairs []packstream.KV

	if len(e.Bookmarks) > 0 {
		bm := e.Bookmarks
		pairs = append(pairs, packstream.KV{
			Key: "bookmarks",
			Encode: func(w *packstream.Writer) {
				w.ListHeader(len(bm))
				for _, b := range bm {
					w.String(b)
				}
			},
		})
	}

	if e.TxTimeoutMillis != nil {
		t := *e.TxTimeoutMillis
		pairs = append(pairs, packstream.KV{Key: "tx_timeout", Encode: func(w *packstream.Writer) { w.Int(t) }})
	}

	if len(e.TxMetadata) > 0 {
		md := e.TxMetadata
		pairs = append(pairs, packstream.KV{
			Key: "tx_metadata",
			Encode: func(w *packstream.Writer) {
				keys := make([]string, 0, len(md))
				for k := range md {
					keys = append(keys, k)
				}
				w.DictHeader(len(keys))
				for _, k := range keys {
					w.String(k)
					_ = md[k].Encode(w)
				}
			},
		})
	}

	if e.Mode != "" && e.Mode != ModeWrite {
		m := string(e.Mode)
		pairs = append(pairs, packstream.KV{Key: "mode", Encode: func(w *packstream.Writer) { w.String(m) }})
	}

	if e.Database != "" {
		db := e.Database
		pairs = append(pairs, packstream.KV{Key: "db", Encode: func(w *packstream.Writer) { w.String(db) }})
	}

	if e.ImpersonatedUser != "" {
		u := e.ImpersonatedUser
		pairs = append(pairs, packstream.KV{Key: "imp_user", Encode: func(w *packstream.Writer) { w.String(u) }})
	}

	pairs = e.NotificationFilter.encode(pairs, e.UseClassifications)

	return pairs
}

// RunParameters carries RUN's three fields: query, parameters, extra.
type RunParameters struct {
	Query      string
	Parameters map[string]value.Value
	Extra      RunExtra
}

// Encode writes RUN as a tagged structure with arity 3.
func (p RunParameters) Encode(w *packstream.Writer) {
	w.StructHeader(TagRun, 3)
	w.String(p.Query)

	keys := make([]string, 0, len(p.Parameters))
	for k := range p.Parameters {
		keys = append(keys, k)
	}
	w.DictHeader(len(keys))
	for _, k := range keys {
		w.String(k)
		_ = p.Parameters[k].Encode(w)
	}

	w.Dict(p.Extra.encode())
}

// BeginParameters carries BEGIN's single "extra" field.
type BeginParameters struct {
	Extra RunExtra
}

// Encode writes BEGIN as a tagged structure with arity 1.
func (p BeginParameters) Encode(w *packstream.Writer) {
	w.StructHeader(TagBegin, 1)
	w.Dict(p.Extra.encode())
}

// PullOrDiscardParameters is the shared {n, qid?} shape for PULL and DISCARD.
type PullOrDiscardParameters struct {
	N   int64 // -1 means "all"
	QID int64 // -1 means "the latest stream"; omitted from the wire when so
}

func (p PullOrDiscardParameters) encodeExtra(w *packstream.Writer) {
	if p.QID == -1 {
		w.DictHeader(1)
		w.String("n")
		w.Int(p.N)
		return
	}
	w.DictHeader(2)
	w.String("n")
	w.Int(p.N)
	w.String("qid")
	w.Int(p.QID)
}

// EncodePull writes PULL {n, qid?}.
func (p PullOrDiscardParameters) EncodePull(w *packstream.Writer) {
	w.StructHeader(TagPull, 1)
	p.encodeExtra(w)
}

// EncodeDiscard writes DISCARD {n, qid?}.
func (p PullOrDiscardParameters) EncodeDiscard(w *packstream.Writer) {
	w.StructHeader(TagDiscard, 1)
	p.encodeExtra(w)
}

// RouteParameters carries ROUTE's three fields.
type RouteParameters struct {
	RoutingContext map[string]string
	Bookmarks      []string
	Database       string
	ImpersonatedUser string
}

// Encode writes ROUTE as a tagged structure with arity 3.
func (p RouteParameters) Encode(w *packstream.Writer) {
	w.StructHeader(TagRoute, 3)

	keys := sortedKeys(p.RoutingContext)
	w.DictHeader(len(keys))
	for _, k := range keys {
		w.String(k)
		w.String(p.RoutingContext[k])
	}

	w.ListHeader(len(p.Bookmarks))
	for _, b := range p.Bookmarks {
		w.String(b)
	}

	var extra []packstream.KV
	if p.Database != "" {
		db := p.Database
		extra = append(extra, packstream.KV{Key: "db", Encode: func(w *packstream.Writer) { w.String(db) }})
	}
	if p.ImpersonatedUser != "" {
		u := p.ImpersonatedUser
		extra = append(extra, packstream.KV{Key: "imp_user", Encode: func(w *packstream.Writer) { w.String(u) }})
	}
	w.Dict(extra)
}

// TelemetryAPI identifies the client API that ran a query, sent only on
// protocol 5.4+; no-op (never sent) on older versions.
type TelemetryAPI int64

const (
	TelemetryTxFunc TelemetryAPI = iota
	TelemetryUnmanagedTx
	TelemetryAutoCommit
	TelemetryDriverLevel
)

// EncodeTelemetry writes TELEMETRY {api}.
func EncodeTelemetry(w *packstream.Writer, api TelemetryAPI) {
	w.StructHeader(TagTelemetry, 1)
	w.Int(int64(api))
}
