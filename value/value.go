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

// Package value is the driver's data model: the tagged variant type carried
// by parameters sent to the server and by records received from it,
// including the graph types (node, relationship, path) and the broken-value
// sentinel for structures that decode but fail semantic validation.
package value

import (
	"fmt"

	liberr "github/sabouaram/boltdriver/errors"
	"github/sabouaram/boltdriver/packstream"
)

// Kind discriminates the variant carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindBytes
	KindString
	KindList
	KindDict
	KindNode
	KindRelationship
	KindUnboundRelationship
	KindPath
	KindPoint
	KindOpaqueStruct // temporal/spatial payloads the driver does not interpret
	KindBroken
)

// Struct tags for the graph and opaque domain types. Temporal/spatial tags
// are recorded here only so OpaqueStruct round-trips the right wire shape;
// the core never interprets their field semantics (an explicit non-goal).
const (
	TagNode                 = 0x4E
	TagRelationship         = 0x52
	TagUnboundRelationship  = 0x72
	TagPath                 = 0x50
	TagPoint2D              = 0x58
	TagPoint3D              = 0x59
	TagDate                 = 0x44
	TagTime                 = 0x54
	TagLocalTime            = 0x74
	TagDateTimeLegacy       = 0x46
	TagDateTimeUTC          = 0x49
	TagDateTimeZoneIDLegacy = 0x66
	TagDateTimeZoneIDUTC    = 0x69
	TagLocalDateTime        = 0x64
	TagDuration             = 0x45
)

// Value is the driver's universal tagged value. Exactly one of the typed
// fields is meaningful for a given Kind; callers should use the As*
// accessors rather than reading fields directly.
type Value struct {
	kind Kind

	b      bool
	i      int64
	f      float64
	bytes  []byte
	s      string
	list   []Value
	dict   map[string]Value
	dictOK []string // preserves insertion order for re-encoding a dict Value

	node    *Node
	rel     *Relationship
	unbound *UnboundRelationship
	path    *Path
	opaque  *OpaqueStruct

	broken *BrokenValue
}

// Node is a graph node as returned in a record.
type Node struct {
	ID         int64
	ElementID  string
	Labels     []string
	Properties map[string]Value
}

// Relationship is a graph relationship bound to its two endpoints.
type Relationship struct {
	ID                 int64
	ElementID          string
	Type               string
	StartNodeID        int64
	StartNodeElementID string
	EndNodeID          int64
	EndNodeElementID   string
	Properties         map[string]Value
}

// UnboundRelationship is a relationship as it appears inside a Path, before
// its endpoints are resolved from the path's node list.
type UnboundRelationship struct {
	ID         int64
	ElementID  string
	Type       string
	Properties map[string]Value
}

// Path is a graph path: alternating nodes and relationships described by a
// compact index encoding (see original protocol documentation for the
// indices' sign/parity convention); Traverse expands it.
type Path struct {
	Nodes         []Node
	Relationships []UnboundRelationship
	Indices       []int64
}

// Segment is one (start, relationship, end) hop of a traversed Path.
type Segment struct {
	Start        Node
	Relationship UnboundRelationship
	End          Node
}

// Traverse expands a Path's compact index encoding into an ordered segment
// list. Panics if Indices violates the structural invariant (odd length,
// zero entries, or out-of-range node references) — such a path cannot be
// produced by a server that validates its own output, matching the
// reference implementation's own panic-on-corruption stance.
func (p Path) Traverse() []Segment {
	if len(p.Indices) == 0 || len(p.Indices)%2 != 0 {
		panic("value: path indices must be a non-empty, even-length sequence")
	}

	segs := make([]Segment, 0, len(p.Indices)/2)
	prevNode := 0
	for i := 0; i < len(p.Indices); i += 2 {
		relIdx := p.Indices[i]
		nextNode := int(p.Indices[i+1])

		start, end := prevNode, nextNode
		if relIdx < 0 {
			start, end = nextNode, prevNode
			relIdx = -relIdx
		}
		relIdx--

		segs = append(segs, Segment{
			Start:        p.Nodes[start],
			Relationship: p.Relationships[relIdx],
			End:          p.Nodes[end],
		})
		prevNode = nextNode
	}
	return segs
}

// OpaqueStruct preserves a struct tag and its raw fields for a wire type
// the core does not interpret semantically (temporal and spatial values).
type OpaqueStruct struct {
	Tag    byte
	Fields []Value
}

// BrokenValue preserves the raw tag and fields of a structure that decoded
// but failed semantic validation (e.g. a Path with out-of-range indices).
// The error is only surfaced when the caller actually accesses the value,
// per the open design question in the routing/value model.
type BrokenValue struct {
	Tag    byte
	Fields []Value
	Err    error
}

func (b *BrokenValue) Error() string { return b.Err.Error() }

// Constructors.

func Null() Value                { return Value{kind: KindNull} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Int(i int64) Value          { return Value{kind: KindInt, i: i} }
func Float(f float64) Value      { return Value{kind: KindFloat, f: f} }
func Bytes(b []byte) Value       { return Value{kind: KindBytes, bytes: b} }
func String(s string) Value      { return Value{kind: KindString, s: s} }
func List(vs []Value) Value      { return Value{kind: KindList, list: vs} }

// Dict builds a dictionary Value, preserving the given key order for
// re-encoding (e.g. when round-tripping a RUN parameter map).
func Dict(order []string, m map[string]Value) Value {
	return Value{kind: KindDict, dict: m, dictOK: order}
}

func NodeValue(n Node) Value                             { return Value{kind: KindNode, node: &n} }
func RelationshipValue(r Relationship) Value              { return Value{kind: KindRelationship, rel: &r} }
func UnboundRelationshipValue(r UnboundRelationship) Value {
	return Value{kind: KindUnboundRelationship, unbound: &r}
}
func PathValue(p Path) Value   { return Value{kind: KindPath, path: &p} }
func Opaque(o OpaqueStruct) Value { return Value{kind: KindOpaqueStruct, opaque: &o} }
func Broken(b BrokenValue) Value  { return Value{kind: KindBroken, broken: &b} }

// Kind reports the variant carried by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsBroken reports whether v is a broken-value sentinel.
func (v Value) IsBroken() bool { return v.kind == KindBroken }

// AsBool returns v's boolean, or an error if v is not a bool.
func (v Value) AsBool() (bool, error) {
	if err := v.checkKind(KindBool); err != nil {
		return false, err
	}
	return v.b, nil
}

// AsInt returns v's integer, or an error if v is not an int.
func (v Value) AsInt() (int64, error) {
	if err := v.checkKind(KindInt); err != nil {
		return 0, err
	}
	return v.i, nil
}

// AsFloat returns v's float, or an error if v is not a float.
func (v Value) AsFloat() (float64, error) {
	if err := v.checkKind(KindFloat); err != nil {
		return 0, err
	}
	return v.f, nil
}

// AsBytes returns v's byte array, or an error if v is not bytes.
func (v Value) AsBytes() ([]byte, error) {
	if err := v.checkKind(KindBytes); err != nil {
		return nil, err
	}
	return v.bytes, nil
}

// AsString returns v's string, or an error if v is not a string.
func (v Value) AsString() (string, error) {
	if err := v.checkKind(KindString); err != nil {
		return "", err
	}
	return v.s, nil
}

// AsList returns v's list, or an error if v is not a list.
func (v Value) AsList() ([]Value, error) {
	if err := v.checkKind(KindList); err != nil {
		return nil, err
	}
	return v.list, nil
}

// AsDict returns v's dictionary, or an error if v is not a dict.
func (v Value) AsDict() (map[string]Value, error) {
	if err := v.checkKind(KindDict); err != nil {
		return nil, err
	}
	return v.dict, nil
}

// AsNode returns v's node, or an error if v is not a node (including when
// v is a broken value that failed validation as a node).
func (v Value) AsNode() (Node, error) {
	if v.kind == KindBroken {
		return Node{}, v.broken.Err
	}
	if err := v.checkKind(KindNode); err != nil {
		return Node{}, err
	}
	return *v.node, nil
}

// AsRelationship returns v's relationship, or an error if v is not one.
func (v Value) AsRelationship() (Relationship, error) {
	if v.kind == KindBroken {
		return Relationship{}, v.broken.Err
	}
	if err := v.checkKind(KindRelationship); err != nil {
		return Relationship{}, err
	}
	return *v.rel, nil
}

// AsPath returns v's path, or an error if v is not one.
func (v Value) AsPath() (Path, error) {
	if v.kind == KindBroken {
		return Path{}, v.broken.Err
	}
	if err := v.checkKind(KindPath); err != nil {
		return Path{}, err
	}
	return *v.path, nil
}

// AsOpaqueStruct returns v's raw struct payload for temporal/spatial tags.
func (v Value) AsOpaqueStruct() (OpaqueStruct, error) {
	if err := v.checkKind(KindOpaqueStruct); err != nil {
		return OpaqueStruct{}, err
	}
	return *v.opaque, nil
}

func (v Value) checkKind(k Kind) error {
	if v.kind != k {
		return liberr.ValueUnrepresentable.Error(fmt.Errorf("value is not of the requested kind"))
	}
	return nil
}

// Encode writes v to w using the smallest applicable packstream marker.
func (v Value) Encode(w *packstream.Writer) error {
	switch v.kind {
	case KindNull:
		w.Null()
	case KindBool:
		w.Bool(v.b)
	case KindInt:
		w.Int(v.i)
	case KindFloat:
		w.Float(v.f)
	case KindBytes:
		w.Bytes(v.bytes)
	case KindString:
		w.String(v.s)
	case KindList:
		w.ListHeader(len(v.list))
		for _, e := range v.list {
			if err := e.Encode(w); err != nil {
				return err
			}
		}
	case KindDict:
		keys := v.dictOK
		if keys == nil {
			keys = make([]string, 0, len(v.dict))
			for k := range v.dict {
				keys = append(keys, k)
			}
		}
		w.DictHeader(len(keys))
		for _, k := range keys {
			w.String(k)
			if err := v.dict[k].Encode(w); err != nil {
				return err
			}
		}
	default:
		return liberr.ValueUnrepresentable.Error(fmt.Errorf("kind %d has no client-to-server wire form", v.kind))
	}
	return nil
}

// Decode reads one value from r, given its already-read marker byte.
// Unknown structure tags become broken values rather than errors, so a
// single malformed field does not necessarily fail the whole record.
func Decode(r *packstream.Reader, marker byte) (Value, error) {
	switch {
	case marker == packstream.MarkerNull:
		return Null(), nil
	case marker == packstream.MarkerTrue || marker == packstream.MarkerFalse:
		b, err := r.Bool(marker)
		return Bool(b), err
	case marker == packstream.MarkerFloat64:
		f, err := r.Float(marker)
		return Float(f), err
	case packstream.IsTinyString(marker) || marker == packstream.MarkerString8 ||
		marker == packstream.MarkerString16 || marker == packstream.MarkerString32:
		s, err := r.String(marker)
		return String(s), err
	case marker == packstream.MarkerBytes8 || marker == packstream.MarkerBytes16 || marker == packstream.MarkerBytes32:
		b, err := r.Bytes(marker)
		return Bytes(b), err
	case packstream.IsTinyList(marker) || marker == packstream.MarkerList8 ||
		marker == packstream.MarkerList16 || marker == packstream.MarkerList32:
		n, err := r.ListHeader(marker)
		if err != nil {
			return Value{}, err
		}
		return decodeList(r, n)
	case packstream.IsTinyDict(marker) || marker == packstream.MarkerDict8 ||
		marker == packstream.MarkerDict16 || marker == packstream.MarkerDict32:
		n, err := r.DictHeader(marker)
		if err != nil {
			return Value{}, err
		}
		return decodeDict(r, n)
	case packstream.IsTinyStruct(marker):
		arity, tag, err := r.StructHeader(marker)
		if err != nil {
			return Value{}, err
		}
		return decodeStruct(r, tag, arity)
	default:
		// Single-byte tiny-int covers every remaining marker value.
		i, err := r.Int(marker)
		return Int(i), err
	}
}

func decodeList(r *packstream.Reader, n int) (Value, error) {
	out := make([]Value, n)
	for i := 0; i < n; i++ {
		m, err := r.PeekMarker()
		if err != nil {
			return Value{}, err
		}
		out[i], err = Decode(r, m)
		if err != nil {
			return Value{}, err
		}
	}
	return List(out), nil
}

func decodeDict(r *packstream.Reader, n int) (Value, error) {
	order := make([]string, n)
	m := make(map[string]Value, n)
	for i := 0; i < n; i++ {
		km, err := r.PeekMarker()
		if err != nil {
			return Value{}, err
		}
		k, err := r.String(km)
		if err != nil {
			return Value{}, err
		}
		vm, err := r.PeekMarker()
		if err != nil {
			return Value{}, err
		}
		v, err := Decode(r, vm)
		if err != nil {
			return Value{}, err
		}
		order[i] = k
		m[k] = v
	}
	return Dict(order, m), nil
}

func decodeStruct(r *packstream.Reader, tag byte, arity int) (Value, error) {
	fields := make([]Value, arity)
	for i := 0; i < arity; i++ {
		m, err := r.PeekMarker()
		if err != nil {
			return Value{}, err
		}
		fields[i], err = Decode(r, m)
		if err != nil {
			return Value{}, err
		}
	}

	switch tag {
	case TagNode:
		return decodeNode(tag, fields)
	case TagRelationship:
		return decodeRelationship(tag, fields)
	case TagUnboundRelationship:
		return decodeUnboundRelationship(tag, fields)
	case TagPath:
		return decodePath(tag, fields)
	case TagPoint2D, TagPoint3D, TagDate, TagTime, TagLocalTime, TagDateTimeLegacy,
		TagDateTimeUTC, TagDateTimeZoneIDLegacy, TagDateTimeZoneIDUTC, TagLocalDateTime, TagDuration:
		return Opaque(OpaqueStruct{Tag: tag, Fields: fields}), nil
	default:
		return Broken(BrokenValue{
			Tag:    tag,
			Fields: fields,
			Err:    liberr.PackstreamUnknownStructTag.Error(fmt.Errorf("unknown structure tag 0x%02X", tag)),
		}), nil
	}
}

func decodeNode(tag byte, f []Value) (Value, error) {
	if len(f) != 4 {
		return brokenArity(tag, f, 4)
	}
	id, err1 := f[0].AsInt()
	labelsRaw, err2 := f[1].AsList()
	propsRaw, err3 := f[2].AsDict()
	elementID, err4 := f[3].AsString()
	if err := firstErr(err1, err2, err3, err4); err != nil {
		return broken(tag, f, err), nil
	}

	labels := make([]string, len(labelsRaw))
	for i, l := range labelsRaw {
		s, err := l.AsString()
		if err != nil {
			return broken(tag, f, err), nil
		}
		labels[i] = s
	}

	return NodeValue(Node{ID: id, ElementID: elementID, Labels: labels, Properties: propsRaw}), nil
}

func decodeRelationship(tag byte, f []Value) (Value, error) {
	if len(f) != 8 {
		return brokenArity(tag, f, 8)
	}
	id, e1 := f[0].AsInt()
	startID, e2 := f[1].AsInt()
	endID, e3 := f[2].AsInt()
	typ, e4 := f[3].AsString()
	props, e5 := f[4].AsDict()
	elementID, e6 := f[5].AsString()
	startElementID, e7 := f[6].AsString()
	endElementID, e8 := f[7].AsString()
	if err := firstErr(e1, e2, e3, e4, e5, e6, e7, e8); err != nil {
		return broken(tag, f, err), nil
	}
	return RelationshipValue(Relationship{
		ID: id, ElementID: elementID, Type: typ,
		StartNodeID: startID, StartNodeElementID: startElementID,
		EndNodeID: endID, EndNodeElementID: endElementID,
		Properties: props,
	}), nil
}

func decodeUnboundRelationship(tag byte, f []Value) (Value, error) {
	if len(f) != 5 {
		return brokenArity(tag, f, 5)
	}
	id, e1 := f[0].AsInt()
	typ, e2 := f[1].AsString()
	props, e3 := f[2].AsDict()
	elementID, e4 := f[3].AsString()
	if err := firstErr(e1, e2, e3, e4); err != nil {
		return broken(tag, f, err), nil
	}
	return UnboundRelationshipValue(UnboundRelationship{ID: id, ElementID: elementID, Type: typ, Properties: props}), nil
}

func decodePath(tag byte, f []Value) (Value, error) {
	if len(f) != 3 {
		return brokenArity(tag, f, 3)
	}
	nodesRaw, e1 := f[0].AsList()
	relsRaw, e2 := f[1].AsList()
	idxRaw, e3 := f[2].AsList()
	if err := firstErr(e1, e2, e3); err != nil {
		return broken(tag, f, err), nil
	}

	nodes := make([]Node, len(nodesRaw))
	for i, nv := range nodesRaw {
		n, err := nv.AsNode()
		if err != nil {
			return broken(tag, f, err), nil
		}
		nodes[i] = n
	}

	rels := make([]UnboundRelationship, len(relsRaw))
	for i, rv := range relsRaw {
		if err := rv.checkKind(KindUnboundRelationship); err != nil {
			return broken(tag, f, err), nil
		}
		rels[i] = *rv.unbound
	}

	indices := make([]int64, len(idxRaw))
	for i, iv := range idxRaw {
		n, err := iv.AsInt()
		if err != nil {
			return broken(tag, f, err), nil
		}
		indices[i] = n
	}

	p := Path{Nodes: nodes, Relationships: rels, Indices: indices}
	if len(indices) == 0 || len(indices)%2 != 0 {
		return broken(tag, f, liberr.PackstreamBrokenValue.Error(fmt.Errorf("path indices must be a non-empty, even-length sequence"))), nil
	}

	return PathValue(p), nil
}

func brokenArity(tag byte, f []Value, want int) (Value, error) {
	return broken(tag, f, liberr.PackstreamBrokenValue.Error(fmt.Errorf("tag 0x%02X expects %d fields, got %d", tag, want, len(f)))), nil
}

func broken(tag byte, f []Value, err error) Value {
	return Broken(BrokenValue{Tag: tag, Fields: f, Err: err})
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// String renders v for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindBroken:
		return fmt.Sprintf("broken(tag=0x%02X: %s)", v.broken.Tag, v.broken.Err)
	default:
		return fmt.Sprintf("value(kind=%d)", v.kind)
	}
}
