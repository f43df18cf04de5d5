// Package value models semi-structured telemetry records as a closed tagged
// variant. A Value is exactly one of null, bool, number, string, list or map,
// and callers reach the payload through checked accessors instead of type
// assertions on interface{}.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Map is a mapping from string keys to values. Maps are shared by reference,
// so a Value holding a Map can be mutated in place through the Map.
type Map map[string]Value

// Value is the zero-value-is-null tagged variant. Whole numbers in int64
// range also carry their exact integer in i.
type Value struct {
	kind  Kind
	b     bool
	n     float64
	i     int64
	exact bool
	s     string
	l     []Value
	m     Map
}

func Null() Value           { return Value{} }
func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func Int(n int64) Value     { return Value{kind: KindNumber, n: float64(n), i: n, exact: true} }
func String(s string) Value { return Value{kind: KindString, s: s} }

// Number returns a number value. Whole values in int64 range are stored as
// integers, so Number(3) and Int(3) are equal.
func Number(n float64) Value {
	if isWhole(n) && n >= math.MinInt64 && n < math.MaxInt64 {
		return Int(int64(n))
	}
	return Value{kind: KindNumber, n: n}
}

// List returns a list value holding items.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, l: items}
}

// Object returns a map value backed by m. A nil m becomes an empty map so the
// result can be written through.
func Object(m Map) Value {
	if m == nil {
		m = Map{}
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsNumber() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// AsInt reports the number as int64 when it is whole and in range.
func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindNumber && v.exact
}

func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

func (v Value) AsList() ([]Value, bool) {
	return v.l, v.kind == KindList
}

func (v Value) AsMap() (Map, bool) {
	return v.m, v.kind == KindMap
}

// Clone returns a deep copy. Maps and lists in the copy share nothing with v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		out := make([]Value, len(v.l))
		for i, item := range v.l {
			out[i] = item.Clone()
		}
		return Value{kind: KindList, l: out}
	case KindMap:
		return Value{kind: KindMap, m: v.m.Clone()}
	}
	return v
}

// Clone returns a deep copy of m.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, item := range m {
		out[k] = item.Clone()
	}
	return out
}

// Any converts v into the plain Go representation used by encoding/json:
// nil, bool, int64 or float64, string, []any and map[string]any.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if v.exact {
			return v.i
		}
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.l))
		for i, item := range v.l {
			out[i] = item.Any()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Any()
		}
		return out
	}
	return nil
}

// FromAny converts a decoded Go value into a Value. It accepts everything
// encoding/json and msgpack produce when decoding into interface{}.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case Map:
		return Object(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse number %q: %w", t, err)
		}
		return Number(f), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return FromAny(uint64(t))
	case uint8:
		return Number(float64(t)), nil
	case uint16:
		return Number(float64(t)), nil
	case uint32:
		return Number(float64(t)), nil
	case uint64:
		if t <= math.MaxInt64 {
			return Int(int64(t)), nil
		}
		return Number(float64(t)), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = v
		}
		return List(items...), nil
	case map[string]any:
		m := make(Map, len(t))
		for k, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = v
		}
		return Object(m), nil
	}
	return Value{}, fmt.Errorf("unsupported type %T", x)
}

func isWhole(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
}
