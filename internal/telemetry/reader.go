// Package telemetry reads and writes telemetry records by dot-separated path.
//
// A Reader is a view over one record's backing map. Read never fails: a
// missing segment, a null terminal or a value of the wrong type all yield a
// null Nullable. MustRead distinguishes those cases and reports ErrNotFound or
// ErrTypeMismatch. Write and WriteIfAbsent mutate the record in place.
package telemetry

import (
	"fmt"
	"strings"

	"github.com/vincentbai/telemetry-converter/internal/value"
)

// Reader addresses fields of a record map by dot-separated path.
type Reader struct {
	m value.Map
}

// NewReader returns a reader over m. A nil map is replaced by an empty one so
// writes have somewhere to go.
func NewReader(m value.Map) *Reader {
	if m == nil {
		m = value.Map{}
	}
	return &Reader{m: m}
}

// Map returns the backing map.
func (r *Reader) Map() value.Map { return r.m }

// Nullable is the result of Read: either a value of type T or null.
type Nullable[T any] struct {
	v     T
	valid bool
}

// Some wraps v as a non-null result.
func Some[T any](v T) Nullable[T] { return Nullable[T]{v: v, valid: true} }

// IsNull reports whether the path was missing or null.
func (n Nullable[T]) IsNull() bool { return !n.valid }

// Value returns the wrapped value, or the zero T when n is null.
func (n Nullable[T]) Value() T { return n.v }

// ValueOr returns the wrapped value, or def when n is null.
func (n Nullable[T]) ValueOr(def T) T {
	if !n.valid {
		return def
	}
	return n.v
}

// Lookup resolves path without coercion. The boolean is false when a segment
// is missing or the terminal is null.
func (r *Reader) Lookup(path string) (value.Value, bool) {
	cur := value.Object(r.m)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.AsMap()
		if !ok {
			return value.Value{}, false
		}
		next, ok := m[seg]
		if !ok {
			return value.Value{}, false
		}
		cur = next
	}
	if cur.IsNull() {
		return value.Value{}, false
	}
	return cur, true
}

// Read resolves path and coerces the result to T.
func Read[T any](r *Reader, path string) Nullable[T] {
	v, ok := r.Lookup(path)
	if !ok {
		return Nullable[T]{}
	}
	out, ok := coerce[T](v)
	if !ok {
		return Nullable[T]{}
	}
	return Some(out)
}

// MustRead resolves path and coerces the result to T, reporting ErrNotFound
// or ErrTypeMismatch wrapped in a *PathError.
func MustRead[T any](r *Reader, path string) (T, error) {
	var zero T
	v, ok := r.Lookup(path)
	if !ok {
		return zero, &PathError{Path: path, Err: ErrNotFound}
	}
	out, ok := coerce[T](v)
	if !ok {
		return zero, &PathError{
			Path: path,
			Want: fmt.Sprintf("%T", zero),
			Got:  v.Kind().String(),
			Err:  ErrTypeMismatch,
		}
	}
	return out, nil
}

// Write sets the value at path, creating intermediate maps as needed. A
// non-map intermediate is replaced by a map.
func (r *Reader) Write(path string, v value.Value) {
	segs := strings.Split(path, ".")
	cur := r.m
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].AsMap()
		if !ok || next == nil {
			next = value.Map{}
			cur[seg] = value.Object(next)
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}

// WriteIfAbsent writes v only when path does not already resolve to a
// non-null value. It reports whether a write happened.
func (r *Reader) WriteIfAbsent(path string, v value.Value) bool {
	if _, ok := r.Lookup(path); ok {
		return false
	}
	r.Write(path, v)
	return true
}

func coerce[T any](v value.Value) (T, bool) {
	var zero T
	var out any
	var ok bool
	switch any(zero).(type) {
	case string:
		out, ok = v.AsString()
	case bool:
		out, ok = v.AsBool()
	case float64:
		out, ok = v.AsNumber()
	case int64:
		out, ok = v.AsInt()
	case int:
		var n int64
		n, ok = v.AsInt()
		out = int(n)
	case value.Map:
		out, ok = v.AsMap()
	case []value.Value:
		out, ok = v.AsList()
	case value.Value:
		out, ok = v, true
	}
	if !ok {
		return zero, false
	}
	return out.(T), true
}
