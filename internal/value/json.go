package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
)

// Parse decodes a JSON document into a Value. Integer literals that fit in
// int64 are kept exactly; other numbers are stored as float64.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, err
	}
	if dec.More() {
		return Value{}, fmt.Errorf("unexpected data after top-level value")
	}
	return FromAny(raw)
}

// MarshalJSON renders v with sorted map keys. Whole numbers are written in
// plain decimal form, never with a fraction or exponent.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) appendJSON(b []byte) ([]byte, error) {
	switch v.kind {
	case KindNull:
		return append(b, "null"...), nil
	case KindBool:
		return strconv.AppendBool(b, v.b), nil
	case KindNumber:
		if v.exact {
			return strconv.AppendInt(b, v.i, 10), nil
		}
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return nil, fmt.Errorf("unsupported number %v", v.n)
		}
		if isWhole(v.n) {
			return strconv.AppendFloat(b, v.n, 'f', -1, 64), nil
		}
		return strconv.AppendFloat(b, v.n, 'g', -1, 64), nil
	case KindString:
		return appendString(b, v.s)
	case KindList:
		b = append(b, '[')
		for i, item := range v.l {
			if i > 0 {
				b = append(b, ',')
			}
			var err error
			if b, err = item.appendJSON(b); err != nil {
				return nil, err
			}
		}
		return append(b, ']'), nil
	case KindMap:
		b = append(b, '{')
		for i, k := range slices.Sorted(maps.Keys(v.m)) {
			if i > 0 {
				b = append(b, ',')
			}
			var err error
			if b, err = appendString(b, k); err != nil {
				return nil, err
			}
			b = append(b, ':')
			if b, err = v.m[k].appendJSON(b); err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
		}
		return append(b, '}'), nil
	}
	return nil, fmt.Errorf("unknown kind %s", v.kind)
}

func appendString(b []byte, s string) ([]byte, error) {
	enc, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return append(b, enc...), nil
}
