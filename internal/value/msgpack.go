package value

import (
	"fmt"
	"maps"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	_ msgpack.CustomEncoder = Value{}
	_ msgpack.CustomDecoder = (*Value)(nil)
)

// EncodeMsgpack writes v with sorted map keys. Whole numbers in int64 range
// are encoded as integers.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch v.kind {
	case KindNull:
		return enc.EncodeNil()
	case KindBool:
		return enc.EncodeBool(v.b)
	case KindNumber:
		if n, ok := v.AsInt(); ok {
			return enc.EncodeInt(n)
		}
		return enc.EncodeFloat64(v.n)
	case KindString:
		return enc.EncodeString(v.s)
	case KindList:
		if err := enc.EncodeArrayLen(len(v.l)); err != nil {
			return err
		}
		for _, item := range v.l {
			if err := item.EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	case KindMap:
		if err := enc.EncodeMapLen(len(v.m)); err != nil {
			return err
		}
		for _, k := range slices.Sorted(maps.Keys(v.m)) {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := v.m[k].EncodeMsgpack(enc); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown kind %s", v.kind)
}

func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
