// Package normalize converts loosely typed ledger responses into plain values.
//
// Decoded ledger data uses ordered maps (*calldata.Map) and arbitrary
// precision integers (*big.Int). Everything downstream of the ledger client
// works on *Object, []any, string, float64, bool and nil instead.
package normalize

import (
	"bytes"
	"encoding/json"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/proofofsteak/steakboard/internal/calldata"
)

// Value returns a normalized copy of v. It never fails and never mutates v.
// Integers wider than 2^53 lose precision when converted to float64.
func Value(v any) any {
	switch val := v.(type) {
	case *calldata.Map:
		if val == nil {
			return nil
		}
		out := NewObject()
		val.Range(func(k string, item any) bool {
			out.Set(k, Value(item))
			return true
		})
		return out
	case *Object:
		if val == nil {
			return nil
		}
		out := NewObject()
		for _, k := range val.keys {
			out.Set(k, Value(val.values[k]))
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := NewObject()
		for _, k := range keys {
			out.Set(k, Value(val[k]))
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Value(item)
		}
		return out
	case *big.Int:
		if val == nil {
			return nil
		}
		f, _ := new(big.Float).SetInt(val).Float64()
		return f
	case big.Int:
		f, _ := new(big.Float).SetInt(&val).Float64()
		return f
	default:
		return v
	}
}

// Response normalizes a top-level response and reports whether it is a
// mapping. Callers decide whether a non-mapping means "not found".
func Response(v any) (*Object, bool) {
	obj, ok := Value(v).(*Object)
	return obj, ok
}

// Object is an ordered string-keyed mapping.
type Object struct {
	keys   []string
	values map[string]any
}

func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

func (o *Object) Set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// String returns the value under key as a string. Non-string scalars are
// formatted; missing keys and nil yield "".
func (o *Object) String(key string) string {
	v, ok := o.Get(key)
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case interface{ Hex() string }:
		return val.Hex()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// Number returns the numeric value under key. Numeric strings are accepted.
func (o *Object) Number(key string) (float64, bool) {
	v, ok := o.Get(key)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Int is Number truncated to int.
func (o *Object) Int(key string) (int, bool) {
	f, ok := o.Number(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Bool returns the boolean under key; anything else is false.
func (o *Object) Bool(key string) bool {
	v, _ := o.Get(key)
	b, _ := v.(bool)
	return b
}

// Objects returns the elements under key that are objects.
func (o *Object) Objects(key string) []*Object {
	v, _ := o.Get(key)
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]*Object, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(*Object); ok {
			out = append(out, obj)
		}
	}
	return out
}

// MarshalJSON writes entries in order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	case *big.Int:
		if val == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(val).Float64()
		return f, true
	default:
		return 0, false
	}
}

// Float exposes the lenient numeric conversion used by Object.Number.
func Float(v any) (float64, bool) {
	return toFloat(v)
}
