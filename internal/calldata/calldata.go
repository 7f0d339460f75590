package calldata

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

// Value kinds, stored in the low three bits of every header.
const (
	typeSpecial = 0
	typePosInt  = 1
	typeNegInt  = 2
	typeBytes   = 3
	typeStr     = 4
	typeArr     = 5
	typeMap     = 6
)

const (
	specialNull  = 0
	specialFalse = 1
	specialTrue  = 2
	specialAddr  = 3
)

var (
	ErrTruncated     = errors.New("calldata: unexpected end of input")
	ErrTrailingBytes = errors.New("calldata: trailing bytes after value")
)

// Map is a string-keyed mapping that remembers insertion order.
// Decoded maps keep the order the entries had on the wire.
type Map struct {
	keys   []string
	values map[string]any
}

func NewMap() *Map {
	return &Map{values: make(map[string]any)}
}

// Set adds or replaces an entry. Replacing keeps the original position.
func (m *Map) Set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *Map) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Range calls fn for each entry in order until fn returns false.
func (m *Map) Range(fn func(key string, value any) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// MethodCall builds the calldata object for a contract method invocation.
func MethodCall(method string, args ...any) *Map {
	call := NewMap()
	call.Set("method", method)
	if args == nil {
		args = []any{}
	}
	call.Set("args", args)
	return call
}

// Encode serializes v. Supported inputs are nil, bool, Go integers, *big.Int,
// string, []byte, common.Address, []any, *Map and map[string]any.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		writeHeader(buf, big.NewInt(specialNull), typeSpecial)
	case bool:
		if val {
			writeHeader(buf, big.NewInt(specialTrue), typeSpecial)
		} else {
			writeHeader(buf, big.NewInt(specialFalse), typeSpecial)
		}
	case int:
		encodeInt(buf, big.NewInt(int64(val)))
	case int32:
		encodeInt(buf, big.NewInt(int64(val)))
	case int64:
		encodeInt(buf, big.NewInt(val))
	case uint:
		encodeInt(buf, new(big.Int).SetUint64(uint64(val)))
	case uint32:
		encodeInt(buf, new(big.Int).SetUint64(uint64(val)))
	case uint64:
		encodeInt(buf, new(big.Int).SetUint64(val))
	case *big.Int:
		if val == nil {
			writeHeader(buf, big.NewInt(specialNull), typeSpecial)
			return nil
		}
		encodeInt(buf, val)
	case string:
		writeHeader(buf, big.NewInt(int64(len(val))), typeStr)
		buf.WriteString(val)
	case []byte:
		writeHeader(buf, big.NewInt(int64(len(val))), typeBytes)
		buf.Write(val)
	case common.Address:
		writeHeader(buf, big.NewInt(specialAddr), typeSpecial)
		buf.Write(val.Bytes())
	case []any:
		writeHeader(buf, big.NewInt(int64(len(val))), typeArr)
		for i, item := range val {
			if err := encodeValue(buf, item); err != nil {
				return fmt.Errorf("array element %d: %w", i, err)
			}
		}
	case []string:
		writeHeader(buf, big.NewInt(int64(len(val))), typeArr)
		for _, item := range val {
			writeHeader(buf, big.NewInt(int64(len(item))), typeStr)
			buf.WriteString(item)
		}
	case *Map:
		if val == nil {
			writeHeader(buf, big.NewInt(specialNull), typeSpecial)
			return nil
		}
		return encodeEntries(buf, val.values)
	case map[string]any:
		return encodeEntries(buf, val)
	default:
		return fmt.Errorf("calldata: unsupported type %T", v)
	}
	return nil
}

func encodeInt(buf *bytes.Buffer, n *big.Int) {
	if n.Sign() >= 0 {
		writeHeader(buf, n, typePosInt)
		return
	}
	// -n - 1
	stored := new(big.Int).Neg(n)
	stored.Sub(stored, big.NewInt(1))
	writeHeader(buf, stored, typeNegInt)
}

func encodeEntries(buf *bytes.Buffer, entries map[string]any) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	writeHeader(buf, big.NewInt(int64(len(keys))), typeMap)
	for _, k := range keys {
		writeULEB(buf, big.NewInt(int64(len(k))))
		buf.WriteString(k)
		if err := encodeValue(buf, entries[k]); err != nil {
			return fmt.Errorf("map key %q: %w", k, err)
		}
	}
	return nil
}

func writeHeader(buf *bytes.Buffer, n *big.Int, typ int64) {
	h := new(big.Int).Lsh(n, 3)
	h.Or(h, big.NewInt(typ))
	writeULEB(buf, h)
}

func writeULEB(buf *bytes.Buffer, n *big.Int) {
	v := new(big.Int).Set(n)
	mask := big.NewInt(0x7f)
	for {
		b := byte(new(big.Int).And(v, mask).Uint64())
		v.Rsh(v, 7)
		if v.Sign() == 0 {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}

// Decode parses a single value that must span the whole input.
func Decode(data []byte) (any, error) {
	d := &decoder{buf: data}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.buf) {
		return nil, fmt.Errorf("%w: %d of %d consumed", ErrTrailingBytes, d.pos, len(d.buf))
	}
	return v, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) uleb() (*big.Int, error) {
	result := new(big.Int)
	var shift uint
	for {
		if d.pos >= len(d.buf) {
			return nil, ErrTruncated
		}
		b := d.buf[d.pos]
		d.pos++
		chunk := new(big.Int).SetUint64(uint64(b & 0x7f))
		result.Or(result, chunk.Lsh(chunk, shift))
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// length validates that n bytes or items can still be present in the input.
func (d *decoder) length(n *big.Int) (int, error) {
	remaining := len(d.buf) - d.pos
	if !n.IsInt64() || n.Int64() > int64(remaining) {
		return 0, ErrTruncated
	}
	return int(n.Int64()), nil
}

func (d *decoder) take(n int) []byte {
	out := d.buf[d.pos : d.pos+n]
	d.pos += n
	return out
}

func (d *decoder) value() (any, error) {
	h, err := d.uleb()
	if err != nil {
		return nil, err
	}
	typ := new(big.Int).And(h, big.NewInt(7)).Int64()
	n := new(big.Int).Rsh(h, 3)

	switch typ {
	case typeSpecial:
		if !n.IsInt64() {
			return nil, fmt.Errorf("calldata: unknown special value")
		}
		switch n.Int64() {
		case specialNull:
			return nil, nil
		case specialFalse:
			return false, nil
		case specialTrue:
			return true, nil
		case specialAddr:
			if len(d.buf)-d.pos < common.AddressLength {
				return nil, ErrTruncated
			}
			return common.BytesToAddress(d.take(common.AddressLength)), nil
		default:
			return nil, fmt.Errorf("calldata: unknown special value %d", n.Int64())
		}
	case typePosInt:
		return n, nil
	case typeNegInt:
		n.Add(n, big.NewInt(1))
		return n.Neg(n), nil
	case typeBytes:
		size, err := d.length(n)
		if err != nil {
			return nil, err
		}
		out := make([]byte, size)
		copy(out, d.take(size))
		return out, nil
	case typeStr:
		size, err := d.length(n)
		if err != nil {
			return nil, err
		}
		raw := d.take(size)
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("calldata: invalid utf-8 in string at offset %d", d.pos-size)
		}
		return string(raw), nil
	case typeArr:
		count, err := d.length(n)
		if err != nil {
			return nil, err
		}
		items := make([]any, 0, count)
		for i := 0; i < count; i++ {
			item, err := d.value()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	case typeMap:
		count, err := d.length(n)
		if err != nil {
			return nil, err
		}
		m := NewMap()
		for i := 0; i < count; i++ {
			keyLen, err := d.uleb()
			if err != nil {
				return nil, err
			}
			size, err := d.length(keyLen)
			if err != nil {
				return nil, err
			}
			key := string(d.take(size))
			val, err := d.value()
			if err != nil {
				return nil, fmt.Errorf("map key %q: %w", key, err)
			}
			m.Set(key, val)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("calldata: unknown type tag %d", typ)
	}
}
