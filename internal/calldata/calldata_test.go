package calldata

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestEncodeKnownBytes(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected []byte
	}{
		{name: "null", value: nil, expected: []byte{0x00}},
		{name: "true", value: true, expected: []byte{0x10}},
		{name: "false", value: false, expected: []byte{0x08}},
		{name: "small int", value: 1, expected: []byte{0x09}},
		{name: "multi byte int", value: 300, expected: []byte{0xe1, 0x12}},
		{name: "minus one", value: -1, expected: []byte{0x02}},
		{name: "string", value: "hi", expected: []byte{0x14, 'h', 'i'}},
		{name: "map", value: map[string]any{"a": 1}, expected: []byte{0x0e, 0x01, 'a', 0x09}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.value)
			if err != nil {
				t.Fatalf("Encode returned error: %v", err)
			}
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("Expected %x, got %x", tt.expected, got)
			}
		})
	}
}

func TestDecodeContractPage(t *testing.T) {
	record := NewMap()
	record.Set("name", "Bife de chorizo")
	record.Set("score", big.NewInt(870))
	record.Set("rank", 1)

	page := NewMap()
	page.Set("records", []any{record})
	page.Set("total_count", 25)
	page.Set("has_more", true)

	data, err := Encode(page)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}

	m, ok := decoded.(*Map)
	if !ok {
		t.Fatalf("Expected *Map, got %T", decoded)
	}

	// Keys are written sorted, so the decoded order is sorted too.
	keys := m.Keys()
	expectedKeys := []string{"has_more", "records", "total_count"}
	if len(keys) != len(expectedKeys) {
		t.Fatalf("Expected keys %v, got %v", expectedKeys, keys)
	}
	for i := range keys {
		if keys[i] != expectedKeys[i] {
			t.Errorf("Expected key %s at %d, got %s", expectedKeys[i], i, keys[i])
		}
	}

	total, _ := m.Get("total_count")
	if n, ok := total.(*big.Int); !ok || n.Int64() != 25 {
		t.Errorf("Expected total_count=25 as *big.Int, got %#v", total)
	}

	recs, _ := m.Get("records")
	list, ok := recs.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("Expected one record, got %#v", recs)
	}
	first := list[0].(*Map)
	name, _ := first.Get("name")
	if name != "Bife de chorizo" {
		t.Errorf("Expected name Bife de chorizo, got %v", name)
	}
}

func TestDecodeAddressAndNegative(t *testing.T) {
	addr := common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	data, err := Encode([]any{addr, big.NewInt(-500)})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}

	items := decoded.([]any)
	if items[0].(common.Address) != addr {
		t.Errorf("Expected address %s, got %v", addr.Hex(), items[0])
	}
	if items[1].(*big.Int).Int64() != -500 {
		t.Errorf("Expected -500, got %v", items[1])
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		target error
	}{
		{name: "empty input", data: nil, target: ErrTruncated},
		{name: "string longer than input", data: []byte{0x2c, 'a'}, target: ErrTruncated},
		{name: "unterminated uleb", data: []byte{0x81}, target: ErrTruncated},
		{name: "trailing bytes", data: []byte{0x00, 0x00}, target: ErrTrailingBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, tt.target) {
				t.Errorf("Expected %v, got %v", tt.target, err)
			}
		})
	}

	if _, err := Decode([]byte{0x14, 0xff, 0xfe}); err == nil {
		t.Error("Expected error for invalid utf-8 string")
	}
}

func TestMethodCall(t *testing.T) {
	call := MethodCall("get_analysis_by_category", "steak", 0, 10)
	method, _ := call.Get("method")
	if method != "get_analysis_by_category" {
		t.Errorf("Expected method name, got %v", method)
	}
	args, _ := call.Get("args")
	if len(args.([]any)) != 3 {
		t.Errorf("Expected 3 args, got %v", args)
	}

	if _, err := Encode(call); err != nil {
		t.Errorf("Encode returned error: %v", err)
	}
}
