//go:build fuzz
// +build fuzz

package codec

import (
	"bytes"
	"testing"
)

// FuzzFramed_RoundTrip tests encode/decode round-trip with random inputs
func FuzzFramed_RoundTrip(f *testing.F) {
	c := NewFramed[[]byte](Raw{}, FormatRaw)

	f.Add([]byte(""))
	f.Add([]byte("value"))
	f.Add([]byte{0x00, 0x01, 0x02})

	f.Fuzz(func(t *testing.T, value []byte) {
		if len(value) > 100000 {
			t.Skip("Input too large for fuzz test")
		}

		encoded, err := c.Encode(value)
		if err != nil {
			t.Fatalf("Encode failed for value=%q: %v", value, err)
		}

		decoded, err := c.Decode(encoded)
		if err != nil {
			t.Fatalf("Decode failed: len(value)=%d %v", len(value), err)
		}

		if !bytes.Equal(decoded, value) {
			t.Errorf("Value mismatch: got %q, want %q", decoded, value)
		}
	})
}

// FuzzFramed_Decode feeds arbitrary bytes to the decoder; it must never panic
func FuzzFramed_Decode(f *testing.F) {
	c := NewFramed[[]byte](Raw{}, FormatRaw)

	f.Add([]byte{})
	f.Add(bytes.Repeat([]byte{0xFF}, 9))

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = c.Decode(data)
	})
}
