package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
)

// Format identifies the payload codec inside a frame.
type Format uint8

const (
	FormatRaw Format = iota
	FormatMsgpack
	FormatJSON
	FormatProto
	FormatSealed
)

const frameHeaderSize = 9

var (
	// ErrChecksum reports a frame whose CRC32 does not match its contents
	ErrChecksum = errors.New("frame checksum mismatch")
	// ErrShortFrame reports a frame truncated below its declared size
	ErrShortFrame = errors.New("frame too short")
	// ErrFormat reports a frame written by a different payload codec
	ErrFormat = errors.New("unexpected frame format")
)

// Framed wraps a codec in a checksummed frame.
type Framed[V any] struct {
	inner  Codec[V]
	format Format
}

// NewFramed returns a Framed codec that tags frames with format.
func NewFramed[V any](inner Codec[V], format Format) *Framed[V] {
	return &Framed[V]{inner: inner, format: format}
}

// Encode serializes value and frames the payload.
// Format: [CRC32(4)][Format(1)][Length(4)][Payload]
func (c *Framed[V]) Encode(value V) ([]byte, error) {
	payload, err := c.inner.Encode(value)
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, &SerializeError{Err: fmt.Errorf("payload too large: %d bytes", len(payload))}
	}

	buf := make([]byte, frameHeaderSize+len(payload))
	buf[4] = byte(c.format)
	binary.LittleEndian.PutUint32(buf[5:], uint32(len(payload)))
	copy(buf[frameHeaderSize:], payload)
	binary.LittleEndian.PutUint32(buf[0:], crc32.ChecksumIEEE(buf[4:]))

	return buf, nil
}

// Decode validates the frame and decodes its payload.
func (c *Framed[V]) Decode(data []byte) (V, error) {
	var zero V

	payload, format, err := Unframe(data)
	if err != nil {
		return zero, &DeserializeError{Err: err}
	}
	if format != c.format {
		return zero, &DeserializeError{Err: fmt.Errorf("%w: got %d, want %d", ErrFormat, format, c.format)}
	}

	return c.inner.Decode(payload)
}

// Unframe validates a frame and returns its payload and format. The payload
// aliases data.
func Unframe(data []byte) ([]byte, Format, error) {
	if len(data) < frameHeaderSize {
		return nil, 0, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}

	size := binary.LittleEndian.Uint32(data[5:9])
	if uint64(len(data)) != frameHeaderSize+uint64(size) {
		return nil, 0, fmt.Errorf("%w: have %d bytes, header declares %d", ErrShortFrame, len(data), frameHeaderSize+uint64(size))
	}

	want := binary.LittleEndian.Uint32(data[0:4])
	if got := crc32.ChecksumIEEE(data[4:]); got != want {
		return nil, 0, fmt.Errorf("%w: %d != %d", ErrChecksum, got, want)
	}

	return data[frameHeaderSize:], Format(data[4]), nil
}
