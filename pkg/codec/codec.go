package codec

import (
	"encoding/json"
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec converts values of type V to and from bytes.
type Codec[V any] interface {
	Encode(value V) ([]byte, error)
	Decode(data []byte) (V, error)
}

var (
	// ErrSerialize matches every *SerializeError
	ErrSerialize = errors.New("serialize error")
	// ErrDeserialize matches every *DeserializeError
	ErrDeserialize = errors.New("deserialize error")
)

// SerializeError reports a value that could not be encoded.
type SerializeError struct {
	Err error
}

func (e *SerializeError) Error() string {
	return "failed to serialize value: " + e.Err.Error()
}

func (e *SerializeError) Unwrap() []error {
	return []error{ErrSerialize, e.Err}
}

// DeserializeError reports stored bytes that could not be decoded.
type DeserializeError struct {
	Err error
}

func (e *DeserializeError) Error() string {
	return "failed to deserialize value: " + e.Err.Error()
}

func (e *DeserializeError) Unwrap() []error {
	return []error{ErrDeserialize, e.Err}
}

// Msgpack encodes values as MessagePack.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(value V) ([]byte, error) {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return nil, &SerializeError{Err: err}
	}
	return data, nil
}

func (Msgpack[V]) Decode(data []byte) (V, error) {
	var value V
	if err := msgpack.Unmarshal(data, &value); err != nil {
		var zero V
		return zero, &DeserializeError{Err: err}
	}
	return value, nil
}

// JSON encodes values with encoding/json.
type JSON[V any] struct{}

func (JSON[V]) Encode(value V) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, &SerializeError{Err: err}
	}
	return data, nil
}

func (JSON[V]) Decode(data []byte) (V, error) {
	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		var zero V
		return zero, &DeserializeError{Err: err}
	}
	return value, nil
}

// Raw stores byte slices as they are.
type Raw struct{}

func (Raw) Encode(value []byte) ([]byte, error) {
	return value, nil
}

func (Raw) Decode(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Default returns the codec used when none is configured: MessagePack in a
// checksummed frame.
func Default[V any]() Codec[V] {
	return NewFramed[V](Msgpack[V]{}, FormatMsgpack)
}
