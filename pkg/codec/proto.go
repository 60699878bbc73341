package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

// Proto encodes protobuf messages. New must return a fresh, non-nil message
// to decode into.
type Proto[V proto.Message] struct {
	New func() V
}

func (c Proto[V]) Encode(value V) ([]byte, error) {
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(value)
	if err != nil {
		return nil, &SerializeError{Err: err}
	}
	return data, nil
}

func (c Proto[V]) Decode(data []byte) (V, error) {
	var zero V
	if c.New == nil {
		return zero, &DeserializeError{Err: errors.New("proto codec has no message constructor")}
	}

	msg := c.New()
	if err := proto.Unmarshal(data, msg); err != nil {
		return zero, &DeserializeError{Err: err}
	}
	return msg, nil
}
