// Package codec serializes the values stored in collections.
//
// A Codec[V] turns a value into bytes and back. The package ships payload
// codecs for MessagePack (the default, a self-describing binary format), JSON
// and protobuf, plus two wrappers:
//
//   - Framed adds an integrity frame so that corrupted bytes are reported as a
//     decode failure instead of silently decoding into a wrong value.
//   - Sealed encrypts the payload with XChaCha20-Poly1305.
//
// # Frame Format
//
//	[CRC32(4)][Format(1)][Length(4)][Payload]
//
// Fields:
//   - CRC32: IEEE checksum over Format, Length and Payload (little-endian)
//   - Format: identifies the payload codec (see Format constants)
//   - Length: payload length in bytes (little-endian)
//   - Payload: bytes produced by the wrapped codec
//
// The total frame size is 9 bytes (header) + len(payload).
//
// # Error Handling
//
// Encoding failures are reported as *SerializeError and decoding failures as
// *DeserializeError. Both match their sentinel with errors.Is:
//
//	if errors.Is(err, codec.ErrDeserialize) {
//	    // stored bytes could not be decoded
//	}
//
// # Thread Safety
//
// All codecs in this package are stateless or immutable after construction
// and are safe for concurrent use.
package codec
