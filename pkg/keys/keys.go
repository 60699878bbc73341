// Package keys builds and parses the physical keys that back collections.
//
// Every collection lives under a prefix of the single physical keyspace. A
// prefix is made of the collection path segments, each followed by Separator,
// and the physical key of an entry is the prefix immediately followed by the
// logical key:
//
//	first<SEP>inner1<SEP>b
//
// Separator is U+10FFFF, the largest Unicode scalar value. Its UTF-8 encoding
// (F4 8F BF BF) is the greatest valid UTF-8 sequence, so as long as names and
// keys are valid UTF-8 and never contain it, prefix+Separator is an exclusive
// upper bound for every key stored under prefix when keys are compared
// bytewise.
package keys

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Separator delimits path segments in a physical key.
const Separator = '\U0010FFFF'

// SeparatorString is Separator encoded as UTF-8.
const SeparatorString = string(Separator)

var separatorBytes = []byte(SeparatorString)

var (
	// ErrInvalidName is returned for collection or partition names that would break isolation
	ErrInvalidName = errors.New("invalid collection name")
	// ErrInvalidKey is returned for logical keys that would break isolation
	ErrInvalidKey = errors.New("invalid key")
)

// Compose returns the physical key for a logical key stored under prefix.
func Compose(prefix []byte, key string) []byte {
	physical := make([]byte, 0, len(prefix)+len(key))
	physical = append(physical, prefix...)
	return append(physical, key...)
}

// HasPrefix reports whether physical belongs to the range of prefix.
func HasPrefix(physical, prefix []byte) bool {
	return bytes.HasPrefix(physical, prefix)
}

// Strip removes prefix from physical. It returns false when physical does not
// start with prefix; callers are expected to check with HasPrefix first.
func Strip(prefix, physical []byte) (string, bool) {
	if !bytes.HasPrefix(physical, prefix) {
		return "", false
	}
	return string(physical[len(prefix):]), true
}

// UpperBound returns prefix+Separator, the exclusive supremum of all valid
// physical keys that start with prefix.
func UpperBound(prefix []byte) []byte {
	bound := make([]byte, 0, len(prefix)+len(separatorBytes))
	bound = append(bound, prefix...)
	return append(bound, separatorBytes...)
}

// ValidateName checks a collection or partition name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidName, name)
	}
	if strings.ContainsRune(name, Separator) {
		return fmt.Errorf("%w: %q contains the reserved separator", ErrInvalidName, name)
	}
	return nil
}

// ValidateKey checks a logical key. The empty key is allowed.
func ValidateKey(key string) error {
	if !utf8.ValidString(key) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidKey, key)
	}
	if strings.ContainsRune(key, Separator) {
		return fmt.Errorf("%w: %q contains the reserved separator", ErrInvalidKey, key)
	}
	return nil
}
