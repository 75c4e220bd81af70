// Package codec normalizes the encrypted handle and proof encodings returned
// by the encryption provider into the 0x-prefixed lowercase hex accepted by
// the chain-write path.
package codec

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedEncoding means the provider produced a value in none of the
// known shapes. It is an integration defect, not a user error.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// HandleSize is the width of an encrypted value handle (bytes32).
const HandleSize = 32

type Kind uint8

const (
	kindUnset Kind = iota
	KindHex
	KindRaw
	KindWrapped
)

func (k Kind) String() string {
	switch k {
	case KindHex:
		return "hex"
	case KindRaw:
		return "raw"
	case KindWrapped:
		return "wrapped"
	}
	return "unset"
}

// Wrapped is the object form some provider builds return: bytes under a
// "bytes" field.
type Wrapped struct {
	Bytes []byte
}

// Bytes is a tagged union over the three encodings a provider may return.
// The zero value is unset and fails to normalize.
type Bytes struct {
	kind Kind
	hex  string
	raw  []byte
}

func FromHex(s string) Bytes      { return Bytes{kind: KindHex, hex: s} }
func FromRaw(b []byte) Bytes      { return Bytes{kind: KindRaw, raw: b} }
func FromWrapped(w Wrapped) Bytes { return Bytes{kind: KindWrapped, raw: w.Bytes} }

func (b Bytes) Kind() Kind { return b.kind }

// decode returns the underlying bytes for every supported variant.
func (b Bytes) decode() ([]byte, error) {
	switch b.kind {
	case KindHex:
		s := strings.TrimSpace(b.hex)
		if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
			s = s[2:]
		}
		out, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid hex %q", ErrUnsupportedEncoding, b.hex)
		}
		return out, nil
	case KindRaw, KindWrapped:
		return b.raw, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, b.kind)
}

// NormalizeProof returns the proof as 0x-prefixed lowercase hex.
func NormalizeProof(b Bytes) (string, error) {
	raw, err := b.decode()
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(raw), nil
}

// FormatHandle returns the handle as 0x-prefixed lowercase hex. Handles must
// be exactly HandleSize bytes.
func FormatHandle(b Bytes) (string, error) {
	raw, err := b.decode()
	if err != nil {
		return "", err
	}
	if len(raw) != HandleSize {
		return "", fmt.Errorf("%w: handle is %d bytes, want %d", ErrUnsupportedEncoding, len(raw), HandleSize)
	}
	return "0x" + hex.EncodeToString(raw), nil
}

// UnmarshalJSON picks the variant from the JSON token: a string is hex, an
// array of numbers is raw bytes, an object with "bytes" is wrapped.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = Bytes{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = FromHex(s)
		return nil
	case '[':
		raw, err := byteArray(data)
		if err != nil {
			return err
		}
		*b = FromRaw(raw)
		return nil
	case '{':
		var obj struct {
			Bytes json.RawMessage `json:"bytes"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if len(obj.Bytes) == 0 {
			return fmt.Errorf("%w: object without bytes field", ErrUnsupportedEncoding)
		}
		var inner Bytes
		if err := inner.UnmarshalJSON(obj.Bytes); err != nil {
			return err
		}
		raw, err := inner.decode()
		if err != nil {
			return err
		}
		*b = FromWrapped(Wrapped{Bytes: raw})
		return nil
	}
	return fmt.Errorf("%w: unexpected json %q", ErrUnsupportedEncoding, string(data))
}

func byteArray(data []byte) ([]byte, error) {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEncoding, err)
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range", ErrUnsupportedEncoding, n)
		}
		out[i] = byte(n)
	}
	return out, nil
}
