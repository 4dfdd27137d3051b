package crypto

import (
	"encoding/hex"
	"fmt"
)

// HandleSize is the byte length of a ciphertext handle.
const HandleSize = 32

// Handle is an opaque reference to an encrypted cell value. Handles are
// produced by the external encryption capability; the coordinator only
// stores, compares, and hashes them. The zero Handle is the deterministic
// "uninitialized" value used for board slots that were never submitted.
type Handle [HandleSize]byte

// ZeroHandle is the handle of a never-submitted board slot.
var ZeroHandle = Handle{}

// NewHandleFromBytes creates a Handle from a byte slice of exactly HandleSize bytes.
func NewHandleFromBytes(data []byte) (Handle, error) {
	var h Handle
	if len(data) != HandleSize {
		return h, fmt.Errorf("invalid handle length %d, want %d", len(data), HandleSize)
	}
	copy(h[:], data)
	return h, nil
}

// NewHandleFromString creates a Handle from a hex-encoded string.
func NewHandleFromString(data string) (Handle, error) {
	rawBytes, err := hex.DecodeString(data)
	if err != nil {
		return Handle{}, err
	}
	return NewHandleFromBytes(rawBytes)
}

// Bytes returns the handle as a byte slice.
func (h Handle) Bytes() []byte {
	return h[:]
}

// String returns the hex encoding of the handle.
func (h Handle) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the handle is the uninitialized value.
func (h Handle) IsZero() bool {
	return h == ZeroHandle
}

// MarshalText implements encoding.TextMarshaler so handles serialize as hex
// strings in JSON messages.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handle) UnmarshalText(text []byte) error {
	parsed, err := NewHandleFromString(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
