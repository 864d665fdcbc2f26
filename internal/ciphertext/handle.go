// Package ciphertext defines the opaque reference type used to pass
// encrypted values around without ever exposing a plaintext accessor.
package ciphertext

import (
	"github.com/google/uuid"
)

// Handle 是密文的不透明引用。
// A Handle names one encrypted value held by the engine's ciphertext store.
// Arithmetic on handles always yields fresh handles; the only way back to a
// plaintext is the access-control-gated decryption oracle.
type Handle uuid.UUID

// Zero is the absent handle.
var Zero = Handle(uuid.UUID{})

// NewHandle mints a fresh random handle.
func NewHandle() Handle {
	return Handle(uuid.New())
}

// ParseHandle parses the textual (uuid) form of a handle.
func ParseHandle(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Zero, err
	}
	return Handle(id), nil
}

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// IsZero reports whether the handle is the absent value.
func (h Handle) IsZero() bool {
	return h == Zero
}

func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Handle) UnmarshalText(data []byte) error {
	id, err := uuid.Parse(string(data))
	if err != nil {
		return err
	}
	*h = Handle(id)
	return nil
}
