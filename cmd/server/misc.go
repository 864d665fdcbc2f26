package main

import (
	"crypto/ecdsa"

	"github.com/veilart/veilart/internal/key"
)

func keyFromPKIX(pkix []byte) (*ecdsa.PublicKey, error) {
	return key.UnmarshalECDSAPublicKey(pkix)
}
