package key

import (
	"crypto/ecdsa"
	"crypto/x509"
	"fmt"

	"github.com/tuneinsight/lattigo/v4/bfv"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

// BFVPayload covers every lattigo object we move as bytes.
type BFVPayload interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

func MarshalECDSAPublicKey(pk *ecdsa.PublicKey) []byte {
	data, _ := x509.MarshalPKIXPublicKey(pk)
	return data
}

func UnmarshalECDSAPublicKey(data []byte) (pk *ecdsa.PublicKey, err error) {
	parsed, err := x509.ParsePKIXPublicKey(data)
	if err != nil {
		return
	}
	switch v := parsed.(type) {
	case *ecdsa.PublicKey:
		return v, nil
	default:
		return nil, fmt.Errorf("not an ecdsa public key, got %T", v)
	}
}

func MarshalBFVPayload(p BFVPayload) []byte {
	data, _ := p.MarshalBinary()
	return data
}

func UnmarshalBFVPublicKey(data []byte) (pk *rlwe.PublicKey, err error) {
	pk = rlwe.NewPublicKey(params.Parameters)
	err = pk.UnmarshalBinary(data)
	return
}

// UnmarshalBFVCiphertext rebuilds a degree-1 ciphertext at max level from its
// binary form.
func UnmarshalBFVCiphertext(data []byte) (ct *rlwe.Ciphertext, err error) {
	ct = bfv.NewCiphertext(params, 1, params.MaxLevel())
	err = ct.UnmarshalBinary(data)
	return
}
