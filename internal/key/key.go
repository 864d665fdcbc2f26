// Package key holds the cryptographic key material used by players, the
// administrator and the decryption oracle: a BFV key pair for encrypted
// years/guesses and an ECDSA key pair for binding signatures.
package key

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/tuneinsight/lattigo/v4/bfv"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

var (
	// 预设的 BFV 安全参数，t = 65537 覆盖 16 位值域
	params, _ = bfv.NewParametersFromLiteral(bfv.PN12QP109)
)

// SignatureCurve is the curve used for binding signatures in the scheme.
var SignatureCurve = elliptic.P256()

type BFVKeyChain struct {
	Identifier    uuid.UUID
	BFVPrivateKey *rlwe.SecretKey
	BFVPublicKey  *rlwe.PublicKey
}

type ECDSAKeyChain struct {
	Identifier      uuid.UUID
	ECDSAPrivateKey *ecdsa.PrivateKey
	ECDSAPublicKey  *ecdsa.PublicKey
}

// KeyChain bundles the two key families owned by one principal.
type KeyChain struct {
	BFVKeyChain   BFVKeyChain
	ECDSAKeyChain ECDSAKeyChain
}

// GenECDSAKeyChain generates a fresh signing key pair.
func GenECDSAKeyChain() (ECDSAKeyChain, error) {
	sk, err := ecdsa.GenerateKey(SignatureCurve, rand.Reader)
	if err != nil {
		return ECDSAKeyChain{}, err
	}
	return ECDSAKeyChain{
		Identifier:      uuid.New(),
		ECDSAPrivateKey: sk,
		ECDSAPublicKey:  &sk.PublicKey,
	}, nil
}

// GenBFVKeyChain generates a fresh BFV key pair under the scheme parameters.
func GenBFVKeyChain() BFVKeyChain {
	kgen := bfv.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPair()
	return BFVKeyChain{
		Identifier:    uuid.New(),
		BFVPrivateKey: sk,
		BFVPublicKey:  pk,
	}
}

// GenKeyChain generates both key families for a new principal.
func GenKeyChain() (KeyChain, error) {
	ecdsaChain, err := GenECDSAKeyChain()
	if err != nil {
		return KeyChain{}, err
	}
	return KeyChain{
		BFVKeyChain:   GenBFVKeyChain(),
		ECDSAKeyChain: ecdsaChain,
	}, nil
}
