package key

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

// --- keystore 文件格式 --- //
// The client keeps its whole keychain in one JSON file. Key material is
// base64: ECDSA as SEC1/PKIX DER, BFV as lattigo binary.

type KeystoreJSON struct {
	Principal    uuid.UUID `json:"principal"`
	Name         string    `json:"name"`
	ECDSAPrivate string    `json:"ecdsa_privkey"`
	BFVPrivate   string    `json:"bfv_privkey"`
	BFVPublic    string    `json:"bfv_pubkey"`
}

// EncodeKeyChainToJSON serializes a full keychain for on-disk storage.
func EncodeKeyChainToJSON(principal uuid.UUID, name string, kc KeyChain) ([]byte, error) {
	eskDER, err := x509.MarshalECPrivateKey(kc.ECDSAKeyChain.ECDSAPrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "marshal ecdsa private key")
	}
	skBytes, err := kc.BFVKeyChain.BFVPrivateKey.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "marshal bfv private key")
	}
	pkBytes, err := kc.BFVKeyChain.BFVPublicKey.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "marshal bfv public key")
	}

	return json.MarshalIndent(KeystoreJSON{
		Principal:    principal,
		Name:         name,
		ECDSAPrivate: base64.RawStdEncoding.EncodeToString(eskDER),
		BFVPrivate:   base64.RawStdEncoding.EncodeToString(skBytes),
		BFVPublic:    base64.RawStdEncoding.EncodeToString(pkBytes),
	}, "", "  ")
}

// DecodeKeyChainFromJSON is the inverse of EncodeKeyChainToJSON.
func DecodeKeyChainFromJSON(data []byte) (principal uuid.UUID, name string, kc KeyChain, err error) {
	ks := new(KeystoreJSON)
	if err = json.Unmarshal(data, ks); err != nil {
		err = errors.Wrap(err, "unmarshal keystore")
		return
	}

	eskDER, err := base64.RawStdEncoding.DecodeString(ks.ECDSAPrivate)
	if err != nil {
		err = errors.Wrap(err, "decode ecdsa private key")
		return
	}
	esk, err := x509.ParseECPrivateKey(eskDER)
	if err != nil {
		err = errors.Wrap(err, "parse ecdsa private key")
		return
	}

	skBytes, err := base64.RawStdEncoding.DecodeString(ks.BFVPrivate)
	if err != nil {
		err = errors.Wrap(err, "decode bfv private key")
		return
	}
	sk := rlwe.NewSecretKey(params.Parameters)
	if err = sk.UnmarshalBinary(skBytes); err != nil {
		err = errors.Wrap(err, "parse bfv private key")
		return
	}

	pkBytes, err := base64.RawStdEncoding.DecodeString(ks.BFVPublic)
	if err != nil {
		err = errors.Wrap(err, "decode bfv public key")
		return
	}
	pk, err := UnmarshalBFVPublicKey(pkBytes)
	if err != nil {
		err = errors.Wrap(err, "parse bfv public key")
		return
	}

	principal = ks.Principal
	name = ks.Name
	kc = KeyChain{
		BFVKeyChain: BFVKeyChain{
			Identifier:    uuid.New(),
			BFVPrivateKey: sk,
			BFVPublicKey:  pk,
		},
		ECDSAKeyChain: ECDSAKeyChain{
			Identifier:      uuid.New(),
			ECDSAPrivateKey: esk,
			ECDSAPublicKey:  &esk.PublicKey,
		},
	}
	return
}

// SaveKeystore writes the keystore file with owner-only permissions.
func SaveKeystore(path string, principal uuid.UUID, name string, kc KeyChain) error {
	data, err := EncodeKeyChainToJSON(principal, name, kc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadKeystore reads a keystore file written by SaveKeystore.
func LoadKeystore(path string) (uuid.UUID, string, KeyChain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return uuid.UUID{}, "", KeyChain{}, errors.Wrap(err, "read keystore")
	}
	return DecodeKeyChainFromJSON(data)
}
