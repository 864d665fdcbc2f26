package fhe

import (
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

// oracleKeystoreJSON is the on-disk form of the oracle key set. Losing it
// orphans every stored ciphertext, so the server persists it on first start.
type oracleKeystoreJSON struct {
	SecretKey          string `json:"bfv_privkey"`
	PublicKey          string `json:"bfv_pubkey"`
	RelinearizationKey string `json:"bfv_rlk"`
}

// SaveOracleKeys writes the engine's key set with owner-only permissions.
func (e *Engine) SaveOracleKeys(path string) error {
	skBytes, err := e.sk.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "marshal secret key")
	}
	pkBytes, err := e.pk.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "marshal public key")
	}
	rlkBytes, err := e.rlk.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "marshal relinearization key")
	}

	data, err := json.MarshalIndent(oracleKeystoreJSON{
		SecretKey:          base64.RawStdEncoding.EncodeToString(skBytes),
		PublicKey:          base64.RawStdEncoding.EncodeToString(pkBytes),
		RelinearizationKey: base64.RawStdEncoding.EncodeToString(rlkBytes),
	}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal keystore")
	}
	return os.WriteFile(path, data, 0600)
}

// LoadOracleEngine restores an engine from a keystore written by
// SaveOracleKeys.
func LoadOracleEngine(store Store, path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read oracle keystore")
	}
	ks := new(oracleKeystoreJSON)
	if err := json.Unmarshal(data, ks); err != nil {
		return nil, errors.Wrap(err, "unmarshal oracle keystore")
	}

	params := Params()

	skBytes, err := base64.RawStdEncoding.DecodeString(ks.SecretKey)
	if err != nil {
		return nil, errors.Wrap(err, "decode secret key")
	}
	sk := rlwe.NewSecretKey(params.Parameters)
	if err := sk.UnmarshalBinary(skBytes); err != nil {
		return nil, errors.Wrap(err, "parse secret key")
	}

	pkBytes, err := base64.RawStdEncoding.DecodeString(ks.PublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "decode public key")
	}
	pk := rlwe.NewPublicKey(params.Parameters)
	if err := pk.UnmarshalBinary(pkBytes); err != nil {
		return nil, errors.Wrap(err, "parse public key")
	}

	rlkBytes, err := base64.RawStdEncoding.DecodeString(ks.RelinearizationKey)
	if err != nil {
		return nil, errors.Wrap(err, "decode relinearization key")
	}
	rlk := rlwe.NewRelinearizationKey(params.Parameters, 1)
	if err := rlk.UnmarshalBinary(rlkBytes); err != nil {
		return nil, errors.Wrap(err, "parse relinearization key")
	}

	return NewEngineFromKeys(store, sk, pk, rlk), nil
}
