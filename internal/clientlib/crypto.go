// crypto.go: encryption and signing on the player side.

package clientlib

import (
	"github.com/pkg/errors"

	"github.com/veilart/veilart/internal/fhe"
)

// EncryptValue encrypts a year or guess under the service key and signs the
// binding proof tying the ciphertext to this player. Returns the raw
// ciphertext and the proof, both ready for submission.
func (p *Player) EncryptValue(value uint64) (raw, proof []byte, err error) {
	if p.ServicePublicKey == nil {
		return nil, nil, errors.New("service public key not fetched")
	}
	if value > 65535 {
		return nil, nil, errors.Errorf("value %d exceeds the 16-bit domain", value)
	}

	raw, err = fhe.Encrypt(value, fhe.Params(), p.ServicePublicKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encrypt value")
	}
	proof, err = fhe.SignBinding(raw, p.Principal, p.KeyChain.ECDSAKeyChain.ECDSAPrivateKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sign binding proof")
	}
	return raw, proof, nil
}

// SignDecryptRequest authorizes a decryption request for the given handle
// text, issued at the given unix time.
func (p *Player) SignDecryptRequest(handleText string, issuedAt int64) ([]byte, error) {
	return fhe.SignDecryptRequest(handleText, issuedAt, p.Principal, p.KeyChain.ECDSAKeyChain.ECDSAPrivateKey)
}
