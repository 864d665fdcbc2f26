package fhe

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"

	"github.com/google/uuid"
)

// bindingTag domain-separates binding signatures from any other ECDSA use of
// the same key.
const bindingTag = "veilart-ciphertext-v1"

// bindingDigest hashes tag || submitter || raw ciphertext. Tying the
// submitter into the digest stops one player replaying another player's
// ciphertext as their own.
func bindingDigest(raw []byte, submitter uuid.UUID) [32]byte {
	msg := make([]byte, 0, len(bindingTag)+len(submitter)+len(raw))
	msg = append(msg, bindingTag...)
	msg = append(msg, submitter[:]...)
	msg = append(msg, raw...)
	return sha256.Sum256(msg)
}

// SignBinding produces the proof a submitter attaches to a raw ciphertext.
func SignBinding(raw []byte, submitter uuid.UUID, sk *ecdsa.PrivateKey) ([]byte, error) {
	digest := bindingDigest(raw, submitter)
	return ecdsa.SignASN1(rand.Reader, sk, digest[:])
}

// VerifyBinding checks a proof produced by SignBinding.
func VerifyBinding(raw, proof []byte, submitter uuid.UUID, pk *ecdsa.PublicKey) bool {
	digest := bindingDigest(raw, submitter)
	return ecdsa.VerifyASN1(pk, digest[:], proof)
}

// decryptTag domain-separates decryption-request signatures from ciphertext
// binding proofs.
const decryptTag = "veilart-decrypt-v1"

// decryptDigest hashes tag || requester || issuedAt || handle text. Covering
// the issue time lets the server expire a captured request instead of serving
// its replay forever.
func decryptDigest(handleText string, issuedAt int64, requester uuid.UUID) [32]byte {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(issuedAt))
	msg := make([]byte, 0, len(decryptTag)+len(requester)+len(ts)+len(handleText))
	msg = append(msg, decryptTag...)
	msg = append(msg, requester[:]...)
	msg = append(msg, ts[:]...)
	msg = append(msg, handleText...)
	return sha256.Sum256(msg)
}

// SignDecryptRequest authorizes a decryption request for handleText issued at
// the given unix time.
func SignDecryptRequest(handleText string, issuedAt int64, requester uuid.UUID, sk *ecdsa.PrivateKey) ([]byte, error) {
	digest := decryptDigest(handleText, issuedAt, requester)
	return ecdsa.SignASN1(rand.Reader, sk, digest[:])
}

// VerifyDecryptRequest checks a signature produced by SignDecryptRequest.
func VerifyDecryptRequest(handleText string, issuedAt int64, sig []byte, requester uuid.UUID, pk *ecdsa.PublicKey) bool {
	digest := decryptDigest(handleText, issuedAt, requester)
	return ecdsa.VerifyASN1(pk, digest[:], sig)
}
