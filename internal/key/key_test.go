package key_test

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/tuneinsight/lattigo/v4/bfv"

	"github.com/veilart/veilart/internal/key"
)

func TestKeystoreRoundTrip(t *testing.T) {
	kc, err := key.GenKeyChain()
	if err != nil {
		t.Fatal(err)
	}
	principal := uuid.New()
	path := filepath.Join(t.TempDir(), "keystore.json")

	if err := key.SaveKeystore(path, principal, "alice", kc); err != nil {
		t.Fatal(err)
	}
	gotPrincipal, gotName, gotKC, err := key.LoadKeystore(path)
	if err != nil {
		t.Fatal(err)
	}
	if gotPrincipal != principal {
		t.Errorf("principal = %s, expected %s", gotPrincipal, principal)
	}
	if gotName != "alice" {
		t.Errorf("name = %q, expected %q", gotName, "alice")
	}

	// The reloaded ECDSA key must still sign for the original public key.
	digest := sha256.Sum256([]byte("binding"))
	sig, err := ecdsa.SignASN1(rand.Reader, gotKC.ECDSAKeyChain.ECDSAPrivateKey, digest[:])
	if err != nil {
		t.Fatal(err)
	}
	if !ecdsa.VerifyASN1(kc.ECDSAKeyChain.ECDSAPublicKey, digest[:], sig) {
		t.Error("signature from reloaded key does not verify against original public key")
	}

	// The reloaded BFV secret key must still decrypt what the original
	// public key encrypted.
	params, err := bfv.NewParametersFromLiteral(bfv.PN12QP109)
	if err != nil {
		t.Fatal(err)
	}
	encoder := bfv.NewEncoder(params)
	pt := encoder.EncodeNew([]uint64{1889}, params.MaxLevel())
	ct := bfv.NewEncryptor(params, kc.BFVKeyChain.BFVPublicKey).EncryptNew(pt)
	decrypted := bfv.NewDecryptor(params, gotKC.BFVKeyChain.BFVPrivateKey).DecryptNew(ct)
	if got := encoder.DecodeUintNew(decrypted)[0]; got != 1889 {
		t.Errorf("decrypted %d, expected 1889", got)
	}
}

func TestLoadKeystoreMissingFile(t *testing.T) {
	if _, _, _, err := key.LoadKeystore(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing keystore")
	}
}

func TestECDSAPublicKeyMarshalRoundTrip(t *testing.T) {
	kc, err := key.GenECDSAKeyChain()
	if err != nil {
		t.Fatal(err)
	}
	data := key.MarshalECDSAPublicKey(kc.ECDSAPublicKey)
	pk, err := key.UnmarshalECDSAPublicKey(data)
	if err != nil {
		t.Fatal(err)
	}
	if !pk.Equal(kc.ECDSAPublicKey) {
		t.Error("public key changed across marshal round trip")
	}

	if _, err := key.UnmarshalECDSAPublicKey([]byte("garbage")); err == nil {
		t.Error("expected error for malformed key bytes")
	}
}
