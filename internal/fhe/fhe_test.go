package fhe_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/veilart/veilart/internal/ciphertext"
	"github.com/veilart/veilart/internal/db"
	"github.com/veilart/veilart/internal/fhe"
	"github.com/veilart/veilart/internal/key"
)

// testPrincipal is one registered participant with a full keychain.
type testPrincipal struct {
	id uuid.UUID
	kc key.KeyChain
}

func newTestEngine(t testing.TB) (*fhe.Engine, *db.Memory) {
	t.Helper()
	store := db.NewMemory()
	return fhe.NewEngine(store), store
}

func newTestPrincipal(t testing.TB, engine *fhe.Engine) testPrincipal {
	t.Helper()
	kc, err := key.GenKeyChain()
	if err != nil {
		t.Fatal(err)
	}
	id := uuid.New()
	pkix := key.MarshalECDSAPublicKey(kc.ECDSAKeyChain.ECDSAPublicKey)
	if err := engine.RegisterPrincipal(id, "test", pkix); err != nil {
		t.Fatal(err)
	}
	return testPrincipal{id: id, kc: kc}
}

// intake encrypts value under the engine key, signs the binding proof and
// validates it into a handle.
func intake(t testing.TB, engine *fhe.Engine, p testPrincipal, value uint64) ciphertext.Handle {
	t.Helper()
	raw, err := fhe.Encrypt(value, fhe.Params(), engine.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	proof, err := fhe.SignBinding(raw, p.id, p.kc.ECDSAKeyChain.ECDSAPrivateKey)
	if err != nil {
		t.Fatal(err)
	}
	h, err := engine.Validate(raw, proof, p.id)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestValidateAndDecryptRoundTrip(t *testing.T) {
	engine, _ := newTestEngine(t)
	p := newTestPrincipal(t, engine)

	h := intake(t, engine, p, 1888)
	if err := engine.Grant(h, p.id); err != nil {
		t.Fatal(err)
	}

	got, err := engine.Decrypt(h, p.id)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1888 {
		t.Errorf("decrypted %d, expected 1888", got)
	}
}

func TestValidateRejectsForgedProof(t *testing.T) {
	engine, _ := newTestEngine(t)
	alice := newTestPrincipal(t, engine)
	eve := newTestPrincipal(t, engine)

	raw, err := fhe.Encrypt(1500, fhe.Params(), engine.PublicKey())
	if err != nil {
		t.Fatal(err)
	}

	// Proof signed by the wrong key.
	proof, err := fhe.SignBinding(raw, alice.id, eve.kc.ECDSAKeyChain.ECDSAPrivateKey)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Validate(raw, proof, alice.id); !errors.Is(err, fhe.ErrBadProof) {
		t.Errorf("expected ErrBadProof for forged signature, got %v", err)
	}

	// Proof signed for a different submitter.
	proof, err = fhe.SignBinding(raw, eve.id, alice.kc.ECDSAKeyChain.ECDSAPrivateKey)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Validate(raw, proof, alice.id); !errors.Is(err, fhe.ErrBadProof) {
		t.Errorf("expected ErrBadProof for replayed submitter, got %v", err)
	}

	// Garbage ciphertext under a valid signature.
	garbage := []byte("not a ciphertext")
	proof, err = fhe.SignBinding(garbage, alice.id, alice.kc.ECDSAKeyChain.ECDSAPrivateKey)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Validate(garbage, proof, alice.id); !errors.Is(err, fhe.ErrBadProof) {
		t.Errorf("expected ErrBadProof for garbage ciphertext, got %v", err)
	}
}

func TestDecryptRequestSignatureCoversIssueTime(t *testing.T) {
	engine, _ := newTestEngine(t)
	alice := newTestPrincipal(t, engine)
	eve := newTestPrincipal(t, engine)

	handleText := intake(t, engine, alice, 42).String()
	issuedAt := int64(1700000000)

	sig, err := fhe.SignDecryptRequest(handleText, issuedAt, alice.id, alice.kc.ECDSAKeyChain.ECDSAPrivateKey)
	if err != nil {
		t.Fatal(err)
	}
	pk := alice.kc.ECDSAKeyChain.ECDSAPublicKey

	if !fhe.VerifyDecryptRequest(handleText, issuedAt, sig, alice.id, pk) {
		t.Error("genuine decryption request must verify")
	}
	// The same signature presented with a shifted issue time must fail, so a
	// captured request cannot be kept alive past the server's window.
	if fhe.VerifyDecryptRequest(handleText, issuedAt+1, sig, alice.id, pk) {
		t.Error("signature must not verify for a different issue time")
	}
	if fhe.VerifyDecryptRequest(intake(t, engine, alice, 7).String(), issuedAt, sig, alice.id, pk) {
		t.Error("signature must not verify for a different handle")
	}
	if fhe.VerifyDecryptRequest(handleText, issuedAt, sig, eve.id, pk) {
		t.Error("signature must not verify for a different requester")
	}
}

func TestAbsoluteDifferencePipeline(t *testing.T) {
	engine, _ := newTestEngine(t)
	p := newTestPrincipal(t, engine)

	cases := []struct {
		name        string
		guess, year uint64
		want        uint64
	}{
		{"guess below", 1850, 1888, 38},
		{"guess above", 1900, 1888, 12},
		{"exact", 1888, 1888, 0},
		{"domain edges", 0, 65535, 65535},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			guessH := intake(t, engine, p, tc.guess)
			yearH := intake(t, engine, p, tc.year)

			diffA, err := engine.Subtract(guessH, yearH)
			if err != nil {
				t.Fatal(err)
			}
			diffB, err := engine.Subtract(yearH, guessH)
			if err != nil {
				t.Fatal(err)
			}
			gt, err := engine.GreaterThan(guessH, yearH)
			if err != nil {
				t.Fatal(err)
			}
			abs, err := engine.Select(gt, diffA, diffB)
			if err != nil {
				t.Fatal(err)
			}

			if err := engine.Grant(abs, p.id); err != nil {
				t.Fatal(err)
			}
			got, err := engine.Decrypt(abs, p.id)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("|%d - %d| decrypted to %d, expected %d", tc.guess, tc.year, got, tc.want)
			}
		})
	}
}

func TestDecryptRequiresGrant(t *testing.T) {
	engine, _ := newTestEngine(t)
	alice := newTestPrincipal(t, engine)
	bob := newTestPrincipal(t, engine)

	h := intake(t, engine, alice, 42)
	if err := engine.Grant(h, alice.id); err != nil {
		t.Fatal(err)
	}

	if _, err := engine.Decrypt(h, bob.id); !errors.Is(err, fhe.ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized for ungranted principal, got %v", err)
	}
	if _, err := engine.Decrypt(h, alice.id); err != nil {
		t.Errorf("granted principal should decrypt, got %v", err)
	}
}

func TestUnknownHandleFails(t *testing.T) {
	engine, _ := newTestEngine(t)
	if _, err := engine.Subtract(ciphertext.NewHandle(), ciphertext.NewHandle()); !errors.Is(err, fhe.ErrUnknownHandle) {
		t.Errorf("expected ErrUnknownHandle, got %v", err)
	}
}

func BenchmarkAbsoluteDifference(b *testing.B) {
	engine, _ := newTestEngine(b)
	p := newTestPrincipal(b, engine)
	guessH := intake(b, engine, p, 1900)
	yearH := intake(b, engine, p, 1888)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		diffA, _ := engine.Subtract(guessH, yearH)
		diffB, _ := engine.Subtract(yearH, guessH)
		gt, _ := engine.GreaterThan(guessH, yearH)
		if _, err := engine.Select(gt, diffA, diffB); err != nil {
			b.Fatal(err)
		}
	}
}
