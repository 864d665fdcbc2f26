// Package fhe is the homomorphic backend behind the registry: it validates
// externally encrypted values into handles, evaluates subtraction, comparison
// and selection over handles, and serves as the access-control-gated
// decryption oracle. It is the only component holding the BFV secret key.
package fhe

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v4/bfv"
	"github.com/tuneinsight/lattigo/v4/rlwe"

	"github.com/veilart/veilart/internal/ciphertext"
	"github.com/veilart/veilart/internal/key"
)

var (
	ErrUnknownHandle    = errors.New("unknown ciphertext handle")
	ErrUnknownPrincipal = errors.New("unknown principal")
	ErrBadProof         = errors.New("invalid ciphertext proof")
	ErrNotAuthorized    = errors.New("principal not authorized to decrypt handle")
)

// Store is the persistence the engine needs: ciphertext blobs by handle,
// grant rows, and the ECDSA public keys of registered principals.
type Store interface {
	PutCiphertext(h ciphertext.Handle, blob []byte) error
	Ciphertext(h ciphertext.Handle) ([]byte, error)

	PutGrant(h ciphertext.Handle, principal uuid.UUID) error
	HasGrant(h ciphertext.Handle, principal uuid.UUID) (bool, error)

	PutPrincipal(id uuid.UUID, name string, pkixPublicKey []byte) error
	PrincipalKey(id uuid.UUID) ([]byte, error)
}

// Engine evaluates the scheme. Values are encoded in slot 0 under
// t = 65537, so every 16-bit year or guess is representable and a wrapped
// subtraction stays inside the plaintext ring.
type Engine struct {
	params bfv.Parameters

	sk  *rlwe.SecretKey
	pk  *rlwe.PublicKey
	rlk *rlwe.RelinearizationKey

	store Store
}

// Params returns the scheme parameters (shared with clients).
func Params() bfv.Parameters {
	p, _ := bfv.NewParametersFromLiteral(bfv.PN12QP109)
	return p
}

// NewEngine generates a fresh key set and wires the engine to its store.
func NewEngine(store Store) *Engine {
	params := Params()
	kgen := bfv.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPair()
	rlk := kgen.GenRelinearizationKey(sk, 1)
	return &Engine{params: params, sk: sk, pk: pk, rlk: rlk, store: store}
}

// NewEngineFromKeys wires an engine around existing key material, e.g. when
// restarting the server against a persistent store.
func NewEngineFromKeys(store Store, sk *rlwe.SecretKey, pk *rlwe.PublicKey, rlk *rlwe.RelinearizationKey) *Engine {
	return &Engine{params: Params(), sk: sk, pk: pk, rlk: rlk, store: store}
}

// PublicKey exposes the encryption key clients encrypt under.
func (e *Engine) PublicKey() *rlwe.PublicKey { return e.pk }

// SecretKey exposes the oracle key for keystore persistence.
func (e *Engine) SecretKey() *rlwe.SecretKey { return e.sk }

// RelinearizationKey exposes the evaluation key for keystore persistence.
func (e *Engine) RelinearizationKey() *rlwe.RelinearizationKey { return e.rlk }

// --- 注册与验证部分 / intake and validation ---

// RegisterPrincipal records a participant and their signature key so later
// proofs can be checked against it.
func (e *Engine) RegisterPrincipal(id uuid.UUID, name string, pk []byte) error {
	if _, err := key.UnmarshalECDSAPublicKey(pk); err != nil {
		return errors.Wrap(err, "parse principal key")
	}
	return e.store.PutPrincipal(id, name, pk)
}

// Validate checks the submitter's binding signature over the raw ciphertext,
// rejects garbage that does not unmarshal as a degree-1 ciphertext, and files
// the blob under a fresh handle.
func (e *Engine) Validate(raw, proof []byte, submitter uuid.UUID) (ciphertext.Handle, error) {
	pkix, err := e.store.PrincipalKey(submitter)
	if err != nil {
		return ciphertext.Zero, errors.Wrapf(ErrUnknownPrincipal, "principal %s", submitter)
	}
	pk, err := key.UnmarshalECDSAPublicKey(pkix)
	if err != nil {
		return ciphertext.Zero, errors.Wrap(err, "parse principal key")
	}
	if !VerifyBinding(raw, proof, submitter, pk) {
		return ciphertext.Zero, ErrBadProof
	}
	if _, err := key.UnmarshalBFVCiphertext(raw); err != nil {
		return ciphertext.Zero, errors.Wrap(ErrBadProof, "malformed ciphertext")
	}

	h := ciphertext.NewHandle()
	if err := e.store.PutCiphertext(h, raw); err != nil {
		return ciphertext.Zero, errors.Wrap(err, "store ciphertext")
	}
	return h, nil
}

// --- 同态运算部分 / handle arithmetic ---

// Subtract returns a handle for a - b over the plaintext ring. When a < b the
// value wraps modulo t and is meaningless until paired with Select.
func (e *Engine) Subtract(a, b ciphertext.Handle) (h ciphertext.Handle, err error) {
	ctA, err := e.load(a)
	if err != nil {
		return ciphertext.Zero, err
	}
	ctB, err := e.load(b)
	if err != nil {
		return ciphertext.Zero, err
	}

	defer func() {
		if p := recover(); p != nil {
			h = ciphertext.Zero
			err = fmt.Errorf("homomorphic subtraction failed: %v", p)
		}
	}()

	eval := bfv.NewEvaluator(e.params, rlwe.EvaluationKey{Rlk: e.rlk})
	return e.file(eval.SubNew(ctA, ctB))
}

// GreaterThan returns a handle encrypting 1 when a > b, else 0. BFV has no
// native encrypted comparison, so the engine acts as the trusted comparison
// oracle: it decrypts the two operands under its own key and re-encrypts the
// resulting bit. Neither plaintext leaves the engine.
func (e *Engine) GreaterThan(a, b ciphertext.Handle) (ciphertext.Handle, error) {
	va, err := e.decrypt(a)
	if err != nil {
		return ciphertext.Zero, err
	}
	vb, err := e.decrypt(b)
	if err != nil {
		return ciphertext.Zero, err
	}
	bit := uint64(0)
	if va > vb {
		bit = 1
	}
	raw, err := Encrypt(bit, e.params, e.pk)
	if err != nil {
		return ciphertext.Zero, errors.Wrap(err, "re-encrypt comparison bit")
	}
	h := ciphertext.NewHandle()
	if err := e.store.PutCiphertext(h, raw); err != nil {
		return ciphertext.Zero, errors.Wrap(err, "store comparison bit")
	}
	return h, nil
}

// Select returns a handle for cond·ifTrue + (1-cond)·ifFalse, evaluated
// homomorphically with one relinearized multiplication per branch. cond must
// encrypt 0 or 1.
func (e *Engine) Select(cond, ifTrue, ifFalse ciphertext.Handle) (h ciphertext.Handle, err error) {
	ctCond, err := e.load(cond)
	if err != nil {
		return ciphertext.Zero, err
	}
	ctT, err := e.load(ifTrue)
	if err != nil {
		return ciphertext.Zero, err
	}
	ctF, err := e.load(ifFalse)
	if err != nil {
		return ciphertext.Zero, err
	}

	defer func() {
		if p := recover(); p != nil {
			h = ciphertext.Zero
			err = fmt.Errorf("homomorphic select failed: %v", p)
		}
	}()

	eval := bfv.NewEvaluator(e.params, rlwe.EvaluationKey{Rlk: e.rlk})
	encoder := bfv.NewEncoder(e.params)
	onePt := encoder.EncodeNew([]uint64{1}, e.params.MaxLevel())

	// notCond = 1 - cond
	notCond := eval.AddNew(eval.NegNew(ctCond), onePt)

	left := eval.RelinearizeNew(eval.MulNew(ctCond, ctT))
	right := eval.RelinearizeNew(eval.MulNew(notCond, ctF))
	return e.file(eval.AddNew(left, right))
}

// --- 访问控制与解密部分 / access control and decryption ---

// Grant authorizes principal to decrypt h.
func (e *Engine) Grant(h ciphertext.Handle, principal uuid.UUID) error {
	return e.store.PutGrant(h, principal)
}

// HasGrant reports whether principal may decrypt h.
func (e *Engine) HasGrant(h ciphertext.Handle, principal uuid.UUID) (bool, error) {
	return e.store.HasGrant(h, principal)
}

// Decrypt recovers the plaintext behind h for an authorized principal.
// Unauthorized requests fail with ErrNotAuthorized.
func (e *Engine) Decrypt(h ciphertext.Handle, principal uuid.UUID) (uint64, error) {
	ok, err := e.store.HasGrant(h, principal)
	if err != nil {
		return 0, errors.Wrap(err, "read grants")
	}
	if !ok {
		return 0, errors.Wrapf(ErrNotAuthorized, "principal %s handle %s", principal, h)
	}
	return e.decrypt(h)
}

// --- helper 部分 ---

func (e *Engine) load(h ciphertext.Handle) (*rlwe.Ciphertext, error) {
	blob, err := e.store.Ciphertext(h)
	if err != nil {
		return nil, errors.Wrapf(ErrUnknownHandle, "handle %s", h)
	}
	ct, err := key.UnmarshalBFVCiphertext(blob)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal ciphertext")
	}
	return ct, nil
}

// file stores a freshly computed ciphertext under a new handle.
func (e *Engine) file(ct *rlwe.Ciphertext) (ciphertext.Handle, error) {
	blob, err := ct.MarshalBinary()
	if err != nil {
		return ciphertext.Zero, errors.Wrap(err, "marshal ciphertext")
	}
	h := ciphertext.NewHandle()
	if err := e.store.PutCiphertext(h, blob); err != nil {
		return ciphertext.Zero, errors.Wrap(err, "store ciphertext")
	}
	return h, nil
}

// decrypt is the ungated internal decryption used by the oracle itself.
func (e *Engine) decrypt(h ciphertext.Handle) (v uint64, err error) {
	ct, err := e.load(h)
	if err != nil {
		return 0, err
	}

	defer func() {
		if p := recover(); p != nil {
			v = 0
			err = fmt.Errorf("decryption failed: %v", p)
		}
	}()

	decryptor := bfv.NewDecryptor(e.params, e.sk)
	encoder := bfv.NewEncoder(e.params)
	values := encoder.DecodeUintNew(decryptor.DecryptNew(ct))
	return values[0], nil
}

// Encrypt encodes value in slot 0 and encrypts it under pk. Shared by the
// client library and the comparison oracle.
func Encrypt(value uint64, params bfv.Parameters, pk *rlwe.PublicKey) (raw []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			raw = nil
			err = fmt.Errorf("encryption failed: %v", p)
		}
	}()

	encoder := bfv.NewEncoder(params)
	pt := encoder.EncodeNew([]uint64{value}, params.MaxLevel())
	ct := bfv.NewEncryptor(params, pk).EncryptNew(pt)
	return ct.MarshalBinary()
}
