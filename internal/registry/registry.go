// Package registry implements the artwork registry and guess engine: the
// bookkeeping around encrypted years and guesses, the branchless absolute
// difference over opaque ciphertext handles, and the decrypt-permission
// grants. It never sees a plaintext; validation, arithmetic and access
// control are injected collaborators operating on handles.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/veilart/veilart/internal/ciphertext"
)

// GuessResult is one immutable guess record, keyed by
// (artwork, player, nonce). Timestamp doubles as the existence marker.
type GuessResult struct {
	ArtworkID     uint64            `json:"artworkId"`
	Player        uuid.UUID         `json:"player"`
	Nonce         uint64            `json:"nonce"`
	EncryptedDiff ciphertext.Handle `json:"encryptedDiff"`
	Timestamp     int64             `json:"timestamp"`
}

// Store is the persistence the registry owns. Implementations must be safe
// for the registry's one-writer discipline; they are never called
// concurrently for state changes.
type Store interface {
	PutArtwork(id uint64, encryptedYear ciphertext.Handle, createdAt int64) error
	Artwork(id uint64) (encryptedYear ciphertext.Handle, exists bool, err error)

	PutGuess(rec GuessResult) error
	Guess(artworkID uint64, player uuid.UUID, nonce uint64) (GuessResult, bool, error)
	GuessCount(artworkID uint64, player uuid.UUID) (uint64, error)
	SetGuessCount(artworkID uint64, player uuid.UUID, count uint64) error

	IncTotalArtworks() error
	IncTotalGuesses() error
	Totals() (artworks, guesses uint64, err error)

	AppendEvent(ev Event) error
	EventsSince(seq uint64) ([]Event, error)
}

// CiphertextProvider turns an externally encrypted value plus its binding
// proof into a handle. It must reject malformed or forged inputs.
type CiphertextProvider interface {
	Validate(raw, proof []byte, submitter uuid.UUID) (ciphertext.Handle, error)
}

// Arithmetic is the homomorphic backend. All three operations consume and
// produce opaque handles and reveal no plaintext to the registry.
type Arithmetic interface {
	Subtract(a, b ciphertext.Handle) (ciphertext.Handle, error)
	GreaterThan(a, b ciphertext.Handle) (ciphertext.Handle, error)
	Select(cond, ifTrue, ifFalse ciphertext.Handle) (ciphertext.Handle, error)
}

// AccessController records decrypt authorizations for handles.
type AccessController interface {
	Grant(h ciphertext.Handle, principal uuid.UUID) error
}

// Registry is the single stateful component. All mutating operations run
// under one mutex, mirroring the serial-execution discipline of the platform
// the design assumes: a call either fully commits or leaves no trace.
type Registry struct {
	mu sync.Mutex

	store    Store
	provider CiphertextProvider
	arith    Arithmetic
	acl      AccessController

	admin uuid.UUID // only principal allowed to register artworks
	self  uuid.UUID // the registry's own principal for standing grants

	now func() time.Time
}

// New wires a registry with its collaborators. admin is the administrator
// principal checked on registration; self is the identity granted standing
// rights over every handle the registry keeps.
func New(store Store, provider CiphertextProvider, arith Arithmetic, acl AccessController, admin, self uuid.UUID) *Registry {
	return &Registry{
		store:    store,
		provider: provider,
		arith:    arith,
		acl:      acl,
		admin:    admin,
		self:     self,
		now:      time.Now,
	}
}

// WithClock overrides the registry clock. Test hook.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Self returns the registry's own principal.
func (r *Registry) Self() uuid.UUID { return r.self }

// --- 管理员操作 / administrator operations ---

// RegisterArtwork validates and stores the encrypted year for a new artwork.
// Fails with ErrDuplicateArtwork when the id is taken; duplicates are a hard
// error here, unlike in RegisterArtworksBatch.
func (r *Registry) RegisterArtwork(caller uuid.UUID, artworkID uint64, rawEncryptedYear, proof []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.admin {
		return ErrNotAdministrator
	}
	if _, exists, err := r.store.Artwork(artworkID); err != nil {
		return errors.Wrap(err, "read artwork")
	} else if exists {
		return errors.Wrapf(ErrDuplicateArtwork, "artwork %d", artworkID)
	}
	return r.registerArtworkLocked(caller, artworkID, rawEncryptedYear, proof)
}

// RegisterArtworksBatch registers several artworks at once. Entries whose id
// is already taken are skipped silently; a skip never aborts the rest. This
// asymmetry with RegisterArtwork is deliberate and relied upon by callers
// that re-run catalog imports. Every other failure aborts the whole batch:
// all entries are validated before the first registry write, so a bad entry
// never leaves earlier entries registered.
func (r *Registry) RegisterArtworksBatch(caller uuid.UUID, artworkIDs []uint64, rawEncryptedYears, proofs [][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.admin {
		return ErrNotAdministrator
	}
	if len(artworkIDs) != len(rawEncryptedYears) || len(artworkIDs) != len(proofs) {
		return ErrLengthMismatch
	}

	type pendingArtwork struct {
		id uint64
		h  ciphertext.Handle
	}
	pending := make([]pendingArtwork, 0, len(artworkIDs))
	seen := make(map[uint64]struct{}, len(artworkIDs))
	for i, id := range artworkIDs {
		// A repeated id inside one batch is skipped like a known one.
		if _, dup := seen[id]; dup {
			continue
		}
		_, exists, err := r.store.Artwork(id)
		if err != nil {
			return errors.Wrap(err, "read artwork")
		}
		if exists {
			continue
		}
		h, err := r.provider.Validate(rawEncryptedYears[i], proofs[i], caller)
		if err != nil {
			return errors.Wrapf(err, "validate encrypted year for artwork %d", id)
		}
		seen[id] = struct{}{}
		pending = append(pending, pendingArtwork{id: id, h: h})
	}

	for _, p := range pending {
		if err := r.commitArtworkLocked(p.id, p.h); err != nil {
			return err
		}
	}
	return nil
}

// registerArtworkLocked does the shared registration steps. Caller holds the
// mutex and has already ruled out duplicates.
func (r *Registry) registerArtworkLocked(caller uuid.UUID, artworkID uint64, raw, proof []byte) error {
	h, err := r.provider.Validate(raw, proof, caller)
	if err != nil {
		return errors.Wrapf(err, "validate encrypted year for artwork %d", artworkID)
	}
	return r.commitArtworkLocked(artworkID, h)
}

// commitArtworkLocked writes an already-validated artwork. Caller holds the
// mutex.
func (r *Registry) commitArtworkLocked(artworkID uint64, h ciphertext.Handle) error {
	// The registry needs standing authorization over the year handle, since
	// every future guess computes against it.
	if err := r.acl.Grant(h, r.self); err != nil {
		return errors.Wrap(err, "grant registry rights on year")
	}

	ts := r.now().Unix()
	if err := r.store.PutArtwork(artworkID, h, ts); err != nil {
		return errors.Wrap(err, "store artwork")
	}
	if err := r.store.IncTotalArtworks(); err != nil {
		return errors.Wrap(err, "bump artwork total")
	}
	return r.store.AppendEvent(Event{
		Type:      EventArtworkAdded,
		ArtworkID: artworkID,
		Timestamp: ts,
	})
}

// --- 玩家操作 / player operations ---

// SubmitGuess validates the player's encrypted guess, computes the encrypted
// absolute difference against the artwork's year, stores it under the next
// nonce and grants the player decrypt rights over the result. Returns the
// nonce assigned to this guess.
func (r *Registry) SubmitGuess(player uuid.UUID, artworkID uint64, rawEncryptedGuess, proof []byte) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	yearH, exists, err := r.store.Artwork(artworkID)
	if err != nil {
		return 0, errors.Wrap(err, "read artwork")
	}
	if !exists {
		return 0, errors.Wrapf(ErrArtworkNotFound, "artwork %d", artworkID)
	}

	guessH, err := r.provider.Validate(rawEncryptedGuess, proof, player)
	if err != nil {
		return 0, errors.Wrap(err, "validate encrypted guess")
	}

	// Both subtraction directions wrap modulo the plaintext space and are
	// meaningless on their own; the encrypted comparison picks the one that
	// equals |guess - year| without branching on any plaintext.
	diffA, err := r.arith.Subtract(guessH, yearH)
	if err != nil {
		return 0, errors.Wrap(err, "guess - year")
	}
	diffB, err := r.arith.Subtract(yearH, guessH)
	if err != nil {
		return 0, errors.Wrap(err, "year - guess")
	}
	gt, err := r.arith.GreaterThan(guessH, yearH)
	if err != nil {
		return 0, errors.Wrap(err, "compare guess and year")
	}
	absDiff, err := r.arith.Select(gt, diffA, diffB)
	if err != nil {
		return 0, errors.Wrap(err, "select absolute difference")
	}

	// Exactly one grant to the submitting player, plus the registry's own
	// standing authorization. No other principal ever gets rights here.
	if err := r.acl.Grant(absDiff, player); err != nil {
		return 0, errors.Wrap(err, "grant player rights on result")
	}
	if err := r.acl.Grant(absDiff, r.self); err != nil {
		return 0, errors.Wrap(err, "grant registry rights on result")
	}

	nonce, err := r.store.GuessCount(artworkID, player)
	if err != nil {
		return 0, errors.Wrap(err, "read guess count")
	}

	ts := r.now().Unix()
	rec := GuessResult{
		ArtworkID:     artworkID,
		Player:        player,
		Nonce:         nonce,
		EncryptedDiff: absDiff,
		Timestamp:     ts,
	}
	if err := r.store.PutGuess(rec); err != nil {
		return 0, errors.Wrap(err, "store guess")
	}
	if err := r.store.SetGuessCount(artworkID, player, nonce+1); err != nil {
		return 0, errors.Wrap(err, "bump guess count")
	}
	if err := r.store.IncTotalGuesses(); err != nil {
		return 0, errors.Wrap(err, "bump guess total")
	}
	if err := r.store.AppendEvent(Event{
		Type:      EventGuessSubmitted,
		ArtworkID: artworkID,
		Player:    player,
		Nonce:     nonce,
		Timestamp: ts,
	}); err != nil {
		return 0, errors.Wrap(err, "append event")
	}
	return nonce, nil
}

// --- 只读操作 / read-only operations ---

// GetGuessResult returns the encrypted difference stored at
// (artworkID, player, nonce). Decrypt rights were granted at submission; this
// performs no new grants.
func (r *Registry) GetGuessResult(artworkID uint64, player uuid.UUID, nonce uint64) (ciphertext.Handle, error) {
	rec, ok, err := r.store.Guess(artworkID, player, nonce)
	if err != nil {
		return ciphertext.Zero, errors.Wrap(err, "read guess")
	}
	if !ok || rec.Timestamp == 0 {
		return ciphertext.Zero, errors.Wrapf(ErrNoGuessFound, "artwork %d player %s nonce %d", artworkID, player, nonce)
	}
	return rec.EncryptedDiff, nil
}

// GetLatestGuessResult returns the most recent result for (artwork, player)
// together with the nonce it is stored under. Count and record are read under
// the registry lock so the pair cannot straddle a concurrent submission.
func (r *Registry) GetLatestGuessResult(artworkID uint64, player uuid.UUID) (ciphertext.Handle, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count, err := r.store.GuessCount(artworkID, player)
	if err != nil {
		return ciphertext.Zero, 0, errors.Wrap(err, "read guess count")
	}
	if count == 0 {
		return ciphertext.Zero, 0, errors.Wrapf(ErrNoGuessFound, "artwork %d player %s", artworkID, player)
	}
	rec, ok, err := r.store.Guess(artworkID, player, count-1)
	if err != nil {
		return ciphertext.Zero, 0, errors.Wrap(err, "read guess")
	}
	if !ok || rec.Timestamp == 0 {
		return ciphertext.Zero, 0, errors.Wrapf(ErrNoGuessFound, "artwork %d player %s nonce %d", artworkID, player, count-1)
	}
	return rec.EncryptedDiff, count - 1, nil
}

// ArtworkExists reports whether an artwork id has been registered.
func (r *Registry) ArtworkExists(artworkID uint64) (bool, error) {
	_, exists, err := r.store.Artwork(artworkID)
	return exists, err
}

// GetGuessCount returns the number of guesses (artwork, player) has made,
// which is also the next nonce to be assigned.
func (r *Registry) GetGuessCount(artworkID uint64, player uuid.UUID) (uint64, error) {
	return r.store.GuessCount(artworkID, player)
}

// Totals returns the observability counters (total artworks, total guesses).
func (r *Registry) Totals() (uint64, uint64, error) {
	return r.store.Totals()
}

// EventsSince returns the event log records with Seq > seq.
func (r *Registry) EventsSince(seq uint64) ([]Event, error) {
	return r.store.EventsSince(seq)
}
