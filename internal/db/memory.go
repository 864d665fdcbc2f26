package db

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/veilart/veilart/internal/ciphertext"
	"github.com/veilart/veilart/internal/registry"
)

type guessKey struct {
	artworkID uint64
	player    uuid.UUID
	nonce     uint64
}

type countKey struct {
	artworkID uint64
	player    uuid.UUID
}

type grantKey struct {
	handle    ciphertext.Handle
	principal uuid.UUID
}

// Memory is the map-backed store double. A single mutex keeps it safe for
// the read paths that run outside the registry's own lock.
type Memory struct {
	mu sync.Mutex

	artworks    map[uint64]registryArtwork
	guesses     map[guessKey]registry.GuessResult
	counts      map[countKey]uint64
	ciphertexts map[ciphertext.Handle][]byte
	grants      map[grantKey]struct{}
	principals  map[uuid.UUID][]byte
	events      []registry.Event

	totalArtworks uint64
	totalGuesses  uint64
}

type registryArtwork struct {
	encryptedYear ciphertext.Handle
	createdAt     int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		artworks:    make(map[uint64]registryArtwork),
		guesses:     make(map[guessKey]registry.GuessResult),
		counts:      make(map[countKey]uint64),
		ciphertexts: make(map[ciphertext.Handle][]byte),
		grants:      make(map[grantKey]struct{}),
		principals:  make(map[uuid.UUID][]byte),
	}
}

func (m *Memory) PutArtwork(id uint64, encryptedYear ciphertext.Handle, createdAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artworks[id] = registryArtwork{encryptedYear: encryptedYear, createdAt: createdAt}
	return nil
}

func (m *Memory) Artwork(id uint64) (ciphertext.Handle, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artworks[id]
	if !ok {
		return ciphertext.Zero, false, nil
	}
	return a.encryptedYear, true, nil
}

func (m *Memory) PutGuess(rec registry.GuessResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guesses[guessKey{rec.ArtworkID, rec.Player, rec.Nonce}] = rec
	return nil
}

func (m *Memory) Guess(artworkID uint64, player uuid.UUID, nonce uint64) (registry.GuessResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.guesses[guessKey{artworkID, player, nonce}]
	return rec, ok, nil
}

func (m *Memory) GuessCount(artworkID uint64, player uuid.UUID) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[countKey{artworkID, player}], nil
}

func (m *Memory) SetGuessCount(artworkID uint64, player uuid.UUID, count uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[countKey{artworkID, player}] = count
	return nil
}

func (m *Memory) IncTotalArtworks() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalArtworks++
	return nil
}

func (m *Memory) IncTotalGuesses() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalGuesses++
	return nil
}

func (m *Memory) Totals() (uint64, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalArtworks, m.totalGuesses, nil
}

func (m *Memory) AppendEvent(ev registry.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.Seq = uint64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

func (m *Memory) EventsSince(seq uint64) ([]registry.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []registry.Event
	for _, ev := range m.events {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *Memory) PutCiphertext(h ciphertext.Handle, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(blob))
	copy(cp, blob)
	m.ciphertexts[h] = cp
	return nil
}

func (m *Memory) Ciphertext(h ciphertext.Handle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.ciphertexts[h]
	if !ok {
		return nil, errors.Errorf("no ciphertext for handle %s", h)
	}
	return blob, nil
}

func (m *Memory) PutGrant(h ciphertext.Handle, principal uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[grantKey{h, principal}] = struct{}{}
	return nil
}

func (m *Memory) HasGrant(h ciphertext.Handle, principal uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.grants[grantKey{h, principal}]
	return ok, nil
}

func (m *Memory) PutPrincipal(id uuid.UUID, name string, pkixPublicKey []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.principals[id] = pkixPublicKey
	return nil
}

func (m *Memory) PrincipalKey(id uuid.UUID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, ok := m.principals[id]
	if !ok {
		return nil, errors.Errorf("no principal %s", id)
	}
	return pk, nil
}
