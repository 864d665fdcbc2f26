package db_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"

	"github.com/veilart/veilart/internal/ciphertext"
	"github.com/veilart/veilart/internal/db"
	"github.com/veilart/veilart/internal/registry"
)

// store is the union of what the registry and the engine persist, satisfied
// by both implementations under test.
type store interface {
	registry.Store
	PutCiphertext(h ciphertext.Handle, blob []byte) error
	Ciphertext(h ciphertext.Handle) ([]byte, error)
	PutGrant(h ciphertext.Handle, principal uuid.UUID) error
	HasGrant(h ciphertext.Handle, principal uuid.UUID) (bool, error)
	PutPrincipal(id uuid.UUID, name string, pkixPublicKey []byte) error
	PrincipalKey(id uuid.UUID) ([]byte, error)
}

func stores(t *testing.T) map[string]store {
	sqlite, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]store{
		"sqlite": sqlite,
		"memory": db.NewMemory(),
	}
}

func TestArtworkRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c := qt.New(t)

			_, exists, err := s.Artwork(7)
			c.Assert(err, qt.IsNil)
			c.Assert(exists, qt.IsFalse)

			h := ciphertext.NewHandle()
			c.Assert(s.PutArtwork(7, h, 1700000000), qt.IsNil)

			got, exists, err := s.Artwork(7)
			c.Assert(err, qt.IsNil)
			c.Assert(exists, qt.IsTrue)
			c.Assert(got, qt.Equals, h)
		})
	}
}

func TestGuessAndCounterRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c := qt.New(t)
			player := uuid.New()

			count, err := s.GuessCount(7, player)
			c.Assert(err, qt.IsNil)
			c.Assert(count, qt.Equals, uint64(0))

			rec := registry.GuessResult{
				ArtworkID:     7,
				Player:        player,
				Nonce:         0,
				EncryptedDiff: ciphertext.NewHandle(),
				Timestamp:     1700000000,
			}
			c.Assert(s.PutGuess(rec), qt.IsNil)
			c.Assert(s.SetGuessCount(7, player, 1), qt.IsNil)

			got, ok, err := s.Guess(7, player, 0)
			c.Assert(err, qt.IsNil)
			c.Assert(ok, qt.IsTrue)
			c.Assert(got, qt.DeepEquals, rec)

			_, ok, err = s.Guess(7, player, 1)
			c.Assert(err, qt.IsNil)
			c.Assert(ok, qt.IsFalse)

			count, err = s.GuessCount(7, player)
			c.Assert(err, qt.IsNil)
			c.Assert(count, qt.Equals, uint64(1))
		})
	}
}

func TestTotalsAreMonotone(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c := qt.New(t)
			c.Assert(s.IncTotalArtworks(), qt.IsNil)
			c.Assert(s.IncTotalGuesses(), qt.IsNil)
			c.Assert(s.IncTotalGuesses(), qt.IsNil)

			artworks, guesses, err := s.Totals()
			c.Assert(err, qt.IsNil)
			c.Assert(artworks, qt.Equals, uint64(1))
			c.Assert(guesses, qt.Equals, uint64(2))
		})
	}
}

func TestEventLogOrdering(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c := qt.New(t)
			player := uuid.New()

			c.Assert(s.AppendEvent(registry.Event{
				Type: registry.EventArtworkAdded, ArtworkID: 7, Timestamp: 100,
			}), qt.IsNil)
			c.Assert(s.AppendEvent(registry.Event{
				Type: registry.EventGuessSubmitted, ArtworkID: 7, Player: player, Nonce: 0, Timestamp: 101,
			}), qt.IsNil)

			events, err := s.EventsSince(0)
			c.Assert(err, qt.IsNil)
			c.Assert(events, qt.HasLen, 2)
			c.Assert(events[0].Type, qt.Equals, registry.EventArtworkAdded)
			c.Assert(events[1].Player, qt.Equals, player)
			c.Assert(events[0].Seq < events[1].Seq, qt.IsTrue)

			tail, err := s.EventsSince(events[0].Seq)
			c.Assert(err, qt.IsNil)
			c.Assert(tail, qt.HasLen, 1)
			c.Assert(tail[0].Seq, qt.Equals, events[1].Seq)
		})
	}
}

func TestCiphertextAndGrantRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c := qt.New(t)
			h := ciphertext.NewHandle()
			blob := []byte{0x01, 0x02, 0x03}

			c.Assert(s.PutCiphertext(h, blob), qt.IsNil)
			got, err := s.Ciphertext(h)
			c.Assert(err, qt.IsNil)
			c.Assert(got, qt.DeepEquals, blob)

			_, err = s.Ciphertext(ciphertext.NewHandle())
			c.Assert(err, qt.IsNotNil)

			alice, bob := uuid.New(), uuid.New()
			c.Assert(s.PutGrant(h, alice), qt.IsNil)
			// Grants are idempotent.
			c.Assert(s.PutGrant(h, alice), qt.IsNil)

			ok, err := s.HasGrant(h, alice)
			c.Assert(err, qt.IsNil)
			c.Assert(ok, qt.IsTrue)
			ok, err = s.HasGrant(h, bob)
			c.Assert(err, qt.IsNil)
			c.Assert(ok, qt.IsFalse)
		})
	}
}

func TestPrincipalRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c := qt.New(t)
			id := uuid.New()
			pk := []byte("pkix-bytes")

			c.Assert(s.PutPrincipal(id, "alice", pk), qt.IsNil)
			got, err := s.PrincipalKey(id)
			c.Assert(err, qt.IsNil)
			c.Assert(got, qt.DeepEquals, pk)

			_, err = s.PrincipalKey(uuid.New())
			c.Assert(err, qt.IsNotNil)
		})
	}
}
