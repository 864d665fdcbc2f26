package registry

import "github.com/google/uuid"

// Event types appended by the registry. The event log is append-only; the
// registry promises exactly one record per state change and nothing about
// delivery to any particular observer.
const (
	EventArtworkAdded   = "ArtworkAdded"
	EventGuessSubmitted = "GuessSubmitted"
)

// Event is one record of the registry's observable log.
// Player and Nonce are only meaningful for GuessSubmitted.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      string    `json:"type"`
	ArtworkID uint64    `json:"artworkId"`
	Player    uuid.UUID `json:"player,omitempty"`
	Nonce     uint64    `json:"nonce,omitempty"`
	Timestamp int64     `json:"timestamp"`
}
