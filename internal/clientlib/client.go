// Package clientlib is the player/administrator side of the scheme: key
// management, guess encryption, binding signatures and the HTTP calls to the
// registry facade.
package clientlib

import (
	"github.com/google/uuid"
	"github.com/tuneinsight/lattigo/v4/rlwe"

	"github.com/veilart/veilart/internal/key"
)

// Player is one participant: a principal id plus their keychain. The same
// type serves the administrator; only the server decides who is admin.
type Player struct {
	Principal uuid.UUID
	Name      string
	KeyChain  key.KeyChain

	// ServicePublicKey is the oracle's BFV key fetched from the server;
	// guesses and years are encrypted under it.
	ServicePublicKey *rlwe.PublicKey
}

// NewPlayer generates a fresh principal with a full keychain.
func NewPlayer(name string) (*Player, error) {
	kc, err := key.GenKeyChain()
	if err != nil {
		return nil, err
	}
	return &Player{
		Principal: uuid.New(),
		Name:      name,
		KeyChain:  kc,
	}, nil
}

// LoadPlayer restores a player from a keystore file.
func LoadPlayer(path string) (*Player, error) {
	principal, name, kc, err := key.LoadKeystore(path)
	if err != nil {
		return nil, err
	}
	return &Player{Principal: principal, Name: name, KeyChain: kc}, nil
}

// Save writes the player's keystore file.
func (p *Player) Save(path string) error {
	return key.SaveKeystore(path, p.Principal, p.Name, p.KeyChain)
}
