// Package restfulpayload holds the JSON shapes exchanged between the client
// library and the HTTP facade. Binary fields (ciphertexts, proofs, keys) are
// base64 (raw std encoding).
package restfulpayload

import "github.com/google/uuid"

// RegisterPlayerReq registers a participant and their signature key.
type RegisterPlayerReq struct {
	UUID        uuid.UUID `json:"uuid"`
	Name        string    `json:"name"`
	ECDSAPubkey string    `json:"ecdsa_pubkey"`
}

// RegisterArtworkReq registers one artwork (admin only).
type RegisterArtworkReq struct {
	ArtworkID     uint64 `json:"artworkId"`
	EncryptedYear string `json:"encryptedYear"`
	Proof         string `json:"proof"`
}

// RegisterArtworkBatchReq registers several artworks; already-registered ids
// are skipped, not rejected.
type RegisterArtworkBatchReq struct {
	Entries []RegisterArtworkReq `json:"entries"`
}

// SubmitGuessReq submits one encrypted guess.
type SubmitGuessReq struct {
	ArtworkID      uint64    `json:"artworkId"`
	Player         uuid.UUID `json:"player"`
	EncryptedGuess string    `json:"encryptedGuess"`
	Proof          string    `json:"proof"`
}

// SubmitGuessResp returns the nonce assigned to the accepted guess.
type SubmitGuessResp struct {
	Status string `json:"status"`
	Nonce  uint64 `json:"nonce"`
}

// DecryptReq asks the oracle to decrypt a handle. Sig is the requester's
// signature over the handle text and issue time, proving the request comes
// from the named principal and letting the server expire captured requests.
type DecryptReq struct {
	Handle    string    `json:"handle"`
	Principal uuid.UUID `json:"principal"`
	IssuedAt  int64     `json:"issuedAt"`
	Sig       string    `json:"sig"`
}

// DecryptResp carries the recovered plaintext value.
type DecryptResp struct {
	Status string `json:"status"`
	Value  uint64 `json:"value"`
}

// GuessResultResp returns a stored result handle.
type GuessResultResp struct {
	Status string `json:"status"`
	Handle string `json:"handle"`
	Nonce  uint64 `json:"nonce"`
}

// StatsResp exposes the observability counters.
type StatsResp struct {
	Status        string `json:"status"`
	TotalArtworks uint64 `json:"totalArtworks"`
	TotalGuesses  uint64 `json:"totalGuesses"`
}
