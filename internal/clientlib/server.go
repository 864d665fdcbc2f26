// server.go: HTTP calls from the client to the registry facade.

package clientlib

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/veilart/veilart/internal/catalog"
	"github.com/veilart/veilart/internal/key"
	"github.com/veilart/veilart/internal/restfulpayload"
)

const (
	DefaultServerURL = "http://127.0.0.1:16001"

	RegisterPlayerEndpoint       = "/register/player"
	RegisterArtworkEndpoint      = "/artwork/register"
	RegisterArtworkBatchEndpoint = "/artwork/registerBatch"
	ArtworkExistsEndpoint        = "/artwork/exists"
	SubmitGuessEndpoint          = "/guess/submit"
	GuessResultEndpoint          = "/guess/result"
	GuessLatestEndpoint          = "/guess/latest"
	GuessCountEndpoint           = "/guess/count"
	DecryptEndpoint              = "/decrypt"
	PublicKeyEndpoint            = "/fhe/publicKey"
	StatsEndpoint                = "/stats"
)

var ConfigServerURL = DefaultServerURL

type failureResp struct {
	Status string `json:"status"`
	Err    string `json:"err"`
}

// postJSON posts a payload and decodes the response into out, surfacing the
// server's error string on non-200 answers.
func postJSON(endpoint string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}
	resp, err := http.Post(ConfigServerURL+endpoint, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return errors.Wrapf(err, "POST %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		failure := new(failureResp)
		if err := json.NewDecoder(resp.Body).Decode(failure); err == nil && failure.Err != "" {
			return fmt.Errorf("%s returned %s: %s", endpoint, resp.Status, failure.Err)
		}
		return fmt.Errorf("%s returned %s", endpoint, resp.Status)
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}

func getJSON(endpoint string, query url.Values, out interface{}) error {
	target := ConfigServerURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	resp, err := http.Get(target)
	if err != nil {
		return errors.Wrapf(err, "GET %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		failure := new(failureResp)
		if err := json.NewDecoder(resp.Body).Decode(failure); err == nil && failure.Err != "" {
			return fmt.Errorf("%s returned %s: %s", endpoint, resp.Status, failure.Err)
		}
		return fmt.Errorf("%s returned %s", endpoint, resp.Status)
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}

// --- 注册部分 / registration ---

// Register announces the player and their signature key to the server.
func (p *Player) Register() error {
	req := restfulpayload.RegisterPlayerReq{
		UUID: p.Principal,
		Name: p.Name,
		ECDSAPubkey: base64.RawStdEncoding.EncodeToString(
			key.MarshalECDSAPublicKey(p.KeyChain.ECDSAKeyChain.ECDSAPublicKey)),
	}
	return postJSON(RegisterPlayerEndpoint, req, nil)
}

// FetchServicePublicKey pulls the oracle's BFV public key.
func (p *Player) FetchServicePublicKey() error {
	var resp struct {
		Status    string `json:"status"`
		PublicKey string `json:"publicKey"`
	}
	if err := getJSON(PublicKeyEndpoint, nil, &resp); err != nil {
		return err
	}
	pkBytes, err := base64.RawStdEncoding.DecodeString(resp.PublicKey)
	if err != nil {
		return errors.Wrap(err, "decode public key")
	}
	pk, err := key.UnmarshalBFVPublicKey(pkBytes)
	if err != nil {
		return errors.Wrap(err, "parse public key")
	}
	p.ServicePublicKey = pk
	return nil
}

// --- 管理员部分 / administrator ---

// RegisterArtwork encrypts the year and registers a single artwork.
func (p *Player) RegisterArtwork(artworkID, year uint64) error {
	raw, proof, err := p.EncryptValue(year)
	if err != nil {
		return err
	}
	req := restfulpayload.RegisterArtworkReq{
		ArtworkID:     artworkID,
		EncryptedYear: base64.RawStdEncoding.EncodeToString(raw),
		Proof:         base64.RawStdEncoding.EncodeToString(proof),
	}
	return postJSON(RegisterArtworkEndpoint, req, nil)
}

// ImportCatalog encrypts every catalog year and registers the whole list in
// one batch. Re-running an import is safe: the server skips known ids.
func (p *Player) ImportCatalog(entries []catalog.Entry) error {
	req := restfulpayload.RegisterArtworkBatchReq{
		Entries: make([]restfulpayload.RegisterArtworkReq, 0, len(entries)),
	}
	for _, e := range entries {
		raw, proof, err := p.EncryptValue(e.Year)
		if err != nil {
			return errors.Wrapf(err, "encrypt year for artwork %d", e.ID)
		}
		req.Entries = append(req.Entries, restfulpayload.RegisterArtworkReq{
			ArtworkID:     e.ID,
			EncryptedYear: base64.RawStdEncoding.EncodeToString(raw),
			Proof:         base64.RawStdEncoding.EncodeToString(proof),
		})
	}
	return postJSON(RegisterArtworkBatchEndpoint, req, nil)
}

// --- 玩家部分 / guessing ---

// SubmitGuess encrypts and submits one guess, returning the assigned nonce.
func (p *Player) SubmitGuess(artworkID, guess uint64) (uint64, error) {
	raw, proof, err := p.EncryptValue(guess)
	if err != nil {
		return 0, err
	}
	req := restfulpayload.SubmitGuessReq{
		ArtworkID:      artworkID,
		Player:         p.Principal,
		EncryptedGuess: base64.RawStdEncoding.EncodeToString(raw),
		Proof:          base64.RawStdEncoding.EncodeToString(proof),
	}
	resp := new(restfulpayload.SubmitGuessResp)
	if err := postJSON(SubmitGuessEndpoint, req, resp); err != nil {
		return 0, err
	}
	return resp.Nonce, nil
}

// LatestResultHandle fetches the handle of the player's most recent guess
// result for an artwork.
func (p *Player) LatestResultHandle(artworkID uint64) (string, uint64, error) {
	resp := new(restfulpayload.GuessResultResp)
	query := url.Values{
		"artwork": {fmt.Sprint(artworkID)},
		"player":  {p.Principal.String()},
	}
	if err := getJSON(GuessLatestEndpoint, query, resp); err != nil {
		return "", 0, err
	}
	return resp.Handle, resp.Nonce, nil
}

// ResultHandle fetches the handle stored at a specific nonce.
func (p *Player) ResultHandle(artworkID, nonce uint64) (string, error) {
	resp := new(restfulpayload.GuessResultResp)
	query := url.Values{
		"artwork": {fmt.Sprint(artworkID)},
		"player":  {p.Principal.String()},
		"nonce":   {fmt.Sprint(nonce)},
	}
	if err := getJSON(GuessResultEndpoint, query, resp); err != nil {
		return "", err
	}
	return resp.Handle, nil
}

// GuessCount fetches how many guesses the player has made on an artwork.
func (p *Player) GuessCount(artworkID uint64) (uint64, error) {
	var resp struct {
		Status string `json:"status"`
		Count  uint64 `json:"count"`
	}
	query := url.Values{
		"artwork": {fmt.Sprint(artworkID)},
		"player":  {p.Principal.String()},
	}
	if err := getJSON(GuessCountEndpoint, query, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Decrypt asks the oracle for the plaintext behind a handle the player is
// authorized on.
func (p *Player) Decrypt(handleText string) (uint64, error) {
	issuedAt := time.Now().Unix()
	sig, err := p.SignDecryptRequest(handleText, issuedAt)
	if err != nil {
		return 0, errors.Wrap(err, "sign decryption request")
	}
	req := restfulpayload.DecryptReq{
		Handle:    handleText,
		Principal: p.Principal,
		IssuedAt:  issuedAt,
		Sig:       base64.RawStdEncoding.EncodeToString(sig),
	}
	resp := new(restfulpayload.DecryptResp)
	if err := postJSON(DecryptEndpoint, req, resp); err != nil {
		return 0, err
	}
	return resp.Value, nil
}

// Stats fetches the global counters.
func Stats() (artworks, guesses uint64, err error) {
	resp := new(restfulpayload.StatsResp)
	if err := getJSON(StatsEndpoint, nil, resp); err != nil {
		return 0, 0, err
	}
	return resp.TotalArtworks, resp.TotalGuesses, nil
}

// ArtworkExists asks whether an id is registered.
func ArtworkExists(artworkID uint64) (bool, error) {
	var resp struct {
		Status string `json:"status"`
		Exists bool   `json:"exists"`
	}
	query := url.Values{"id": {fmt.Sprint(artworkID)}}
	if err := getJSON(ArtworkExistsEndpoint, query, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}
