package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/veilart/veilart/internal/ciphertext"
	"github.com/veilart/veilart/internal/fhe"
	"github.com/veilart/veilart/internal/registry"
	"github.com/veilart/veilart/internal/restfulpayload"
)

// decryptRequestWindow bounds how old (or how far ahead) a decryption
// request's issue time may be before the oracle refuses it.
const decryptRequestWindow = 5 * time.Minute

// returnFailure writes the generic failure envelope.
func returnFailure(w http.ResponseWriter, err error, statusCode int) {
	resp := map[string]interface{}{
		"status": "failed",
		"err":    err.Error(),
	}
	respJSON, _ := json.Marshal(resp)
	w.WriteHeader(statusCode)
	w.Write(respJSON)
	logger.Error().Err(err).Int("status", statusCode).Msg("request failed")
}

// returnRegistryFailure maps the registry's conditions onto HTTP statuses.
func returnRegistryFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotAdministrator):
		returnFailure(w, err, http.StatusForbidden)
	case errors.Is(err, registry.ErrDuplicateArtwork):
		returnFailure(w, err, http.StatusConflict)
	case errors.Is(err, registry.ErrArtworkNotFound),
		errors.Is(err, registry.ErrNoGuessFound):
		returnFailure(w, err, http.StatusNotFound)
	case errors.Is(err, registry.ErrLengthMismatch),
		errors.Is(err, fhe.ErrBadProof),
		errors.Is(err, fhe.ErrUnknownPrincipal):
		returnFailure(w, err, http.StatusBadRequest)
	case errors.Is(err, fhe.ErrNotAuthorized):
		returnFailure(w, err, http.StatusForbidden)
	default:
		returnFailure(w, err, http.StatusInternalServerError)
	}
}

func returnOK(w http.ResponseWriter, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["status"] = "OK"
	respJSON, err := json.Marshal(payload)
	if err != nil {
		returnFailure(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(respJSON)
}

func (s *server) handleVersion(w http.ResponseWriter, req *http.Request) {
	returnOK(w, map[string]interface{}{"version": ConfigVersion})
}

func (s *server) handlePublicKey(w http.ResponseWriter, req *http.Request) {
	pkBytes, err := s.engine.PublicKey().MarshalBinary()
	if err != nil {
		returnFailure(w, err, http.StatusInternalServerError)
		return
	}
	returnOK(w, map[string]interface{}{
		"publicKey": base64.RawStdEncoding.EncodeToString(pkBytes),
	})
}

func (s *server) handleStats(w http.ResponseWriter, req *http.Request) {
	artworks, guesses, err := s.registry.Totals()
	if err != nil {
		returnFailure(w, err, http.StatusInternalServerError)
		return
	}
	returnOK(w, map[string]interface{}{
		"totalArtworks": artworks,
		"totalGuesses":  guesses,
	})
}

func (s *server) handleEvents(w http.ResponseWriter, req *http.Request) {
	since := uint64(0)
	if v := req.URL.Query().Get("since"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			returnFailure(w, errors.Wrap(err, "parse since"), http.StatusBadRequest)
			return
		}
		since = parsed
	}
	events, err := s.registry.EventsSince(since)
	if err != nil {
		returnFailure(w, err, http.StatusInternalServerError)
		return
	}
	returnOK(w, map[string]interface{}{"events": events})
}

// --- 注册部分 / registration ---

func (s *server) handleRegisterPlayer(w http.ResponseWriter, req *http.Request) {
	logger.Info().Msg("new /register/player request")
	request := new(restfulpayload.RegisterPlayerReq)
	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		returnFailure(w, err, http.StatusBadRequest)
		return
	}

	pkBytes, err := base64.RawStdEncoding.DecodeString(request.ECDSAPubkey)
	if err != nil || len(pkBytes) == 0 {
		returnFailure(w, fmt.Errorf("ecdsa pubkey parse failed"), http.StatusBadRequest)
		return
	}
	if err := s.engine.RegisterPrincipal(request.UUID, request.Name, pkBytes); err != nil {
		returnFailure(w, err, http.StatusBadRequest)
		return
	}

	returnOK(w, nil)
	logger.Info().Str("principal", request.UUID.String()).Msg("registered player")
}

func decodeArtworkEntry(e restfulpayload.RegisterArtworkReq) (raw, proof []byte, err error) {
	raw, err = base64.RawStdEncoding.DecodeString(e.EncryptedYear)
	if err != nil {
		return nil, nil, errors.Wrap(err, "decode encrypted year")
	}
	proof, err = base64.RawStdEncoding.DecodeString(e.Proof)
	if err != nil {
		return nil, nil, errors.Wrap(err, "decode proof")
	}
	return raw, proof, nil
}

func (s *server) handleRegisterArtwork(w http.ResponseWriter, req *http.Request) {
	logger.Info().Msg("new /artwork/register request")
	request := new(restfulpayload.RegisterArtworkReq)
	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		returnFailure(w, err, http.StatusBadRequest)
		return
	}
	raw, proof, err := decodeArtworkEntry(*request)
	if err != nil {
		returnFailure(w, err, http.StatusBadRequest)
		return
	}

	// Single-item registration only ever comes from the administrator.
	if err := s.registry.RegisterArtwork(s.admin, request.ArtworkID, raw, proof); err != nil {
		returnRegistryFailure(w, err)
		return
	}
	returnOK(w, map[string]interface{}{"artworkId": request.ArtworkID})
	logger.Info().Uint64("artwork", request.ArtworkID).Msg("registered artwork")
}

func (s *server) handleRegisterArtworkBatch(w http.ResponseWriter, req *http.Request) {
	logger.Info().Msg("new /artwork/registerBatch request")
	request := new(restfulpayload.RegisterArtworkBatchReq)
	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		returnFailure(w, err, http.StatusBadRequest)
		return
	}

	ids := make([]uint64, 0, len(request.Entries))
	raws := make([][]byte, 0, len(request.Entries))
	proofs := make([][]byte, 0, len(request.Entries))
	for _, e := range request.Entries {
		raw, proof, err := decodeArtworkEntry(e)
		if err != nil {
			returnFailure(w, err, http.StatusBadRequest)
			return
		}
		ids = append(ids, e.ArtworkID)
		raws = append(raws, raw)
		proofs = append(proofs, proof)
	}

	if err := s.registry.RegisterArtworksBatch(s.admin, ids, raws, proofs); err != nil {
		returnRegistryFailure(w, err)
		return
	}
	returnOK(w, map[string]interface{}{"count": len(ids)})
	logger.Info().Int("count", len(ids)).Msg("processed artwork batch")
}

func (s *server) handleArtworkExists(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseUint(req.URL.Query().Get("id"), 10, 64)
	if err != nil {
		returnFailure(w, errors.Wrap(err, "parse id"), http.StatusBadRequest)
		return
	}
	exists, err := s.registry.ArtworkExists(id)
	if err != nil {
		returnFailure(w, err, http.StatusInternalServerError)
		return
	}
	returnOK(w, map[string]interface{}{"exists": exists})
}

// --- 猜测部分 / guessing ---

func (s *server) handleSubmitGuess(w http.ResponseWriter, req *http.Request) {
	logger.Info().Msg("new /guess/submit request")
	request := new(restfulpayload.SubmitGuessReq)
	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		returnFailure(w, err, http.StatusBadRequest)
		return
	}

	raw, err := base64.RawStdEncoding.DecodeString(request.EncryptedGuess)
	if err != nil {
		returnFailure(w, errors.Wrap(err, "decode encrypted guess"), http.StatusBadRequest)
		return
	}
	proof, err := base64.RawStdEncoding.DecodeString(request.Proof)
	if err != nil {
		returnFailure(w, errors.Wrap(err, "decode proof"), http.StatusBadRequest)
		return
	}

	nonce, err := s.registry.SubmitGuess(request.Player, request.ArtworkID, raw, proof)
	if err != nil {
		returnRegistryFailure(w, err)
		return
	}
	returnOK(w, map[string]interface{}{"nonce": nonce})
	logger.Info().
		Uint64("artwork", request.ArtworkID).
		Str("player", request.Player.String()).
		Uint64("nonce", nonce).
		Msg("accepted guess")
}

func guessQuery(req *http.Request) (artworkID uint64, player uuid.UUID, err error) {
	artworkID, err = strconv.ParseUint(req.URL.Query().Get("artwork"), 10, 64)
	if err != nil {
		return 0, uuid.UUID{}, errors.Wrap(err, "parse artwork")
	}
	player, err = uuid.Parse(req.URL.Query().Get("player"))
	if err != nil {
		return 0, uuid.UUID{}, errors.Wrap(err, "parse player")
	}
	return artworkID, player, nil
}

func (s *server) handleGuessResult(w http.ResponseWriter, req *http.Request) {
	artworkID, player, err := guessQuery(req)
	if err != nil {
		returnFailure(w, err, http.StatusBadRequest)
		return
	}
	nonce, err := strconv.ParseUint(req.URL.Query().Get("nonce"), 10, 64)
	if err != nil {
		returnFailure(w, errors.Wrap(err, "parse nonce"), http.StatusBadRequest)
		return
	}
	h, err := s.registry.GetGuessResult(artworkID, player, nonce)
	if err != nil {
		returnRegistryFailure(w, err)
		return
	}
	returnOK(w, map[string]interface{}{"handle": h.String(), "nonce": nonce})
}

func (s *server) handleGuessLatest(w http.ResponseWriter, req *http.Request) {
	artworkID, player, err := guessQuery(req)
	if err != nil {
		returnFailure(w, err, http.StatusBadRequest)
		return
	}
	h, nonce, err := s.registry.GetLatestGuessResult(artworkID, player)
	if err != nil {
		returnRegistryFailure(w, err)
		return
	}
	returnOK(w, map[string]interface{}{"handle": h.String(), "nonce": nonce})
}

func (s *server) handleGuessCount(w http.ResponseWriter, req *http.Request) {
	artworkID, player, err := guessQuery(req)
	if err != nil {
		returnFailure(w, err, http.StatusBadRequest)
		return
	}
	count, err := s.registry.GetGuessCount(artworkID, player)
	if err != nil {
		returnFailure(w, err, http.StatusInternalServerError)
		return
	}
	returnOK(w, map[string]interface{}{"count": count})
}

// --- 解密部分 / decryption oracle ---

func (s *server) handleDecrypt(w http.ResponseWriter, req *http.Request) {
	logger.Info().Msg("new /decrypt request")
	request := new(restfulpayload.DecryptReq)
	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		returnFailure(w, err, http.StatusBadRequest)
		return
	}

	h, err := ciphertext.ParseHandle(request.Handle)
	if err != nil {
		returnFailure(w, errors.Wrap(err, "parse handle"), http.StatusBadRequest)
		return
	}
	sig, err := base64.RawStdEncoding.DecodeString(request.Sig)
	if err != nil {
		returnFailure(w, errors.Wrap(err, "decode signature"), http.StatusBadRequest)
		return
	}

	// The request must be fresh and signed by the principal it names;
	// otherwise anyone could replay it or ride on another player's grants.
	if d := time.Since(time.Unix(request.IssuedAt, 0)); d > decryptRequestWindow || d < -decryptRequestWindow {
		returnFailure(w, fmt.Errorf("decryption request issued outside the freshness window"), http.StatusUnauthorized)
		return
	}
	if err := s.verifyDecryptRequest(request.Handle, request.IssuedAt, sig, request.Principal); err != nil {
		returnFailure(w, err, http.StatusUnauthorized)
		return
	}

	value, err := s.engine.Decrypt(h, request.Principal)
	if err != nil {
		returnRegistryFailure(w, err)
		return
	}
	returnOK(w, map[string]interface{}{"value": value})
	logger.Info().
		Str("handle", request.Handle).
		Str("principal", request.Principal.String()).
		Msg("served decryption")
}

func (s *server) verifyDecryptRequest(handleText string, issuedAt int64, sig []byte, principal uuid.UUID) error {
	pkix, err := s.store.PrincipalKey(principal)
	if err != nil {
		return errors.Wrap(fhe.ErrUnknownPrincipal, principal.String())
	}
	pk, err := keyFromPKIX(pkix)
	if err != nil {
		return err
	}
	if !fhe.VerifyDecryptRequest(handleText, issuedAt, sig, principal, pk) {
		return fmt.Errorf("decryption request signature verification failed")
	}
	return nil
}
