package db

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/veilart/veilart/internal/ciphertext"
	"github.com/veilart/veilart/internal/registry"
)

const (
	counterTotalArtworks = "totalArtworks"
	counterTotalGuesses  = "totalGuesses"
)

// --- 艺术品部分 / artworks ---

func (s *SQLite) PutArtwork(id uint64, encryptedYear ciphertext.Handle, createdAt int64) error {
	_, err := s.db.Exec(`
		INSERT INTO Artworks (id, encryptedYear, createdAt)
		VALUES (?, ?, ?)
	`, int64(id), encryptedYear.String(), createdAt)
	return errors.Wrap(err, "insert artwork")
}

func (s *SQLite) Artwork(id uint64) (ciphertext.Handle, bool, error) {
	var handleText string
	err := s.db.QueryRow(`
		SELECT encryptedYear FROM Artworks WHERE id = ?
	`, int64(id)).Scan(&handleText)
	if err == sql.ErrNoRows {
		return ciphertext.Zero, false, nil
	}
	if err != nil {
		return ciphertext.Zero, false, errors.Wrap(err, "select artwork")
	}
	h, err := ciphertext.ParseHandle(handleText)
	if err != nil {
		return ciphertext.Zero, false, errors.Wrap(err, "parse year handle")
	}
	return h, true, nil
}

// --- 猜测部分 / guesses ---

func (s *SQLite) PutGuess(rec registry.GuessResult) error {
	_, err := s.db.Exec(`
		INSERT INTO Guesses (artworkId, player, nonce, encryptedDiff, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, int64(rec.ArtworkID), rec.Player.String(), int64(rec.Nonce),
		rec.EncryptedDiff.String(), rec.Timestamp)
	return errors.Wrap(err, "insert guess")
}

func (s *SQLite) Guess(artworkID uint64, player uuid.UUID, nonce uint64) (registry.GuessResult, bool, error) {
	rec := registry.GuessResult{ArtworkID: artworkID, Player: player, Nonce: nonce}
	var handleText string
	err := s.db.QueryRow(`
		SELECT encryptedDiff, timestamp FROM Guesses
		WHERE artworkId = ? AND player = ? AND nonce = ?
	`, int64(artworkID), player.String(), int64(nonce)).Scan(&handleText, &rec.Timestamp)
	if err == sql.ErrNoRows {
		return registry.GuessResult{}, false, nil
	}
	if err != nil {
		return registry.GuessResult{}, false, errors.Wrap(err, "select guess")
	}
	h, err := ciphertext.ParseHandle(handleText)
	if err != nil {
		return registry.GuessResult{}, false, errors.Wrap(err, "parse diff handle")
	}
	rec.EncryptedDiff = h
	return rec, true, nil
}

func (s *SQLite) GuessCount(artworkID uint64, player uuid.UUID) (uint64, error) {
	var count int64
	err := s.db.QueryRow(`
		SELECT count FROM GuessCounters WHERE artworkId = ? AND player = ?
	`, int64(artworkID), player.String()).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "select guess count")
	}
	return uint64(count), nil
}

func (s *SQLite) SetGuessCount(artworkID uint64, player uuid.UUID, count uint64) error {
	_, err := s.db.Exec(`
		INSERT INTO GuessCounters (artworkId, player, count)
		VALUES (?, ?, ?)
		ON CONFLICT (artworkId, player) DO UPDATE SET count = excluded.count
	`, int64(artworkID), player.String(), int64(count))
	return errors.Wrap(err, "upsert guess count")
}

// --- 全局计数部分 / global counters ---

func (s *SQLite) incCounter(name string) error {
	_, err := s.db.Exec(`
		INSERT INTO Counters (name, value) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET value = value + 1
	`, name)
	return errors.Wrapf(err, "bump counter %s", name)
}

func (s *SQLite) counter(name string) (uint64, error) {
	var value int64
	err := s.db.QueryRow(`SELECT value FROM Counters WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "read counter %s", name)
	}
	return uint64(value), nil
}

func (s *SQLite) IncTotalArtworks() error { return s.incCounter(counterTotalArtworks) }
func (s *SQLite) IncTotalGuesses() error  { return s.incCounter(counterTotalGuesses) }

func (s *SQLite) Totals() (uint64, uint64, error) {
	artworks, err := s.counter(counterTotalArtworks)
	if err != nil {
		return 0, 0, err
	}
	guesses, err := s.counter(counterTotalGuesses)
	if err != nil {
		return 0, 0, err
	}
	return artworks, guesses, nil
}

// --- 事件部分 / events ---

func (s *SQLite) AppendEvent(ev registry.Event) error {
	_, err := s.db.Exec(`
		INSERT INTO Events (type, artworkId, player, nonce, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, ev.Type, int64(ev.ArtworkID), ev.Player.String(), int64(ev.Nonce), ev.Timestamp)
	return errors.Wrap(err, "insert event")
}

func (s *SQLite) EventsSince(seq uint64) ([]registry.Event, error) {
	rows, err := s.db.Query(`
		SELECT seq, type, artworkId, player, nonce, timestamp
		FROM Events WHERE seq > ? ORDER BY seq
	`, int64(seq))
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	var events []registry.Event
	for rows.Next() {
		var ev registry.Event
		var artworkID, nonce, seq int64
		var playerText string
		if err := rows.Scan(&seq, &ev.Type, &artworkID, &playerText, &nonce, &ev.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		player, err := uuid.Parse(playerText)
		if err != nil {
			return nil, errors.Wrap(err, "parse event player")
		}
		ev.Seq = uint64(seq)
		ev.ArtworkID = uint64(artworkID)
		ev.Nonce = uint64(nonce)
		ev.Player = player
		events = append(events, ev)
	}
	return events, errors.Wrap(rows.Err(), "iterate events")
}

// --- 密文与授权部分 / ciphertexts and grants ---

func (s *SQLite) PutCiphertext(h ciphertext.Handle, blob []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO Ciphertexts (handle, blob) VALUES (?, ?)
	`, h.String(), blob)
	return errors.Wrap(err, "insert ciphertext")
}

func (s *SQLite) Ciphertext(h ciphertext.Handle) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow(`
		SELECT blob FROM Ciphertexts WHERE handle = ?
	`, h.String()).Scan(&blob)
	if err != nil {
		return nil, errors.Wrap(err, "select ciphertext")
	}
	return blob, nil
}

func (s *SQLite) PutGrant(h ciphertext.Handle, principal uuid.UUID) error {
	_, err := s.db.Exec(`
		INSERT INTO Grants (handle, principal) VALUES (?, ?)
		ON CONFLICT (handle, principal) DO NOTHING
	`, h.String(), principal.String())
	return errors.Wrap(err, "insert grant")
}

func (s *SQLite) HasGrant(h ciphertext.Handle, principal uuid.UUID) (bool, error) {
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM Grants WHERE handle = ? AND principal = ?
	`, h.String(), principal.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "select grant")
	}
	return true, nil
}

// --- 参与者部分 / principals ---

func (s *SQLite) PutPrincipal(id uuid.UUID, name string, pkixPublicKey []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO Principals (uuid, name, publicKey)
		VALUES (?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET
			name = excluded.name,
			publicKey = excluded.publicKey
	`, id.String(), name, pkixPublicKey)
	return errors.Wrap(err, "upsert principal")
}

func (s *SQLite) PrincipalKey(id uuid.UUID) ([]byte, error) {
	var pk []byte
	err := s.db.QueryRow(`
		SELECT publicKey FROM Principals WHERE uuid = ?
	`, id.String()).Scan(&pk)
	if err != nil {
		return nil, errors.Wrap(err, "select principal key")
	}
	return pk, nil
}
