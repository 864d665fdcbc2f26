// Package catalog reads the off-chain artwork catalog: a JSON list of the
// artworks shown in the UI. The registry only ever sees the id and the
// encrypted year; title, artist and image stay off-chain.
package catalog

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// MaxYear bounds what the 16-bit encrypted value domain can carry.
const MaxYear = 65535

// Entry is one catalog record.
type Entry struct {
	ID       uint64 `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Year     uint64 `json:"year"`
	ImageURL string `json:"imageUrl"`
}

// Decode parses and validates a catalog document.
func Decode(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, "unmarshal catalog")
	}

	seen := make(map[uint64]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			return nil, errors.Errorf("duplicate artwork id %d", e.ID)
		}
		seen[e.ID] = struct{}{}
		if e.Year > MaxYear {
			return nil, errors.Errorf("artwork %d: year %d exceeds %d", e.ID, e.Year, MaxYear)
		}
	}
	return entries, nil
}

// Load reads and decodes the catalog file at path.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}
	return Decode(data)
}
