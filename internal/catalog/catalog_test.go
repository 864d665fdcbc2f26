package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/veilart/veilart/internal/catalog"
)

const sample = `[
  {"id": 7, "title": "Starry Night", "artist": "Vincent van Gogh", "year": 1889, "imageUrl": "https://img.example/7.jpg"},
  {"id": 8, "title": "Guernica", "artist": "Pablo Picasso", "year": 1937}
]`

func TestDecode(t *testing.T) {
	c := qt.New(t)
	entries, err := catalog.Decode([]byte(sample))
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 2)
	c.Assert(entries[0], qt.Equals, catalog.Entry{
		ID:       7,
		Title:    "Starry Night",
		Artist:   "Vincent van Gogh",
		Year:     1889,
		ImageURL: "https://img.example/7.jpg",
	})
	c.Assert(entries[1].ImageURL, qt.Equals, "")
}

func TestDecodeRejectsDuplicateIDs(t *testing.T) {
	c := qt.New(t)
	doc := `[{"id": 1, "year": 1500}, {"id": 1, "year": 1600}]`
	_, err := catalog.Decode([]byte(doc))
	c.Assert(err, qt.ErrorMatches, "duplicate artwork id 1")
}

func TestDecodeRejectsOutOfRangeYear(t *testing.T) {
	c := qt.New(t)
	doc := `[{"id": 1, "year": 70000}]`
	_, err := catalog.Decode([]byte(doc))
	c.Assert(err, qt.ErrorMatches, "artwork 1: year 70000 exceeds 65535")
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	c := qt.New(t)
	_, err := catalog.Decode([]byte(`{"not": "a list"}`))
	c.Assert(err, qt.IsNotNil)
}

func TestLoad(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "catalog.json")
	c.Assert(os.WriteFile(path, []byte(sample), 0644), qt.IsNil)

	entries, err := catalog.Load(path)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 2)

	_, err = catalog.Load(filepath.Join(t.TempDir(), "missing.json"))
	c.Assert(err, qt.IsNotNil)
}
