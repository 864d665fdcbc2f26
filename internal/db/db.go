// Package db persists the registry and engine state. SQLite carries the
// durable deployment; Memory is the drop-in double for tests and ephemeral
// runs. Both satisfy registry.Store and fhe.Store.
package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// --- 初始化：建表 ---

func CreateArtworksTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Artworks (
			id INTEGER PRIMARY KEY,
			encryptedYear TEXT NOT NULL,
			createdAt INTEGER NOT NULL
		);
	`
}

func CreateGuessesTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Guesses (
			artworkId INTEGER NOT NULL,
			player TEXT NOT NULL,
			nonce INTEGER NOT NULL,
			encryptedDiff TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			PRIMARY KEY (artworkId, player, nonce)
		);
	`
}

func CreateGuessCountersTable() string {
	return `
		CREATE TABLE IF NOT EXISTS GuessCounters (
			artworkId INTEGER NOT NULL,
			player TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (artworkId, player)
		);
	`
}

// Ciphertexts holds every blob the engine files, keyed by handle.
func CreateCiphertextsTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Ciphertexts (
			handle TEXT PRIMARY KEY,
			blob BLOB NOT NULL
		);
	`
}

func CreateGrantsTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Grants (
			handle TEXT NOT NULL,
			principal TEXT NOT NULL,
			PRIMARY KEY (handle, principal)
		);
	`
}

func CreatePrincipalsTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Principals (
			uuid TEXT PRIMARY KEY,
			name TEXT,
			publicKey BLOB NOT NULL
		);
	`
}

func CreateCountersTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Counters (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);
	`
}

func CreateEventsTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			artworkId INTEGER NOT NULL,
			player TEXT,
			nonce INTEGER,
			timestamp INTEGER NOT NULL
		);
	`
}

// SQLite is the durable store.
type SQLite struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and ensures
// the schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*SQLite, error) {
	sqldb, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if _, err := sqldb.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, errors.Wrap(err, "enable foreign keys")
	}

	for _, ddl := range []string{
		CreateArtworksTable(),
		CreateGuessesTable(),
		CreateGuessCountersTable(),
		CreateCiphertextsTable(),
		CreateGrantsTable(),
		CreatePrincipalsTable(),
		CreateCountersTable(),
		CreateEventsTable(),
	} {
		if _, err := sqldb.Exec(ddl); err != nil {
			return nil, errors.Wrap(err, "init schema")
		}
	}
	return &SQLite{db: sqldb}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
