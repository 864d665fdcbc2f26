package main

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/veilart/veilart/internal/db"
	"github.com/veilart/veilart/internal/fhe"
	"github.com/veilart/veilart/internal/registry"
)

const (
	DefaultListenAddr = "127.0.0.1"
	DefaultListenPort = "16001"
	DefaultVersion    = "0.1.0"
	DefaultDataDir    = "/.config/veilart/"
)

var (
	ConfigListenAddr = envOr("VEILART_LISTEN_ADDR", DefaultListenAddr)
	ConfigListenPort = envOr("VEILART_LISTEN_PORT", DefaultListenPort)
	ConfigDataDir    = envOr("VEILART_DATA_DIR", defaultDataDir())
	ConfigAdmin      = os.Getenv("VEILART_ADMIN") // uuid of the administrator principal
	ConfigVersion    = DefaultVersion
)

// registryPrincipal is the registry's own identity for standing grants.
// Deterministic, so restarts keep their authorizations.
var registryPrincipal = uuid.NewSHA1(uuid.NameSpaceOID, []byte("veilart/registry"))

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

type server struct {
	store    *db.SQLite
	engine   *fhe.Engine
	registry *registry.Registry
	admin    uuid.UUID
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	home, _ := os.UserHomeDir()
	return home + DefaultDataDir
}

func main() {
	logger.Info().Str("version", ConfigVersion).Msg("veilart server starting")

	if ConfigAdmin == "" {
		logger.Fatal().Msg("VEILART_ADMIN must be set to the administrator principal uuid")
	}
	admin, err := uuid.Parse(ConfigAdmin)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid VEILART_ADMIN")
	}

	if err := os.MkdirAll(ConfigDataDir, 0700); err != nil {
		logger.Fatal().Err(err).Msg("create data dir")
	}
	store, err := db.Open(filepath.Join(ConfigDataDir, "server.db"))
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer store.Close()

	engine, err := openEngine(store, filepath.Join(ConfigDataDir, "oracle.json"))
	if err != nil {
		logger.Fatal().Err(err).Msg("initialize oracle engine")
	}

	srv := &server{
		store:    store,
		engine:   engine,
		registry: registry.New(store, engine, engine, engine, admin, registryPrincipal),
		admin:    admin,
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	router.Get("/version", srv.handleVersion)
	router.Get("/fhe/publicKey", srv.handlePublicKey)
	router.Get("/stats", srv.handleStats)
	router.Get("/events", srv.handleEvents)

	router.Post("/register/player", srv.handleRegisterPlayer)
	router.Post("/artwork/register", srv.handleRegisterArtwork)
	router.Post("/artwork/registerBatch", srv.handleRegisterArtworkBatch)
	router.Get("/artwork/exists", srv.handleArtworkExists)

	router.Post("/guess/submit", srv.handleSubmitGuess)
	router.Get("/guess/result", srv.handleGuessResult)
	router.Get("/guess/latest", srv.handleGuessLatest)
	router.Get("/guess/count", srv.handleGuessCount)

	router.Post("/decrypt", srv.handleDecrypt)

	addr := ConfigListenAddr + ":" + ConfigListenPort
	logger.Info().Str("addr", addr).Str("admin", admin.String()).Msg("listening")
	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

// openEngine loads the oracle key set, generating and persisting a fresh one
// on first start.
func openEngine(store *db.SQLite, keystorePath string) (*fhe.Engine, error) {
	if _, err := os.Stat(keystorePath); err == nil {
		logger.Debug().Str("path", keystorePath).Msg("loading oracle keystore")
		return fhe.LoadOracleEngine(store, keystorePath)
	}
	logger.Info().Str("path", keystorePath).Msg("generating oracle key set")
	engine := fhe.NewEngine(store)
	if err := engine.SaveOracleKeys(keystorePath); err != nil {
		return nil, err
	}
	return engine, nil
}
