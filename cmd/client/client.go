package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/veilart/veilart/internal/catalog"
	"github.com/veilart/veilart/internal/clientlib"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

func defaultKeystorePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "veilart", "keystore.json")
}

func main() {
	app := &cli.App{
		Name:     "veilart",
		HelpName: "veilart-client",
		Version:  "0.1.0",
		Usage:    "play the encrypted artwork year-guessing game",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "registry server URL",
				Value: clientlib.DefaultServerURL,
			},
			&cli.StringFlag{
				Name:  "keystore",
				Usage: "path to the player keystore",
				Value: defaultKeystorePath(),
			},
		},
		Before: func(c *cli.Context) error {
			clientlib.ConfigServerURL = c.String("server")
			return nil
		},
		Commands: []*cli.Command{
			cmdKeygen(),
			cmdRegister(),
			cmdImport(),
			cmdGuess(),
			cmdReveal(),
			cmdCount(),
			cmdStats(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatal().Err(err).Msg("command failed")
	}
}

// loadPlayer restores the keystore and fetches the service key.
func loadPlayer(c *cli.Context) (*clientlib.Player, error) {
	p, err := clientlib.LoadPlayer(c.String("keystore"))
	if err != nil {
		return nil, err
	}
	if err := p.FetchServicePublicKey(); err != nil {
		return nil, err
	}
	return p, nil
}

func cmdKeygen() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "generate a fresh keychain and write the keystore",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "display name", Value: "anonymous"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("keystore")
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("keystore %s already exists", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return err
			}
			p, err := clientlib.NewPlayer(c.String("name"))
			if err != nil {
				return err
			}
			if err := p.Save(path); err != nil {
				return err
			}
			fmt.Printf("principal: %s\nkeystore:  %s\n", p.Principal, path)
			return nil
		},
	}
}

func cmdRegister() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "announce the player and their signature key to the server",
		Action: func(c *cli.Context) error {
			p, err := clientlib.LoadPlayer(c.String("keystore"))
			if err != nil {
				return err
			}
			if err := p.Register(); err != nil {
				return err
			}
			logger.Info().Str("principal", p.Principal.String()).Msg("registered")
			return nil
		},
	}
}

func cmdImport() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "encrypt a catalog's years and register them in one batch (admin)",
		ArgsUsage: "<catalog.json>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one catalog path")
			}
			entries, err := catalog.Load(c.Args().First())
			if err != nil {
				return err
			}
			p, err := loadPlayer(c)
			if err != nil {
				return err
			}
			if err := p.ImportCatalog(entries); err != nil {
				return err
			}
			logger.Info().Int("entries", len(entries)).Msg("catalog imported")
			return nil
		},
	}
}

func cmdGuess() *cli.Command {
	return &cli.Command{
		Name:      "guess",
		Usage:     "submit an encrypted year guess",
		ArgsUsage: "<artworkId> <year>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected <artworkId> <year>")
			}
			artworkID, err := parseUint(c.Args().Get(0))
			if err != nil {
				return err
			}
			year, err := parseUint(c.Args().Get(1))
			if err != nil {
				return err
			}
			p, err := loadPlayer(c)
			if err != nil {
				return err
			}
			nonce, err := p.SubmitGuess(artworkID, year)
			if err != nil {
				return err
			}
			fmt.Printf("guess accepted, nonce %d\n", nonce)
			return nil
		},
	}
}

func cmdReveal() *cli.Command {
	return &cli.Command{
		Name:      "reveal",
		Usage:     "decrypt the result of the latest (or a specific) guess",
		ArgsUsage: "<artworkId> [nonce]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 || c.NArg() > 2 {
				return fmt.Errorf("expected <artworkId> [nonce]")
			}
			artworkID, err := parseUint(c.Args().Get(0))
			if err != nil {
				return err
			}
			p, err := loadPlayer(c)
			if err != nil {
				return err
			}

			var handleText string
			var nonce uint64
			if c.NArg() == 2 {
				nonce, err = parseUint(c.Args().Get(1))
				if err != nil {
					return err
				}
				handleText, err = p.ResultHandle(artworkID, nonce)
			} else {
				handleText, nonce, err = p.LatestResultHandle(artworkID)
			}
			if err != nil {
				return err
			}

			diff, err := p.Decrypt(handleText)
			if err != nil {
				return err
			}
			fmt.Printf("guess %d was off by %d year(s)\n", nonce, diff)
			return nil
		},
	}
}

func cmdCount() *cli.Command {
	return &cli.Command{
		Name:      "count",
		Usage:     "show how many guesses you made on an artwork",
		ArgsUsage: "<artworkId>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected <artworkId>")
			}
			artworkID, err := parseUint(c.Args().First())
			if err != nil {
				return err
			}
			p, err := clientlib.LoadPlayer(c.String("keystore"))
			if err != nil {
				return err
			}
			count, err := p.GuessCount(artworkID)
			if err != nil {
				return err
			}
			fmt.Println(count)
			return nil
		},
	}
}

func cmdStats() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "show global artwork and guess totals",
		Action: func(c *cli.Context) error {
			artworks, guesses, err := clientlib.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("artworks: %d\nguesses:  %d\n", artworks, guesses)
			return nil
		},
	}
}
