package registry

import "github.com/pkg/errors"

// Every failure is fatal to its call; nothing is retried internally.
var (
	ErrNotAdministrator = errors.New("caller is not the administrator")
	ErrDuplicateArtwork = errors.New("artwork already registered")
	ErrArtworkNotFound  = errors.New("artwork not found")
	ErrNoGuessFound     = errors.New("no guess found")
	ErrLengthMismatch   = errors.New("batch arrays differ in length")
)
