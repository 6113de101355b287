package client

import "errors"

var (
	ErrUnavailable           = errors.New("server unavailable")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrLocalDataNotAvailable = errors.New("local data unavailable")
	// ErrEvicted ends a realtime stream the server dropped for falling
	// behind; the caller should pull to catch up.
	ErrEvicted = errors.New("realtime subscription evicted")
)
