package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the gophnotes server could not be reached. Callers
	// fall back to the local copy of the notebook.
	ErrUnavailable = errors.New("gophnotes server unavailable")

	// ErrUnauthorized is returned when the server rejects the session tokens.
	ErrUnauthorized = errors.New("not logged in to gophnotes server")

	// ErrSessionRevoked is an ErrUnauthorized caused by the session being
	// ended from another device.
	ErrSessionRevoked = fmt.Errorf("%w: session revoked", ErrUnauthorized)

	// ErrLocalDataNotAvailable means no offline copy exists for this user.
	ErrLocalDataNotAvailable = errors.New("no local notebook data for this user")
)
