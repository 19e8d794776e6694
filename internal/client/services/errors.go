package services

import "errors"

var (
	// ErrLocked is returned when a data key is needed but no unlocked
	// session exists.
	ErrLocked = errors.New("vault is locked")

	// ErrNoSession is returned by operations that need an unlocked user.
	ErrNoSession = errors.New("no user session")
)
