package models

import (
	"encoding/json"
	"time"
)

// WrappedKey is a user's wrapped data key plus the login verifier derived
// from the same passphrase. KDFParams is stored as opaque JSON.
type WrappedKey struct {
	UserID        string
	KDFSalt       []byte
	WrappedKey    []byte
	WrapNonce     []byte
	WrapAlgorithm string
	KDFParams     json.RawMessage
	Verifier      []byte
	UpdatedAt     time.Time
}
