// Package metadata is the client's key/value store for account state needed
// to unlock the vault offline and to resume syncing.
package metadata

import (
	"context"
)

// Well-known keys. The KDF salt is not stored on its own; it travels inside
// the wrapped DEK record.
const (
	KeyUsername   = "username"
	KeyVerifier   = "verifier"
	KeyWrappedDEK = "wrapped_dek"
	KeyBoardOrder = "board_order"
	KeyLastSeenID = "last_seen_id"
)

// Repository stores opaque values by key. Get returns (nil, nil) for a
// missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, values map[string][]byte) error
	Clear(ctx context.Context) error
}
