// Package client contains client-side building blocks for GophNotes.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) to talk
//     to the GophNotes backend: account, notes, board, sessions, backups and
//     the Watch stream.
//  2. A concrete gRPC implementation (see GRPCClient) that manages a
//     connection, injects an access token via interceptors, transparently
//     refreshes expired tokens, and maps gRPC status codes to sentinel errors.
//  3. Local persistence bootstrap utilities (InitDatabase, RunMigrations) for
//     the CLI, wiring an SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrLocalDataNotAvailable, and
// the common.Error* values for NotFound, AlreadyExists and InvalidArgument.
//
// # Concurrency
//
// GRPCClient is safe for concurrent use; a Watch stream may run while other
// calls are in flight. Concurrent calls that meet an expired token trigger a
// single refresh.
package client
