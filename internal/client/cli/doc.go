// Package cli provides the interactive GophNotes command-line client.
//
// It wires configuration, the local store, the vault and notebook services
// and a REPL that keeps working when the server is unreachable. Typical
// flow: log in, which refreshes the notes and starts the change stream, then
// edit notes and arrange the board.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
