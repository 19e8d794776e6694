// Package notes provides the client-side cache of encrypted notes.
//
// The server copy is authoritative: after every refresh the cache is rebuilt
// with Clear and Upsert inside one transaction. Rows hold ciphertext only, so
// a stolen database file reveals nothing without the passphrase.
//
// SQLiteRepository is bound to a dbx.DBTX (either *sql.DB or *sql.Tx), so it
// can take part in a caller's transaction.
package notes
