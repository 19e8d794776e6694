// Package models defines client-side data models used by the GophNotes CLI.
package models

import "time"

// Note is the locally cached, still encrypted form of a note. Ciphertext
// opens under the account's DEK with Nonce.
type Note struct {
	ID         string
	Ciphertext []byte
	Nonce      []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NotePayload is the plaintext sealed inside Note.Ciphertext.
type NotePayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
