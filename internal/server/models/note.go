package models

import "time"

type Note struct {
	ID         string
	UserID     string
	Ciphertext []byte
	Nonce      []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Event kinds appended to note_events.
const (
	EventNoteSaved   = "note:saved"
	EventNoteDeleted = "note:deleted"
	EventBoardSaved  = "board:saved"
)

type NoteEvent struct {
	Seq       int64
	ID        string
	UserID    string
	NoteID    string
	Kind      string
	CreatedAt time.Time
}

type Board struct {
	UserID    string
	Pinned    []string
	Other     []string
	UpdatedAt time.Time
}
