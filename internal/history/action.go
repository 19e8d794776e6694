// Package history keeps bounded undo/redo stacks of note edits.
//
// An edit is recorded as an Action. Undoing applies the action's inverse to
// a Target (the live note set) and moves it onto the redo stack; redoing is
// the mirror image. Persistence of the edits themselves is left to the
// Target implementation.
package history

import (
	"errors"
	"time"
)

// ErrUnknownAction is returned when an interpreter meets an Action variant
// it does not handle.
var ErrUnknownAction = errors.New("unknown history action")

// NoteSnapshot is the plaintext state of a note at one instant. It is a value
// type; captured snapshots do not follow later edits of the live note.
type NoteSnapshot struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Action is one reversible edit. The variant set is closed: CreateAction,
// DeleteAction and UpdateAction.
type Action interface {
	isAction()
}

type CreateAction struct {
	Note NoteSnapshot
}

type DeleteAction struct {
	Note NoteSnapshot
}

type UpdateAction struct {
	Before NoteSnapshot
	After  NoteSnapshot
}

func (CreateAction) isAction() {}
func (DeleteAction) isAction() {}
func (UpdateAction) isAction() {}

// Target is the live note set that undo and redo mutate.
type Target interface {
	Put(note NoteSnapshot) error
	Remove(id string) error
}

// Invert applies the semantic inverse of a to t:
// create removes the note, delete restores it, update restores Before.
func Invert(t Target, a Action) error {
	switch a := a.(type) {
	case CreateAction:
		return t.Remove(a.Note.ID)
	case DeleteAction:
		return t.Put(a.Note)
	case UpdateAction:
		return t.Put(a.Before)
	default:
		return ErrUnknownAction
	}
}

// Forward re-applies a to t.
func Forward(t Target, a Action) error {
	switch a := a.(type) {
	case CreateAction:
		return t.Put(a.Note)
	case DeleteAction:
		return t.Remove(a.Note.ID)
	case UpdateAction:
		return t.Put(a.After)
	default:
		return ErrUnknownAction
	}
}

// NoteID reports the id of the note a touches.
func NoteID(a Action) (string, error) {
	switch a := a.(type) {
	case CreateAction:
		return a.Note.ID, nil
	case DeleteAction:
		return a.Note.ID, nil
	case UpdateAction:
		return a.After.ID, nil
	default:
		return "", ErrUnknownAction
	}
}

// Describe returns a short human label such as "create", used by the CLI.
func Describe(a Action) (string, error) {
	switch a.(type) {
	case CreateAction:
		return "create", nil
	case DeleteAction:
		return "delete", nil
	case UpdateAction:
		return "update", nil
	default:
		return "", ErrUnknownAction
	}
}
