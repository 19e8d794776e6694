package history

import (
	"sort"
	"sync"
)

// NoteSet is an in-memory Target keyed by note id.
type NoteSet struct {
	mu    sync.RWMutex
	notes map[string]NoteSnapshot
}

func NewNoteSet(notes ...NoteSnapshot) *NoteSet {
	s := &NoteSet{notes: make(map[string]NoteSnapshot, len(notes))}
	for _, n := range notes {
		s.notes[n.ID] = n
	}
	return s
}

func (s *NoteSet) Put(note NoteSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[note.ID] = note
	return nil
}

// Remove deletes id. Removing an absent note is a no-op.
func (s *NoteSet) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notes, id)
	return nil
}

func (s *NoteSet) Get(id string) (NoteSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	return n, ok
}

// Replace swaps the whole content, used after a full refresh from the server.
func (s *NoteSet) Replace(notes []NoteSnapshot) {
	next := make(map[string]NoteSnapshot, len(notes))
	for _, n := range notes {
		next[n.ID] = n
	}
	s.mu.Lock()
	s.notes = next
	s.mu.Unlock()
}

// IDs returns live ids ordered by creation time, then id.
func (s *NoteSet) IDs() []string {
	notes := s.All()
	ids := make([]string, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	return ids
}

// All returns the notes ordered by creation time, then id.
func (s *NoteSet) All() []NoteSnapshot {
	s.mu.RLock()
	out := make([]NoteSnapshot, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *NoteSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}
