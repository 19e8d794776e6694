// Package board reconciles the user's manual ordering of notes with the set
// of notes that currently exist.
package board

import "encoding/json"

// ToUniqueStrings coerces value into an ordered list of unique strings,
// keeping first occurrences. It accepts []string, []any and JSON arrays given
// as []byte, json.RawMessage or string. Non-string elements are dropped and
// any other input yields an empty list.
func ToUniqueStrings(value any) []string {
	var items []any

	switch v := value.(type) {
	case []string:
		return uniqueStrings(v)
	case []any:
		items = v
	case json.RawMessage:
		items = decodeArray(v)
	case []byte:
		items = decodeArray(v)
	case string:
		items = decodeArray([]byte(v))
	}

	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func decodeArray(data []byte) []any {
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	return items
}

func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// MergeNoteOrderIDs returns the ids of current that are missing from saved,
// in current order, followed by the saved ids that still exist, in saved
// order. Deleted ids are pruned and duplicates collapse to their first
// occurrence, so the result is stable under repeated merging.
func MergeNoteOrderIDs(saved, current []string) []string {
	live := make(map[string]struct{}, len(current))
	for _, id := range current {
		live[id] = struct{}{}
	}

	kept := make([]string, 0, len(saved))
	seen := make(map[string]struct{}, len(current))
	for _, id := range saved {
		if _, ok := live[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, id)
	}

	missing := make([]string, 0, len(current)-len(kept))
	for _, id := range current {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}

	return append(missing, kept...)
}

// ArrayMove returns a copy of items with the element at from moved to index
// to. An out-of-range from leaves the copy unchanged; to is clamped to the
// valid range.
func ArrayMove[T any](items []T, from, to int) []T {
	out := make([]T, len(items))
	copy(out, items)

	if from < 0 || from >= len(out) {
		return out
	}
	if to < 0 {
		to = 0
	}
	if to > len(out)-1 {
		to = len(out) - 1
	}
	if from == to {
		return out
	}

	item := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = item
	return out
}
