package board

import (
	"encoding/json"
	"errors"
	"slices"
)

// Section names accepted by Order.Move.
const (
	SectionPinned = "pinned"
	SectionOther  = "other"
)

var (
	ErrUnknownSection = errors.New("unknown board section")
	ErrUnknownNote    = errors.New("note is not on the board")
)

// Order is the persisted manual arrangement of a board.
type Order struct {
	Pinned []string `json:"pinned"`
	Other  []string `json:"other"`
}

// DecodeOrder reads an Order from arbitrary JSON. Missing or malformed
// sections decode as empty rather than failing.
func DecodeOrder(raw []byte) Order {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Order{Pinned: []string{}, Other: []string{}}
	}
	return Order{
		Pinned: ToUniqueStrings(doc[SectionPinned]),
		Other:  ToUniqueStrings(doc[SectionOther]),
	}
}

// Reconcile returns o adjusted to the live ids in current. Pinned keeps only
// saved pinned ids that still exist; new notes are never auto-pinned. Other
// is the merge of saved other ids with every live id that is not pinned.
func (o Order) Reconcile(current []string) Order {
	live := make(map[string]struct{}, len(current))
	for _, id := range current {
		live[id] = struct{}{}
	}

	pinned := make([]string, 0, len(o.Pinned))
	isPinned := make(map[string]struct{}, len(o.Pinned))
	for _, id := range uniqueStrings(o.Pinned) {
		if _, ok := live[id]; ok {
			pinned = append(pinned, id)
			isPinned[id] = struct{}{}
		}
	}

	rest := make([]string, 0, len(current))
	for _, id := range current {
		if _, ok := isPinned[id]; !ok {
			rest = append(rest, id)
		}
	}

	return Order{Pinned: pinned, Other: MergeNoteOrderIDs(o.Other, rest)}
}

// Pin moves id to the front of the pinned section.
func (o Order) Pin(id string) (Order, error) {
	if !slices.Contains(o.Other, id) && !slices.Contains(o.Pinned, id) {
		return o, ErrUnknownNote
	}
	return Order{
		Pinned: append([]string{id}, without(o.Pinned, id)...),
		Other:  without(o.Other, id),
	}, nil
}

// Unpin moves id to the front of the other section.
func (o Order) Unpin(id string) (Order, error) {
	if !slices.Contains(o.Other, id) && !slices.Contains(o.Pinned, id) {
		return o, ErrUnknownNote
	}
	return Order{
		Pinned: without(o.Pinned, id),
		Other:  append([]string{id}, without(o.Other, id)...),
	}, nil
}

// Move reorders one section.
func (o Order) Move(section string, from, to int) (Order, error) {
	switch section {
	case SectionPinned:
		return Order{Pinned: ArrayMove(o.Pinned, from, to), Other: slices.Clone(o.Other)}, nil
	case SectionOther:
		return Order{Pinned: slices.Clone(o.Pinned), Other: ArrayMove(o.Other, from, to)}, nil
	default:
		return o, ErrUnknownSection
	}
}

// IDs returns pinned followed by other.
func (o Order) IDs() []string {
	return append(slices.Clone(o.Pinned), o.Other...)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
