package history

// DefaultLimit bounds each stack when no explicit limit is given.
const DefaultLimit = 100

// PushUndo returns a new stack with action appended. When the result would
// exceed limit, the oldest actions are dropped so that exactly limit remain.
// A limit of zero or less means DefaultLimit. The input slice is not modified.
func PushUndo(stack []Action, action Action, limit int) []Action {
	if limit <= 0 {
		limit = DefaultLimit
	}

	start := 0
	if n := len(stack) + 1; n > limit {
		start = n - limit
	}

	out := make([]Action, 0, len(stack)+1-start)
	if start < len(stack) {
		out = append(out, stack[start:]...)
	}
	return append(out, action)
}

// PopLast returns the last action and a copy of the stack without it.
// For an empty stack ok is false, item is nil and rest is empty.
func PopLast(stack []Action) (item Action, rest []Action, ok bool) {
	if len(stack) == 0 {
		return nil, []Action{}, false
	}
	rest = make([]Action, len(stack)-1)
	copy(rest, stack[:len(stack)-1])
	return stack[len(stack)-1], rest, true
}
