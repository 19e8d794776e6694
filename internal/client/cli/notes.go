package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophnotes/internal/board"
	"github.com/dmitrijs2005/gophnotes/internal/client/services"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/history"
)

var errAmbiguousRef = errors.New("more than one note matches")

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resolve finds a note by its position in 'ls' (1-based) or by an id prefix.
func (a *App) resolve(ref string) (services.Item, error) {
	items := a.notebook.Items()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(items) {
			return services.Item{}, fmt.Errorf("no note at position %d", n)
		}
		return items[n-1], nil
	}

	var found []services.Item
	for _, it := range items {
		if strings.HasPrefix(it.Note.ID, ref) {
			found = append(found, it)
		}
	}
	switch len(found) {
	case 0:
		return services.Item{}, common.ErrorNotFound
	case 1:
		return found[0], nil
	default:
		return services.Item{}, errAmbiguousRef
	}
}

func refArg(args []string, usage string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("usage: %s", usage)
	}
	return args[0], nil
}

// New prompts for a title and a body and saves a new note.
func (a *App) New(ctx context.Context, args []string) error {
	title := strings.Join(args, " ")
	if title == "" {
		var err error
		if title, err = getSimpleText(a.reader, "Title", a.out); err != nil {
			return err
		}
	}
	body, err := getMultiline(a.reader, "Body", a.out)
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	n, err := a.notebook.Create(ctx, title, body)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created %s\n", shortID(n.ID))
	return nil
}

// Edit replaces the title and body of a note. Empty input keeps a field.
func (a *App) Edit(ctx context.Context, args []string) error {
	ref, err := refArg(args, "edit <n|id>")
	if err != nil {
		return err
	}
	it, err := a.resolve(ref)
	if err != nil {
		return err
	}

	title, err := getSimpleText(a.reader, fmt.Sprintf("Title [%s]", it.Note.Title), a.out)
	if err != nil {
		return err
	}
	if title == "" {
		title = it.Note.Title
	}
	body, err := getMultiline(a.reader, "Body (empty keeps the current text)", a.out)
	if err != nil {
		return err
	}
	if body == "" {
		body = it.Note.Body
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	if _, err := a.notebook.Update(ctx, it.Note.ID, title, body); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s\n", shortID(it.Note.ID))
	return nil
}

func (a *App) Remove(ctx context.Context, args []string) error {
	ref, err := refArg(args, "rm <n|id>")
	if err != nil {
		return err
	}
	it, err := a.resolve(ref)
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	if err := a.notebook.Delete(ctx, it.Note.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", shortID(it.Note.ID))
	return nil
}

// List prints the board: pinned notes first, then the rest.
func (a *App) List(_ context.Context, _ []string) error {
	items := a.notebook.Items()
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No notes.")
		return nil
	}
	for i, it := range items {
		pin := " "
		if it.Pinned {
			pin = "*"
		}
		fmt.Fprintf(a.out, "%3d %s %s  %s\n", i+1, pin, shortID(it.Note.ID), it.Note.Title)
	}
	return nil
}

func (a *App) Show(_ context.Context, args []string) error {
	ref, err := refArg(args, "show <n|id>")
	if err != nil {
		return err
	}
	it, err := a.resolve(ref)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "ID:      %s\n", it.Note.ID)
	fmt.Fprintf(a.out, "Title:   %s\n", it.Note.Title)
	fmt.Fprintf(a.out, "Created: %s\n", it.Note.CreatedAt.Local().Format("2006-01-02 15:04"))
	if it.Pinned {
		fmt.Fprintln(a.out, "Pinned:  yes")
	}
	fmt.Fprintf(a.out, "\n%s\n", it.Note.Body)
	return nil
}

// Move reorders a board section: mv <pinned|other> <from> <to>, 1-based.
func (a *App) Move(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: mv <%s|%s> <from> <to>", board.SectionPinned, board.SectionOther)
	}
	from, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad position %q", args[1])
	}
	to, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("bad position %q", args[2])
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return a.notebook.Move(ctx, args[0], from-1, to-1)
}

func (a *App) Pin(ctx context.Context, args []string) error {
	return a.pinning(ctx, args, "pin <n|id>", a.notebook.Pin)
}

func (a *App) Unpin(ctx context.Context, args []string) error {
	return a.pinning(ctx, args, "unpin <n|id>", a.notebook.Unpin)
}

func (a *App) pinning(ctx context.Context, args []string, usage string, fn func(context.Context, string) error) error {
	ref, err := refArg(args, usage)
	if err != nil {
		return err
	}
	it, err := a.resolve(ref)
	if err != nil {
		return err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return fn(ctx, it.Note.ID)
}

func (a *App) Undo(ctx context.Context, _ []string) error {
	return a.step(ctx, "undo", a.notebook.Undo)
}

func (a *App) Redo(ctx context.Context, _ []string) error {
	return a.step(ctx, "redo", a.notebook.Redo)
}

func (a *App) step(ctx context.Context, verb string, fn func(context.Context) (history.Action, bool, error)) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	act, ok, err := fn(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(a.out, "Nothing to %s.\n", verb)
		return nil
	}
	what, err := history.Describe(act)
	if err != nil {
		return err
	}
	id, err := history.NoteID(act)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s %s\n", verb, what, shortID(id))
	return nil
}
