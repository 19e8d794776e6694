package cli

import (
	"context"
	"fmt"
)

// Sessions lists the signed-in devices of the account.
func (a *App) Sessions(ctx context.Context, _ []string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	list, err := a.notebook.Sessions(ctx)
	if err != nil {
		return err
	}
	for _, s := range list {
		mark := " "
		if s.Current {
			mark = "*"
		}
		fmt.Fprintf(a.out, "%s %s  %-24s  since %s\n", mark, s.ID, s.UserAgent, s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// Revoke ends one session, or all but this one with "others".
func (a *App) Revoke(ctx context.Context, args []string) error {
	id, err := refArg(args, "revoke <session-id|others>")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if id == "others" {
		if err := a.notebook.RevokeOtherSessions(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Other sessions revoked.")
		return nil
	}
	if err := a.notebook.RevokeSession(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Session revoked.")
	return nil
}

// Backup uploads an encrypted snapshot of the notes and prints its key.
func (a *App) Backup(ctx context.Context, _ []string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	key, err := a.notebook.Backup(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Backup stored as %s\n", key)
	return nil
}

func (a *App) Restore(ctx context.Context, args []string) error {
	key, err := refArg(args, "restore <backup-key>")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.notebook.Restore(ctx, key); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Backup restored. Undo history was cleared.")
	return nil
}
