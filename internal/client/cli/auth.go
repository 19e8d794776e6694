package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/client/client"
	"github.com/dmitrijs2005/gophnotes/internal/common"
)

// getSimpleText, getPassword and getMultiline are indirections used to
// facilitate testing.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	getMultiline  = GetMultiline
)

var errPassphraseMismatch = errors.New("passphrases do not match")

func (a *App) usernameArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return getSimpleText(a.reader, "Enter username", a.out)
}

// newPassphrase asks for a passphrase twice.
func (a *App) newPassphrase(prompt string) ([]byte, error) {
	pw, err := getPassword(prompt, a.out)
	if err != nil {
		return nil, err
	}
	confirm, err := getPassword("Repeat passphrase", a.out)
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(confirm)
	if !bytes.Equal(pw, confirm) {
		common.WipeByteArray(pw)
		return nil, errPassphraseMismatch
	}
	return pw, nil
}

// Register creates an account on the server. It does not log in.
func (a *App) Register(ctx context.Context, args []string) error {
	username, err := a.usernameArg(args)
	if err != nil {
		return err
	}
	password, err := a.newPassphrase("Enter passphrase")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	if err := a.vault.Register(ctx, username, password); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Account created. Use 'login' to open it.")
	return nil
}

// Login unlocks the vault of a user. The server is tried first; when it
// cannot be reached the locally stored key material is used and the notes
// come from the local cache.
func (a *App) Login(ctx context.Context, args []string) error {
	username, err := a.usernameArg(args)
	if err != nil {
		return err
	}
	return a.unlock(ctx, username)
}

// Unlock reopens a locked vault of the current user.
func (a *App) Unlock(ctx context.Context, _ []string) error {
	username := a.vault.Username()
	if username == "" {
		return fmt.Errorf("nobody is logged in, use 'login'")
	}
	return a.unlock(ctx, username)
}

func (a *App) unlock(ctx context.Context, username string) error {
	password, err := getPassword("Enter passphrase", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	a.stopWatching()

	rctx, cancel := a.withTimeout(ctx)
	defer cancel()

	err = a.vault.OnlineUnlock(rctx, username, password)
	switch {
	case err == nil:
		if err := a.notebook.Refresh(rctx); err != nil {
			a.logger.Warn(ctx, "initial refresh failed", "error", err)
			if err := a.notebook.LoadLocal(rctx); err != nil {
				a.logger.Warn(ctx, "local notes unavailable", "error", err)
			}
		}
		a.setUnlocked(true)
		a.setMode(ModeOnline)
		a.startWatching(ctx)
		fmt.Fprintln(a.out, "Logged in.")
		return nil

	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable, trying offline unlock...")
		if err := a.vault.OfflineUnlock(rctx, username, password); err != nil {
			a.setMode(ModeDisabled)
			return fmt.Errorf("offline unlock failed: %w", err)
		}
		if err := a.notebook.LoadLocal(rctx); err != nil {
			a.vault.Lock(ctx)
			return fmt.Errorf("local notes unavailable: %w", err)
		}
		a.setUnlocked(true)
		a.setMode(ModeOffline)
		fmt.Fprintln(a.out, "Unlocked offline. Changes need the server and will fail until it is back.")
		return nil

	default:
		return err
	}
}

// Lock forgets the key and the decrypted notes but keeps the account data on
// this device.
func (a *App) Lock(ctx context.Context, _ []string) error {
	a.stopWatching()
	a.vault.Lock(ctx)
	a.notebook.Reset()
	a.setUnlocked(false)
	fmt.Fprintln(a.out, "Locked.")
	return nil
}

// Logout ends the server session and removes everything stored locally.
func (a *App) Logout(ctx context.Context, _ []string) error {
	a.stopWatching()
	a.notebook.Reset()
	a.setUnlocked(false)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	if err := a.vault.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// Passwd changes the passphrase. Other sessions of the account end.
func (a *App) Passwd(ctx context.Context, _ []string) error {
	oldPassword, err := getPassword("Current passphrase", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(oldPassword)

	newPassword, err := a.newPassphrase("New passphrase")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(newPassword)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	if err := a.vault.ChangePassphrase(ctx, oldPassword, newPassword); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Passphrase changed. Other sessions were signed out.")
	return nil
}
