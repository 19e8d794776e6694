// Package services contains application services for the GophNotes client.
// This file defines the vault service: registration, online and offline
// unlock, passphrase rotation and the session key lifecycle.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophnotes/internal/client/client"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/notes"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/keycache"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
)

// Crypto seams, replaced in tests with cheaper parameters.
var (
	createWrappedDEK = cryptox.CreateWrappedDEK
	rewrapDEK        = cryptox.RewrapDEK
)

// KeyProvider hands out the unwrapped data key of the unlocked vault. The
// caller owns the returned slice and should wipe it after use.
type KeyProvider interface {
	DataKey(ctx context.Context) ([]byte, error)
}

// VaultService defines the key lifecycle operations of the CLI.
//
// Contract:
//   - Register: create a wrapped DEK for a new account and upload it.
//   - OnlineUnlock: log in on the server and cache the KEK for the session.
//   - OfflineUnlock: verify the passphrase against locally stored data.
//   - ChangePassphrase: rewrap the DEK and replace it on the server.
//   - Lock: forget the cached KEK; the local data stays.
//   - Logout: end the server session and wipe local data.
type VaultService interface {
	KeyProvider
	Register(ctx context.Context, username string, passphrase []byte) error
	OnlineUnlock(ctx context.Context, username string, passphrase []byte) error
	OfflineUnlock(ctx context.Context, username string, passphrase []byte) error
	ChangePassphrase(ctx context.Context, oldPassphrase, newPassphrase []byte) error
	Lock(ctx context.Context)
	Logout(ctx context.Context) error
	Username() string
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type vaultService struct {
	client client.Client
	db     *sql.DB
	cache  *keycache.Cache
	logger logging.Logger

	mu       sync.Mutex
	username string
	wrapped  *cryptox.WrappedDEK
}

// NewVaultService constructs a VaultService bound to the API client, the
// local database and the process KEK cache.
func NewVaultService(c client.Client, db *sql.DB, cache *keycache.Cache, logger logging.Logger) VaultService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &vaultService{client: c, db: db, cache: cache, logger: logger}
}

func (v *vaultService) current() (string, *cryptox.WrappedDEK) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.username, v.wrapped
}

func (v *vaultService) setCurrent(username string, wrapped *cryptox.WrappedDEK) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.username = username
	v.wrapped = wrapped
}

func (v *vaultService) Username() string {
	u, _ := v.current()
	return u
}

// Register generates a DEK, wraps it under a KEK derived from passphrase and
// uploads the wrapped record together with the login verifier.
func (v *vaultService) Register(ctx context.Context, username string, passphrase []byte) error {
	kek, wrapped, dek, err := createWrappedDEK(passphrase)
	if err != nil {
		return fmt.Errorf("create data key: %w", err)
	}
	defer kek.Wipe()
	common.WipeByteArray(dek)

	if err := v.client.Register(ctx, username, wrapped, kek.Verifier()); err != nil {
		return err
	}
	return nil
}

// OnlineUnlock fetches the salt, derives the KEK, logs in with its verifier
// and opens the server's wrapped DEK. On success the KEK is cached and the
// offline data is refreshed.
func (v *vaultService) OnlineUnlock(ctx context.Context, username string, passphrase []byte) error {
	salt, params, err := v.client.GetSalt(ctx, username)
	if err != nil {
		return fmt.Errorf("get salt error: %w", err)
	}

	kek, err := cryptox.DeriveKEK(passphrase, salt, params)
	if err != nil {
		return fmt.Errorf("cannot unlock vault: %w", err)
	}
	keep := false
	defer func() {
		if !keep {
			kek.Wipe()
		}
	}()

	if err := v.client.Login(ctx, username, kek.Verifier()); err != nil {
		return fmt.Errorf("login error: %w", err)
	}

	wrapped, err := v.client.GetWrappedKey(ctx)
	if err != nil {
		return fmt.Errorf("get wrapped key error: %w", err)
	}
	dek, err := cryptox.UnwrapDEKWithKEK(kek, wrapped)
	if err != nil {
		return err
	}
	common.WipeByteArray(dek)

	if err := v.saveOfflineData(ctx, username, wrapped, kek.Verifier()); err != nil {
		return fmt.Errorf("offline data saving error: %w", err)
	}

	v.cache.Set(username, keycache.Entry{KDFSalt: wrapped.KDFSalt, KEK: kek})
	keep = true
	v.setCurrent(username, wrapped)
	v.logger.Info(ctx, "vault unlocked", "username", username, "mode", "online")
	return nil
}

// OfflineUnlock derives the KEK from the locally stored wrapped DEK and
// checks it against the stored verifier. It returns
// client.ErrLocalDataNotAvailable when nothing is stored and
// client.ErrUnauthorized for another user or a wrong passphrase.
func (v *vaultService) OfflineUnlock(ctx context.Context, username string, passphrase []byte) error {
	repo := metadata.NewSQLiteRepository(v.db)

	savedUsername, err := repo.Get(ctx, metadata.KeyUsername)
	if err != nil {
		return err
	}
	if savedUsername == nil {
		return client.ErrLocalDataNotAvailable
	}
	if string(savedUsername) != username {
		return client.ErrUnauthorized
	}

	wrapped, err := loadWrappedDEK(ctx, repo)
	if err != nil {
		return err
	}
	savedVerifier, err := repo.Get(ctx, metadata.KeyVerifier)
	if err != nil {
		return err
	}
	if savedVerifier == nil {
		return client.ErrLocalDataNotAvailable
	}

	kek, err := cryptox.DeriveKEK(passphrase, wrapped.KDFSalt, wrapped.KDFParams)
	if err != nil {
		return fmt.Errorf("cannot unlock vault: %w", err)
	}
	if subtle.ConstantTimeCompare(savedVerifier, kek.Verifier()) == 0 {
		kek.Wipe()
		return client.ErrUnauthorized
	}
	dek, err := cryptox.UnwrapDEKWithKEK(kek, wrapped)
	if err != nil {
		kek.Wipe()
		return err
	}
	common.WipeByteArray(dek)

	v.cache.Set(username, keycache.Entry{KDFSalt: wrapped.KDFSalt, KEK: kek})
	v.setCurrent(username, wrapped)
	v.logger.Info(ctx, "vault unlocked", "username", username, "mode", "offline")
	return nil
}

// DataKey unwraps the DEK with the cached KEK, without re-running the KDF.
func (v *vaultService) DataKey(ctx context.Context) ([]byte, error) {
	username, wrapped := v.current()
	if username == "" || wrapped == nil {
		return nil, ErrLocked
	}
	dek, err := v.cache.Unwrap(username, wrapped)
	if errors.Is(err, keycache.ErrMiss) {
		return nil, ErrLocked
	}
	return dek, err
}

// ChangePassphrase rewraps the DEK under newPassphrase. The server accepts
// the new record only with the verifier of the old passphrase and then ends
// every other session of the account.
func (v *vaultService) ChangePassphrase(ctx context.Context, oldPassphrase, newPassphrase []byte) error {
	username, _ := v.current()
	if username == "" {
		return ErrNoSession
	}

	wrapped, err := v.client.GetWrappedKey(ctx)
	if err != nil {
		return fmt.Errorf("get wrapped key error: %w", err)
	}

	oldKEK, err := cryptox.DeriveKEK(oldPassphrase, wrapped.KDFSalt, wrapped.KDFParams)
	if err != nil {
		return cryptox.ErrUnwrap
	}
	oldVerifier := oldKEK.Verifier()
	oldKEK.Wipe()

	newKEK, next, err := rewrapDEK(oldPassphrase, newPassphrase, wrapped)
	if err != nil {
		return err
	}
	verifier := newKEK.Verifier()

	if err := v.client.UpdateWrappedKey(ctx, oldVerifier, verifier, next); err != nil {
		newKEK.Wipe()
		return fmt.Errorf("update wrapped key error: %w", err)
	}

	v.cache.Set(username, keycache.Entry{KDFSalt: next.KDFSalt, KEK: newKEK})
	v.setCurrent(username, next)

	if err := v.saveOfflineData(ctx, username, next, verifier); err != nil {
		return fmt.Errorf("offline data saving error: %w", err)
	}
	v.logger.Info(ctx, "passphrase changed", "username", username)
	return nil
}

// Lock drops the cached KEK of the current user.
func (v *vaultService) Lock(ctx context.Context) {
	username, _ := v.current()
	if username == "" {
		return
	}
	v.cache.ClearUser(username)
	v.logger.Info(ctx, "vault locked", "username", username)
}

// Logout ends the server session, clears the KEK cache and wipes local data.
// The local cleanup happens even when the server cannot be reached.
func (v *vaultService) Logout(ctx context.Context) error {
	serverErr := v.client.Logout(ctx)

	v.cache.Clear()
	v.setCurrent("", nil)

	err := dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := metadata.NewSQLiteRepository(tx).Clear(ctx); err != nil {
			return err
		}
		return notes.NewSQLiteRepository(tx).Clear(ctx)
	})
	if err != nil {
		return fmt.Errorf("clear local data: %w", err)
	}

	if serverErr != nil && !errors.Is(serverErr, client.ErrUnavailable) && !errors.Is(serverErr, client.ErrUnauthorized) {
		return serverErr
	}
	return nil
}

func (v *vaultService) Ping(ctx context.Context) error {
	return v.client.Ping(ctx)
}

func (v *vaultService) Close(ctx context.Context) error {
	v.cache.Clear()
	return v.client.Close()
}

// saveOfflineData persists what OfflineUnlock needs in a single transaction.
// Data of a previously stored different user is dropped first.
func (v *vaultService) saveOfflineData(ctx context.Context, username string, wrapped *cryptox.WrappedDEK, verifier []byte) error {
	wrappedJSON, err := json.Marshal(wrapped)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)

		saved, err := repo.Get(ctx, metadata.KeyUsername)
		if err != nil {
			return err
		}
		if saved != nil && string(saved) != username {
			if err := repo.Clear(ctx); err != nil {
				return err
			}
			if err := notes.NewSQLiteRepository(tx).Clear(ctx); err != nil {
				return err
			}
		}

		return repo.SetMany(ctx, map[string][]byte{
			metadata.KeyUsername:   []byte(username),
			metadata.KeyVerifier:   verifier,
			metadata.KeyWrappedDEK: wrappedJSON,
		})
	})
}

func loadWrappedDEK(ctx context.Context, repo metadata.Repository) (*cryptox.WrappedDEK, error) {
	raw, err := repo.Get(ctx, metadata.KeyWrappedDEK)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, client.ErrLocalDataNotAvailable
	}
	var w cryptox.WrappedDEK
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: stored wrapped key is corrupt", client.ErrLocalDataNotAvailable)
	}
	return &w, nil
}
