package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/gophnotes/internal/client/client"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/keycache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) (*vaultService, *fakeClient, *keycache.Cache) {
	t.Helper()
	useCheapKDF(t)
	fc := newFakeClient()
	cache := keycache.New()
	v := NewVaultService(fc, newTestDB(t), cache, nil).(*vaultService)
	return v, fc, cache
}

func TestVault_RegisterAndOnlineUnlock(t *testing.T) {
	ctx := context.Background()
	v, fc, cache := newTestVault(t)

	require.NoError(t, v.Register(ctx, "alice", []byte("correct horse")))
	require.NotNil(t, fc.wrapped)
	assert.Equal(t, cheapParams, fc.wrapped.KDFParams)

	_, err := v.DataKey(ctx)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, v.OnlineUnlock(ctx, "alice", []byte("correct horse")))
	assert.Equal(t, "alice", v.Username())
	assert.Equal(t, 1, cache.Len())

	dek1, err := v.DataKey(ctx)
	require.NoError(t, err)
	dek2, err := v.DataKey(ctx)
	require.NoError(t, err)
	assert.Len(t, dek1, 32)
	assert.Equal(t, dek1, dek2)

	repo := metadata.NewSQLiteRepository(v.db)
	got, err := repo.Get(ctx, metadata.KeyUsername)
	require.NoError(t, err)
	assert.Equal(t, "alice", string(got))
	got, err = repo.Get(ctx, metadata.KeyVerifier)
	require.NoError(t, err)
	assert.Equal(t, fc.verifier, got)

	stored, err := loadWrappedDEK(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, fc.wrapped.KDFSalt, stored.KDFSalt)
	got, err = repo.Get(ctx, "kdf_salt")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestVault_OnlineUnlock_WrongPassphrase(t *testing.T) {
	ctx := context.Background()
	v, _, cache := newTestVault(t)

	require.NoError(t, v.Register(ctx, "alice", []byte("right")))
	err := v.OnlineUnlock(ctx, "alice", []byte("wrong"))
	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Equal(t, 0, cache.Len())
	assert.Empty(t, v.Username())
}

func TestVault_OnlineUnlock_UnknownUser(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newTestVault(t)

	require.NoError(t, v.Register(ctx, "alice", []byte("pw")))
	err := v.OnlineUnlock(ctx, "bob", []byte("pw"))
	assert.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestVault_OnlineUnlock_RejectsServerKDFParams(t *testing.T) {
	tests := []struct {
		name   string
		params cryptox.KDFParams
	}{
		{"weak argon2id", cryptox.KDFParams{Algorithm: cryptox.KDFArgon2id, KeyLen: cryptox.KeyLen, Time: 1, MemoryKiB: 8, Threads: 1}},
		{"weak scrypt", cryptox.KDFParams{Algorithm: cryptox.KDFScrypt, KeyLen: cryptox.KeyLen, N: 2, R: 1, P: 1}},
		{"huge argon2id", cryptox.KDFParams{Algorithm: cryptox.KDFArgon2id, KeyLen: cryptox.KeyLen, Time: 1 << 31, MemoryKiB: 4294967295, Threads: 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			v, fc, cache := newTestVault(t)
			require.NoError(t, v.Register(ctx, "alice", []byte("pw")))
			fc.wrapped.KDFParams = tt.params

			err := v.OnlineUnlock(ctx, "alice", []byte("pw"))
			require.ErrorIs(t, err, cryptox.ErrKeyDerivation)
			assert.False(t, fc.loggedIn)
			assert.Equal(t, 0, cache.Len())
		})
	}
}

func TestVault_OnlineUnlock_Unavailable(t *testing.T) {
	ctx := context.Background()
	v, fc, _ := newTestVault(t)
	fc.online = false

	err := v.OnlineUnlock(ctx, "alice", []byte("pw"))
	assert.ErrorIs(t, err, client.ErrUnavailable)
}

func TestVault_OfflineUnlock(t *testing.T) {
	ctx := context.Background()
	v, fc, cache := newTestVault(t)

	require.NoError(t, v.Register(ctx, "alice", []byte("pw")))
	require.NoError(t, v.OnlineUnlock(ctx, "alice", []byte("pw")))
	online, err := v.DataKey(ctx)
	require.NoError(t, err)

	v.Lock(ctx)
	assert.Equal(t, 0, cache.Len())
	_, err = v.DataKey(ctx)
	assert.ErrorIs(t, err, ErrLocked)

	fc.online = false

	assert.ErrorIs(t, v.OfflineUnlock(ctx, "alice", []byte("nope")), client.ErrUnauthorized)
	assert.ErrorIs(t, v.OfflineUnlock(ctx, "bob", []byte("pw")), client.ErrUnauthorized)

	require.NoError(t, v.OfflineUnlock(ctx, "alice", []byte("pw")))
	offline, err := v.DataKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, online, offline)
}

func TestVault_OfflineUnlock_NoLocalData(t *testing.T) {
	v, _, _ := newTestVault(t)
	err := v.OfflineUnlock(context.Background(), "alice", []byte("pw"))
	assert.ErrorIs(t, err, client.ErrLocalDataNotAvailable)
}

func TestVault_ChangePassphrase(t *testing.T) {
	ctx := context.Background()
	v, fc, _ := newTestVault(t)

	require.NoError(t, v.Register(ctx, "alice", []byte("old")))
	require.NoError(t, v.OnlineUnlock(ctx, "alice", []byte("old")))
	before, err := v.DataKey(ctx)
	require.NoError(t, err)
	oldSalt := fc.wrapped.KDFSalt

	require.NoError(t, v.ChangePassphrase(ctx, []byte("old"), []byte("new")))
	assert.NotEqual(t, oldSalt, fc.wrapped.KDFSalt)

	after, err := v.DataKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	v.Lock(ctx)
	assert.ErrorIs(t, v.OnlineUnlock(ctx, "alice", []byte("old")), client.ErrUnauthorized)
	require.NoError(t, v.OnlineUnlock(ctx, "alice", []byte("new")))
}

func TestVault_ChangePassphrase_WrongOld(t *testing.T) {
	ctx := context.Background()
	v, fc, _ := newTestVault(t)

	require.NoError(t, v.Register(ctx, "alice", []byte("old")))
	require.NoError(t, v.OnlineUnlock(ctx, "alice", []byte("old")))
	wrapped := fc.wrapped

	err := v.ChangePassphrase(ctx, []byte("guess"), []byte("new"))
	require.Error(t, err)
	assert.Same(t, wrapped, fc.wrapped)
}

func TestVault_ChangePassphrase_NoSession(t *testing.T) {
	v, _, _ := newTestVault(t)
	err := v.ChangePassphrase(context.Background(), []byte("a"), []byte("b"))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestVault_Logout(t *testing.T) {
	ctx := context.Background()
	v, fc, cache := newTestVault(t)

	require.NoError(t, v.Register(ctx, "alice", []byte("pw")))
	require.NoError(t, v.OnlineUnlock(ctx, "alice", []byte("pw")))

	fc.logoutErr = client.ErrUnavailable
	require.NoError(t, v.Logout(ctx))

	assert.Equal(t, 0, cache.Len())
	assert.Empty(t, v.Username())
	assert.ErrorIs(t, v.OfflineUnlock(ctx, "alice", []byte("pw")), client.ErrLocalDataNotAvailable)
}

func TestVault_Logout_ServerError(t *testing.T) {
	ctx := context.Background()
	v, fc, _ := newTestVault(t)
	fc.logoutErr = errors.New("boom")

	err := v.Logout(ctx)
	assert.EqualError(t, err, "boom")
}

func TestVault_SwitchUserDropsLocalData(t *testing.T) {
	ctx := context.Background()
	v, fc, _ := newTestVault(t)

	require.NoError(t, v.Register(ctx, "alice", []byte("pw")))
	require.NoError(t, v.OnlineUnlock(ctx, "alice", []byte("pw")))
	repo := metadata.NewSQLiteRepository(v.db)
	require.NoError(t, repo.Set(ctx, metadata.KeyBoardOrder, []byte(`{"pinned":["x"]}`)))

	fc.username = ""
	require.NoError(t, v.Register(ctx, "bob", []byte("pw2")))
	require.NoError(t, v.OnlineUnlock(ctx, "bob", []byte("pw2")))

	got, err := repo.Get(ctx, metadata.KeyBoardOrder)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = repo.Get(ctx, metadata.KeyUsername)
	require.NoError(t, err)
	assert.Equal(t, "bob", string(got))
}

func TestVault_DataKeyDuringLock(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newTestVault(t)
	require.NoError(t, v.Register(ctx, "alice", []byte("pw")))
	require.NoError(t, v.OnlineUnlock(ctx, "alice", []byte("pw")))
	want, err := v.DataKey(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 100 {
			dek, err := v.DataKey(ctx)
			if err != nil {
				assert.ErrorIs(t, err, ErrLocked)
				continue
			}
			assert.Equal(t, want, dek)
		}
	}()
	go func() {
		defer wg.Done()
		for range 3 {
			v.Lock(ctx)
			assert.NoError(t, v.OfflineUnlock(ctx, "alice", []byte("pw")))
		}
	}()
	wg.Wait()
}
