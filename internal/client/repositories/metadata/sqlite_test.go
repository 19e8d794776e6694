package metadata

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

var _ Repository = (*SQLiteRepository)(nil)

func setupDB(t *testing.T, schema string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(schema)
	require.NoError(t, err)
	return db
}

const schema = `CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB NOT NULL);`

func TestSetGetUpsert(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t, schema))
	ctx := context.Background()

	v, err := r.Get(ctx, KeyUsername)
	require.NoError(t, err)
	require.Nil(t, v, "missing key is (nil, nil)")

	require.NoError(t, r.Set(ctx, KeyUsername, []byte("alice")))
	require.NoError(t, r.Set(ctx, KeyUsername, []byte("bob")))

	v, err = r.Get(ctx, KeyUsername)
	require.NoError(t, err)
	assert.Equal(t, []byte("bob"), v)
}

func TestSetManyAndClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t, schema))
	ctx := context.Background()

	require.NoError(t, r.SetMany(ctx, map[string][]byte{
		KeyBoardOrder: []byte(`{"pinned":[],"other":["a"]}`),
		KeyLastSeenID: []byte("evt-7"),
	}))

	v, err := r.Get(ctx, KeyLastSeenID)
	require.NoError(t, err)
	assert.Equal(t, []byte("evt-7"), v)
	v, err = r.Get(ctx, KeyBoardOrder)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pinned":[],"other":["a"]}`, string(v))

	require.NoError(t, r.SetMany(ctx, nil))

	require.NoError(t, r.Clear(ctx))
	v, err = r.Get(ctx, KeyLastSeenID)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	db := setupDB(t, schema)
	ctx := context.Background()
	boom := errors.New("boom")

	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := NewSQLiteRepository(tx).SetMany(ctx, map[string][]byte{
			KeyUsername:   []byte("alice"),
			KeyWrappedDEK: []byte("{}"),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	for _, key := range []string{KeyUsername, KeyWrappedDEK} {
		v, err := NewSQLiteRepository(db).Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, v, key)
	}
}

func TestNullValueIsReturnedAsNil(t *testing.T) {
	db := setupDB(t, `CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB);`)
	r := NewSQLiteRepository(db)

	_, err := db.Exec(`INSERT INTO metadata(key, value) VALUES ('bad', NULL);`)
	require.NoError(t, err)

	v, err := r.Get(context.Background(), "bad")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestErrorsAreWrapped(t *testing.T) {
	db := setupDB(t, schema)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Close())

	tests := []struct {
		name string
		call func() error
		want string
	}{
		{"get", func() error { _, err := r.Get(ctx, "k"); return err }, `read metadata "k"`},
		{"set", func() error { return r.Set(ctx, "k", []byte("v")) }, `write metadata "k"`},
		{"set many", func() error { return r.SetMany(ctx, map[string][]byte{"k": nil}) }, `write metadata "k"`},
		{"clear", func() error { return r.Clear(ctx) }, "clear metadata"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, tt.call(), tt.want)
		})
	}
}
