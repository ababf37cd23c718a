package slot

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStores_ImplementStore(t *testing.T) {
	assert.Implements(t, (*Store)(nil), new(MemoryStore))
	assert.Implements(t, (*Store)(nil), new(FileStore))
	assert.Implements(t, (*Store)(nil), new(SQLiteStore))
	assert.Implements(t, (*Store)(nil), new(PostgresStore))
}

func TestStores_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backends := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(filepath.Join(dir, "nested", "profile.json"), zap.NewNop())
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(ctx, filepath.Join(dir, "profile.db"), zap.NewNop())
			require.NoError(t, err)
			return s
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()

			_, err := store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, "k", []byte(`{"symbol":"BTC/USDT:USDT"}`)))
			got, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.JSONEq(t, `{"symbol":"BTC/USDT:USDT"}`, string(got))

			require.NoError(t, store.Put(ctx, "k", []byte(`{"symbol":"ETH/USDT:USDT"}`)))
			got, err = store.Get(ctx, "k")
			require.NoError(t, err)
			assert.JSONEq(t, `{"symbol":"ETH/USDT:USDT"}`, string(got), "second put overwrites")

			require.NoError(t, store.Delete(ctx, "k"))
			_, err = store.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, store.Delete(ctx, "k"), "deleting a missing key is not an error")
		})
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "profile.json")

	first, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, "a", []byte(`1`)))
	require.NoError(t, first.Put(ctx, "b", []byte(`"two"`)))

	second, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	got, err := second.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, `"two"`, string(got))
}

func TestFileStore_RejectsNonJSON(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "profile.json"), zap.NewNop())
	require.NoError(t, err)
	assert.Error(t, s.Put(context.Background(), "k", []byte("not json")))
}

func TestFileStore_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	s, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)

	_, err = s.Get(ctx, "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	// a save replaces the corrupt document
	require.NoError(t, s.Put(ctx, "k", []byte(`true`)))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "true", string(got))
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	value := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", value))
	value[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, 1, s.Len())
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := Open(context.Background(), Options{Kind: "redis"}, zap.NewNop())
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS dashboard_slots")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	store, err := NewPostgresStore(ctx, mock, zap.NewNop())
	require.NoError(t, err)

	t.Run("get existing", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"value"}).AddRow([]byte(`{"theme":"dark"}`))
		mock.ExpectQuery(regexp.QuoteMeta(pgSelect)).WithArgs("bingx_ui_profile_v1").WillReturnRows(rows)

		got, err := store.Get(ctx, "bingx_ui_profile_v1")
		require.NoError(t, err)
		assert.Equal(t, `{"theme":"dark"}`, string(got))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get missing", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(pgSelect)).WithArgs("nope").WillReturnError(pgx.ErrNoRows)

		_, err := store.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get db error", func(t *testing.T) {
		mock.ExpectQuery(".*").WillReturnError(assert.AnError)

		_, err := store.Get(ctx, "k")
		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("put", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dashboard_slots")).
			WithArgs("k", []byte(`{}`)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, store.Put(ctx, "k", []byte(`{}`)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(pgDelete)).WithArgs("k").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, store.Delete(ctx, "k"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete db error", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(pgDelete)).WithArgs("k").WillReturnError(assert.AnError)

		assert.Error(t, store.Delete(ctx, "k"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNewPostgresStore_CreateTableFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(".*").WillReturnError(assert.AnError)
	_, err = NewPostgresStore(context.Background(), mock, zap.NewNop())
	assert.Error(t, err)
}
