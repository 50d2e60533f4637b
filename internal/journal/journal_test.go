package journal

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(chainID int64, futureID, address string) *Record {
	return &Record{
		RunID:        "run-1",
		DeploymentID: DeploymentID(chainID),
		ChainID:      chainID,
		FutureID:     futureID,
		ModuleID:     "OwlCoinModule",
		Contract:     "OwlCoin",
		Address:      address,
		TxHash:       "0xabc",
		BlockNumber:  7,
		DeployedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ArgsHash:     "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "journal.db"))
	require.NoError(t, err)

	return map[string]Store{
		"file":   NewFileStore(t.TempDir()),
		"sqlite": sqlite,
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			_, err := store.Get(ctx, 97, "OwlCoinModule#OwlCoin")
			assert.ErrorIs(t, err, ErrNotFound)

			list, err := store.List(ctx, 0)
			require.NoError(t, err)
			assert.Empty(t, list)

			require.NoError(t, store.Put(ctx, record(97, "OwlCoinModule#OwlCoin", "0x01")))
			require.NoError(t, store.Put(ctx, record(97, "OwlPresaleModule#OwlPresale", "0x02")))
			require.NoError(t, store.Put(ctx, record(56, "OwlCoinModule#OwlCoin", "0x03")))

			got, err := store.Get(ctx, 97, "OwlCoinModule#OwlCoin")
			require.NoError(t, err)
			assert.Equal(t, record(97, "OwlCoinModule#OwlCoin", "0x01"), got)

			// Replacing keeps a single record per future.
			require.NoError(t, store.Put(ctx, record(97, "OwlCoinModule#OwlCoin", "0x04")))
			got, err = store.Get(ctx, 97, "OwlCoinModule#OwlCoin")
			require.NoError(t, err)
			assert.Equal(t, "0x04", got.Address)

			list, err = store.List(ctx, 97)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "OwlCoinModule#OwlCoin", list[0].FutureID)
			assert.Equal(t, "OwlPresaleModule#OwlPresale", list[1].FutureID)

			all, err := store.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, int64(56), all[0].ChainID)

			require.NoError(t, store.Reset(ctx, 97))
			list, err = store.List(ctx, 97)
			require.NoError(t, err)
			assert.Empty(t, list)

			_, err = store.Get(ctx, 56, "OwlCoinModule#OwlCoin")
			assert.NoError(t, err)
		})
	}
}

func TestPut_InvalidRecord(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		rec  *Record
	}{
		{"no chain", record(0, "M#C", "0x01")},
		{"no future", record(1, "", "0x01")},
		{"no address", record(1, "M#C", "")},
	}

	for name, store := range stores(t) {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				assert.ErrorIs(t, store.Put(ctx, tt.rec), ErrInvalidRecord)
			})
		}
		store.Close()
	}
}

func TestFileStore_Layout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)

	require.NoError(t, store.Put(ctx, record(31337, "OwlCoinModule#OwlCoin", "0x5FbDB2315678afecb367f032d93F642f64180aa3")))

	data, err := os.ReadFile(filepath.Join(dir, "chain-31337", "deployed_addresses.json"))
	require.NoError(t, err)

	var addresses map[string]string
	require.NoError(t, json.Unmarshal(data, &addresses))
	assert.Equal(t, map[string]string{
		"OwlCoinModule#OwlCoin": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
	}, addresses)

	assert.FileExists(t, filepath.Join(dir, "chain-31337", "journal.json"))

	// Unrelated directories are ignored when listing every chain.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "chain-abc"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "other"), 0755))
	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "journal.db")

	store, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, record(97, "OwlCoinModule#OwlCoin", "0x01")))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(dsn)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, 97, "OwlCoinModule#OwlCoin")
	require.NoError(t, err)
	assert.Equal(t, "0x01", got.Address)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(Config{Driver: DriverSQLite, Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())
	assert.FileExists(t, filepath.Join(dir, "journal.db"))

	_, err = Open(Config{Driver: "postgres"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
