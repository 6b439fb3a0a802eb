package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewCSVStore(t.TempDir())
	require.NoError(t, err)

	header := []string{"ID_Unico_Coche", "Ano", "Precio_01/03/2025"}
	rows := [][]any{
		{"abc", int64(2019), "10.000 €"},
		{"def", nil, 1.5},
	}
	require.NoError(t, store.Write(ctx, "Data_Historico", header, rows))

	sheet, err := store.Read(ctx, "Data_Historico")
	require.NoError(t, err)
	require.Equal(t, header, sheet.Header)
	require.Equal(t, [][]any{
		{"abc", "2019", "10.000 €"},
		{"def", "", "1.5"},
	}, sheet.Rows)
}

func TestCSVStoreNotFound(t *testing.T) {
	store, err := NewCSVStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrSheetNotFound), "got %v", err)
}

func TestCSVStoreOverwriteAndList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewCSVStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, "SCR-J1 01/03/25", []string{"URL"}, [][]any{{"a"}, {"b"}}))
	require.NoError(t, store.Write(ctx, "SCR-J1 01/03/25", []string{"URL"}, [][]any{{"c"}}))
	require.NoError(t, store.Write(ctx, "Data_Historico", []string{"URL"}, nil))

	sheet, err := store.Read(ctx, "SCR-J1 01/03/25")
	require.NoError(t, err)
	require.Equal(t, [][]any{{"c"}}, sheet.Rows)

	names, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Data_Historico", "SCR-J1 01/03/25"}, names)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "no temporary files are left behind")
}

func TestCSVStoreHeaderOnlySheet(t *testing.T) {
	ctx := context.Background()
	store, err := NewCSVStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, "empty", []string{"Marca", "URL"}, nil))
	sheet, err := store.Read(ctx, "empty")
	require.NoError(t, err)
	require.Equal(t, []string{"Marca", "URL"}, sheet.Header)
	require.Empty(t, sheet.Rows)
	require.Empty(t, sheet.Records())
}

func TestCSVStoreCancelledContext(t *testing.T) {
	store, err := NewCSVStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, store.Write(ctx, "x", []string{"a"}, nil), context.Canceled)
}

func TestSheetRecords(t *testing.T) {
	s := &Sheet{
		Header: []string{"a", "b"},
		Rows:   [][]any{{"1"}, {"2", "3", "extra"}},
	}
	require.Equal(t, []map[string]any{
		{"a": "1", "b": nil},
		{"a": "2", "b": "3"},
	}, s.Records())
}
