package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"carhist/models"
)

func TestRawCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "raw.csv")
	w, err := NewRawCSVWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.WriteRaw([]*models.RawListing{
		{Brand: "Seat", Model: "Ibiza", Seller: "A Motors", AskingPrice: "10.000 €", URL: "https://es.wallapop.com/item/1", ID: "ignored"},
	}))
	require.NoError(t, w.WriteRaw([]*models.RawListing{{Brand: "Ford"}}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "Marca,Modelo,Vendedor,Año,KM,Precio al Contado"))
	require.True(t, strings.HasSuffix(lines[0], "URL,Fecha Extracción"))
	require.True(t, strings.HasPrefix(lines[1], "Seat,Ibiza,A Motors,,,10.000 €"))
	require.NotContains(t, string(data), "ignored")
}
