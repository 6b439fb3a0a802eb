package services

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"carhist/models"
)

func sampleTable() *models.HistoricalTable {
	return &models.HistoricalTable{
		PriceDates: []string{day3, "legacy", day1},
		Entries: []*models.HistoricalEntry{
			{
				ID:         "a",
				Brand:      "Seat",
				Model:      "León",
				Seller:     "S",
				Year:       "2019",
				Mileage:    "45.000 km",
				Attributes: models.Attributes{Seats: "5", Doors: "5 puertas", Fuel: "Gasolina"},
				URL:        "https://es.wallapop.com/item/a",
				FirstSeen:  day1,
				State:      models.StateActive,
				Prices:     map[string]string{day1: "15.990 €", day3: "15.490 €"},
				YearKey:    2019,
				MileageKey: 45000,
			},
			{
				ID: "b", Brand: "nan", Model: "None", Seller: "S", Year: "NaN", Mileage: "null",
				FirstSeen: day1, State: models.StateSold, SoldDate: day3,
				Prices: map[string]string{"legacy": "8.000 €", day1: "nan"},
			},
		},
	}
}

func TestSerializeColumnOrder(t *testing.T) {
	grid := Serialize(sampleTable())

	want := append(append([]string{}, models.BaseColumns...),
		"Precio_legacy", "Precio_"+day1, "Precio_"+day3)
	require.Equal(t, want, grid.Header)

	for i, row := range grid.Rows {
		require.Len(t, row, len(grid.Header), "row %d", i)
	}
}

func TestSerializeRow(t *testing.T) {
	grid := Serialize(sampleTable())
	row := grid.Rows[0]

	want := []any{
		"a", "Seat", "León", "S", int64(2019), "45.000 km",
		"", int64(5), "5 puertas", "Gasolina", "", "",
		"https://es.wallapop.com/item/a", day1, models.StateActive, "",
		"", "15.990 €", "15.490 €",
	}
	if diff := cmp.Diff(want, row); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeSanitizesNullLiterals(t *testing.T) {
	grid := Serialize(sampleTable())
	row := grid.Rows[1]

	require.Equal(t, "", row[1], "Marca")
	require.Equal(t, "", row[2], "Modelo")
	require.Equal(t, "", row[4], "Ano")
	require.Equal(t, "", row[5], "KM")
	require.Equal(t, "8.000 €", row[16])
	require.Equal(t, "", row[17])
	require.Equal(t, 5, grid.Sanitized)
}

func TestSerializeIsPureAndIdempotent(t *testing.T) {
	table := sampleTable()
	before := table.Clone()

	first := Serialize(table)
	second := Serialize(table)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Serialize is not idempotent:\n%s", diff)
	}
	if diff := cmp.Diff(before, table); diff != "" {
		t.Errorf("Serialize modified its input:\n%s", diff)
	}
}

func TestSerializeNumericColumns(t *testing.T) {
	tests := []struct {
		year  string
		want  any
		fixed bool
	}{
		{"2019", int64(2019), false},
		{"Inf", int64(0), true},
		{"1e12", int64(1e10), true},
		{"-1e12", int64(-1e10), true},
		{"2019.5", 2019.5, false},
		{"hacia 2019", "hacia 2019", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, fixed := sanitizeField(models.ColYear, tt.year)
		require.Equal(t, tt.want, got, "year %q", tt.year)
		require.Equal(t, tt.fixed, fixed, "year %q", tt.year)
	}

	got, _ := sanitizeField(models.ColMileage, "125000")
	require.Equal(t, "125000", got, "KM is a display column")
}

func TestSanitizeCell(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		want  any
		fixed bool
	}{
		{"nil", nil, "", true},
		{"null literal", "None", "", true},
		{"text", "12.500 €", "12.500 €", false},
		{"nan", math.NaN(), int64(0), true},
		{"inf", math.Inf(-1), int64(0), true},
		{"too large", 2e10, int64(1e10), true},
		{"too small", -2e10, int64(-1e10), true},
		{"fraction", 1.5, 1.5, false},
		{"whole float", 3.0, int64(3), false},
		{"int", 7, int64(7), false},
		{"json number", json.Number("42"), int64(42), false},
		{"bool", true, "true", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, fixed := SanitizeCell(tt.in)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.fixed, fixed)
		})
	}
}

func TestSanitizationClosure(t *testing.T) {
	grid := Serialize(sampleTable())
	for _, row := range grid.Rows {
		for _, cell := range row {
			again, fixed := SanitizeCell(cell)
			require.False(t, fixed, "cell %#v was not clean", cell)
			require.Equal(t, cell, again)
		}
	}
}

func TestCellString(t *testing.T) {
	require.Equal(t, "2019", CellString(int64(2019)))
	require.Equal(t, "2019", CellString(2019.0))
	require.Equal(t, "1.5", CellString(json.Number("1.5")))
	require.Equal(t, "", CellString(nil))
	require.Equal(t, "", CellString("NaN"))
}
