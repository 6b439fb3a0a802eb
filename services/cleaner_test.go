package services

import (
	"testing"
	"time"

	"carhist/models"
	"carhist/utils"
)

func newTestLogger() *utils.Logger { return utils.NewNopLogger() }

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"12.500 €", 12500},
		{"9,990€", 9990},
		{"1.250.000 €", 1250000},
		{"No especificado", 0},
		{"", 0},
		{"Consultar", 0},
	}

	for _, tt := range tests {
		got := ParsePrice(tt.raw)
		if got != tt.want {
			t.Errorf("ParsePrice(%q) = %d; want %d", tt.raw, got, tt.want)
		}
	}
}

func TestParseMileage(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"125.000 km", 125000},
		{"85,500 km", 85500},
		{"12 000 km", 12000},
		{"0 km", 0},
		{"No especificado", 0},
		{"km", 0},
	}

	for _, tt := range tests {
		got := ParseMileage(tt.raw)
		if got != tt.want {
			t.Errorf("ParseMileage(%q) = %d; want %d", tt.raw, got, tt.want)
		}
	}
}

func TestParseYear(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		raw  string
		want int
	}{
		{"2018", 2018},
		{"Matriculado en 2020", 2020},
		{"2026", 2026},
		{"2027", 0},
		{"1985", 0},
		{"No especificado", 0},
		{"18", 0},
	}

	for _, tt := range tests {
		got := ParseYear(tt.raw, now)
		if got != tt.want {
			t.Errorf("ParseYear(%q) = %d; want %d", tt.raw, got, tt.want)
		}
	}
}

func TestCleanerKeepsDisplayStrings(t *testing.T) {
	c := NewCleaner(newTestLogger(), DefaultPriceBounds)
	raw := []*models.RawListing{{
		Brand:       "  Seat ",
		Model:       "León",
		Seller:      "Autos Pepe",
		Year:        "2019",
		Mileage:     "45.000 km",
		AskingPrice: "15.990 €",
		URL:         "https://es.wallapop.com/item/seat-leon-1",
	}}

	cleaned, invalid := c.Clean(raw)
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(cleaned))
	}
	if invalid != 0 {
		t.Errorf("expected no invalid prices, got %d", invalid)
	}
	l := cleaned[0]
	if l.Brand != "  Seat " || l.Mileage != "45.000 km" || l.AskingPrice != "15.990 €" {
		t.Errorf("display strings were modified: %+v", l)
	}
	if l.MileageKey != 45000 || l.YearKey != 2019 || l.PriceValue != 15990 {
		t.Errorf("keys: mileage=%d year=%d price=%d", l.MileageKey, l.YearKey, l.PriceValue)
	}
	if l.ID != URLID(raw[0].URL) {
		t.Errorf("ID = %q; want URL identity", l.ID)
	}
}

func TestCleanerFlagsOutOfRangePrices(t *testing.T) {
	c := NewCleaner(newTestLogger(), PriceBounds{Min: 500, Max: 500000})
	raw := []*models.RawListing{
		{AskingPrice: "300 €", URL: "u1"},
		{AskingPrice: "500 €", URL: "u2"},
		{AskingPrice: "500.000 €", URL: "u3"},
		{AskingPrice: "600.000 €", URL: "u4"},
		{AskingPrice: models.NotSpecified, URL: "u5"},
	}

	cleaned, invalid := c.Clean(raw)
	if len(cleaned) != len(raw) {
		t.Errorf("invalid prices must not drop listings: got %d", len(cleaned))
	}
	if invalid != 3 {
		t.Errorf("invalid = %d; want 3", invalid)
	}
	want := []bool{false, true, true, false, false}
	for i, l := range cleaned {
		if l.PriceValid != want[i] {
			t.Errorf("listing %d PriceValid = %v; want %v", i, l.PriceValid, want[i])
		}
	}
}
