package models

import "strings"

// Lifecycle states as persisted in the Estado column.
const (
	StateActive = "activo"
	StateSold   = "vendido"
)

// Canonical column names of the historical sheet and of ingested partitions
// after alias normalization.
const (
	ColID            = "ID_Unico_Coche"
	ColBrand         = "Marca"
	ColModel         = "Modelo"
	ColSeller        = "Vendedor"
	ColYear          = "Ano"
	ColMileage       = "KM"
	ColBodyType      = "Tipo"
	ColSeats         = "Plazas"
	ColDoors         = "Puertas"
	ColFuel          = "Combustible"
	ColPower         = "Potencia"
	ColTransmission  = "Conduccion"
	ColURL           = "URL"
	ColFirstSeen     = "Primera_Deteccion"
	ColState         = "Estado"
	ColSoldDate      = "Fecha_Venta"
	ColAskingPrice   = "Precio_Contado"
	ColFinancedPrice = "Precio_Financiado"
	ColExtractedAt   = "Fecha_Extraccion"

	PriceColumnPrefix = "Precio_"
)

// BaseColumns is the fixed persisted column order: identity and basic
// fields, then attributes, then control fields. Price columns follow.
var BaseColumns = []string{
	ColID, ColBrand, ColModel, ColSeller, ColYear, ColMileage,
	ColBodyType, ColSeats, ColDoors, ColFuel, ColPower, ColTransmission,
	ColURL, ColFirstSeen, ColState, ColSoldDate,
}

// PriceColumn returns the observation column name for a run date.
func PriceColumn(date string) string {
	return PriceColumnPrefix + date
}

// PriceColumnDate reports whether col is a price-observation column and
// returns its date label.
func PriceColumnDate(col string) (string, bool) {
	if !strings.HasPrefix(col, PriceColumnPrefix) {
		return "", false
	}
	if col == ColAskingPrice || col == ColFinancedPrice {
		return "", false
	}
	return strings.TrimPrefix(col, PriceColumnPrefix), true
}

// HistoricalEntry tracks one vehicle's observed price trajectory.
type HistoricalEntry struct {
	ID         string
	Brand      string
	Model      string
	Seller     string
	Year       string
	Mileage    string
	Attributes Attributes
	URL        string
	FirstSeen  string
	State      string
	SoldDate   string

	// Prices maps a run date to the displayed price observed that day.
	// Dates without an observation are absent or hold "".
	Prices map[string]string

	// Derived sort keys, recomputed on every run and never persisted.
	YearKey    int
	MileageKey int

	// Untracked marks rows that could not be given an identity. They are
	// carried through unchanged so history is never lost.
	Untracked bool
}

// Price returns the observation for date, or "" when there is none.
func (e *HistoricalEntry) Price(date string) string {
	if e.Prices == nil {
		return ""
	}
	return e.Prices[date]
}

// SetPrice records an observation for date.
func (e *HistoricalEntry) SetPrice(date, price string) {
	if e.Prices == nil {
		e.Prices = make(map[string]string)
	}
	e.Prices[date] = price
}

// Clone returns a deep copy of the entry.
func (e *HistoricalEntry) Clone() *HistoricalEntry {
	c := *e
	c.Prices = make(map[string]string, len(e.Prices))
	for k, v := range e.Prices {
		c.Prices[k] = v
	}
	return &c
}

// HistoricalTable is the full set of tracked vehicles of one sheet together
// with every observation date that has a column.
type HistoricalTable struct {
	Entries    []*HistoricalEntry
	PriceDates []string
}

// HasPriceDate reports whether a column exists for date.
func (t *HistoricalTable) HasPriceDate(date string) bool {
	for _, d := range t.PriceDates {
		if d == date {
			return true
		}
	}
	return false
}

// AddPriceDate registers a column for date if it does not exist yet.
func (t *HistoricalTable) AddPriceDate(date string) {
	if !t.HasPriceDate(date) {
		t.PriceDates = append(t.PriceDates, date)
	}
}

// Clone returns a deep copy of the table.
func (t *HistoricalTable) Clone() *HistoricalTable {
	c := &HistoricalTable{
		Entries:    make([]*HistoricalEntry, len(t.Entries)),
		PriceDates: append([]string(nil), t.PriceDates...),
	}
	for i, e := range t.Entries {
		c.Entries[i] = e.Clone()
	}
	return c
}
