package models

import "time"

// EntryRef identifies a vehicle in run reports.
type EntryRef struct {
	ID     string
	Brand  string
	Model  string
	Seller string
}

// PriceChange is emitted when an active vehicle's displayed price differs
// from its most recent earlier observation.
type PriceChange struct {
	ID            string `csv:"ID_Unico_Coche"`
	Brand         string `csv:"Marca"`
	Model         string `csv:"Modelo"`
	Seller        string `csv:"Vendedor"`
	PreviousDate  string `csv:"Fecha_Anterior"`
	PreviousPrice string `csv:"Precio_Anterior"`
	RunDate       string `csv:"Fecha"`
	NewPrice      string `csv:"Precio_Nuevo"`
}

// SellerStats summarises one seller's listings in the snapshot.
type SellerStats struct {
	Seller     string
	Listings   int
	Brands     int
	WithPrice  int
	PriceShare float64
	Invalid    int
}

// RunReport holds the outcome of one reconciliation run.
type RunReport struct {
	RunID   string
	RunDate string

	Partitions    int
	SnapshotSize  int
	HistoryBefore int
	HistoryAfter  int

	New          []EntryRef
	Sold         []EntryRef
	Reactivated  []EntryRef
	PriceChanges []PriceChange
	Updated      int
	Errors       int

	InvalidPrices  int
	SanitizedCells int
	FirstRun       bool

	Sellers []SellerStats
	Elapsed time.Duration
}
