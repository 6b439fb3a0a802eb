package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"carhist/models"
)

const (
	day1 = "01/03/2025"
	day2 = "02/03/2025"
	day3 = "03/03/2025"
)

func car(id, seller, brand, price string) *models.Listing {
	return &models.Listing{
		ID:          id,
		Seller:      seller,
		Brand:       brand,
		Model:       "Modelo " + id,
		Year:        "2019",
		Mileage:     "50.000 km",
		AskingPrice: price,
		URL:         "https://es.wallapop.com/item/" + id,
	}
}

func newTestReconciler(policy ReactivationPolicy) *Reconciler {
	return NewReconciler(newTestLogger(), policy)
}

func reconcile(t *testing.T, r *Reconciler, listings []*models.Listing, history *models.HistoricalTable, date string) *Result {
	t.Helper()
	res, err := r.Reconcile(listings, history, date)
	require.NoError(t, err)
	return res
}

func entryByID(t *testing.T, table *models.HistoricalTable, id string) *models.HistoricalEntry {
	t.Helper()
	for _, e := range table.Entries {
		if e.ID == id {
			return e
		}
	}
	t.Fatalf("entry %q not found", id)
	return nil
}

func TestReconcileRejectsInvalidRunDate(t *testing.T) {
	_, err := newTestReconciler("").Reconcile([]*models.Listing{car("a", "S", "Seat", "1.000 €")}, nil, "2025-03-01")
	require.Error(t, err)
}

func TestReconcileFirstRunEquivalence(t *testing.T) {
	listings := []*models.Listing{
		car("a", "Z Motors", "Seat", "10.000 €"),
		car("b", "A Motors", "Ford", "8.500 €"),
	}
	r := newTestReconciler("")

	fromNil := reconcile(t, r, listings, nil, day1)
	fromEmpty := reconcile(t, r, listings, &models.HistoricalTable{}, day1)

	if diff := cmp.Diff(Serialize(fromNil.Table), Serialize(fromEmpty.Table)); diff != "" {
		t.Errorf("nil and empty history differ (-nil +empty):\n%s", diff)
	}
	require.True(t, fromNil.Report.FirstRun)
	require.Len(t, fromNil.Report.New, 2)

	for _, e := range fromNil.Table.Entries {
		require.Equal(t, models.StateActive, e.State)
		require.Equal(t, day1, e.FirstSeen)
		require.Empty(t, e.SoldDate)
	}
	require.Equal(t, []string{day1}, fromNil.Table.PriceDates)
}

func TestReconcileNeverRemovesPriceColumns(t *testing.T) {
	r := newTestReconciler("")
	res1 := reconcile(t, r, []*models.Listing{car("a", "S", "Seat", "1.000 €"), car("b", "S", "Ford", "2.000 €")}, nil, day1)
	res2 := reconcile(t, r, []*models.Listing{car("a", "S", "Seat", "1.000 €")}, res1.Table, day2)
	res3 := reconcile(t, r, []*models.Listing{car("c", "S", "Kia", "3.000 €")}, res2.Table, day3)

	require.Equal(t, []string{day1, day2, day3}, SortPriceDates(res3.Table.PriceDates))
	require.Len(t, res3.Table.Entries, 3)

	header := Serialize(res3.Table).Header
	require.Equal(t, []string{"Precio_" + day1, "Precio_" + day2, "Precio_" + day3}, header[len(models.BaseColumns):])

	b := entryByID(t, res3.Table, "b")
	require.Equal(t, "2.000 €", b.Price(day1))
	require.Equal(t, "", b.Price(day2))

	c := entryByID(t, res3.Table, "c")
	require.Equal(t, "", c.Price(day1))
	require.Equal(t, "", c.Price(day2))
	require.Equal(t, "3.000 €", c.Price(day3))
}

func TestReconcileDoesNotMutateHistory(t *testing.T) {
	r := newTestReconciler("")
	res1 := reconcile(t, r, []*models.Listing{car("a", "S", "Seat", "1.000 €")}, nil, day1)
	before := Serialize(res1.Table)

	reconcile(t, r, []*models.Listing{car("b", "S", "Ford", "2.000 €")}, res1.Table, day2)

	if diff := cmp.Diff(before, Serialize(res1.Table)); diff != "" {
		t.Errorf("input history was modified:\n%s", diff)
	}
}

func TestReconcileVanishedIsSoldOnce(t *testing.T) {
	r := newTestReconciler("")
	res1 := reconcile(t, r, []*models.Listing{car("a", "S", "Seat", "1.000 €"), car("b", "S", "Ford", "2.000 €")}, nil, day1)
	res2 := reconcile(t, r, []*models.Listing{car("a", "S", "Seat", "1.000 €")}, res1.Table, day2)

	b := entryByID(t, res2.Table, "b")
	require.Equal(t, models.StateSold, b.State)
	require.Equal(t, day2, b.SoldDate)
	require.Len(t, res2.Report.Sold, 1)
	require.Equal(t, "b", res2.Report.Sold[0].ID)

	res3 := reconcile(t, r, []*models.Listing{car("a", "S", "Seat", "1.000 €")}, res2.Table, day3)
	b = entryByID(t, res3.Table, "b")
	require.Equal(t, models.StateSold, b.State)
	require.Equal(t, day2, b.SoldDate, "sold date must not move on later runs")
	require.Empty(t, res3.Report.Sold)
}

func TestReconcileReappearanceIsActiveWithPrice(t *testing.T) {
	r := newTestReconciler("")
	res1 := reconcile(t, r, []*models.Listing{car("a", "S", "Seat", "1.000 €"), car("b", "S", "Ford", "2.000 €")}, nil, day1)
	res2 := reconcile(t, r, []*models.Listing{car("a", "S", "Seat", "1.000 €")}, res1.Table, day2)
	res3 := reconcile(t, r, []*models.Listing{car("a", "S", "Seat", "1.000 €"), car("b", "S", "Ford", "1.900 €")}, res2.Table, day3)

	b := entryByID(t, res3.Table, "b")
	require.Equal(t, models.StateActive, b.State)
	require.Empty(t, b.SoldDate)
	require.Equal(t, "1.900 €", b.Price(day3))
	require.Equal(t, day1, b.FirstSeen)
	require.Len(t, res3.Report.Reactivated, 1)
	require.Len(t, res3.Report.PriceChanges, 1)
}

func TestReconcileReactivationPolicies(t *testing.T) {
	sold := &models.HistoricalTable{
		PriceDates: []string{day1, day2},
		Entries: []*models.HistoricalEntry{{
			ID: "a", Brand: "Seat", Seller: "S", FirstSeen: day1,
			State: models.StateSold, SoldDate: day2,
			Prices: map[string]string{day1: "1.000 €", day2: ""},
		}},
	}

	tests := []struct {
		policy    ReactivationPolicy
		soldDate  string
		firstSeen string
	}{
		{ReactivateClear, "", day1},
		{ReactivateKeep, day2, day1},
		{ReactivateRelist, "", day3},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			res := reconcile(t, newTestReconciler(tt.policy), []*models.Listing{car("a", "S", "Seat", "1.000 €")}, sold, day3)
			e := entryByID(t, res.Table, "a")
			require.Equal(t, models.StateActive, e.State)
			require.Equal(t, tt.soldDate, e.SoldDate)
			require.Equal(t, tt.firstSeen, e.FirstSeen)
		})
	}
}

func TestParseReactivationPolicy(t *testing.T) {
	p, err := ParseReactivationPolicy("")
	require.NoError(t, err)
	require.Equal(t, ReactivateClear, p)

	p, err = ParseReactivationPolicy(" Relist ")
	require.NoError(t, err)
	require.Equal(t, ReactivateRelist, p)

	_, err = ParseReactivationPolicy("forget")
	require.Error(t, err)
}

func TestReconcilePriceChangeSkipsEmptyObservations(t *testing.T) {
	history := &models.HistoricalTable{
		PriceDates: []string{day1, day2},
		Entries: []*models.HistoricalEntry{
			{
				ID: "a", Brand: "Seat", Seller: "S", State: models.StateActive, FirstSeen: day1,
				Prices: map[string]string{day1: "12.000 €", day2: ""},
			},
			{
				ID: "b", Brand: "Ford", Seller: "S", State: models.StateActive, FirstSeen: day1,
				Prices: map[string]string{day1: "9.000 €", day2: "nan"},
			},
		},
	}

	res := reconcile(t, newTestReconciler(""), []*models.Listing{
		car("a", "S", "Seat", "12.500 €"),
		car("b", "S", "Ford", "9.000 €"),
	}, history, day3)

	require.Len(t, res.Report.PriceChanges, 1)
	got := res.Report.PriceChanges[0]
	want := models.PriceChange{
		ID: "a", Brand: "Seat", Model: "", Seller: "S",
		PreviousDate: day1, PreviousPrice: "12.000 €",
		RunDate: day3, NewPrice: "12.500 €",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("price change mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 2, res.Report.Updated)
}

func TestReconcilePriceChangeAgainstPlaceholder(t *testing.T) {
	r := newTestReconciler("")
	res1 := reconcile(t, r, []*models.Listing{car("a", "S", "Seat", models.NotSpecified)}, nil, day1)
	res2 := reconcile(t, r, []*models.Listing{car("a", "S", "Seat", "5.000 €")}, res1.Table, day2)

	// the placeholder counts as an observation
	require.Len(t, res2.Report.PriceChanges, 1)

	res3 := reconcile(t, r, []*models.Listing{car("b", "S", "Kia", "5.000 €")}, res2.Table, day3)
	require.Empty(t, res3.Report.PriceChanges)
}

func TestReconcileSameDayRerunIsIdempotent(t *testing.T) {
	r := newTestReconciler("")
	listings := []*models.Listing{car("a", "S", "Seat", "1.000 €"), car("b", "T", "Ford", "2.000 €")}

	res1 := reconcile(t, r, listings, nil, day1)
	res2 := reconcile(t, r, listings, res1.Table, day1)

	if diff := cmp.Diff(Serialize(res1.Table), Serialize(res2.Table)); diff != "" {
		t.Errorf("same-day rerun changed the table:\n%s", diff)
	}
	require.Empty(t, res2.Report.New)
	require.Empty(t, res2.Report.PriceChanges)
}

func TestReconcilePartialSameDayRerunKeepsObservations(t *testing.T) {
	r := newTestReconciler("")
	res1 := reconcile(t, r, []*models.Listing{car("a", "S", "Seat", "1.000 €"), car("b", "S", "Ford", "8.000 €")}, nil, day1)
	res2 := reconcile(t, r, []*models.Listing{car("a", "S", "Seat", "1.100 €")}, res1.Table, day1)

	require.Equal(t, "8.000 €", entryByID(t, res2.Table, "b").Price(day1), "earlier observation of the day survives")
	require.Equal(t, "1.100 €", entryByID(t, res2.Table, "a").Price(day1))
	require.Equal(t, []string{day1}, res2.Table.PriceDates)
}

func TestReconcileSortOrder(t *testing.T) {
	history := &models.HistoricalTable{
		PriceDates: []string{day1},
		Entries: []*models.HistoricalEntry{
			{ID: "old", Brand: "Opel", Seller: "A Motors", State: models.StateSold, SoldDate: day1, Prices: map[string]string{}},
			{ID: "odd", Brand: "Audi", Seller: "A Motors", State: "reservado", Prices: map[string]string{}},
		},
	}

	res := reconcile(t, newTestReconciler(""), []*models.Listing{
		car("z", "Z Motors", "Seat", "1.000 €"),
		car("a2", "A Motors", "Seat", "1.000 €"),
		car("a1", "A Motors", "BMW", "1.000 €"),
	}, history, day2)

	var ids []string
	for _, e := range res.Table.Entries {
		ids = append(ids, e.ID)
	}
	require.Equal(t, []string{"a1", "a2", "z", "old", "odd"}, ids)
}

func TestSortEntriesSoldByMostRecent(t *testing.T) {
	entries := []*models.HistoricalEntry{
		{ID: "undated", State: models.StateSold},
		{ID: "older", State: models.StateSold, SoldDate: "15/01/2025"},
		{ID: "newer", State: models.StateSold, SoldDate: "02/03/2025"},
		{ID: "active", State: models.StateActive, Seller: "S"},
	}
	SortEntries(entries)

	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	require.Equal(t, []string{"active", "newer", "older", "undated"}, ids)
}

func TestReconcileCarriesUnidentifiedRows(t *testing.T) {
	history := &models.HistoricalTable{
		PriceDates: []string{day1},
		Entries: []*models.HistoricalEntry{
			{ID: "a", Brand: "Seat", Seller: "S", State: models.StateActive, Prices: map[string]string{day1: "1.000 €"}},
			{ID: "", Brand: "Ghost", Seller: "S", State: models.StateActive, Untracked: true, Prices: map[string]string{day1: "7.000 €"}},
			{ID: "a", Brand: "Seat copy", Seller: "S", State: models.StateActive, Prices: map[string]string{day1: "1.000 €"}},
		},
	}

	res := reconcile(t, newTestReconciler(""), []*models.Listing{car("a", "S", "Seat", "1.000 €")}, history, day2)

	require.Len(t, res.Table.Entries, 3, "no row may be dropped")
	require.Equal(t, 2, res.Report.Errors)
	require.Empty(t, res.Report.Sold, "untracked and duplicate rows keep their state")

	for _, e := range res.Table.Entries {
		if e.Brand == "Ghost" {
			require.Equal(t, models.StateActive, e.State)
			require.Equal(t, "7.000 €", e.Price(day1))
		}
	}
}

func TestPreviousObservation(t *testing.T) {
	e := &models.HistoricalEntry{Prices: map[string]string{
		"legacy": "500 €",
		day1:     "1.000 €",
		day2:     "",
		day3:     "1.200 €",
	}}
	dates := []string{day3, "legacy", day2, day1}

	d, p, ok := previousObservation(e, dates, day3)
	require.True(t, ok)
	require.Equal(t, day1, d)
	require.Equal(t, "1.000 €", p)

	_, _, ok = previousObservation(&models.HistoricalEntry{}, dates, day3)
	require.False(t, ok)
}
