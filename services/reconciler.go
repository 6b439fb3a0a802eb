package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"carhist/models"
	"carhist/utils"
)

// RunDateLayout is the display format of run dates and price column labels.
const RunDateLayout = "02/01/2006"

// ReactivationPolicy decides what happens to a sold vehicle whose listing
// shows up again.
type ReactivationPolicy string

const (
	// ReactivateClear marks the vehicle active again and clears its sold date.
	ReactivateClear ReactivationPolicy = "clear"
	// ReactivateKeep marks the vehicle active and keeps the last sold date.
	ReactivateKeep ReactivationPolicy = "keep"
	// ReactivateRelist treats the reappearance as a new listing period: the
	// sold date is cleared and first-seen moves to the run date.
	ReactivateRelist ReactivationPolicy = "relist"
)

// ParseReactivationPolicy parses a policy name. Empty means ReactivateClear.
func ParseReactivationPolicy(s string) (ReactivationPolicy, error) {
	switch p := ReactivationPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ReactivateClear, nil
	case ReactivateClear, ReactivateKeep, ReactivateRelist:
		return p, nil
	default:
		return "", fmt.Errorf("unknown reactivation policy %q", s)
	}
}

// Reconciler merges a run's snapshot into the historical table.
type Reconciler struct {
	logger *utils.Logger
	policy ReactivationPolicy
	now    func() time.Time
}

// NewReconciler creates a Reconciler applying the given reactivation policy.
func NewReconciler(logger *utils.Logger, policy ReactivationPolicy) *Reconciler {
	if policy == "" {
		policy = ReactivateClear
	}
	return &Reconciler{logger: logger, policy: policy, now: time.Now}
}

// Result is the updated historical table plus what changed in this run.
type Result struct {
	Table  *models.HistoricalTable
	Report *models.RunReport
}

// Reconcile diffs listings against history and returns the updated table.
// history may be nil on the first run; it is never mutated. Rows that fail
// to process are counted in Report.Errors and skipped.
func (r *Reconciler) Reconcile(listings []*models.Listing, history *models.HistoricalTable, runDate string) (*Result, error) {
	run, ok := parseDate(runDate)
	if !ok {
		return nil, fmt.Errorf("reconcile: invalid run date %q", runDate)
	}
	runDate = run.Format(RunDateLayout)

	report := &models.RunReport{RunDate: runDate, SnapshotSize: len(listings)}

	var table *models.HistoricalTable
	if history == nil || len(history.Entries) == 0 {
		report.FirstRun = true
		table = &models.HistoricalTable{}
		if history != nil {
			table.PriceDates = append(table.PriceDates, history.PriceDates...)
		}
		r.logger.Info("[reconciler] First run: building history from %d listings", len(listings))
	} else {
		table = history.Clone()
		report.HistoryBefore = len(table.Entries)
	}

	table.AddPriceDate(runDate)
	priorDates := table.PriceDates

	index := r.indexEntries(table, report)

	current := make(map[string]struct{}, len(listings))
	for _, l := range listings {
		if l == nil || l.ID == "" {
			r.recordError(report, &RecordProcessingError{Stage: "snapshot", Err: errors.New("listing without identity")})
			continue
		}
		if _, dup := current[l.ID]; dup {
			continue
		}
		current[l.ID] = struct{}{}

		if e, ok := index[l.ID]; ok {
			if err := r.updateExisting(e, l, runDate, priorDates, report); err != nil {
				r.recordError(report, err)
			}
			continue
		}

		e, err := r.newEntry(l, runDate, priorDates)
		if err != nil {
			r.recordError(report, err)
			continue
		}
		table.Entries = append(table.Entries, e)
		index[e.ID] = e
		report.New = append(report.New, refOf(e))
	}

	for _, e := range table.Entries {
		if e.Untracked {
			continue
		}
		if _, seen := current[e.ID]; seen {
			continue
		}
		if index[e.ID] != e {
			continue
		}
		r.markVanished(e, runDate, report)
	}

	now := r.now()
	for _, e := range table.Entries {
		e.MileageKey = ParseMileage(e.Mileage)
		e.YearKey = ParseYear(e.Year, now)
	}

	SortEntries(table.Entries)
	report.HistoryAfter = len(table.Entries)

	r.logger.Info("[reconciler] %s: %d new, %d updated, %d sold, %d reactivated, %d price changes, %d errors",
		runDate, len(report.New), report.Updated, len(report.Sold), len(report.Reactivated),
		len(report.PriceChanges), report.Errors)

	return &Result{Table: table, Report: report}, nil
}

// indexEntries maps identities to their entry. Rows without identity and
// later duplicates of an identity are left out of the index and carried
// through untouched.
func (r *Reconciler) indexEntries(table *models.HistoricalTable, report *models.RunReport) map[string]*models.HistoricalEntry {
	index := make(map[string]*models.HistoricalEntry, len(table.Entries))
	for _, e := range table.Entries {
		if e.Untracked || e.ID == "" {
			e.Untracked = true
			r.recordError(report, &RecordProcessingError{Stage: "history", Err: errors.New("row has no identity, carried unchanged")})
			continue
		}
		if _, dup := index[e.ID]; dup {
			r.recordError(report, &RecordProcessingError{Stage: "history", ID: e.ID, Err: errors.New("duplicate identity, carried unchanged")})
			continue
		}
		index[e.ID] = e
	}
	return index
}

func (r *Reconciler) updateExisting(e *models.HistoricalEntry, l *models.Listing, runDate string, dates []string, report *models.RunReport) error {
	price := l.AskingPrice
	if price == "" {
		price = models.NotSpecified
	}

	prevDate, prevPrice, found := previousObservation(e, dates, runDate)
	e.SetPrice(runDate, price)

	if e.State == models.StateSold {
		r.reactivate(e, runDate)
		report.Reactivated = append(report.Reactivated, refOf(e))
	}
	e.State = models.StateActive

	if found && prevPrice != price {
		report.PriceChanges = append(report.PriceChanges, models.PriceChange{
			ID:            e.ID,
			Brand:         e.Brand,
			Model:         e.Model,
			Seller:        e.Seller,
			PreviousDate:  prevDate,
			PreviousPrice: prevPrice,
			RunDate:       runDate,
			NewPrice:      price,
		})
	}
	report.Updated++
	return nil
}

func (r *Reconciler) reactivate(e *models.HistoricalEntry, runDate string) {
	r.logger.Info("[reconciler] %s %s (%s) is listed again after being sold on %s",
		e.Brand, e.Model, e.Seller, e.SoldDate)

	switch r.policy {
	case ReactivateKeep:
	case ReactivateRelist:
		e.SoldDate = ""
		e.FirstSeen = runDate
	default:
		e.SoldDate = ""
	}
}

// markVanished applies the active → sold transition once. Entries already
// sold keep their original sold date.
func (r *Reconciler) markVanished(e *models.HistoricalEntry, runDate string, report *models.RunReport) {
	if e.State != models.StateActive {
		return
	}
	e.State = models.StateSold
	e.SoldDate = runDate
	report.Sold = append(report.Sold, refOf(e))
}

func (r *Reconciler) newEntry(l *models.Listing, runDate string, dates []string) (*models.HistoricalEntry, error) {
	if l.URL == "" && l.Seller == "" && l.Brand == "" {
		return nil, &RecordProcessingError{Stage: "new", ID: l.ID, Err: errors.New("listing has no descriptive fields")}
	}

	price := l.AskingPrice
	if price == "" {
		price = models.NotSpecified
	}

	e := &models.HistoricalEntry{
		ID:         l.ID,
		Brand:      orNotSpecified(l.Brand),
		Model:      orNotSpecified(l.Model),
		Seller:     orNotSpecified(l.Seller),
		Year:       orNotSpecified(l.Year),
		Mileage:    orNotSpecified(l.Mileage),
		Attributes: l.Attributes,
		URL:        l.URL,
		FirstSeen:  runDate,
		State:      models.StateActive,
		SoldDate:   "",
		Prices:     make(map[string]string, len(dates)),
	}
	for _, d := range dates {
		e.Prices[d] = ""
	}
	e.Prices[runDate] = price
	return e, nil
}

func (r *Reconciler) recordError(report *models.RunReport, err error) {
	report.Errors++
	r.logger.Warn("[reconciler] Skipping row: %v", err)
}

// previousObservation finds the most recent non-empty price recorded before
// runDate. Columns whose label is not a date count as the oldest.
func previousObservation(e *models.HistoricalEntry, dates []string, runDate string) (string, string, bool) {
	run, _ := parseDate(runDate)
	ordered := SortPriceDates(dates)
	for i := len(ordered) - 1; i >= 0; i-- {
		d := ordered[i]
		if d == runDate {
			continue
		}
		if t, ok := parseDate(d); ok && !t.Before(run) {
			continue
		}
		if v := strings.TrimSpace(e.Price(d)); v != "" && !isNullLike(v) {
			return d, v, true
		}
	}
	return "", "", false
}

// SortEntries orders entries for persistence: active vehicles by seller then
// brand, then sold vehicles by most recent sale (undated last), then any
// other state in original order. The sort is stable.
func SortEntries(entries []*models.HistoricalEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		ra, rb := stateRank(a.State), stateRank(b.State)
		if ra != rb {
			return ra < rb
		}
		switch ra {
		case 0:
			if a.Seller != b.Seller {
				return a.Seller < b.Seller
			}
			return a.Brand < b.Brand
		case 1:
			ta, oka := parseDate(a.SoldDate)
			tb, okb := parseDate(b.SoldDate)
			if oka != okb {
				return oka
			}
			return oka && ta.After(tb)
		}
		return false
	})
}

func stateRank(state string) int {
	switch state {
	case models.StateActive:
		return 0
	case models.StateSold:
		return 1
	default:
		return 2
	}
}

// SortPriceDates returns date labels in chronological order. Labels that do
// not parse as dates sort first, in their original relative order.
func SortPriceDates(dates []string) []string {
	out := append([]string(nil), dates...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, oki := parseDate(out[i])
		tj, okj := parseDate(out[j])
		if oki != okj {
			return !oki
		}
		return oki && ti.Before(tj)
	})
	return out
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2/1/2006", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func refOf(e *models.HistoricalEntry) models.EntryRef {
	return models.EntryRef{ID: e.ID, Brand: e.Brand, Model: e.Model, Seller: e.Seller}
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return models.NotSpecified
	}
	return s
}
