package services

import (
	"fmt"
	"strings"

	"carhist/models"
	"carhist/storage"
	"carhist/utils"
)

// ParseHistory turns a stored historical sheet back into a table. A sheet
// with a header but no rows yields an empty table. A sheet with rows but
// neither an identity nor a URL column fails with ErrCorruptHistory. Columns
// that are neither base nor price columns are dropped.
func ParseHistory(sheet *storage.Sheet, logger *utils.Logger) (*models.HistoricalTable, error) {
	header := CanonicalHeader(sheet.Header)

	cols := make(map[string]int, len(header))
	table := &models.HistoricalTable{}
	var dropped []string
	for i, h := range header {
		if date, ok := models.PriceColumnDate(h); ok {
			table.AddPriceDate(normalizeDateLabel(date))
			continue
		}
		if _, dup := cols[h]; dup {
			continue
		}
		cols[h] = i
		if !isBaseColumn(h) {
			dropped = append(dropped, h)
		}
	}
	if len(dropped) > 0 {
		logger.Debug("[history] Ignoring non-history columns: %s", strings.Join(dropped, ", "))
	}

	if len(sheet.Rows) == 0 {
		return table, nil
	}

	_, hasID := cols[models.ColID]
	_, hasURL := cols[models.ColURL]
	if !hasID && !hasURL {
		return nil, fmt.Errorf("sheet %q has neither %s nor %s column: %w",
			sheet.Name, models.ColID, models.ColURL, ErrCorruptHistory)
	}

	for _, row := range sheet.Rows {
		cell := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(CellString(row[i]))
		}

		e := &models.HistoricalEntry{
			ID:      cell(models.ColID),
			Brand:   cell(models.ColBrand),
			Model:   cell(models.ColModel),
			Seller:  cell(models.ColSeller),
			Year:    cell(models.ColYear),
			Mileage: cell(models.ColMileage),
			Attributes: models.Attributes{
				BodyType:     cell(models.ColBodyType),
				Seats:        cell(models.ColSeats),
				Doors:        cell(models.ColDoors),
				Fuel:         cell(models.ColFuel),
				Power:        cell(models.ColPower),
				Transmission: cell(models.ColTransmission),
			},
			URL:       cell(models.ColURL),
			FirstSeen: cell(models.ColFirstSeen),
			State:     cell(models.ColState),
			SoldDate:  cell(models.ColSoldDate),
			Prices:    make(map[string]string, len(table.PriceDates)),
		}

		for i, h := range header {
			date, ok := models.PriceColumnDate(h)
			if !ok {
				continue
			}
			date = normalizeDateLabel(date)
			var v string
			if i < len(row) {
				v = strings.TrimSpace(CellString(row[i]))
			}
			if existing := e.Prices[date]; existing == "" {
				e.Prices[date] = v
			}
		}

		if e.ID == "" {
			e.ID = deriveHistoryID(e)
			if e.ID == "" {
				e.Untracked = true
			}
		}
		if e.State == "" && !e.Untracked {
			logger.Warn("[history] Row %s has no state, assuming %s", e.ID, models.StateActive)
			e.State = models.StateActive
		}

		table.Entries = append(table.Entries, e)
	}
	return table, nil
}

// deriveHistoryID recovers the identity of a row written without one, using
// the same rules as for fresh listings. Rows with no usable field get "".
func deriveHistoryID(e *models.HistoricalEntry) string {
	if isPresent(e.URL) {
		return URLID(e.URL)
	}
	raw := &models.RawListing{Seller: e.Seller, Brand: e.Brand, Model: e.Model, Mileage: e.Mileage}
	for _, v := range []string{e.Seller, e.Brand, e.Model, e.Mileage} {
		if isPresent(v) {
			return ResolveID(raw)
		}
	}
	return ""
}

// normalizeDateLabel zero-pads date labels so "1/3/2025" and "01/03/2025"
// share one column. Labels that are not dates are kept as they are.
func normalizeDateLabel(label string) string {
	if t, ok := parseDate(label); ok {
		return t.Format(RunDateLayout)
	}
	return label
}

func isBaseColumn(col string) bool {
	for _, c := range models.BaseColumns {
		if c == col {
			return true
		}
	}
	return false
}
