package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"carhist/models"
)

const numericLimit = 1e10

// numericColumns are persisted as numbers when their display value is a
// plain numeral, the way the spreadsheet would store them.
var numericColumns = map[string]bool{
	models.ColYear:  true,
	models.ColSeats: true,
	models.ColDoors: true,
}

// nullLiterals are strings left behind by earlier round-trips of missing
// values through the store.
var nullLiterals = map[string]bool{
	"nan":  true,
	"None": true,
	"NaN":  true,
	"null": true,
}

// Grid is a rectangular sheet ready for the store. Sanitized counts the
// cells whose value had to be corrected.
type Grid struct {
	Header    []string
	Rows      [][]any
	Sanitized int
}

// Serialize flattens the table into a grid: fixed base columns followed by
// price columns in chronological order. Internal sort keys are never
// emitted. It does not modify table and always yields the same grid for the
// same table.
func Serialize(table *models.HistoricalTable) *Grid {
	dates := SortPriceDates(uniqueDates(table.PriceDates))

	header := make([]string, 0, len(models.BaseColumns)+len(dates))
	header = append(header, models.BaseColumns...)
	for _, d := range dates {
		header = append(header, models.PriceColumn(d))
	}

	grid := &Grid{Header: header, Rows: make([][]any, 0, len(table.Entries))}
	for _, e := range table.Entries {
		row := make([]any, 0, len(header))
		for _, col := range models.BaseColumns {
			cell, fixed := sanitizeField(col, baseField(e, col))
			if fixed {
				grid.Sanitized++
			}
			row = append(row, cell)
		}
		for _, d := range dates {
			cell, fixed := sanitizeText(e.Price(d))
			if fixed {
				grid.Sanitized++
			}
			row = append(row, cell)
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid
}

func baseField(e *models.HistoricalEntry, col string) string {
	switch col {
	case models.ColID:
		return e.ID
	case models.ColBrand:
		return e.Brand
	case models.ColModel:
		return e.Model
	case models.ColSeller:
		return e.Seller
	case models.ColYear:
		return e.Year
	case models.ColMileage:
		return e.Mileage
	case models.ColBodyType:
		return e.Attributes.BodyType
	case models.ColSeats:
		return e.Attributes.Seats
	case models.ColDoors:
		return e.Attributes.Doors
	case models.ColFuel:
		return e.Attributes.Fuel
	case models.ColPower:
		return e.Attributes.Power
	case models.ColTransmission:
		return e.Attributes.Transmission
	case models.ColURL:
		return e.URL
	case models.ColFirstSeen:
		return e.FirstSeen
	case models.ColState:
		return e.State
	case models.ColSoldDate:
		return e.SoldDate
	}
	return ""
}

func sanitizeField(col, value string) (any, bool) {
	text, fixed := sanitizeText(value)
	if !numericColumns[col] || text == "" {
		return text, fixed
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return text, fixed
	}
	n, numFixed := sanitizeNumber(f)
	return n, fixed || numFixed
}

// sanitizeText collapses null-like literals to the empty string.
func sanitizeText(s string) (string, bool) {
	if isNullLike(s) {
		return "", true
	}
	return s, false
}

// sanitizeNumber replaces non-finite values with 0, clips to ±1e10 and
// turns whole values into integers.
func sanitizeNumber(f float64) (any, bool) {
	fixed := false
	if math.IsNaN(f) || math.IsInf(f, 0) {
		f = 0
		fixed = true
	}
	if f > numericLimit {
		f = numericLimit
		fixed = true
	} else if f < -numericLimit {
		f = -numericLimit
		fixed = true
	}
	if f == math.Trunc(f) {
		return int64(f), fixed
	}
	return f, fixed
}

// SanitizeCell makes an arbitrary cell value safe for the store: nil and
// null-like strings become "", numbers are finite and bounded, and anything
// else is stringified.
func SanitizeCell(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return sanitizeText(t)
	case float64:
		return sanitizeNumber(t)
	case float32:
		return sanitizeNumber(float64(t))
	case int:
		return sanitizeNumber(float64(t))
	case int32:
		return sanitizeNumber(float64(t))
	case int64:
		return sanitizeNumber(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return sanitizeText(t.String())
		}
		return sanitizeNumber(f)
	case bool:
		return strconv.FormatBool(t), false
	default:
		return sanitizeText(fmt.Sprint(t))
	}
}

// CellString renders a stored cell as display text. Used when reading sheets
// back, where numbers may come back as floats.
func CellString(v any) string {
	clean, _ := SanitizeCell(v)
	switch t := clean.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func isNullLike(s string) bool {
	return nullLiterals[strings.TrimSpace(s)]
}

func uniqueDates(dates []string) []string {
	seen := make(map[string]struct{}, len(dates))
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
