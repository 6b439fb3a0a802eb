package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"carhist/models"
	"carhist/utils"
)

var (
	// digitsRegexp captures the first run of digits
	digitsRegexp = regexp.MustCompile(`\d+`)
	// yearRegexp captures a four digit year candidate
	yearRegexp = regexp.MustCompile(`\d{4}`)
)

const minValidYear = 1990

// PriceBounds is the inclusive range of plausible asking prices in euros.
type PriceBounds struct {
	Min int
	Max int
}

// DefaultPriceBounds matches the marketplace's realistic range for cars.
var DefaultPriceBounds = PriceBounds{Min: 500, Max: 500000}

// Cleaner turns raw listings into Listings with derived sort keys. Display
// strings are never modified.
type Cleaner struct {
	logger *utils.Logger
	bounds PriceBounds
	now    func() time.Time
}

// NewCleaner creates a Cleaner with the given logger and price bounds.
func NewCleaner(logger *utils.Logger, bounds PriceBounds) *Cleaner {
	return &Cleaner{logger: logger, bounds: bounds, now: time.Now}
}

// Clean normalizes every raw listing. The second return value counts prices
// outside the configured bounds; such listings are kept.
func (c *Cleaner) Clean(raw []*models.RawListing) ([]*models.Listing, int) {
	result := make([]*models.Listing, 0, len(raw))
	invalid := 0
	now := c.now()

	for _, r := range raw {
		l := &models.Listing{
			ID:            r.ID,
			Seller:        r.Seller,
			Brand:         r.Brand,
			Model:         r.Model,
			Year:          r.Year,
			Mileage:       r.Mileage,
			AskingPrice:   r.AskingPrice,
			FinancedPrice: r.FinancedPrice,
			Attributes: models.Attributes{
				BodyType:     r.BodyType,
				Seats:        r.Seats,
				Doors:        r.Doors,
				Fuel:         r.Fuel,
				Power:        r.Power,
				Transmission: r.Transmission,
			},
			URL:         strings.TrimSpace(r.URL),
			ExtractedAt: r.ExtractedAt,
			ProcessedAt: now,
		}
		if l.ID == "" {
			l.ID = ResolveID(r)
		}

		l.MileageKey = ParseMileage(r.Mileage)
		l.YearKey = ParseYear(r.Year, now)
		l.PriceValue = ParsePrice(r.AskingPrice)
		l.PriceValid = c.bounds.Contains(l.PriceValue)
		if !l.PriceValid {
			invalid++
			c.logger.Debug("[cleaner] Price out of range for %s %s (%s): %q",
				l.Brand, l.Model, l.Seller, r.AskingPrice)
		}

		result = append(result, l)
	}

	c.logger.Info("[cleaner] Normalised %d listings (%d with an out-of-range price)",
		len(result), invalid)
	return result, invalid
}

// Contains reports whether v lies within the bounds.
func (b PriceBounds) Contains(v int) bool {
	return v >= b.Min && v <= b.Max
}

// ParseMileage extracts the kilometre count used for sorting. Thousands
// separators are dropped; anything unparsable yields 0.
//
//	"125.000 km" → 125000
//	"No especificado" → 0
func ParseMileage(raw string) int {
	if !isPresent(strings.TrimSpace(raw)) {
		return 0
	}
	cleaned := strings.NewReplacer(".", "", ",", "", " ", "").Replace(raw)
	match := digitsRegexp.FindString(cleaned)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// ParseYear extracts a registration year within [1990, now.Year()+1], or 0.
func ParseYear(raw string, now time.Time) int {
	if !isPresent(strings.TrimSpace(raw)) {
		return 0
	}
	match := yearRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	if year < minValidYear || year > now.Year()+1 {
		return 0
	}
	return year
}

// ParsePrice extracts the numeric value of a displayed price.
//
//	"12.500 €" → 12500
//	"No especificado" → 0
func ParsePrice(raw string) int {
	if !isPresent(strings.TrimSpace(raw)) {
		return 0
	}
	cleaned := strings.NewReplacer(".", "", ",", "").Replace(raw)
	match := digitsRegexp.FindString(cleaned)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}
