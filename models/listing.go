package models

import "time"

// NotSpecified is the placeholder the marketplace scraper writes for a field
// it could not extract. It is a real value, distinct from the empty string.
const NotSpecified = "No especificado"

// Attributes holds the optional descriptive fields of a vehicle.
type Attributes struct {
	BodyType     string
	Seats        string
	Doors        string
	Fuel         string
	Power        string
	Transmission string
}

// RawListing holds unprocessed scraped data for one vehicle advert, exactly as
// the scraper extracted it. The csv tags are the partition sheet headers.
type RawListing struct {
	Brand         string `csv:"Marca"`
	Model         string `csv:"Modelo"`
	Seller        string `csv:"Vendedor"`
	Year          string `csv:"Año"`
	Mileage       string `csv:"KM"`
	AskingPrice   string `csv:"Precio al Contado"`
	FinancedPrice string `csv:"Precio Financiado"`
	BodyType      string `csv:"Tipo"`
	Seats         string `csv:"Nº Plazas"`
	Doors         string `csv:"Nº Puertas"`
	Fuel          string `csv:"Combustible"`
	Power         string `csv:"Potencia"`
	Transmission  string `csv:"Conducción"`
	URL           string `csv:"URL"`
	ExtractedAt   string `csv:"Fecha Extracción"`

	// ID is filled in by the identity resolver; it is not part of the sheet.
	ID string `csv:"-"`
}

// Listing is a raw listing with its resolved identity and derived sort keys.
// Display strings are kept verbatim; the numeric keys are internal only.
type Listing struct {
	ID            string
	Seller        string
	Brand         string
	Model         string
	Year          string
	Mileage       string
	AskingPrice   string
	FinancedPrice string
	Attributes    Attributes
	URL           string
	ExtractedAt   string

	YearKey     int
	MileageKey  int
	PriceValue  int
	PriceValid  bool
	ProcessedAt time.Time
}

// Partition is one scrape worker's output for a run date.
type Partition struct {
	Name    string
	Records []map[string]string
}
