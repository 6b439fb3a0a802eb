package services

import (
	"sort"
	"strings"

	"carhist/models"
)

// columnAliases maps every header spelling seen in scraper output and older
// history sheets to its canonical name. Accented headers have been read back
// with several encodings over time, hence the mojibake variants.
var columnAliases = map[string]string{
	"Precio al Contado": models.ColAskingPrice,
	"Precio Contado":    models.ColAskingPrice,
	"Precio Financiado": models.ColFinancedPrice,

	"Año":  models.ColYear,
	"AÃ±o": models.ColYear,
	"Anio": models.ColYear,

	"Nº Plazas":  models.ColSeats,
	"N° Plazas":  models.ColSeats,
	"NÂº Plazas": models.ColSeats,
	"N Plazas":   models.ColSeats,

	"Nº Puertas":  models.ColDoors,
	"N° Puertas":  models.ColDoors,
	"NÂº Puertas": models.ColDoors,
	"N Puertas":   models.ColDoors,

	"Conducción":   models.ColTransmission,
	"ConducciÃ³n":  models.ColTransmission,
	"Transmisión":  models.ColTransmission,
	"TransmisiÃ³n": models.ColTransmission,

	"Fecha Extracción":  models.ColExtractedAt,
	"Fecha ExtracciÃ³n": models.ColExtractedAt,
	"Fecha Extraccion":  models.ColExtractedAt,
	"Fecha_Extracción":  models.ColExtractedAt,

	"ID Unico Coche":    models.ColID,
	"Primera Deteccion": models.ColFirstSeen,
	"Fecha Venta":       models.ColSoldDate,
}

// CanonicalColumn returns the canonical name for a header cell.
func CanonicalColumn(name string) string {
	name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	if canonical, ok := columnAliases[name]; ok {
		return canonical
	}
	return name
}

// CanonicalHeader applies CanonicalColumn to every header cell.
func CanonicalHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = CanonicalColumn(h)
	}
	return out
}

// CanonicalRecord re-keys a record by canonical column names. When several
// spellings of one column are present the first non-empty value wins, in
// the order canonical name, plain alias, mis-encoded alias, then by name.
func CanonicalRecord(record map[string]string) map[string]string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := aliasRank(keys[i]), aliasRank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})

	out := make(map[string]string, len(record))
	for _, k := range keys {
		key := CanonicalColumn(k)
		if existing, ok := out[key]; ok && existing != "" {
			continue
		}
		out[key] = record[k]
	}
	return out
}

func aliasRank(name string) int {
	switch {
	case CanonicalColumn(name) == name:
		return 0
	case strings.ContainsAny(name, "ÃÂ\ufeff"):
		return 2
	default:
		return 1
	}
}

// RawListingFromRecord builds a RawListing from a canonical record. Missing
// or blank fields take the not-specified placeholder.
func RawListingFromRecord(record map[string]string) *models.RawListing {
	get := func(key string) string {
		v := strings.TrimSpace(record[key])
		if v == "" || isNullLike(v) {
			return models.NotSpecified
		}
		return v
	}
	return &models.RawListing{
		Brand:         get(models.ColBrand),
		Model:         get(models.ColModel),
		Seller:        get(models.ColSeller),
		Year:          get(models.ColYear),
		Mileage:       get(models.ColMileage),
		AskingPrice:   get(models.ColAskingPrice),
		FinancedPrice: get(models.ColFinancedPrice),
		BodyType:      get(models.ColBodyType),
		Seats:         get(models.ColSeats),
		Doors:         get(models.ColDoors),
		Fuel:          get(models.ColFuel),
		Power:         get(models.ColPower),
		Transmission:  get(models.ColTransmission),
		URL:           get(models.ColURL),
		ExtractedAt:   get(models.ColExtractedAt),
	}
}

// PartitionHeader is the header the scraper writes for a partition sheet.
var PartitionHeader = []string{
	"Marca", "Modelo", "Vendedor", "Año", "KM",
	"Precio al Contado", "Precio Financiado",
	"Tipo", "Nº Plazas", "Nº Puertas", "Combustible", "Potencia", "Conducción",
	"URL", "Fecha Extracción",
}

// PartitionRow renders a raw listing in PartitionHeader order.
func PartitionRow(r *models.RawListing) []any {
	return []any{
		r.Brand, r.Model, r.Seller, r.Year, r.Mileage,
		r.AskingPrice, r.FinancedPrice,
		r.BodyType, r.Seats, r.Doors, r.Fuel, r.Power, r.Transmission,
		r.URL, r.ExtractedAt,
	}
}
