package wallapop

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"carhist/models"
)

var (
	innerWhitespace = regexp.MustCompile(`\s\s+`)
	trailingItemID  = regexp.MustCompile(`\s*\d{10,}$`)
	euroAmount      = regexp.MustCompile(`(\d{1,3}(?:\.\d{3})+|\d{1,6})\s*€`)
	digitRun        = regexp.MustCompile(`\d+`)
)

// brands maps a lower-case title word to the brand name written to sheets.
var brands = map[string]string{
	"abarth": "Abarth", "alfa": "Alfa Romeo", "audi": "Audi", "bmw": "BMW",
	"byd": "BYD", "citroen": "Citroën", "citroën": "Citroën", "cupra": "Cupra",
	"dacia": "Dacia", "ds": "DS", "fiat": "Fiat", "ford": "Ford",
	"honda": "Honda", "hyundai": "Hyundai", "jaguar": "Jaguar", "jeep": "Jeep",
	"kia": "Kia", "land": "Land Rover", "lexus": "Lexus", "mazda": "Mazda",
	"mercedes": "Mercedes-Benz", "mercedes-benz": "Mercedes-Benz", "mg": "MG",
	"mini": "Mini", "mitsubishi": "Mitsubishi", "nissan": "Nissan", "opel": "Opel",
	"peugeot": "Peugeot", "porsche": "Porsche", "range": "Land Rover",
	"renault": "Renault", "seat": "Seat", "skoda": "Skoda", "smart": "Smart",
	"ssangyong": "Ssangyong", "subaru": "Subaru", "suzuki": "Suzuki",
	"tesla": "Tesla", "toyota": "Toyota", "volkswagen": "Volkswagen",
	"volvo": "Volvo", "vw": "Volkswagen",
}

var (
	fuelWords         = []string{"gasolina", "diésel", "diesel", "eléctrico", "electrico", "híbrido", "hibrido", "gas", "glp", "gnc"}
	transmissionWords = []string{"manual", "automático", "automatico", "automática", "automatica"}
	bodyWords         = []string{"pequeño", "mediano", "grande", "familiar", "monovolumen", "todoterreno",
		"furgoneta", "4x4", "suv", "berlina", "deportivo", "coupé", "coupe", "cabrio", "descapotable",
		"sedán", "compacto", "utilitario"}
)

// ParseItemLinks returns the absolute, de-duplicated item URLs found in a
// rendered seller profile page, in page order.
func ParseItemLinks(html, base string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse profile page: %w", err)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", base, err)
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find(`a[href*="/item/"]`).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := baseURL.ResolveReference(ref)
		abs.RawQuery = ""
		abs.Fragment = ""
		link := abs.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links, nil
}

// ParseItem extracts one vehicle from a rendered item page. Fields that
// cannot be found are set to the not-specified placeholder; the extraction
// date is left to the caller.
func ParseItem(html, itemURL, seller string) (*models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse item page: %w", err)
	}

	title := cleanText(doc.Find("h1").First().Text())
	if title == "" {
		title = titleFromURL(itemURL)
	}
	title = trailingItemID.ReplaceAllString(title, "")
	brand, model := splitTitle(title)
	if b := labelledValue(doc, "Marca"); b != "" {
		brand = titleCase(b)
	}

	l := &models.RawListing{
		Brand:         brand,
		Model:         model,
		Seller:        seller,
		Year:          models.NotSpecified,
		Mileage:       models.NotSpecified,
		AskingPrice:   models.NotSpecified,
		FinancedPrice: models.NotSpecified,
		BodyType:      models.NotSpecified,
		Seats:         models.NotSpecified,
		Doors:         models.NotSpecified,
		Fuel:          models.NotSpecified,
		Power:         models.NotSpecified,
		Transmission:  models.NotSpecified,
		URL:           itemURL,
		ExtractedAt:   models.NotSpecified,
	}

	if p := labelledPrice(doc, "Precio al contado"); p != "" {
		l.AskingPrice = monthlyAware(p, seller)
	}
	if p := labelledPrice(doc, "Precio financiado"); p != "" {
		l.FinancedPrice = monthlyAware(p, seller)
	}
	if l.AskingPrice == models.NotSpecified {
		if p := highestPrice(doc); p != "" {
			l.AskingPrice = monthlyAware(p, seller)
		}
	}

	if km := labelledValue(doc, "Kilómetros"); km != "" {
		l.Mileage = FormatKilometers(km)
	}
	if y := labelledValue(doc, "Año"); y != "" {
		if n, err := strconv.Atoi(y); err == nil && n >= 1990 {
			l.Year = y
		}
	}

	doc.Find(`span[class*="AttributesInfo__measure"]`).Each(func(_ int, s *goquery.Selection) {
		classifyAttribute(l, cleanText(s.Text()))
	})
	return l, nil
}

// classifyAttribute assigns a free-text attribute chip to its field.
func classifyAttribute(l *models.RawListing, text string) {
	lower := strings.ToLower(text)
	switch {
	case text == "":
	case strings.Contains(lower, "plazas"):
		l.Seats = text
	case strings.Contains(lower, "puertas"):
		l.Doors = text
	case containsAny(lower, fuelWords):
		l.Fuel = text
	case strings.Contains(lower, "caballos") || strings.Contains(lower, "cv"):
		l.Power = FormatPower(text)
	case containsAny(lower, transmissionWords):
		l.Transmission = text
	case containsAny(lower, bodyWords):
		l.BodyType = text
	}
}

// labelledValue returns the text of the element following a span whose text
// is exactly label.
func labelledValue(doc *goquery.Document, label string) string {
	var out string
	doc.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if cleanText(s.Text()) != label {
			return true
		}
		out = cleanText(s.Next().Text())
		return out == ""
	})
	return out
}

// labelledPrice finds the first euro amount near the given price label,
// looking at the label's siblings and then at its enclosing block.
func labelledPrice(doc *goquery.Document, label string) string {
	var out string
	doc.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if cleanText(s.Text()) != label {
			return true
		}
		for _, scope := range []*goquery.Selection{s.NextAll(), s.Parent().Find("span"), s.Parent().Parent().Find("span")} {
			scope.EachWithBreak(func(_ int, p *goquery.Selection) bool {
				if t := cleanText(p.Text()); t != label && euroAmount.MatchString(t) {
					out = t
					return false
				}
				return true
			})
			if out != "" {
				break
			}
		}
		return out == ""
	})
	return out
}

// highestPrice is the last resort: the largest plausible euro amount shown
// anywhere on the page.
func highestPrice(doc *goquery.Document) string {
	best := 0
	doc.Find("span, div, p").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		for _, m := range euroAmount.FindAllStringSubmatch(cleanText(s.Text()), -1) {
			n, err := strconv.Atoi(strings.ReplaceAll(m[1], ".", ""))
			if err != nil || n < 50 || n > 300000 {
				continue
			}
			if n > best {
				best = n
			}
		}
	})
	if best == 0 {
		return ""
	}
	return formatEuros(best)
}

// monthlyAware tags low prices as monthly instalments. Some dealer groups
// show the instalment in the cash price slot.
func monthlyAware(price, seller string) string {
	m := digitRun.FindString(strings.ReplaceAll(strings.ReplaceAll(price, ".", ""), ",", ""))
	n, err := strconv.Atoi(m)
	if err != nil {
		return price
	}
	if (strings.Contains(strings.ToUpper(seller), "CRESTANEVADA") && n < 1000) || n < 500 {
		return fmt.Sprintf("%d €/mes", n)
	}
	return price
}

// splitTitle separates the brand from the rest of an advert title.
func splitTitle(title string) (string, string) {
	words := strings.Fields(title)
	if len(words) == 0 {
		return models.NotSpecified, models.NotSpecified
	}
	model := models.NotSpecified
	if len(words) > 1 {
		model = strings.Join(words[1:], " ")
	}
	if b, ok := brands[strings.ToLower(words[0])]; ok {
		return b, model
	}
	for i, w := range words {
		if b, ok := brands[strings.ToLower(w)]; ok {
			if i+1 < len(words) {
				return b, strings.Join(words[i+1:], " ")
			}
			return b, models.NotSpecified
		}
	}
	return titleCase(words[0]), model
}

// FormatKilometers renders a mileage with dot thousands separators.
//
//	"125000" → "125.000 km"
func FormatKilometers(raw string) string {
	digits := strings.Join(digitRun.FindAllString(raw, -1), "")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return models.NotSpecified
	}
	return groupThousands(n) + " km"
}

// FormatPower keeps the first number of a power attribute.
//
//	"150 caballos" → "150 CV"
func FormatPower(raw string) string {
	if n := digitRun.FindString(raw); n != "" {
		return n + " CV"
	}
	return raw
}

func formatEuros(n int) string {
	return groupThousands(n) + " €"
}

func groupThousands(n int) string {
	s := strconv.Itoa(n)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func titleFromURL(itemURL string) string {
	u, err := url.Parse(itemURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return strings.ReplaceAll(parts[len(parts)-1], "-", " ")
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(s, " "))
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
