package services

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/jszwec/csvutil"

	"carhist/models"
	"carhist/utils"
)

// StatsSheet is the sheet holding per-seller statistics of the last run.
const StatsSheet = "Estadisticas"

// maxListedChanges caps how many price changes the summary prints.
const maxListedChanges = 20

// ReportService builds and renders run summaries.
type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

// SellerStats groups the snapshot by seller. Sellers are ordered by listing
// count, largest first, then by name.
func (s *ReportService) SellerStats(listings []*models.Listing) []models.SellerStats {
	type acc struct {
		stats  models.SellerStats
		brands map[string]struct{}
	}
	bySeller := make(map[string]*acc)

	for _, l := range listings {
		a, ok := bySeller[l.Seller]
		if !ok {
			a = &acc{stats: models.SellerStats{Seller: l.Seller}, brands: make(map[string]struct{})}
			bySeller[l.Seller] = a
		}
		a.stats.Listings++
		if isPresent(l.Brand) {
			a.brands[l.Brand] = struct{}{}
		}
		if isPresent(l.AskingPrice) {
			a.stats.WithPrice++
		}
		if !l.PriceValid {
			a.stats.Invalid++
		}
	}

	out := make([]models.SellerStats, 0, len(bySeller))
	for _, a := range bySeller {
		a.stats.Brands = len(a.brands)
		if a.stats.Listings > 0 {
			a.stats.PriceShare = round2(float64(a.stats.WithPrice) * 100 / float64(a.stats.Listings))
		}
		out = append(out, a.stats)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Listings != out[j].Listings {
			return out[i].Listings > out[j].Listings
		}
		return out[i].Seller < out[j].Seller
	})
	return out
}

// StatsGrid renders seller statistics as a sheet.
func StatsGrid(stats []models.SellerStats) *Grid {
	g := &Grid{
		Header: []string{"Vendedor", "Coches", "Marcas", "Con_Precio", "Porcentaje_Precio", "Precio_Fuera_Rango"},
		Rows:   make([][]any, 0, len(stats)),
	}
	for _, st := range stats {
		g.Rows = append(g.Rows, []any{
			st.Seller,
			int64(st.Listings),
			int64(st.Brands),
			int64(st.WithPrice),
			st.PriceShare,
			int64(st.Invalid),
		})
	}
	return g
}

// Print writes the run summary as tables.
func (s *ReportService) Print(w io.Writer, r *models.RunReport) {
	summary := newTable(w)
	summary.SetTitle("Run %s", r.RunDate)
	summary.AppendRows([]table.Row{
		{"Run ID", r.RunID},
		{"Partitions", r.Partitions},
		{"Listings in snapshot", r.SnapshotSize},
		{"History before / after", fmt.Sprintf("%d / %d", r.HistoryBefore, r.HistoryAfter)},
		{"New", len(r.New)},
		{"Updated", r.Updated},
		{"Sold", len(r.Sold)},
		{"Reactivated", len(r.Reactivated)},
		{"Price changes", len(r.PriceChanges)},
		{"Out-of-range prices", r.InvalidPrices},
		{"Sanitized cells", r.SanitizedCells},
		{"Errors", r.Errors},
		{"Elapsed", r.Elapsed.Round(time.Millisecond).String()},
	})
	if r.FirstRun {
		summary.AppendFooter(table.Row{"", "first run"})
	}
	summary.Render()

	if len(r.Sellers) > 0 {
		t := newTable(w)
		t.SetTitle("Sellers")
		t.AppendHeader(table.Row{"Seller", "Listings", "Brands", "With price", "%", "Out of range"})
		for _, st := range r.Sellers {
			t.AppendRow(table.Row{truncate(st.Seller, 30), st.Listings, st.Brands, st.WithPrice,
				fmt.Sprintf("%.1f", st.PriceShare), st.Invalid})
		}
		t.Render()
	}

	if len(r.PriceChanges) > 0 {
		t := newTable(w)
		t.SetTitle("Price changes")
		t.AppendHeader(table.Row{"Vehicle", "Seller", "Before", "Now"})
		for i, c := range r.PriceChanges {
			if i == maxListedChanges {
				t.AppendFooter(table.Row{fmt.Sprintf("... and %d more", len(r.PriceChanges)-maxListedChanges)})
				break
			}
			t.AppendRow(table.Row{
				truncate(c.Brand+" "+c.Model, 38),
				truncate(c.Seller, 24),
				c.PreviousPrice + " (" + c.PreviousDate + ")",
				c.NewPrice,
			})
		}
		t.Render()
	}

	if len(r.Sold) > 0 {
		t := newTable(w)
		t.SetTitle("Sold")
		t.AppendHeader(table.Row{"ID", "Vehicle", "Seller"})
		for _, ref := range r.Sold {
			t.AppendRow(table.Row{ref.ID, truncate(ref.Brand+" "+ref.Model, 38), truncate(ref.Seller, 24)})
		}
		t.Render()
	}
}

// ExportPriceChanges writes the run's price changes to a CSV file. Nothing
// is written when there are none.
func (s *ReportService) ExportPriceChanges(path string, changes []models.PriceChange) error {
	if len(changes) == 0 || path == "" {
		return nil
	}
	data, err := csvutil.Marshal(changes)
	if err != nil {
		return fmt.Errorf("report: encode price changes: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("report: create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("report: write %q: %w", path, err)
	}
	s.logger.Info("[report] %d price changes exported to %s", len(changes), path)
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignLeft
	t.SetOutputMirror(w)
	return t
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
