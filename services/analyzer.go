package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"carhist/models"
	"carhist/storage"
	"carhist/utils"
)

// PartitionDateLayout is the date suffix of partition sheet names.
const PartitionDateLayout = "02/01/06"

// AnalyzerConfig controls one reconciliation run.
type AnalyzerConfig struct {
	HistorySheet    string
	PartitionPrefix string
	// RunDate forces the run date (dd/mm/yyyy). When empty the date is taken
	// from the snapshot's extraction dates, then from the clock.
	RunDate     string
	PriceBounds PriceBounds
	Policy      ReactivationPolicy
	// ReportPath, when set, receives a CSV of the run's price changes.
	ReportPath string
}

// Analyzer runs the whole pipeline against a sheet store: partition
// discovery, unification, normalization, reconciliation and persistence.
type Analyzer struct {
	store      storage.SheetStore
	cfg        AnalyzerConfig
	logger     *utils.Logger
	unifier    *Unifier
	cleaner    *Cleaner
	reconciler *Reconciler
	reports    *ReportService
	now        func() time.Time
}

// NewAnalyzer wires an Analyzer over store.
func NewAnalyzer(store storage.SheetStore, cfg AnalyzerConfig, logger *utils.Logger) *Analyzer {
	if cfg.PriceBounds == (PriceBounds{}) {
		cfg.PriceBounds = DefaultPriceBounds
	}
	return &Analyzer{
		store:      store,
		cfg:        cfg,
		logger:     logger,
		unifier:    NewUnifier(logger),
		cleaner:    NewCleaner(logger, cfg.PriceBounds),
		reconciler: NewReconciler(logger, cfg.Policy),
		reports:    NewReportService(logger),
		now:        time.Now,
	}
}

// Run executes one reconciliation. Nothing is written when it fails before
// the history write; a failed history write is returned as *StoreWriteError.
func (a *Analyzer) Run(ctx context.Context) (*models.RunReport, error) {
	start := a.now()

	day, err := a.discoveryDay(start)
	if err != nil {
		return nil, err
	}

	partitions, err := a.loadPartitions(ctx, day)
	if err != nil {
		return nil, err
	}

	snapshot, err := a.unifier.Unify(partitions)
	if err != nil {
		return nil, err
	}

	listings, invalid := a.cleaner.Clean(snapshot.Records)

	runDate := a.cfg.RunDate
	if runDate != "" {
		t, _ := parseDate(runDate)
		runDate = t.Format(RunDateLayout)
	} else {
		runDate = snapshotDate(listings, day)
	}
	a.logger.Info("[analyzer] Run date %s", runDate)

	history, err := a.loadHistory(ctx)
	if err != nil {
		return nil, err
	}

	result, err := a.reconciler.Reconcile(listings, history, runDate)
	if err != nil {
		return nil, err
	}

	grid := Serialize(result.Table)
	if grid.Sanitized > 0 {
		a.logger.Warn("[analyzer] %d cells sanitized before writing", grid.Sanitized)
	}
	if err := a.store.Write(ctx, a.cfg.HistorySheet, grid.Header, grid.Rows); err != nil {
		return nil, &StoreWriteError{Sheet: a.cfg.HistorySheet, Err: err}
	}
	a.logger.Info("[analyzer] History %q written: %d rows, %d columns",
		a.cfg.HistorySheet, len(grid.Rows), len(grid.Header))

	report := result.Report
	report.RunID = uuid.NewString()
	report.Partitions = snapshot.Contributing
	report.InvalidPrices = invalid
	report.SanitizedCells = grid.Sanitized
	report.Sellers = a.reports.SellerStats(listings)

	stats := StatsGrid(report.Sellers)
	if err := a.store.Write(ctx, StatsSheet, stats.Header, stats.Rows); err != nil {
		a.logger.Warn("[analyzer] Could not write %q: %v", StatsSheet, err)
	}

	if err := a.reports.ExportPriceChanges(a.cfg.ReportPath, report.PriceChanges); err != nil {
		a.logger.Warn("[analyzer] %v", err)
	}

	report.Elapsed = a.now().Sub(start)
	return report, nil
}

// discoveryDay is the day whose partitions are read.
func (a *Analyzer) discoveryDay(now time.Time) (time.Time, error) {
	if a.cfg.RunDate == "" {
		return now, nil
	}
	t, ok := parseDate(a.cfg.RunDate)
	if !ok {
		return time.Time{}, fmt.Errorf("analyzer: invalid run date %q, want dd/mm/yyyy", a.cfg.RunDate)
	}
	return t, nil
}

// PartitionName is the sheet a scrape job writes for day. Job 0 means a
// single job covering every seller.
func PartitionName(prefix string, job int, day time.Time) string {
	if job > 0 {
		return fmt.Sprintf("%s-J%d %s", prefix, job, day.Format(PartitionDateLayout))
	}
	return prefix + " " + day.Format(PartitionDateLayout)
}

// PartitionPattern matches the partition sheets of one day, with or without
// a job suffix.
func PartitionPattern(prefix string, day time.Time) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `(-\S+)? ` +
		regexp.QuoteMeta(day.Format(PartitionDateLayout)) + `$`)
}

func (a *Analyzer) loadPartitions(ctx context.Context, day time.Time) ([]*models.Partition, error) {
	names, err := a.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("analyzer: list sheets: %w", err)
	}

	pattern := PartitionPattern(a.cfg.PartitionPrefix, day)
	var matched []string
	for _, n := range names {
		if pattern.MatchString(n) {
			matched = append(matched, n)
		}
	}
	sort.Strings(matched)

	if len(matched) == 0 {
		return nil, fmt.Errorf("no partition sheets for %s: %w", day.Format(PartitionDateLayout), ErrEmptyInput)
	}
	a.logger.Info("[analyzer] Partitions for %s: %s", day.Format(PartitionDateLayout), strings.Join(matched, ", "))

	partitions := make([]*models.Partition, 0, len(matched))
	for _, name := range matched {
		sheet, err := a.store.Read(ctx, name)
		if err != nil {
			a.logger.Warn("[analyzer] Skipping partition %q: %v", name, err)
			continue
		}
		partitions = append(partitions, partitionFromSheet(sheet))
	}
	return partitions, nil
}

func partitionFromSheet(sheet *storage.Sheet) *models.Partition {
	p := &models.Partition{Name: sheet.Name}
	for _, rec := range sheet.Records() {
		out := make(map[string]string, len(rec))
		for k, v := range rec {
			out[k] = CellString(v)
		}
		p.Records = append(p.Records, out)
	}
	return p
}

func (a *Analyzer) loadHistory(ctx context.Context) (*models.HistoricalTable, error) {
	sheet, err := a.store.Read(ctx, a.cfg.HistorySheet)
	if errors.Is(err, storage.ErrSheetNotFound) {
		a.logger.Info("[analyzer] No %q sheet yet, starting a new history", a.cfg.HistorySheet)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("analyzer: read history: %w", err)
	}
	table, err := ParseHistory(sheet, a.logger)
	if err != nil {
		return nil, err
	}
	a.logger.Info("[analyzer] Loaded history: %d vehicles, %d price columns",
		len(table.Entries), len(table.PriceDates))
	return table, nil
}

// snapshotDate picks the most common extraction date of the snapshot,
// earliest first on ties. fallback is used when no listing has a date.
func snapshotDate(listings []*models.Listing, fallback time.Time) string {
	counts := make(map[string]int)
	for _, l := range listings {
		field, _, _ := strings.Cut(strings.TrimSpace(l.ExtractedAt), " ")
		t, ok := parseDate(field)
		if !ok {
			continue
		}
		counts[t.Format(RunDateLayout)]++
	}

	best, bestCount := "", 0
	for d, n := range counts {
		if n > bestCount || (n == bestCount && earlier(d, best)) {
			best, bestCount = d, n
		}
	}
	if best == "" {
		return fallback.Format(RunDateLayout)
	}
	return best
}

func earlier(a, b string) bool {
	ta, _ := parseDate(a)
	tb, _ := parseDate(b)
	return ta.Before(tb)
}
