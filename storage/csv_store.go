package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const csvExt = ".csv"

// CSVStore keeps each sheet as a CSV file in one directory. Writes go to a
// temporary file that is renamed over the old one, so a failed write leaves
// the previous sheet intact. It is safe for concurrent use.
type CSVStore struct {
	mu  sync.Mutex
	dir string
}

// NewCSVStore opens (and creates if needed) the store directory.
func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("csv: create store dir: %w", err)
	}
	return &CSVStore{dir: dir}, nil
}

func (c *CSVStore) path(name string) string {
	return filepath.Join(c.dir, url.PathEscape(name)+csvExt)
}

// Read returns every row of the sheet. Cells are strings.
func (c *CSVStore) Read(ctx context.Context, name string) (*Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("csv: read %q: %w", name, ErrSheetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	sheet := &Sheet{Name: name}
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return sheet, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header of %q: %w", name, err)
	}
	sheet.Header = header

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read row of %q: %w", name, err)
		}
		row := make([]any, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// Write replaces the sheet with header and rows.
func (c *CSVStore) Write(ctx context.Context, name string, header []string, rows [][]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tmp, err := os.CreateTemp(c.dir, ".sheet-*"+csvExt)
	if err != nil {
		return fmt.Errorf("csv: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csv: write header: %w", err)
	}
	rec := make([]string, 0, len(header))
	for _, row := range rows {
		rec = rec[:0]
		for _, cell := range row {
			rec = append(rec, formatCell(cell))
		}
		if err := w.Write(rec); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, c.path(name)); err != nil {
		return fmt.Errorf("csv: replace %q: %w", name, err)
	}
	return nil
}

// List returns the names of all sheets, sorted.
func (c *CSVStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("csv: list store dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		fn := e.Name()
		if e.IsDir() || !strings.HasSuffix(fn, csvExt) || strings.HasPrefix(fn, ".") {
			continue
		}
		name, err := url.PathUnescape(strings.TrimSuffix(fn, csvExt))
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op; files are closed after every call.
func (c *CSVStore) Close() error {
	return nil
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
