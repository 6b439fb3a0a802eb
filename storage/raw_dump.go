package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jszwec/csvutil"

	"carhist/models"
)

// RawCSVWriter dumps raw (uncleaned) listings to a local CSV file, using the
// partition sheet headers. It is safe for concurrent use.
type RawCSVWriter struct {
	mu      sync.Mutex
	file    *os.File
	writer  *csv.Writer
	encoder *csvutil.Encoder
}

// NewRawCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewRawCSVWriter(path string) (*RawCSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	if err := enc.EncodeHeader(models.RawListing{}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &RawCSVWriter{file: f, writer: w, encoder: enc}, nil
}

// WriteRaw appends listings to the file.
func (c *RawCSVWriter) WriteRaw(listings []*models.RawListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		if err := c.encoder.Encode(l); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *RawCSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
