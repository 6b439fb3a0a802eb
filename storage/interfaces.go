package storage

import (
	"context"
	"errors"

	"carhist/models"
)

// ErrSheetNotFound is returned by Read when no sheet has the given name. An
// existing sheet without rows is not an error.
var ErrSheetNotFound = errors.New("sheet not found")

// Sheet is the full content of one named sheet.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Records returns the rows keyed by header name. Cells beyond the header are
// ignored and missing cells are nil.
func (s *Sheet) Records() []map[string]any {
	out := make([]map[string]any, 0, len(s.Rows))
	for _, row := range s.Rows {
		rec := make(map[string]any, len(s.Header))
		for i, h := range s.Header {
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = nil
			}
		}
		out = append(out, rec)
	}
	return out
}

// SheetStore is the interface any spreadsheet backend must satisfy. Write
// replaces the whole sheet atomically and creates it when absent.
type SheetStore interface {
	Read(ctx context.Context, name string) (*Sheet, error)
	Write(ctx context.Context, name string, header []string, rows [][]any) error
	List(ctx context.Context) ([]string, error)
	Close() error
}

// RawListingWriter is the interface for persisting unprocessed scraped data.
type RawListingWriter interface {
	WriteRaw(listings []*models.RawListing) error
	Close() error
}
