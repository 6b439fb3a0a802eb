package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect captures the differences between the supported SQL backends.
type Dialect struct {
	Name   string
	Driver string
	Schema string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

var dialects = map[string]Dialect{
	"postgres": {
		Name:   "postgres",
		Driver: "postgres",
		Schema: `
			CREATE TABLE IF NOT EXISTS sheets (
				name       TEXT        PRIMARY KEY,
				header     TEXT        NOT NULL,
				body       TEXT        NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		Placeholder: dollar,
	},
	"mysql": {
		Name:   "mysql",
		Driver: "mysql",
		Schema: `
			CREATE TABLE IF NOT EXISTS sheets (
				name       VARCHAR(255) PRIMARY KEY,
				header     LONGTEXT     NOT NULL,
				body       LONGTEXT     NOT NULL,
				updated_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		Placeholder: questionMark,
	},
	"sqlite": {
		Name:   "sqlite",
		Driver: "sqlite",
		Schema: `
			CREATE TABLE IF NOT EXISTS sheets (
				name       TEXT      PRIMARY KEY,
				header     TEXT      NOT NULL,
				body       TEXT      NOT NULL,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		Placeholder: questionMark,
	},
}

// LookupDialect returns the dialect registered under name.
func LookupDialect(name string) (Dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return Dialect{}, fmt.Errorf("sql: unsupported dialect %q", name)
	}
	return d, nil
}

// SQLStore persists sheets in a single table, one row per sheet, with the
// header and rows JSON-encoded. A sheet is replaced inside one transaction.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore opens a connection for the named dialect, waits for the server
// to answer, runs the schema migration and returns a ready-to-use store.
func NewSQLStore(dialectName, dsn string) (*SQLStore, error) {
	d, err := LookupDialect(dialectName)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d.Name, err)
	}
	if d.Name == "sqlite" {
		// one connection so an in-memory database is shared by every call
		db.SetMaxOpenConns(1)
	}

	for i := 0; i < 5; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping failed after retries: %w", d.Name, err)
	}

	return NewSQLStoreFromDB(db, d)
}

// NewSQLStoreFromDB wraps an already opened database.
func NewSQLStoreFromDB(db *sql.DB, d Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("%s: migrate: %w", d.Name, err)
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	_, err := s.db.Exec(s.dialect.Schema)
	return err
}

// Read loads one sheet. Numbers come back as json.Number.
func (s *SQLStore) Read(ctx context.Context, name string) (*Sheet, error) {
	query := "SELECT header, body FROM sheets WHERE name = " + s.dialect.Placeholder(1)

	var header, body string
	err := s.db.QueryRowContext(ctx, query, name).Scan(&header, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: read %q: %w", s.dialect.Name, name, ErrSheetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read %q: %w", s.dialect.Name, name, err)
	}

	sheet := &Sheet{Name: name}
	if err := json.Unmarshal([]byte(header), &sheet.Header); err != nil {
		return nil, fmt.Errorf("%s: decode header of %q: %w", s.dialect.Name, name, err)
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	if err := dec.Decode(&sheet.Rows); err != nil {
		return nil, fmt.Errorf("%s: decode rows of %q: %w", s.dialect.Name, name, err)
	}
	return sheet, nil
}

// Write replaces the sheet. Values must be JSON-encodable; non-finite floats
// are rejected.
func (s *SQLStore) Write(ctx context.Context, name string, header []string, rows [][]any) error {
	if rows == nil {
		rows = [][]any{}
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("%s: encode header: %w", s.dialect.Name, err)
	}
	bodyJSON, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("%s: encode rows: %w", s.dialect.Name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", s.dialect.Name, err)
	}
	defer tx.Rollback()

	del := "DELETE FROM sheets WHERE name = " + s.dialect.Placeholder(1)
	if _, err := tx.ExecContext(ctx, del, name); err != nil {
		return fmt.Errorf("%s: clear %q: %w", s.dialect.Name, name, err)
	}

	ins := fmt.Sprintf("INSERT INTO sheets (name, header, body) VALUES (%s, %s, %s)",
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3))
	if _, err := tx.ExecContext(ctx, ins, name, string(headerJSON), string(bodyJSON)); err != nil {
		return fmt.Errorf("%s: insert %q: %w", s.dialect.Name, name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit %q: %w", s.dialect.Name, name, err)
	}
	return nil
}

// List returns the names of all sheets, sorted.
func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sheets ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("%s: list: %w", s.dialect.Name, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%s: scan name: %w", s.dialect.Name, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
