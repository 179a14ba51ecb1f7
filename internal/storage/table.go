// Package storage persists catalog tables, thumbnail blobs and backups on an afero filesystem.
package storage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/victor/stormcatalog/internal/apperr"
)

const (
	tableExtension       = ".db"
	workInProgressSuffix = ".wip"
)

// Codec converts between a typed record and its table fields
type Codec[T any] interface {
	Columns() int
	Encode(record T) []string
	Decode(fields []string) (T, error)
}

// TableStore reads and writes delimited table files in one directory
type TableStore struct {
	fs        afero.Fs
	dir       string
	separator string
}

// NewTableStore creates the table directory if needed
func NewTableStore(fs afero.Fs, dir string, separator rune) (*TableStore, error) {
	if separator == 0 || separator == '\n' || separator == '\r' {
		return nil, fmt.Errorf("invalid table separator %q: %w", separator, apperr.ErrInvalidField)
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tables directory: %w", err)
	}
	return &TableStore{fs: fs, dir: dir, separator: string(separator)}, nil
}

// Dir returns the directory holding the table files
func (s *TableStore) Dir() string {
	return s.dir
}

func (s *TableStore) path(name string) string {
	return filepath.Join(s.dir, name+tableExtension)
}

// ValidField rejects values that would break the row layout: the separator
// and line breaks.
func (s *TableStore) ValidField(field string) error {
	if strings.Contains(field, s.separator) || strings.ContainsAny(field, "\r\n") {
		return apperr.ErrInvalidField
	}
	return nil
}

// WriteTable replaces the whole table with rows. The previous file is kept
// untouched when any field is invalid or the write fails.
func (s *TableStore) WriteTable(name string, rows [][]string) error {
	var buf bytes.Buffer
	for i, row := range rows {
		for j, field := range row {
			if err := s.ValidField(field); err != nil {
				return fmt.Errorf("table %s row %d column %d: %w", name, i, j, err)
			}
		}
		buf.WriteString(strings.Join(row, s.separator))
		buf.WriteByte('\n')
	}

	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create tables directory: %w", err)
	}

	tempPath := s.path(name) + workInProgressSuffix
	if err := afero.WriteFile(s.fs, tempPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write table %s: %w", name, err)
	}
	if err := s.fs.Rename(tempPath, s.path(name)); err != nil {
		return fmt.Errorf("failed to replace table %s: %w", name, err)
	}
	return nil
}

// ReadTable returns the rows of a table. A missing table is empty. When
// columns is positive every row must carry exactly that many fields.
func (s *TableStore) ReadTable(name string, columns int) ([][]string, error) {
	data, err := afero.ReadFile(s.fs, s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read table %s: %w", name, err)
	}

	var rows [][]string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSuffix(scanner.Text(), "\r")
		if text == "" {
			continue
		}
		fields := strings.Split(text, s.separator)
		if columns > 0 && len(fields) != columns {
			return nil, fmt.Errorf("table %s line %d has %d fields, want %d: %w",
				name, line, len(fields), columns, apperr.ErrCorruptTable)
		}
		rows = append(rows, fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("table %s: %v: %w", name, err, apperr.ErrCorruptTable)
	}
	return rows, nil
}

// Exists reports whether the table file is present
func (s *TableStore) Exists(name string) (bool, error) {
	return afero.Exists(s.fs, s.path(name))
}

// Table is a typed view over one named table
type Table[T any] struct {
	store *TableStore
	name  string
	codec Codec[T]
}

// NewTable binds a codec to a named table
func NewTable[T any](store *TableStore, name string, codec Codec[T]) *Table[T] {
	return &Table[T]{store: store, name: name, codec: codec}
}

// Name returns the table name
func (t *Table[T]) Name() string {
	return t.name
}

// Read decodes every record. Undecodable rows make the whole table corrupt.
func (t *Table[T]) Read() ([]T, error) {
	rows, err := t.store.ReadTable(t.name, t.codec.Columns())
	if err != nil {
		return nil, err
	}

	records := make([]T, 0, len(rows))
	for i, fields := range rows {
		record, err := t.codec.Decode(fields)
		if err != nil {
			return nil, fmt.Errorf("table %s record %d: %v: %w", t.name, i+1, err, apperr.ErrCorruptTable)
		}
		records = append(records, record)
	}
	return records, nil
}

// Write replaces the table content with records
func (t *Table[T]) Write(records []T) error {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, t.codec.Encode(record))
	}
	return t.store.WriteTable(t.name, rows)
}
