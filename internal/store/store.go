// Package store reads and writes the flat files shared by the collectors,
// the report generator and the dashboard. Every CSV is comma separated and
// written as UTF-8 with a byte-order mark. Each file is replaced atomically.
package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// File names inside the data directory.
const (
	FileIndicators = "indicadores_economicos.csv"
	FileEquities   = "top_10_acoes.csv"
	FileNews       = "noticias_investimentos.csv"
	FileReport     = "relatorio_indicacao_acoes.md"
)

// Column headers.
var (
	IndicatorHeader = []string{"data", "valor", "indicador", "data_coleta"}
	EquityHeader    = []string{"", "abertura", "alta", "baixa", "fechamento", "volume", "ticker"}
	NewsHeader      = []string{"titulo", "link", "fonte", "data_coleta"}
)

const bom = "\ufeff"

// Sentinel errors for artifact loading.
var (
	ErrNotFound = errors.New("file not found")
	ErrEmpty    = errors.New("file is empty")
	ErrNoData   = errors.New("file has no data rows")
)

// Store is rooted at one data directory.
type Store struct {
	dir string
}

// New returns a store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the full path of a file in the data directory.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether name is present as a regular file.
func (s *Store) Exists(name string) bool {
	fi, err := os.Stat(s.Path(name))
	return err == nil && fi.Mode().IsRegular()
}

// Missing returns which of names are absent.
func (s *Store) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if !s.Exists(n) {
			out = append(out, n)
		}
	}
	return out
}

// Table is a CSV file held as strings.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns row[col], or "" when the row is short or col is -1.
func (t *Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// ReadTable loads name as a Table. Missing files wrap ErrNotFound, zero-byte
// files ErrEmpty and header-only files ErrNoData.
func (s *Store) ReadTable(name string) (*Table, error) {
	raw, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	raw = bytes.TrimPrefix(raw, []byte(bom))
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
	}

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
	}
	t := &Table{Header: records[0], Rows: records[1:]}
	if len(t.Rows) == 0 {
		return t, fmt.Errorf("%s: %w", name, ErrNoData)
	}
	return t, nil
}

// WriteTable replaces name with header and rows.
func (s *Store) WriteTable(name string, header []string, rows [][]string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(bom)
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write rows: %w", err)
	}
	return s.writeFile(name, buf.Bytes())
}

// ReadReport returns the markdown report.
func (s *Store) ReadReport() (string, error) {
	raw, err := os.ReadFile(s.Path(FileReport))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", FileReport, ErrNotFound)
		}
		return "", fmt.Errorf("read %s: %w", FileReport, err)
	}
	text := strings.TrimPrefix(string(raw), bom)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w", FileReport, ErrEmpty)
	}
	return text, nil
}

// WriteReport replaces the markdown report with text, verbatim.
func (s *Store) WriteReport(text string) (string, error) {
	return s.writeFile(FileReport, []byte(text))
}

// writeFile writes through a temp file in the same directory and renames it
// over the target.
func (s *Store) writeFile(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	path := s.Path(name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("replace %s: %w", name, err)
	}
	return path, nil
}
