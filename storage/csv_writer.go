package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"tablenorm/models"
)

var unsafeNameRegexp = regexp.MustCompile(`[^a-z0-9_]+`)

// CSVWriter writes each clean table to <dir>/<name>.csv.
// It is safe for concurrent use.
type CSVWriter struct {
	mu      sync.Mutex
	dir     string
	written []string
}

// NewCSVWriter creates the output directory if needed.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVWriter{dir: dir}, nil
}

// Path returns the file a table with the given name is written to.
func (c *CSVWriter) Path(name string) string {
	return filepath.Join(c.dir, SafeName(name)+".csv")
}

// Write creates (or truncates) the table's file and writes the header row
// followed by every row. Missing cells are written as empty fields.
func (c *CSVWriter) Write(table *models.CleanTable) error {
	path := c.Path(table.Name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(table.Columns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, v := range row {
			record[i] = v.String()
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush %q: %w", path, err)
	}

	c.mu.Lock()
	c.written = append(c.written, path)
	c.mu.Unlock()
	return nil
}

// Written lists the files written so far, in completion order.
func (c *CSVWriter) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

// Close is a no-op; every Write closes its own file.
func (c *CSVWriter) Close() error { return nil }

// SafeName lower-cases name and replaces anything outside [a-z0-9_] with "_".
func SafeName(name string) string {
	s := unsafeNameRegexp.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "table"
	}
	return s
}
