package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"tablenorm/models"
	"tablenorm/utils"
)

// LoadOptions controls how a file is turned into a RawTable.
type LoadOptions struct {
	// Encoding of CSV input: "utf-8" (default), "latin-1" or "windows-1252".
	Encoding string
	// NAValues are cell texts treated as empty, e.g. "n/a".
	NAValues []string
	// Sheet selects the spreadsheet sheet; the first sheet when empty.
	Sheet string
}

// Loader reads CSV and XLSX files into RawTables.
type Loader struct {
	logger *utils.Logger
}

// NewLoader creates a Loader with the given logger.
func NewLoader(logger *utils.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load reads path as CSV or XLSX depending on its extension.
func (l *Loader) Load(name, path string, opts LoadOptions) (*models.RawTable, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		return l.LoadCSV(name, path, opts)
	case ".xlsx", ".xlsm":
		return l.LoadXLSX(name, path, opts)
	default:
		return nil, fmt.Errorf("load: unsupported file type %q for %s", ext, path)
	}
}

// LoadCSV reads a CSV file whose first record is the header.
func (l *Loader) LoadCSV(name, path string, opts LoadOptions) (*models.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	t, err := l.ReadCSV(name, f, opts)
	if err != nil {
		return nil, fmt.Errorf("csv: %s: %w", path, err)
	}
	return t, nil
}

// ReadCSV decodes CSV records from r.
func (l *Loader) ReadCSV(name string, r io.Reader, opts LoadOptions) (*models.RawTable, error) {
	dec, err := decoderFor(opts.Encoding)
	if err != nil {
		return nil, err
	}
	if dec != nil {
		r = dec.Reader(r)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	t, err := l.NewRawTable(name, records, opts)
	if err != nil {
		return nil, err
	}
	l.logger.Info("[loader] %s: read %d rows, %d columns (csv)", name, len(t.Rows), len(t.Headers))
	return t, nil
}

// LoadXLSX reads one sheet of a spreadsheet; cells are taken as displayed.
func (l *Loader) LoadXLSX(name, path string, opts LoadOptions) (*models.RawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open %q: %w", path, err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx: %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: read sheet %q: %w", sheet, err)
	}

	t, err := l.NewRawTable(name, rows, opts)
	if err != nil {
		return nil, fmt.Errorf("xlsx: %s: %w", path, err)
	}
	l.logger.Info("[loader] %s: read %d rows, %d columns (sheet %q)", name, len(t.Rows), len(t.Headers), sheet)
	return t, nil
}

// NewRawTable builds a RawTable from records whose first entry is the header.
// Blank header cells are named "Unnamed: <index>" and duplicate headers are
// rejected. Short rows are padded with empty cells, extra cells are dropped
// and rows where every cell is empty are skipped.
func (l *Loader) NewRawTable(name string, records [][]string, opts LoadOptions) (*models.RawTable, error) {
	if len(records) == 0 {
		return nil, models.ErrEmptyTable
	}

	headers := make([]string, len(records[0]))
	seen := make(map[string]struct{}, len(headers))
	for i, h := range records[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if strings.TrimSpace(h) == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if _, dup := seen[h]; dup {
			return nil, fmt.Errorf("duplicate header %q", h)
		}
		seen[h] = struct{}{}
		headers[i] = h
	}
	if len(headers) == 0 {
		return nil, models.ErrEmptyTable
	}

	na := make(map[string]struct{}, len(opts.NAValues))
	for _, v := range opts.NAValues {
		na[v] = struct{}{}
	}

	t := &models.RawTable{Name: name, Headers: headers, Rows: make([]models.RawRow, 0, len(records)-1)}
	truncated := 0
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		if len(rec) > len(headers) {
			truncated++
		}

		row := make(models.RawRow, len(headers))
		for i, h := range headers {
			cell := ""
			if i < len(rec) {
				cell = rec[i]
			}
			if _, isNA := na[strings.TrimSpace(cell)]; isNA {
				cell = ""
			}
			row[h] = cell
		}
		t.Rows = append(t.Rows, row)
	}

	if truncated > 0 {
		l.logger.Warn("[loader] %s: %d rows had more cells than headers; extra cells dropped", name, truncated)
	}
	return t, nil
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var errUnknownEncoding = errors.New("unknown encoding")

func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin-1", "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownEncoding, name)
	}
}
