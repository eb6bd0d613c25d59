package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/oohgrid/billboard-etl/pipeline"
)

// illegalCharRegexp matches control characters that corrupt downstream
// serialization. Tab, newline and carriage return survive.
var illegalCharRegexp = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f]")

// ReadFile loads a vendor source file into a batch. Extension decides the
// format: .xlsx/.xlsm/.xls go through the spreadsheet reader, everything else
// is treated as CSV. Headers are lowercased and trimmed, cell values are
// stripped of illegal control characters.
func ReadFile(path string) (*pipeline.Batch, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xls":
		return readExcel(path)
	default:
		return readCSV(path)
	}
}

// readCSV parses a CSV file. Vendor exports are frequently Windows-1252
// rather than UTF-8; when the raw bytes are not valid UTF-8 the whole file
// is transcoded before parsing.
func readCSV(path string) (*pipeline.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file %s: %w", path, err)
	}

	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s as windows-1252: %w", path, err)
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv %s: %w", path, err)
	}
	return batchFromRows(rows)
}

// readExcel parses the first sheet of a spreadsheet file.
func readExcel(path string) (*pipeline.Batch, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheets[0], path, err)
	}
	return batchFromRows(rows)
}

// batchFromRows assembles a batch from a header row plus data rows. Ragged
// rows are tolerated: short rows leave trailing cells absent, excess cells
// are discarded.
func batchFromRows(rows [][]string) (*pipeline.Batch, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("source file has no header row")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	b := pipeline.NewBatch(header)
	for _, cells := range rows[1:] {
		if emptyRow(cells) {
			continue
		}
		rec := pipeline.NewRecord()
		for i, cell := range cells {
			if i >= len(header) || header[i] == "" {
				continue
			}
			rec.Raw[header[i]] = illegalCharRegexp.ReplaceAllString(cell, "")
		}
		b.Rows = append(b.Rows, rec)
	}
	return b, nil
}

func emptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
