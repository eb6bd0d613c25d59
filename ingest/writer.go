package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oohgrid/billboard-etl/pipeline"
)

// WriteCSV persists a processed batch as CSV in the batch's projected column
// order. Intermediate directories are created automatically and the file is
// truncated if it exists.
func WriteCSV(path string, b *pipeline.Batch) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	cols := b.Columns()

	if err := w.Write(cols); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	row := make([]string, len(cols))
	for _, rec := range b.Rows {
		for i, c := range cols {
			v, _ := rec.Value(c)
			row[i] = v
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv output: %w", err)
	}
	return nil
}

// OutputPath derives the processed output filename from the original upload
// name, mirrored next to other run artifacts.
func OutputPath(outputDir, originalFilename string) string {
	base := filepath.Base(originalFilename)
	ext := filepath.Ext(base)
	if ext != "" {
		base = base[:len(base)-len(ext)]
	}
	return filepath.Join(outputDir, "processed_"+base+".csv")
}
