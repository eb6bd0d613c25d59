package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/oohgrid/billboard-etl/pipeline"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestReadFile(t *testing.T) {
	t.Run("CSVHeadersLowercasedAndTrimmed", func(t *testing.T) {
		path := writeTempFile(t, "vendor.csv", []byte(" Billboard_ID ,City\nBB-1,Pune\n"))

		b, err := ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"billboard_id", "city"}, b.Columns())
		require.Equal(t, 1, b.Len())
		assert.Equal(t, "BB-1", b.Rows[0].Raw["billboard_id"])
		assert.Equal(t, "Pune", b.Rows[0].Raw["city"])
	})

	t.Run("Windows1252FallbackDecoding", func(t *testing.T) {
		// 0xE9 is é in windows-1252 and invalid as a standalone UTF-8 byte
		raw := append([]byte("city\nCaf"), 0xE9, '\n')
		path := writeTempFile(t, "latin.csv", raw)

		b, err := ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, 1, b.Len())
		assert.Equal(t, "Café", b.Rows[0].Raw["city"])
	})

	t.Run("IllegalControlCharactersStripped", func(t *testing.T) {
		path := writeTempFile(t, "dirty.csv", []byte("location\nFC\x01 Road\x1f\n"))

		b, err := ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, 1, b.Len())
		assert.Equal(t, "FC Road", b.Rows[0].Raw["location"])
	})

	t.Run("EmptyRowsSkipped", func(t *testing.T) {
		path := writeTempFile(t, "gaps.csv", []byte("billboard_id,city\nBB-1,Pune\n,\nBB-2,Mumbai\n"))

		b, err := ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 2, b.Len())
	})

	t.Run("RaggedRowsTolerated", func(t *testing.T) {
		path := writeTempFile(t, "ragged.csv", []byte("billboard_id,city,area\nBB-1,Pune\nBB-2,Mumbai,Andheri,extra\n"))

		b, err := ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, 2, b.Len())
		_, ok := b.Rows[0].Raw["area"]
		assert.False(t, ok)
		assert.Equal(t, "Andheri", b.Rows[1].Raw["area"])
	})

	t.Run("MissingHeaderIsError", func(t *testing.T) {
		path := writeTempFile(t, "empty.csv", nil)
		_, err := ReadFile(path)
		assert.Error(t, err)
	})

	t.Run("SpreadsheetFirstSheet", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vendor.xlsx")
		f := excelize.NewFile()
		require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Billboard_ID", "City"}))
		require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"BB-1", "Pune"}))
		require.NoError(t, f.SaveAs(path))
		require.NoError(t, f.Close())

		b, err := ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"billboard_id", "city"}, b.Columns())
		require.Equal(t, 1, b.Len())
		assert.Equal(t, "BB-1", b.Rows[0].Raw["billboard_id"])
	})
}

func TestWriteCSV(t *testing.T) {
	t.Run("RoundTripPreservesProjection", func(t *testing.T) {
		b := pipeline.NewBatch([]string{pipeline.ColBillboardID, pipeline.ColCity})
		rec := pipeline.NewRecord()
		rec.BillboardID = "BB-1"
		rec.Raw[pipeline.ColCity] = "Pune"
		b.Rows = append(b.Rows, rec)

		path := filepath.Join(t.TempDir(), "out", "processed.csv")
		require.NoError(t, WriteCSV(path, b))

		got, err := ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, b.Columns(), got.Columns())
		require.Equal(t, 1, got.Len())
		assert.Equal(t, "BB-1", got.Rows[0].Raw[pipeline.ColBillboardID])
		assert.Equal(t, "Pune", got.Rows[0].Raw[pipeline.ColCity])
	})
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "processed_vendor.csv"), OutputPath("out", "vendor.xlsx"))
	assert.Equal(t, filepath.Join("out", "processed_vendor.csv"), OutputPath("out", "/uploads/vendor.csv"))
	assert.Equal(t, filepath.Join("out", "processed_vendor.csv"), OutputPath("out", "vendor"))
}
