package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawRow(cells map[string]string) *Record {
	rec := NewRecord()
	for k, v := range cells {
		rec.Raw[k] = v
	}
	return rec
}

func TestStandardize(t *testing.T) {
	t.Run("MapsFormatAndLightingVocabulary", func(t *testing.T) {
		b := NewBatch([]string{ColBillboardID, ColFormatType, ColLightingType})
		b.Rows = append(b.Rows,
			rawRow(map[string]string{ColBillboardID: "BB-1", ColFormatType: "Bus Shelter", ColLightingType: "back lit"}),
			rawRow(map[string]string{ColBillboardID: "BB-2", ColFormatType: "Skywalk", ColLightingType: "LED"}),
			rawRow(map[string]string{ColBillboardID: "BB-3", ColFormatType: "Hoarding", ColLightingType: "non lit"}),
		)

		out := Standardize(b)
		require.Equal(t, 3, out.Len())
		assert.Equal(t, "Bus_Shelter", out.Rows[0].FormatType)
		assert.Equal(t, "Backlit", out.Rows[0].LightingType)
		assert.Equal(t, "Gantry", out.Rows[1].FormatType)
		assert.Equal(t, "Digital", out.Rows[1].LightingType)
		assert.Equal(t, "Hoarding", out.Rows[2].FormatType)
		assert.Equal(t, "Unlit", out.Rows[2].LightingType)
	})

	t.Run("UnmappedValuesPassThrough", func(t *testing.T) {
		b := NewBatch([]string{ColBillboardID, ColFormatType, ColLightingType})
		b.Rows = append(b.Rows,
			rawRow(map[string]string{ColBillboardID: "BB-1", ColFormatType: "Wall Wrap", ColLightingType: "ambient glow"}),
		)

		out := Standardize(b)
		require.Equal(t, 1, out.Len())
		assert.Equal(t, "Wall Wrap", out.Rows[0].FormatType)
		assert.Equal(t, "Ambient Glow", out.Rows[0].LightingType)
	})

	t.Run("FirstOccurrenceWinsOnDuplicateID", func(t *testing.T) {
		b := NewBatch([]string{ColBillboardID, ColFormatType})
		b.Rows = append(b.Rows,
			rawRow(map[string]string{ColBillboardID: "BB-1", ColFormatType: "Hoarding"}),
			rawRow(map[string]string{ColBillboardID: "BB-1", ColFormatType: "Bus Shelter"}),
		)

		out := Standardize(b)
		require.Equal(t, 1, out.Len())
		assert.Equal(t, "Hoarding", out.Rows[0].FormatType)
	})

	t.Run("DropsBlankAndNanIDs", func(t *testing.T) {
		b := NewBatch([]string{ColBillboardID})
		b.Rows = append(b.Rows,
			rawRow(map[string]string{ColBillboardID: "  "}),
			rawRow(map[string]string{ColBillboardID: "NaN"}),
			rawRow(map[string]string{ColBillboardID: "BB-9"}),
		)

		out := Standardize(b)
		require.Equal(t, 1, out.Len())
		assert.Equal(t, "BB-9", out.Rows[0].BillboardID)
	})

	t.Run("MissingIDColumnFailsClosed", func(t *testing.T) {
		b := NewBatch([]string{ColFormatType})
		b.Rows = append(b.Rows, rawRow(map[string]string{ColFormatType: "Hoarding"}))

		out := Standardize(b)
		assert.Equal(t, 0, out.Len())
		assert.True(t, out.HasColumn(ColFormatType))
	})

	t.Run("DropsSpreadsheetIndexColumn", func(t *testing.T) {
		b := NewBatch([]string{"id", ColBillboardID})
		b.Rows = append(b.Rows, rawRow(map[string]string{"id": "0", ColBillboardID: "BB-1"}))

		out := Standardize(b)
		assert.False(t, out.HasColumn("id"))
		assert.True(t, out.HasColumn(ColBillboardID))
	})
}

func TestApplyMapping(t *testing.T) {
	t.Run("RenamesVendorColumns", func(t *testing.T) {
		b := NewBatch([]string{"code", "size"})
		b.Rows = append(b.Rows, rawRow(map[string]string{"code": "BB-1", "size": "40x20"}))

		ApplyMapping(b, map[string]string{"code": ColBillboardID, "size": ColDimensions}, nil)

		assert.Equal(t, []string{ColBillboardID, ColDimensions}, b.Columns())
		assert.Equal(t, "BB-1", b.Rows[0].Raw[ColBillboardID])
		assert.Equal(t, "40x20", b.Rows[0].Raw[ColDimensions])
		_, stale := b.Rows[0].Raw["code"]
		assert.False(t, stale)
	})

	t.Run("InjectsStaticColumns", func(t *testing.T) {
		b := NewBatch([]string{ColBillboardID})
		b.Rows = append(b.Rows,
			rawRow(map[string]string{ColBillboardID: "BB-1"}),
			rawRow(map[string]string{ColBillboardID: "BB-2"}),
		)

		ApplyMapping(b, nil, map[string]string{ColCity: "Pune"})

		assert.True(t, b.HasColumn(ColCity))
		for _, row := range b.Rows {
			assert.Equal(t, "Pune", row.Raw[ColCity])
		}
	})

	t.Run("StaticColumnOrderIsStable", func(t *testing.T) {
		static := map[string]string{"ddd": "4", "aaa": "1", "ccc": "3", "bbb": "2"}

		want := []string{ColBillboardID, "aaa", "bbb", "ccc", "ddd"}
		for i := 0; i < 50; i++ {
			b := NewBatch([]string{ColBillboardID})
			b.Rows = append(b.Rows, rawRow(map[string]string{ColBillboardID: "BB-1"}))

			ApplyMapping(b, nil, static)
			require.Equal(t, want, b.Columns(), "iteration %d", i)
		}
	})

	t.Run("ChainedRenamesApplySimultaneously", func(t *testing.T) {
		// "a" moves to "b" while the original "b" moves to "c"; neither
		// value may be moved twice regardless of map iteration order
		for i := 0; i < 50; i++ {
			b := NewBatch([]string{"a", "b"})
			b.Rows = append(b.Rows, rawRow(map[string]string{"a": "1", "b": "2"}))

			ApplyMapping(b, map[string]string{"a": "b", "b": "c"}, nil)

			require.Equal(t, []string{"b", "c"}, b.Columns(), "iteration %d", i)
			require.Equal(t, "1", b.Rows[0].Raw["b"], "iteration %d", i)
			require.Equal(t, "2", b.Rows[0].Raw["c"], "iteration %d", i)
		}
	})
}
