package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateFinancials(t *testing.T) {
	t.Run("OwnMinimalPriceDerivesMonthlyRate", func(t *testing.T) {
		b := NewBatch([]string{ColBillboardID, ColMinimalPrice})
		row := rawRow(map[string]string{ColMinimalPrice: "7000"})
		b.Rows = append(b.Rows, row)

		CalculateFinancials(b)
		require.NotNil(t, row.BaseRatePerMonth)
		assert.InDelta(t, 7000*BaseRateDailyToMonthly, *row.BaseRatePerMonth, 1e-9)
	})

	t.Run("MedianImputationForMissingPrices", func(t *testing.T) {
		b := NewBatch([]string{ColBillboardID, ColMinimalPrice})
		b.Rows = append(b.Rows,
			rawRow(map[string]string{ColMinimalPrice: "100"}),
			rawRow(map[string]string{ColMinimalPrice: "300"}),
			rawRow(map[string]string{ColMinimalPrice: "200"}),
			rawRow(nil),
		)

		CalculateFinancials(b)
		imputed := b.Rows[3]
		require.NotNil(t, imputed.BaseRatePerMonth)
		assert.InDelta(t, 200*BaseRateDailyToMonthly, *imputed.BaseRatePerMonth, 1e-9)
	})

	t.Run("FallbackPriceWhenBatchHasNoSignal", func(t *testing.T) {
		b := NewBatch([]string{ColBillboardID, ColMinimalPrice})
		row := rawRow(map[string]string{ColMinimalPrice: "nan"})
		b.Rows = append(b.Rows, row)

		CalculateFinancials(b)
		require.NotNil(t, row.BaseRatePerMonth)
		assert.InDelta(t, FallbackMonthlyPrice*BaseRateDailyToMonthly, *row.BaseRatePerMonth, 1e-9)
	})

	t.Run("CardRateMarkupWhenMissing", func(t *testing.T) {
		b := NewBatch([]string{ColBillboardID, ColBaseRatePerMonth})
		row := rawRow(map[string]string{ColBaseRatePerMonth: "10000"})
		b.Rows = append(b.Rows, row)

		CalculateFinancials(b)
		require.NotNil(t, row.CardRatePerMonth)
		assert.InDelta(t, 11000, *row.CardRatePerMonth, 1e-9)
	})

	t.Run("ExplicitCardRateKept", func(t *testing.T) {
		b := NewBatch([]string{ColBillboardID, ColBaseRatePerMonth, ColCardRatePerMonth})
		row := rawRow(map[string]string{ColBaseRatePerMonth: "10000", ColCardRatePerMonth: "12500"})
		b.Rows = append(b.Rows, row)

		CalculateFinancials(b)
		require.NotNil(t, row.CardRatePerMonth)
		assert.Equal(t, 12500.0, *row.CardRatePerMonth)
	})

	t.Run("UnitRatesMirrorMonthlyRates", func(t *testing.T) {
		b := NewBatch([]string{ColBillboardID, ColBaseRatePerMonth})
		row := rawRow(map[string]string{ColBaseRatePerMonth: "9000"})
		b.Rows = append(b.Rows, row)

		CalculateFinancials(b)
		require.NotNil(t, row.BaseRatePerUnit)
		require.NotNil(t, row.CardRatePerUnit)
		assert.Equal(t, *row.BaseRatePerMonth, *row.BaseRatePerUnit)
		assert.Equal(t, *row.CardRatePerMonth, *row.CardRatePerUnit)
	})

	t.Run("NoMinimalColumnLeavesBaseRateNull", func(t *testing.T) {
		b := NewBatch([]string{ColBillboardID})
		row := rawRow(nil)
		b.Rows = append(b.Rows, row)

		CalculateFinancials(b)
		assert.Nil(t, row.BaseRatePerMonth)
		assert.Nil(t, row.CardRatePerMonth)
	})

	t.Run("IdempotentOverItsOwnOutput", func(t *testing.T) {
		b := NewBatch([]string{ColBillboardID, ColMinimalPrice})
		row := rawRow(map[string]string{ColMinimalPrice: "7000"})
		b.Rows = append(b.Rows, row)

		CalculateFinancials(b)
		first := *row.BaseRatePerMonth
		CalculateFinancials(b)
		assert.Equal(t, first, *row.BaseRatePerMonth)
	})
}
