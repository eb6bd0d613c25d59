package pipeline

import "sort"

// Rate derivation constants.
const (
	// BaseRateDailyToMonthly converts a daily price basis to a monthly rate.
	// The assumed billing cycle is daily; 30/7 weeks-to-month scaling.
	BaseRateDailyToMonthly = 30.0 / 7.0

	// CardRateMarkup is applied to the base rate when no card rate is given.
	CardRateMarkup = 1.10

	// FallbackMonthlyPrice stands in when a batch has no usable price signal.
	FallbackMonthlyPrice = 15000.0
)

// CalculateFinancials is the fourth pipeline stage: monthly/unit base and
// card rates from messy price strings, with median-based imputation.
func CalculateFinancials(b *Batch) *Batch {
	hasMinimal := b.HasColumn(ColMinimalPrice)

	for _, row := range b.Rows {
		if row.MinimalPrice == nil {
			row.MinimalPrice = CleanNumeric(row.Raw[ColMinimalPrice])
		}
		if row.BaseRatePerMonth == nil {
			row.BaseRatePerMonth = CleanNumeric(row.Raw[ColBaseRatePerMonth])
		}
		if row.CardRatePerMonth == nil {
			row.CardRatePerMonth = CleanNumeric(row.Raw[ColCardRatePerMonth])
		}
	}

	if hasMinimal {
		median := medianMinimalPrice(b)
		if median == 0 {
			median = FallbackMonthlyPrice
		}
		for _, row := range b.Rows {
			if row.BaseRatePerMonth != nil {
				continue
			}
			price := median
			if row.MinimalPrice != nil {
				price = *row.MinimalPrice
			}
			rate := price * BaseRateDailyToMonthly
			row.BaseRatePerMonth = &rate
		}
	}

	for _, row := range b.Rows {
		if row.CardRatePerMonth == nil && row.BaseRatePerMonth != nil {
			card := *row.BaseRatePerMonth * CardRateMarkup
			row.CardRatePerMonth = &card
		}
		// unit and month rates are defined as equal in this domain
		row.BaseRatePerUnit = row.BaseRatePerMonth
		row.CardRatePerUnit = row.CardRatePerMonth
	}

	b.AddColumn(ColBaseRatePerMonth)
	b.AddColumn(ColCardRatePerMonth)
	b.AddColumn(ColBaseRatePerUnit)
	b.AddColumn(ColCardRatePerUnit)
	return b
}

// medianMinimalPrice returns the batch median over non-null minimal prices,
// or zero when the batch has none.
func medianMinimalPrice(b *Batch) float64 {
	prices := make([]float64, 0, len(b.Rows))
	for _, row := range b.Rows {
		if row.MinimalPrice != nil {
			prices = append(prices, *row.MinimalPrice)
		}
	}
	if len(prices) == 0 {
		return 0
	}
	sort.Float64s(prices)
	mid := len(prices) / 2
	if len(prices)%2 == 1 {
		return prices[mid]
	}
	return (prices[mid-1] + prices[mid]) / 2
}
