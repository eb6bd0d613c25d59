package pipeline

import "github.com/oohgrid/billboard-etl/utils"

// Global dimension fallbacks in feet, used when neither an explicit value nor
// a format-type group mean is available.
const (
	DefaultWidthFt  = 20.0
	DefaultHeightFt = 10.0

	BusShelterWidthFt  = 25.0
	BusShelterHeightFt = 5.0

	DigitalFrequencyPerMinute = 10
)

// FillDimensions is the third pipeline stage: width/height repair and the
// inventory defaults for quantity and play frequency.
//
// Fill priority, most specific first: explicit value > extracted from the
// combined dimensions string > Bus_Shelter constants > per-format batch mean
// > global default. Explicit values are never overwritten.
func FillDimensions(b *Batch) *Batch {
	b.AddColumn(ColWidthFt)
	b.AddColumn(ColHeightFt)
	b.AddColumn(ColQuantity)
	b.AddColumn(ColFrequencyPerMinute)

	for _, row := range b.Rows {
		if row.WidthFt == nil {
			row.WidthFt = parseFloatCell(row.Raw[ColWidthFt])
		}
		if row.HeightFt == nil {
			row.HeightFt = parseFloatCell(row.Raw[ColHeightFt])
		}

		if (row.WidthFt == nil || row.HeightFt == nil) && b.HasColumn(ColDimensions) {
			w, h := ParseDimensionPair(row.Raw[ColDimensions])
			if row.WidthFt == nil {
				row.WidthFt = w
			}
			if row.HeightFt == nil {
				row.HeightFt = h
			}
		}
	}

	// per-format batch means over the values known so far
	type agg struct {
		wSum, hSum float64
		wN, hN     int
	}
	means := make(map[string]*agg)
	if b.HasColumn(ColFormatType) {
		for _, row := range b.Rows {
			a := means[row.FormatType]
			if a == nil {
				a = &agg{}
				means[row.FormatType] = a
			}
			if row.WidthFt != nil {
				a.wSum += *row.WidthFt
				a.wN++
			}
			if row.HeightFt != nil {
				a.hSum += *row.HeightFt
				a.hN++
			}
		}
	}

	for _, row := range b.Rows {
		if row.FormatType == FormatBusShelter {
			if row.WidthFt == nil {
				w := BusShelterWidthFt
				row.WidthFt = &w
			}
			if row.HeightFt == nil {
				h := BusShelterHeightFt
				row.HeightFt = &h
			}
		}
		if a := means[row.FormatType]; a != nil {
			if row.WidthFt == nil && a.wN > 0 {
				m := a.wSum / float64(a.wN)
				row.WidthFt = &m
			}
			if row.HeightFt == nil && a.hN > 0 {
				m := a.hSum / float64(a.hN)
				row.HeightFt = &m
			}
		}
		if row.WidthFt == nil {
			w := float64(DefaultWidthFt)
			row.WidthFt = &w
		}
		if row.HeightFt == nil {
			h := float64(DefaultHeightFt)
			row.HeightFt = &h
		}

		if row.FrequencyPerMinute == nil {
			row.FrequencyPerMinute = parseIntCell(row.Raw[ColFrequencyPerMinute])
		}
		if row.FrequencyPerMinute == nil {
			freq := 0
			if row.FormatType == FormatDigitalOOH || row.LightingType == LightingDigital {
				freq = DigitalFrequencyPerMinute
			}
			row.FrequencyPerMinute = &freq
		}

		if row.Quantity == nil {
			row.Quantity = parseIntCell(row.Raw[ColQuantity])
		}
		// zero is a data error, not a legitimate count
		if row.Quantity == nil || *row.Quantity == 0 {
			row.Quantity = utils.ToPtr(1)
		}
	}

	return b
}
