package pipeline

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// formatTypeMap is the fixed vendor-label to canonical format mapping.
// Unmapped labels pass through unchanged.
var formatTypeMap = map[string]string{
	"Bus Shelter": "Bus_Shelter",
	"Skywalk":     "Gantry",
	"Digital OOH": "Digital_OOH",
	"Road Median": "Road_Median",
	"Pole Kiosk":  "Pole_Kiosk",
	"Hoarding":    "Hoarding",
}

// lightingTypeMap keys are the upper-cased, trimmed vendor values. Unmapped
// values are title-cased instead of passed through raw.
var lightingTypeMap = map[string]string{
	"NON LIT":   "Unlit",
	"UNLIT":     "Unlit",
	"BACK LIT":  "Backlit",
	"FRONT LIT": "Frontlit",
	"LED":       "Digital",
	"DIGITAL":   "Digital",
}

// Canonical format types with special default behavior downstream.
const (
	FormatBusShelter = "Bus_Shelter"
	FormatDigitalOOH = "Digital_OOH"
)

// Standardize is the first pipeline stage: identifier hygiene and the fixed
// format/lighting vocabulary maps.
//
// A batch without a billboard_id column fails closed to zero rows rather than
// erroring; the orchestrator reports that separately from genuinely empty
// input so the caller knows to check their mapping.
func Standardize(b *Batch) *Batch {
	// pass-through index column from spreadsheet exports
	b.DropColumn("id")

	if !b.HasColumn(ColBillboardID) {
		return b.Empty()
	}

	out := NewBatch(b.Columns())
	seen := make(map[string]struct{}, len(b.Rows))
	for _, row := range b.Rows {
		id := strings.TrimSpace(row.Raw[ColBillboardID])
		if id == "" || strings.EqualFold(id, "nan") {
			continue
		}
		if _, dup := seen[id]; dup {
			// first occurrence wins
			continue
		}
		seen[id] = struct{}{}
		row.BillboardID = id

		if b.HasColumn(ColFormatType) {
			raw := strings.TrimSpace(row.Raw[ColFormatType])
			if mapped, ok := formatTypeMap[raw]; ok {
				row.FormatType = mapped
			} else {
				row.FormatType = raw
			}
		}

		if b.HasColumn(ColLightingType) {
			raw := strings.ToUpper(strings.TrimSpace(row.Raw[ColLightingType]))
			if mapped, ok := lightingTypeMap[raw]; ok {
				row.LightingType = mapped
			} else if raw != "" && !strings.EqualFold(raw, "nan") {
				row.LightingType = titleCaser.String(raw)
			}
		}

		out.Rows = append(out.Rows, row)
	}
	return out
}
