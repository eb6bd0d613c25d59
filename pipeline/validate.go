package pipeline

import "strings"

// Rejection reasons for whole-batch structural failures. These are distinct
// from "input had zero rows": the caller should check their column mapping.
const (
	RejectNoImageColumn      = "no image column"
	RejectNoCoordinateColumn = "no coordinate columns"
)

// invalid image placeholder values, compared case-insensitively
var invalidImageValues = map[string]struct{}{
	"":     {},
	"nan":  {},
	"null": {},
	"none": {},
	"[]":   {},
}

// coreColumns are always kept in the output regardless of user config.
var coreColumns = []string{
	ColBillboardID, ColLatitude, ColLongitude, ColWidthFt, ColHeightFt,
	ColFrequencyPerMinute, ColQuantity, ColLightingType, ColFormatType,
	ColCity, ColArea, ColDistrict, ColLocation,
	ColBaseRatePerMonth, ColBaseRatePerUnit,
	ColCardRatePerMonth, ColCardRatePerUnit, ColImageURLs,
}

// preferredColumnOrder fixes the display ordering of the output; columns not
// listed are appended afterwards in batch order.
var preferredColumnOrder = []string{
	ColBillboardID, ColLocation, ColArea, ColLocality, ColCity, ColDistrict,
	ColFormatType, ColLightingType, ColWidthFt, ColHeightFt,
	ColBaseRatePerMonth, ColBaseRatePerUnit, ColCardRatePerUnit, ColCardRatePerMonth,
	ColMinimalPrice, ColLatitude, ColLongitude, ColQuantity,
	ColFrequencyPerMinute, ColImageURLs,
}

// ValidationReport is the audit output of the strict row-level gate. Counts
// describe what was removed; they do not alter record content.
type ValidationReport struct {
	InputRows     int    `json:"input_rows"`
	DroppedImages int    `json:"dropped_images"`
	DroppedCoords int    `json:"dropped_coords"`
	FinalRows     int    `json:"final_rows"`
	Rejected      bool   `json:"rejected"`
	RejectReason  string `json:"reject_reason,omitempty"`
}

// Validate is the final pipeline stage: the strict publishability gate plus
// column projection. Image presence and valid non-zero coordinates are hard
// requirements; a batch without the structural columns for either check is
// rejected outright.
func Validate(b *Batch, keepColumns []string) (*Batch, ValidationReport) {
	report := ValidationReport{InputRows: b.Len()}

	imageCol := ""
	switch {
	case b.HasColumn(ColImageURLs):
		imageCol = ColImageURLs
	case b.HasColumn(ColImageURL):
		imageCol = ColImageURL
	default:
		report.Rejected = true
		report.RejectReason = RejectNoImageColumn
		return b.Empty(), report
	}

	if !b.HasColumn(ColLatitude) || !b.HasColumn(ColLongitude) {
		report.Rejected = true
		report.RejectReason = RejectNoCoordinateColumn
		return b.Empty(), report
	}

	out := NewBatch(b.Columns())
	for _, row := range b.Rows {
		img := imageValue(row, imageCol)
		if _, invalid := invalidImageValues[strings.ToLower(strings.TrimSpace(img))]; invalid {
			report.DroppedImages++
			continue
		}
		if row.ImageURLs == nil {
			row.ImageURLs = &img
		}

		if row.Latitude == nil || row.Longitude == nil ||
			(*row.Latitude == 0 && *row.Longitude == 0) {
			report.DroppedCoords++
			continue
		}

		out.Rows = append(out.Rows, row)
	}

	if imageCol == ColImageURL {
		// canonical name wins once the values are captured per row
		out.AddColumn(ColImageURLs)
		out.DropColumn(ColImageURL)
	}

	projectColumns(out, keepColumns)
	report.FinalRows = out.Len()
	return out, report
}

func imageValue(row *Record, imageCol string) string {
	if row.ImageURLs != nil {
		return *row.ImageURLs
	}
	return row.Raw[imageCol]
}

// projectColumns prunes the batch to keepColumns unioned with the fixed core
// set, drops raw source columns that have been split, and applies the
// preferred display ordering.
func projectColumns(b *Batch, keepColumns []string) {
	want := make(map[string]struct{}, len(keepColumns)+len(coreColumns))
	for _, c := range keepColumns {
		want[c] = struct{}{}
	}
	for _, c := range coreColumns {
		want[c] = struct{}{}
	}

	// raw combined columns are redundant once their split equivalents exist
	if b.HasColumn(ColWidthFt) && b.HasColumn(ColHeightFt) {
		delete(want, ColDimensions)
	}
	if b.HasColumn(ColLatitude) && b.HasColumn(ColLongitude) {
		delete(want, ColCoordinates)
	}

	existing := b.Columns()
	ordered := make([]string, 0, len(existing))
	taken := make(map[string]struct{}, len(existing))
	for _, c := range preferredColumnOrder {
		if _, keep := want[c]; keep && b.HasColumn(c) {
			ordered = append(ordered, c)
			taken[c] = struct{}{}
		}
	}
	for _, c := range existing {
		if _, done := taken[c]; done {
			continue
		}
		if _, keep := want[c]; keep {
			ordered = append(ordered, c)
		}
	}

	*b = *NewBatch(ordered).withRows(b.Rows)
}

func (b *Batch) withRows(rows []*Record) *Batch {
	b.Rows = rows
	return b
}
