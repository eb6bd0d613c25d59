// Package pipeline contains the schema normalization and data-repair stages
// that turn heterogeneous vendor exports into canonical billboard records.
package pipeline

import (
	"strconv"

	"github.com/google/uuid"
)

// Canonical column names recognized by the pipeline stages. Vendor columns are
// renamed onto these via Config.RenameMapping before stage one runs.
const (
	ColBillboardID        = "billboard_id"
	ColFormatType         = "format_type"
	ColLightingType       = "lighting_type"
	ColLatitude           = "latitude"
	ColLongitude          = "longitude"
	ColCity               = "city"
	ColDistrict           = "district"
	ColArea               = "area"
	ColLocality           = "locality"
	ColAddress            = "address"
	ColLocation           = "location"
	ColWidthFt            = "width_ft"
	ColHeightFt           = "height_ft"
	ColDimensions         = "dimensions"
	ColCoordinates        = "coordinates"
	ColQuantity           = "quantity"
	ColFrequencyPerMinute = "frequency_per_minute"
	ColMinimalPrice       = "minimal_price"
	ColBaseRatePerMonth   = "base_rate_per_month"
	ColCardRatePerMonth   = "card_rate_per_month"
	ColBaseRatePerUnit    = "base_rate_per_unit"
	ColCardRatePerUnit    = "card_rate_per_unit"
	ColImageURLs          = "image_urls"
	ColImageURL           = "image_url"
	ColCategoryID         = "category_id"
)

// Record is one billboard row moving through the pipeline. Typed fields are
// populated by the stages from the raw source values; a nil pointer means the
// field has not been resolved yet (or could not be). Raw holds every source
// cell by canonical column name so unrecognized vendor columns pass through
// untouched until the validator projects the final column set.
type Record struct {
	BillboardID        string
	FormatType         string
	LightingType       string
	Latitude           *float64
	Longitude          *float64
	City               *string
	District           *string
	Area               *string
	Locality           *string
	Address            *string
	Location           *string
	WidthFt            *float64
	HeightFt           *float64
	Quantity           *int
	FrequencyPerMinute *int
	MinimalPrice       *float64
	BaseRatePerMonth   *float64
	CardRatePerMonth   *float64
	BaseRatePerUnit    *float64
	CardRatePerUnit    *float64
	ImageURLs          *string
	CategoryID         *uuid.UUID

	Raw map[string]string
}

// NewRecord creates an empty record with an initialized raw cell map.
func NewRecord() *Record {
	return &Record{Raw: make(map[string]string)}
}

// RawValue returns the raw source cell for a column, if one was supplied.
func (r *Record) RawValue(col string) (string, bool) {
	v, ok := r.Raw[col]
	return v, ok
}

// Value renders the record's cell for a column, preferring the typed field
// resolved by the stages over the raw source value. The second return reports
// whether the record carries anything at all for the column; a resolved-but-
// null typed field renders as the empty string.
func (r *Record) Value(col string) (string, bool) {
	switch col {
	case ColBillboardID:
		if r.BillboardID != "" {
			return r.BillboardID, true
		}
	case ColFormatType:
		if r.FormatType != "" {
			return r.FormatType, true
		}
	case ColLightingType:
		if r.LightingType != "" {
			return r.LightingType, true
		}
	case ColLatitude:
		return formatFloat(r.Latitude)
	case ColLongitude:
		return formatFloat(r.Longitude)
	case ColCity:
		return formatString(r.City)
	case ColDistrict:
		return formatString(r.District)
	case ColArea:
		return formatString(r.Area)
	case ColLocality:
		return formatString(r.Locality)
	case ColAddress:
		return formatString(r.Address)
	case ColLocation:
		return formatString(r.Location)
	case ColWidthFt:
		return formatFloat(r.WidthFt)
	case ColHeightFt:
		return formatFloat(r.HeightFt)
	case ColQuantity:
		return formatInt(r.Quantity)
	case ColFrequencyPerMinute:
		return formatInt(r.FrequencyPerMinute)
	case ColMinimalPrice:
		return formatFloat(r.MinimalPrice)
	case ColBaseRatePerMonth:
		return formatFloat(r.BaseRatePerMonth)
	case ColCardRatePerMonth:
		return formatFloat(r.CardRatePerMonth)
	case ColBaseRatePerUnit:
		return formatFloat(r.BaseRatePerUnit)
	case ColCardRatePerUnit:
		return formatFloat(r.CardRatePerUnit)
	case ColImageURLs:
		return formatString(r.ImageURLs)
	case ColCategoryID:
		if r.CategoryID != nil {
			return r.CategoryID.String(), true
		}
	}
	v, ok := r.Raw[col]
	return v, ok
}

func formatFloat(v *float64) (string, bool) {
	if v == nil {
		return "", false
	}
	return strconv.FormatFloat(*v, 'f', -1, 64), true
}

func formatInt(v *int) (string, bool) {
	if v == nil {
		return "", false
	}
	return strconv.Itoa(*v), true
}

func formatString(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	return *v, true
}

// Batch is one tabular record set processed through the pipeline as a unit.
// It tracks column presence explicitly: stage behavior depends on whether a
// source column exists at all, not just on per-row nullness.
type Batch struct {
	order   []string
	columns map[string]struct{}
	Rows    []*Record
}

// NewBatch creates a batch with the given ordered column set.
func NewBatch(columns []string) *Batch {
	b := &Batch{columns: make(map[string]struct{}, len(columns))}
	for _, c := range columns {
		b.addColumn(c)
	}
	return b
}

func (b *Batch) addColumn(name string) {
	if _, ok := b.columns[name]; ok {
		return
	}
	b.columns[name] = struct{}{}
	b.order = append(b.order, name)
}

// AddColumn registers a column on the batch, keeping input order stable.
func (b *Batch) AddColumn(name string) { b.addColumn(name) }

// HasColumn reports whether the batch carries the named column.
func (b *Batch) HasColumn(name string) bool {
	_, ok := b.columns[name]
	return ok
}

// DropColumn removes a column from the batch's projection set. Row raw cells
// are left in place; only the visible column set changes.
func (b *Batch) DropColumn(name string) {
	if _, ok := b.columns[name]; !ok {
		return
	}
	delete(b.columns, name)
	for i, c := range b.order {
		if c == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Columns returns the batch's column names in order.
func (b *Batch) Columns() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int { return len(b.Rows) }

// Empty returns a zero-row batch preserving this batch's column set. Used by
// stages that fail closed on missing structural columns.
func (b *Batch) Empty() *Batch {
	return NewBatch(b.Columns())
}
