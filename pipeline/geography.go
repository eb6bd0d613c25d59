package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/oohgrid/billboard-etl/utils"
)

// Address is the result of one geocoding lookup. Empty fields mean the
// collaborator could not resolve that component.
type Address struct {
	Formatted string
	City      string
	Area      string
	Street    string
}

// Geocoder resolves coordinates to address components. Implementations are
// treated as unreliable: an error degrades the row to null address fields and
// never aborts the batch.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (Address, error)
}

// GeographyOptions configures the geography stage.
type GeographyOptions struct {
	CoordOrder CoordinateOrder
	// Geocoder enables the reverse-geocode fallback for rows that end the
	// stage with coordinates but no location text. Nil skips the fallback.
	Geocoder Geocoder
	// RequestInterval spaces sequential reverse-geocode calls. Zero means
	// one second, matching the collaborator's documented rate limit.
	RequestInterval time.Duration
	Logger          *utils.Logger
}

// ExtractGeography is the second pipeline stage: coordinate resolution and
// the city/district/area/location hierarchy.
func ExtractGeography(ctx context.Context, b *Batch, opts GeographyOptions) *Batch {
	order := opts.CoordOrder
	if !order.Valid() {
		order = CoordOrderLonLat
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewStdoutLogger()
	}

	b.AddColumn(ColLatitude)
	b.AddColumn(ColLongitude)

	for _, row := range b.Rows {
		// coerce split columns first; unparseable text becomes null
		if row.Latitude == nil {
			row.Latitude = parseFloatCell(row.Raw[ColLatitude])
		}
		if row.Longitude == nil {
			row.Longitude = parseFloatCell(row.Raw[ColLongitude])
		}

		// single-column fallback fills only the missing side, never
		// overwriting a value the vendor supplied split
		if (row.Latitude == nil || row.Longitude == nil) && b.HasColumn(ColCoordinates) {
			lat, lon := ParseCoordinatePair(row.Raw[ColCoordinates], order)
			if row.Latitude == nil {
				row.Latitude = lat
			}
			if row.Longitude == nil {
				row.Longitude = lon
			}
		}

		if b.HasColumn(ColCity) {
			if city := strings.TrimSpace(row.Raw[ColCity]); city != "" && !strings.EqualFold(city, "nan") {
				row.City = utils.ToPtr(titleCaser.String(city))
			}
		}
		if b.HasColumn(ColDistrict) {
			if d := strings.TrimSpace(row.Raw[ColDistrict]); d != "" && !strings.EqualFold(d, "nan") {
				row.District = utils.ToPtr(d)
			}
		}
		if row.District == nil && row.City != nil {
			row.District = row.City
		}

		if b.HasColumn(ColLocality) {
			if loc := strings.TrimSpace(row.Raw[ColLocality]); loc != "" && !strings.EqualFold(loc, "nan") {
				row.Locality = utils.ToPtr(loc)
			}
		}
		if b.HasColumn(ColArea) {
			if a := strings.TrimSpace(row.Raw[ColArea]); a != "" && !strings.EqualFold(a, "nan") {
				row.Area = utils.ToPtr(a)
			}
		}
		if row.Area == nil && !b.HasColumn(ColArea) && row.Locality != nil {
			area := *row.Locality
			if i := strings.Index(area, ","); i >= 0 {
				area = strings.TrimSpace(area[:i])
			}
			row.Area = &area
		}

		if b.HasColumn(ColAddress) {
			if a := strings.TrimSpace(row.Raw[ColAddress]); a != "" && !strings.EqualFold(a, "nan") {
				row.Address = utils.ToPtr(a)
			}
		}
		if b.HasColumn(ColLocation) {
			if l := strings.TrimSpace(row.Raw[ColLocation]); l != "" && !strings.EqualFold(l, "nan") {
				row.Location = utils.ToPtr(l)
			}
		}
		if row.Location == nil && !b.HasColumn(ColLocation) && row.Address != nil {
			row.Location = row.Address
		}
	}
	if !b.HasColumn(ColArea) && b.HasColumn(ColLocality) {
		b.AddColumn(ColArea)
	}
	if !b.HasColumn(ColDistrict) && b.HasColumn(ColCity) {
		b.AddColumn(ColDistrict)
	}
	if !b.HasColumn(ColLocation) && b.HasColumn(ColAddress) {
		b.AddColumn(ColLocation)
	}

	if opts.Geocoder != nil {
		reverseGeocodeMissing(ctx, b, opts.Geocoder, opts.RequestInterval, logger)
	}

	return b
}

// reverseGeocodeMissing fills location text for rows that have coordinates
// but no location. Calls are sequential and spaced by interval; this is the
// only blocking I/O inside the transform stages and dominates wall clock on
// batches without pre-supplied location text.
func reverseGeocodeMissing(ctx context.Context, b *Batch, geo Geocoder, interval time.Duration, logger *utils.Logger) {
	if interval <= 0 {
		interval = time.Second
	}

	var resolved, failed int
	first := true
	for i, row := range b.Rows {
		if row.Location != nil && strings.TrimSpace(*row.Location) != "" {
			continue
		}
		if row.Latitude == nil || row.Longitude == nil {
			continue
		}
		if ctx.Err() != nil {
			logger.Warn("[geography] reverse geocode aborted: %v", ctx.Err())
			break
		}
		if !first {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return
			}
		}
		first = false

		addr, err := geo.Reverse(ctx, *row.Latitude, *row.Longitude)
		if err != nil || addr.Formatted == "" {
			failed++
			logger.Warn("[geography] row %d (%s): reverse geocode failed: %v", i, row.BillboardID, err)
			continue
		}
		row.Location = utils.ToPtr(addr.Formatted)
		if row.City == nil && addr.City != "" {
			row.City = utils.ToPtr(addr.City)
		}
		if row.Area == nil && addr.Area != "" {
			row.Area = utils.ToPtr(addr.Area)
		}
		resolved++
		logger.Debug("[geography] row %d (%s): location resolved", i, row.BillboardID)
	}

	if resolved > 0 || failed > 0 {
		b.AddColumn(ColLocation)
		logger.Info("[geography] reverse geocode: %d resolved, %d failed", resolved, failed)
	}
}
