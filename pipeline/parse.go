package pipeline

import (
	"regexp"
	"strconv"
	"strings"
)

// CoordinateOrder declares which token comes first in a single-column
// coordinate string. Vendor feeds disagree, so the order is configuration
// rather than a guess.
type CoordinateOrder string

const (
	// CoordOrderLonLat reads "A,B" as longitude=A, latitude=B.
	CoordOrderLonLat CoordinateOrder = "lonlat"
	// CoordOrderLatLon reads "A,B" as latitude=A, longitude=B.
	CoordOrderLatLon CoordinateOrder = "latlon"
)

// Valid reports whether the order is one of the two known values.
func (o CoordinateOrder) Valid() bool {
	return o == CoordOrderLonLat || o == CoordOrderLatLon
}

var (
	// numericRegexp captures the first numeric token in a messy value
	numericRegexp = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	// coordPairRegexp captures two signed floats separated by comma or whitespace
	coordPairRegexp = regexp.MustCompile(`(-?\d+(?:\.\d+)?)[,\s]+(-?\d+(?:\.\d+)?)`)
	// dimWidthRegexp / dimHeightRegexp capture a number immediately before a W/H marker
	dimWidthRegexp  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*W`)
	dimHeightRegexp = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*H`)
	// dimPairRegexp captures "NxM" style dimensions with x, * or whitespace separators
	dimPairRegexp = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[xX*\s]\s*(\d+(?:\.\d+)?)`)
)

// coordinate strings treated as missing rather than parsed
var missingCoordValues = map[string]struct{}{
	"":    {},
	"0,0": {},
	"0":   {},
	"nan": {},
}

// ParseCoordinatePair extracts a latitude/longitude pair from a single
// free-form string. It is total: any unparseable input yields (nil, nil),
// never an error. Token order is governed by the configured CoordinateOrder.
func ParseCoordinatePair(raw string, order CoordinateOrder) (lat, lon *float64) {
	s := strings.TrimSpace(raw)
	if _, missing := missingCoordValues[strings.ToLower(s)]; missing {
		return nil, nil
	}

	m := coordPairRegexp.FindStringSubmatch(s)
	if m == nil {
		return nil, nil
	}
	first, err1 := strconv.ParseFloat(m[1], 64)
	second, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return nil, nil
	}

	if order == CoordOrderLatLon {
		return &first, &second
	}
	return &second, &first
}

// ParseDimensionPair extracts width and height in feet from a combined
// dimension string. Values marked with W/H win; when neither marker is
// present an "NxM" pattern is tried with width first. Total, never errors.
func ParseDimensionPair(raw string) (width, height *float64) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}

	if m := dimWidthRegexp.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			width = &v
		}
	}
	if m := dimHeightRegexp.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			height = &v
		}
	}
	if width != nil || height != nil {
		return width, height
	}

	if m := dimPairRegexp.FindStringSubmatch(s); m != nil {
		w, err1 := strconv.ParseFloat(m[1], 64)
		h, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil {
			return &w, &h
		}
	}
	return nil, nil
}

// CleanNumeric extracts a numeric value from a messy price-like string, e.g.
// "Rs. 50,000" -> 50000. Thousands separators are stripped and the first
// numeric token wins. Returns nil (not zero) when no digits are found.
func CleanNumeric(raw string) *float64 {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" || strings.EqualFold(s, "nan") {
		return nil
	}
	m := numericRegexp.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseFloatCell coerces a raw cell to a float, treating unparseable text as
// null the way the stages expect.
func parseFloatCell(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseIntCell coerces a raw cell to an int, accepting float renderings like
// "2.0" that spreadsheet exports produce.
func parseIntCell(raw string) *int {
	f := parseFloatCell(raw)
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}
