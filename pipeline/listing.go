package pipeline

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/oohgrid/billboard-etl/utils"
)

var whitespaceRegexp = regexp.MustCompile(`\s+`)

// cleanText collapses internal whitespace and trims, the normalization
// applied to every free-text component of a listing.
func cleanText(s string) string {
	return whitespaceRegexp.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Listing is the marketplace-facing record built from a validated canonical
// row, shaped for the downstream classification/profile API and stores.
type Listing struct {
	OrganizationID     string   `json:"organization_id"`
	OwnerID            string   `json:"owner_id"`
	SourceIID          string   `json:"source_iid"`
	CategoryID         *string  `json:"category_id"`
	LightingType       string   `json:"lighting_type"`
	Quantity           int      `json:"quantity"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Latitude           *float64 `json:"latitude"`
	Longitude          *float64 `json:"longitude"`
	GoogleLocation     *string  `json:"google_location"`
	Address            string   `json:"address"`
	City               string   `json:"city"`
	Street             string   `json:"street"`
	Area               string   `json:"area"`
	Landmark           string   `json:"landmark"`
	Height             *float64 `json:"height"`
	Width              *float64 `json:"width"`
	Unit               string   `json:"unit"`
	CardRatePerUnit    *float64 `json:"card_rate_per_unit"`
	BaseRatePerUnit    *float64 `json:"base_rate_per_unit"`
	ListingStatus      string   `json:"listing_status"`
	VerificationStatus string   `json:"verification_status"`
	ThumbnailURL       string   `json:"thumbnail_url"`
	IsArchived         bool     `json:"is_archived"`
}

// ListingOptions configures the listing enrichment pass.
type ListingOptions struct {
	OrganizationID string
	OwnerID        string
	// Workers bounds the concurrent geocode lookups. Zero means five.
	Workers int
	// RequestInterval is the minimum spacing between geocode calls across
	// the whole pool.
	RequestInterval time.Duration
	Logger          *utils.Logger
}

var ratePrinter = message.NewPrinter(language.English)

// BuildListings turns a validated batch into marketplace listings: address
// enrichment via a bounded worker pool, category resolution against the
// override table, and generated title/description copy.
//
// The second return value is the deduplicated, sorted set of format labels
// that had no category mapping, for one-time operator registration.
func BuildListings(ctx context.Context, b *Batch, resolver *CategoryResolver, geo Geocoder, opts ListingOptions) ([]Listing, []string) {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewStdoutLogger()
	}

	addresses := fetchAddresses(ctx, b, geo, opts, logger)

	listings := make([]Listing, 0, b.Len())
	missing := make(map[string]struct{})

	for _, row := range b.Rows {
		lighting := MapLightingType(row.LightingType)

		var addr Address
		if row.Latitude != nil && row.Longitude != nil {
			addr = addresses[coordKey(*row.Latitude, *row.Longitude)]
		}

		var categoryID *string
		if row.FormatType != "" {
			if id, ok := resolver.Resolve(row.FormatType); ok {
				s := id.String()
				categoryID = &s
			} else {
				missing[row.FormatType] = struct{}{}
			}
		}

		city := addr.City
		if city == "" {
			city = deref(row.City)
		}
		area := addr.Area
		if area == "" {
			area = deref(row.Area)
		}
		street := addr.Street
		if street == "" {
			street = deref(row.Area)
		}

		title, description := listingCopy(row, city, lighting)

		quantity := 1
		if row.Quantity != nil {
			quantity = *row.Quantity
		}

		var googleLocation *string
		if addr.Formatted != "" {
			googleLocation = utils.ToPtr(addr.Formatted)
		}

		listings = append(listings, Listing{
			OrganizationID:     opts.OrganizationID,
			OwnerID:            opts.OwnerID,
			SourceIID:          row.BillboardID,
			CategoryID:         categoryID,
			LightingType:       lighting,
			Quantity:           quantity,
			Title:              title,
			Description:        description,
			Latitude:           row.Latitude,
			Longitude:          row.Longitude,
			GoogleLocation:     googleLocation,
			Address:            deref(row.Location),
			City:               city,
			Street:             street,
			Area:               area,
			Landmark:           deref(row.District),
			Height:             row.HeightFt,
			Width:              row.WidthFt,
			Unit:               "ft",
			CardRatePerUnit:    row.CardRatePerUnit,
			BaseRatePerUnit:    row.BaseRatePerUnit,
			ListingStatus:      "active",
			VerificationStatus: "approved",
			ThumbnailURL:       deref(row.ImageURLs),
			IsArchived:         false,
		})
	}

	return listings, sortedKeys(missing)
}

// fetchAddresses geocodes the batch's distinct coordinate pairs through a
// bounded worker pool. Results are keyed by coordinate so reassembly is
// deterministic regardless of completion order.
func fetchAddresses(ctx context.Context, b *Batch, geo Geocoder, opts ListingOptions, logger *utils.Logger) map[string]Address {
	results := make(map[string]Address)
	if geo == nil {
		return results
	}

	type coord struct{ lat, lon float64 }
	pending := make(map[string]coord)
	for _, row := range b.Rows {
		if row.Latitude == nil || row.Longitude == nil {
			continue
		}
		pending[coordKey(*row.Latitude, *row.Longitude)] = coord{*row.Latitude, *row.Longitude}
	}
	if len(pending) == 0 {
		return results
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 5
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		gateMu   sync.Mutex
		lastCall time.Time
	)
	sem := make(chan struct{}, workers)

	for key, c := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(key string, c coord) {
			defer wg.Done()
			defer func() { <-sem }()

			if opts.RequestInterval > 0 {
				gateMu.Lock()
				if wait := opts.RequestInterval - time.Since(lastCall); wait > 0 {
					time.Sleep(wait)
				}
				lastCall = time.Now()
				gateMu.Unlock()
			}

			addr, err := geo.Reverse(ctx, c.lat, c.lon)
			if err != nil {
				logger.Warn("[listing] geocode %s failed: %v", key, err)
				return
			}
			mu.Lock()
			results[key] = addr
			mu.Unlock()
		}(key, c)
	}
	wg.Wait()

	logger.Info("[listing] geocoded %d of %d distinct coordinates", len(results), len(pending))
	return results
}

// listingCopy generates the marketplace title and description for one row.
func listingCopy(row *Record, city, lighting string) (string, string) {
	format := cleanText(strings.ReplaceAll(row.FormatType, "_", " "))
	location := cleanText(deref(row.Location))
	city = cleanText(city)

	var width, height float64
	if row.WidthFt != nil {
		width = *row.WidthFt
	}
	if row.HeightFt != nil {
		height = *row.HeightFt
	}
	size := ratePrinter.Sprintf("%vx%v ft", width, height)

	rate := "Price on Request"
	if row.BaseRatePerUnit != nil && *row.BaseRatePerUnit > 0 {
		rate = ratePrinter.Sprintf("₹%d", int64(*row.BaseRatePerUnit))
	}

	label := lightingLabel(lighting)
	title := format + " in " + location + ", " + city + " (" + size + ")"
	description := label + " " + format + " located at " + location + ", " + city + ". " +
		"This unit measures " + size + " and is available at " + rate + " per month."
	return title, description
}

// lightingLabel turns the canonical lighting enum back into display copy.
func lightingLabel(lighting string) string {
	switch lighting {
	case LightingDigital:
		return "Digital"
	case LightingBacklit:
		return "Backlit"
	case LightingFrontlit:
		return "Frontlit"
	default:
		return "Non-lit"
	}
}

func coordKey(lat, lon float64) string {
	return ratePrinter.Sprintf("%v,%v", lat, lon)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
