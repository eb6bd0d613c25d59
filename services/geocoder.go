// Package services contains the outbound clients the pipeline depends on:
// the geocoding provider and the billboard profile API.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oohgrid/billboard-etl/pipeline"
)

// GoogleGeocoder resolves coordinates to addresses through the Google Maps
// Geocoding API. Results are cached in memory keyed by "lat,lng" so repeated
// runs over overlapping inventory do not burn quota. Coordinates the provider
// cannot resolve cache as empty addresses and are not retried in-process;
// transport errors are not cached.
type GoogleGeocoder struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	mu    sync.RWMutex
	cache map[string]pipeline.Address
}

const defaultGeocodeBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// NewGoogleGeocoder creates a geocoder client. baseURL may be empty to use
// the public endpoint.
func NewGoogleGeocoder(baseURL, apiKey string, timeout time.Duration) *GoogleGeocoder {
	if baseURL == "" {
		baseURL = defaultGeocodeBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleGeocoder{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		cache:      make(map[string]pipeline.Address),
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress  string `json:"formatted_address"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

// Reverse resolves a coordinate pair to an address. A provider response with
// no results is not an error; it returns an empty address.
func (g *GoogleGeocoder) Reverse(ctx context.Context, lat, lon float64) (pipeline.Address, error) {
	key := cacheKey(lat, lon)

	g.mu.RLock()
	addr, ok := g.cache[key]
	g.mu.RUnlock()
	if ok {
		return addr, nil
	}

	if g.APIKey == "" {
		return pipeline.Address{}, fmt.Errorf("geocoder api key is not configured")
	}

	q := url.Values{}
	q.Set("latlng", key)
	q.Set("key", g.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return pipeline.Address{}, err
	}

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return pipeline.Address{}, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pipeline.Address{}, fmt.Errorf("geocode request returned status %d", resp.StatusCode)
	}

	var out geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return pipeline.Address{}, fmt.Errorf("failed to decode geocode response: %w", err)
	}

	addr = parseGeocodeResult(out)

	g.mu.Lock()
	g.cache[key] = addr
	g.mu.Unlock()
	return addr, nil
}

// CacheSize returns the number of cached coordinate lookups.
func (g *GoogleGeocoder) CacheSize() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cache)
}

// parseGeocodeResult extracts the first result's formatted address and the
// locality, sublocality/neighborhood and route components.
func parseGeocodeResult(out geocodeResponse) pipeline.Address {
	var addr pipeline.Address
	if out.Status != "OK" || len(out.Results) == 0 {
		return addr
	}

	first := out.Results[0]
	addr.Formatted = first.FormattedAddress
	for _, comp := range first.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "locality":
				addr.City = comp.LongName
			case "sublocality", "neighborhood":
				addr.Area = comp.LongName
			case "route":
				addr.Street = comp.LongName
			}
		}
	}
	return addr
}

func cacheKey(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}
