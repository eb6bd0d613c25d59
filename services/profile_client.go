package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oohgrid/billboard-etl/pipeline"
)

// BillboardPayload is one record submitted to the profile API. Field names
// follow the API contract, not the pipeline's canonical column names.
type BillboardPayload struct {
	BillboardID        string   `json:"billboard_id"`
	Lat                float64  `json:"lat"`
	Lon                float64  `json:"lon"`
	WidthFt            float64  `json:"width_ft"`
	HeightFt           float64  `json:"height_ft"`
	LightingType       string   `json:"lighting_type"`
	FormatType         string   `json:"format_type"`
	Quantity           int      `json:"quantity"`
	FrequencyPerMinute int      `json:"frequency_per_minute"`
	Locality           string   `json:"locality"`
	ImageURLs          []string `json:"image_urls"`
}

// ProfileResult is the API's verdict on one submitted billboard. Profile is
// kept as raw JSON; the document store persists it verbatim.
type ProfileResult struct {
	BillboardID string          `json:"billboard_id"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	Profile     json.RawMessage `json:"profile,omitempty"`
}

// Success reports whether the API classified this record.
func (r ProfileResult) Success() bool { return r.Status == "success" }

// ProfileClient submits billboard batches to the classification profile API.
type ProfileClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Profile batches run through a slow ML pipeline upstream; the timeout has to
// cover a full batch, not a single request-response.
const defaultProfileTimeout = 15 * time.Minute

// NewProfileClient creates a profile API client with a bearer token.
func NewProfileClient(baseURL, token string, timeout time.Duration) *ProfileClient {
	if timeout <= 0 {
		timeout = defaultProfileTimeout
	}
	return &ProfileClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type profileBatchRequest struct {
	BatchID    string             `json:"batch_id"`
	Billboards []BillboardPayload `json:"billboards"`
}

type profileBatchResponse struct {
	Results []ProfileResult `json:"results"`
}

// SubmitBatch posts one batch and returns the per-record results. Any
// transport or protocol failure is a whole-batch error; the caller decides
// whether to retry.
func (c *ProfileClient) SubmitBatch(ctx context.Context, batchID string, billboards []BillboardPayload) ([]ProfileResult, error) {
	body, err := json.Marshal(profileBatchRequest{BatchID: batchID, Billboards: billboards})
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile batch: %w", err)
	}

	url := c.BaseURL + "/v1/billboards/profile/batch"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("profile api returned %d: %s", resp.StatusCode, string(snippet))
	}

	var out profileBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("profile api response is not valid json: %w", err)
	}
	if out.Results == nil {
		return nil, fmt.Errorf("profile api response is missing results")
	}
	return out.Results, nil
}

// PayloadFromRecord builds the API payload for one validated pipeline record.
// The comma-separated image column becomes a list with blanks removed.
func PayloadFromRecord(rec *pipeline.Record) BillboardPayload {
	p := BillboardPayload{
		BillboardID:  rec.BillboardID,
		LightingType: rec.LightingType,
		FormatType:   rec.FormatType,
		ImageURLs:    SplitImageURLs(rec.ImageURLs),
	}
	if rec.Latitude != nil {
		p.Lat = *rec.Latitude
	}
	if rec.Longitude != nil {
		p.Lon = *rec.Longitude
	}
	if rec.WidthFt != nil {
		p.WidthFt = *rec.WidthFt
	}
	if rec.HeightFt != nil {
		p.HeightFt = *rec.HeightFt
	}
	if rec.Quantity != nil {
		p.Quantity = *rec.Quantity
	}
	if rec.FrequencyPerMinute != nil {
		p.FrequencyPerMinute = *rec.FrequencyPerMinute
	}
	if rec.Locality != nil {
		p.Locality = *rec.Locality
	} else if rec.Area != nil {
		p.Locality = *rec.Area
	}
	return p
}

// SplitImageURLs expands a comma-separated URL cell into a list, trimming
// whitespace and dropping empty entries. A nil cell yields an empty list so
// the API never sees null.
func SplitImageURLs(cell *string) []string {
	urls := []string{}
	if cell == nil {
		return urls
	}
	for _, part := range strings.Split(*cell, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}
