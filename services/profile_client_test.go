package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oohgrid/billboard-etl/pipeline"
	"github.com/oohgrid/billboard-etl/utils"
)

func TestSubmitBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("PostsBatchWithBearerToken", func(t *testing.T) {
		var gotPath, gotAuth string
		var gotBody map[string]any

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"billboard_id": "BB-1", "status": "success", "profile": map[string]any{"segment": "transit"}},
					{"billboard_id": "BB-2", "status": "error", "error": "no imagery"},
				},
			})
		}))
		defer srv.Close()

		client := NewProfileClient(srv.URL, "secret-token", 0)
		results, err := client.SubmitBatch(ctx, "run-1-b1", []BillboardPayload{
			{BillboardID: "BB-1"}, {BillboardID: "BB-2"},
		})
		require.NoError(t, err)

		assert.Equal(t, "/v1/billboards/profile/batch", gotPath)
		assert.Equal(t, "Bearer secret-token", gotAuth)
		assert.Equal(t, "run-1-b1", gotBody["batch_id"])

		require.Len(t, results, 2)
		assert.True(t, results[0].Success())
		assert.NotEmpty(t, results[0].Profile)
		assert.False(t, results[1].Success())
		assert.Equal(t, "no imagery", results[1].Error)
	})

	t.Run("NonOKStatusIsWholeBatchError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client := NewProfileClient(srv.URL, "t", 0)
		_, err := client.SubmitBatch(ctx, "b1", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("MissingResultsIsError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		client := NewProfileClient(srv.URL, "t", 0)
		_, err := client.SubmitBatch(ctx, "b1", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing results")
	})

	t.Run("MalformedJSONIsError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		client := NewProfileClient(srv.URL, "t", 0)
		_, err := client.SubmitBatch(ctx, "b1", nil)
		assert.Error(t, err)
	})
}

func TestPayloadFromRecord(t *testing.T) {
	t.Run("CopiesResolvedFields", func(t *testing.T) {
		rec := pipeline.NewRecord()
		rec.BillboardID = "BB-1"
		rec.FormatType = "Hoarding"
		rec.LightingType = "Backlit"
		rec.Latitude = utils.ToPtr(18.52)
		rec.Longitude = utils.ToPtr(73.85)
		rec.WidthFt = utils.ToPtr(40.0)
		rec.HeightFt = utils.ToPtr(20.0)
		rec.Quantity = utils.ToPtr(2)
		rec.FrequencyPerMinute = utils.ToPtr(10)
		rec.Locality = utils.ToPtr("Baner")
		rec.ImageURLs = utils.ToPtr("http://a.jpg, http://b.jpg")

		p := PayloadFromRecord(rec)
		assert.Equal(t, "BB-1", p.BillboardID)
		assert.Equal(t, 18.52, p.Lat)
		assert.Equal(t, 73.85, p.Lon)
		assert.Equal(t, 40.0, p.WidthFt)
		assert.Equal(t, 20.0, p.HeightFt)
		assert.Equal(t, 2, p.Quantity)
		assert.Equal(t, 10, p.FrequencyPerMinute)
		assert.Equal(t, "Baner", p.Locality)
		assert.Equal(t, []string{"http://a.jpg", "http://b.jpg"}, p.ImageURLs)
	})

	t.Run("LocalityFallsBackToArea", func(t *testing.T) {
		rec := pipeline.NewRecord()
		rec.BillboardID = "BB-1"
		rec.Area = utils.ToPtr("Kothrud")

		p := PayloadFromRecord(rec)
		assert.Equal(t, "Kothrud", p.Locality)
	})
}

func TestSplitImageURLs(t *testing.T) {
	t.Run("NilCellYieldsEmptyList", func(t *testing.T) {
		urls := SplitImageURLs(nil)
		require.NotNil(t, urls)
		assert.Empty(t, urls)
	})

	t.Run("TrimsAndDropsBlanks", func(t *testing.T) {
		cell := " http://a.jpg , ,http://b.jpg,"
		assert.Equal(t, []string{"http://a.jpg", "http://b.jpg"}, SplitImageURLs(&cell))
	})
}
