package earthengine

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dustcast-service/internal/config"
	"github.com/couchcryptid/dustcast-service/internal/domain"
)

var testRegion = domain.Region{Lat: 41.2995, Lon: 69.2401, RadiusMeters: 50000}

func newTestClient(baseURL string) *Client {
	return NewClient(config.ProviderConfig{
		BaseURL:       baseURL,
		Project:       "dustcast-prod",
		Token:         "test-token",
		Timeout:       2 * time.Second,
		WindowDays:    60,
		MaxCloudCover: 20,
	}, slog.Default())
}

func TestFetch_ParsesCompositeResponse(t *testing.T) {
	asOf := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/projects/dustcast-prod/imagery:composite", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req compositeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2025-05-15", req.StartDate)
		assert.Equal(t, "2025-07-14", req.EndDate)
		assert.Equal(t, 41.2995, req.Region.Lat)
		assert.Equal(t, 20.0, req.MaxCloudCover)
		assert.Equal(t, "median", req.Reducer)

		json.NewEncoder(w).Encode(compositeResponse{
			SceneCount: 14,
			Bands: bandMeans{
				LSTDayMean: 39.2,
				NDVIMean:   0.18,
				NDMIMean:   0.04,
				NDDIMean:   0.21,
			},
		})
	}))
	defer srv.Close()

	indices, err := newTestClient(srv.URL).Fetch(context.Background(), testRegion, asOf)
	require.NoError(t, err)

	assert.Equal(t, asOf, indices.Timestamp)
	assert.Equal(t, 41.2995, indices.Lat)
	assert.Equal(t, 69.2401, indices.Lon)
	assert.Equal(t, 39.2, indices.SurfaceTemperature)
	assert.Equal(t, 0.18, indices.VegetationIndex)
	assert.Equal(t, 0.04, indices.MoistureIndex)
	assert.Equal(t, 0.21, indices.DustIndex)
	assert.Equal(t, 14, indices.SceneCount)
}

func TestFetch_ZeroScenesIsDataUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(compositeResponse{SceneCount: 0})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), testRegion, time.Now())
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestFetch_NotFoundIsDataUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), testRegion, time.Now())
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestFetch_ServerErrorIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), testRegion, time.Now())
	require.ErrorIs(t, err, domain.ErrProvider)
	assert.NotErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestFetch_UnreachableHostIsProviderError(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").Fetch(context.Background(), testRegion, time.Now())
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestFetch_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	for i := 0; i < 10; i++ {
		_, err := client.Fetch(context.Background(), testRegion, time.Now())
		require.ErrorIs(t, err, domain.ErrProvider)
	}

	// The breaker trips after six consecutive failures; later calls fail
	// fast without reaching the server.
	assert.EqualValues(t, 6, calls.Load())
}

func TestFetch_ImageryGapDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(compositeResponse{SceneCount: 0})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	for i := 0; i < 10; i++ {
		_, err := client.Fetch(context.Background(), testRegion, time.Now())
		require.ErrorIs(t, err, domain.ErrDataUnavailable)
	}

	assert.EqualValues(t, 10, calls.Load(), "imagery gaps must keep reaching the provider")
}
