// Package earthengine implements domain.IndexProvider against an Earth Engine
// style imagery statistics API: one POST per fetch requesting a median
// composite of MODIS LST and Landsat NDVI/NDMI/NDDI band means over a region
// and trailing date window.
package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/couchcryptid/dustcast-service/internal/config"
	"github.com/couchcryptid/dustcast-service/internal/domain"
)

// Client calls the imagery statistics provider. It keeps no cache and no
// retry loop; both belong to the refresh pipeline.
type Client struct {
	baseURL       string
	project       string
	token         string
	windowDays    int
	maxCloudCover float64
	httpClient    *http.Client
	breaker       *gobreaker.CircuitBreaker[domain.RawIndices]
	logger        *slog.Logger
}

// NewClient creates a provider client. The circuit breaker trips after five
// consecutive provider failures; an imagery gap (ErrDataUnavailable) is a
// valid answer and does not count against the breaker.
func NewClient(cfg config.ProviderConfig, logger *slog.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker[domain.RawIndices](gobreaker.Settings{
		Name:        "earthengine",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrDataUnavailable)
		},
	})

	return &Client{
		baseURL:       cfg.BaseURL,
		project:       cfg.Project,
		token:         cfg.Token,
		windowDays:    cfg.WindowDays,
		maxCloudCover: cfg.MaxCloudCover,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: breaker,
		logger:  logger,
	}
}

// Fetch composites imagery for the region over the trailing window ending at
// asOf and returns the band means as raw indices.
func (c *Client) Fetch(ctx context.Context, region domain.Region, asOf time.Time) (domain.RawIndices, error) {
	indices, err := c.breaker.Execute(func() (domain.RawIndices, error) {
		return c.doFetch(ctx, region, asOf)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.RawIndices{}, fmt.Errorf("%w: circuit open: %v", domain.ErrProvider, err)
		}
		return domain.RawIndices{}, err
	}
	return indices, nil
}

func (c *Client) doFetch(ctx context.Context, region domain.Region, asOf time.Time) (domain.RawIndices, error) {
	start := asOf.AddDate(0, 0, -c.windowDays)

	reqBody := compositeRequest{
		Region: regionSpec{
			Lat:          region.Lat,
			Lon:          region.Lon,
			RadiusMeters: region.RadiusMeters,
		},
		StartDate:     start.UTC().Format("2006-01-02"),
		EndDate:       asOf.UTC().Format("2006-01-02"),
		Bands:         []string{"lst_day", "ndvi", "ndmi", "nddi"},
		Reducer:       "median",
		MaxCloudCover: c.maxCloudCover,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return domain.RawIndices{}, fmt.Errorf("encode composite request: %w", err)
	}

	u := fmt.Sprintf("%s/projects/%s/imagery:composite", c.baseURL, c.project)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return domain.RawIndices{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RawIndices{}, fmt.Errorf("%w: composite request: %v", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.RawIndices{}, fmt.Errorf("%w: no composite for %s to %s",
			domain.ErrDataUnavailable, reqBody.StartDate, reqBody.EndDate)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.RawIndices{}, fmt.Errorf("%w: status %d: %s", domain.ErrProvider, resp.StatusCode, body)
	}

	var stats compositeResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return domain.RawIndices{}, fmt.Errorf("%w: decode response: %v", domain.ErrProvider, err)
	}

	if stats.SceneCount == 0 {
		return domain.RawIndices{}, fmt.Errorf("%w: zero scenes under %.0f%% cloud cover",
			domain.ErrDataUnavailable, c.maxCloudCover)
	}

	return domain.RawIndices{
		Timestamp:          asOf.UTC(),
		Lat:                region.Lat,
		Lon:                region.Lon,
		SurfaceTemperature: stats.Bands.LSTDayMean,
		VegetationIndex:    stats.Bands.NDVIMean,
		MoistureIndex:      stats.Bands.NDMIMean,
		DustIndex:          stats.Bands.NDDIMean,
		SceneCount:         stats.SceneCount,
	}, nil
}

// Provider API request/response types.

type compositeRequest struct {
	Region        regionSpec `json:"region"`
	StartDate     string     `json:"start_date"`
	EndDate       string     `json:"end_date"`
	Bands         []string   `json:"bands"`
	Reducer       string     `json:"reducer"`
	MaxCloudCover float64    `json:"max_cloud_cover"`
}

type regionSpec struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	RadiusMeters float64 `json:"radius_meters"`
}

type compositeResponse struct {
	SceneCount int       `json:"scene_count"`
	Bands      bandMeans `json:"bands"`
}

type bandMeans struct {
	LSTDayMean float64 `json:"lst_day_mean"` // °C
	NDVIMean   float64 `json:"ndvi_mean"`
	NDMIMean   float64 `json:"ndmi_mean"`
	NDDIMean   float64 `json:"nddi_mean"`
}
