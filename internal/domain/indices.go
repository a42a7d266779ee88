package domain

import (
	"context"
	"time"
)

// Region is the circular area the provider composites imagery over.
type Region struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	RadiusMeters float64 `json:"radius_meters"`
}

// RawIndices holds the satellite-derived measurements for one fetch.
// Immutable once produced by the provider adapter.
type RawIndices struct {
	Timestamp          time.Time `json:"timestamp"`
	Lat                float64   `json:"lat"`
	Lon                float64   `json:"lon"`
	SurfaceTemperature float64   `json:"surface_temperature"` // °C
	VegetationIndex    float64   `json:"vegetation_index"`    // NDVI, [-1, 1]
	MoistureIndex      float64   `json:"moisture_index"`      // NDMI-like, [-1, 1]
	DustIndex          float64   `json:"dust_index"`          // NDDI, [-1, 1]

	// SceneCount is how many scenes contributed to the composite.
	SceneCount int `json:"scene_count,omitempty"`
}

// IndexProvider fetches raw indices from the satellite data provider.
// Implementations make a single network call per Fetch and keep no state;
// retry policy belongs to the caller.
type IndexProvider interface {
	// Fetch composites imagery for the region over the window ending at asOf.
	// Returns ErrDataUnavailable (wrapped) when no usable scenes exist for
	// the window, ErrProvider for transport or auth failures.
	Fetch(ctx context.Context, region Region, asOf time.Time) (RawIndices, error)
}
