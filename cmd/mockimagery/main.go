// Command mockimagery serves a local stand-in for the satellite imagery
// statistics endpoint so the service can run end-to-end without provider
// credentials. Responses are deterministic for a given date: indices follow a
// seasonal curve peaking in the summer dust season.
//
// Usage:
//
//	go run ./cmd/mockimagery -addr :9090
//	PROVIDER_BASE_URL=http://localhost:9090/v1 PROVIDER_PROJECT=mock go run ./cmd/dustcast
package main

import (
	"encoding/json"
	"flag"
	"hash/fnv"
	"log"
	"math"
	"net/http"
	"time"
)

type compositeRequest struct {
	Region struct {
		Lat          float64 `json:"lat"`
		Lon          float64 `json:"lon"`
		RadiusMeters float64 `json:"radius_meters"`
	} `json:"region"`
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	Bands         []string `json:"bands"`
	Reducer       string   `json:"reducer"`
	MaxCloudCover float64  `json:"max_cloud_cover"`
}

type compositeResponse struct {
	SceneCount int       `json:"scene_count"`
	Bands      bandMeans `json:"bands"`
}

type bandMeans struct {
	LSTDayMean float64 `json:"lst_day_mean"`
	NDVIMean   float64 `json:"ndvi_mean"`
	NDMIMean   float64 `json:"ndmi_mean"`
	NDDIMean   float64 `json:"nddi_mean"`
}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	gapRate := flag.Int("gap-rate", 0, "serve an empty composite every Nth request (0 disables)")
	flag.Parse()

	var requests int
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/projects/{project}/imagery:composite", func(w http.ResponseWriter, r *http.Request) {
		var req compositeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}

		requests++
		resp := synthesize(req.EndDate)
		if *gapRate > 0 && requests%*gapRate == 0 {
			resp = compositeResponse{SceneCount: 0}
			log.Printf("serving imagery gap (request %d)", requests)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("encode response: %v", err)
		}
	})

	log.Printf("mock imagery endpoint listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

// synthesize derives plausible band means from the request end date. Summer
// days run hot, dry, and dusty; winter days the opposite. A small date-hashed
// wobble keeps consecutive days from being identical.
func synthesize(endDate string) compositeResponse {
	date, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		date = time.Now().UTC()
	}

	// Peaks around mid-July (day ~196).
	season := math.Sin(2 * math.Pi * (float64(date.YearDay()) - 105) / 365)
	wobble := dateWobble(endDate)

	return compositeResponse{
		SceneCount: 8 + int(math.Abs(wobble*8)),
		Bands: bandMeans{
			LSTDayMean: 28 + 12*season + 3*wobble,
			NDVIMean:   clamp(0.35-0.20*season+0.05*wobble, -1, 1),
			NDMIMean:   clamp(0.20-0.15*season+0.05*wobble, -1, 1),
			NDDIMean:   clamp(0.15+0.35*season+0.10*wobble, -1, 1),
		},
	}
}

// dateWobble hashes a date string into [-0.5, 0.5).
func dateWobble(date string) float64 {
	h := fnv.New64a()
	h.Write([]byte(date))
	return float64(h.Sum64()%10000)/10000 - 0.5
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
