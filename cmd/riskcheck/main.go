// Command riskcheck evaluates dust-storm risk for a set of satellite index
// values without running the service. Useful for calibrating thresholds and
// spot-checking evaluator behavior against known conditions.
//
// Usage:
//
//	go run ./cmd/riskcheck -temp 38.5 -ndvi 0.21 -moisture 0.12 -nddi 0.44
//	go run ./cmd/riskcheck -temp 44 -ndvi 0.05 -moisture 0 -nddi 0.6 -days 7 -json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/dustcast-service/internal/domain"
)

func main() {
	temp := flag.Float64("temp", 0, "land surface temperature, °C")
	ndvi := flag.Float64("ndvi", 0, "vegetation index (NDVI), [-1, 1]")
	moisture := flag.Float64("moisture", 0, "moisture index (NDMI), [-1, 1]")
	nddi := flag.Float64("nddi", 0, "dust index (NDDI), [-1, 1]")
	days := flag.Int("days", 0, "synthesize an outlook of this many days")
	asJSON := flag.Bool("json", false, "print the full assessment as JSON")
	flag.Parse()

	if flag.NFlag() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	indices := domain.RawIndices{
		Timestamp:          time.Now().UTC(),
		SurfaceTemperature: *temp,
		VegetationIndex:    *ndvi,
		MoistureIndex:      *moisture,
		DustIndex:          *nddi,
		SceneCount:         1,
	}

	params := domain.DefaultRiskParams()
	if err := params.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid risk parameters: %v\n", err)
		os.Exit(1)
	}

	a := domain.Evaluate(indices, params)
	if *days > 0 {
		a.Outlook = domain.SynthesizeOutlook(a, *days, params)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(a); err != nil {
			fmt.Fprintf(os.Stderr, "encode assessment: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printAssessment(a)
}

func printAssessment(a domain.RiskAssessment) {
	fmt.Printf("Risk: %s (score %.3f)\n", strings.ToUpper(string(a.RiskLevel)), a.RiskScore)
	fmt.Println()
	fmt.Println("Factor scores:")
	for _, factor := range []string{domain.FactorTemperature, domain.FactorDust, domain.FactorVegetation} {
		marker := ""
		for _, triggered := range a.TriggeredFactors {
			if triggered == factor {
				marker = "  <- triggered"
			}
		}
		fmt.Printf("  %-12s %.3f%s\n", factor, a.SubScores[factor], marker)
	}

	if len(a.Outlook) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Outlook:")
	for _, day := range a.Outlook {
		fmt.Printf("  %-10s %s  %-8s score %.3f  %4.1f°C  conf %.2f  %s\n",
			day.Date.Format("2006-01-02"), day.DayName, day.RiskLevel,
			day.RiskScore, day.Temperature, day.Confidence, day.Tendency)
	}
}
