package domain

import "time"

// RiskLevel is the classified tier of a composite risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Factor names used in sub-score maps and triggered-factor sets.
const (
	FactorTemperature = "temperature"
	FactorDust        = "dust"
	FactorVegetation  = "vegetation"
)

// RiskAssessment is the evaluated risk state derived from one set of raw
// indices. Immutable; one instance per fetch cycle.
type RiskAssessment struct {
	Timestamp  time.Time  `json:"timestamp"`
	RawIndices RawIndices `json:"raw_indices"`

	RiskScore float64   `json:"risk_score"` // composite, [0, 1]
	RiskLevel RiskLevel `json:"risk_level"`

	// SubScores holds the normalized per-factor scores keyed by factor name.
	SubScores map[string]float64 `json:"sub_scores"`

	// TriggeredFactors lists factors whose sub-score reached their trigger
	// threshold, sorted by factor name for stable serialization.
	TriggeredFactors []string `json:"triggered_factors"`

	// Outlook is the synthesized day-by-day forecast. Populated only for
	// forecast-kind assessments.
	Outlook []ForecastDay `json:"outlook,omitempty"`
}

// ForecastDay is one synthesized day of the dust-risk outlook.
type ForecastDay struct {
	Date        time.Time `json:"date"`
	DayName     string    `json:"day_name"` // "Today", "Tomorrow", weekday name
	RiskScore   float64   `json:"risk_score"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Temperature float64   `json:"temperature"` // °C
	Confidence  float64   `json:"confidence"`  // decays with lead time
	Tendency    string    `json:"tendency"`    // "Current", "Rising", "Falling", "Stable"
}
