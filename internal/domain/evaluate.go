package domain

import (
	"fmt"
	"math"
	"sort"
)

// weightEpsilon is the tolerance when checking that factor weights sum to 1.
const weightEpsilon = 1e-6

// FactorBounds describe the linear normalization scale for one factor. A raw
// value at NoRisk maps to sub-score 0 and a value at HighRisk maps to 1;
// the scale may run in either direction (NoRisk > HighRisk inverts it).
type FactorBounds struct {
	NoRisk   float64
	HighRisk float64

	// Trigger is the sub-score at or above which the factor is reported in
	// TriggeredFactors.
	Trigger float64
}

// RiskParams is the validated, immutable parameter set for evaluation.
// Constructed once at startup from configuration; never read ad hoc.
type RiskParams struct {
	Temperature FactorBounds
	Dust        FactorBounds
	Vegetation  FactorBounds

	// Weights for the composite score, must sum to 1 within weightEpsilon.
	TemperatureWeight float64
	DustWeight        float64
	VegetationWeight  float64

	// Tier thresholds, inclusive lower bound of each tier.
	ModerateThreshold float64
	HighThreshold     float64
}

// DefaultRiskParams returns the production calibration for Tashkent.
func DefaultRiskParams() RiskParams {
	return RiskParams{
		Temperature: FactorBounds{NoRisk: 25, HighRisk: 45, Trigger: 0.7},
		Dust:        FactorBounds{NoRisk: -0.10, HighRisk: 0.90, Trigger: 0.7},
		Vegetation:  FactorBounds{NoRisk: 0.60, HighRisk: 0.00, Trigger: 0.7},

		TemperatureWeight: 0.3,
		DustWeight:        0.4,
		VegetationWeight:  0.3,

		ModerateThreshold: 0.3,
		HighThreshold:     0.6,
	}
}

// Validate checks the parameter set. A non-nil error is fatal at startup;
// Evaluate assumes validated params and re-checks nothing.
func (p RiskParams) Validate() error {
	sum := p.TemperatureWeight + p.DustWeight + p.VegetationWeight
	if math.Abs(sum-1) > weightEpsilon {
		return fmt.Errorf("factor weights must sum to 1, got %g", sum)
	}
	if p.TemperatureWeight < 0 || p.DustWeight < 0 || p.VegetationWeight < 0 {
		return fmt.Errorf("factor weights must be non-negative")
	}
	if p.ModerateThreshold <= 0 || p.HighThreshold > 1 {
		return fmt.Errorf("tier thresholds must lie in (0, 1], got moderate=%g high=%g",
			p.ModerateThreshold, p.HighThreshold)
	}
	if p.ModerateThreshold >= p.HighThreshold {
		return fmt.Errorf("moderate threshold %g must be below high threshold %g",
			p.ModerateThreshold, p.HighThreshold)
	}
	for name, b := range map[string]FactorBounds{
		FactorTemperature: p.Temperature,
		FactorDust:        p.Dust,
		FactorVegetation:  p.Vegetation,
	} {
		if b.NoRisk == b.HighRisk {
			return fmt.Errorf("%s bounds must differ, both are %g", name, b.NoRisk)
		}
		if b.Trigger < 0 || b.Trigger > 1 {
			return fmt.Errorf("%s trigger must lie in [0, 1], got %g", name, b.Trigger)
		}
	}
	return nil
}

// Evaluate turns raw indices into a classified risk assessment. Total and
// deterministic: the same indices and params always produce the same result
// apart from the timestamp, which comes from the package clock.
func Evaluate(indices RawIndices, params RiskParams) RiskAssessment {
	greenness := (indices.VegetationIndex + indices.MoistureIndex) / 2

	subScores := map[string]float64{
		FactorTemperature: normalize(indices.SurfaceTemperature, params.Temperature),
		FactorDust:        normalize(indices.DustIndex, params.Dust),
		FactorVegetation:  normalize(greenness, params.Vegetation),
	}

	score := params.TemperatureWeight*subScores[FactorTemperature] +
		params.DustWeight*subScores[FactorDust] +
		params.VegetationWeight*subScores[FactorVegetation]
	score = clamp01(score)

	triggered := make([]string, 0, len(subScores))
	for name, bounds := range map[string]FactorBounds{
		FactorTemperature: params.Temperature,
		FactorDust:        params.Dust,
		FactorVegetation:  params.Vegetation,
	} {
		if subScores[name] >= bounds.Trigger {
			triggered = append(triggered, name)
		}
	}
	sort.Strings(triggered)

	return RiskAssessment{
		Timestamp:        clock.Now().UTC(),
		RawIndices:       indices,
		RiskScore:        score,
		RiskLevel:        Classify(score, params),
		SubScores:        subScores,
		TriggeredFactors: triggered,
	}
}

// Classify maps a composite score to a tier. Boundaries are inclusive lower
// bounds: a score exactly at HighThreshold is high.
func Classify(score float64, params RiskParams) RiskLevel {
	switch {
	case score >= params.HighThreshold:
		return RiskHigh
	case score >= params.ModerateThreshold:
		return RiskModerate
	default:
		return RiskLow
	}
}

// normalize scales value linearly between the factor bounds, clamped to [0,1].
// Works for both ascending and inverted (NoRisk > HighRisk) scales.
func normalize(value float64, b FactorBounds) float64 {
	return clamp01((value - b.NoRisk) / (b.HighRisk - b.NoRisk))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
