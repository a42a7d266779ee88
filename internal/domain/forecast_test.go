package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseAssessment() RiskAssessment {
	return RiskAssessment{
		Timestamp: time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC),
		RawIndices: RawIndices{
			SurfaceTemperature: 38.5,
			VegetationIndex:    0.15,
			MoistureIndex:      0.02,
			DustIndex:          0.3,
		},
		RiskScore: 0.45,
		RiskLevel: RiskModerate,
	}
}

func TestSynthesizeOutlook_Deterministic(t *testing.T) {
	params := DefaultRiskParams()
	base := baseAssessment()

	first := SynthesizeOutlook(base, 7, params)
	second := SynthesizeOutlook(base, 7, params)

	assert.Equal(t, first, second, "same base assessment must yield identical outlooks")
}

func TestSynthesizeOutlook_Shape(t *testing.T) {
	params := DefaultRiskParams()
	base := baseAssessment()

	outlook := SynthesizeOutlook(base, 7, params)
	require.Len(t, outlook, 7)

	assert.Equal(t, "Today", outlook[0].DayName)
	assert.Equal(t, "Tomorrow", outlook[1].DayName)
	assert.Equal(t, outlook[2].Date.Weekday().String(), outlook[2].DayName)
	assert.Equal(t, "Current", outlook[0].Tendency)

	for i, day := range outlook {
		assert.Equal(t, base.Timestamp.AddDate(0, 0, i), day.Date, "day %d", i)
		assert.GreaterOrEqual(t, day.RiskScore, outlookFloor, "day %d", i)
		assert.LessOrEqual(t, day.RiskScore, outlookCeiling, "day %d", i)
		assert.Equal(t, Classify(day.RiskScore, params), day.RiskLevel, "day %d", i)
		assert.GreaterOrEqual(t, day.Temperature, minTemperature, "day %d", i)
		assert.LessOrEqual(t, day.Temperature, maxTemperature, "day %d", i)
		assert.Contains(t, []string{"Current", "Rising", "Falling", "Stable"}, day.Tendency, "day %d", i)
	}
}

func TestSynthesizeOutlook_ConfidenceDecays(t *testing.T) {
	outlook := SynthesizeOutlook(baseAssessment(), 7, DefaultRiskParams())
	require.Len(t, outlook, 7)

	assert.Equal(t, 0.95, outlook[0].Confidence)
	for i := 1; i < len(outlook); i++ {
		assert.LessOrEqual(t, outlook[i].Confidence, outlook[i-1].Confidence, "day %d", i)
		assert.GreaterOrEqual(t, outlook[i].Confidence, 0.35, "day %d", i)
	}
}

func TestSynthesizeOutlook_EmptyForNonPositiveDays(t *testing.T) {
	assert.Nil(t, SynthesizeOutlook(baseAssessment(), 0, DefaultRiskParams()))
	assert.Nil(t, SynthesizeOutlook(baseAssessment(), -3, DefaultRiskParams()))
}
