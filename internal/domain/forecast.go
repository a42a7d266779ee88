package domain

import (
	"hash/fnv"
	"math"
	"time"
)

// Outlook synthesis constants. The sinusoid amplitudes and trend slopes come
// from calibrating synthesized outlooks against the observed spread of daily
// assessments over a dust season.
const (
	seasonalAmplitude = 0.08
	weeklyAmplitude   = 0.05
	tendencyBand      = 0.1

	// Synthesized scores stay strictly inside (0, 1): a synthesized day is
	// never reported as certainty in either direction.
	outlookFloor   = 0.05
	outlookCeiling = 0.95

	minTemperature = 15.0
	maxTemperature = 45.0
)

// SynthesizeOutlook builds a day-by-day outlook from a base assessment.
// Deterministic: the per-day perturbation is seeded from the forecast date,
// so the same base assessment always yields an identical outlook.
func SynthesizeOutlook(base RiskAssessment, days int, params RiskParams) []ForecastDay {
	if days <= 0 {
		return nil
	}

	start := base.Timestamp.UTC()
	baseTemp := base.RawIndices.SurfaceTemperature

	outlook := make([]ForecastDay, 0, days)
	prevScore := base.RiskScore

	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		dayOfYear := float64(date.YearDay())

		seasonal := math.Sin(dayOfYear/365*2*math.Pi) * seasonalAmplitude
		weekly := math.Sin(float64(i)/7*2*math.Pi) * weeklyAmplitude
		variation := dateNoise(date, "risk") * (0.1 + float64(i)*0.02)
		trend := dustSeasonTrend(date, i)

		score := base.RiskScore + seasonal + weekly + variation + trend
		score = math.Max(outlookFloor, math.Min(outlookCeiling, score))

		tempSeasonal := math.Sin(dayOfYear/365*2*math.Pi) * 8
		tempDaily := dateNoise(date, "temp") * 5
		temp := baseTemp + tempSeasonal + tempDaily
		temp = math.Max(minTemperature, math.Min(maxTemperature, temp))

		outlook = append(outlook, ForecastDay{
			Date:        date,
			DayName:     dayName(date, i),
			RiskScore:   score,
			RiskLevel:   Classify(score, params),
			Temperature: math.Round(temp*10) / 10,
			Confidence:  leadConfidence(i),
			Tendency:    tendency(i, prevScore, score),
		})
		prevScore = score
	}

	return outlook
}

// dustSeasonTrend models the slow risk build-up over consecutive days, twice
// as steep during the June–September dust season.
func dustSeasonTrend(date time.Time, lead int) float64 {
	if date.Month() >= time.June && date.Month() <= time.September {
		return float64(lead) * 0.01
	}
	return float64(lead) * 0.005
}

// leadConfidence decays with forecast lead time, floored at 0.35.
func leadConfidence(lead int) float64 {
	var c float64
	switch {
	case lead == 0:
		c = 0.95
	case lead <= 2:
		c = 0.85 - float64(lead)*0.05
	case lead <= 4:
		c = 0.75 - float64(lead-2)*0.08
	default:
		c = 0.59 - float64(lead-4)*0.06
	}
	return math.Max(0.35, c)
}

func tendency(lead int, prev, current float64) string {
	if lead == 0 {
		return "Current"
	}
	switch {
	case current > prev+tendencyBand:
		return "Rising"
	case current < prev-tendencyBand:
		return "Falling"
	default:
		return "Stable"
	}
}

func dayName(date time.Time, lead int) string {
	switch lead {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	default:
		return date.Weekday().String()
	}
}

// dateNoise maps a date and salt to a value in [-0.5, 0.5). FNV keeps the
// perturbation stable across processes without any RNG state.
func dateNoise(date time.Time, salt string) float64 {
	h := fnv.New64a()
	h.Write([]byte(date.Format("2006-01-02")))
	h.Write([]byte(salt))
	return float64(h.Sum64()%10000)/10000 - 0.5
}
