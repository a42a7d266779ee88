// Package domain models satellite-derived dust-storm risk for a fixed
// monitoring point (Tashkent, Uzbekistan).
//
// # Data Source
//
// Raw geophysical indices come from an Earth Engine style imagery statistics
// provider, queried over a circular region around the monitoring point:
//
//	Surface temperature:  MODIS MOD11A1 daily land-surface temperature,
//	                      Kelvin scaled by 0.02 upstream, delivered here in °C.
//	Vegetation index:     Landsat 8/9 NDVI = (NIR - Red) / (NIR + Red),
//	                      range [-1, 1]; dense vegetation ≈ 0.6+, bare soil ≈ 0.1.
//	Moisture index:       NDMI-like (NIR - SWIR) / (NIR + SWIR), range [-1, 1].
//	Dust differential:    NDDI = (SWIR - NIR) / (SWIR + NIR), range [-1, 1];
//	                      exposed dry soil pushes the value positive.
//
// Scenes are median-composited over a trailing window (default 60 days) with
// a cloud-cover ceiling; a window with no usable scenes yields
// [ErrDataUnavailable] rather than fabricated values.
//
// # Risk Model
//
// Each factor is linearly normalized to a [0,1] sub-score between a
// configured "no risk" and "high risk" bound, out-of-range inputs clamped:
//
//	temperature: (t - TempNoRisk) / (TempHighRisk - TempNoRisk)
//	dust:        (nddi - DustNoRisk) / (DustHighRisk - DustNoRisk)
//	vegetation:  greenness deficit, where greenness = (NDVI + moisture) / 2
//	             and the scale runs inverted from VegNoRisk down to VegHighRisk
//
// The composite score is the weighted average of the sub-scores (weights sum
// to 1, validated at configuration load). Classification is inclusive-upward:
// a score exactly at a tier threshold lands in the higher tier. Factors whose
// own sub-score reaches their trigger threshold are reported as triggered,
// independent of the composite tier — they drive the user-facing explanation.
//
// Evaluation is a total, deterministic function of the indices and the
// configured parameters. It carries no hidden state and never fails for
// well-formed input.
//
// # Forecast Synthesis
//
// The seven-day outlook is synthesized from the latest assessment rather than
// fetched: seasonal and weekly sinusoids, a dust-season trend, and a bounded
// perturbation seeded from the forecast date itself are layered onto the base
// score. Seeding from the date keeps the outlook reproducible — the same base
// assessment always yields the same outlook. See [SynthesizeOutlook].
package domain
