package framestats

import "math"

const (
	// fpsStabilityThreshold is the maximum FPS standard deviation as a fraction
	// of mean FPS for pacing to count as stable.
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of the
	// expected frame interval.
	jitterStabilityThreshold = 0.20
)

// Pacing summarizes the spacing of consecutive frame timestamps.
type Pacing struct {
	Intervals    int     `json:"intervals"`
	FPSMean      float64 `json:"fps_mean"`
	FPSStdDev    float64 `json:"fps_stddev"`
	FPSMin       float64 `json:"fps_min"`
	FPSMax       float64 `json:"fps_max"`
	JitterMean   float64 `json:"jitter_mean_s"`
	JitterStdDev float64 `json:"jitter_stddev_s"`
	JitterMax    float64 `json:"jitter_max_s"`
	IsStable     bool    `json:"is_stable"`
}

// CalculatePacing derives FPS and jitter statistics from frame intervals in
// seconds. Non-positive intervals (repeated or backwards timestamps) are
// skipped.
//
// Stable means stddev < 15% of mean FPS AND mean jitter < 20% of the expected
// interval. Example: 30 FPS → stable if stddev < 4.5 and jitter < 6.6ms.
func CalculatePacing(intervals []float64) Pacing {
	valid := make([]float64, 0, len(intervals))
	var total float64
	for _, iv := range intervals {
		if iv > 0 && !math.IsInf(iv, 0) {
			valid = append(valid, iv)
			total += iv
		}
	}

	n := len(valid)
	if n == 0 {
		return Pacing{}
	}

	fpsMean := float64(n) / total

	fpsMin, fpsMax := math.Inf(1), 0.0
	var sumSquares float64
	for _, iv := range valid {
		fps := 1.0 / iv
		if fps < fpsMin {
			fpsMin = fps
		}
		if fps > fpsMax {
			fpsMax = fps
		}
		diff := fps - fpsMean
		sumSquares += diff * diff
	}
	fpsStdDev := math.Sqrt(sumSquares / float64(n))

	expected := 1.0 / fpsMean
	var jitterSum, jitterMax float64
	jitters := make([]float64, n)
	for i, iv := range valid {
		j := math.Abs(iv - expected)
		jitters[i] = j
		jitterSum += j
		if j > jitterMax {
			jitterMax = j
		}
	}
	jitterMean := jitterSum / float64(n)

	var jitterSquares float64
	for _, j := range jitters {
		diff := j - jitterMean
		jitterSquares += diff * diff
	}

	return Pacing{
		Intervals:    n,
		FPSMean:      fpsMean,
		FPSStdDev:    fpsStdDev,
		FPSMin:       fpsMin,
		FPSMax:       fpsMax,
		JitterMean:   jitterMean,
		JitterStdDev: math.Sqrt(jitterSquares / float64(n)),
		JitterMax:    jitterMax,
		IsStable: fpsStdDev < fpsMean*fpsStabilityThreshold &&
			jitterMean < expected*jitterStabilityThreshold,
	}
}
