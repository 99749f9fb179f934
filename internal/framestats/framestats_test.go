package framestats

import (
	"math"
	"math/rand"
	"testing"
)

// TestLatencyWindow_Properties validates the ring buffer invariants:
// bounded growth and mean ≤ p95-or-max ordering.
func TestLatencyWindow_Properties(t *testing.T) {
	t.Run("BoundedGrowth", func(t *testing.T) {
		window := &LatencyWindow{}

		for i := 0; i < 500; i++ {
			window.AddSample(float64(i))

			if window.Count > len(window.Samples) {
				t.Fatalf("Count exceeded buffer size at i=%d: Count=%d", i, window.Count)
			}
			if window.Index < 0 || window.Index >= len(window.Samples) {
				t.Fatalf("Index out of bounds at i=%d: Index=%d", i, window.Index)
			}
		}

		if window.Count != len(window.Samples) {
			t.Errorf("Expected Count=%d after overflow, got %d", len(window.Samples), window.Count)
		}

		t.Logf("✅ 500 samples → Count=%d (capped)", window.Count)
	})

	t.Run("MeanAndP95NotAboveMax", func(t *testing.T) {
		window := &LatencyWindow{}
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 250; i++ {
			window.AddSample(rng.Float64() * 40)
		}

		mean, p95, max := window.GetStats()
		if mean > max || p95 > max {
			t.Errorf("mean=%.4f p95=%.4f max=%.4f", mean, p95, max)
		}
	})

	t.Run("EmptyWindowReturnsZeros", func(t *testing.T) {
		window := &LatencyWindow{}
		mean, p95, max := window.GetStats()
		if mean != 0 || p95 != 0 || max != 0 {
			t.Errorf("empty window: mean=%v p95=%v max=%v", mean, p95, max)
		}
	})

	t.Run("SingleSampleEqualsAllStats", func(t *testing.T) {
		window := &LatencyWindow{}
		window.AddSample(42.5)

		mean, p95, max := window.GetStats()
		if mean != 42.5 || p95 != 42.5 || max != 42.5 {
			t.Errorf("mean=%v p95=%v max=%v, want all 42.5", mean, p95, max)
		}
	})

	t.Run("OverwritesOldest", func(t *testing.T) {
		window := &LatencyWindow{}
		for i := 0; i < WindowSize; i++ {
			window.AddSample(1)
		}
		for i := 0; i < WindowSize; i++ {
			window.AddSample(9)
		}

		mean, _, max := window.GetStats()
		if mean != 9 || max != 9 {
			t.Errorf("mean=%v max=%v after full overwrite, want 9/9", mean, max)
		}
	})
}

func TestLatencyWindow_P95(t *testing.T) {
	ascending := func(n int) []float64 {
		s := make([]float64, n)
		for i := range s {
			s[i] = float64(i + 1)
		}
		return s
	}

	testCases := []struct {
		name    string
		samples []float64
		want    float64
	}{
		{"twenty_ascending", ascending(20), 19},
		{"ninety_five_ascending", ascending(95), 91},
		{"uniform", []float64{50, 50, 50, 50}, 50},
		{"ten_percent_outliers", func() []float64 {
			s := make([]float64, 100)
			for i := range s {
				s[i] = 10
				if i >= 90 {
					s[i] = 100
				}
			}
			return s
		}(), 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			window := &LatencyWindow{}
			for _, s := range tc.samples {
				window.AddSample(s)
			}
			if _, p95, _ := window.GetStats(); p95 != tc.want {
				t.Errorf("p95 = %v, want %v", p95, tc.want)
			}
		})
	}
}

func TestLatencyWindow_Values(t *testing.T) {
	window := &LatencyWindow{}
	for i := 0; i < WindowSize+3; i++ {
		window.AddSample(float64(i))
	}

	values := window.Values()
	if len(values) != WindowSize {
		t.Fatalf("len(Values) = %d, want %d", len(values), WindowSize)
	}
	if values[0] != 3 || values[len(values)-1] != float64(WindowSize+2) {
		t.Errorf("Values oldest/newest = %v/%v, want 3/%d", values[0], values[len(values)-1], WindowSize+2)
	}
}

func TestCalculatePacing(t *testing.T) {
	t.Run("SteadyThirtyFPS", func(t *testing.T) {
		intervals := make([]float64, 60)
		for i := range intervals {
			intervals[i] = 1.0 / 30
		}

		p := CalculatePacing(intervals)

		if math.Abs(p.FPSMean-30) > 1e-6 {
			t.Errorf("FPSMean = %v, want 30", p.FPSMean)
		}
		if !p.IsStable {
			t.Errorf("steady stream not stable: %+v", p)
		}
		t.Logf("✅ steady pacing: %.2f fps, jitter %.6fs", p.FPSMean, p.JitterMean)
	})

	t.Run("StallIsUnstable", func(t *testing.T) {
		intervals := []float64{0.033, 0.033, 0.5, 0.033, 0.033, 0.6}

		p := CalculatePacing(intervals)

		if p.IsStable {
			t.Errorf("stalled stream reported stable: %+v", p)
		}
		if p.FPSMin > 2.1 {
			t.Errorf("FPSMin = %v, want ~1.67", p.FPSMin)
		}
	})

	t.Run("SkipsNonPositive", func(t *testing.T) {
		p := CalculatePacing([]float64{0, -0.1, 0.1})
		if p.Intervals != 1 || math.Abs(p.FPSMean-10) > 1e-9 {
			t.Errorf("Intervals=%d FPSMean=%v, want 1/10", p.Intervals, p.FPSMean)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if p := CalculatePacing(nil); p != (Pacing{}) {
			t.Errorf("CalculatePacing(nil) = %+v, want zero", p)
		}
	})
}
