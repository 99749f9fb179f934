// Package framestats keeps rolling render telemetry for the overlay: per-frame
// render cost and the pacing of frame timestamps.
package framestats

import (
	"math"
	"sort"
)

// WindowSize is the number of samples a LatencyWindow retains.
const WindowSize = 100

// LatencyWindow is a fixed ring of the most recent samples (milliseconds).
//
// Not thread-safe. The overlay copies the window, adds a sample to the copy
// and publishes it through an atomic.Pointer, so readers never see a partial
// update.
type LatencyWindow struct {
	Samples [WindowSize]float64
	Count   int // Valid samples (<= WindowSize)
	Index   int // Next write position
}

// AddSample records one measurement, overwriting the oldest when full.
func (w *LatencyWindow) AddSample(v float64) {
	w.Samples[w.Index] = v
	w.Index = (w.Index + 1) % len(w.Samples)
	if w.Count < len(w.Samples) {
		w.Count++
	}
}

// GetStats returns mean, 95th percentile (nearest rank) and max of the
// retained samples. An empty window yields zeros.
func (w *LatencyWindow) GetStats() (mean, p95, max float64) {
	if w.Count == 0 {
		return 0, 0, 0
	}

	sorted := make([]float64, w.Count)
	copy(sorted, w.Samples[:w.Count])
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean = sum / float64(w.Count)

	rank := int(math.Ceil(0.95*float64(w.Count))) - 1
	if rank < 0 {
		rank = 0
	}
	p95 = sorted[rank]
	max = sorted[len(sorted)-1]

	return mean, p95, max
}

// Values returns the retained samples, oldest first.
func (w *LatencyWindow) Values() []float64 {
	out := make([]float64, 0, w.Count)
	start := 0
	if w.Count == len(w.Samples) {
		start = w.Index
	}
	for i := 0; i < w.Count; i++ {
		out = append(out, w.Samples[(start+i)%len(w.Samples)])
	}
	return out
}
