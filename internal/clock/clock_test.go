package clock

import (
	"math"
	"testing"
)

func TestFrameClock_Delta(t *testing.T) {
	t.Run("FirstCallReturnsZero", func(t *testing.T) {
		var c FrameClock

		if dt := c.Delta(5_000_000_000); dt != 0 {
			t.Fatalf("first Delta() = %v, want 0", dt)
		}
		if !c.Valid() {
			t.Fatal("clock should be valid after first sample")
		}
	})

	t.Run("ConsecutiveTimestamps", func(t *testing.T) {
		// t0 < t1 < t2 in nanoseconds
		t0 := uint64(1_000_000_000)
		t1 := uint64(1_033_333_333)
		t2 := uint64(1_100_000_000)

		var c FrameClock
		got := []float64{c.Delta(t0), c.Delta(t1), c.Delta(t2)}
		want := []float64{0, float64(t1-t0) / 1e9, float64(t2-t1) / 1e9}

		for i := range want {
			if math.Abs(got[i]-want[i]) > 1e-12 {
				t.Errorf("Delta #%d = %v, want %v", i, got[i], want[i])
			}
		}

		t.Logf("✅ deltas from timestamps: %v", got)
	})

	t.Run("RepeatedTimestampIsZero", func(t *testing.T) {
		var c FrameClock
		c.Delta(42)

		if dt := c.Delta(42); dt != 0 {
			t.Errorf("Delta(same) = %v, want 0", dt)
		}
	})

	t.Run("BackwardsClampedToZero", func(t *testing.T) {
		var c FrameClock
		c.Delta(2_000_000_000)

		if dt := c.Delta(1_000_000_000); dt != 0 {
			t.Fatalf("Delta(backwards) = %v, want 0", dt)
		}
		if c.Backwards() != 1 {
			t.Errorf("Backwards() = %d, want 1", c.Backwards())
		}

		// The earlier timestamp becomes the new reference.
		if dt := c.Delta(1_500_000_000); math.Abs(dt-0.5) > 1e-12 {
			t.Errorf("Delta after backwards step = %v, want 0.5", dt)
		}
	})

	t.Run("NoUpperBound", func(t *testing.T) {
		var c FrameClock
		c.Delta(0)

		// 90 second stall
		if dt := c.Delta(90_000_000_000); dt != 90 {
			t.Errorf("Delta(stall) = %v, want 90", dt)
		}
	})

	t.Run("ResetPrimesAgain", func(t *testing.T) {
		var c FrameClock
		c.Delta(1_000_000_000)
		c.Delta(2_000_000_000)

		c.Reset()
		if c.Valid() {
			t.Fatal("clock should be invalid after Reset")
		}
		if dt := c.Delta(9_000_000_000); dt != 0 {
			t.Errorf("Delta after Reset = %v, want 0", dt)
		}
	})
}
