package smoothing

import (
	"math"
	"testing"
)

func TestEMA_PrimesOnFirstMeasurement(t *testing.T) {
	f := NewEMA(0.3)
	if got := f.Update(10); got != 10 {
		t.Errorf("first update: got %v, want 10", got)
	}
	got := f.Update(20)
	want := 0.3*20 + 0.7*10
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("second update: got %v, want %v", got, want)
	}
}

func TestEMA_IgnoresNonFinite(t *testing.T) {
	f := NewEMA(0.5)
	f.Update(5)
	if got := f.Update(math.NaN()); got != 5 {
		t.Errorf("NaN update: got %v, want 5", got)
	}
	if got := f.Update(math.Inf(1)); got != 5 {
		t.Errorf("Inf update: got %v, want 5", got)
	}
}

func TestEMA_Reset(t *testing.T) {
	f := NewEMA(0.3)
	f.Update(100)
	f.Reset()
	if got := f.Update(1); got != 1 {
		t.Errorf("after reset: got %v, want 1 (re-primed)", got)
	}
}

func TestKalman_ConvergesToConstantSignal(t *testing.T) {
	f := NewKalman(0.01, 0.1)
	var got float64
	for i := 0; i < 200; i++ {
		got = f.Update(42)
	}
	if math.Abs(got-42) > 0.01 {
		t.Errorf("converged value: got %v, want ~42", got)
	}
}

func TestKalman_SmoothsNoise(t *testing.T) {
	f := NewKalman(0.5, 5.0)
	// Alternating noisy readings around 100; the estimate must stay much
	// closer to 100 than the raw +-10 swing.
	f.Update(100)
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			f.Update(110)
		} else {
			f.Update(90)
		}
	}
	if math.Abs(f.Value()-100) > 8 {
		t.Errorf("estimate drifted: got %v, want within 8 of 100", f.Value())
	}
}

func TestGaze_SmoothsIndependently(t *testing.T) {
	g := NewGazeAlpha(0.5)
	g.Update(0.0, 1.0)
	x, y := g.Update(1.0, 0.0)
	if math.Abs(x-0.5) > 1e-9 || math.Abs(y-0.5) > 1e-9 {
		t.Errorf("got (%v, %v), want (0.5, 0.5)", x, y)
	}
}

func TestDistance_ResetReprimes(t *testing.T) {
	d := NewDistance()
	d.Update(300)
	d.Reset()
	if got := d.Update(50); got != 50 {
		t.Errorf("after reset: got %v, want 50", got)
	}
}
