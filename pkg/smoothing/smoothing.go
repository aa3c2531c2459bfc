// Package smoothing provides signal filters for noisy gaze and distance
// measurements coming off the vision feed.
package smoothing

import "math"

// EMA is an exponential moving average filter.
// Higher alpha = less smoothing (more responsive).
type EMA struct {
	alpha  float64
	value  float64
	primed bool
}

// NewEMA creates a filter with the given smoothing factor.
func NewEMA(alpha float64) *EMA {
	return &EMA{alpha: alpha}
}

// Update folds in a measurement and returns the smoothed value.
// Non-finite measurements are ignored.
func (f *EMA) Update(measurement float64) float64 {
	if math.IsNaN(measurement) || math.IsInf(measurement, 0) {
		return f.value
	}
	if !f.primed {
		f.value = measurement
		f.primed = true
		return f.value
	}
	f.value = f.alpha*measurement + (1-f.alpha)*f.value
	return f.value
}

// Value returns the current smoothed value.
func (f *EMA) Value() float64 {
	return f.value
}

// Reset discards filter state; the next measurement primes it again.
func (f *EMA) Reset() {
	f.value = 0
	f.primed = false
}

// Kalman is a 1D Kalman filter for scalar values.
//
// processNoise: how much the true value is expected to change per step.
// measurementNoise: how noisy the sensor readings are.
type Kalman struct {
	q      float64 // process noise
	r      float64 // measurement noise
	x      float64 // estimated state
	p      float64 // estimation error covariance
	primed bool
}

// NewKalman creates a filter with the given noise parameters.
func NewKalman(processNoise, measurementNoise float64) *Kalman {
	return &Kalman{q: processNoise, r: measurementNoise, p: 1.0}
}

// Update folds in a measurement and returns the filtered estimate.
func (f *Kalman) Update(measurement float64) float64 {
	if math.IsNaN(measurement) || math.IsInf(measurement, 0) {
		return f.x
	}
	if !f.primed {
		f.x = measurement
		f.p = f.r
		f.primed = true
		return f.x
	}

	// Predict
	f.p += f.q

	// Update
	denom := f.p + f.r
	if denom == 0 {
		return f.x
	}
	k := f.p / denom
	f.x += k * (measurement - f.x)
	f.p *= 1 - k

	return f.x
}

// Value returns the current estimate.
func (f *Kalman) Value() float64 {
	return f.x
}

// Reset discards filter state.
func (f *Kalman) Reset() {
	f.x = 0
	f.p = 1.0
	f.primed = false
}

// Gaze smooths 2D gaze coordinates with independent EMA filters per axis.
type Gaze struct {
	x *EMA
	y *EMA
}

// NewGaze creates a gaze smoother. The default alpha of 0.25 favors
// stability over responsiveness, which reads better on a large display.
func NewGaze() *Gaze {
	return NewGazeAlpha(0.25)
}

// NewGazeAlpha creates a gaze smoother with a custom smoothing factor.
func NewGazeAlpha(alpha float64) *Gaze {
	return &Gaze{x: NewEMA(alpha), y: NewEMA(alpha)}
}

// Update smooths one gaze measurement.
func (g *Gaze) Update(x, y float64) (float64, float64) {
	return g.x.Update(x), g.y.Update(y)
}

// Reset discards both axes.
func (g *Gaze) Reset() {
	g.x.Reset()
	g.y.Reset()
}

// Distance smooths distance readings with a Kalman filter.
type Distance struct {
	f *Kalman
}

// NewDistance creates a distance smoother tuned for cm-scale readings.
func NewDistance() *Distance {
	return &Distance{f: NewKalman(0.5, 5.0)}
}

// Update smooths one distance measurement.
func (d *Distance) Update(distanceCM float64) float64 {
	return d.f.Update(distanceCM)
}

// Reset discards filter state.
func (d *Distance) Reset() {
	d.f.Reset()
}
