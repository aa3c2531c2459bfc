// Package interaction performs gaze hit-testing against image regions,
// tracks per-region dwell times, and computes a distance-based intensity
// factor for the coordinator.
package interaction

import (
	"time"

	"github.com/soulframe/soulframe/pkg/gallery"
	"github.com/soulframe/soulframe/pkg/vision"
)

// Result is the output of a single Model.Update call.
type Result struct {
	// Active lists regions the gaze is geometrically inside this tick.
	Active []string

	// Dwelling lists regions whose dwell threshold is satisfied: gaze
	// inside, confidence at or above the region threshold, accumulated
	// time past dwell_time_ms.
	Dwelling []string

	// DistanceFactor is 0.0 = far, 1.0 = very close, across the current
	// image's close/presence distance span.
	DistanceFactor float64

	// MinActiveConfidence is the lowest min_confidence among dwelling
	// regions. The state machine judges "gaze away" against this, so a
	// region engaged at a permissive threshold is withdrawn at the same
	// threshold, never a stricter global one.
	MinActiveConfidence float64
}

// IsDwelling reports whether the given region satisfied dwell this tick.
func (r Result) IsDwelling(id string) bool {
	for _, d := range r.Dwelling {
		if d == id {
			return true
		}
	}
	return false
}

// Model owns the per-region dwell accumulators. One instance per
// coordinator; never shared across goroutines.
type Model struct {
	dwellMS    map[string]float64
	prevActive map[string]bool

	// Per-image distance-factor bounds, overridden by image metadata.
	nearCM float64
	farCM  float64
}

// New creates a model with default distance bounds.
func New() *Model {
	return &Model{
		dwellMS:    make(map[string]float64),
		prevActive: make(map[string]bool),
		nearCM:     80,
		farCM:      300,
	}
}

// SetDistanceThresholds sets the per-image bounds of the distance factor.
func (m *Model) SetDistanceThresholds(nearCM, farCM float64) {
	m.nearCM = nearCM
	m.farCM = farCM
}

// Update advances dwell accumulators by dt and classifies every region.
//
// The accumulator resets to zero the moment a region's condition fails,
// including a confidence drop while the gaze is still geometrically inside
// the polygon. A brief high-confidence tick after a long sub-threshold
// stretch must not inherit stale accumulation.
func (m *Model) Update(sample vision.FaceSample, regions []gallery.Region, dt time.Duration) Result {
	var result Result

	gx := float64(sample.GazeX)
	gy := float64(sample.GazeY)
	confidence := float64(sample.Confidence)
	faceVisible := sample.FaceDetected() && confidence > 0

	active := make(map[string]bool, len(regions))
	for _, region := range regions {
		if !faceVisible || !PointInPolygon(gx, gy, region.Shape.Points) {
			continue
		}
		active[region.ID] = true
		result.Active = append(result.Active, region.ID)

		if confidence >= region.GazeTrigger.MinConfidence {
			m.dwellMS[region.ID] += dt.Seconds() * 1000
		} else {
			m.dwellMS[region.ID] = 0
		}

		if confidence >= region.GazeTrigger.MinConfidence &&
			m.dwellMS[region.ID] >= float64(region.GazeTrigger.DwellTimeMS) {
			result.Dwelling = append(result.Dwelling, region.ID)
			if result.MinActiveConfidence == 0 ||
				region.GazeTrigger.MinConfidence < result.MinActiveConfidence {
				result.MinActiveConfidence = region.GazeTrigger.MinConfidence
			}
		}
	}

	// Accumulators of regions the gaze has left reset immediately.
	for id := range m.prevActive {
		if !active[id] {
			delete(m.dwellMS, id)
		}
	}
	m.prevActive = active

	result.DistanceFactor = m.distanceFactor(sample)
	return result
}

// Reset clears all dwell state, e.g. on an image change.
func (m *Model) Reset() {
	m.dwellMS = make(map[string]float64)
	m.prevActive = make(map[string]bool)
}

// DwellMS returns the accumulated dwell time of a region in milliseconds.
func (m *Model) DwellMS(id string) float64 {
	return m.dwellMS[id]
}

// distanceFactor maps face distance onto 0.0 (at or past far) .. 1.0 (at
// or within near).
func (m *Model) distanceFactor(sample vision.FaceSample) float64 {
	if !sample.FaceDetected() {
		return 0
	}
	d := float64(sample.DistanceCM)
	if m.nearCM >= m.farCM {
		if d <= m.nearCM {
			return 1
		}
		return 0
	}
	if d <= m.nearCM {
		return 1
	}
	if d >= m.farCM {
		return 0
	}
	return 1 - (d-m.nearCM)/(m.farCM-m.nearCM)
}
