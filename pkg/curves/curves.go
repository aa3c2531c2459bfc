// Package curves maps viewer distance to a normalized intensity in [0, 1].
//
// Every curve returns 1.0 at or within minDist, 0.0 at or beyond maxDist,
// and is monotonic non-increasing in between. The curve name only changes
// how quickly intensity falls off across that span.
package curves

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/soulframe/soulframe/internal/log"
)

// Curve maps a distance in cm to an intensity in [0, 1].
type Curve func(distanceCM, minDist, maxDist float64) float64

// normalize handles the shared boundary conditions and returns the position
// t in (0, 1) across the falloff span, or a terminal intensity.
func normalize(distanceCM, minDist, maxDist float64) (t float64, terminal float64, done bool) {
	if maxDist <= minDist {
		if distanceCM <= minDist {
			return 0, 1.0, true
		}
		return 0, 0.0, true
	}
	if distanceCM <= minDist {
		return 0, 1.0, true
	}
	if distanceCM >= maxDist {
		return 0, 0.0, true
	}
	return (distanceCM - minDist) / (maxDist - minDist), 0, false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Linear is a straight-line falloff.
func Linear(distanceCM, minDist, maxDist float64) float64 {
	t, terminal, done := normalize(distanceCM, minDist, maxDist)
	if done {
		return terminal
	}
	return clamp01(1.0 - t)
}

// EaseIn is a quadratic falloff that drops slowly near minDist.
func EaseIn(distanceCM, minDist, maxDist float64) float64 {
	t, terminal, done := normalize(distanceCM, minDist, maxDist)
	if done {
		return terminal
	}
	return clamp01(1.0 - t*t)
}

// EaseOut is a quadratic falloff that drops quickly near minDist.
func EaseOut(distanceCM, minDist, maxDist float64) float64 {
	t, terminal, done := normalize(distanceCM, minDist, maxDist)
	if done {
		return terminal
	}
	inv := 1.0 - t
	return clamp01(inv * inv)
}

// EaseInOut is a Hermite smoothstep falloff, gentle at both extremes.
func EaseInOut(distanceCM, minDist, maxDist float64) float64 {
	t, terminal, done := normalize(distanceCM, minDist, maxDist)
	if done {
		return terminal
	}
	smooth := t * t * (3.0 - 2.0*t)
	return clamp01(1.0 - smooth)
}

// Exponential drops fast at first and tapers off. Normalized so the value
// reaches exactly 0.0 at maxDist.
func Exponential(distanceCM, minDist, maxDist float64) float64 {
	t, terminal, done := normalize(distanceCM, minDist, maxDist)
	if done {
		return terminal
	}
	raw := math.Exp(-5.0 * t)
	floor := math.Exp(-5.0)
	return clamp01((raw - floor) / (1.0 - floor))
}

var registry = map[string]Curve{
	"linear":      Linear,
	"ease_in":     EaseIn,
	"ease_out":    EaseOut,
	"ease_in_out": EaseInOut,
	"smoothstep":  EaseInOut,
	"exponential": Exponential,
	"exp":         Exponential,
}

// Names returns the recognised curve names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a curve by name.
func Get(name string) (Curve, error) {
	if c, ok := registry[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("unknown curve %q (available: %s)",
		name, strings.Join(Names(), ", "))
}

// ForName returns a curve by name, falling back to linear for unknown names.
// The fallback is logged so a bad metadata value never fails silently.
func ForName(name string) Curve {
	c, err := Get(name)
	if err != nil {
		log.Warn("unknown curve name, falling back to linear", "curve", name)
		return Linear
	}
	return c
}
