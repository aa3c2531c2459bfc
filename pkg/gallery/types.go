// Package gallery loads and indexes image packages: subdirectories of the
// gallery directory that contain a metadata.json describing the photograph,
// its gaze regions, and its audio configuration.
//
// All validation happens here, at the load boundary. Metadata that reaches
// the coordinator is well-formed: ids are unique and non-empty, numeric
// fields are in range, and effect/trigger/curve names are recognised.
package gallery

import (
	"encoding/json"
	"fmt"
)

// EffectType is the closed set of visual effects the renderer understands.
type EffectType string

const (
	EffectBreathing EffectType = "breathing"
	EffectVignette  EffectType = "vignette"
	EffectParallax  EffectType = "parallax"
	EffectKenBurns  EffectType = "kenburns"
)

// Valid reports whether the effect type is recognised.
func (e EffectType) Valid() bool {
	switch e {
	case EffectBreathing, EffectVignette, EffectParallax, EffectKenBurns:
		return true
	}
	return false
}

// TriggerType is the closed set of conditions that activate a visual effect.
type TriggerType string

const (
	TriggerGazeDwell        TriggerType = "on_gaze_dwell"
	TriggerCloseInteraction TriggerType = "close_interaction"
	TriggerPresence         TriggerType = "presence"
)

// Valid reports whether the trigger is recognised.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerGazeDwell, TriggerCloseInteraction, TriggerPresence:
		return true
	}
	return false
}

// Point is a normalized 0..1 coordinate pair. In metadata.json points are
// encoded as two-element arrays.
type Point struct {
	X float64
	Y float64
}

// UnmarshalJSON decodes a [x, y] array.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("polygon point must have 2 coordinates, got %d", len(pair))
	}
	p.X, p.Y = pair[0], pair[1]
	return nil
}

// MarshalJSON encodes back to the [x, y] array form.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// RegionShape is the hit-test geometry of a region.
type RegionShape struct {
	Type   string  `json:"type"`
	Points []Point `json:"points_normalized"`
}

// GazeTrigger holds the dwell activation thresholds of a region.
type GazeTrigger struct {
	DwellTimeMS   int     `json:"dwell_time_ms"`
	MinConfidence float64 `json:"min_confidence"`
}

// IntensityByDistance configures the distance-to-volume mapping of a
// heartbeat stream.
type IntensityByDistance struct {
	MinDistanceCM float64 `json:"min_distance_cm"`
	MaxDistanceCM float64 `json:"max_distance_cm"`
	Curve         string  `json:"curve"`
}

// HeartbeatConfig describes the looping heartbeat audio of a region.
type HeartbeatConfig struct {
	File                string              `json:"file"`
	Loop                bool                `json:"loop"`
	BassBoost           bool                `json:"bass_boost"`
	FadeInMS            int                 `json:"fade_in_ms"`
	IntensityByDistance IntensityByDistance `json:"intensity_by_distance"`
}

// VisualEffect describes one renderer effect owned by a region.
type VisualEffect struct {
	Type     EffectType             `json:"type"`
	Trigger  TriggerType            `json:"trigger"`
	FadeInMS int                    `json:"fade_in_ms"`
	Params   map[string]json.Number `json:"params"`
}

// Region is a gaze-reactive area of the photograph. Read-only for the core
// during the lifetime of the displayed image.
type Region struct {
	ID            string           `json:"id"`
	Label         string           `json:"label"`
	Shape         RegionShape      `json:"shape"`
	GazeTrigger   GazeTrigger      `json:"gaze_trigger"`
	Heartbeat     *HeartbeatConfig `json:"heartbeat,omitempty"`
	VisualEffects []VisualEffect   `json:"visual_effects"`
}

// AmbientAudio configures the looping ambient track of an image.
type AmbientAudio struct {
	File             string  `json:"file"`
	Loop             bool    `json:"loop"`
	FadeInDistanceCM float64 `json:"fade_in_distance_cm"`
	FadeInCompleteCM float64 `json:"fade_in_complete_cm"`
	FadeCurve        string  `json:"fade_curve"`
}

// AudioSection groups the audio configuration of an image.
type AudioSection struct {
	Ambient *AmbientAudio `json:"ambient,omitempty"`
}

// ImageInfo describes the image file itself.
type ImageInfo struct {
	Filename string `json:"filename"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Interaction holds the per-image distance thresholds.
type Interaction struct {
	MinInteractionDistanceCM   float64 `json:"min_interaction_distance_cm"`
	CloseInteractionDistanceCM float64 `json:"close_interaction_distance_cm"`
}

// Transitions holds the per-image fade durations.
type Transitions struct {
	FadeInMS        int `json:"fade_in_ms"`
	FadeOutMS       int `json:"fade_out_ms"`
	AudioCrossfadeMS int `json:"audio_crossfade_ms"`
}

// ImageMetadata is one fully validated image package.
type ImageMetadata struct {
	Version     int          `json:"version"`
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Image       ImageInfo    `json:"image"`
	Audio       AudioSection `json:"audio"`
	Regions     []Region     `json:"regions"`
	Interaction Interaction  `json:"interaction"`
	Transitions Transitions  `json:"transitions"`

	// Dir is the package directory on disk, set by the loader.
	Dir string `json:"-"`
}

// HasAmbient reports whether the image has a configured ambient track.
func (m *ImageMetadata) HasAmbient() bool {
	return m.Audio.Ambient != nil && m.Audio.Ambient.File != ""
}
