// Package command defines the JSON command protocol between the coordinator
// and its display and audio children. Commands travel one per line over the
// child's stdin; the envelope carries a type tag and a raw payload.
package command

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies a command.
type Type string

const (
	// Display commands
	TypeSetImage           Type = "set_image"
	TypeCrossfadeImage     Type = "crossfade_image"
	TypeSetEffect          Type = "set_effect"
	TypeSetEffectIntensity Type = "set_effect_intensity"
	TypeSetVignette        Type = "set_vignette"
	TypeSetParallax        Type = "set_parallax"

	// Audio commands
	TypePlayAmbient   Type = "play_ambient"
	TypeStopAmbient   Type = "stop_ambient"
	TypePlayHeartbeat Type = "play_heartbeat"
	TypeStopHeartbeat Type = "stop_heartbeat"
	TypeSetVolume     Type = "set_volume"
	TypeFadeAll       Type = "fade_all"
	TypeStopAll       Type = "stop_all"

	// System commands
	TypeShutdown Type = "shutdown"
)

// Continuous reports whether a command is a per-tick stream update rather
// than a lifecycle event. Continuous commands are safe to drop under
// backpressure: the next tick re-derives them from current input. Lifecycle
// commands are not, since they fire exactly once per transition.
func (t Type) Continuous() bool {
	switch t {
	case TypeSetParallax, TypeSetVolume, TypeSetEffectIntensity, TypeSetVignette:
		return true
	}
	return false
}

// Command is the wire envelope for all child commands.
type Command struct {
	Type      Type            `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// New creates a command with the current timestamp.
func New(cmdType Type, data interface{}) (*Command, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal command data: %w", err)
		}
	}

	return &Command{
		Type:      cmdType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// MustNew is New for payload types that cannot fail to marshal. It panics
// on error and exists for the coordinator's statically-shaped payloads.
func MustNew(cmdType Type, data interface{}) *Command {
	cmd, err := New(cmdType, data)
	if err != nil {
		panic(err)
	}
	return cmd
}

// ParseData unmarshals the command payload into the provided struct.
func (c *Command) ParseData(v interface{}) error {
	if c.Data == nil {
		return nil
	}
	return json.Unmarshal(c.Data, v)
}

// Bytes returns the JSON-encoded command.
func (c *Command) Bytes() ([]byte, error) {
	return json.Marshal(c)
}

// Parse decodes a JSON command from bytes.
func Parse(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}
	return &cmd, nil
}

// =============================================================================
// Display payloads
// =============================================================================

// SetImageData loads an image immediately, without a transition.
type SetImageData struct {
	Path string `json:"path"`
}

// CrossfadeImageData fades from the current image to a new one.
type CrossfadeImageData struct {
	Path       string `json:"path"`
	DurationMS int    `json:"duration_ms"`
}

// SetEffectData enables a visual effect, optionally fading it in.
type SetEffectData struct {
	Effect    string             `json:"effect_type"`
	Intensity float64            `json:"intensity"`
	FadeInMS  int                `json:"fade_in_ms,omitempty"`
	Params    map[string]float64 `json:"params,omitempty"`
}

// SetEffectIntensityData adjusts a running effect's intensity.
type SetEffectIntensityData struct {
	Effect    string  `json:"effect_type"`
	Intensity float64 `json:"intensity"`
}

// SetVignetteData sets the vignette intensity. Zero removes it.
type SetVignetteData struct {
	Intensity float64 `json:"intensity"`
}

// SetParallaxData steers the parallax offset toward the viewer's gaze.
// Coordinates are normalized screen space; 0.5/0.5 is centered.
type SetParallaxData struct {
	GazeX float64 `json:"gaze_x"`
	GazeY float64 `json:"gaze_y"`
}

// =============================================================================
// Audio payloads
// =============================================================================

// PlayAmbientData starts the ambient stream for the current image.
type PlayAmbientData struct {
	Path   string `json:"file_path"`
	FadeMS int    `json:"fade_ms"`
	Loop   bool   `json:"loop"`
}

// PlayHeartbeatData starts a per-region heartbeat stream.
type PlayHeartbeatData struct {
	Path      string `json:"file_path"`
	RegionID  string `json:"region_id"`
	FadeMS    int    `json:"fade_ms"`
	Loop      bool   `json:"loop"`
	BassBoost bool   `json:"bass_boost"`
}

// StopHeartbeatData fades out and stops a region's heartbeat stream.
type StopHeartbeatData struct {
	RegionID string `json:"region_id"`
	FadeMS   int    `json:"fade_ms"`
}

// SetVolumeData adjusts a named stream's volume. Stream names are "ambient"
// or "heartbeat_<region_id>".
type SetVolumeData struct {
	Stream string  `json:"name"`
	Volume float64 `json:"volume"`
}

// FadeAllData fades every active stream toward a target volume.
type FadeAllData struct {
	TargetVolume float64 `json:"target_volume"`
	FadeMS       int     `json:"fade_ms"`
}
