package gallery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/soulframe/soulframe/internal/log"
	"github.com/soulframe/soulframe/pkg/curves"
)

// Schema defaults, matching the authoring tool.
const (
	defaultDwellTimeMS     = 1500
	defaultMinConfidence   = 0.6
	defaultHeartbeatFadeMS = 2000
	defaultHeartbeatMaxCM  = 150.0
	defaultHeartbeatMinCM  = 30.0
	defaultHeartbeatCurve  = "exponential"
	defaultAmbientFarCM    = 200.0
	defaultAmbientNearCM   = 100.0
	defaultAmbientCurve    = "ease_in_out"
	defaultPresenceCM      = 300.0
	defaultCloseCM         = 80.0
	defaultFadeInMS        = 2000
	defaultFadeOutMS       = 2000
	defaultCrossfadeMS     = 3000
	defaultEffectFadeMS    = 3000
	defaultImageFilename   = "image.jpg"
)

// rawImage mirrors ImageMetadata but defers region decoding so one
// malformed region rejects that region, not the whole image.
type rawImage struct {
	Version     int               `json:"version"`
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Image       ImageInfo         `json:"image"`
	Audio       AudioSection      `json:"audio"`
	Regions     []json.RawMessage `json:"regions"`
	Interaction Interaction       `json:"interaction"`
	Transitions Transitions       `json:"transitions"`
}

// LoadPackage reads and validates one image package directory.
func LoadPackage(dir string) (*ImageMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	meta, err := ParseMetadata(data, filepath.Base(dir))
	if err != nil {
		return nil, err
	}
	meta.Dir = dir
	return meta, nil
}

// ParseMetadata parses and validates a metadata.json document.
// fallbackID is used when the document has no id (normally the package
// directory name).
func ParseMetadata(data []byte, fallbackID string) (*ImageMetadata, error) {
	var raw rawImage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	meta := &ImageMetadata{
		Version:     raw.Version,
		ID:          raw.ID,
		Title:       raw.Title,
		Image:       raw.Image,
		Audio:       raw.Audio,
		Interaction: raw.Interaction,
		Transitions: raw.Transitions,
	}
	if meta.Version == 0 {
		meta.Version = 1
	}
	if meta.ID == "" {
		meta.ID = fallbackID
	}
	if meta.Image.Filename == "" {
		meta.Image.Filename = defaultImageFilename
	}
	if meta.Interaction.MinInteractionDistanceCM <= 0 {
		meta.Interaction.MinInteractionDistanceCM = defaultPresenceCM
	}
	if meta.Interaction.CloseInteractionDistanceCM <= 0 {
		meta.Interaction.CloseInteractionDistanceCM = defaultCloseCM
	}
	if meta.Transitions.FadeInMS <= 0 {
		meta.Transitions.FadeInMS = defaultFadeInMS
	}
	if meta.Transitions.FadeOutMS <= 0 {
		meta.Transitions.FadeOutMS = defaultFadeOutMS
	}
	if meta.Transitions.AudioCrossfadeMS <= 0 {
		meta.Transitions.AudioCrossfadeMS = defaultCrossfadeMS
	}
	if meta.Audio.Ambient != nil {
		normalizeAmbient(meta.ID, meta.Audio.Ambient)
	}

	seen := make(map[string]bool)
	for i, rawRegion := range raw.Regions {
		region, err := parseRegion(rawRegion)
		if err != nil {
			// Reject the offending region, keep the rest of the image.
			log.Warn("rejecting malformed region",
				"image", meta.ID, "index", i, "err", err)
			continue
		}
		region.ID = uniqueRegionID(region.ID, seen)
		seen[region.ID] = true
		meta.Regions = append(meta.Regions, *region)
	}

	return meta, nil
}

func parseRegion(data []byte) (*Region, error) {
	var r Region
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}

	if len(r.Shape.Points) < 3 {
		return nil, fmt.Errorf("polygon needs at least 3 points, got %d", len(r.Shape.Points))
	}
	for i := range r.Shape.Points {
		r.Shape.Points[i].X = clamp01(r.Shape.Points[i].X)
		r.Shape.Points[i].Y = clamp01(r.Shape.Points[i].Y)
	}

	if r.GazeTrigger.DwellTimeMS < 0 {
		return nil, fmt.Errorf("dwell_time_ms must be non-negative, got %d", r.GazeTrigger.DwellTimeMS)
	}
	if r.GazeTrigger.DwellTimeMS == 0 {
		r.GazeTrigger.DwellTimeMS = defaultDwellTimeMS
	}
	if r.GazeTrigger.MinConfidence == 0 {
		r.GazeTrigger.MinConfidence = defaultMinConfidence
	}
	r.GazeTrigger.MinConfidence = clamp01(r.GazeTrigger.MinConfidence)

	if r.Heartbeat != nil {
		if r.Heartbeat.File == "" {
			r.Heartbeat = nil
		} else if err := normalizeHeartbeat(r.ID, r.Heartbeat); err != nil {
			return nil, err
		}
	}

	// Drop effects outside the closed type/trigger sets rather than the
	// whole region: a typo in one effect should not kill the heartbeat.
	effects := r.VisualEffects[:0]
	for _, ve := range r.VisualEffects {
		if ve.Type == "" {
			ve.Type = EffectBreathing
		}
		if ve.Trigger == "" {
			ve.Trigger = TriggerGazeDwell
		}
		if !ve.Type.Valid() || !ve.Trigger.Valid() {
			log.Warn("dropping visual effect with unknown type or trigger",
				"region", r.ID, "type", ve.Type, "trigger", ve.Trigger)
			continue
		}
		if ve.FadeInMS < 0 {
			ve.FadeInMS = 0
		}
		if ve.FadeInMS == 0 {
			ve.FadeInMS = defaultEffectFadeMS
		}
		effects = append(effects, ve)
	}
	r.VisualEffects = effects

	return &r, nil
}

func normalizeHeartbeat(regionID string, hb *HeartbeatConfig) error {
	if hb.FadeInMS < 0 {
		return fmt.Errorf("heartbeat fade_in_ms must be non-negative, got %d", hb.FadeInMS)
	}
	if hb.FadeInMS == 0 {
		hb.FadeInMS = defaultHeartbeatFadeMS
	}
	d := &hb.IntensityByDistance
	if d.MinDistanceCM < 0 || d.MaxDistanceCM < 0 {
		return fmt.Errorf("heartbeat distances must be non-negative")
	}
	if d.MaxDistanceCM == 0 {
		d.MaxDistanceCM = defaultHeartbeatMaxCM
	}
	if d.MinDistanceCM == 0 {
		d.MinDistanceCM = defaultHeartbeatMinCM
	}
	if d.Curve == "" {
		d.Curve = defaultHeartbeatCurve
	}
	if _, err := curves.Get(d.Curve); err != nil {
		log.Warn("heartbeat curve unknown, using linear", "region", regionID, "curve", d.Curve)
		d.Curve = "linear"
	}
	return nil
}

func normalizeAmbient(imageID string, a *AmbientAudio) {
	if a.FadeInDistanceCM <= 0 {
		a.FadeInDistanceCM = defaultAmbientFarCM
	}
	if a.FadeInCompleteCM <= 0 {
		a.FadeInCompleteCM = defaultAmbientNearCM
	}
	if a.FadeCurve == "" {
		a.FadeCurve = defaultAmbientCurve
	}
	if _, err := curves.Get(a.FadeCurve); err != nil {
		log.Warn("ambient curve unknown, using linear", "image", imageID, "curve", a.FadeCurve)
		a.FadeCurve = "linear"
	}
}

// uniqueRegionID guarantees every region a unique non-empty id. Empty ids
// get a generated one; duplicates get an ordinal suffix.
func uniqueRegionID(id string, seen map[string]bool) string {
	if id == "" {
		id = "region_" + uuid.NewString()[:8]
		log.Warn("region missing id, generated one", "id", id)
	}
	if !seen[id] {
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", id, n)
		if !seen[candidate] {
			log.Warn("duplicate region id, suffixed", "id", id, "unique", candidate)
			return candidate
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
