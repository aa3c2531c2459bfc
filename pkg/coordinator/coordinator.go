// Package coordinator runs the brain loop of the installation: it reads
// face samples from the vision source, drives the interaction model and
// state machine, and emits display and audio commands on transitions and
// meaningful value changes.
//
// The loop ticks at a fixed rate. All decisions are pure functions of the
// tick's inputs plus accumulated timers, so a single Step is directly
// testable without a clock.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soulframe/soulframe/internal/log"
	"github.com/soulframe/soulframe/pkg/command"
	"github.com/soulframe/soulframe/pkg/curves"
	"github.com/soulframe/soulframe/pkg/gallery"
	"github.com/soulframe/soulframe/pkg/interaction"
	"github.com/soulframe/soulframe/pkg/journal"
	"github.com/soulframe/soulframe/pkg/smoothing"
	"github.com/soulframe/soulframe/pkg/state"
	"github.com/soulframe/soulframe/pkg/supervisor"
	"github.com/soulframe/soulframe/pkg/vision"
)

// ErrChildDied is returned by Run when a supervised child exits.
var ErrChildDied = errors.New("child process died")

// Change-detection thresholds. Updates below these never reach the sinks.
const (
	gazeEpsilon   = 0.005 // ~0.5% of screen
	volumeEpsilon = 0.01  // ~1% volume
)

// Config holds the coordinator's loop parameters.
type Config struct {
	// TickRate is the loop frequency in Hz.
	TickRate int

	// StaleTimeout bounds how long the last valid sample is reused when
	// the vision source stops producing frames. Past it the coordinator
	// synthesizes a zero-face sample so the piece withdraws gracefully.
	StaleTimeout time.Duration

	// AmbientFadeMS is the fade-in applied when the ambient track starts.
	AmbientFadeMS int

	// HeartbeatStopFadeMS is the fade-out when a heartbeat stream stops
	// because the gaze left its region.
	HeartbeatStopFadeMS int

	// State configures the interaction state machine.
	State state.Config
}

// DefaultConfig returns the installation defaults.
func DefaultConfig() Config {
	return Config{
		TickRate:            30,
		StaleTimeout:        2 * time.Second,
		AmbientFadeMS:       1000,
		HeartbeatStopFadeMS: 800,
		State:               state.DefaultConfig(),
	}
}

// Status is a point-in-time snapshot published after every tick.
type Status struct {
	State          string            `json:"state"`
	ImageID        string            `json:"image_id"`
	ImageTitle     string            `json:"image_title"`
	Sample         vision.FaceSample `json:"sample"`
	DistanceFactor float64           `json:"distance_factor"`
	Dwelling       []string          `json:"dwelling"`
	Heartbeats     []string          `json:"heartbeats"`
	AmbientActive  bool              `json:"ambient_active"`
	VisionStale    bool              `json:"vision_stale"`
}

// Coordinator owns the brain loop state. Not safe for concurrent use; Run
// is the single driver.
type Coordinator struct {
	config  Config
	source  vision.Source
	gallery *gallery.Manager
	display command.Sink
	audio   command.Sink

	machine *state.Machine
	model   *interaction.Model

	gazeSmoother     *smoothing.Gaze
	distanceSmoother *smoothing.Distance

	group   *supervisor.Group
	journal *journal.Journal

	// OnStatus, when set, receives a snapshot after every tick.
	OnStatus func(Status)

	started   bool
	prevState state.State

	// elapsed is the loop's virtual clock, advanced by dt each Step.
	elapsed time.Duration

	// Vision staleness tracking.
	lastValid  vision.FaceSample
	sinceFresh time.Duration

	// Change-detection state.
	lastGazeX         float64
	lastGazeY         float64
	lastAmbientVolume float64
	startedHeartbeats map[string]time.Duration // region id -> elapsed at start
	lastHBVolumes     map[string]float64       // region id -> last sent volume
	ambientStarted    bool
}

// New creates a coordinator over the given collaborators. The gallery must
// already be scanned.
func New(config Config, source vision.Source, gal *gallery.Manager, display, audio command.Sink) *Coordinator {
	c := &Coordinator{
		config:            config,
		source:            source,
		gallery:           gal,
		display:           display,
		audio:             audio,
		machine:           state.New(config.State),
		model:             interaction.New(),
		gazeSmoother:      smoothing.NewGaze(),
		distanceSmoother:  smoothing.NewDistance(),
		lastAmbientVolume: -1,
		startedHeartbeats: make(map[string]time.Duration),
		lastHBVolumes:     make(map[string]float64),
	}
	// Staleness begins saturated so a source that never produces a frame
	// is stale from the first tick.
	c.sinceFresh = config.StaleTimeout + time.Second
	return c
}

// SetJournal attaches a run journal. Journal failures degrade to logging.
func (c *Coordinator) SetJournal(j *journal.Journal) {
	c.journal = j
}

// SetGroup attaches the supervised child group checked every tick.
func (c *Coordinator) SetGroup(g *supervisor.Group) {
	c.group = g
}

// Machine exposes the state machine for status reporting.
func (c *Coordinator) Machine() *state.Machine {
	return c.machine
}

// Start loads the first image and applies its thresholds. Run calls it
// automatically; it is exported so tests can drive Step directly.
func (c *Coordinator) Start() error {
	if c.started {
		return nil
	}
	img := c.gallery.Current()
	if img == nil {
		return gallery.ErrEmptyGallery
	}
	if path, ok := c.gallery.ImagePath(); ok {
		c.send(c.display, command.MustNew(command.TypeSetImage, command.SetImageData{Path: path}))
		log.Info("initial image loaded", "id", img.ID, "title", img.Title)
	}
	c.applyImageThresholds(img)
	c.recordImageChange(img.ID, "startup")
	c.started = true
	return nil
}

// Run drives the loop until the context is cancelled or a child dies.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Start(); err != nil {
		return err
	}

	interval := time.Second / time.Duration(c.config.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("coordinator loop started", "tick_rate_hz", c.config.TickRate)
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			c.Step(dt)

			if c.group != nil {
				if id, dead := c.group.DeadChild(); dead {
					log.Error("child process died, shutting down", "id", id)
					c.shutdown()
					return fmt.Errorf("%w: %s", ErrChildDied, id)
				}
			}
		}
	}
}

// Step executes one tick of the brain loop.
func (c *Coordinator) Step(dt time.Duration) {
	c.elapsed += dt

	sample := c.readSample(dt)

	img := c.gallery.Current()
	var regions []gallery.Region
	// Interaction is frozen during withdrawal: the piece is letting go and
	// a wandering gaze must not re-trigger anything mid-fade.
	if img != nil && c.machine.State() != state.Withdrawing {
		regions = img.Regions
	}

	result := c.model.Update(sample, regions, dt)
	newState := c.machine.Step(sample, result, dt)

	if newState != c.prevState {
		c.onTransition(c.prevState, newState, result, img)
		c.prevState = newState
	}

	c.continuousUpdates(newState, sample, result, img)

	if c.machine.ShouldCycleImage() {
		c.cycleImage()
	}

	c.publishStatus(sample, result, img)
}

// readSample reads the vision source, smooths fresh frames, and handles
// staleness: the last valid sample is reused for a bounded window, then a
// zero-face sample is synthesized so the machine withdraws.
func (c *Coordinator) readSample(dt time.Duration) vision.FaceSample {
	raw, status := c.source.Read()
	if status == vision.StatusFresh {
		if c.sinceFresh > c.config.StaleTimeout {
			c.gazeSmoother.Reset()
			c.distanceSmoother.Reset()
		}
		c.sinceFresh = 0
		smoothed := c.smooth(raw)
		c.lastValid = smoothed
		return smoothed
	}

	c.sinceFresh += dt
	if c.sinceFresh > c.config.StaleTimeout {
		return vision.FaceSample{}
	}
	return c.lastValid
}

// smooth filters gaze jitter and distance noise. Zero-face samples pass
// through untouched so smoothers never chew on garbage coordinates.
func (c *Coordinator) smooth(raw vision.FaceSample) vision.FaceSample {
	if !raw.FaceDetected() {
		return raw
	}
	out := raw
	gx, gy := c.gazeSmoother.Update(float64(raw.GazeX), float64(raw.GazeY))
	out.GazeX = float32(gx)
	out.GazeY = float32(gy)
	out.DistanceCM = float32(c.distanceSmoother.Update(float64(raw.DistanceCM)))
	return out
}

// =============================================================================
// Transitions
// =============================================================================

func (c *Coordinator) onTransition(old, next state.State, result interaction.Result, img *gallery.ImageMetadata) {
	c.recordTransition(old, next, img)

	switch {
	case old == state.Idle && next == state.Presence:
		c.enterPresence(img)

	case old == state.Presence && next == state.Engaged:
		c.enterEngaged(result, img)

	case old == state.Engaged && next == state.CloseInteraction:
		c.send(c.display, command.MustNew(command.TypeSetVignette,
			command.SetVignetteData{Intensity: 0.8}))
		c.send(c.display, command.MustNew(command.TypeSetEffectIntensity,
			command.SetEffectIntensityData{Effect: string(gallery.EffectBreathing), Intensity: 1.0}))

	case old == state.CloseInteraction && next == state.Engaged:
		// Viewer backed up: soften, don't stop.
		c.send(c.display, command.MustNew(command.TypeSetVignette,
			command.SetVignetteData{Intensity: 0.0}))
		c.send(c.display, command.MustNew(command.TypeSetEffectIntensity,
			command.SetEffectIntensityData{Effect: string(gallery.EffectBreathing), Intensity: 0.6}))

	case next == state.Withdrawing:
		c.enterWithdrawing(img)

	case old == state.Withdrawing && next == state.Idle:
		c.enterIdle()

	default:
		log.Warn("unhandled transition", "from", old.String(), "to", next.String())
	}
}

func (c *Coordinator) enterPresence(img *gallery.ImageMetadata) {
	if img != nil && img.HasAmbient() {
		if path, ok := c.gallery.AudioPath(img.Audio.Ambient.File); ok {
			c.send(c.audio, command.MustNew(command.TypePlayAmbient, command.PlayAmbientData{
				Path:   path,
				FadeMS: c.config.AmbientFadeMS,
				Loop:   img.Audio.Ambient.Loop,
			}))
			c.ambientStarted = true
		}
	}
	c.send(c.display, command.MustNew(command.TypeSetEffect,
		command.SetEffectData{Effect: string(gallery.EffectKenBurns), Intensity: 0.3}))
	c.send(c.display, command.MustNew(command.TypeSetEffect,
		command.SetEffectData{Effect: string(gallery.EffectParallax), Intensity: 0.2}))
}

func (c *Coordinator) enterEngaged(result interaction.Result, img *gallery.ImageMetadata) {
	if img == nil || len(result.Dwelling) == 0 {
		return
	}
	for _, region := range img.Regions {
		if !result.IsDwelling(region.ID) {
			continue
		}
		// Heartbeat start lives in continuousUpdates so re-dwells after the
		// transition behave identically to the first one.
		for _, ve := range region.VisualEffects {
			if ve.Trigger != gallery.TriggerGazeDwell {
				continue
			}
			c.send(c.display, command.MustNew(command.TypeSetEffect, effectData(ve)))
		}
	}
}

// effectData builds the SetEffect payload for a dwell-triggered effect,
// applying the breathing defaults.
func effectData(ve gallery.VisualEffect) command.SetEffectData {
	params := make(map[string]float64, len(ve.Params)+2)
	for k, v := range ve.Params {
		if f, err := v.Float64(); err == nil {
			params[k] = f
		}
	}
	if ve.Type == gallery.EffectBreathing {
		if _, ok := params["amplitude"]; !ok {
			params["amplitude"] = 0.008
		}
		frequency := 0.25
		if hz, ok := params["frequency_hz"]; ok {
			frequency = hz
		}
		params["frequency"] = frequency
	}
	return command.SetEffectData{
		Effect:    string(ve.Type),
		Intensity: 0.6,
		FadeInMS:  ve.FadeInMS,
		Params:    params,
	}
}

func (c *Coordinator) enterWithdrawing(img *gallery.ImageMetadata) {
	fadeMS := int(c.machine.WithdrawFade() / time.Millisecond)
	if img != nil && img.Transitions.FadeOutMS > 0 {
		fadeMS = img.Transitions.FadeOutMS
	}
	c.send(c.audio, command.MustNew(command.TypeFadeAll,
		command.FadeAllData{TargetVolume: 0.0, FadeMS: fadeMS}))
	c.send(c.display, command.MustNew(command.TypeSetEffectIntensity,
		command.SetEffectIntensityData{Effect: string(gallery.EffectBreathing), Intensity: 0.0}))
	c.send(c.display, command.MustNew(command.TypeSetVignette,
		command.SetVignetteData{Intensity: 0.0}))
	c.send(c.display, command.MustNew(command.TypeSetParallax,
		command.SetParallaxData{GazeX: 0.5, GazeY: 0.5}))
}

func (c *Coordinator) enterIdle() {
	c.send(c.audio, command.MustNew(command.TypeStopAll, nil))
	c.send(c.display, command.MustNew(command.TypeSetEffectIntensity,
		command.SetEffectIntensityData{Effect: string(gallery.EffectKenBurns), Intensity: 0.0}))
	c.send(c.display, command.MustNew(command.TypeSetEffectIntensity,
		command.SetEffectIntensityData{Effect: string(gallery.EffectParallax), Intensity: 0.0}))

	// The encounter is over; the next viewer starts from a clean slate.
	c.model.Reset()
	c.gazeSmoother.Reset()
	c.distanceSmoother.Reset()
	c.startedHeartbeats = make(map[string]time.Duration)
	c.lastHBVolumes = make(map[string]float64)
	c.ambientStarted = false
}

// =============================================================================
// Continuous per-tick updates
// =============================================================================

func (c *Coordinator) continuousUpdates(s state.State, sample vision.FaceSample, result interaction.Result, img *gallery.ImageMetadata) {
	if s == state.Idle || s == state.Withdrawing {
		// Force the first ambient update after re-entry to send.
		c.lastAmbientVolume = -1
		return
	}

	c.updateParallax(sample)
	c.updateAmbientVolume(sample, result, img)

	if s == state.Engaged || s == state.CloseInteraction {
		c.updateHeartbeats(sample, result, img)
	}
}

func (c *Coordinator) updateParallax(sample vision.FaceSample) {
	gx := float64(sample.GazeX)
	gy := float64(sample.GazeY)
	if abs(gx-c.lastGazeX) <= gazeEpsilon && abs(gy-c.lastGazeY) <= gazeEpsilon {
		return
	}
	c.send(c.display, command.MustNew(command.TypeSetParallax,
		command.SetParallaxData{GazeX: gx, GazeY: gy}))
	c.lastGazeX = gx
	c.lastGazeY = gy
}

func (c *Coordinator) updateAmbientVolume(sample vision.FaceSample, result interaction.Result, img *gallery.ImageMetadata) {
	if !c.ambientStarted || img == nil || !img.HasAmbient() {
		return
	}
	amb := img.Audio.Ambient
	var volume float64
	if curve, err := curves.Get(amb.FadeCurve); err == nil {
		volume = curve(float64(sample.DistanceCM), amb.FadeInCompleteCM, amb.FadeInDistanceCM)
	} else {
		volume = 0.3 + 0.7*result.DistanceFactor
	}
	if abs(volume-c.lastAmbientVolume) <= volumeEpsilon {
		return
	}
	c.send(c.audio, command.MustNew(command.TypeSetVolume,
		command.SetVolumeData{Stream: "ambient", Volume: volume}))
	c.lastAmbientVolume = volume
}

func (c *Coordinator) updateHeartbeats(sample vision.FaceSample, result interaction.Result, img *gallery.ImageMetadata) {
	if img == nil {
		return
	}

	for _, region := range img.Regions {
		if region.Heartbeat == nil || region.Heartbeat.File == "" {
			continue
		}
		dwelling := result.IsDwelling(region.ID)
		_, started := c.startedHeartbeats[region.ID]

		if dwelling && !started {
			if path, ok := c.gallery.AudioPath(region.Heartbeat.File); ok {
				c.send(c.audio, command.MustNew(command.TypePlayHeartbeat, command.PlayHeartbeatData{
					Path:      path,
					RegionID:  region.ID,
					FadeMS:    region.Heartbeat.FadeInMS,
					Loop:      region.Heartbeat.Loop,
					BassBoost: region.Heartbeat.BassBoost,
				}))
				c.startedHeartbeats[region.ID] = c.elapsed
				started = true
			}
		}

		if started {
			c.modulateHeartbeat(region, sample, result)
		}
	}

	// Stop heartbeats whose region the gaze has left.
	for id := range c.startedHeartbeats {
		if result.IsDwelling(id) {
			continue
		}
		c.send(c.audio, command.MustNew(command.TypeStopHeartbeat, command.StopHeartbeatData{
			RegionID: id,
			FadeMS:   c.config.HeartbeatStopFadeMS,
		}))
		delete(c.startedHeartbeats, id)
		delete(c.lastHBVolumes, id)
	}
}

func (c *Coordinator) modulateHeartbeat(region gallery.Region, sample vision.FaceSample, result interaction.Result) {
	hb := region.Heartbeat

	// Grace period: a volume update during the fade-in would cancel the
	// fade started by the play command.
	grace := time.Duration(hb.FadeInMS) * time.Millisecond
	if c.elapsed-c.startedHeartbeats[region.ID] < grace {
		return
	}

	ibd := hb.IntensityByDistance
	var volume float64
	if curve, err := curves.Get(ibd.Curve); err == nil {
		volume = curve(float64(sample.DistanceCM), ibd.MinDistanceCM, ibd.MaxDistanceCM)
	} else {
		volume = result.DistanceFactor
	}

	if prev, ok := c.lastHBVolumes[region.ID]; ok && abs(volume-prev) <= volumeEpsilon {
		return
	}
	c.lastHBVolumes[region.ID] = volume
	c.send(c.audio, command.MustNew(command.TypeSetVolume,
		command.SetVolumeData{Stream: "heartbeat_" + region.ID, Volume: volume}))
}

// =============================================================================
// Image cycling
// =============================================================================

func (c *Coordinator) cycleImage() {
	img := c.gallery.Next()
	if img == nil {
		return
	}
	log.Info("idle image cycle", "id", img.ID, "title", img.Title)

	if path, ok := c.gallery.ImagePath(); ok {
		c.send(c.display, command.MustNew(command.TypeCrossfadeImage, command.CrossfadeImageData{
			Path:       path,
			DurationMS: img.Transitions.FadeInMS,
		}))
	}
	// Fade out any leftover audio under the image transition.
	c.send(c.audio, command.MustNew(command.TypeFadeAll, command.FadeAllData{
		TargetVolume: 0.0,
		FadeMS:       img.Transitions.AudioCrossfadeMS,
	}))

	c.model.Reset()
	c.gazeSmoother.Reset()
	c.distanceSmoother.Reset()
	c.startedHeartbeats = make(map[string]time.Duration)
	c.lastHBVolumes = make(map[string]float64)
	c.ambientStarted = false

	c.applyImageThresholds(img)
	c.recordImageChange(img.ID, "idle_cycle")
}

func (c *Coordinator) applyImageThresholds(img *gallery.ImageMetadata) {
	presenceCM := img.Interaction.MinInteractionDistanceCM
	closeCM := img.Interaction.CloseInteractionDistanceCM
	c.machine.SetDistanceThresholds(presenceCM, closeCM)
	if img.Transitions.FadeOutMS > 0 {
		c.machine.SetWithdrawFade(time.Duration(img.Transitions.FadeOutMS) * time.Millisecond)
	}
	c.model.SetDistanceThresholds(closeCM, presenceCM)
}

// =============================================================================
// Plumbing
// =============================================================================

// send delivers a command, logging failures. A failed send degrades the
// current tick, never the loop.
func (c *Coordinator) send(sink command.Sink, cmd *command.Command) {
	if err := sink.Send(cmd); err != nil {
		log.Error("command send failed",
			"sink", sink.Name(), "type", string(cmd.Type), "error", err)
	}
}

func (c *Coordinator) recordTransition(old, next state.State, img *gallery.ImageMetadata) {
	if c.journal == nil {
		return
	}
	imageID := ""
	if img != nil {
		imageID = img.ID
	}
	if err := c.journal.RecordTransition(old.String(), next.String(), imageID); err != nil {
		log.Warn("journal write failed", "error", err)
	}
}

func (c *Coordinator) recordImageChange(imageID, reason string) {
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordImageChange(imageID, reason); err != nil {
		log.Warn("journal write failed", "error", err)
	}
}

func (c *Coordinator) publishStatus(sample vision.FaceSample, result interaction.Result, img *gallery.ImageMetadata) {
	if c.OnStatus == nil {
		return
	}
	status := Status{
		State:          c.machine.State().String(),
		Sample:         sample,
		DistanceFactor: result.DistanceFactor,
		Dwelling:       result.Dwelling,
		AmbientActive:  c.ambientStarted,
		VisionStale:    c.sinceFresh > c.config.StaleTimeout,
	}
	if img != nil {
		status.ImageID = img.ID
		status.ImageTitle = img.Title
	}
	for id := range c.startedHeartbeats {
		status.Heartbeats = append(status.Heartbeats, id)
	}
	c.OnStatus(status)
}

// shutdown tells both children to exit. Supervised stops happen above the
// coordinator; this is the in-band signal.
func (c *Coordinator) shutdown() {
	log.Info("coordinator shutting down")
	c.send(c.audio, command.MustNew(command.TypeStopAll, nil))
	c.send(c.display, command.MustNew(command.TypeShutdown, nil))
	c.send(c.audio, command.MustNew(command.TypeShutdown, nil))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
