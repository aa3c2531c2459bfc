package coordinator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soulframe/soulframe/pkg/command"
	"github.com/soulframe/soulframe/pkg/gallery"
	"github.com/soulframe/soulframe/pkg/vision"
)

const tick = 100 * time.Millisecond

const testMetadata = `{
  "version": 1,
  "id": "portrait_01",
  "title": "The Miner",
  "image": {"filename": "image.jpg", "width": 1920, "height": 1080},
  "audio": {
    "ambient": {
      "file": "audio/ambient.wav",
      "loop": true,
      "fade_in_distance_cm": 200,
      "fade_in_complete_cm": 100,
      "fade_curve": "ease_in_out"
    }
  },
  "regions": [{
    "id": "eyes",
    "label": "Eyes",
    "shape": {
      "type": "polygon",
      "points_normalized": [[0.25, 0.25], [0.75, 0.25], [0.75, 0.75], [0.25, 0.75]]
    },
    "gaze_trigger": {"dwell_time_ms": 1500, "min_confidence": 0.6},
    "heartbeat": {
      "file": "audio/heartbeat.wav",
      "loop": true,
      "fade_in_ms": 500,
      "intensity_by_distance": {"min_distance_cm": 30, "max_distance_cm": 150, "curve": "exponential"}
    },
    "visual_effects": [{
      "type": "breathing",
      "trigger": "on_gaze_dwell",
      "fade_in_ms": 3000,
      "params": {"frequency_hz": 0.3}
    }]
  }],
  "interaction": {"min_interaction_distance_cm": 300, "close_interaction_distance_cm": 80},
  "transitions": {"fade_in_ms": 2000, "fade_out_ms": 2000, "audio_crossfade_ms": 3000}
}`

const secondMetadata = `{
  "version": 1,
  "id": "portrait_02",
  "title": "The Weaver",
  "image": {"filename": "image.jpg"},
  "interaction": {"min_interaction_distance_cm": 300, "close_interaction_distance_cm": 80},
  "transitions": {"fade_in_ms": 1200, "fade_out_ms": 2000, "audio_crossfade_ms": 900}
}`

type fixture struct {
	c       *Coordinator
	source  *vision.MockSource
	display *command.RecordingSink
	audio   *command.RecordingSink
}

func writeImagePackage(t *testing.T, root, name, metadata string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Join(dir, "audio"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(metadata), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"audio/ambient.wav", "audio/heartbeat.wav"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("riff"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newFixture(t *testing.T, config Config, packages ...string) *fixture {
	t.Helper()
	root := t.TempDir()
	if len(packages) == 0 {
		packages = []string{testMetadata}
	}
	for i, meta := range packages {
		writeImagePackage(t, root, string(rune('a'+i))+"_pkg", meta)
	}

	mgr := gallery.NewManager(root)
	if _, err := mgr.Scan(); err != nil {
		t.Fatalf("gallery scan: %v", err)
	}

	f := &fixture{
		source:  vision.NewMockSource(),
		display: command.NewRecordingSink("display"),
		audio:   command.NewRecordingSink("audio"),
	}
	f.c = New(config, f.source, mgr, f.display, f.audio)
	if err := f.c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return f
}

// feed delivers the same sample as a fresh frame for every tick of total.
func (f *fixture) feed(sample vision.FaceSample, total time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += tick {
		f.source.SetFresh(sample)
		f.c.Step(tick)
	}
}

// starve steps without any new vision frames.
func (f *fixture) starve(total time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += tick {
		f.c.Step(tick)
	}
}

func approaching(distanceCM float32) vision.FaceSample {
	return vision.FaceSample{NumFaces: 1, DistanceCM: distanceCM, GazeX: 0.1, GazeY: 0.1, Confidence: 0.8}
}

func dwellingOnEyes(distanceCM float32) vision.FaceSample {
	return vision.FaceSample{NumFaces: 1, DistanceCM: distanceCM, GazeX: 0.5, GazeY: 0.5, Confidence: 0.8}
}

func parseVolume(t *testing.T, cmd *command.Command) command.SetVolumeData {
	t.Helper()
	var data command.SetVolumeData
	if err := cmd.ParseData(&data); err != nil {
		t.Fatal(err)
	}
	return data
}

func TestCoordinator_StartLoadsFirstImage(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	cmd := f.display.Last(command.TypeSetImage)
	if cmd == nil {
		t.Fatal("no set_image sent on start")
	}
	var data command.SetImageData
	if err := cmd.ParseData(&data); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(data.Path, "image.jpg") {
		t.Errorf("path: got %q", data.Path)
	}
}

// A viewer walks up: the piece wakes (ambient, kenburns, parallax), then
// their gaze settles on the eyes and the portrait engages.
func TestCoordinator_ApproachAndEngage(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	f.feed(approaching(150), tick)
	if got := f.c.Machine().State().String(); got != "presence" {
		t.Fatalf("after approach: got %s, want presence", got)
	}
	if f.audio.CountOf(command.TypePlayAmbient) != 1 {
		t.Error("ambient not started on presence")
	}
	if f.display.CountOf(command.TypeSetEffect) != 2 {
		t.Errorf("presence effects: got %d set_effect, want kenburns+parallax", f.display.CountOf(command.TypeSetEffect))
	}

	f.feed(dwellingOnEyes(150), 2*time.Second)
	if got := f.c.Machine().State().String(); got != "engaged" {
		t.Fatalf("after dwell: got %s, want engaged", got)
	}
	// The region's breathing effect fires once on engagement.
	if f.display.CountOf(command.TypeSetEffect) != 3 {
		t.Errorf("engage effects: got %d set_effect, want 3", f.display.CountOf(command.TypeSetEffect))
	}
	var effect command.SetEffectData
	if err := f.display.Last(command.TypeSetEffect).ParseData(&effect); err != nil {
		t.Fatal(err)
	}
	if effect.Effect != "breathing" || effect.FadeInMS != 3000 {
		t.Errorf("effect: got %+v", effect)
	}
	if effect.Params["frequency"] != 0.3 || effect.Params["amplitude"] != 0.008 {
		t.Errorf("breathing params: got %v", effect.Params)
	}
}

func TestCoordinator_AmbientVolumeFollowsDistanceWithDedup(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	// 150cm sits midway across the 100..200 ease_in_out span.
	f.feed(dwellingOnEyes(150), tick)
	cmd := f.audio.Last(command.TypeSetVolume)
	if cmd == nil {
		t.Fatal("no ambient volume sent")
	}
	data := parseVolume(t, cmd)
	if data.Stream != "ambient" {
		t.Fatalf("stream: got %q", data.Stream)
	}
	if data.Volume < 0.49 || data.Volume > 0.51 {
		t.Errorf("volume at 150cm: got %v, want ~0.5", data.Volume)
	}

	// Unchanged distance must not resend.
	sent := f.audio.CountOf(command.TypeSetVolume)
	f.feed(dwellingOnEyes(150), time.Second)
	if got := f.audio.CountOf(command.TypeSetVolume); got != sent {
		t.Errorf("volume resent without change: %d -> %d", sent, got)
	}
}

func TestCoordinator_HeartbeatLifecycle(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	// Engage on the eyes region.
	f.feed(dwellingOnEyes(150), 2*time.Second)
	if f.audio.CountOf(command.TypePlayHeartbeat) != 1 {
		t.Fatalf("play_heartbeat: got %d, want 1", f.audio.CountOf(command.TypePlayHeartbeat))
	}

	// Keep dwelling: the heartbeat must not restart, and after the fade-in
	// grace its volume modulates exactly once for a constant distance.
	f.feed(dwellingOnEyes(150), 2*time.Second)
	if f.audio.CountOf(command.TypePlayHeartbeat) != 1 {
		t.Error("heartbeat restarted while dwelling")
	}
	hbVolumes := 0
	for _, cmd := range f.audio.Commands() {
		if cmd.Type != command.TypeSetVolume {
			continue
		}
		if parseVolume(t, cmd).Stream == "heartbeat_eyes" {
			hbVolumes++
		}
	}
	if hbVolumes != 1 {
		t.Errorf("heartbeat volume updates: got %d, want 1", hbVolumes)
	}

	// Gaze wanders off the eyes: heartbeat stops with a fade.
	f.feed(approaching(150), 2*time.Second)
	stop := f.audio.Last(command.TypeStopHeartbeat)
	if stop == nil {
		t.Fatal("no stop_heartbeat after leaving region")
	}
	var stopData command.StopHeartbeatData
	if err := stop.ParseData(&stopData); err != nil {
		t.Fatal(err)
	}
	if stopData.RegionID != "eyes" || stopData.FadeMS != 800 {
		t.Errorf("stop: got %+v", stopData)
	}
	if f.audio.CountOf(command.TypeStopHeartbeat) != 1 {
		t.Errorf("stop_heartbeat sent %d times", f.audio.CountOf(command.TypeStopHeartbeat))
	}
}

func TestCoordinator_CloseInteraction(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.feed(dwellingOnEyes(150), 2*time.Second)

	// Leaning in. The distance smoother needs a few ticks to follow.
	f.feed(dwellingOnEyes(60), 2*time.Second)
	if got := f.c.Machine().State().String(); got != "close_interaction" {
		t.Fatalf("leaned in: got %s, want close_interaction", got)
	}
	var vignette command.SetVignetteData
	if err := f.display.Last(command.TypeSetVignette).ParseData(&vignette); err != nil {
		t.Fatal(err)
	}
	if vignette.Intensity != 0.8 {
		t.Errorf("vignette: got %v, want 0.8", vignette.Intensity)
	}

	// Backing off past the hysteresis exit.
	f.feed(dwellingOnEyes(140), 2*time.Second)
	if got := f.c.Machine().State().String(); got != "engaged" {
		t.Fatalf("backed off: got %s, want engaged", got)
	}
	if err := f.display.Last(command.TypeSetVignette).ParseData(&vignette); err != nil {
		t.Fatal(err)
	}
	if vignette.Intensity != 0 {
		t.Errorf("vignette on exit: got %v, want 0", vignette.Intensity)
	}
}

// The viewer walks away mid-engagement: fade everything, then go dark.
func TestCoordinator_WithdrawAndRelease(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.feed(dwellingOnEyes(150), 2*time.Second)

	f.feed(vision.FaceSample{}, 5*time.Second)
	if got := f.c.Machine().State().String(); got != "withdrawing" {
		t.Fatalf("face lost 5s: got %s, want withdrawing", got)
	}
	fade := f.audio.Last(command.TypeFadeAll)
	if fade == nil {
		t.Fatal("no fade_all on withdrawing")
	}
	var fadeData command.FadeAllData
	if err := fade.ParseData(&fadeData); err != nil {
		t.Fatal(err)
	}
	if fadeData.TargetVolume != 0 || fadeData.FadeMS != 2000 {
		t.Errorf("fade_all: got %+v, want image fade_out_ms", fadeData)
	}

	// A gaze drifting across regions during the fade must not re-engage.
	f.feed(dwellingOnEyes(150), time.Second)
	if got := f.c.Machine().State().String(); got != "withdrawing" {
		t.Fatalf("interaction not frozen during withdrawal: got %s", got)
	}

	f.feed(vision.FaceSample{}, 2*time.Second)
	if got := f.c.Machine().State().String(); got != "idle" {
		t.Fatalf("fade complete: got %s, want idle", got)
	}
	if f.audio.CountOf(command.TypeStopAll) != 1 {
		t.Error("stop_all not sent on reaching idle")
	}
}

// Presence with a short loss: the 3s presence-lost timeout routes through
// Withdrawing, never straight to Idle.
func TestCoordinator_PresenceLostRoutesThroughWithdrawing(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.feed(approaching(150), tick)

	f.feed(vision.FaceSample{}, 3*time.Second)
	if got := f.c.Machine().State().String(); got != "withdrawing" {
		t.Errorf("presence lost 3s: got %s, want withdrawing", got)
	}
}

// Vision goes silent: the last sample carries for the stale window, then a
// zero-face sample is synthesized and the piece withdraws on its own.
func TestCoordinator_StaleVisionWithdraws(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.feed(approaching(150), tick)
	if got := f.c.Machine().State().String(); got != "presence" {
		t.Fatalf("setup: got %s", got)
	}

	// Within the stale window the last valid sample keeps presence alive.
	f.starve(1500 * time.Millisecond)
	if got := f.c.Machine().State().String(); got != "presence" {
		t.Fatalf("inside stale window: got %s, want presence", got)
	}

	// Past it, synthesized zero-face samples start the presence-lost clock.
	f.starve(4 * time.Second)
	if got := f.c.Machine().State().String(); got != "withdrawing" {
		t.Errorf("stale vision: got %s, want withdrawing", got)
	}
}

func TestCoordinator_IdleImageCycling(t *testing.T) {
	config := DefaultConfig()
	config.State.IdleImageCycle = 500 * time.Millisecond
	f := newFixture(t, config, testMetadata, secondMetadata)

	f.feed(vision.FaceSample{NumFaces: 0}, 600*time.Millisecond)

	crossfade := f.display.Last(command.TypeCrossfadeImage)
	if crossfade == nil {
		t.Fatal("no crossfade after idle cycle interval")
	}
	var data command.CrossfadeImageData
	if err := crossfade.ParseData(&data); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(data.Path, "b_pkg") {
		t.Errorf("crossfade path: got %q, want next package", data.Path)
	}
	if data.DurationMS != 1200 {
		t.Errorf("crossfade duration: got %d, want next image fade_in_ms", data.DurationMS)
	}
	// Audio crossfades out under the image transition.
	var fade command.FadeAllData
	if err := f.audio.Last(command.TypeFadeAll).ParseData(&fade); err != nil {
		t.Fatal(err)
	}
	if fade.FadeMS != 900 {
		t.Errorf("audio crossfade: got %d, want 900", fade.FadeMS)
	}
}

func TestCoordinator_ParallaxDedup(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.feed(dwellingOnEyes(150), tick)
	sent := f.display.CountOf(command.TypeSetParallax)
	if sent == 0 {
		t.Fatal("no parallax update in presence")
	}

	// A steady gaze sends nothing further.
	f.feed(dwellingOnEyes(150), time.Second)
	if got := f.display.CountOf(command.TypeSetParallax); got != sent {
		t.Errorf("parallax resent for steady gaze: %d -> %d", sent, got)
	}
}

func TestCoordinator_StatusSnapshot(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	var last Status
	f.c.OnStatus = func(s Status) { last = s }

	f.feed(dwellingOnEyes(150), 2*time.Second)
	if last.State != "engaged" {
		t.Errorf("status state: got %q", last.State)
	}
	if last.ImageID != "portrait_01" || last.ImageTitle != "The Miner" {
		t.Errorf("status image: got %q/%q", last.ImageID, last.ImageTitle)
	}
	if len(last.Dwelling) != 1 || last.Dwelling[0] != "eyes" {
		t.Errorf("status dwelling: got %v", last.Dwelling)
	}
	if !last.AmbientActive {
		t.Error("status ambient: got inactive")
	}
	if last.VisionStale {
		t.Error("status stale: fresh frames reported stale")
	}
}
