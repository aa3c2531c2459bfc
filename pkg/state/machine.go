// Package state implements the five-state interaction lifecycle of the
// installation: Idle -> Presence -> Engaged -> CloseInteraction ->
// Withdrawing -> Idle.
//
// Every face-lost or gaze-away exit from an engaged state routes through
// Withdrawing, which owns the graceful fade-out. Idle is only reached when
// the withdraw fade completes.
package state

import (
	"time"

	"github.com/soulframe/soulframe/internal/log"
	"github.com/soulframe/soulframe/pkg/interaction"
	"github.com/soulframe/soulframe/pkg/vision"
)

// State identifies one phase of the interaction lifecycle.
type State int

const (
	Idle State = iota
	Presence
	Engaged
	CloseInteraction
	Withdrawing
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Presence:
		return "presence"
	case Engaged:
		return "engaged"
	case CloseInteraction:
		return "close_interaction"
	case Withdrawing:
		return "withdrawing"
	default:
		return "unknown"
	}
}

// minWithdrawFade is the floor for per-image fade overrides.
const minWithdrawFade = 100 * time.Millisecond

// Config holds the tunable timing and distance parameters.
type Config struct {
	// Distances. Per-image metadata overrides these at runtime.
	PresenceDistanceCM float64
	CloseDistanceCM    float64

	// CloseExitFactor scales CloseDistanceCM into the hysteresis exit
	// threshold of CloseInteraction.
	CloseExitFactor float64

	// Timeouts, measured from the moment the condition began being
	// continuously true.
	PresenceLostTimeout time.Duration
	FaceLostTimeout     time.Duration
	GazeAwayTimeout     time.Duration
	WithdrawFade        time.Duration
	IdleImageCycle      time.Duration

	// GazeMinConfidence is the fallback gaze-away threshold when no
	// region threshold applies.
	GazeMinConfidence float64
}

// DefaultConfig returns the installation defaults.
func DefaultConfig() Config {
	return Config{
		PresenceDistanceCM:  300,
		CloseDistanceCM:     80,
		CloseExitFactor:     1.5,
		PresenceLostTimeout: 3 * time.Second,
		FaceLostTimeout:     5 * time.Second,
		GazeAwayTimeout:     8 * time.Second,
		WithdrawFade:        4 * time.Second,
		IdleImageCycle:      5 * time.Minute,
		GazeMinConfidence:   0.6,
	}
}

// Machine is the five-state interaction state machine. One owner, stepped
// once per coordinator tick; no internal locking.
type Machine struct {
	config Config
	state  State

	// Accumulated condition timers. Any tick that breaks continuity
	// resets the corresponding timer.
	faceLost  time.Duration
	gazeAway  time.Duration
	withdraw  time.Duration
	idleCycle time.Duration

	shouldCycle bool

	// Per-image overrides.
	presenceCM   float64
	closeCM      float64
	withdrawFade time.Duration

	// OnTransition, when set, is called for every state change.
	OnTransition func(from, to State)
}

// New creates a machine in Idle.
func New(config Config) *Machine {
	return &Machine{
		config:       config,
		state:        Idle,
		presenceCM:   config.PresenceDistanceCM,
		closeCM:      config.CloseDistanceCM,
		withdrawFade: config.WithdrawFade,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// ShouldCycleImage reports whether the idle image cycle elapsed this tick.
func (m *Machine) ShouldCycleImage() bool {
	return m.shouldCycle
}

// SetDistanceThresholds applies per-image presence and close distances.
func (m *Machine) SetDistanceThresholds(presenceCM, closeCM float64) {
	m.presenceCM = presenceCM
	m.closeCM = closeCM
}

// SetWithdrawFade applies a per-image withdraw fade, clamped to a floor so
// a zero in metadata cannot produce an instant cut.
func (m *Machine) SetWithdrawFade(d time.Duration) {
	if d < minWithdrawFade {
		d = minWithdrawFade
	}
	m.withdrawFade = d
}

// WithdrawFade returns the effective withdraw fade duration.
func (m *Machine) WithdrawFade() time.Duration {
	return m.withdrawFade
}

// Step advances the machine by dt given this tick's sample and interaction
// result, and returns the (possibly new) state.
func (m *Machine) Step(sample vision.FaceSample, result interaction.Result, dt time.Duration) State {
	faceDetected := sample.FaceDetected()
	distanceCM := float64(sample.DistanceCM)
	confidence := float64(sample.Confidence)

	if faceDetected {
		m.faceLost = 0
	} else {
		m.faceLost += dt
	}

	// Gaze-away is judged against the engaged regions' own threshold, not
	// the global default, so engagement and withdrawal are symmetric.
	threshold := m.config.GazeMinConfidence
	if (m.state == Engaged || m.state == CloseInteraction) && result.MinActiveConfidence > 0 {
		threshold = result.MinActiveConfidence
	}
	if len(result.Active) > 0 && confidence >= threshold {
		m.gazeAway = 0
	} else {
		m.gazeAway += dt
	}

	switch m.state {
	case Idle:
		m.stepIdle(faceDetected, distanceCM, dt)
	case Presence:
		m.stepPresence(faceDetected, distanceCM, result)
	case Engaged:
		m.stepEngaged(faceDetected, distanceCM)
	case CloseInteraction:
		m.stepCloseInteraction(faceDetected, distanceCM)
	case Withdrawing:
		m.stepWithdrawing(dt)
	}

	return m.state
}

// Reset forces the machine back to Idle, clearing all timers.
func (m *Machine) Reset() {
	old := m.state
	m.state = Idle
	m.faceLost = 0
	m.gazeAway = 0
	m.withdraw = 0
	m.idleCycle = 0
	m.shouldCycle = false
	if old != Idle && m.OnTransition != nil {
		m.OnTransition(old, Idle)
	}
}

func (m *Machine) setState(next State) {
	old := m.state
	if old == next {
		return
	}
	log.Info("state transition", "from", old.String(), "to", next.String())
	m.state = next

	// Clear the cycle flag on any transition so a cycle decided in the
	// same tick as a viewer arriving cannot fire.
	m.shouldCycle = false

	switch {
	case next == Idle:
		m.idleCycle = 0
	case next == Engaged && old != CloseInteraction:
		// Fresh engagement resets the gaze-away timer; oscillating back
		// from CloseInteraction keeps it running.
		m.gazeAway = 0
	case next == Withdrawing:
		m.withdraw = 0
	}

	if m.OnTransition != nil {
		m.OnTransition(old, next)
	}
}

func (m *Machine) stepIdle(faceDetected bool, distanceCM float64, dt time.Duration) {
	if faceDetected && distanceCM < m.presenceCM {
		m.setState(Presence)
		return
	}
	m.idleCycle += dt
	if m.idleCycle >= m.config.IdleImageCycle {
		m.shouldCycle = true
		m.idleCycle = 0
	} else {
		m.shouldCycle = false
	}
}

func (m *Machine) stepPresence(faceDetected bool, distanceCM float64, result interaction.Result) {
	if m.faceLost >= m.config.PresenceLostTimeout {
		m.setState(Withdrawing)
		return
	}
	if faceDetected && distanceCM >= m.presenceCM {
		m.setState(Withdrawing)
		return
	}
	if len(result.Dwelling) > 0 {
		m.setState(Engaged)
	}
}

func (m *Machine) stepEngaged(faceDetected bool, distanceCM float64) {
	if m.faceLost >= m.config.FaceLostTimeout {
		m.setState(Withdrawing)
		return
	}
	if faceDetected && distanceCM < m.closeCM {
		m.setState(CloseInteraction)
		return
	}
	if m.gazeAway >= m.config.GazeAwayTimeout {
		m.setState(Withdrawing)
	}
}

func (m *Machine) stepCloseInteraction(faceDetected bool, distanceCM float64) {
	if m.faceLost >= m.config.FaceLostTimeout {
		m.setState(Withdrawing)
		return
	}
	if m.gazeAway >= m.config.GazeAwayTimeout {
		m.setState(Withdrawing)
		return
	}
	// Hysteresis: leaving close interaction needs more distance than
	// entering it, capped at the presence distance.
	exitCM := m.closeCM * m.config.CloseExitFactor
	if exitCM > m.presenceCM {
		exitCM = m.presenceCM
	}
	if faceDetected && distanceCM > exitCM {
		m.setState(Engaged)
	}
}

func (m *Machine) stepWithdrawing(dt time.Duration) {
	m.withdraw += dt
	if m.withdraw >= m.withdrawFade {
		m.setState(Idle)
	}
}
