// Package sequencer implements the firing-control state machine for a
// two-stage electromagnetic sled launcher. It decides when each coil bank
// energizes, for how long, and how to shut down if a launch overruns.
//
// The sequencer is pure logic: time and pin levels come in through Inputs,
// desired drive levels and events come out through Outputs. All I/O lives
// with the caller, which makes every timing property directly testable.
package sequencer

import (
	"fmt"
	"time"
)

// State is the current phase of the launch cycle. CoilAActive and
// CoilBActive name the stage in progress; the physical drive line may
// already be off within a stage when the pulse width is shorter than
// the stage itself.
type State uint8

const (
	Idle State = iota // powered up, never armed
	Ready             // armed, waiting for the trigger
	CoilAActive       // first stage in flight
	CoilBActive       // second stage in flight
	Cooldown          // cycle over, waiting out the re-arm delay
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case CoilAActive:
		return "coil-a"
	case CoilBActive:
		return "coil-b"
	case Cooldown:
		return "cooldown"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// UsesSwitch reports whether the sequencer will look at the launch switch
// in this state. The driver skips the (blocking) debounce read while a
// launch is in flight so the settle window never delays fail-safe checks.
func (s State) UsesSwitch() bool {
	return s == Idle || s == Ready || s == Cooldown
}

// Color is the desired indicator color. Red means a coil is powered,
// green means ready to fire, blue means cooling down.
type Color uint8

const (
	ColorOff Color = iota
	ColorRed
	ColorGreen
	ColorBlue
)

// Config holds the launch timings and rail geometry. The zero value of any
// field falls back to the reference hardware's constants.
type Config struct {
	PulseWidth    time.Duration // coil-on time per stage
	RearmDelay    time.Duration // lockout between launches
	FailSafeLimit time.Duration // max coil-on time before forced shutdown

	StartToHall1MM int // rail distance, launch position to first sensor
	Hall1ToHall2MM int // rail distance between the two sensors
}

// DefaultConfig returns the timings of the reference rail.
func DefaultConfig() Config {
	return Config{
		PulseWidth:     30 * time.Millisecond,
		RearmDelay:     5000 * time.Millisecond,
		FailSafeLimit:  1000 * time.Millisecond,
		StartToHall1MM: 45,
		Hall1ToHall2MM: 100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PulseWidth <= 0 {
		c.PulseWidth = d.PulseWidth
	}
	if c.RearmDelay <= 0 {
		c.RearmDelay = d.RearmDelay
	}
	if c.FailSafeLimit <= 0 {
		c.FailSafeLimit = d.FailSafeLimit
	}
	if c.StartToHall1MM <= 0 {
		c.StartToHall1MM = d.StartToHall1MM
	}
	if c.Hall1ToHall2MM <= 0 {
		c.Hall1ToHall2MM = d.Hall1ToHall2MM
	}
	return c
}

// Inputs is one tick's view of the outside world. Hall levels are logical:
// true means the sensor sees the sled (the active-low line reads low).
// SwitchPressed is the debounced trigger level and is only consulted in
// states where UsesSwitch is true.
type Inputs struct {
	Now           time.Time
	SwitchPressed bool
	Hall1         bool
	Hall2         bool
	Holdoff       time.Duration
}

// Outputs is what the driver must reflect to the hardware after a tick.
type Outputs struct {
	CoilA  bool
	CoilB  bool
	Color  Color
	Events []Event
}

// Sequencer owns all launch-cycle state. It is not safe for concurrent
// use; exactly one control loop should call Step.
type Sequencer struct {
	cfg   Config
	state State

	coilAOn bool
	coilBOn bool

	coilATrigger time.Time
	coilBTrigger time.Time

	// Deferred second-stage trigger: set at handoff, fired once the
	// holdoff delay has elapsed.
	coilBPending bool
	coilBDue     time.Time
	holdoffUsed  time.Duration

	hall1Tripped bool
	hall2Tripped bool
	hall1At      time.Time
	hall2At      time.Time
}

// New returns a sequencer in Idle with both coils off. Zero config fields
// take the reference defaults.
func New(cfg Config) *Sequencer {
	return &Sequencer{cfg: cfg.withDefaults()}
}

// State returns the current phase.
func (s *Sequencer) State() State { return s.state }

// Config returns the effective configuration after defaulting.
func (s *Sequencer) Config() Config { return s.cfg }

func (s *Sequencer) launched() bool {
	return s.state == CoilAActive || s.state == CoilBActive
}

// Step advances the state machine by one tick. Evaluation order is fixed:
// fail-safe first so nothing can mask an overrun, then trip recording,
// speed computation, re-arm, launch trigger, and finally stage handoff and
// pulse-width cutoff. Handoff and cutoff both read the drive-line snapshot
// taken at the top of the tick.
func (s *Sequencer) Step(in Inputs) Outputs {
	var events []Event
	emit := func(e Event) { events = append(events, e) }

	// Snapshot of the drive lines as of tick start, shared by the
	// handoff and cutoff checks below.
	aWasOn, bWasOn := s.coilAOn, s.coilBOn

	// 1. Fail-safe. If the cycle has not resolved within the limit,
	// force everything off and head for re-arm. Re-arm timing stays
	// keyed off the coil-A trigger, so an aborted cycle recovers on
	// the same schedule as a completed one.
	if s.launched() && in.Now.Sub(s.coilATrigger) > s.cfg.FailSafeLimit {
		s.coilAOn = false
		s.coilBOn = false
		s.coilBPending = false
		s.hall1Tripped = false
		s.hall2Tripped = false
		s.state = Cooldown
		emit(Event{Kind: EventFailSafe, At: in.Now.Sub(s.coilATrigger)})
	}

	// 2. Trip recording: one latched timestamp per sensor per cycle.
	if s.launched() && !s.hall1Tripped && in.Hall1 {
		s.hall1Tripped = true
		s.hall1At = in.Now
		emit(Event{Kind: EventHall1Trip, At: in.Now.Sub(s.coilATrigger)})
	}
	if s.launched() && !s.hall2Tripped && in.Hall2 {
		s.hall2Tripped = true
		s.hall2At = in.Now
		emit(Event{Kind: EventHall2Trip, At: in.Now.Sub(s.coilATrigger)})
	}

	// 3. Both sensors seen: compute exit speeds and close out the cycle.
	// Flag reset and the state change happen in the same tick so no
	// partially-reset cycle is ever observable.
	if s.hall1Tripped && s.hall2Tripped {
		speed1 := speedMMPerSec(s.cfg.StartToHall1MM, s.hall1At.Sub(s.coilATrigger))
		speed2 := speedMMPerSec(s.cfg.Hall1ToHall2MM, s.hall2At.Sub(s.hall1At))
		s.hall1Tripped = false
		s.hall2Tripped = false
		s.coilBPending = false
		s.state = Cooldown
		emit(Event{
			Kind:   EventSpeeds,
			At:     in.Now.Sub(s.coilATrigger),
			Speed1: speed1,
			Speed2: speed2,
		})
	}

	// 4. Re-arm: the coils have cooled and the operator has let go of
	// the trigger from the previous shot.
	if (s.state == Idle || s.state == Cooldown) &&
		in.Now.Sub(s.coilATrigger) > s.cfg.RearmDelay && !in.SwitchPressed {
		s.state = Ready
	}

	// 5. Launch trigger: armed, coils cold, rail clear, trigger pulled.
	if s.state == Ready && !s.coilAOn && !s.coilBOn &&
		!in.Hall1 && !in.Hall2 && in.SwitchPressed {
		s.state = CoilAActive
		s.coilAOn = true
		s.coilATrigger = in.Now
		emit(Event{Kind: EventCoilAFired})
	}

	// 6. Stage handoff: the sled has reached the first sensor, so the
	// repulsive second stage must not fire until the sled clears its
	// center. Coil A drops immediately; coil B is scheduled holdoff
	// later instead of blocking the loop.
	if s.state == CoilAActive && in.Hall1 {
		s.coilAOn = false
		s.holdoffUsed = in.Holdoff
		s.coilBPending = true
		s.coilBDue = in.Now.Add(in.Holdoff)
		s.state = CoilBActive
		emit(Event{Kind: EventHoldoff, Holdoff: in.Holdoff})
	}
	if s.coilBPending && !in.Now.Before(s.coilBDue) {
		s.coilBPending = false
		s.coilBOn = true
		s.coilBTrigger = in.Now
		emit(Event{Kind: EventCoilBFired, At: in.Now.Sub(s.coilATrigger)})
	}

	// 7. Pulse-width cutoff, per coil, against the tick-start snapshot.
	if aWasOn && s.coilAOn && in.Now.Sub(s.coilATrigger) > s.cfg.PulseWidth {
		s.coilAOn = false
		emit(Event{Kind: EventCoilAOff, At: in.Now.Sub(s.coilATrigger)})
	}
	if bWasOn && s.coilBOn && in.Now.Sub(s.coilBTrigger) > s.cfg.PulseWidth {
		s.coilBOn = false
		emit(Event{Kind: EventCoilBOff, At: in.Now.Sub(s.coilATrigger)})
	}

	return Outputs{
		CoilA:  s.coilAOn,
		CoilB:  s.coilBOn,
		Color:  s.color(),
		Events: events,
	}
}

func (s *Sequencer) color() Color {
	switch {
	case s.coilAOn || s.coilBOn:
		return ColorRed
	case s.state == Ready:
		return ColorGreen
	default:
		return ColorBlue
	}
}

// speedMMPerSec converts a rail segment and transit time to mm/s. A
// transit shorter than the clock resolution is clamped to one
// millisecond rather than dividing by zero.
func speedMMPerSec(distanceMM int, elapsed time.Duration) float64 {
	if elapsed < time.Millisecond {
		elapsed = time.Millisecond
	}
	return float64(distanceMM) * 1000 / (float64(elapsed) / float64(time.Millisecond))
}
