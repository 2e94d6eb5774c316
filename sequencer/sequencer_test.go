package sequencer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rig drives a sequencer through scripted ticks against a fixed base time.
type rig struct {
	seq  *Sequencer
	base time.Time
}

func newRig() *rig {
	return &rig{
		seq:  New(Config{}),
		base: time.Date(2025, 4, 4, 12, 0, 0, 0, time.UTC),
	}
}

// stepAt runs one tick at base+offset with the given input mutator.
func (r *rig) stepAt(offset time.Duration, mod func(*Inputs)) Outputs {
	in := Inputs{Now: r.base.Add(offset)}
	if mod != nil {
		mod(&in)
	}
	return r.seq.Step(in)
}

// arm takes a fresh rig from Idle to Ready (switch released at boot).
func (r *rig) arm(t *testing.T) {
	t.Helper()
	r.stepAt(0, nil)
	require.Equal(t, Ready, r.seq.State())
}

// fire arms and pulls the trigger at base time.
func (r *rig) fire(t *testing.T) Outputs {
	t.Helper()
	r.arm(t)
	out := r.stepAt(0, func(in *Inputs) { in.SwitchPressed = true })
	require.Equal(t, CoilAActive, r.seq.State())
	require.True(t, out.CoilA)
	return out
}

func findEvent(events []Event, kind EventKind) (Event, bool) {
	for _, ev := range events {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return Event{}, false
}

func TestArming(t *testing.T) {
	t.Run("ready at boot once switch is released", func(t *testing.T) {
		r := newRig()
		out := r.stepAt(0, nil)
		assert.Equal(t, Ready, r.seq.State())
		assert.Equal(t, ColorGreen, out.Color)
	})

	t.Run("held switch blocks arming", func(t *testing.T) {
		r := newRig()
		out := r.stepAt(0, func(in *Inputs) { in.SwitchPressed = true })
		assert.Equal(t, Idle, r.seq.State())
		assert.False(t, out.CoilA)
		assert.False(t, out.CoilB)
	})

	t.Run("obstructed sensor blocks the trigger", func(t *testing.T) {
		r := newRig()
		r.arm(t)
		out := r.stepAt(0, func(in *Inputs) {
			in.SwitchPressed = true
			in.Hall1 = true
		})
		assert.Equal(t, Ready, r.seq.State())
		assert.False(t, out.CoilA)
	})
}

func TestNormalLaunch(t *testing.T) {
	r := newRig()

	out := r.fire(t)
	_, ok := findEvent(out.Events, EventCoilAFired)
	assert.True(t, ok)
	assert.Equal(t, ColorRed, out.Color)

	// Pulse width expires before the sled reaches the first sensor.
	out = r.stepAt(31*time.Millisecond, nil)
	assert.False(t, out.CoilA)
	_, ok = findEvent(out.Events, EventCoilAOff)
	assert.True(t, ok)
	assert.Equal(t, CoilAActive, r.seq.State(), "stage A continues after the pulse ends")
	assert.Equal(t, ColorBlue, out.Color, "coils cold mid-flight shows cooldown color")

	// Sled reaches hall 1 at t=50: trip recorded, handoff scheduled.
	out = r.stepAt(50*time.Millisecond, func(in *Inputs) {
		in.Hall1 = true
		in.Holdoff = 10 * time.Millisecond
	})
	assert.Equal(t, CoilBActive, r.seq.State())
	assert.False(t, out.CoilA)
	assert.False(t, out.CoilB, "coil B waits out the holdoff")
	trip, ok := findEvent(out.Events, EventHall1Trip)
	require.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, trip.At)
	hold, ok := findEvent(out.Events, EventHoldoff)
	require.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, hold.Holdoff)

	// Holdoff not yet elapsed.
	out = r.stepAt(55*time.Millisecond, nil)
	assert.False(t, out.CoilB)

	// Holdoff elapsed: coil B fires.
	out = r.stepAt(60*time.Millisecond, nil)
	assert.True(t, out.CoilB)
	fired, ok := findEvent(out.Events, EventCoilBFired)
	require.True(t, ok)
	assert.Equal(t, 60*time.Millisecond, fired.At)

	// Coil B pulse cutoff.
	out = r.stepAt(91*time.Millisecond, nil)
	assert.False(t, out.CoilB)
	_, ok = findEvent(out.Events, EventCoilBOff)
	assert.True(t, ok)

	// Sled reaches hall 2 at t=110: speeds computed, cycle closes.
	out = r.stepAt(110*time.Millisecond, func(in *Inputs) { in.Hall2 = true })
	assert.Equal(t, Cooldown, r.seq.State())
	speeds, ok := findEvent(out.Events, EventSpeeds)
	require.True(t, ok)
	assert.InDelta(t, 900, speeds.Speed1, 0.01)             // 45mm / 50ms
	assert.InDelta(t, 100000.0/60.0, speeds.Speed2, 0.01)   // 100mm / 60ms
	assert.Equal(t, ColorBlue, out.Color)

	// Re-arm: not before the cooldown, not with the trigger still held.
	r.stepAt(4999*time.Millisecond, nil)
	assert.Equal(t, Cooldown, r.seq.State())
	r.stepAt(5001*time.Millisecond, func(in *Inputs) { in.SwitchPressed = true })
	assert.Equal(t, Cooldown, r.seq.State())
	out = r.stepAt(5002*time.Millisecond, nil)
	assert.Equal(t, Ready, r.seq.State())
	assert.Equal(t, ColorGreen, out.Color)
}

func TestFailSafe(t *testing.T) {
	r := newRig()
	r.fire(t)

	// Sensors never trip. Just inside the limit nothing happens.
	out := r.stepAt(1000*time.Millisecond, nil)
	_, ok := findEvent(out.Events, EventFailSafe)
	assert.False(t, ok)

	out = r.stepAt(1001*time.Millisecond, nil)
	_, ok = findEvent(out.Events, EventFailSafe)
	assert.True(t, ok)
	assert.False(t, out.CoilA)
	assert.False(t, out.CoilB)
	assert.Equal(t, Cooldown, r.seq.State())

	// Re-arm still proceeds off the original trigger stamp.
	r.stepAt(5001*time.Millisecond, nil)
	assert.Equal(t, Ready, r.seq.State())
}

func TestFailSafeCoversPendingCoilB(t *testing.T) {
	r := newRig()
	r.fire(t)

	// Handoff with a long holdoff, then the sled stalls.
	r.stepAt(900*time.Millisecond, func(in *Inputs) {
		in.Hall1 = true
		in.Holdoff = 102 * time.Millisecond
	})
	require.Equal(t, CoilBActive, r.seq.State())

	// Fail-safe hits before the deferred trigger comes due; coil B
	// must never fire afterwards.
	out := r.stepAt(1001*time.Millisecond, nil)
	_, ok := findEvent(out.Events, EventFailSafe)
	assert.True(t, ok)

	out = r.stepAt(1100*time.Millisecond, nil)
	assert.False(t, out.CoilB)
	_, ok = findEvent(out.Events, EventCoilBFired)
	assert.False(t, ok)
}

func TestPulseWidthBound(t *testing.T) {
	r := newRig()
	r.fire(t)

	// Not a moment before: 30ms elapsed is not yet past the width.
	out := r.stepAt(30*time.Millisecond, nil)
	assert.True(t, out.CoilA)

	out = r.stepAt(31*time.Millisecond, nil)
	assert.False(t, out.CoilA)
}

func TestSingleTripRecording(t *testing.T) {
	r := newRig()
	r.fire(t)

	trips := 0
	for _, off := range []time.Duration{50, 51, 52, 53} {
		out := r.stepAt(off*time.Millisecond, func(in *Inputs) { in.Hall1 = true })
		if _, ok := findEvent(out.Events, EventHall1Trip); ok {
			trips++
		}
	}
	assert.Equal(t, 1, trips)
}

func TestMutualExclusion(t *testing.T) {
	r := newRig()
	r.fire(t)

	// Sweep the whole cycle tick by tick with a zero holdoff, the
	// tightest handoff the hardware allows.
	for ms := 1; ms <= 6000; ms++ {
		out := r.stepAt(time.Duration(ms)*time.Millisecond, func(in *Inputs) {
			in.Hall1 = ms >= 20 && ms <= 25
			in.Hall2 = ms >= 80 && ms <= 85
		})
		require.False(t, out.CoilA && out.CoilB, "both coils driven at t=%dms", ms)
	}
}

func TestZeroHoldoffFiresSameTick(t *testing.T) {
	r := newRig()
	r.fire(t)

	out := r.stepAt(20*time.Millisecond, func(in *Inputs) { in.Hall1 = true })
	assert.False(t, out.CoilA)
	assert.True(t, out.CoilB, "zero holdoff fires coil B in the handoff tick")
	fired, ok := findEvent(out.Events, EventCoilBFired)
	require.True(t, ok)
	assert.Equal(t, 20*time.Millisecond, fired.At)
}

func TestBothSensorsSameTick(t *testing.T) {
	r := newRig()
	r.fire(t)

	// A zero-length transit between the sensors must not divide by zero.
	out := r.stepAt(50*time.Millisecond, func(in *Inputs) {
		in.Hall1 = true
		in.Hall2 = true
	})
	speeds, ok := findEvent(out.Events, EventSpeeds)
	require.True(t, ok)
	assert.InDelta(t, 900, speeds.Speed1, 0.01)
	assert.InDelta(t, 100000, speeds.Speed2, 0.01, "transit clamps to 1ms")
	assert.Equal(t, Cooldown, r.seq.State())
}

func TestSpeedMath(t *testing.T) {
	assert.InDelta(t, 900, speedMMPerSec(45, 50*time.Millisecond), 0.001)
	assert.InDelta(t, 2000, speedMMPerSec(100, 50*time.Millisecond), 0.001)
	assert.InDelta(t, 100000, speedMMPerSec(100, 0), 0.001)
}

func TestConfigDefaults(t *testing.T) {
	seq := New(Config{PulseWidth: 5 * time.Millisecond})
	cfg := seq.Config()
	assert.Equal(t, 5*time.Millisecond, cfg.PulseWidth)
	assert.Equal(t, 5000*time.Millisecond, cfg.RearmDelay)
	assert.Equal(t, 1000*time.Millisecond, cfg.FailSafeLimit)
	assert.Equal(t, 45, cfg.StartToHall1MM)
	assert.Equal(t, 100, cfg.Hall1ToHall2MM)
}

func TestUsesSwitch(t *testing.T) {
	assert.True(t, Idle.UsesSwitch())
	assert.True(t, Ready.UsesSwitch())
	assert.True(t, Cooldown.UsesSwitch())
	assert.False(t, CoilAActive.UsesSwitch())
	assert.False(t, CoilBActive.UsesSwitch())
}
