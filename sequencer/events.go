package sequencer

import (
	"fmt"
	"time"
)

// EventKind identifies a diagnostic event emitted by Step. Events are
// telemetry only; nothing downstream feeds back into control decisions.
type EventKind uint8

const (
	EventCoilAFired EventKind = iota
	EventCoilBFired
	EventCoilAOff
	EventCoilBOff
	EventHall1Trip
	EventHall2Trip
	EventHoldoff
	EventSpeeds
	EventFailSafe
)

func (k EventKind) String() string {
	switch k {
	case EventCoilAFired:
		return "coil_a_fired"
	case EventCoilBFired:
		return "coil_b_fired"
	case EventCoilAOff:
		return "coil_a_off"
	case EventCoilBOff:
		return "coil_b_off"
	case EventHall1Trip:
		return "hall1_trip"
	case EventHall2Trip:
		return "hall2_trip"
	case EventHoldoff:
		return "holdoff"
	case EventSpeeds:
		return "speeds"
	case EventFailSafe:
		return "fail_safe"
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

// Event is one diagnostic record. At is the offset from the coil-A
// trigger of the current cycle. Holdoff is set for EventHoldoff, the
// speeds for EventSpeeds.
type Event struct {
	Kind    EventKind
	At      time.Duration
	Holdoff time.Duration
	Speed1  float64 // mm/s at the first sensor
	Speed2  float64 // mm/s between the sensors
}

// String renders the event as the human-readable log line the serial
// console of the original rig printed.
func (e Event) String() string {
	switch e.Kind {
	case EventCoilAFired:
		return "Coil A fired: 0 ms"
	case EventCoilBFired:
		return fmt.Sprintf("Coil B fired: %d ms", e.At.Milliseconds())
	case EventCoilAOff:
		return "Turn off coil A"
	case EventCoilBOff:
		return "Turn off coil B"
	case EventHall1Trip:
		return fmt.Sprintf("Hall 1 at %d ms", e.At.Milliseconds())
	case EventHall2Trip:
		return fmt.Sprintf("Hall 2 at %d ms", e.At.Milliseconds())
	case EventHoldoff:
		return fmt.Sprintf("Holdoff delay %d ms", e.Holdoff.Milliseconds())
	case EventSpeeds:
		return fmt.Sprintf("Hall 1 speed: %.0f mm/s, Hall 2 speed: %.0f mm/s", e.Speed1, e.Speed2)
	case EventFailSafe:
		return "Launch taking too long. Shutting down!"
	}
	return e.Kind.String()
}
