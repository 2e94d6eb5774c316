package main

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/coilworks/sledctl/gpio"
	"github.com/coilworks/sledctl/sequencer"
)

// controller is the tick driver: it polls the pins, advances the
// sequencer once per tick, and reflects the outputs back to the coils
// and the indicator. All sequencer state is owned by its single run
// goroutine; other workers only see the event stream and the published
// state value.
type controller struct {
	cfg    Config
	bank   gpio.Bank
	deb    *gpio.Debouncer
	seq    *sequencer.Sequencer
	events chan<- sequencer.Event

	state atomic.Int32 // last sequencer.State, for the console
}

func newController(cfg Config, bank gpio.Bank, events chan<- sequencer.Event) *controller {
	deb := gpio.NewDebouncer(bank)
	deb.SetWindow(cfg.DebounceSamples, cfg.DebounceSpacing)
	return &controller{
		cfg:    cfg,
		bank:   bank,
		deb:    deb,
		seq:    sequencer.New(cfg.Sequencer),
		events: events,
	}
}

// State reports the phase as of the last completed tick.
func (c *controller) State() sequencer.State {
	return sequencer.State(c.state.Load())
}

func (c *controller) run(ctx context.Context) {
	log.Printf("Control loop started (tick %v, backend %s)\n", c.cfg.TickInterval, c.cfg.Backend)

	// Outputs-off before the first tick.
	c.driveOutputs(sequencer.Outputs{Color: sequencer.ColorOff})

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.tick(time.Now())
		case <-ctx.Done():
			// Leave the rail safe on the way out.
			c.driveOutputs(sequencer.Outputs{Color: sequencer.ColorOff})
			log.Println("Control loop stopped")
			return
		}
	}
}

func (c *controller) tick(now time.Time) {
	pins := c.cfg.Pins

	raw, err := c.bank.ReadAnalog(pins.HoldoffPot)
	if err != nil {
		log.Printf("Holdoff pot read failed, skipping tick: %v\n", err)
		return
	}

	hall1, err := c.bank.Read(pins.Hall1)
	if err != nil {
		log.Printf("Hall 1 read failed, skipping tick: %v\n", err)
		return
	}
	hall2, err := c.bank.Read(pins.Hall2)
	if err != nil {
		log.Printf("Hall 2 read failed, skipping tick: %v\n", err)
		return
	}

	// The switch is only debounced in states that consult it. The
	// settle window blocks this goroutine, so sampling it mid-flight
	// would stall fail-safe and cutoff checks.
	pressed := false
	if c.seq.State().UsesSwitch() {
		level, err := c.deb.Read(pins.LaunchSwitch)
		if err != nil {
			log.Printf("Launch switch read failed, skipping tick: %v\n", err)
			return
		}
		pressed = !level // active-low
		now = time.Now() // the settle window consumed real time
	}

	out := c.seq.Step(sequencer.Inputs{
		Now:           now,
		SwitchPressed: pressed,
		Hall1:         !hall1, // active-low: low level means tripped
		Hall2:         !hall2,
		Holdoff:       sequencer.HoldoffDelay(raw),
	})

	c.driveOutputs(out)
	c.state.Store(int32(c.seq.State()))

	for _, ev := range out.Events {
		log.Println(ev)
		select {
		case c.events <- ev:
		default:
			log.Println("Warning: event channel full, dropping event")
		}
	}
}

func (c *controller) driveOutputs(out sequencer.Outputs) {
	pins := c.cfg.Pins
	if err := c.bank.Write(pins.CoilA, out.CoilA); err != nil {
		log.Printf("Coil A write failed: %v\n", err)
	}
	if err := c.bank.Write(pins.CoilB, out.CoilB); err != nil {
		log.Printf("Coil B write failed: %v\n", err)
	}
	writeIndicator(c.bank, pins, out.Color)
}
