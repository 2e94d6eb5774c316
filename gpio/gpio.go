// Package gpio abstracts the launcher's pins so the control loop can run
// against real hardware behind a serial I/O bridge or against an
// in-process bank for tests and the simulator console.
package gpio

import "time"

// Pin identifies a pin on whichever bank is in use.
type Pin uint8

// Bank is the digital + analog pin interface the controller drives.
// Digital levels are raw electrical levels; active-low interpretation is
// the caller's business. Analog reads return a 10-bit sample (0..1023).
type Bank interface {
	Read(pin Pin) (bool, error)
	Write(pin Pin, level bool) error
	ReadAnalog(pin Pin) (uint16, error)
}

// Debouncer returns a pin level only after it has held steady for a full
// settle window. The read blocks the calling goroutine for at least
// samples*interval; the control loop accepts that suspension and only
// debounces in states where timing is not critical.
type Debouncer struct {
	bank     Bank
	samples  int
	interval time.Duration
	sleep    func(time.Duration)
}

// NewDebouncer uses the reference settle window: 20 samples at 1 ms.
func NewDebouncer(bank Bank) *Debouncer {
	return &Debouncer{
		bank:     bank,
		samples:  20,
		interval: time.Millisecond,
		sleep:    time.Sleep,
	}
}

// SetWindow overrides the settle window length.
func (d *Debouncer) SetWindow(samples int, interval time.Duration) {
	if samples > 0 {
		d.samples = samples
	}
	if interval > 0 {
		d.interval = interval
	}
}

// Read samples the pin until it holds one level for the whole settle
// window, restarting the window on every change, then returns that
// stable level. A glitching line extends the call rather than leaking a
// transient value through.
func (d *Debouncer) Read(pin Pin) (bool, error) {
	prev, err := d.bank.Read(pin)
	if err != nil {
		return false, err
	}
	for count := 0; count < d.samples; count++ {
		d.sleep(d.interval)
		level, err := d.bank.Read(pin)
		if err != nil {
			return false, err
		}
		if level != prev {
			count = -1
			prev = level
		}
	}
	return prev, nil
}
