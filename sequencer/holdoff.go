package sequencer

import "time"

// HoldoffScale is the full-scale holdoff delay: a pot reading of 1023
// maps to 102 ms, matching the 10-bit ADC of the reference hardware.
const (
	holdoffMaxRaw = 1023
	holdoffMaxMS  = 102
)

// HoldoffDelay linearly maps a raw pot sample (0..1023) to the pause
// between coil-A shutoff and coil-B trigger. Out-of-range samples clamp
// to full scale. Integer milliseconds, like the reference's map().
func HoldoffDelay(raw uint16) time.Duration {
	if raw > holdoffMaxRaw {
		raw = holdoffMaxRaw
	}
	return time.Duration(int(raw)*holdoffMaxMS/holdoffMaxRaw) * time.Millisecond
}
