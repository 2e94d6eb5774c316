package gpio

import "sync"

// MemBank is an in-process pin bank. The control loop reads it from one
// goroutine while the simulator console pokes levels from another, so
// access is locked.
type MemBank struct {
	mu      sync.Mutex
	digital map[Pin]bool
	analog  map[Pin]uint16
}

// NewMemBank returns a bank with every digital pin high (the pulled-up
// idle level of the launcher's inputs) and every analog pin at zero.
func NewMemBank() *MemBank {
	return &MemBank{
		digital: make(map[Pin]bool),
		analog:  make(map[Pin]uint16),
	}
}

func (b *MemBank) Read(pin Pin) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	level, ok := b.digital[pin]
	if !ok {
		return true, nil // pull-up
	}
	return level, nil
}

func (b *MemBank) Write(pin Pin, level bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.digital[pin] = level
	return nil
}

func (b *MemBank) ReadAnalog(pin Pin) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.analog[pin], nil
}

// Set forces a digital level, standing in for the physical switch or a
// passing sled.
func (b *MemBank) Set(pin Pin, level bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.digital[pin] = level
}

// SetAnalog forces a raw analog sample, standing in for the holdoff pot.
func (b *MemBank) SetAnalog(pin Pin, raw uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.analog[pin] = raw
}
