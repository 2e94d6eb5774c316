package gpio

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// SerialBank drives pins on an I/O board attached over a serial port.
// The board speaks a line protocol: "R <pin>" answers "0" or "1",
// "W <pin> <0|1>" answers "ok", "A <pin>" answers the raw 10-bit sample.
// One request is in flight at a time.
type SerialBank struct {
	mu   sync.Mutex
	port serial.Port
	r    *bufio.Reader
}

// OpenSerial opens the bridge port at 8N1.
func OpenSerial(portName string, baudRate int) (*SerialBank, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}
	return &SerialBank{port: port, r: bufio.NewReader(port)}, nil
}

// Close closes the serial port.
func (b *SerialBank) Close() error {
	return b.port.Close()
}

func (b *SerialBank) roundTrip(command string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.port.Write([]byte(command + "\n")); err != nil {
		return "", fmt.Errorf("write %q: %w", command, err)
	}
	line, err := b.r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read reply to %q: %w", command, err)
	}
	return strings.TrimSpace(line), nil
}

func (b *SerialBank) Read(pin Pin) (bool, error) {
	reply, err := b.roundTrip(fmt.Sprintf("R %d", pin))
	if err != nil {
		return false, err
	}
	switch reply {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, fmt.Errorf("bridge: unexpected reply %q to read of pin %d", reply, pin)
}

func (b *SerialBank) Write(pin Pin, level bool) error {
	v := 0
	if level {
		v = 1
	}
	reply, err := b.roundTrip(fmt.Sprintf("W %d %d", pin, v))
	if err != nil {
		return err
	}
	if reply != "ok" {
		return fmt.Errorf("bridge: unexpected reply %q to write of pin %d", reply, pin)
	}
	return nil
}

func (b *SerialBank) ReadAnalog(pin Pin) (uint16, error) {
	reply, err := b.roundTrip(fmt.Sprintf("A %d", pin))
	if err != nil {
		return 0, err
	}
	raw, err := strconv.ParseUint(reply, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("bridge: bad analog reply %q for pin %d", reply, pin)
	}
	return uint16(raw), nil
}
