package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/coilworks/sledctl/gpio"
	"github.com/coilworks/sledctl/sequencer"
)

// PinMap assigns the launcher's fixed pin topology. Defaults follow the
// reference board layout.
type PinMap struct {
	LaunchSwitch gpio.Pin // active-low, pulled up
	Hall1        gpio.Pin // active-low, pulled up
	Hall2        gpio.Pin // active-low, pulled up
	CoilA        gpio.Pin // active-high drive
	CoilB        gpio.Pin // active-high drive
	LEDRed       gpio.Pin // active-low
	LEDGreen     gpio.Pin // active-low
	LEDBlue      gpio.Pin // active-low
	HoldoffPot   gpio.Pin // analog, 0..1023
}

// Config is everything sledctl reads at startup. Values come from the
// environment (optionally via a .env file); every field has a default
// matching the reference rig.
type Config struct {
	Sequencer sequencer.Config
	Pins      PinMap

	TickInterval    time.Duration
	DebounceSamples int
	DebounceSpacing time.Duration

	Backend    string // "sim" or "serial"
	SerialPort string
	SerialBaud int

	MQTTBroker   string // empty disables telemetry publishing
	MQTTUsername string
	MQTTPassword string

	HistoryPath string // empty disables the launch history recorder
}

func loadConfig() (Config, error) {
	cfg := Config{
		Sequencer: sequencer.Config{
			PulseWidth:     envDuration("SLEDCTL_PULSE_WIDTH", 30*time.Millisecond),
			RearmDelay:     envDuration("SLEDCTL_REARM_DELAY", 5000*time.Millisecond),
			FailSafeLimit:  envDuration("SLEDCTL_FAIL_SAFE_LIMIT", 1000*time.Millisecond),
			StartToHall1MM: envInt("SLEDCTL_START_TO_HALL1_MM", 45),
			Hall1ToHall2MM: envInt("SLEDCTL_HALL1_TO_HALL2_MM", 100),
		},
		Pins: PinMap{
			LaunchSwitch: gpio.Pin(envInt("SLEDCTL_PIN_SWITCH", 10)),
			Hall1:        gpio.Pin(envInt("SLEDCTL_PIN_HALL1", 2)),
			Hall2:        gpio.Pin(envInt("SLEDCTL_PIN_HALL2", 5)),
			CoilA:        gpio.Pin(envInt("SLEDCTL_PIN_COIL_A", 3)),
			CoilB:        gpio.Pin(envInt("SLEDCTL_PIN_COIL_B", 4)),
			LEDRed:       gpio.Pin(envInt("SLEDCTL_PIN_LED_RED", 6)),
			LEDGreen:     gpio.Pin(envInt("SLEDCTL_PIN_LED_GREEN", 7)),
			LEDBlue:      gpio.Pin(envInt("SLEDCTL_PIN_LED_BLUE", 8)),
			HoldoffPot:   gpio.Pin(envInt("SLEDCTL_PIN_HOLDOFF_POT", 2)),
		},
		TickInterval:    envDuration("SLEDCTL_TICK_INTERVAL", time.Millisecond),
		DebounceSamples: envInt("SLEDCTL_DEBOUNCE_SAMPLES", 20),
		DebounceSpacing: envDuration("SLEDCTL_DEBOUNCE_SPACING", time.Millisecond),
		Backend:         envString("SLEDCTL_BACKEND", "sim"),
		SerialPort:      envString("SLEDCTL_SERIAL_PORT", ""),
		SerialBaud:      envInt("SLEDCTL_SERIAL_BAUD", 115200),
		MQTTBroker:      envString("SLEDCTL_MQTT_BROKER", ""),
		MQTTUsername:    os.Getenv("MQTT_USERNAME"),
		MQTTPassword:    os.Getenv("MQTT_PASSWORD"),
		HistoryPath:     envString("SLEDCTL_HISTORY_DB", ""),
	}

	switch cfg.Backend {
	case "sim":
	case "serial":
		if cfg.SerialPort == "" {
			return Config{}, fmt.Errorf("SLEDCTL_BACKEND=serial requires SLEDCTL_SERIAL_PORT")
		}
	default:
		return Config{}, fmt.Errorf("unknown SLEDCTL_BACKEND %q (want sim or serial)", cfg.Backend)
	}
	if cfg.TickInterval <= 0 {
		return Config{}, fmt.Errorf("SLEDCTL_TICK_INTERVAL must be positive")
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envDuration accepts Go duration syntax ("30ms") or a bare number of
// milliseconds, which is how the reference firmware's constants read.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
