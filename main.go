package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/coilworks/sledctl/gpio"
	"github.com/coilworks/sledctl/sequencer"
)

// SafeGo launches a goroutine with panic recovery and retry logic.
// On panic, retries with exponential backoff (max 10 retries).
// Retry count resets if the worker ran for 2+ minutes before failing.
// After exhausting retries, cancels context to trigger shutdown.
func SafeGo(
	ctx context.Context,
	cancel context.CancelFunc,
	name string,
	fn func(ctx context.Context),
) {
	const maxRetries = 10
	const maxDelay = 10 * time.Minute
	const resetAfter = 2 * time.Minute

	go func() {
		retries := 0
		delay := time.Second

		for {
			startTime := time.Now()
			var panicValue any

			func() {
				defer func() {
					panicValue = recover()
				}()
				fn(ctx)
			}()

			// Normal return covers both context cancellation and
			// unexpected completion.
			if panicValue == nil {
				return
			}

			if time.Since(startTime) >= resetAfter {
				retries = 0
				delay = time.Second
			}

			retries++
			log.Printf("Panic in %s (attempt %d/%d): %v\n", name, retries, maxRetries, panicValue)

			if retries >= maxRetries {
				log.Printf("%s failed after %d retries, shutting down\n", name, maxRetries)
				cancel()
				return
			}

			log.Printf("%s will retry in %v\n", name, delay)
			select {
			case <-time.After(delay):
				delay = min(delay*2, maxDelay)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func main() {
	log.Println("Starting sledctl...")

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v\n", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Bad configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Pin bank: real hardware behind a serial bridge, or the in-process
	// bank driven by the simulator console.
	var bank gpio.Bank
	var memBank *gpio.MemBank
	switch cfg.Backend {
	case "serial":
		serialBank, err := gpio.OpenSerial(cfg.SerialPort, cfg.SerialBaud)
		if err != nil {
			cancel()
			log.Fatalf("Failed to open serial bridge: %v", err)
		}
		defer serialBank.Close()
		bank = serialBank
		log.Printf("Serial I/O bridge open on %s\n", cfg.SerialPort)
	default:
		memBank = gpio.NewMemBank()
		bank = memBank
	}

	// Launch history store, if configured.
	var history *HistoryDB
	if cfg.HistoryPath != "" {
		history, err = openHistory(cfg.HistoryPath)
		if err != nil {
			cancel()
			log.Fatalf("Failed to open history db: %v", err)
		}
		defer history.Close()
		log.Printf("Launch history db open at %s\n", cfg.HistoryPath)
	}

	// Event plumbing: control loop -> broadcast -> telemetry/recorder.
	eventChan := make(chan sequencer.Event, 64)
	var downstreamChans []chan<- sequencer.Event

	if cfg.MQTTBroker != "" {
		mqttChan := make(chan sequencer.Event, 64)
		downstreamChans = append(downstreamChans, mqttChan)
		SafeGo(ctx, cancel, "mqtt-worker", func(ctx context.Context) {
			mqttWorker(ctx, cfg, mqttChan)
		})
		log.Println("MQTT worker started")
	}

	if history != nil {
		recorderChan := make(chan sequencer.Event, 64)
		downstreamChans = append(downstreamChans, recorderChan)
		SafeGo(ctx, cancel, "recorder-worker", func(ctx context.Context) {
			recorderWorker(ctx, recorderChan, history)
		})
	}

	SafeGo(ctx, cancel, "broadcast-worker", func(ctx context.Context) {
		broadcastWorker(ctx, eventChan, downstreamChans)
	})

	ctrl := newController(cfg, bank, eventChan)
	SafeGo(ctx, cancel, "control-loop", func(ctx context.Context) {
		ctrl.run(ctx)
	})

	if memBank != nil {
		SafeGo(ctx, cancel, "sim-console", func(ctx context.Context) {
			simWorker(ctx, cfg, memBank, ctrl, history)
			cancel() // console exit ends the process
		})
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("\nShutting down...")
	case <-ctx.Done():
		log.Println("\nShutting down...")
	}
	cancel()
}
