package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/coilworks/sledctl/gpio"
)

// readlineWriter wraps log output to work with the readline prompt.
type readlineWriter struct {
	rl *readline.Instance
}

func (w *readlineWriter) Write(p []byte) (n int, err error) {
	if w.rl != nil {
		w.rl.Clean()
	}
	n, err = os.Stderr.Write(p)
	if w.rl != nil {
		w.rl.Refresh()
	}
	return n, err
}

// simWorker is an interactive console bound to the in-memory pin bank.
// It stands in for the physical rig: the operator presses the trigger,
// walks the sled past the sensors, and turns the holdoff pot by typing
// commands, while the control loop runs unmodified against the bank.
func simWorker(ctx context.Context, cfg Config, bank *gpio.MemBank, ctrl *controller, db *HistoryDB) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "sled> ",
		HistoryFile: "/tmp/sledctl_history",
	})
	if err != nil {
		log.Printf("Failed to start simulator console: %v\n", err)
		return
	}
	defer rl.Close()

	rlw := &readlineWriter{rl: rl}
	log.SetOutput(rlw)
	defer log.SetOutput(os.Stderr)

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	pins := cfg.Pins
	fmt.Println("Simulator console. Type 'help' for commands.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err == io.EOF || ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("Console read error: %v\n", err)
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "help":
			fmt.Println("  press | release      hold / release the launch switch")
			fmt.Println("  hall1 [0|1]          sled at / past the first sensor (1 = detected)")
			fmt.Println("  hall2 [0|1]          sled at / past the second sensor")
			fmt.Println("  pot <0..1023>        set the holdoff pot")
			fmt.Println("  state                show the sequencer phase")
			fmt.Println("  recent [n]           show recent launches from the history db")
			fmt.Println("  exit")

		case "press":
			bank.Set(pins.LaunchSwitch, false) // active-low
		case "release":
			bank.Set(pins.LaunchSwitch, true)

		case "hall1", "hall2":
			pin := pins.Hall1
			if fields[0] == "hall2" {
				pin = pins.Hall2
			}
			detected := true
			if len(fields) > 1 {
				detected = fields[1] != "0"
			}
			bank.Set(pin, !detected) // active-low

		case "pot":
			if len(fields) < 2 {
				fmt.Println("usage: pot <0..1023>")
				continue
			}
			raw, err := strconv.ParseUint(fields[1], 10, 16)
			if err != nil || raw > 1023 {
				fmt.Println("pot value must be 0..1023")
				continue
			}
			bank.SetAnalog(pins.HoldoffPot, uint16(raw))

		case "state":
			fmt.Printf("sequencer: %s\n", ctrl.State())

		case "recent":
			if db == nil {
				fmt.Println("history db not configured (set SLEDCTL_HISTORY_DB)")
				continue
			}
			n := 10
			if len(fields) > 1 {
				if v, err := strconv.Atoi(fields[1]); err == nil && v > 0 {
					n = v
				}
			}
			recs, err := db.RecentLaunches(n)
			if err != nil {
				fmt.Printf("history query failed: %v\n", err)
				continue
			}
			for _, rec := range recs {
				fmt.Printf("%s  %-9s hall1=%dms hall2=%dms holdoff=%dms speeds=%.0f/%.0f mm/s\n",
					rec.StartedAt.Format("15:04:05"), rec.Outcome,
					rec.Hall1MS, rec.Hall2MS, rec.HoldoffMS, rec.Speed1, rec.Speed2)
			}

		case "exit", "quit":
			return

		default:
			fmt.Printf("unknown command %q, try 'help'\n", fields[0])
		}
	}
}
