package main

import (
	"context"
	"log"

	"github.com/coilworks/sledctl/sequencer"
)

// broadcastWorker fans the control loop's event stream out to the
// telemetry and recording workers. Sends never block: a slow consumer
// drops events rather than back-pressuring the control loop.
func broadcastWorker(ctx context.Context, inputChan <-chan sequencer.Event, outputChans []chan<- sequencer.Event) {
	for {
		select {
		case ev := <-inputChan:
			for i, ch := range outputChans {
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				default:
					log.Printf("Warning: downstream worker %d channel full, dropping event\n", i)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
