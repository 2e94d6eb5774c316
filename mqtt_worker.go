package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/coilworks/sledctl/sequencer"
)

// eventPayload is the JSON shape published for every launch event.
type eventPayload struct {
	Kind      string  `json:"kind"`
	AtMS      int64   `json:"at_ms"`
	HoldoffMS int64   `json:"holdoff_ms,omitempty"`
	Speed1    float64 `json:"speed1_mm_s,omitempty"`
	Speed2    float64 `json:"speed2_mm_s,omitempty"`
	Line      string  `json:"line"`
}

// mqttWorker publishes launch events to sledctl/events/<kind>. Telemetry
// is diagnostic only: a broker outage drops events while paho reconnects
// in the background, and the control loop never notices.
func mqttWorker(ctx context.Context, cfg Config, events <-chan sequencer.Event) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:1883", cfg.MQTTBroker))
	opts.SetClientID("sledctl")
	opts.SetUsername(cfg.MQTTUsername)
	opts.SetPassword(cfg.MQTTPassword)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v\n", err)
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Printf("Connected to MQTT broker at %s\n", cfg.MQTTBroker)
	})

	client := mqtt.NewClient(opts)
	log.Printf("Connecting to MQTT broker at %s...\n", cfg.MQTTBroker)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("Failed to connect to MQTT broker: %v\n", token.Error())
		return
	}
	defer func() {
		if client.IsConnected() {
			client.Disconnect(250)
			log.Println("Disconnected from MQTT broker")
		}
	}()

	for {
		select {
		case ev := <-events:
			payload, err := json.Marshal(eventPayload{
				Kind:      ev.Kind.String(),
				AtMS:      ev.At.Milliseconds(),
				HoldoffMS: ev.Holdoff.Milliseconds(),
				Speed1:    ev.Speed1,
				Speed2:    ev.Speed2,
				Line:      ev.String(),
			})
			if err != nil {
				log.Printf("Failed to marshal event payload: %v\n", err)
				continue
			}
			topic := "sledctl/events/" + ev.Kind.String()
			if token := client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
				log.Printf("Failed to publish to %s: %v\n", topic, token.Error())
			}

		case <-ctx.Done():
			return
		}
	}
}
