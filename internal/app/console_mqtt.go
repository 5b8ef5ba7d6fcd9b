// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/pressure_pads/internal/config"
	"github.com/relabs-tech/pressure_pads/internal/render"
)

func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not set")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	for _, topic := range []string{cfg.TopicPads, cfg.TopicBindings, cfg.TopicRate} {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var ev Event
			if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
				log.Printf("console: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			if line := formatEvent(ev); line != "" {
				fmt.Println(line)
			}
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", topic)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

// formatEvent renders one console line, or "" for events not shown.
func formatEvent(ev Event) string {
	switch ev.Type {
	case EventFrame:
		if ev.Frame == nil {
			return ""
		}
		return "[PADS] " + formatFrame(*ev.Frame, ev.Selected)
	case EventBinding:
		if ev.Binding == nil {
			return ""
		}
		return fmt.Sprintf("[BIND] pad=%d channel=%d id=%s", ev.Binding.Pad, ev.Binding.Channel, ev.Binding.ID)
	case EventRate:
		if ev.Rate == nil {
			return ""
		}
		return fmt.Sprintf("[RATE] %d Hz", *ev.Rate)
	case EventNotice, EventError:
		return fmt.Sprintf("[%s] %s", strings.ToUpper(ev.Type), ev.Message)
	}
	return ""
}

func formatFrame(f render.Frame, selected *int) string {
	var b strings.Builder
	for i, pad := range f {
		if i > 0 {
			b.WriteString("  ")
		}
		mark := " "
		if selected != nil && *selected == pad.Pad {
			mark = "*"
		}
		fmt.Fprintf(&b, "%sP%d(ch%d)=%7s", mark, pad.Pad+1, pad.Channel, pad.Text)
	}
	return b.String()
}
