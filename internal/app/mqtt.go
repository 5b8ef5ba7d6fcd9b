// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/pressure_pads/internal/config"
)

// publishTimeout bounds the wait for a broker ack.
const publishTimeout = 2 * time.Second

// Publisher is the part of mqtt.Client the sink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Topics names the MQTT topics per event type.
type Topics struct {
	Pads     string
	Bindings string
	Rate     string
}

func TopicsFromConfig(cfg *config.Config) Topics {
	return Topics{Pads: cfg.TopicPads, Bindings: cfg.TopicBindings, Rate: cfg.TopicRate}
}

// MQTTSink publishes frames, bindings and rate updates. Frames and rate are
// retained so late subscribers get the current value; bindings are QoS 1.
type MQTTSink struct {
	client Publisher
	topics Topics
	queue  chan Event
}

func NewMQTTSink(client Publisher, topics Topics) *MQTTSink {
	return &MQTTSink{client: client, topics: topics, queue: make(chan Event, sendQueue)}
}

// Send queues ev for publishing. Events are dropped while the queue is full.
func (p *MQTTSink) Send(ev Event) {
	switch ev.Type {
	case EventFrame, EventBinding, EventRate:
	default:
		return
	}
	select {
	case p.queue <- ev:
	default:
	}
}

// Run publishes queued events until ctx is cancelled.
func (p *MQTTSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.queue:
			p.publish(ev)
		}
	}
}

func (p *MQTTSink) publish(ev Event) {
	var (
		topic    string
		qos      byte
		retained bool
	)
	switch ev.Type {
	case EventFrame:
		topic, retained = p.topics.Pads, true
	case EventBinding:
		topic, qos = p.topics.Bindings, 1
	case EventRate:
		topic, retained = p.topics.Rate, true
	default:
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("mqtt: marshal %s: %v", ev.Type, err)
		return
	}
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Printf("mqtt: publish to %s timed out", topic)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("mqtt: publish to %s failed: %v", topic, err)
	}
}
