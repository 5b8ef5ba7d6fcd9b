// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/pressure_pads/internal/config"
	"github.com/relabs-tech/pressure_pads/internal/render"
)

const (
	displayW = 128
	displayH = 64
	lineH    = 13
	barX     = 84
)

// DisplayData holds the latest values received over MQTT.
type DisplayData struct {
	mu    sync.RWMutex
	state displayState
}

type displayState struct {
	frame     render.Frame
	haveFrame bool
	selected  int
	rate      int
}

func (d *DisplayData) snapshot() displayState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// addrBus sends every transaction to addr. The ssd1306 driver talks to the
// default 0x3C; this lets the panel sit on another address.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

func RunDisplay() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not set")
	}

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(addrBus{Bus: bus, addr: cfg.DisplayI2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	data := &DisplayData{state: displayState{selected: -1}}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)
	defer client.Disconnect(250)

	for _, topic := range []string{cfg.TopicPads, cfg.TopicRate} {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var ev Event
			if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
				log.Printf("display: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			data.apply(ev)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("display: subscribed to %s", topic)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")
	refreshLoop(ctx, ticker.C, func() error {
		return dev.Draw(dev.Bounds(), drawPads(data.snapshot()), image.Point{})
	})

	log.Println("display: shutting down")
	if err := dev.Halt(); err != nil {
		log.Printf("display: halt: %v", err)
	}
	return nil
}

// refreshLoop calls draw on every tick until ctx is done.
func refreshLoop(ctx context.Context, tick <-chan time.Time, draw func() error) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			if err := draw(); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}

func (d *DisplayData) apply(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch ev.Type {
	case EventFrame:
		if ev.Frame != nil {
			d.state.frame = *ev.Frame
			d.state.haveFrame = true
		}
		if ev.Selected != nil {
			d.state.selected = *ev.Selected
		}
	case EventRate:
		if ev.Rate != nil {
			d.state.rate = *ev.Rate
		}
	}
}

// drawPads renders one line per pad with a bar for the pressure and a marker
// on the armed pad, below a header carrying the rate.
func drawPads(s displayState) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayW, displayH))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	drawer.Dot = fixed.P(0, 11)
	drawer.DrawString(fmt.Sprintf("PADS %3d Hz", s.rate))

	if !s.haveFrame {
		drawer.Dot = fixed.P(0, 11+2*lineH)
		drawer.DrawString("Waiting...")
		return img
	}

	for i, pad := range s.frame {
		y := 11 + (i+1)*lineH
		mark := " "
		if pad.Pad == s.selected {
			mark = ">"
		}
		drawer.Dot = fixed.P(0, y)
		drawer.DrawString(fmt.Sprintf("%sP%d %6s", mark, pad.Pad+1, shortText(pad)))

		if w := barWidth(pad); w > 0 {
			for x := barX; x < barX+w; x++ {
				for dy := 3; dy < lineH-2; dy++ {
					img.SetBit(x, y-lineH+dy, image1bit.On)
				}
			}
		}
	}
	return img
}

func shortText(pad render.Pad) string {
	if !pad.Valid {
		return "--"
	}
	return fmt.Sprintf("%.0f", pad.Value)
}

// barWidth maps zero..MinPressure onto the space right of the text.
func barWidth(pad render.Pad) int {
	if !pad.Valid {
		return 0
	}
	frac := (render.ZeroPressure - pad.Value) / (render.ZeroPressure - render.MinPressure)
	frac = math.Max(0, math.Min(1, frac))
	return int(math.Round(frac * float64(displayW-barX)))
}
