// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/pressure_pads/internal/serialsrc"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // UI is served from the same box; allow all origins
	},
}

// sendQueue is the per-client backlog. Frames beyond it are dropped.
const sendQueue = 64

const writeWait = 5 * time.Second

var errMissingPad = errors.New("click requires a pad")

// WS actions
const (
	ActionClick      = "click"
	ActionClearCache = "clear_cache"
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
)

// WSMessage is a control message from the browser.
type WSMessage struct {
	Action string `json:"action"` // click, clear_cache, connect, disconnect
	Pad    *int   `json:"pad,omitempty"`
	Port   string `json:"port,omitempty"`
	Baud   int    `json:"baud,omitempty"`
}

// Hub fans session events out to websocket clients. It is a Sink.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan Event
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

// Send queues ev for every client. Full queues drop the event.
func (h *Hub) Send(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// HandleWS upgrades the request, pushes an initial status and then relays
// events and control messages until the client goes away.
func HandleWS(session *Session, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		c := &wsClient{conn: conn, send: make(chan Event, sendQueue)}
		if snap, err := session.State(r.Context()); err == nil {
			c.send <- snapshotEvent(snap)
		}
		hub.add(c)
		defer hub.remove(c)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go c.writeLoop(ctx)

		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("web: websocket read error: %v", err)
				}
				return
			}
			if err := dispatch(ctx, session, msg); err != nil {
				c.trySend(Event{Type: EventError, Time: time.Now(), Message: err.Error()})
			}
		}
	}
}

func dispatch(ctx context.Context, session *Session, msg WSMessage) error {
	switch msg.Action {
	case ActionClick:
		if msg.Pad == nil {
			return errMissingPad
		}
		return session.Click(ctx, *msg.Pad)
	case ActionClearCache:
		return session.ClearCache(ctx)
	case ActionConnect:
		baud := msg.Baud
		if baud == 0 {
			baud = serialsrc.DefaultBaud
		}
		return session.Connect(ctx, msg.Port, baud)
	case ActionDisconnect:
		return session.Disconnect(ctx)
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
}

func (c *wsClient) trySend(ev Event) {
	select {
	case c.send <- ev:
	default:
	}
}

func (c *wsClient) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.send:
			b, err := json.Marshal(ev)
			if err != nil {
				log.Printf("web: dropping %s event: %v", ev.Type, err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				log.Printf("web: websocket write error: %v", err)
				c.conn.Close()
				return
			}
		}
	}
}

func snapshotEvent(snap Snapshot) Event {
	conn := snap.Connection
	mapping := snap.Mapping
	return Event{
		Type:       EventStatus,
		Time:       time.Now(),
		Frame:      snap.Frame,
		Selected:   ptr(snap.Selected),
		Mapping:    &mapping,
		Rate:       ptr(snap.Rate),
		Connection: &conn,
	}
}
