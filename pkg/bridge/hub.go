// pkg/bridge/hub.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package bridge

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/securingskies/agcs/pkg/ingest"
	"github.com/securingskies/agcs/pkg/log"
)

const (
	// sessionBuffer is the per-viewer outbound queue. A viewer that
	// cannot drain it loses the newest events; the feed never blocks.
	sessionBuffer = 64

	// latestSize bounds the per-tid cache handed to new viewers so
	// they see the current picture without waiting for fresh traffic.
	latestSize = 128

	writeTimeout = 5 * time.Second
)

type session struct {
	id   uuid.UUID
	conn *websocket.Conn
	out  chan Event
}

// Hub fans broker traffic out to connected viewer sessions.
type Hub struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	latest   *lru.Cache[string, Event]
	upgrader websocket.Upgrader
	now      func() time.Time
	lg       *log.Logger
}

func NewHub(lg *log.Logger) *Hub {
	latest, _ := lru.New[string, Event](latestSize)
	return &Hub{
		sessions: make(map[uuid.UUID]*session),
		latest:   latest,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		now:      time.Now,
		lg:       lg,
	}
}

// HandleMessage classifies one broker message and pushes it to every
// viewer. Exported for tests and for sharing an ingest connection.
func (h *Hub) HandleMessage(topic string, payload []byte) {
	ev, ok := Classify(topic, payload, h.now())
	if !ok {
		return
	}

	h.mu.Lock()
	h.latest.Add(ev.TID, ev)
	for id, s := range h.sessions {
		select {
		case s.out <- ev:
		default:
			// Slow viewer; drop the event, keep the session.
			h.lg.Debugf("viewer %s lagging, event dropped", id)
		}
	}
	h.mu.Unlock()
}

// ServeHTTP upgrades a viewer connection, replays the latest known
// position per asset, then streams live events until the viewer
// disconnects. Disconnected viewers are dropped without retry.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.lg.Warnf("viewer upgrade failed: %v", err)
		return
	}

	s := &session{id: uuid.New(), conn: conn, out: make(chan Event, sessionBuffer)}

	h.mu.Lock()
	h.sessions[s.id] = s
	for _, tid := range h.latest.Keys() {
		if ev, ok := h.latest.Get(tid); ok {
			select {
			case s.out <- ev:
			default:
			}
		}
	}
	h.mu.Unlock()

	h.lg.Infof("viewer %s connected from %s", s.id, r.RemoteAddr)
	go h.writeLoop(s)

	// Viewers never send data; the read loop only notices disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(s)
				return
			}
		}
	}()
}

func (h *Hub) writeLoop(s *session) {
	for ev := range s.out {
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteJSON(ev); err != nil {
			h.drop(s)
			return
		}
	}
}

func (h *Hub) drop(s *session) {
	h.mu.Lock()
	if _, ok := h.sessions[s.id]; ok {
		delete(h.sessions, s.id)
		close(s.out)
		h.lg.Infof("viewer %s disconnected", s.id)
	}
	h.mu.Unlock()
	s.conn.Close()
}

// Sessions reports the number of connected viewers.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close drops every viewer session. Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		h.drop(s)
	}
}

// Run maintains the bridge's own broker subscription and the viewer
// HTTP endpoint until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, cfg ingest.BrokerConfig, addr string) error {
	opts := cfg.ClientOptions("agcs-bridge")
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		h.lg.Infof("bridge uplink established: %s:%d", cfg.Host, cfg.Port)
		for _, topic := range ingest.Subscriptions {
			if token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
				h.HandleMessage(msg.Topic(), msg.Payload())
			}); token.Wait() && token.Error() != nil {
				h.lg.Errorf("%s: bridge subscribe failed: %v", topic, token.Error())
			}
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		h.lg.Warnf("bridge uplink lost: %v", err)
	})

	client, err := ingest.Connect(opts)
	if err != nil {
		return fmt.Errorf("broker %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	defer client.Disconnect(250)

	mux := http.NewServeMux()
	mux.Handle("/feed", h)
	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	h.lg.Infof("viewer feed listening on %s", addr)

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
		h.Close()
		return ctx.Err()
	case err := <-errc:
		return err
	}
}
