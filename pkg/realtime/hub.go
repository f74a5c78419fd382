package realtime

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/astromechza/collab-canvas/pkg/canvas"
	"github.com/astromechza/collab-canvas/pkg/wire"
)

// DeliveryObserver is told how each fan-out went.
type DeliveryObserver interface {
	Delivered(kind string, recipients int)
	SendFailed(kind string)
}

type nopDeliveryObserver struct{}

func (nopDeliveryObserver) Delivered(string, int) {}
func (nopDeliveryObserver) SendFailed(string)     {}

// Hub maps connection ids to live connections.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	logger   *slog.Logger
	observer DeliveryObserver
}

func NewHub(logger *slog.Logger, observer DeliveryObserver) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopDeliveryObserver{}
	}
	return &Hub{
		conns:    make(map[string]*Connection),
		logger:   logger,
		observer: observer,
	}
}

func (h *Hub) Attach(c *Connection) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
}

func (h *Hub) Detach(c *Connection) {
	h.mu.Lock()
	if current, ok := h.conns[c.ID]; ok && current == c {
		delete(h.conns, c.ID)
	}
	h.mu.Unlock()
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Deliver encodes each event once and queues it on every recipient that is still connected.
func (h *Hub) Deliver(deliveries []canvas.Delivery) {
	for _, d := range deliveries {
		payload, err := wire.Encode(d.Event)
		if err != nil {
			h.logger.Error("failed to encode event", "kind", d.Event.Kind(), "err", err)
			continue
		}
		sent := 0
		h.mu.RLock()
		for _, id := range d.Recipients {
			conn, ok := h.conns[id]
			if !ok {
				continue
			}
			if err := conn.Send(payload); err != nil {
				h.observer.SendFailed(d.Event.Kind())
				h.logger.Warn("failed to queue event", "conn", id, "kind", d.Event.Kind(), "err", err)
				continue
			}
			sent++
		}
		h.mu.RUnlock()
		h.observer.Delivered(d.Event.Kind(), sent)
	}
}

// Close terminates every tracked connection.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*Connection)
	h.mu.Unlock()

	for _, c := range conns {
		c.Close(websocket.CloseGoingAway, "server shutdown")
	}
}
