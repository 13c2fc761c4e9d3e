// Package stream pushes notification events to browsers over websockets.
package stream

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/pkg/metrics"
)

type outbound struct {
	clientID string
	data     []byte
}

// Hub tracks open connections per browser client and fans events out to
// them. A client may hold several connections, one per tab.
type Hub struct {
	register   chan *Conn
	unregister chan *Conn
	broadcast  chan outbound
	clients    map[string]map[*Conn]struct{}
	done       chan struct{}
	log        zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		broadcast:  make(chan outbound, 256),
		clients:    make(map[string]map[*Conn]struct{}),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run owns the connection table until ctx is done, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.clients {
				for c := range conns {
					c.closeSend()
				}
			}
			h.clients = make(map[string]map[*Conn]struct{})
			metrics.StreamConnections.Set(0)
			return

		case c := <-h.register:
			conns, ok := h.clients[c.clientID]
			if !ok {
				conns = make(map[*Conn]struct{})
				h.clients[c.clientID] = conns
			}
			conns[c] = struct{}{}
			metrics.StreamConnections.Inc()

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			for c := range h.clients[msg.clientID] {
				if !c.enqueue(msg.data) {
					h.log.Debug().Str("client_id", c.clientID).Msg("slow stream connection dropped")
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *Conn) {
	conns, ok := h.clients[c.clientID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.clientID)
	}
	c.closeSend()
	metrics.StreamConnections.Dec()
}

// Deliver implements ports.EventSink.
func (h *Hub) Deliver(clientID string, ev domain.NotificationEvent) {
	data, err := encode(eventMessage(ev))
	if err != nil {
		h.log.Error().Err(err).Msg("encode stream message")
		return
	}
	select {
	case h.broadcast <- outbound{clientID: clientID, data: data}:
	case <-h.done:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Attach upgrades the request and serves the connection until it closes.
// The first frame is a snapshot of the notifications currently visible.
func (h *Hub) Attach(w http.ResponseWriter, r *http.Request, clientID string, visible []domain.Notification, dismiss Dismisser) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	if visible == nil {
		visible = []domain.Notification{}
	}
	c := newConn(h, ws, clientID, dismiss, h.log.With().Str("client_id", clientID).Logger())
	c.Serve(r.Context(), Message{Type: TypeSnapshot, Notifications: visible})
	return nil
}
