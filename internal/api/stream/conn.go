package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// Dismisser removes a notification on behalf of the browser.
type Dismisser func(id string) bool

// Conn is one websocket of one browser client.
type Conn struct {
	hub      *Hub
	ws       *websocket.Conn
	clientID string
	send     chan []byte
	dismiss  Dismisser
	log      zerolog.Logger

	closed    chan struct{}
	closeOnce sync.Once
}

func newConn(h *Hub, ws *websocket.Conn, clientID string, dismiss Dismisser, log zerolog.Logger) *Conn {
	return &Conn{
		hub:      h,
		ws:       ws,
		clientID: clientID,
		send:     make(chan []byte, sendBuffer),
		dismiss:  dismiss,
		log:      log,
		closed:   make(chan struct{}),
	}
}

func (c *Conn) enqueue(data []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Conn) closeSend() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Serve registers the connection, sends snapshot and blocks until either
// side closes or ctx is done.
func (c *Conn) Serve(ctx context.Context, snapshot Message) {
	if data, err := encode(snapshot); err == nil {
		c.enqueue(data)
	}
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		_ = c.ws.Close()
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump(ctx)
	}()
	c.readPump(ctx)

	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
	cancel()
	<-done
}

func (c *Conn) readPump(ctx context.Context) {
	defer c.ws.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("stream read failed")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.handle(data)
	}
}

func (c *Conn) handle(data []byte) {
	var in Message
	if err := json.Unmarshal(data, &in); err != nil {
		c.reply(Message{Type: TypeError, Error: "invalid message"})
		return
	}
	switch in.Type {
	case TypePing:
		c.reply(Message{Type: TypePong})
	case TypeDismiss:
		if in.ID == "" || c.dismiss == nil {
			c.reply(Message{Type: TypeError, Error: "id is required"})
			return
		}
		// The dismissed event reaches this connection through the hub.
		c.dismiss(in.ID)
	default:
		c.reply(Message{Type: TypeError, Error: "unknown message type"})
	}
}

// reply bypasses the hub; it is only used for answers to this connection.
func (c *Conn) reply(m Message) {
	data, err := encode(m)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *Conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-c.closed:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
