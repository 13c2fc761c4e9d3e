package stream

import (
	"encoding/json"

	"github.com/codestation/lms-web/internal/core/domain"
)

// Message types sent to the browser.
const (
	TypeSnapshot  = "snapshot"
	TypeShown     = string(domain.NotificationShown)
	TypeDismissed = string(domain.NotificationDismissed)
	TypePong      = "pong"
	TypeError     = "error"
)

// Message types accepted from the browser.
const (
	TypePing    = "ping"
	TypeDismiss = "dismiss"
)

// Message is the single frame format of the notification stream.
type Message struct {
	Type          string                `json:"type"`
	Notification  *domain.Notification  `json:"notification,omitempty"`
	Notifications []domain.Notification `json:"notifications,omitempty"`
	ID            string                `json:"id,omitempty"`
	Error         string                `json:"error,omitempty"`
}

func encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func eventMessage(ev domain.NotificationEvent) Message {
	n := ev.Notification
	return Message{Type: string(ev.Type), Notification: &n}
}
