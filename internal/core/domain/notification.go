package domain

import "time"

// NotificationKind selects how a notification is presented.
type NotificationKind string

const (
	KindSuccess NotificationKind = "success"
	KindError   NotificationKind = "error"
	KindInfo    NotificationKind = "info"
)

// Valid reports whether k is one of the known kinds.
func (k NotificationKind) Valid() bool {
	switch k {
	case KindSuccess, KindError, KindInfo:
		return true
	}
	return false
}

// Notification is a transient, auto-dismissing message.
type Notification struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationEventType distinguishes bus events.
type NotificationEventType string

const (
	NotificationShown     NotificationEventType = "shown"
	NotificationDismissed NotificationEventType = "dismissed"
)

// NotificationEvent is published to bus subscribers.
type NotificationEvent struct {
	Type         NotificationEventType `json:"type"`
	Notification Notification          `json:"notification"`
}
