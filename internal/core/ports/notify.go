package ports

import "github.com/codestation/lms-web/internal/core/domain"

// Notifier surfaces user-visible feedback.
type Notifier interface {
	Show(message string, kind domain.NotificationKind) domain.Notification
}

// ModalOpener lets services prompt for authentication without owning the modal.
type ModalOpener interface {
	Open(view domain.ModalView) error
}

// EventSink receives notification events addressed to one browser client.
type EventSink interface {
	Deliver(clientID string, ev domain.NotificationEvent)
}
