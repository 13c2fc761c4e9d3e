package service

import (
	"fmt"
	"sync"

	"github.com/codestation/lms-web/internal/core/domain"
)

// ModalCoordinator owns the single auth modal of a workspace and the form
// inputs that belong to it.
type ModalCoordinator struct {
	mu    sync.Mutex
	state domain.ModalState
	form  domain.AuthForm
}

func NewModalCoordinator() *ModalCoordinator {
	return &ModalCoordinator{form: domain.DefaultAuthForm()}
}

// Open shows view, whether the modal was closed or showing another view.
// The form is reset on every call.
func (m *ModalCoordinator) Open(view domain.ModalView) error {
	if !view.Valid() {
		return &domain.ValidationError{Field: "view", Detail: fmt.Sprintf("%s: %q", domain.ErrInvalidView, view)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = domain.ModalState{IsOpen: true, View: view}
	m.form = domain.DefaultAuthForm()
	return nil
}

// Switch changes the view of an open modal. It never closes the modal and
// fails with ErrModalClosed when there is nothing to switch.
func (m *ModalCoordinator) Switch(view domain.ModalView) error {
	m.mu.Lock()
	open := m.state.IsOpen
	m.mu.Unlock()
	if !open {
		return domain.ErrModalClosed
	}
	return m.Open(view)
}

// Close hides the modal and discards the form. Idempotent.
func (m *ModalCoordinator) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = domain.ModalState{}
	m.form = domain.DefaultAuthForm()
}

func (m *ModalCoordinator) State() domain.ModalState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ModalCoordinator) Form() domain.AuthForm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form
}

// UpdateForm replaces the in-progress inputs of the open modal. A role that
// cannot be picked at registration falls back to student.
func (m *ModalCoordinator) UpdateForm(form domain.AuthForm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.IsOpen {
		return domain.ErrModalClosed
	}
	if !form.Role.Selectable() {
		form.Role = domain.RoleStudent
	}
	m.form = form
	return nil
}
