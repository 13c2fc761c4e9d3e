package handler

import (
	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/rbac"
	"github.com/codestation/lms-web/internal/core/service"
)

// errorResponse documents the error envelope written by the HTTP error handler.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// --- Request / Response types ---

type sessionResponse struct {
	Authenticated bool              `json:"authenticated"`
	User          *domain.Identity  `json:"user,omitempty"`
	Capabilities  rbac.Capabilities `json:"capabilities"`
	Modal         domain.ModalState `json:"modal"`
}

func newSessionResponse(w *service.Workspace) sessionResponse {
	identity := w.Session.Identity()
	return sessionResponse{
		Authenticated: identity != nil,
		User:          identity,
		Capabilities:  rbac.CapabilitiesFor(identity),
		Modal:         w.Modal.State(),
	}
}

type viewRequest struct {
	View domain.ModalView `json:"view" validate:"required"`
}

// formView is the modal form without its password fields.
type formView struct {
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      domain.Role `json:"role"`
}

type modalResponse struct {
	domain.ModalState
	Form *formView `json:"form,omitempty"`
}

func newModalResponse(m *service.ModalCoordinator) modalResponse {
	resp := modalResponse{ModalState: m.State()}
	if resp.IsOpen {
		f := m.Form()
		resp.Form = &formView{
			Username:  f.Username,
			Email:     f.Email,
			FirstName: f.FirstName,
			LastName:  f.LastName,
			Role:      f.Role,
		}
	}
	return resp
}

type notificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

type courseView struct {
	domain.Course
	Capabilities rbac.CourseCapabilities `json:"capabilities"`
}

func newCourseView(identity *domain.Identity, c domain.Course) courseView {
	return courseView{Course: c, Capabilities: rbac.CourseCapabilitiesFor(identity, c)}
}

type enrollRequest struct {
	Course domain.ID `json:"course" validate:"required"`
}

type usersQuery struct {
	Role string `query:"role" validate:"omitempty,oneof=all student instructor admin"`
}
