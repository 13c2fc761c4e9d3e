package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codestation/lms-web/internal/core/domain"
)

// SessionHandler exposes the login, registration and logout flows of the
// caller's workspace.
type SessionHandler struct{}

func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

// Get returns the current identity and what it may do.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /v1/session [get]
func (h *SessionHandler) Get(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSessionResponse(w))
}

// Login authenticates against the LMS API and starts a session.
//
// @Summary      Login
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      domain.LoginForm  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/session/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	var form domain.LoginForm
	if err := c.Bind(&form); err != nil {
		return invalidPayload()
	}
	if err := w.Auth.SubmitLogin(c.Request().Context(), form); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSessionResponse(w))
}

// Register creates an account. It does not log the caller in; on success
// the modal moves to the login view.
//
// @Summary      Register a new user
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      domain.RegisterForm  true  "User registration details"
// @Success      201   {object}  modalResponse
// @Failure      400   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/session/register [post]
func (h *SessionHandler) Register(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	var form domain.RegisterForm
	if err := c.Bind(&form); err != nil {
		return invalidPayload()
	}
	if err := w.Auth.SubmitRegister(c.Request().Context(), form); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newModalResponse(w.Modal))
}

// PasswordReset asks the LMS API to mail a reset link.
//
// @Summary      Request a password reset
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      domain.ForgotPasswordForm  true  "Account email"
// @Success      202   {object}  modalResponse
// @Failure      400   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/session/password-reset [post]
func (h *SessionHandler) PasswordReset(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	var form domain.ForgotPasswordForm
	if err := c.Bind(&form); err != nil {
		return invalidPayload()
	}
	if err := w.Auth.SubmitForgotPassword(c.Request().Context(), form); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, newModalResponse(w.Modal))
}

// Logout ends the session. Logging out twice is not an error.
//
// @Summary      Logout
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /v1/session/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	if err := w.Auth.Logout(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSessionResponse(w))
}
