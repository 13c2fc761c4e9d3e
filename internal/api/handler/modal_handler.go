package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codestation/lms-web/internal/core/domain"
)

// ModalHandler drives the auth modal of the caller's workspace.
type ModalHandler struct{}

func NewModalHandler() *ModalHandler {
	return &ModalHandler{}
}

// Get returns the modal state and, while open, the form without passwords.
//
// @Summary      Modal state
// @Tags         modal
// @Produce      json
// @Success      200  {object}  modalResponse
// @Router       /v1/modal [get]
func (h *ModalHandler) Get(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newModalResponse(w.Modal))
}

// Open shows the modal on a view, resetting its form.
//
// @Summary      Open the modal
// @Tags         modal
// @Accept       json
// @Produce      json
// @Param        body  body      viewRequest  true  "login, register or forgot-password"
// @Success      200   {object}  modalResponse
// @Failure      400   {object}  errorResponse
// @Router       /v1/modal/open [post]
func (h *ModalHandler) Open(c echo.Context) error {
	return h.toView(c, false)
}

// Switch changes the view of an open modal.
//
// @Summary      Switch the modal view
// @Tags         modal
// @Accept       json
// @Produce      json
// @Param        body  body      viewRequest  true  "login, register or forgot-password"
// @Success      200   {object}  modalResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/modal/switch [post]
func (h *ModalHandler) Switch(c echo.Context) error {
	return h.toView(c, true)
}

func (h *ModalHandler) toView(c echo.Context, switching bool) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	var req viewRequest
	if err := c.Bind(&req); err != nil {
		return invalidPayload()
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if switching {
		err = w.Modal.Switch(req.View)
	} else {
		err = w.Modal.Open(req.View)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newModalResponse(w.Modal))
}

// Close hides the modal.
//
// @Summary      Close the modal
// @Tags         modal
// @Produce      json
// @Success      200  {object}  modalResponse
// @Router       /v1/modal/close [post]
func (h *ModalHandler) Close(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	w.Modal.Close()
	return c.JSON(http.StatusOK, newModalResponse(w.Modal))
}

// UpdateForm stores the in-progress inputs of the open modal.
//
// @Summary      Update the modal form
// @Tags         modal
// @Accept       json
// @Produce      json
// @Param        body  body      domain.AuthForm  true  "Form inputs"
// @Success      200   {object}  modalResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/modal/form [put]
func (h *ModalHandler) UpdateForm(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	var form domain.AuthForm
	if err := c.Bind(&form); err != nil {
		return invalidPayload()
	}
	if err := w.Modal.UpdateForm(form); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newModalResponse(w.Modal))
}
