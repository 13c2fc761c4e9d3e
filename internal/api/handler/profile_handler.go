package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/codestation/lms-web/internal/core/domain"
)

const maxAvatarBytes = 2 << 20

// ProfileHandler reads and edits the caller's own profile.
type ProfileHandler struct{}

func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

// Get returns the caller's profile as stored by the LMS API.
//
// @Summary      My profile
// @Tags         profile
// @Produce      json
// @Success      200  {object}  domain.Identity
// @Failure      401  {object}  errorResponse
// @Router       /v1/profile [get]
func (h *ProfileHandler) Get(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	identity, err := w.LMS.Profile(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, identity)
}

// Update saves the profile. Send multipart/form-data with an "avatar" file
// to change the picture, or JSON otherwise.
//
// @Summary      Update my profile
// @Tags         profile
// @Accept       json,mpfd
// @Produce      json
// @Param        body    body      domain.ProfileForm  false  "Profile (JSON)"
// @Param        avatar  formData  file                false  "Avatar image (multipart)"
// @Success      200     {object}  domain.Identity
// @Failure      400     {object}  errorResponse
// @Failure      401     {object}  errorResponse
// @Router       /v1/profile [put]
func (h *ProfileHandler) Update(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	var form domain.ProfileForm
	if err := c.Bind(&form); err != nil {
		return invalidPayload()
	}

	var avatar *domain.Avatar
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		avatar, err = readAvatar(c)
		if err != nil {
			return err
		}
	}

	identity, err := w.LMS.UpdateProfile(c.Request().Context(), form, avatar)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, identity)
}

// readAvatar returns nil when no file was attached.
func readAvatar(c echo.Context) (*domain.Avatar, error) {
	fh, err := c.FormFile("avatar")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.ValidationError{Field: "avatar", Detail: "avatar could not be read"}
	}
	if fh.Size > maxAvatarBytes {
		return nil, &domain.ValidationError{Field: "avatar", Detail: "avatar must be at most 2 MB"}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxAvatarBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxAvatarBytes {
		return nil, &domain.ValidationError{Field: "avatar", Detail: "avatar must be at most 2 MB"}
	}

	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &domain.Avatar{Filename: fh.Filename, ContentType: contentType, Data: data}, nil
}
