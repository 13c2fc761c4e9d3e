package lmsstub

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/rbac"
)

const maxAvatarBytes = 2 << 20

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

type profileRequest struct {
	Username  string `json:"username"   form:"username"`
	Email     string `json:"email"      form:"email"`
	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name"  form:"last_name"`
	Password  string `json:"password"   form:"password"`
}

// login answers with the token pair only; clients fetch the profile next.
func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return detail(http.StatusBadRequest, "invalid payload")
	}
	if req.Username == "" {
		return fieldError("username", "This field is required.")
	}
	if req.Password == "" {
		return fieldError("password", "This field is required.")
	}

	u, ok := s.store.userByName(req.Username)
	if !ok || bcrypt.CompareHashAndPassword(u.hash, []byte(req.Password)) != nil {
		return detail(http.StatusUnauthorized, detailBadLogin)
	}

	access, refresh, err := s.tokens.pair(u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokenPair{Access: access, Refresh: refresh})
}

// refresh trades a refresh token for a new access token.
func (s *Server) refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.Refresh == "" {
		return fieldError("refresh", "This field is required.")
	}
	id, err := s.tokens.parse(req.Refresh, tokenRefresh)
	if err != nil {
		return detail(http.StatusUnauthorized, "Token is invalid or expired")
	}
	u, ok := s.store.userByID(id)
	if !ok {
		return detail(http.StatusUnauthorized, "Token is invalid or expired")
	}
	access, err := s.tokens.sign(u, tokenAccess, s.cfg.AccessTTL)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokenPair{Access: access})
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return detail(http.StatusBadRequest, "invalid payload")
	}
	switch {
	case req.Username == "":
		return fieldError("username", "This field is required.")
	case req.Password == "":
		return fieldError("password", "This field is required.")
	case !strings.Contains(req.Email, "@"):
		return fieldError("email", "Enter a valid email address.")
	}
	if _, ok := domain.ParseRole(req.Role); !ok {
		return fieldError("role", `"`+req.Role+`" is not a valid choice.`)
	}

	u, err := s.createUser(user{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	}, req.Password)
	if errors.Is(err, errUserExists) {
		return fieldError("username", "A user with that username already exists.")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

// passwordReset always succeeds so account existence is not revealed.
func (s *Server) passwordReset(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || !strings.Contains(req.Email, "@") {
		return fieldError("email", "Enter a valid email address.")
	}
	s.log.Info().Str("email", req.Email).Msg("password reset requested")
	return c.JSON(http.StatusOK, detailError{Detail: "Password reset e-mail has been sent."})
}

func (s *Server) profile(c echo.Context) error {
	return c.JSON(http.StatusOK, currentUser(c))
}

// updateProfile accepts JSON, or multipart with an optional avatar file.
func (s *Server) updateProfile(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return detail(http.StatusBadRequest, "invalid payload")
	}
	if req.Username == "" {
		return fieldError("username", "This field is required.")
	}
	if req.Email != "" && !strings.Contains(req.Email, "@") {
		return fieldError("email", "Enter a valid email address.")
	}

	me := currentUser(c)
	if other, ok := s.store.userByName(req.Username); ok && other.ID != me.ID {
		return fieldError("username", "A user with that username already exists.")
	}

	var avatar string
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("avatar")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			return fieldError("avatar", "Upload a valid image.")
		case fh.Size > maxAvatarBytes:
			return fieldError("avatar", "The file is too large.")
		default:
			f, err := fh.Open()
			if err != nil {
				return err
			}
			_, err = io.Copy(io.Discard, f)
			f.Close()
			if err != nil {
				return err
			}
			avatar = "/media/avatars/" + path.Base(fh.Filename)
		}
	}

	var hash []byte
	if req.Password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.HashCost)
		if err != nil {
			return err
		}
		hash = h
	}

	updated, ok := s.store.updateUser(me.ID, func(u *user) {
		u.Username = req.Username
		u.Email = req.Email
		u.FirstName = req.FirstName
		u.LastName = req.LastName
		if avatar != "" {
			u.Avatar = avatar
		}
		if hash != nil {
			u.hash = hash
		}
	})
	if !ok {
		return detail(http.StatusNotFound, detailNotFound)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) listUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.listUsers())
}

func (s *Server) deleteUser(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return detail(http.StatusNotFound, detailNotFound)
	}
	if !rbac.Can(currentUser(c).identity(), rbac.DeleteUser, domain.ID(strconv.Itoa(id))) {
		return detail(http.StatusBadRequest, "You cannot delete your own account.")
	}
	if !s.store.deleteUser(id) {
		return detail(http.StatusNotFound, detailNotFound)
	}
	return c.NoContent(http.StatusNoContent)
}
