package lmsstub

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/rbac"
)

type courseRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    domain.ID `json:"category"`
	Duration    string    `json:"duration"`
	Thumbnail   string    `json:"thumbnail"`
}

func (r courseRequest) course() (course, error) {
	if r.Title == "" {
		return course{}, fieldError("title", "This field is required.")
	}
	if r.Description == "" {
		return course{}, fieldError("description", "This field is required.")
	}
	cat, err := strconv.Atoi(r.Category.String())
	if err != nil {
		return course{}, fieldError("category", "A valid integer is required.")
	}
	return course{
		Title:       r.Title,
		Description: r.Description,
		Category:    cat,
		Duration:    r.Duration,
		Thumbnail:   r.Thumbnail,
	}, nil
}

func (s *Server) listCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.listCategories())
}

func (s *Server) listCourses(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.listCourses())
}

func (s *Server) getCourse(c echo.Context) error {
	cs, err := s.courseParam(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cs)
}

func (s *Server) createCourse(c echo.Context) error {
	var req courseRequest
	if err := c.Bind(&req); err != nil {
		return detail(http.StatusBadRequest, "invalid payload")
	}
	cs, err := req.course()
	if err != nil {
		return err
	}
	cs.Instructor = currentUser(c).ID
	saved, ok := s.store.saveCourse(cs)
	if !ok {
		return fieldError("category", "Invalid pk - object does not exist.")
	}
	return c.JSON(http.StatusCreated, saved)
}

func (s *Server) updateCourse(c echo.Context) error {
	existing, err := s.ownedCourse(c, rbac.EditCourse)
	if err != nil {
		return err
	}
	var req courseRequest
	if err := c.Bind(&req); err != nil {
		return detail(http.StatusBadRequest, "invalid payload")
	}
	cs, err := req.course()
	if err != nil {
		return err
	}
	cs.ID = existing.ID
	cs.Instructor = existing.Instructor
	if cs.Thumbnail == "" {
		cs.Thumbnail = existing.Thumbnail
	}
	saved, ok := s.store.saveCourse(cs)
	if !ok {
		return fieldError("category", "Invalid pk - object does not exist.")
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) deleteCourse(c echo.Context) error {
	existing, err := s.ownedCourse(c, rbac.DeleteCourse)
	if err != nil {
		return err
	}
	s.store.deleteCourse(existing.ID)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listEnrollments(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.enrollmentsOf(currentUser(c).ID))
}

func (s *Server) enroll(c echo.Context) error {
	var req struct {
		Course domain.ID `json:"course"`
	}
	if err := c.Bind(&req); err != nil {
		return detail(http.StatusBadRequest, "invalid payload")
	}
	courseID, err := strconv.Atoi(req.Course.String())
	if err != nil {
		return fieldError("course", "This field is required.")
	}

	e, err := s.store.enroll(currentUser(c).ID, courseID, s.now())
	switch {
	case errors.Is(err, errNoCourse):
		return fieldError("course", "Invalid pk - object does not exist.")
	case errors.Is(err, errAlreadyEnrolled):
		return fieldError("non_field_errors", "You are already enrolled in this course.")
	case err != nil:
		return err
	}
	return c.JSON(http.StatusCreated, e)
}

func (s *Server) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.stats())
}

func (s *Server) courseParam(c echo.Context) (*course, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, detail(http.StatusNotFound, detailNotFound)
	}
	cs, ok := s.store.courseByID(id)
	if !ok {
		return nil, detail(http.StatusNotFound, detailNotFound)
	}
	return cs, nil
}

// ownedCourse loads the course and applies the same ownership rule the
// client enforces.
func (s *Server) ownedCourse(c echo.Context, action rbac.Action) (*course, error) {
	cs, err := s.courseParam(c)
	if err != nil {
		return nil, err
	}
	owner := domain.ID(strconv.Itoa(cs.Instructor))
	if !rbac.Can(currentUser(c).identity(), action, owner) {
		return nil, detail(http.StatusForbidden, detailForbidden)
	}
	return cs, nil
}
