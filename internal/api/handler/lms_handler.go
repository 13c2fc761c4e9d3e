package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codestation/lms-web/internal/core/domain"
)

// LMSHandler exposes courses, enrollments, the dashboard and user
// management, each checked against the caller's role before reaching the API.
type LMSHandler struct{}

func NewLMSHandler() *LMSHandler {
	return &LMSHandler{}
}

// --- Courses ---

// ListCourses returns the catalog with the controls the caller may use on
// each course.
//
// @Summary      Course catalog
// @Tags         courses
// @Produce      json
// @Success      200  {array}   courseView
// @Failure      502  {object}  errorResponse
// @Router       /v1/courses [get]
func (h *LMSHandler) ListCourses(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	courses, err := w.LMS.ListCourses(c.Request().Context())
	if err != nil {
		return err
	}
	identity := w.Session.Identity()
	out := make([]courseView, 0, len(courses))
	for _, course := range courses {
		out = append(out, newCourseView(identity, course))
	}
	return c.JSON(http.StatusOK, out)
}

// GetCourse returns one course.
//
// @Summary      Get a course
// @Tags         courses
// @Produce      json
// @Param        id   path      string  true  "Course id"
// @Success      200  {object}  courseView
// @Failure      404  {object}  errorResponse
// @Router       /v1/courses/{id} [get]
func (h *LMSHandler) GetCourse(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	course, err := w.LMS.GetCourse(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newCourseView(w.Session.Identity(), *course))
}

// CreateCourse publishes a course owned by the caller.
//
// @Summary      Create a course
// @Tags         courses
// @Accept       json
// @Produce      json
// @Param        body  body      domain.CourseForm  true  "Course"
// @Success      201   {object}  courseView
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /v1/courses [post]
func (h *LMSHandler) CreateCourse(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	var form domain.CourseForm
	if err := c.Bind(&form); err != nil {
		return invalidPayload()
	}
	course, err := w.LMS.CreateCourse(c.Request().Context(), form)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newCourseView(w.Session.Identity(), *course))
}

// UpdateCourse edits a course. Instructors may only edit their own.
//
// @Summary      Update a course
// @Tags         courses
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Course id"
// @Param        body  body      domain.CourseForm  true  "Course"
// @Success      200   {object}  courseView
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/courses/{id} [put]
func (h *LMSHandler) UpdateCourse(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var form domain.CourseForm
	if err := c.Bind(&form); err != nil {
		return invalidPayload()
	}
	course, err := w.LMS.UpdateCourse(c.Request().Context(), id, form)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newCourseView(w.Session.Identity(), *course))
}

// DeleteCourse removes a course. Instructors may only delete their own.
//
// @Summary      Delete a course
// @Tags         courses
// @Param        id   path      string  true  "Course id"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/courses/{id} [delete]
func (h *LMSHandler) DeleteCourse(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := w.LMS.DeleteCourse(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListCategories returns the course categories.
//
// @Summary      Course categories
// @Tags         courses
// @Produce      json
// @Success      200  {array}  domain.Category
// @Router       /v1/categories [get]
func (h *LMSHandler) ListCategories(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	categories, err := w.LMS.ListCategories(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, categories)
}

// --- Enrollments ---

// ListEnrollments returns the caller's enrollments.
//
// @Summary      My enrollments
// @Tags         enrollments
// @Produce      json
// @Success      200  {array}   domain.Enrollment
// @Failure      401  {object}  errorResponse
// @Router       /v1/enrollments [get]
func (h *LMSHandler) ListEnrollments(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	enrollments, err := w.LMS.ListEnrollments(c.Request().Context())
	if err != nil {
		return err
	}
	if enrollments == nil {
		enrollments = []domain.Enrollment{}
	}
	return c.JSON(http.StatusOK, enrollments)
}

// Enroll enrolls the caller, who must be a student, in a course.
//
// @Summary      Enroll in a course
// @Tags         enrollments
// @Accept       json
// @Produce      json
// @Param        body  body      enrollRequest  true  "Course to enroll in"
// @Success      201   {object}  domain.Enrollment
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /v1/enrollments [post]
func (h *LMSHandler) Enroll(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	var req enrollRequest
	if err := c.Bind(&req); err != nil {
		return invalidPayload()
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	enrollment, err := w.LMS.Enroll(c.Request().Context(), req.Course)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, enrollment)
}

// --- Dashboard ---

// Dashboard returns aggregate stats and, for students, their enrollments.
//
// @Summary      Dashboard
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  service.Dashboard
// @Failure      401  {object}  errorResponse
// @Router       /v1/dashboard [get]
func (h *LMSHandler) Dashboard(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	dash, err := w.LMS.Dashboard(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dash)
}

// --- Users ---

// ListUsers returns every user, optionally filtered by role.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Param        role  query     string  false  "all, student, instructor or admin"
// @Success      200   {array}   domain.Identity
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /v1/users [get]
func (h *LMSHandler) ListUsers(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	var q usersQuery
	if err := c.Bind(&q); err != nil {
		return invalidPayload()
	}
	if err := c.Validate(&q); err != nil {
		return err
	}
	users, err := w.LMS.ListUsers(c.Request().Context(), q.Role)
	if err != nil {
		return err
	}
	if users == nil {
		users = []domain.Identity{}
	}
	return c.JSON(http.StatusOK, users)
}

// DeleteUser removes another user's account.
//
// @Summary      Delete a user
// @Tags         users
// @Param        id   path      string  true  "User id"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Router       /v1/users/{id} [delete]
func (h *LMSHandler) DeleteUser(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := w.LMS.DeleteUser(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
