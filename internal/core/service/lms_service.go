package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/codestation/lms-web/internal/core/async"
	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/ports"
	"github.com/codestation/lms-web/internal/core/rbac"
	"github.com/codestation/lms-web/internal/core/validation"
)

const (
	pathCourses     = "lms/courses/"
	pathCategories  = "lms/categories/"
	pathEnrollments = "lms/enrollments/"
	pathStats       = "lms/dashboard/stats/"
	pathUsers       = "auth/users/"
)

const (
	msgEnrolled           = "Enrolled successfully!"
	msgEnrollFailed       = "Failed to enroll. You might already be enrolled."
	msgCourseCreated      = "New course deployed!"
	msgCourseUpdated      = "Course architected successfully!"
	msgCourseSaveFailed   = "Deployment failed. Security breach?"
	msgCourseDeleted      = "Course deleted successfully."
	msgCourseDeleteFailed = "Failed to delete course."
	msgCoursesLoadFailed  = "Failed to load courses."
	msgCourseLoadFailed   = "Failed to load course."
	msgCategoriesFailed   = "Failed to load categories."
	msgEnrollmentsFailed  = "Failed to load enrollments."
	msgDashboardFailed    = "Failed to load dashboard."
	msgUsersLoadFailed    = "Failed to load users"
	msgUserDeleted        = "User deleted successfully"
	msgUserDeleteFailed   = "Failed to delete user"
	msgProfileLoadFailed  = "Failed to load profile."
	msgProfileUpdated     = "Profile updated successfully!"
	msgProfileFailed      = "Failed to update profile."
)

// sessionView is the part of the session LMSService reads.
type sessionView interface {
	Identity() *domain.Identity
	Reload(ctx context.Context) error
}

// LMSService issues the course, enrollment, user and profile calls on behalf
// of the current identity. Every gated call is checked locally first so the
// API only sees requests the caller is allowed to make.
type LMSService struct {
	gw      ports.Gateway
	session sessionView
	modal   ports.ModalOpener
	bus     ports.Notifier
	log     zerolog.Logger
}

func NewLMSService(gw ports.Gateway, session sessionView, modal ports.ModalOpener, bus ports.Notifier, log zerolog.Logger) *LMSService {
	return &LMSService{gw: gw, session: session, modal: modal, bus: bus, log: log}
}

// Dashboard is the aggregate the dashboard page renders. Enrollments is only
// loaded for students.
type Dashboard struct {
	Stats       *domain.DashboardStats `json:"stats,omitempty"`
	Enrollments []domain.Enrollment    `json:"enrollments,omitempty"`
}

// ── Courses ─────────────────────────────────────────────────────────────────

func (s *LMSService) ListCourses(ctx context.Context) ([]domain.Course, error) {
	var courses []domain.Course
	if err := getJSON(ctx, s.gw, pathCourses, nil, &courses); err != nil {
		return nil, s.fail(err, msgCoursesLoadFailed)
	}
	return courses, nil
}

func (s *LMSService) GetCourse(ctx context.Context, id domain.ID) (*domain.Course, error) {
	course, err := s.fetchCourse(ctx, id)
	if err != nil {
		return nil, s.fail(err, msgCourseLoadFailed)
	}
	return course, nil
}

func (s *LMSService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := getJSON(ctx, s.gw, pathCategories, nil, &categories); err != nil {
		return nil, s.fail(err, msgCategoriesFailed)
	}
	return categories, nil
}

func (s *LMSService) CreateCourse(ctx context.Context, form domain.CourseForm) (*domain.Course, error) {
	if err := s.authorize(rbac.CreateCourse, ""); err != nil {
		return nil, err
	}
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	var created domain.Course
	if err := sendJSON(ctx, s.gw, http.MethodPost, pathCourses, form, &created); err != nil {
		return nil, s.fail(err, msgCourseSaveFailed)
	}
	s.bus.Show(msgCourseCreated, domain.KindSuccess)
	return &created, nil
}

func (s *LMSService) UpdateCourse(ctx context.Context, id domain.ID, form domain.CourseForm) (*domain.Course, error) {
	if err := s.authorizeCourse(ctx, rbac.EditCourse, id); err != nil {
		return nil, err
	}
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	var updated domain.Course
	if err := sendJSON(ctx, s.gw, http.MethodPut, coursePath(id), form, &updated); err != nil {
		return nil, s.fail(err, msgCourseSaveFailed)
	}
	s.bus.Show(msgCourseUpdated, domain.KindSuccess)
	return &updated, nil
}

func (s *LMSService) DeleteCourse(ctx context.Context, id domain.ID) error {
	if err := s.authorizeCourse(ctx, rbac.DeleteCourse, id); err != nil {
		return err
	}
	if _, err := s.gw.Do(ctx, ports.Request{Method: http.MethodDelete, Path: coursePath(id)}); err != nil {
		return s.fail(err, msgCourseDeleteFailed)
	}
	s.bus.Show(msgCourseDeleted, domain.KindSuccess)
	return nil
}

// ── Enrollments ─────────────────────────────────────────────────────────────

func (s *LMSService) Enroll(ctx context.Context, courseID domain.ID) (*domain.Enrollment, error) {
	if err := s.authorize(rbac.Enroll, ""); err != nil {
		return nil, err
	}
	if courseID == "" {
		return nil, &domain.ValidationError{Field: "course", Detail: "course is required"}
	}
	var enrollment domain.Enrollment
	body := map[string]domain.ID{"course": courseID}
	if err := sendJSON(ctx, s.gw, http.MethodPost, pathEnrollments, body, &enrollment); err != nil {
		return nil, s.fail(err, msgEnrollFailed)
	}
	s.bus.Show(msgEnrolled, domain.KindSuccess)
	return &enrollment, nil
}

func (s *LMSService) ListEnrollments(ctx context.Context) ([]domain.Enrollment, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	var enrollments []domain.Enrollment
	if err := getJSON(ctx, s.gw, pathEnrollments, nil, &enrollments); err != nil {
		return nil, s.fail(err, msgEnrollmentsFailed)
	}
	return enrollments, nil
}

// ── Dashboard ───────────────────────────────────────────────────────────────

// Dashboard loads stats and, for students, enrollments concurrently. Each
// load fills only its own part; a failed part is reported and left empty.
// Results arriving after ctx is done are discarded.
func (s *LMSService) Dashboard(ctx context.Context) (*Dashboard, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	identity := s.session.Identity()

	scope := async.NewScope(ctx)
	defer scope.Close()

	var (
		out  Dashboard
		errs []error
	)
	async.Go(scope, func(ctx context.Context) (*domain.DashboardStats, error) {
		var stats domain.DashboardStats
		if err := getJSON(ctx, s.gw, pathStats, nil, &stats); err != nil {
			return nil, err
		}
		return &stats, nil
	}, func(stats *domain.DashboardStats, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("stats: %w", err))
			return
		}
		out.Stats = stats
	})

	if identity != nil && identity.Role == domain.RoleStudent {
		async.Go(scope, func(ctx context.Context) ([]domain.Enrollment, error) {
			var enrollments []domain.Enrollment
			err := getJSON(ctx, s.gw, pathEnrollments, nil, &enrollments)
			return enrollments, err
		}, func(enrollments []domain.Enrollment, err error) {
			if err != nil {
				errs = append(errs, fmt.Errorf("enrollments: %w", err))
				return
			}
			out.Enrollments = enrollments
		})
	}

	scope.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		s.fail(err, msgDashboardFailed)
		if out.Stats == nil && out.Enrollments == nil {
			return nil, err
		}
	}
	return &out, nil
}

// ── Users ───────────────────────────────────────────────────────────────────

// ListUsers returns every user, or only those with role when it is set.
func (s *LMSService) ListUsers(ctx context.Context, role string) ([]domain.Identity, error) {
	if err := s.authorize(rbac.ManageUsers, ""); err != nil {
		return nil, err
	}
	var users []domain.Identity
	if err := getJSON(ctx, s.gw, pathUsers, nil, &users); err != nil {
		return nil, s.fail(err, msgUsersLoadFailed)
	}
	role = strings.TrimSpace(role)
	if role == "" || role == "all" {
		return users, nil
	}
	want, _ := domain.ParseRole(role)
	filtered := users[:0]
	for _, u := range users {
		if u.Role == want {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}

// DeleteUser removes another account. Deleting yourself is always refused.
func (s *LMSService) DeleteUser(ctx context.Context, id domain.ID) error {
	if err := s.authorize(rbac.DeleteUser, id); err != nil {
		return err
	}
	path := pathUsers + url.PathEscape(id.String()) + "/"
	if _, err := s.gw.Do(ctx, ports.Request{Method: http.MethodDelete, Path: path}); err != nil {
		return s.fail(err, msgUserDeleteFailed)
	}
	s.bus.Show(msgUserDeleted, domain.KindSuccess)
	return nil
}

// ── Profile ─────────────────────────────────────────────────────────────────

func (s *LMSService) Profile(ctx context.Context) (*domain.Identity, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	var identity domain.Identity
	if err := getJSON(ctx, s.gw, pathProfile, nil, &identity); err != nil {
		return nil, s.fail(err, msgProfileLoadFailed)
	}
	return &identity, nil
}

// UpdateProfile saves the caller's profile. The body is multipart when an
// avatar is attached and JSON otherwise. The password is only sent when set.
func (s *LMSService) UpdateProfile(ctx context.Context, form domain.ProfileForm, avatar *domain.Avatar) (*domain.Identity, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	if form.Password != form.ConfirmPassword {
		s.bus.Show(msgPasswordsMismatch, domain.KindError)
		return nil, &domain.ValidationError{Field: "confirm_password", Detail: msgPasswordsMismatch}
	}
	if err := validation.Struct(form); err != nil {
		return nil, err
	}

	fields := map[string]string{
		"username":   form.Username,
		"email":      form.Email,
		"first_name": form.FirstName,
		"last_name":  form.LastName,
	}
	if form.Password != "" {
		fields["password"] = form.Password
	}

	req := ports.Request{Method: http.MethodPut, Path: pathProfile}
	if avatar != nil {
		req.Multipart = &ports.Multipart{Fields: fields, FileField: "avatar", File: avatar}
	} else {
		req.JSON = fields
	}

	resp, err := s.gw.Do(ctx, req)
	if err != nil {
		return nil, s.fail(err, msgProfileFailed)
	}
	var updated domain.Identity
	if err := resp.Decode(&updated); err != nil {
		return nil, s.fail(err, msgProfileFailed)
	}

	s.bus.Show(msgProfileUpdated, domain.KindSuccess)
	if err := s.session.Reload(ctx); err != nil {
		s.log.Warn().Err(err).Msg("session reload after profile update failed")
	}
	return &updated, nil
}

// ── helpers ─────────────────────────────────────────────────────────────────

// authorize checks a role-level action. Anonymous callers are sent to the
// login view instead of being refused outright.
func (s *LMSService) authorize(action rbac.Action, owner domain.ID) error {
	identity := s.session.Identity()
	if rbac.Can(identity, action, owner) {
		return nil
	}
	return s.deny(identity)
}

// authorizeCourse resolves the course owner only when the role alone does
// not decide.
func (s *LMSService) authorizeCourse(ctx context.Context, action rbac.Action, id domain.ID) error {
	identity := s.session.Identity()
	if !rbac.RoleAllows(identity, action) {
		return s.deny(identity)
	}
	if rbac.Can(identity, action, "") {
		return nil
	}
	course, err := s.fetchCourse(ctx, id)
	if err != nil {
		return s.fail(err, msgCourseLoadFailed)
	}
	if !rbac.Can(identity, action, course.Instructor) {
		return domain.ErrForbidden
	}
	return nil
}

func (s *LMSService) requireLogin() error {
	if s.session.Identity() == nil {
		return s.deny(nil)
	}
	return nil
}

func (s *LMSService) deny(identity *domain.Identity) error {
	if identity == nil {
		if err := s.modal.Open(domain.ViewLogin); err != nil {
			s.log.Error().Err(err).Msg("failed to open login modal")
		}
		return domain.ErrLoginRequired
	}
	return domain.ErrForbidden
}

// fail reports err on the bus with msg. Unauthorized has already been
// announced by the gateway and is not repeated.
func (s *LMSService) fail(err error, msg string) error {
	if !errors.Is(err, domain.ErrUnauthorized) {
		s.bus.Show(msg, domain.KindError)
	}
	s.log.Debug().Err(err).Msg(msg)
	return err
}

func (s *LMSService) fetchCourse(ctx context.Context, id domain.ID) (*domain.Course, error) {
	var course domain.Course
	if err := getJSON(ctx, s.gw, coursePath(id), nil, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func coursePath(id domain.ID) string {
	return pathCourses + url.PathEscape(id.String()) + "/"
}

func getJSON(ctx context.Context, gw ports.Gateway, path string, query url.Values, out any) error {
	resp, err := gw.Do(ctx, ports.Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func sendJSON(ctx context.Context, gw ports.Gateway, method, path string, body, out any) error {
	resp, err := gw.Do(ctx, ports.Request{Method: method, Path: path, JSON: body})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}
