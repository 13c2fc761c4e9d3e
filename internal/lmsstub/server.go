// Package lmsstub is an in-memory stand-in for the LMS REST API. It speaks
// the same contract as the real API closely enough to develop and test
// lms-web without it.
package lmsstub

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Port       string        `env:"STUB_PORT, default=8000"`
	Secret     string        `env:"STUB_JWT_SECRET, default=lms-stub-secret"`
	AccessTTL  time.Duration `env:"STUB_ACCESS_TTL, default=15m"`
	RefreshTTL time.Duration `env:"STUB_REFRESH_TTL, default=24h"`
	// HashCost is the bcrypt cost for stored passwords.
	HashCost int `env:"STUB_HASH_COST, default=10"`
	// Seed adds demo categories and one account per role.
	Seed bool `env:"STUB_SEED, default=true"`
}

type Option func(*Server)

// WithClock replaces time.Now for token issuing and checking.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server serves the fake API under /api/.
type Server struct {
	cfg    Config
	store  *store
	tokens *issuer
	now    func() time.Time
	log    zerolog.Logger
}

func New(cfg Config, log zerolog.Logger, opts ...Option) *Server {
	if cfg.HashCost < bcrypt.MinCost {
		cfg.HashCost = bcrypt.MinCost
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 24 * time.Hour
	}
	s := &Server{cfg: cfg, store: newStore(), now: time.Now, log: log}
	for _, opt := range opts {
		opt(s)
	}
	s.tokens = &issuer{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        s.now,
	}
	return s
}

// SeedPassword is the password of every seeded account.
const SeedPassword = "password"

// SeedDemo adds categories, one user per role and a course owned by the
// instructor.
func (s *Server) SeedDemo() error {
	for _, name := range []string{"Development", "Design", "Data Science"} {
		s.store.addCategory(name)
	}
	var instructorID int
	for _, u := range []user{
		{Username: "admin", Email: "admin@lms.local", Role: "admin"},
		{Username: "instructor", Email: "instructor@lms.local", Role: "instructor", FirstName: "Ada"},
		{Username: "student", Email: "student@lms.local", Role: "student"},
	} {
		created, err := s.createUser(u, SeedPassword)
		if err != nil {
			return err
		}
		if created.Role == "instructor" {
			instructorID = created.ID
		}
	}
	cats := s.store.listCategories()
	_, _ = s.store.saveCourse(course{
		Title:       "Go for Backend Engineers",
		Description: "Services, concurrency and testing in Go.",
		Category:    cats[0].ID,
		Duration:    "12h 30m",
		Instructor:  instructorID,
	})
	return nil
}

func (s *Server) createUser(u user, password string) (*user, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.HashCost)
	if err != nil {
		return nil, err
	}
	u.hash = hash
	return s.store.addUser(u)
}

// Handler builds the echo instance.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = s.errorHandler

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			s.log.Debug().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Msg("stub request")
			return nil
		},
	}))

	api := e.Group("/api")

	// --- Auth routes ---
	api.POST("/auth/login/", s.login)
	api.POST("/auth/token/refresh/", s.refresh)
	api.POST("/auth/register/", s.register)
	api.POST("/auth/password-reset/", s.passwordReset)

	authed := api.Group("", s.authenticate)
	authed.GET("/auth/profile/", s.profile)
	authed.PUT("/auth/profile/", s.updateProfile)
	authed.GET("/auth/users/", s.listUsers, requireRole("admin"))
	authed.DELETE("/auth/users/:id/", s.deleteUser, requireRole("admin"))

	// --- LMS routes ---
	authed.GET("/lms/categories/", s.listCategories)
	authed.GET("/lms/courses/", s.listCourses)
	authed.POST("/lms/courses/", s.createCourse, requireRole("instructor", "admin"))
	authed.GET("/lms/courses/:id/", s.getCourse)
	authed.PUT("/lms/courses/:id/", s.updateCourse, requireRole("instructor", "admin"))
	authed.DELETE("/lms/courses/:id/", s.deleteCourse, requireRole("instructor", "admin"))
	authed.GET("/lms/enrollments/", s.listEnrollments, requireRole("student"))
	authed.POST("/lms/enrollments/", s.enroll, requireRole("student"))
	authed.GET("/lms/dashboard/stats/", s.stats)

	e.GET("/api/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return e
}
