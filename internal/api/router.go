package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/codestation/lms-web/docs"
	"github.com/codestation/lms-web/internal/api/handler"
	"github.com/codestation/lms-web/internal/api/middleware"
	"github.com/codestation/lms-web/internal/api/stream"
	"github.com/codestation/lms-web/internal/core/rbac"
	"github.com/codestation/lms-web/internal/core/service"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Workspaces *service.Workspaces
	// Hub may be nil, which disables the notification stream.
	Hub    *stream.Hub
	Checks map[string]handler.Check
	Cookie middleware.CookieConfig

	LoginRate  rate.Limit
	LoginBurst int

	// Registerer and Gatherer default to the prometheus globals.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	Log zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	if d.Registerer == nil {
		d.Registerer = prometheus.DefaultRegisterer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "http",
		Registerer: d.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/v1/notifications/stream"
		},
	}))

	// --- Health probes, metrics and docs (no workspace) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Checks)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Dependencies ---
	sessionHandler := handler.NewSessionHandler()
	modalHandler := handler.NewModalHandler()
	notificationHandler := handler.NewNotificationHandler(d.Hub, d.Workspaces)
	lmsHandler := handler.NewLMSHandler()
	profileHandler := handler.NewProfileHandler()

	v1 := e.Group("/v1", middleware.Workspace(d.Workspaces, d.Cookie))

	// --- Session routes ---
	v1.GET("/session", sessionHandler.Get)
	v1.POST("/session/login", sessionHandler.Login, loginLimiter(d.LoginRate, d.LoginBurst))
	v1.POST("/session/register", sessionHandler.Register)
	v1.POST("/session/password-reset", sessionHandler.PasswordReset)
	v1.POST("/session/logout", sessionHandler.Logout)

	// --- Modal routes ---
	v1.GET("/modal", modalHandler.Get)
	v1.POST("/modal/open", modalHandler.Open)
	v1.POST("/modal/switch", modalHandler.Switch)
	v1.POST("/modal/close", modalHandler.Close)
	v1.PUT("/modal/form", modalHandler.UpdateForm)

	// --- Notification routes ---
	v1.GET("/notifications", notificationHandler.List)
	v1.GET("/notifications/stream", notificationHandler.Stream)
	v1.DELETE("/notifications/:id", notificationHandler.Dismiss)

	// --- Course routes ---
	v1.GET("/courses", lmsHandler.ListCourses)
	v1.GET("/courses/:id", lmsHandler.GetCourse)
	v1.POST("/courses", lmsHandler.CreateCourse, middleware.Require(rbac.CreateCourse))
	v1.PUT("/courses/:id", lmsHandler.UpdateCourse, middleware.Require(rbac.EditCourse))
	v1.DELETE("/courses/:id", lmsHandler.DeleteCourse, middleware.Require(rbac.DeleteCourse))
	v1.GET("/categories", lmsHandler.ListCategories)

	// --- Enrollment and dashboard routes ---
	v1.GET("/enrollments", lmsHandler.ListEnrollments)
	v1.POST("/enrollments", lmsHandler.Enroll, middleware.Require(rbac.Enroll))
	v1.GET("/dashboard", lmsHandler.Dashboard)

	// --- User management routes ---
	v1.GET("/users", lmsHandler.ListUsers, middleware.Require(rbac.ManageUsers))
	v1.DELETE("/users/:id", lmsHandler.DeleteUser, middleware.Require(rbac.DeleteUser))

	// --- Profile routes ---
	v1.GET("/profile", profileHandler.Get)
	v1.PUT("/profile", profileHandler.Update)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

// loginLimiter throttles login attempts per remote address.
func loginLimiter(limit rate.Limit, burst int) echo.MiddlewareFunc {
	if limit <= 0 {
		limit = 1
	}
	if burst < 1 {
		burst = 1
	}
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
			Rate:      limit,
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "could not identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts")
		},
	})
}
