package api

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/geodonis/geodonis-web/docs"
	"github.com/geodonis/geodonis-web/internal/api/handler"
	"github.com/geodonis/geodonis-web/internal/api/middleware"
	"github.com/geodonis/geodonis-web/internal/core/ports"
	"github.com/geodonis/geodonis-web/internal/infrastructure/http/handlers"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	AuthService   ports.AuthService
	UserService   ports.UserService
	UploadService ports.UploadService

	// Readiness probes; nil entries are skipped.
	Checks map[string]handlers.Pinger

	// Limiter backs the login/refresh rate limit; nil disables it.
	Limiter         middleware.Limiter
	LoginRateLimit  int
	LoginRateWindow time.Duration

	Renderer     echo.Renderer
	Static       fs.FS
	SessionStore sessions.Store
	Cookies      handler.CookieConfig

	// Registerer and Gatherer default to the Prometheus default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	PublicBaseURL string
	EnableSwagger bool
	// JSAppPath, when set, is served under /app.
	JSAppPath string

	Log zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Renderer = d.Renderer
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "geodonis",
		Subsystem:  "http",
		Registerer: d.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	if d.SessionStore != nil {
		e.Use(session.Middleware(d.SessionStore))
	}
	e.Use(middleware.Session(d.AuthService, d.Log))

	requireUser := middleware.RequireUser()
	requireAdmin := middleware.RequireAdmin()

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.AuthService, d.Cookies, d.Log)
	pageHandler := handler.NewPageHandler(d.AuthService, d.UserService, d.Cookies, d.PublicBaseURL, d.Log)
	userHandler := handler.NewUserHandler(d.UserService, d.PublicBaseURL, d.Log)
	uploadHandler := handler.NewUploadHandler(d.UploadService)

	// --- Browser pages ---
	e.GET("/", pageHandler.Index)
	e.GET("/login", pageHandler.LoginForm)
	e.POST("/login", pageHandler.Login, middleware.RateLimit(d.Limiter, "login", d.LoginRateLimit, d.LoginRateWindow, d.Log))
	e.GET("/logout", pageHandler.Logout)
	e.GET("/login_check", pageHandler.LoginCheck, requireUser)
	e.GET("/create_user", pageHandler.CreateUserForm, requireUser, requireAdmin)
	e.POST("/create_user", pageHandler.CreateUser, requireUser, requireAdmin)
	e.GET("/initiate_reset_password", pageHandler.InitiateResetForm, requireUser, requireAdmin)
	e.POST("/initiate_reset_password", pageHandler.InitiateReset, requireUser, requireAdmin)
	for _, prefix := range []string{"/reset_password/", "/reset/"} {
		e.GET(prefix+":token", pageHandler.ResetPasswordForm)
		e.POST(prefix+":token", pageHandler.ResetPassword)
	}
	e.GET("/edit_account", pageHandler.EditAccountForm, requireUser)
	e.POST("/edit_account", pageHandler.EditAccount, requireUser)
	e.GET("/uploads/upload-test", pageHandler.UploadTest, requireUser)

	// --- Auth API ---
	authLimit := middleware.RateLimit(d.Limiter, "auth", d.LoginRateLimit, d.LoginRateWindow, d.Log)
	authAPI := e.Group("/api/auth")
	authAPI.POST("/login", authHandler.Login, authLimit)
	authAPI.POST("/logout", authHandler.Logout)
	authAPI.POST("/refresh", authHandler.Refresh, authLimit)
	authAPI.GET("/refresh/retry", authHandler.RefreshRetry)
	authAPI.GET("/keep-alive", authHandler.KeepAlive, requireUser)
	authAPI.GET("/session-valid", authHandler.SessionValid)

	// --- User management API ---
	e.POST("/api/users", userHandler.Create, requireAdmin)
	e.POST("/api/users/reset", userHandler.InitiateReset, requireAdmin)
	e.POST("/api/users/reset/:token", userHandler.CompleteReset)
	e.PATCH("/api/account", userHandler.EditAccount, requireUser)
	e.POST("/api/admin/reset-tokens/prune", userHandler.PruneResetTokens, requireAdmin)

	// --- Uploads ---
	e.POST("/api/uploads/upload-file", uploadHandler.Upload, requireUser)
	e.GET("/api/uploads/:file_type", uploadHandler.List, requireUser)
	e.DELETE("/api/uploads/:file_type/:file_name", uploadHandler.Delete, requireAdmin)
	e.GET("/file/uploads/:file_type/:file_name", uploadHandler.Download, requireUser)

	// --- Static assets ---
	if d.Static != nil {
		e.StaticFS("/static", d.Static)
	}
	if d.JSAppPath != "" {
		e.Static("/app", d.JSAppPath)
	}

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(d.Checks)
	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	if d.Gatherer != nil {
		e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))
	} else {
		e.GET("/metrics", echoprometheus.NewHandler())
	}

	if d.EnableSwagger {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				evt = log.Error().Err(v.Error)
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
