package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/librarydesk/lending-api/docs" // registers the swagger spec
	"github.com/librarydesk/lending-api/internal/api/handler"
	"github.com/librarydesk/lending-api/internal/api/middleware"
	"github.com/librarydesk/lending-api/internal/core/ports"
	"github.com/librarydesk/lending-api/internal/infrastructure/http/handlers"
)

const defaultRequestTimeout = 10 * time.Second

// Deps carries everything the HTTP layer needs from the composition root.
type Deps struct {
	Books ports.BookService
	Users ports.UserService
	Loans ports.LoanService

	// Readiness lists the dependencies GET /health/ready pings.
	Readiness []handlers.Dependency

	Logger         zerolog.Logger
	RequestTimeout time.Duration
	// EnableDocs serves /swagger/*. It is off in production.
	EnableDocs bool
	// Registry receives the HTTP request metrics. A fresh registry is used
	// when nil; /metrics also exposes the default registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	registry := d.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "library",
		Subsystem:  "http",
		Registerer: registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	e.Use(echomiddleware.ContextTimeout(timeout))

	// --- Catalog ---
	books := handler.NewBookHandler(d.Books)
	e.GET("/books", books.List)
	e.GET("/books/:id", books.Get)
	e.POST("/books", books.Create)
	e.PUT("/books/:id", books.Update)
	e.DELETE("/books/:id", books.Delete)

	// --- Users ---
	users := handler.NewUserHandler(d.Users)
	e.GET("/users", users.List)
	e.GET("/users/:id", users.Get)
	e.POST("/users", users.Create)
	e.PUT("/users/:id", users.Update)
	e.DELETE("/users/:id", users.Delete)

	// --- Ledger ---
	loans := handler.NewLoanHandler(d.Loans)
	e.GET("/loans", loans.List)
	e.GET("/loans/user/:userId", loans.ListByUser)
	e.GET("/loans/:id", loans.Get)
	e.POST("/loans", loans.Create, middleware.IdempotencyKey(handler.HeaderIdempotencyKey))
	e.POST("/loans/:id/return", loans.Return)

	// --- Health checks ---
	e.GET("/health", handlers.NewHealthHandler().Liveness)
	e.GET("/health/ready", handlers.NewHealthDependenciesHandler(d.Logger, d.Readiness...).Readiness)

	// --- Operations ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{registry, prometheus.DefaultGatherer},
	}))
	if d.EnableDocs {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	return e
}
