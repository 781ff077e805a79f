// Package api implements the HTTP boundary of the service. Handlers stay
// thin: they validate parameters, call the upstream client or the datastore
// and translate typed errors into status codes.
package api

import (
	"crypto/rand"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gocache "github.com/patrickmn/go-cache"

	"github.com/insectos/insectos-go/internal/conf"
	"github.com/insectos/insectos-go/internal/datastore"
	"github.com/insectos/insectos-go/internal/errors"
	"github.com/insectos/insectos-go/internal/inaturalist"
	"github.com/insectos/insectos-go/internal/logging"
	"github.com/insectos/insectos-go/internal/observability"
)

// catalogCacheTTL bounds how long catalog rows are served from memory. The
// tables change rarely, an hour of staleness is acceptable.
const catalogCacheTTL = 1 * time.Hour

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings
	INat     *inaturalist.Client

	catalogCache   *gocache.Cache
	metrics        *observability.Metrics
	apiLogger      *slog.Logger
	apiLevelVar    *slog.LevelVar
	apiLoggerClose func() error
}

// New creates a new API controller and registers all routes on e.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	inat *inaturalist.Client, metrics *observability.Metrics) (*Controller, error) {

	c := &Controller{
		Echo:         e,
		DS:           ds,
		Settings:     settings,
		INat:         inat,
		catalogCache: gocache.New(catalogCacheTTL, 10*time.Minute),
		metrics:      metrics,
	}

	// Initialize structured logger for API operations
	logFilePath := filepath.Join("logs", "api.log")
	c.apiLevelVar = new(slog.LevelVar)
	c.apiLevelVar.Set(slog.LevelInfo)

	apiLogger, closeFunc, err := logging.NewFileLogger(logFilePath, "api", c.apiLevelVar)
	if err != nil {
		log.Printf("Failed to initialize API file logger: %v", err)
		apiLogger = logging.ForService("api")
		closeFunc = func() error { return nil }
	}
	c.apiLogger = apiLogger
	c.apiLoggerClose = closeFunc

	e.Use(middleware.Recover())
	e.Use(c.LoggingMiddleware())
	e.Use(c.BearerTokenMiddleware())

	c.Group = e.Group("/api/v1")
	c.initRoutes()

	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	return c, nil
}

// initRoutes registers the route handlers per concern.
func (c *Controller) initRoutes() {
	c.initInsectRoutes()
	c.initObservationRoutes()
	c.initPhotoRoutes()
	c.initCatalogRoutes()
	c.initCacheRoutes()

	c.Group.GET("/health", c.Health)
}

// Shutdown closes controller resources.
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			log.Printf("Error closing API logger: %v", err)
		}
	}
}

// LoggingMiddleware logs every request with duration and status.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			c.apiLogger.Info("API request",
				"method", ctx.Request().Method,
				"path", ctx.Request().URL.Path,
				"status", ctx.Response().Status,
				"ip", ctx.RealIP(),
				"duration_ms", time.Since(start).Milliseconds())
			return err
		}
	}
}

// BearerTokenMiddleware extracts a bearer token from the Authorization
// header and stores it in the request context. Tokens are relayed to
// handlers, there are no login or session flows here.
func (c *Controller) BearerTokenMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			const prefix = "Bearer "
			if len(header) > len(prefix) && header[:len(prefix)] == prefix {
				ctx.Set("bearer_token", header[len(prefix):])
			}
			return next(ctx)
		}
	}
}

// ErrorResponse represents the JSON structure of API error responses
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short random identifier for error tracking
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	c.apiLogger.Error("API Error",
		"correlation_id", errorResp.CorrelationID,
		"message", message,
		"error", errorResp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())

	return ctx.JSON(code, errorResp)
}

// HandleServiceError derives the status code from the error category and
// responds with the standard error shape.
func (c *Controller) HandleServiceError(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, statusForError(err))
}

// statusForError maps the error taxonomy to HTTP status codes. An upstream
// status code recorded in the error context wins over the category mapping.
func statusForError(err error) int {
	if code := errors.StatusCode(err); code >= 400 {
		return code
	}
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case errors.IsCategory(err, errors.CategoryNetwork), errors.IsCategory(err, errors.CategoryTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Health reports service liveness.
func (c *Controller) Health(ctx echo.Context) error {
	items, ttl := c.INat.CacheStats()
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":            "healthy",
		"cache_items":       items,
		"cache_ttl_seconds": ttl.Seconds(),
	})
}
