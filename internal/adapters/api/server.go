// Package api expone el backtester por HTTP con gin.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/alejandrodnm/straddlebot/internal/application/session"
	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/observability"
	"github.com/alejandrodnm/straddlebot/internal/ports"
)

// Dataset es la serie ya enriquecida sobre la que corren los backtests del API.
// Se comparte entre requests y nunca se modifica.
type Dataset struct {
	Symbol   string
	Interval string
	Bars     []domain.Bar
}

// Deps agrupa las dependencias del servidor. Storage y Metrics son opcionales.
type Deps struct {
	Session        *session.Session
	Storage        ports.RunStorage
	Metrics        *observability.Metrics
	Dataset        Dataset
	Base           domain.StrategyParams
	Profile        string // nombre del perfil con el que se construyó Base
	AllowedOrigins []string
}

// Server sirve el API REST.
type Server struct {
	deps   Deps
	router *gin.Engine
}

// NewServer monta el router con todas las rutas.
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps}

	router := gin.New()
	router.Use(requestLogger())
	router.Use(recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.GET("/health", s.health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/profiles", s.listProfiles)
		v1.GET("/runs", s.listRuns)
		v1.GET("/runs/:id", s.getRun)
		v1.POST("/backtests", s.runBacktest)
	}

	router.NoRoute(func(c *gin.Context) {
		abortError(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})

	s.router = router
	return s
}

// Handler devuelve el http.Handler para montarlo en un http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("api: request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
		)
	}
}

// recovery convierte un panic en un 500 con el formato de error común.
func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error("api: panic", "path", c.Request.URL.Path, "recovered", recovered)
		abortError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
	})
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	policy := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	})
	return func(c *gin.Context) {
		policy.HandlerFunc(c.Writer, c.Request)
		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func abortError(c *gin.Context, status int, code, message string) {
	abortErrorDetails(c, status, code, message, nil)
}

func abortErrorDetails(c *gin.Context, status int, code, message string, details map[string]any) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorDetail{
		Code:    code,
		Message: message,
		Details: details,
	}})
}
