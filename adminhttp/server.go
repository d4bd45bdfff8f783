// Package adminhttp is the read-only introspection surface shared by every
// engine wired into a netkit process: /health, /metrics, and per-engine
// /api/... listings. Grounded on the teacher's api.go (Echo app
// construction, RequestLoggerWithConfig, middleware.Recover(),
// jsonErrorHandler) and internal/httpapi/server.go.
package adminhttp

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RoomsSource reports conference room occupancy for /api/rooms.
type RoomsSource interface {
	RoomCount() int
}

// TopicsSource reports pub/sub subscription counts for /api/topics.
type TopicsSource interface {
	TopicCount() int
	SubscriberCount() int
}

// SourcesSource reports livestream catalog entries for /api/sources.
type SourcesSource interface {
	SourceNames() []string
}

// Server is an Echo-backed HTTP introspection endpoint. Any of Rooms,
// Topics, Sources may be nil, since a given process may wire only a subset
// of engines: /metrics then reports zero for that engine's counters, and
// the engine's /api/... route answers 503 with a JSON error body.
type Server struct {
	echo *echo.Echo

	Rooms   RoomsSource
	Topics  TopicsSource
	Sources SourcesSource

	startedAt time.Time
}

// NewServer constructs an adminhttp.Server with routes registered.
func NewServer() *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("admin request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = jsonErrorHandler

	s := &Server{echo: e, startedAt: time.Now()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", s.handleMetrics)
	s.echo.GET("/api/rooms", s.handleRooms)
	s.echo.GET("/api/topics", s.handleTopics)
	s.echo.GET("/api/sources", s.handleSources)
}

// Run starts the HTTP server on addr and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Printf("[adminhttp] server error: %v", err)
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		log.Printf("[adminhttp] shutdown: %v", err)
	}
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status  string      `json:"status"`
	Uptime  string      `json:"uptime"`
	Engines engineFlags `json:"engines"`
}

type engineFlags struct {
	Rooms   bool `json:"rooms"`
	Topics  bool `json:"topics"`
	Sources bool `json:"sources"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startedAt).String(),
		Engines: engineFlags{
			Rooms:   s.Rooms != nil,
			Topics:  s.Topics != nil,
			Sources: s.Sources != nil,
		},
	})
}

// MetricsResponse is the payload for GET /metrics.
type MetricsResponse struct {
	RoomCount       int `json:"room_count"`
	TopicCount      int `json:"topic_count"`
	SubscriberCount int `json:"subscriber_count"`
	SourceCount     int `json:"source_count"`
}

func (s *Server) handleMetrics(c echo.Context) error {
	m := MetricsResponse{}
	if s.Rooms != nil {
		m.RoomCount = s.Rooms.RoomCount()
	}
	if s.Topics != nil {
		m.TopicCount = s.Topics.TopicCount()
		m.SubscriberCount = s.Topics.SubscriberCount()
	}
	if s.Sources != nil {
		m.SourceCount = len(s.Sources.SourceNames())
	}
	return c.JSON(http.StatusOK, m)
}

// RoomsResponse is the payload for GET /api/rooms.
type RoomsResponse struct {
	Count int `json:"count"`
}

func (s *Server) handleRooms(c echo.Context) error {
	if s.Rooms == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "conference engine not wired")
	}
	return c.JSON(http.StatusOK, RoomsResponse{Count: s.Rooms.RoomCount()})
}

// TopicsResponse is the payload for GET /api/topics.
type TopicsResponse struct {
	TopicCount      int `json:"topic_count"`
	SubscriberCount int `json:"subscriber_count"`
}

func (s *Server) handleTopics(c echo.Context) error {
	if s.Topics == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "pubsub engine not wired")
	}
	return c.JSON(http.StatusOK, TopicsResponse{
		TopicCount:      s.Topics.TopicCount(),
		SubscriberCount: s.Topics.SubscriberCount(),
	})
}

// SourcesResponse is the payload for GET /api/sources.
type SourcesResponse struct {
	Sources []string `json:"sources"`
}

func (s *Server) handleSources(c echo.Context) error {
	if s.Sources == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "livestream engine not wired")
	}
	names := s.Sources.SourceNames()
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, SourcesResponse{Sources: names})
}

// jsonErrorHandler ensures all error responses have a consistent JSON
// body: {"error": "message"}. Mirrors the teacher's handler of the same
// name in api.go.
func jsonErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			c.NoContent(code) //nolint:errcheck
		} else {
			c.JSON(code, map[string]string{"error": msg}) //nolint:errcheck
		}
	}
}
