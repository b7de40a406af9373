package server

import (
	"context"
	"net/http"

	"membership-sync/internal/handler"
	appmiddleware "membership-sync/internal/middleware"
	"membership-sync/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	echo        *echo.Echo
	hookHandler *handler.HookHandler
	hookSecret  string
	gatherer    prometheus.Gatherer
}

func NewServer(hookService service.HookService, hookSecret string, gatherer prometheus.Gatherer) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())

	s := &Server{
		echo:        e,
		hookHandler: handler.NewHookHandler(hookService),
		hookSecret:  hookSecret,
		gatherer:    gatherer,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- host system hooks --------
	hooks := api.Group("/hooks", appmiddleware.HookAuth(s.hookSecret))
	hooks.POST("/:event", s.hookHandler.Receive)

	if s.gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
