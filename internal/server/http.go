package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jeongseonghan/iqmodem/internal/logging"
)

// Server is the HTTP server for the modem API.
type Server struct {
	router     *gin.Engine
	handler    *Handlers
	httpServer *http.Server
}

// NewServer creates a new HTTP server listening on addr.
func NewServer(addr string, handler *Handlers) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	s := &Server{
		router:  router,
		handler: handler,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: router,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		api.GET("/status", s.handler.HandleStatus)
		api.GET("/constellation", s.handler.HandleConstellation)
		api.POST("/modulate", s.handler.HandleModulate)
		api.POST("/demodulate", s.handler.HandleDemodulate)
		api.POST("/trials", s.handler.HandleRunTrial)
		api.GET("/trials", s.handler.HandleGetTrials)
		api.GET("/trials/:id", s.handler.HandleGetTrial)
		api.GET("/stats", s.handler.HandleGetStats)
	}

	s.router.GET("/ws", s.handler.HandleWebSocket)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logging.Infof("server", "Starting server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.handler.Hub().BroadcastStatus("shutdown", "Server shutting down")
	return s.httpServer.Shutdown(ctx)
}
