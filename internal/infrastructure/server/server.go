// Package server runs the optional status listener: Prometheus metrics,
// a health probe and a JSON snapshot of the relay.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/slowtty/internal/infrastructure/monitoring"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	listener net.Listener
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	snapshot monitoring.SnapshotFunc
	served   chan struct{}
}

// NewServer creates a status server. snapshot may be nil, in which case
// /status reports an empty snapshot.
func NewServer(metrics *monitoring.Metrics, snapshot monitoring.SnapshotFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if snapshot == nil {
		snapshot = func() monitoring.Snapshot { return monitoring.Snapshot{} }
	}

	// Debug mode prints route tables to stdout, which is the relayed stream.
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))

	s := &Server{
		router:   router,
		logger:   logger.Named("status"),
		metrics:  metrics,
		snapshot: snapshot,
		served:   make(chan struct{}),
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
	router.GET("/healthz", s.health)
	router.GET("/status", s.status)

	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

// Start listens on addr and serves in the background. It returns once the
// listener is bound, so a busy port is reported to the caller.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("status listener started", zap.String("addr", ln.Addr().String()))
	go func() {
		defer close(s.served)
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status listener failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, empty before Start
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server
func (s *Server) Close(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down status listener: %w", err)
	}
	<-s.served
	return nil
}
