// Package diag serves the orchestrator's operator-facing HTTP surface:
// a liveness check and the Prometheus scrape endpoint. Nothing else —
// there is no client-facing API here, since clients speak to the core
// exclusively over the message transport.
//
// Grounded on the teacher's cmd/main.go router setup (gin.Engine,
// gin.Recovery() middleware, a bare GET /health returning a small JSON
// status object) stripped down to the two routes this domain actually
// needs.
package diag

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agora-project/agorad/internal/logger"
)

// Status reports what /healthz renders: the number of applications
// currently registered and the process's overall readiness.
type Status func() (applications int, ready bool)

// Server is the diagnostics HTTP server.
type Server struct {
	httpServer *http.Server
}

// New builds a gin.Engine exposing /healthz and /metrics against reg,
// bound to addr. status is polled once per request.
func New(addr string, reg *prometheus.Registry, status Status) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		apps, ready := status()
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":       readyString(ready),
			"service":      "agorad",
			"applications": apps,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return &Server{httpServer: &http.Server{Addr: addr, Handler: router}}
}

func readyString(ready bool) string {
	if ready {
		return "healthy"
	}
	return "recovering"
}

// Start runs the HTTP server in the background and returns at once,
// without waiting for the listener to be bound. ListenAndServe errors,
// a failure to bind included, are logged, not returned, matching the
// teacher's fire-and-forget server goroutine.
func (s *Server) Start() {
	log := logger.Diag()
	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("diagnostics server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("diagnostics server stopped unexpectedly")
		}
	}()
}

// Shutdown gracefully stops the HTTP server, waiting up to timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
