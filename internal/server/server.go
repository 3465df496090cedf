// Package server exposes the assistant and the station directory over an
// HTTP JSON API.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/evbot/internal/booking"
	"github.com/zulandar/evbot/internal/chat"
	"github.com/zulandar/evbot/internal/station"
)

const (
	defaultRequestTimeout = 10 * time.Second
	shutdownTimeout       = 5 * time.Second
)

// Server holds the collaborators behind the API handlers.
type Server struct {
	bot     *chat.Bot
	dir     station.Directory
	forms   *booking.Registry
	now     func() time.Time
	timeout time.Duration
	limiter *clientLimiter
}

// Opts holds parameters for creating a Server.
type Opts struct {
	Bot       *chat.Bot
	Directory station.Directory
	Forms     *booking.Registry
	Now       func() time.Time // defaults to time.Now
	Timeout   time.Duration    // per-request budget; defaults to 10s

	// RatePerMin limits /api requests per client IP; zero disables limiting.
	RatePerMin int
	RateBurst  int
}

// New creates a Server.
func New(opts Opts) (*Server, error) {
	if opts.Bot == nil {
		return nil, fmt.Errorf("server: bot is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("server: directory is required")
	}
	if opts.Forms == nil {
		return nil, fmt.Errorf("server: forms is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRequestTimeout
	}
	s := &Server{
		bot:     opts.Bot,
		dir:     opts.Directory,
		forms:   opts.Forms,
		now:     opts.Now,
		timeout: opts.Timeout,
	}
	if opts.RatePerMin > 0 {
		s.limiter = newClientLimiter(opts.RatePerMin, opts.RateBurst, opts.Now)
	}
	return s, nil
}

// Handler returns the gin engine serving every route.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router)
	return router
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Opts
	Port int
	Out  io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	s, err := New(opts.Opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	<-stopped
	return nil
}
