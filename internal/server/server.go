package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/api/middleware"
	"github.com/GriffinCanCode/termbridge/internal/bridge"
	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termbridge/internal/journal"
	"github.com/GriffinCanCode/termbridge/internal/lifecycle"
	"github.com/GriffinCanCode/termbridge/internal/surface"
	"github.com/GriffinCanCode/termbridge/internal/terminal"
)

// Sessions builds what one websocket session needs.
type Sessions interface {
	Bridge() bridge.Bridge
	Controller(b bridge.Bridge, s surface.Surface, g terminal.Geometry) *lifecycle.Controller
	Geometry() terminal.Geometry
}

// Options configures the sidecar.
type Options struct {
	Addr            string
	ExitWithSession bool
	Development     bool
	CORS            middleware.CORSConfig
	// RateLimit is nil when limiting is disabled.
	RateLimit *middleware.RateLimitConfig
	// Journal, when set, backs the recent sessions in /session.
	Journal *journal.Store
}

// Server wraps the HTTP server and the single session slot.
type Server struct {
	router   *gin.Engine
	http     *http.Server
	sessions Sessions
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	busy    bool
	started bool
	closing bool
	active  *lifecycle.Controller
	last    *lifecycle.Result
	done    chan lifecycle.Result
	upSince time.Time

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewServer creates the router and middleware stack.
func NewServer(sessions Sessions, opts Options, logger *zap.Logger, metrics *monitoring.Metrics) *Server {
	if !opts.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(opts.CORS))
	if opts.RateLimit != nil {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", opts.RateLimit.RequestsPerSecond),
			zap.Int("burst", opts.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(*opts.RateLimit))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:   router,
		sessions: sessions,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan lifecycle.Result, 1),
		upSince:  time.Now(),
		logger:   logger.Named("server"),
		metrics:  metrics,
	}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.GET("/", s.root)
	router.GET("/health", s.health)
	router.GET("/session", s.session)
	if opts.RateLimit != nil {
		router.GET("/pty", middleware.GlobalRateLimit(*opts.RateLimit), s.pty)
	} else {
		router.GET("/pty", s.pty)
	}
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Done delivers the result of the session that ends the process. It only
// fires with ExitWithSession.
func (s *Server) Done() <-chan lifecycle.Result {
	return s.done
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Signal forwards sig to the attached session. It reports false when no
// session is running.
func (s *Server) Signal(sig os.Signal) bool {
	s.mu.Lock()
	ctrl := s.active
	s.mu.Unlock()
	if ctrl == nil {
		return false
	}
	ctrl.Signal(sig)
	return true
}

// Shutdown ends the attached session, waits for it to close, and stops
// accepting connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()

	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		s.logger.Warn("session did not close before shutdown deadline")
	}

	return s.http.Shutdown(ctx)
}

// reserve claims the session slot.
func (s *Server) reserve() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closing:
		return false, "server is shutting down"
	case s.busy:
		return false, "a session is already attached"
	case s.started && s.opts.ExitWithSession:
		return false, "session already finished"
	}
	s.busy = true
	s.started = true
	s.wg.Add(1)
	return true, ""
}

func (s *Server) attach(ctrl *lifecycle.Controller) {
	s.mu.Lock()
	s.active = ctrl
	s.mu.Unlock()
}

// release frees the slot. A nil result means the session never started.
func (s *Server) release(res *lifecycle.Result) {
	s.mu.Lock()
	s.busy = false
	s.active = nil
	if res == nil {
		s.started = false
	} else {
		s.last = res
	}
	s.mu.Unlock()
	s.wg.Done()

	if res != nil && s.opts.ExitWithSession {
		select {
		case s.done <- *res:
		default:
		}
	}
}
