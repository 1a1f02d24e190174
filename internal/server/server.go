// Package server binds the flashcard file server and runs it until the
// context is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/bilgisen/cardserve/internal/config"
	"github.com/bilgisen/cardserve/internal/logger"
	"github.com/bilgisen/cardserve/internal/middleware"
	"github.com/bilgisen/cardserve/internal/static"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"
)

// PortInUseError reports that another process already listens on the port.
type PortInUseError struct {
	Port int
	Err  error
}

func (e *PortInUseError) Error() string {
	return fmt.Sprintf("port %d is already in use", e.Port)
}

func (e *PortInUseError) Unwrap() error {
	return e.Err
}

// Server serves the content root over HTTP.
type Server struct {
	cfg    *config.Config
	app    *fiber.App
	out    io.Writer
	access io.Writer
	log    *zerolog.Logger
	open   func(url string) error
}

// Option customizes a Server.
type Option func(*Server)

// WithOutput sets where the banner and status messages are printed.
func WithOutput(w io.Writer) Option {
	return func(s *Server) { s.out = w }
}

// WithAccessLog sets where request lines are written.
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) { s.access = w }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithBrowserOpener replaces the function used to open the landing page.
func WithBrowserOpener(open func(url string) error) Option {
	return func(s *Server) { s.open = open }
}

// New builds the fiber app: access log, panic recovery and the static file
// handler, outermost first, behind the response header and method guards.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		out:    os.Stdout,
		access: os.Stdout,
		log:    logger.Get(),
		open:   browser.OpenURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.out = &syncWriter{w: s.out}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ServerHeader:          "cardserve",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		ErrorHandler:          middleware.NewErrorHandler(s.log),
	})

	accessLog := logger.NewAccessLogger(s.access)
	accessCfg := middleware.AccessLogConfig{Logger: &accessLog}
	s.app.Use(middleware.AccessLog(accessCfg))
	s.app.Use(recover.New())

	static.Register(s.app, static.Config{Root: cfg.Root})

	// Decorate below fiber so replies it writes outside the middleware chain
	// (unknown methods, unparsable requests) carry the headers too.
	srv := s.app.Server()
	srv.Handler = middleware.ResponseHeaders(
		middleware.UnknownMethods(srv.Handler, middleware.MethodsConfig{AccessLog: accessCfg}),
	)
	srv.ErrorHandler = middleware.ErrorHeaders(srv.ErrorHandler)

	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// URL is the base address printed in the banner.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.cfg.Port)
}

// LandingURL is the page opened in the browser.
func (s *Server) LandingURL() string {
	return s.URL() + s.cfg.LandingPage
}

// Banner prints the startup banner.
func (s *Server) Banner() {
	rule := strings.Repeat("=", 50)
	fmt.Fprintln(s.out, rule)
	fmt.Fprintf(s.out, "  %s\n", s.cfg.Title)
	fmt.Fprintln(s.out, rule)
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "Server address: %s\n", s.URL())
	fmt.Fprintf(s.out, "Open in your browser: %s\n", s.LandingURL())
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Press Ctrl+C to stop the server")
	fmt.Fprintln(s.out)
}

// Bind listens on the configured port on all interfaces. It tries once.
func (s *Server) Bind(ctx context.Context) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		if isAddrInUse(err) {
			return nil, &PortInUseError{Port: s.cfg.Port, Err: err}
		}
		return nil, fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	return ln, nil
}

// Run prints the banner, binds, opens the browser and serves until ctx is
// done. A cancelled context is a clean stop and returns nil.
func (s *Server) Run(ctx context.Context) error {
	s.Banner()

	ln, err := s.Bind(ctx)
	if err != nil {
		return err
	}
	defer ln.Close()

	if s.cfg.OpenBrowser {
		s.launchBrowser()
	}

	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Server started, waiting for requests...")
	fmt.Fprintln(s.out, strings.Repeat("-", 50))

	s.log.Info().
		Int("port", s.cfg.Port).
		Str("root", s.cfg.Root).
		Msg("Serving files")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.app.Listener(ln)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return errors.New("server stopped unexpectedly")
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		s.log.Error().Err(err).Msg("Server forced to shutdown")
	}
	_ = ln.Close()
	<-serveErr

	return nil
}

// launchBrowser opens the landing page in the background. Failure only
// produces a warning.
func (s *Server) launchBrowser() {
	url := s.LandingURL()
	fmt.Fprintf(s.out, "Trying to open the browser: %s\n", url)

	go func() {
		if err := s.open(url); err != nil {
			s.log.Warn().Err(err).Str("url", url).Msg("Could not open the browser")
			fmt.Fprintf(s.out, "Could not open the browser automatically: %v\n", err)
			fmt.Fprintln(s.out, "Please open the address above manually")
		}
	}()
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
