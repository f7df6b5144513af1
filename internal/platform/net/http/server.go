// Package http wraps the stdlib server and chi router behind small seams so
// service modules depend on the platform, not on a web framework
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Server owns an http.Server and its lifecycle
type Server struct {
	log  zerolog.Logger
	http *http.Server
}

// ServerOpts configure NewServer. Zero values get sane production defaults
type ServerOpts struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// NewServer builds a Server serving h on opts.Addr
func NewServer(log zerolog.Logger, h http.Handler, opts ServerOpts) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}

	return &Server{
		log: log,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           h,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
			ReadTimeout:       opts.ReadTimeout,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       opts.IdleTimeout,
		},
	}
}

// Addr returns the configured listen address
func (s *Server) Addr() string { return s.http.Addr }

// Start serves until the listener fails or Shutdown is called.
// http.ErrServerClosed is swallowed; it is the normal shutdown signal
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http shutting down")
	return s.http.Shutdown(ctx)
}

// Run serves until ctx is canceled, then drains with a grace timeout
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	errc := make(chan error, 1)
	go func() { errc <- s.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := s.Shutdown(shCtx); err != nil {
		return err
	}
	return <-errc
}
