// Package api serves the localhost control API a rendering layer uses to drive
// the download session.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vidslicer/vidslicer/internal/backend"
	"github.com/vidslicer/vidslicer/internal/media"
	"github.com/vidslicer/vidslicer/internal/session"
)

// Session is the part of the session controller the API drives.
type Session interface {
	Snapshot() session.Snapshot
	History() []media.Clip
	SetURL(url string)
	Inspect(ctx context.Context, url string) error
	SelectFormat(id media.FormatID) error
	ToggleAudioOnly(on bool)
	SelectAudioExt(ext string)
	SetTrimRange(start, end float64) error
	Download(ctx context.Context) error
	SaveClip(ctx context.Context) error
	RefreshHistory(ctx context.Context)
}

var _ Session = (*session.Controller)(nil)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port        int
	Session     Session
	Tokens      TokenStore
	Health      *backend.CachedHealth
	HistoryMode string
	DownloadDir string
	Version     string
	Logger      *slog.Logger
	StartTime   time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      0,
			IdleTimeout:       60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Serve runs the server on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	err := s.httpServer.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
