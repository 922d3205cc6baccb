// Package ingest is a reference receiver for batch uploads. It stores accepted
// files under a directory and answers in the shape the uploader expects.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/moyoez/kbupload/api/middlewares"
	"github.com/moyoez/kbupload/tool"
)

// Processor runs after a file is saved, e.g. to index it. A returned error marks the file failed.
type Processor func(ctx context.Context, path string) error

type Option func(*Server)

func WithProcessor(p Processor) Option {
	return func(s *Server) { s.process = p }
}

func WithAcceptedExtensions(exts []string) Option {
	return func(s *Server) {
		if len(exts) > 0 {
			s.accepted = exts
		}
	}
}

type Server struct {
	port     int
	dir      string
	accepted []string
	process  Processor
	saveMu   sync.Mutex // serializes name selection and creation
	server   *http.Server
	mu       sync.RWMutex
}

// NewServer creates the receiver. dir is created if missing.
func NewServer(port int, dir string, opts ...Option) (*Server, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	s := &Server{
		port:     port,
		dir:      dir,
		accepted: tool.AcceptedExtensions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Server) Dir() string { return s.dir }

// Handler returns the gin engine serving /upload, /files and /health.
func (s *Server) Handler() http.Handler {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middlewares.AllowAllCORS())

	engine.POST("/upload", s.HandleUpload)
	engine.GET("/files", s.HandleListFiles)
	engine.GET("/health", s.HandleHealth)
	return engine
}

func (s *Server) httpServer() *http.Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		s.server = &http.Server{
			Addr:    fmt.Sprintf(":%d", s.port),
			Handler: s.Handler(),
		}
	}
	return s.server
}

func (s *Server) Start() error {
	srv := s.httpServer()
	tool.DefaultLogger.Infof("[Ingest] Receiving uploads on http://0.0.0.0:%d, saving to %s", s.port, s.dir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ingest server stopped: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	tool.DefaultLogger.Infof("[Ingest] Shutting down")
	return s.httpServer().Shutdown(ctx)
}
