package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/moyoez/kbupload/api/controllers"
	"github.com/moyoez/kbupload/api/middlewares"
	"github.com/moyoez/kbupload/api/models"
	"github.com/moyoez/kbupload/api/notifyhub"
	"github.com/moyoez/kbupload/tool"
)

// mutating routes share one limiter
const (
	mutateRPS   = 20
	mutateBurst = 40
)

// Deps are the components the control API serves.
type Deps struct {
	Batch    controllers.Batch
	Uploader controllers.Submitter
	Previews controllers.PreviewLookup
	Results  *models.ResultStore
	Hub      *notifyhub.Hub // nil disables /notify-ws
	Accepted []string
}

// Server is the local control API.
type Server struct {
	host   string
	port   int
	deps   Deps
	engine *gin.Engine
	server *http.Server
	mu     sync.RWMutex
}

// NewServer binds the control API to host:port. An empty host means 127.0.0.1.
func NewServer(host string, port int, deps Deps) *Server {
	if host == "" {
		host = "127.0.0.1"
	}
	if deps.Results == nil {
		deps.Results = models.NewResultStore()
	}
	return &Server{host: host, port: port, deps: deps}
}

// Handler builds the gin engine without starting a listener.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		s.engine = s.setupRoutes()
	}
	return s.engine
}

func (s *Server) setupRoutes() *gin.Engine {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middlewares.AllowAllCORS())

	filesCtrl := controllers.NewFilesController(s.deps.Batch, s.deps.Uploader, s.deps.Accepted)
	uploadCtrl := controllers.NewUploadController(s.deps.Uploader, s.deps.Results)
	previewCtrl := controllers.NewPreviewController(s.deps.Previews)
	statusCtrl := controllers.NewStatusController(s.deps.Batch, s.deps.Uploader, s.deps.Previews, s.deps.Hub != nil)
	limit := middlewares.RateLimit(mutateRPS, mutateBurst)

	self := engine.Group("/api/self/v1", middlewares.OnlyAllowLocal)
	{
		self.GET("/files", filesCtrl.HandleList)
		self.POST("/files", limit, filesCtrl.HandleAdd)
		self.DELETE("/files", limit, filesCtrl.HandleClear)
		self.DELETE("/files/:index", limit, filesCtrl.HandleRemove)
		self.GET("/files/:index/qr", filesCtrl.HandleEntryQRCode)
		self.POST("/upload", limit, uploadCtrl.HandleUpload)
		self.GET("/results/:id", uploadCtrl.HandleResult)
		self.GET("/preview/:token", previewCtrl.HandlePreview)
		self.GET("/create-qr-code", controllers.GenerateQRCode) // same params as api.qrserver.com
		self.GET("/status", statusCtrl.UserStatus)
		if s.deps.Hub != nil {
			self.GET("/notify-ws", notifyhub.HandleNotifyWS(s.deps.Hub))
		}
	}
	return engine
}

// httpServer returns the listener-side server, created on first use so that a
// Shutdown racing ahead of Start still stops it.
func (s *Server) httpServer() *http.Server {
	handler := s.Handler()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		s.server = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
			Handler: handler,
		}
	}
	return s.server
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	srv := s.httpServer()
	tool.DefaultLogger.Infof("[Server] Starting control API on http://%s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control API stopped: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	tool.DefaultLogger.Infof("[Server] Shutting down control API")
	return s.httpServer().Shutdown(ctx)
}
