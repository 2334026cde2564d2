// Package api exposes the document service over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/docvault/internal/config"
	"github.com/dharsanguruparan/docvault/internal/documents"
	"github.com/dharsanguruparan/docvault/internal/ocr"
	"github.com/dharsanguruparan/docvault/internal/s3storage"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// ObjectReader streams stored objects to clients.
type ObjectReader interface {
	Open(ctx context.Context, key string) (io.ReadCloser, s3storage.ObjectInfo, error)
}

// Deps are the services behind the HTTP routes.
type Deps struct {
	Documents *documents.Service
	OCR       *ocr.Pipeline
	Objects   ObjectReader
}

// Server exposes HTTP endpoints for documents, OCR and downloads.
type Server struct {
	cfg    *config.Config
	deps   Deps
	log    logrus.FieldLogger
	engine *gin.Engine
	server *http.Server
	once   sync.Once
}

// New constructs a Server and registers its routes.
func New(cfg *config.Config, deps Deps, log logrus.FieldLogger) *Server {
	s := &Server{cfg: cfg, deps: deps, log: log}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(
		requestID(),
		requestLogger(s.log),
		recovery(s.log),
		cors(),
	)
	bounded := timeout(s.cfg.RequestTimeout)

	r.GET("/healthz", s.handleHealth)

	docs := r.Group("/documents", bounded)
	docs.POST("/upload", s.handleUpload)
	docs.GET("/search", s.handleSearch)
	docs.GET("/search/by-tag/:tag", s.handleDocumentsByTag)
	docs.PUT("/:id/trash", s.handleTrash)
	docs.PUT("/:id/restore", s.handleRestore)
	docs.POST("/:id/summary", s.handleSetSummary)
	docs.GET("/:id/summary", s.handleGetSummary)
	docs.POST("/:id/tags", s.handleAddTags)
	docs.GET("/:id/tags", s.handleListTags)
	docs.POST("/:id/process", s.handleProcess)
	docs.POST("/:id/convert", s.handleConvert)

	r.POST("/ocr/process", timeout(s.ocrTimeout()), s.handleOCR)
	r.GET("/storage/download", bounded, s.handleDownload)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

// ocrTimeout bounds an OCR request: the usual request budget covers the
// download and the store, OCR_TIMEOUT covers the recognizer.
func (s *Server) ocrTimeout() time.Duration {
	if s.cfg.RequestTimeout <= 0 {
		return 0
	}
	return s.cfg.RequestTimeout + max(s.cfg.OCRTimeout, 0)
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.engine,
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.WithField("address", s.cfg.Address).Info("api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}
