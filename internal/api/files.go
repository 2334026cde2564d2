package api

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/docvault/internal/apperr"
	"github.com/dharsanguruparan/docvault/internal/ocr"
	"github.com/dharsanguruparan/docvault/internal/s3storage"
)

func (s *Server) handleOCR(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	req, err := ocr.ParseRequest(body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	res, err := s.deps.OCR.Process(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, res)
}

// handleDownload streams an object with its stored metadata as an attachment.
func (s *Server) handleDownload(c *gin.Context) {
	key := strings.TrimSpace(c.Query("path"))
	if key == "" {
		s.respondError(c, apperr.Validation("path is required"))
		return
	}
	body, info, err := s.deps.Objects.Open(c.Request.Context(), key)
	if errors.Is(err, s3storage.ErrNotFound) {
		s.respondError(c, apperr.NotFound("file not found"))
		return
	}
	if err != nil {
		s.respondError(c, apperr.Internal("download failed", err))
		return
	}
	defer body.Close()

	extra := map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(key)}),
	}
	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, body, extra)
}
