package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/docvault/internal/apperr"
	"github.com/dharsanguruparan/docvault/internal/documents"
)

// readBody returns the request body, capped at maxBodyBytes.
func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("request body must be at most %d bytes", maxBodyBytes))
	}
	return body, nil
}

func documentID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id must be a positive integer")
	}
	return id, nil
}

func (s *Server) handleUpload(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	in, err := documents.ParseUploadRequest(body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	doc, err := s.deps.Documents.Upload(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, doc)
}

func (s *Server) handleTrash(c *gin.Context) {
	id, err := documentID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.deps.Documents.Trash(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"message": "Trashed"})
}

func (s *Server) handleRestore(c *gin.Context) {
	id, err := documentID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.deps.Documents.Restore(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"message": "Restored"})
}

func (s *Server) handleSetSummary(c *gin.Context) {
	id, err := documentID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	body, err := readBody(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	summary, err := documents.ParseSummaryRequest(body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.deps.Documents.SetSummary(c.Request.Context(), id, summary); err != nil {
		s.respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"message": "Summary saved"})
}

func (s *Server) handleGetSummary(c *gin.Context) {
	id, err := documentID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	summary, err := s.deps.Documents.GetSummary(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"summary": summary})
}

func (s *Server) handleAddTags(c *gin.Context) {
	id, err := documentID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	body, err := readBody(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	tags, err := documents.ParseTagsRequest(body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	added, err := s.deps.Documents.AddTags(c.Request.Context(), id, tags)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"added": added})
}

func (s *Server) handleListTags(c *gin.Context) {
	id, err := documentID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	tags, err := s.deps.Documents.ListTags(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"tags": tags})
}

func (s *Server) handleDocumentsByTag(c *gin.Context) {
	docs, err := s.deps.Documents.DocumentsByTag(c.Request.Context(), c.Param("tag"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) handleProcess(c *gin.Context) {
	id, err := documentID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	body, err := readBody(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	in, err := documents.ParseProcessRequest(body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	res, err := s.deps.Documents.Process(c.Request.Context(), id, in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"message": "Document processed", "id": res.ID, "slug": res.Slug})
}

func (s *Server) handleSearch(c *gin.Context) {
	results, err := s.deps.Documents.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleConvert(c *gin.Context) {
	id, err := documentID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	taskID, err := s.deps.Documents.RequestConversion(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondJSON(c, http.StatusAccepted, gin.H{"taskId": taskID})
}
