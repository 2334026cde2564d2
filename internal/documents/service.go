// Package documents implements document registration, tagging, the processing
// pipeline and search on top of a repository.Store.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/docvault/internal/apperr"
	"github.com/dharsanguruparan/docvault/internal/model"
	"github.com/dharsanguruparan/docvault/internal/queue"
	"github.com/dharsanguruparan/docvault/internal/repository"
)

// ConversionQueue accepts conversion jobs.
type ConversionQueue interface {
	EnqueueConvert(ctx context.Context, payload queue.ConvertPayload) (string, error)
}

// Service contains business logic for documents.
type Service struct {
	store repository.Store
	queue ConversionQueue
	log   logrus.FieldLogger
}

// NewService constructs a Service.
func NewService(store repository.Store, q ConversionQueue, log logrus.FieldLogger) *Service {
	return &Service{store: store, queue: q, log: log}
}

// Upload registers a document whose bytes already live in object storage.
func (s *Service) Upload(ctx context.Context, in UploadInput) (model.Document, error) {
	doc, err := s.store.InsertDocument(ctx, model.NewDocument{
		Filename:   in.Filename,
		FileURL:    in.FileURL,
		GroupID:    in.GroupID,
		UploaderID: in.UploaderID,
	})
	if err != nil {
		return model.Document{}, translate(err, "failed to store document")
	}
	s.log.WithFields(logrus.Fields{"document_id": doc.ID, "filename": doc.Filename}).Info("document uploaded")
	return doc, nil
}

// Trash soft-deletes a processed document.
func (s *Service) Trash(ctx context.Context, id int64) error {
	if err := s.store.TransitionStatus(ctx, id, model.StatusTrashed); err != nil {
		return translate(err, "failed to trash document")
	}
	return nil
}

// Restore returns a trashed document to the processed state. Documents that
// are not trashed are reported as a conflict.
func (s *Service) Restore(ctx context.Context, id int64) error {
	if err := s.store.RestoreDocument(ctx, id); err != nil {
		return translate(err, "failed to restore document")
	}
	return nil
}

// SetSummary replaces the summary; nil clears it.
func (s *Service) SetSummary(ctx context.Context, id int64, summary *string) error {
	if err := s.store.UpdateSummary(ctx, id, summary); err != nil {
		return translate(err, "failed to save summary")
	}
	return nil
}

// GetSummary returns the stored summary, nil when none is set.
func (s *Service) GetSummary(ctx context.Context, id int64) (*string, error) {
	summary, err := s.store.GetSummary(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load summary")
	}
	return summary, nil
}

// AddTags attaches tags to an existing document and returns the canonical
// names that are now attached, duplicates removed.
func (s *Service) AddTags(ctx context.Context, id int64, tags []string) ([]string, error) {
	names := model.CanonicalTagNames(tags)
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		if _, err := q.LockDocument(ctx, id); err != nil {
			return err
		}
		return attachTags(ctx, q, id, names)
	})
	if err != nil {
		return nil, translate(err, "failed to add tags")
	}
	return names, nil
}

// ListTags returns the canonical tag names attached to a document.
func (s *Service) ListTags(ctx context.Context, id int64) ([]string, error) {
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return nil, translate(err, "failed to list tags")
	}
	names, err := s.store.ListTagNames(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to list tags")
	}
	return names, nil
}

// DocumentsByTag lists documents carrying tag.
func (s *Service) DocumentsByTag(ctx context.Context, tag string) ([]model.Document, error) {
	if model.CanonicalTagName(tag) == "" {
		return nil, apperr.Validation("tag must not be blank")
	}
	docs, err := s.store.ListDocumentsByTag(ctx, tag)
	if err != nil {
		return nil, translate(err, "failed to search documents")
	}
	return docs, nil
}

// Process stores extracted text and summary, resolves the slug, marks the
// document processed and attaches tags, all in one transaction. Absent text
// fields are stored as NULL. Any failure rolls back every step.
func (s *Service) Process(ctx context.Context, id int64, in ProcessInput) (ProcessResult, error) {
	var result ProcessResult
	names := model.CanonicalTagNames(in.Tags)
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		doc, err := q.LockDocument(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status == model.StatusTrashed {
			return fmt.Errorf("document %d is trashed: %w", id, repository.ErrInvalidTransition)
		}
		slug := model.DeriveSlug(doc.Filename, doc.ID)
		if doc.Slug != nil && *doc.Slug != "" {
			slug = *doc.Slug
		}
		if err := q.UpdateProcessed(ctx, id, model.ProcessUpdate{
			ExtractedText: in.ExtractedText,
			Summary:       in.Summary,
			Slug:          slug,
		}); err != nil {
			return err
		}
		if err := attachTags(ctx, q, id, names); err != nil {
			return err
		}
		result = ProcessResult{ID: id, Slug: slug}
		return nil
	})
	if err != nil {
		return ProcessResult{}, translate(err, "failed to process document")
	}
	s.log.WithFields(logrus.Fields{"document_id": id, "slug": result.Slug, "tags": len(names)}).Info("document processed")
	return result, nil
}

// Search runs a ranked full-text query. Blank queries are rejected.
func (s *Service) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("q must not be empty")
	}
	results, err := s.store.SearchDocuments(ctx, query, repository.MaxSearchResults)
	if err != nil {
		return nil, translate(err, "failed to search documents")
	}
	return results, nil
}

// RequestConversion enqueues a DOCX conversion of the document's stored file.
func (s *Service) RequestConversion(ctx context.Context, id int64) (string, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return "", translate(err, "failed to queue conversion")
	}
	if doc.Status == model.StatusTrashed {
		return "", apperr.Conflict("document is trashed", nil)
	}
	taskID, err := s.queue.EnqueueConvert(ctx, queue.ConvertPayload{
		DocumentID: doc.ID,
		ObjectKey:  doc.FileURL,
		FileName:   doc.Filename,
	})
	if err != nil {
		return "", apperr.Internal("failed to queue conversion", err)
	}
	s.log.WithFields(logrus.Fields{"document_id": id, "task_id": taskID}).Info("conversion queued")
	return taskID, nil
}

func attachTags(ctx context.Context, q repository.Querier, documentID int64, names []string) error {
	for _, name := range names {
		tagID, err := q.GetOrCreateTag(ctx, name)
		if err != nil {
			return err
		}
		if err := q.AttachTag(ctx, documentID, tagID); err != nil {
			return err
		}
	}
	return nil
}

// translate maps repository errors onto client-facing application errors.
func translate(err error, internalMsg string) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("document not found")
	case errors.Is(err, repository.ErrInvalidTransition):
		return apperr.Conflict("document status does not allow this operation", err)
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict("request conflicts with stored data", err)
	case errors.Is(err, repository.ErrInvalidTagName):
		return apperr.Validation("tag names must not be blank")
	default:
		return apperr.Internal(internalMsg, err)
	}
}
