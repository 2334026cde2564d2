package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/docvault/internal/apperr"
	"github.com/dharsanguruparan/docvault/internal/model"
	pdfutil "github.com/dharsanguruparan/docvault/internal/pdf"
	"github.com/dharsanguruparan/docvault/internal/repository"
	"github.com/dharsanguruparan/docvault/internal/s3storage"
	"github.com/dharsanguruparan/docvault/internal/toolrun"
)

// Request asks for text extraction of one stored object.
type Request struct {
	DocumentID  int64
	StoragePath string
	Lang        string
}

// Result is returned to the client once the text has been stored.
type Result struct {
	DocumentID    int64  `json:"documentId"`
	ExtractedText string `json:"extractedText"`
}

// Downloader copies an object from storage into a local file.
type Downloader interface {
	DownloadToFile(ctx context.Context, key, dest string) error
}

// Recognizer turns an image or scanned PDF into text.
type Recognizer interface {
	Recognize(ctx context.Context, input, lang string) (string, error)
}

// DocumentStore is the slice of the repository the pipeline needs.
type DocumentStore interface {
	GetDocument(ctx context.Context, id int64) (model.Document, error)
	UpdateExtractedText(ctx context.Context, id int64, text string) error
}

// Pipeline downloads, extracts and stores document text.
type Pipeline struct {
	docs        DocumentStore
	objects     Downloader
	recognizer  Recognizer
	defaultLang string
	tempDir     string
	log         logrus.FieldLogger
}

// NewPipeline wires a Pipeline. tempDir is the parent of each run's scratch
// directory; empty means os.TempDir.
func NewPipeline(docs DocumentStore, objects Downloader, recognizer Recognizer, defaultLang, tempDir string, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		docs:        docs,
		objects:     objects,
		recognizer:  recognizer,
		defaultLang: defaultLang,
		tempDir:     tempDir,
		log:         log,
	}
}

// ParseRequest validates the body of an OCR request.
func ParseRequest(body []byte) (Request, error) {
	var raw struct {
		DocumentID    json.RawMessage `json:"documentId"`
		StoragePath   json.RawMessage `json:"storagePath"`
		TesseractLang json.RawMessage `json:"tesseractLang"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Request{}, apperr.Validation("request body must be a JSON object")
	}
	var (
		errs apperr.Collector
		req  Request
	)
	if present(raw.DocumentID) {
		if err := json.Unmarshal(raw.DocumentID, &req.DocumentID); err != nil || req.DocumentID <= 0 {
			errs.Addf("documentId must be a positive integer")
		}
	} else {
		errs.Addf("documentId is required")
	}
	if present(raw.StoragePath) {
		if err := json.Unmarshal(raw.StoragePath, &req.StoragePath); err != nil {
			errs.Addf("storagePath must be a string")
		} else if req.StoragePath = strings.TrimSpace(req.StoragePath); req.StoragePath == "" {
			errs.Addf("storagePath must not be blank")
		}
	} else {
		errs.Addf("storagePath is required")
	}
	if present(raw.TesseractLang) {
		if err := json.Unmarshal(raw.TesseractLang, &req.Lang); err != nil {
			errs.Addf("tesseractLang must be a string")
		}
	}
	if err := errs.Err(); err != nil {
		return Request{}, err
	}
	return req, nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// Process runs extraction for req and stores the text on the document.
func (p *Pipeline) Process(ctx context.Context, req Request) (Result, error) {
	doc, err := p.docs.GetDocument(ctx, req.DocumentID)
	if errors.Is(err, repository.ErrNotFound) {
		return Result{}, apperr.NotFound("document not found")
	}
	if err != nil {
		return Result{}, apperr.Internal("failed to load document", err)
	}
	if doc.Status == model.StatusTrashed {
		return Result{}, apperr.Conflict("document is trashed", nil)
	}
	lang := strings.TrimSpace(req.Lang)
	if lang == "" {
		lang = p.defaultLang
	}

	text, err := p.extract(ctx, req.StoragePath, lang)
	if err != nil {
		return Result{}, err
	}
	if err := p.docs.UpdateExtractedText(ctx, doc.ID, text); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return Result{}, apperr.NotFound("document not found")
		case errors.Is(err, repository.ErrInvalidTransition):
			return Result{}, apperr.Conflict("document is trashed", err)
		}
		return Result{}, apperr.Internal("failed to store extracted text", err)
	}
	p.log.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"object_key":  req.StoragePath,
		"lang":        lang,
		"chars":       len(text),
	}).Info("text extracted")
	return Result{DocumentID: doc.ID, ExtractedText: text}, nil
}

// extract downloads key into a scratch directory that is removed on return.
func (p *Pipeline) extract(ctx context.Context, key, lang string) (string, error) {
	dir, err := os.MkdirTemp(p.tempDir, "ocr-")
	if err != nil {
		return "", apperr.Internal("OCR failed", fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, uuid.NewString()+"-"+path.Base(key))
	if err := p.objects.DownloadToFile(ctx, key, input); err != nil {
		if errors.Is(err, s3storage.ErrNotFound) {
			return "", apperr.NotFound("object not found")
		}
		if timedOut(err) {
			return "", apperr.Timeout("OCR timed out", err)
		}
		return "", apperr.Internal("OCR failed", err)
	}

	if strings.EqualFold(filepath.Ext(input), ".pdf") {
		text, err := pdfutil.ExtractFile(input)
		switch {
		case err != nil:
			p.log.WithError(err).WithField("object_key", key).Warn("pdf text layer unreadable, falling back to tesseract")
		case pdfutil.HasText(text):
			return text, nil
		}
	}

	text, err := p.recognizer.Recognize(ctx, input, lang)
	if err != nil {
		if timedOut(err) {
			return "", apperr.Timeout("OCR timed out", err)
		}
		return "", apperr.Internal("OCR failed", err)
	}
	return text, nil
}

func timedOut(err error) bool {
	return errors.Is(err, toolrun.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
