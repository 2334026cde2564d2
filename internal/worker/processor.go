// Package worker hosts the asynq handlers that run document conversions.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/docvault/internal/convert"
	"github.com/dharsanguruparan/docvault/internal/queue"
	"github.com/dharsanguruparan/docvault/internal/repository"
	"github.com/dharsanguruparan/docvault/internal/s3storage"
)

// ObjectStore moves files between the bucket and local disk.
type ObjectStore interface {
	DownloadToFile(ctx context.Context, key, dest string) error
	UploadFile(ctx context.Context, key, path, contentType string) error
}

// Converter produces a DOCX rendition of a local file.
type Converter interface {
	ToDOCX(ctx context.Context, input, outDir string) (string, error)
}

// ConvertedKeyStore records where a rendition was stored.
type ConvertedKeyStore interface {
	SetConvertedKey(ctx context.Context, id int64, key string) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	docs      ConvertedKeyStore
	objects   ObjectStore
	converter Converter
	tempDir   string
	log       logrus.FieldLogger
}

// NewProcessor constructs a worker processor.
func NewProcessor(docs ConvertedKeyStore, objects ObjectStore, converter Converter, tempDir string, log logrus.FieldLogger) *Processor {
	return &Processor{docs: docs, objects: objects, converter: converter, tempDir: tempDir, log: log}
}

// Handler registers the conversion job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ConvertDocumentTask, p.HandleConvert)
	return mux
}

// HandleConvert downloads the source object, converts it and uploads the
// rendition. Failures that a retry cannot fix skip the remaining retries.
func (p *Processor) HandleConvert(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.DecodeConvert(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	log := p.log.WithFields(logrus.Fields{"document_id": payload.DocumentID, "object_key": payload.ObjectKey})

	key, err := p.convert(ctx, payload)
	if err != nil {
		log.WithError(err).Error("conversion failed")
		if errors.Is(err, s3storage.ErrNotFound) || errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	log.WithField("converted_key", key).Info("document converted")
	return nil
}

func (p *Processor) convert(ctx context.Context, payload queue.ConvertPayload) (string, error) {
	dir, err := os.MkdirTemp(p.tempDir, "convert-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	name := sourceName(payload)
	input := filepath.Join(dir, name)
	if err := p.objects.DownloadToFile(ctx, payload.ObjectKey, input); err != nil {
		return "", err
	}
	outDir := filepath.Join(dir, "out")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	output, err := p.converter.ToDOCX(ctx, input, outDir)
	if err != nil {
		return "", err
	}
	key := convert.ObjectKey(payload.DocumentID, name)
	if err := p.objects.UploadFile(ctx, key, output, convert.DocxContentType); err != nil {
		return "", err
	}
	if err := p.docs.SetConvertedKey(ctx, payload.DocumentID, key); err != nil {
		return "", fmt.Errorf("record converted key: %w", err)
	}
	return key, nil
}

// sourceName is the local file name for the download. LibreOffice names its
// output after it, so it follows the registered filename when there is one.
func sourceName(payload queue.ConvertPayload) string {
	name := filepath.Base(payload.FileName)
	if payload.FileName == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		name = path.Base(payload.ObjectKey)
	}
	if name == "." || name == ".." || name == "/" {
		name = "document"
	}
	return name
}
