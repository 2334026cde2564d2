// Package bootstrap builds the dependency graph shared by the server, the
// worker and the CLI.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/docvault/internal/config"
	"github.com/dharsanguruparan/docvault/internal/convert"
	"github.com/dharsanguruparan/docvault/internal/database"
	"github.com/dharsanguruparan/docvault/internal/documents"
	"github.com/dharsanguruparan/docvault/internal/ocr"
	"github.com/dharsanguruparan/docvault/internal/queue"
	"github.com/dharsanguruparan/docvault/internal/repository"
	"github.com/dharsanguruparan/docvault/internal/s3storage"
	"github.com/dharsanguruparan/docvault/internal/worker"
)

// ErrNoDatabase is returned by components that cannot run on the in-memory
// store because they live in a separate process from the API.
var ErrNoDatabase = errors.New("DATABASE_URL is required")

// App holds constructed dependencies. Close releases them in reverse order.
type App struct {
	Config    *config.Config
	Log       *logrus.Logger
	DB        *sql.DB
	Store     repository.Store
	Objects   *s3storage.Storage
	Documents *documents.Service
	OCR       *ocr.Pipeline

	closers []func()
}

// New connects to the configured backends. Without DATABASE_URL documents
// are kept in memory for the lifetime of the process.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	app := &App{Config: cfg, Log: log}
	if err := app.openStore(ctx); err != nil {
		return nil, err
	}

	objects, err := s3storage.New(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		// Requests that need object storage fail individually until it is reachable.
		log.WithError(err).Warn("object storage unavailable")
	}
	app.Objects = objects

	client := asynq.NewClient(RedisOpt(cfg))
	app.closers = append(app.closers, func() { _ = client.Close() })

	app.Documents = documents.NewService(app.Store, queue.NewClient(client), log.WithField("component", "documents"))
	app.OCR = ocr.NewPipeline(
		app.Store,
		objects,
		ocr.Tesseract{Binary: cfg.OCRBinary, Timeout: cfg.OCRTimeout},
		cfg.OCRLang,
		cfg.TempDir,
		log.WithField("component", "ocr"),
	)
	return app, nil
}

func (a *App) openStore(ctx context.Context) error {
	if !a.Config.UsesPostgres() {
		a.Log.Warn("DATABASE_URL not set, using in-memory document store")
		store, err := repository.NewMemoryStore()
		if err != nil {
			return err
		}
		a.Store = store
		return nil
	}
	db, err := database.Connect(ctx, a.Config.DatabaseURL, a.Config.DBMaxConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.closers = append(a.closers, func() { _ = db.Close() })
	if err := database.Migrate(ctx, db); err != nil {
		a.Close()
		return err
	}
	a.DB = db
	a.Store = repository.NewPGStore(db)
	return nil
}

// WorkerProcessor builds the conversion task processor. The worker shares
// document state with the API, so it requires PostgreSQL.
func (a *App) WorkerProcessor() (*worker.Processor, error) {
	if a.DB == nil {
		return nil, ErrNoDatabase
	}
	converter := convert.LibreOffice{Binary: a.Config.ConvertBinary, Timeout: a.Config.ConvertTimeout}
	return worker.NewProcessor(a.Store, a.Objects, converter, a.Config.TempDir, a.Log.WithField("component", "worker")), nil
}

// Close releases every backend connection.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// RedisOpt translates the Redis settings for asynq.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
