// Package repository persists documents, tags and their associations. The
// PostgreSQL implementation is the production store; MemoryStore satisfies the
// same contract for local runs and tests.
package repository

import (
	"context"
	"errors"

	"github.com/dharsanguruparan/docvault/internal/model"
)

// MaxSearchResults caps every full-text search.
const MaxSearchResults = 50

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a store constraint (foreign key, check)
	// rejects a write.
	ErrConflict = errors.New("constraint violation")
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the document's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidTagName is returned when a tag name is blank once canonicalized.
	ErrInvalidTagName = errors.New("tag name is blank")
)

// Querier is the set of operations available both on the store directly and
// inside a transaction.
type Querier interface {
	InsertDocument(ctx context.Context, doc model.NewDocument) (model.Document, error)
	GetDocument(ctx context.Context, id int64) (model.Document, error)
	// LockDocument reads a document and holds a row lock until the enclosing
	// transaction ends. Outside a transaction it behaves like GetDocument.
	LockDocument(ctx context.Context, id int64) (model.Document, error)
	TransitionStatus(ctx context.Context, id int64, to model.DocumentStatus) error
	// RestoreDocument moves a trashed document back to processed.
	RestoreDocument(ctx context.Context, id int64) error
	UpdateSummary(ctx context.Context, id int64, summary *string) error
	GetSummary(ctx context.Context, id int64) (*string, error)
	UpdateProcessed(ctx context.Context, id int64, upd model.ProcessUpdate) error
	UpdateExtractedText(ctx context.Context, id int64, text string) error
	SetConvertedKey(ctx context.Context, id int64, key string) error

	GetOrCreateTag(ctx context.Context, name string) (int64, error)
	AttachTag(ctx context.Context, documentID, tagID int64) error
	ListTagNames(ctx context.Context, documentID int64) ([]string, error)
	ListDocumentsByTag(ctx context.Context, name string) ([]model.Document, error)

	SearchDocuments(ctx context.Context, query string, limit int) ([]model.SearchResult, error)
}

// Store is a Querier that can also open a transaction. fn's changes are
// committed only when it returns nil.
type Store interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxSearchResults {
		return MaxSearchResults
	}
	return limit
}
