// Package model contains simple struct definitions shared across packages.
package model

import (
	"time"
)

// DocumentStatus describes the document lifecycle. A named string type keeps
// status values from mixing with arbitrary strings at compile time.
type DocumentStatus string

const (
	StatusUploaded  DocumentStatus = "uploaded"
	StatusProcessed DocumentStatus = "processed"
	StatusTrashed   DocumentStatus = "trashed"
)

// Valid reports whether s is one of the known statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessed, StatusTrashed:
		return true
	}
	return false
}

// transitions lists, for every target status, the statuses a document may
// move from. Reprocessing a processed document is allowed; trashing requires
// the document to have been processed first.
var transitions = map[DocumentStatus][]DocumentStatus{
	StatusProcessed: {StatusUploaded, StatusProcessed, StatusTrashed},
	StatusTrashed:   {StatusProcessed},
}

// AllowedFrom returns the statuses from which a document may move to target.
// The returned slice is a copy so callers can hand it to SQL drivers safely.
func AllowedFrom(target DocumentStatus) []DocumentStatus {
	from := transitions[target]
	out := make([]DocumentStatus, len(from))
	copy(out, from)
	return out
}

// CanTransition reports whether a document in status from may move to to.
func CanTransition(from, to DocumentStatus) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// Document represents a row in the documents table. Nullable columns are
// pointers so JSON output distinguishes "absent" (null) from "empty".
type Document struct {
	ID            int64          `json:"id"`
	Filename      string         `json:"filename"`
	FileURL       string         `json:"fileUrl"`
	GroupID       string         `json:"groupId"`
	UploaderID    string         `json:"uploaderId"`
	Status        DocumentStatus `json:"status"`
	ExtractedText *string        `json:"extractedText"`
	Summary       *string        `json:"summary"`
	Slug          *string        `json:"slug"`
	ConvertedKey  *string        `json:"convertedKey,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// NewDocument carries the fields a client supplies on upload.
type NewDocument struct {
	Filename   string
	FileURL    string
	GroupID    string
	UploaderID string
}

// ProcessUpdate is the single atomic mutation applied by the processing
// pipeline. Nil text fields keep whatever the store already holds.
type ProcessUpdate struct {
	ExtractedText *string
	Summary       *string
	Slug          string
}

// SearchResult is one ranked full-text search hit.
type SearchResult struct {
	ID       int64   `json:"id"`
	Filename string  `json:"filename"`
	Summary  *string `json:"summary"`
	Rank     float64 `json:"rank"`
}
