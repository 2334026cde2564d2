package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dharsanguruparan/docvault/internal/model"
)

const documentColumns = `id, filename, file_url, group_id, uploader_id, status, extracted_text, summary, slug, converted_key, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (model.Document, error) {
	var (
		doc          model.Document
		extracted    sql.NullString
		summary      sql.NullString
		slug         sql.NullString
		convertedKey sql.NullString
	)
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.FileURL, &doc.GroupID, &doc.UploaderID, &doc.Status,
		&extracted, &summary, &slug, &convertedKey, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return model.Document{}, err
	}
	doc.ExtractedText = nullableString(extracted)
	doc.Summary = nullableString(summary)
	doc.Slug = nullableString(slug)
	doc.ConvertedKey = nullableString(convertedKey)
	return doc, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func joinStatuses(statuses []model.DocumentStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// InsertDocument creates an uploaded document and returns the stored row.
func (q *Queries) InsertDocument(ctx context.Context, doc model.NewDocument) (model.Document, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO documents (filename, file_url, group_id, uploader_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+documentColumns,
		doc.Filename, doc.FileURL, doc.GroupID, doc.UploaderID, model.StatusUploaded)
	created, err := scanDocument(row)
	if err != nil {
		return model.Document{}, fmt.Errorf("insert document: %w", mapError(err))
	}
	return created, nil
}

// GetDocument returns a document by id.
func (q *Queries) GetDocument(ctx context.Context, id int64) (model.Document, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return model.Document{}, fmt.Errorf("select document %d: %w", id, mapError(err))
	}
	return doc, nil
}

// LockDocument selects a document FOR UPDATE.
func (q *Queries) LockDocument(ctx context.Context, id int64) (model.Document, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return model.Document{}, fmt.Errorf("lock document %d: %w", id, mapError(err))
	}
	return doc, nil
}

// TransitionStatus moves a document to status to when its current status
// allows it. The check and the write are one statement.
func (q *Queries) TransitionStatus(ctx context.Context, id int64, to model.DocumentStatus) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE documents
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = ANY(string_to_array($3, ','))
	`, to, id, joinStatuses(model.AllowedFrom(to)))
	if err != nil {
		return fmt.Errorf("update document status: %w", mapError(err))
	}
	return q.explainNoop(ctx, res, id, to)
}

// RestoreDocument moves a trashed document back to processed. Documents in any
// other status are left alone and reported as ErrInvalidTransition.
func (q *Queries) RestoreDocument(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE documents
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, model.StatusProcessed, id, model.StatusTrashed)
	if err != nil {
		return fmt.Errorf("restore document: %w", mapError(err))
	}
	return q.explainNoop(ctx, res, id, model.StatusProcessed)
}

// UpdateSummary replaces a document's summary.
func (q *Queries) UpdateSummary(ctx context.Context, id int64, summary *string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE documents SET summary = $1, updated_at = now() WHERE id = $2`, summary, id)
	if err != nil {
		return fmt.Errorf("update summary: %w", mapError(err))
	}
	return requireRow(res, id)
}

// GetSummary returns the summary of an existing document, nil when unset.
func (q *Queries) GetSummary(ctx context.Context, id int64) (*string, error) {
	var summary sql.NullString
	if err := q.db.QueryRowContext(ctx, `SELECT summary FROM documents WHERE id = $1`, id).Scan(&summary); err != nil {
		return nil, fmt.Errorf("select summary: %w", mapError(err))
	}
	return nullableString(summary), nil
}

// UpdateProcessed writes extracted text, summary, slug and the processed status
// in one statement. Nil text fields are stored as NULL.
func (q *Queries) UpdateProcessed(ctx context.Context, id int64, upd model.ProcessUpdate) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE documents
		SET extracted_text = $1,
			summary = $2,
			slug = $3,
			status = $4,
			updated_at = now()
		WHERE id = $5
	`, upd.ExtractedText, upd.Summary, upd.Slug, model.StatusProcessed, id)
	if err != nil {
		return fmt.Errorf("update processed document: %w", mapError(err))
	}
	return requireRow(res, id)
}

// UpdateExtractedText stores OCR output and marks the document processed.
// Trashed documents are left alone.
func (q *Queries) UpdateExtractedText(ctx context.Context, id int64, text string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE documents
		SET extracted_text = $1, status = $2, updated_at = now()
		WHERE id = $3 AND status <> $4
	`, text, model.StatusProcessed, id, model.StatusTrashed)
	if err != nil {
		return fmt.Errorf("update extracted text: %w", mapError(err))
	}
	return q.explainNoop(ctx, res, id, model.StatusProcessed)
}

// SetConvertedKey records the object key of the latest conversion output.
func (q *Queries) SetConvertedKey(ctx context.Context, id int64, key string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE documents SET converted_key = $1, updated_at = now() WHERE id = $2`, key, id)
	if err != nil {
		return fmt.Errorf("update converted key: %w", mapError(err))
	}
	return requireRow(res, id)
}

// SearchDocuments ranks non-trashed documents against a plain-text query. All
// terms must match; results are ordered by descending rank.
func (q *Queries) SearchDocuments(ctx context.Context, query string, limit int) ([]model.SearchResult, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT d.id, d.filename, d.summary, ts_rank(d.search_vector, tsq)::float8 AS rank
		FROM documents d, plainto_tsquery('english', $1) AS tsq
		WHERE d.search_vector @@ tsq AND d.status <> $2
		ORDER BY rank DESC, d.id ASC
		LIMIT $3
	`, query, model.StatusTrashed, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", mapError(err))
	}
	defer rows.Close()

	out := make([]model.SearchResult, 0)
	for rows.Next() {
		var (
			res     model.SearchResult
			summary sql.NullString
		)
		if err := rows.Scan(&res.ID, &res.Filename, &summary, &res.Rank); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		res.Summary = nullableString(summary)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	return out, nil
}

// explainNoop turns a conditional update that touched no row into ErrNotFound
// or ErrInvalidTransition.
func (q *Queries) explainNoop(ctx context.Context, res sql.Result, id int64, to model.DocumentStatus) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var current model.DocumentStatus
	err = q.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("select document status: %w", err)
	}
	return fmt.Errorf("document %d is %s, cannot become %s: %w", id, current, to, ErrInvalidTransition)
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	return nil
}
