package repository

import (
	"context"
	"fmt"

	"github.com/dharsanguruparan/docvault/internal/model"
)

// GetOrCreateTag returns the id of the tag named name, creating it when
// missing. The name is canonicalized first. The upsert is a single statement
// against the unique index on tags.name, so concurrent callers with the same
// name always converge on one row.
func (q *Queries) GetOrCreateTag(ctx context.Context, name string) (int64, error) {
	canonical := model.CanonicalTagName(name)
	if canonical == "" {
		return 0, ErrInvalidTagName
	}
	var id int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO tags (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, canonical).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert tag %q: %w", canonical, mapError(err))
	}
	return id, nil
}

// AttachTag links a tag to a document. Linking an existing pair is a no-op.
func (q *Queries) AttachTag(ctx context.Context, documentID, tagID int64) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO document_tags (document_id, tag_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, documentID, tagID)
	if err != nil {
		return fmt.Errorf("attach tag %d to document %d: %w", tagID, documentID, mapError(err))
	}
	return nil
}

// ListTagNames returns the canonical names of a document's tags, sorted.
func (q *Queries) ListTagNames(ctx context.Context, documentID int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT t.name FROM tags t
		JOIN document_tags dt ON dt.tag_id = t.id
		WHERE dt.document_id = $1
		ORDER BY t.name
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", mapError(err))
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return names, nil
}

// ListDocumentsByTag returns non-trashed documents carrying the tag, newest first.
func (q *Queries) ListDocumentsByTag(ctx context.Context, name string) ([]model.Document, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT d.id, d.filename, d.file_url, d.group_id, d.uploader_id, d.status, d.extracted_text,
			d.summary, d.slug, d.converted_key, d.created_at, d.updated_at
		FROM documents d
		JOIN document_tags dt ON dt.document_id = d.id
		JOIN tags t ON t.id = dt.tag_id
		WHERE t.name = $1 AND d.status <> $2
		ORDER BY d.created_at DESC, d.id DESC
	`, model.CanonicalTagName(name), model.StatusTrashed)
	if err != nil {
		return nil, fmt.Errorf("list documents by tag: %w", mapError(err))
	}
	defer rows.Close()
	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}
