package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dharsanguruparan/docvault/internal/model"
)

// MemoryStore keeps documents and tags in process memory behind an RWMutex.
// Every write works on a copy of the state and swaps it in only on success,
// so a failed transaction leaves nothing behind. Search runs against an
// in-memory Bleve index that is updated when a write commits.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
	index *searchIndex
}

type memState struct {
	nextDocID int64
	nextTagID int64
	docs      map[int64]model.Document
	tags      map[string]int64
	tagNames  map[int64]string
	links     map[int64]map[int64]time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() (*MemoryStore, error) {
	index, err := newSearchIndex()
	if err != nil {
		return nil, err
	}
	return &MemoryStore{
		state: &memState{
			docs:     make(map[int64]model.Document),
			tags:     make(map[string]int64),
			tagNames: make(map[int64]string),
			links:    make(map[int64]map[int64]time.Time),
		},
		index: index,
	}, nil
}

func (s *memState) clone() *memState {
	c := &memState{
		nextDocID: s.nextDocID,
		nextTagID: s.nextTagID,
		docs:      make(map[int64]model.Document, len(s.docs)),
		tags:      make(map[string]int64, len(s.tags)),
		tagNames:  make(map[int64]string, len(s.tagNames)),
		links:     make(map[int64]map[int64]time.Time, len(s.links)),
	}
	for k, v := range s.docs {
		c.docs[k] = v
	}
	for k, v := range s.tags {
		c.tags[k] = v
	}
	for k, v := range s.tagNames {
		c.tagNames[k] = v
	}
	for docID, set := range s.links {
		cs := make(map[int64]time.Time, len(set))
		for tagID, at := range set {
			cs[tagID] = at
		}
		c.links[docID] = cs
	}
	return c
}

// InTx runs fn against a private copy of the state.
func (m *MemoryStore) InTx(ctx context.Context, fn func(q Querier) error) error {
	return m.apply(ctx, func(q *memQuerier) error { return fn(q) })
}

// apply runs fn on a copy of the state, reindexes the documents it touched
// and then publishes the copy.
func (m *MemoryStore) apply(ctx context.Context, fn func(q *memQuerier) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := &memQuerier{s: m.state.clone(), index: m.index, dirty: make(map[int64]struct{})}
	if err := fn(work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	if err := m.index.sync(work.s, work.dirty); err != nil {
		return err
	}
	m.state = work.s
	return nil
}

func (m *MemoryStore) view() *memQuerier { return &memQuerier{s: m.state, index: m.index} }

func (m *MemoryStore) InsertDocument(ctx context.Context, doc model.NewDocument) (model.Document, error) {
	var created model.Document
	err := m.apply(ctx, func(q *memQuerier) error {
		var err error
		created, err = q.InsertDocument(ctx, doc)
		return err
	})
	return created, err
}

func (m *MemoryStore) GetDocument(ctx context.Context, id int64) (model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().GetDocument(ctx, id)
}

func (m *MemoryStore) LockDocument(ctx context.Context, id int64) (model.Document, error) {
	return m.GetDocument(ctx, id)
}

func (m *MemoryStore) TransitionStatus(ctx context.Context, id int64, to model.DocumentStatus) error {
	return m.apply(ctx, func(q *memQuerier) error { return q.TransitionStatus(ctx, id, to) })
}

func (m *MemoryStore) RestoreDocument(ctx context.Context, id int64) error {
	return m.apply(ctx, func(q *memQuerier) error { return q.RestoreDocument(ctx, id) })
}

func (m *MemoryStore) UpdateSummary(ctx context.Context, id int64, summary *string) error {
	return m.apply(ctx, func(q *memQuerier) error { return q.UpdateSummary(ctx, id, summary) })
}

func (m *MemoryStore) GetSummary(ctx context.Context, id int64) (*string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().GetSummary(ctx, id)
}

func (m *MemoryStore) UpdateProcessed(ctx context.Context, id int64, upd model.ProcessUpdate) error {
	return m.apply(ctx, func(q *memQuerier) error { return q.UpdateProcessed(ctx, id, upd) })
}

func (m *MemoryStore) UpdateExtractedText(ctx context.Context, id int64, text string) error {
	return m.apply(ctx, func(q *memQuerier) error { return q.UpdateExtractedText(ctx, id, text) })
}

func (m *MemoryStore) SetConvertedKey(ctx context.Context, id int64, key string) error {
	return m.apply(ctx, func(q *memQuerier) error { return q.SetConvertedKey(ctx, id, key) })
}

func (m *MemoryStore) GetOrCreateTag(ctx context.Context, name string) (int64, error) {
	var id int64
	err := m.apply(ctx, func(q *memQuerier) error {
		var err error
		id, err = q.GetOrCreateTag(ctx, name)
		return err
	})
	return id, err
}

func (m *MemoryStore) AttachTag(ctx context.Context, documentID, tagID int64) error {
	return m.apply(ctx, func(q *memQuerier) error { return q.AttachTag(ctx, documentID, tagID) })
}

func (m *MemoryStore) ListTagNames(ctx context.Context, documentID int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().ListTagNames(ctx, documentID)
}

func (m *MemoryStore) ListDocumentsByTag(ctx context.Context, name string) ([]model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().ListDocumentsByTag(ctx, name)
}

func (m *MemoryStore) SearchDocuments(ctx context.Context, query string, limit int) ([]model.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().SearchDocuments(ctx, query, limit)
}

// memQuerier implements Querier over a memState without locking; callers
// hold the MemoryStore lock. Writes record the touched document ids in dirty.
type memQuerier struct {
	s     *memState
	index *searchIndex
	dirty map[int64]struct{}
}

func (q *memQuerier) InsertDocument(_ context.Context, doc model.NewDocument) (model.Document, error) {
	q.s.nextDocID++
	now := time.Now().UTC()
	created := model.Document{
		ID:         q.s.nextDocID,
		Filename:   doc.Filename,
		FileURL:    doc.FileURL,
		GroupID:    doc.GroupID,
		UploaderID: doc.UploaderID,
		Status:     model.StatusUploaded,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	q.s.docs[created.ID] = created
	q.touch(created.ID)
	return created, nil
}

func (q *memQuerier) GetDocument(_ context.Context, id int64) (model.Document, error) {
	doc, ok := q.s.docs[id]
	if !ok {
		return model.Document{}, fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	return doc, nil
}

func (q *memQuerier) LockDocument(ctx context.Context, id int64) (model.Document, error) {
	return q.GetDocument(ctx, id)
}

func (q *memQuerier) TransitionStatus(ctx context.Context, id int64, to model.DocumentStatus) error {
	doc, err := q.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if !model.CanTransition(doc.Status, to) {
		return fmt.Errorf("document %d is %s, cannot become %s: %w", id, doc.Status, to, ErrInvalidTransition)
	}
	doc.Status = to
	q.save(doc)
	return nil
}

func (q *memQuerier) RestoreDocument(ctx context.Context, id int64) error {
	doc, err := q.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status != model.StatusTrashed {
		return fmt.Errorf("document %d is %s, cannot be restored: %w", id, doc.Status, ErrInvalidTransition)
	}
	doc.Status = model.StatusProcessed
	q.save(doc)
	return nil
}

func (q *memQuerier) UpdateSummary(ctx context.Context, id int64, summary *string) error {
	doc, err := q.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	doc.Summary = copyString(summary)
	q.save(doc)
	return nil
}

func (q *memQuerier) GetSummary(ctx context.Context, id int64) (*string, error) {
	doc, err := q.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyString(doc.Summary), nil
}

func (q *memQuerier) UpdateProcessed(ctx context.Context, id int64, upd model.ProcessUpdate) error {
	doc, err := q.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	doc.ExtractedText = copyString(upd.ExtractedText)
	doc.Summary = copyString(upd.Summary)
	slug := upd.Slug
	doc.Slug = &slug
	doc.Status = model.StatusProcessed
	q.save(doc)
	return nil
}

func (q *memQuerier) UpdateExtractedText(ctx context.Context, id int64, text string) error {
	doc, err := q.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status == model.StatusTrashed {
		return fmt.Errorf("document %d is %s, cannot become %s: %w", id, doc.Status, model.StatusProcessed, ErrInvalidTransition)
	}
	doc.ExtractedText = &text
	doc.Status = model.StatusProcessed
	q.save(doc)
	return nil
}

func (q *memQuerier) SetConvertedKey(ctx context.Context, id int64, key string) error {
	doc, err := q.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	doc.ConvertedKey = &key
	q.save(doc)
	return nil
}

func (q *memQuerier) GetOrCreateTag(_ context.Context, name string) (int64, error) {
	canonical := model.CanonicalTagName(name)
	if canonical == "" {
		return 0, ErrInvalidTagName
	}
	if id, ok := q.s.tags[canonical]; ok {
		return id, nil
	}
	q.s.nextTagID++
	q.s.tags[canonical] = q.s.nextTagID
	q.s.tagNames[q.s.nextTagID] = canonical
	return q.s.nextTagID, nil
}

func (q *memQuerier) AttachTag(_ context.Context, documentID, tagID int64) error {
	if _, ok := q.s.docs[documentID]; !ok {
		return fmt.Errorf("%w: document_tags_document_id_fkey", ErrConflict)
	}
	if _, ok := q.s.tagNames[tagID]; !ok {
		return fmt.Errorf("%w: document_tags_tag_id_fkey", ErrConflict)
	}
	set, ok := q.s.links[documentID]
	if !ok {
		set = make(map[int64]time.Time)
		q.s.links[documentID] = set
	}
	if _, exists := set[tagID]; !exists {
		set[tagID] = time.Now().UTC()
	}
	return nil
}

func (q *memQuerier) ListTagNames(_ context.Context, documentID int64) ([]string, error) {
	names := make([]string, 0, len(q.s.links[documentID]))
	for tagID := range q.s.links[documentID] {
		names = append(names, q.s.tagNames[tagID])
	}
	sort.Strings(names)
	return names, nil
}

func (q *memQuerier) ListDocumentsByTag(_ context.Context, name string) ([]model.Document, error) {
	docs := make([]model.Document, 0)
	tagID, ok := q.s.tags[model.CanonicalTagName(name)]
	if !ok {
		return docs, nil
	}
	for docID, set := range q.s.links {
		if _, tagged := set[tagID]; !tagged {
			continue
		}
		if doc := q.s.docs[docID]; doc.Status != model.StatusTrashed {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID > docs[j].ID
	})
	return docs, nil
}

// SearchDocuments ranks non-trashed documents through the Bleve index. Every
// analyzed query term must occur in the document.
func (q *memQuerier) SearchDocuments(_ context.Context, query string, limit int) ([]model.SearchResult, error) {
	hits, err := q.index.search(query)
	if err != nil {
		return nil, err
	}
	out := make([]model.SearchResult, 0, len(hits))
	for _, hit := range hits {
		doc, ok := q.s.docs[hit.ID]
		if !ok || doc.Status == model.StatusTrashed {
			continue
		}
		out = append(out, model.SearchResult{ID: doc.ID, Filename: doc.Filename, Summary: copyString(doc.Summary), Rank: hit.Score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		return out[i].ID < out[j].ID
	})
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (q *memQuerier) save(doc model.Document) {
	doc.UpdatedAt = time.Now().UTC()
	q.s.docs[doc.ID] = doc
	q.touch(doc.ID)
}

func (q *memQuerier) touch(id int64) {
	if q.dirty != nil {
		q.dirty[id] = struct{}{}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Querier = (*memQuerier)(nil)
)
