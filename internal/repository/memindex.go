package repository

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/dharsanguruparan/docvault/internal/model"
)

// Field boosts mirror the PostgreSQL weights of the A, B and C labels used by
// the documents.search_vector column.
const (
	filenameBoost = 1.0
	summaryBoost  = 0.4
	textBoost     = 0.2
)

// searchIndex is an in-memory Bleve index over the searchable document
// fields. Trashed documents are kept out of it.
type searchIndex struct {
	index bleve.Index
}

// indexedDocument is the shape stored in the index. Body holds every field
// so that a query can require all of its terms across the whole document.
type indexedDocument struct {
	Filename string
	Summary  string
	Text     string
	Body     string
}

type searchHit struct {
	ID    int64
	Score float64
}

func newSearchIndex() (*searchIndex, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}
	return &searchIndex{index: idx}, nil
}

// buildIndexMapping analyzes every field with the English analyzer, which
// lowercases, drops stop words and stems like to_tsvector('english', ...).
func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()
	for _, field := range []string{"Filename", "Summary", "Text", "Body"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = en.AnalyzerName
		fm.Store = false
		fm.IncludeInAll = false
		docMapping.AddFieldMappingsAt(field, fm)
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = en.AnalyzerName
	return indexMapping
}

func toIndexed(doc model.Document) indexedDocument {
	filename := model.SearchableFilename(doc.Filename)
	summary := deref(doc.Summary)
	text := deref(doc.ExtractedText)
	return indexedDocument{
		Filename: filename,
		Summary:  summary,
		Text:     text,
		Body:     strings.Join([]string{filename, summary, text}, "\n"),
	}
}

// sync brings the index in line with state for the given document ids in one
// batch.
func (i *searchIndex) sync(state *memState, ids map[int64]struct{}) error {
	if len(ids) == 0 {
		return nil
	}
	batch := i.index.NewBatch()
	for id := range ids {
		key := strconv.FormatInt(id, 10)
		doc, ok := state.docs[id]
		if !ok || doc.Status == model.StatusTrashed {
			batch.Delete(key)
			continue
		}
		if err := batch.Index(key, toIndexed(doc)); err != nil {
			return fmt.Errorf("index document %d: %w", id, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("update search index: %w", err)
	}
	return nil
}

// search returns every document containing all analyzed terms of text,
// scored by where the terms occur.
func (i *searchIndex) search(text string) ([]searchHit, error) {
	total, err := i.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("count indexed documents: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	every := bleve.NewMatchQuery(text)
	every.SetField("Body")
	every.SetOperator(query.MatchQueryOperatorAnd)
	ranking := bleve.NewDisjunctionQuery(
		fieldQuery(text, "Filename", filenameBoost),
		fieldQuery(text, "Summary", summaryBoost),
		fieldQuery(text, "Text", textBoost),
	)

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(every, ranking), int(total), 0, false)
	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	hits := make([]searchHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, searchHit{ID: id, Score: hit.Score})
	}
	return hits, nil
}

func fieldQuery(text, field string, boost float64) query.Query {
	q := bleve.NewMatchQuery(text)
	q.SetField(field)
	q.SetBoost(boost)
	return q
}
