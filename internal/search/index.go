// Package search provides full-text search over tasks using Bleve.
package search

import (
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/hmans/taskgraph/internal/store"
)

// DefaultSearchLimit is the default maximum number of search results.
const DefaultSearchLimit = 1000

// Index wraps a Bleve in-memory index of tasks.
type Index struct {
	index bleve.Index
}

// taskDocument is the structure stored in the Bleve index.
type taskDocument struct {
	ID      string `json:"id"`
	Creator string `json:"creator"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func newTaskDocument(t *store.Task) taskDocument {
	return taskDocument{
		ID:      docID(t.ID),
		Creator: strconv.FormatInt(t.CreatorID, 10),
		Title:   t.Title,
		Content: t.Content,
	}
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// NewIndex creates a new in-memory Bleve index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = "standard"

	keywordFieldMapping := bleve.NewKeywordFieldMapping()

	taskMapping := bleve.NewDocumentMapping()
	taskMapping.AddFieldMappingsAt("id", keywordFieldMapping)
	taskMapping.AddFieldMappingsAt("creator", keywordFieldMapping)
	taskMapping.AddFieldMappingsAt("title", textFieldMapping)
	taskMapping.AddFieldMappingsAt("content", textFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = taskMapping
	indexMapping.DefaultAnalyzer = "standard"
	indexMapping.IndexDynamic = false
	indexMapping.StoreDynamic = false
	indexMapping.ScoringModel = "bm25"

	return indexMapping
}

// Close closes the index.
func (idx *Index) Close() error {
	return idx.index.Close()
}

// IndexTask adds or updates a task in the index.
func (idx *Index) IndexTask(t *store.Task) error {
	doc := newTaskDocument(t)
	return idx.index.Index(doc.ID, doc)
}

// DeleteTask removes a task from the index.
func (idx *Index) DeleteTask(id int64) error {
	return idx.index.Delete(docID(id))
}

// IndexTasks indexes multiple tasks in one batch.
func (idx *Index) IndexTasks(tasks []*store.Task) error {
	batch := idx.index.NewBatch()
	for _, t := range tasks {
		doc := newTaskDocument(t)
		if err := batch.Index(doc.ID, doc); err != nil {
			return err
		}
	}
	return idx.index.Batch(batch)
}

// Count returns the number of indexed tasks.
func (idx *Index) Count() (uint64, error) {
	return idx.index.DocCount()
}

// Search runs a query string query and returns matching task IDs by relevance.
// The query string syntax supports terms, phrases, boolean operators,
// wildcards and field scoping such as "title:groceries".
func (idx *Index) Search(queryStr string, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	req := bleve.NewSearchRequest(bleve.NewQueryStringQuery(queryStr))
	req.Size = limit

	result, err := idx.index.Search(req)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
