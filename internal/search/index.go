package search

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve"
)

// Doc is one indexed brief or article.
type Doc struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"` // brief | article
	Query   string `json:"query"`
	Content string `json:"content"`
}

// Hit is a scored search result.
type Hit struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	Query    string  `json:"query"`
	Score    float64 `json:"score"`
	Fragment string  `json:"fragment,omitempty"`
}

// Index is an in-memory full-text index over a user's briefs and
// articles. It is rebuilt on startup and kept current by the handlers;
// Postgres stays the source of truth.
type Index struct {
	mu    sync.RWMutex
	bleve bleve.Index
	meta  map[string]Doc
}

func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{bleve: idx, meta: make(map[string]Doc)}, nil
}

// Add indexes or reindexes a document. Keys are namespaced by kind so a
// brief and an article may share an id.
func (ix *Index) Add(doc Doc) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	key := doc.Kind + ":" + doc.ID
	ix.meta[key] = doc
	return ix.bleve.Index(key, doc)
}

func (ix *Index) Remove(kind, id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	key := kind + ":" + id
	delete(ix.meta, key)
	return ix.bleve.Delete(key)
}

// Search runs a BM25 query scoped to one user.
func (ix *Index) Search(userID, q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	query := bleve.NewQueryStringQuery(q)
	// over-fetch, then drop other users' docs
	req := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	req.Highlight = bleve.NewHighlightWithStyle("html")

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	res, err := ix.bleve.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := make([]Hit, 0, k)
	for _, h := range res.Hits {
		doc, ok := ix.meta[h.ID]
		if !ok || doc.UserID != userID {
			continue
		}
		hit := Hit{ID: doc.ID, Kind: doc.Kind, Query: doc.Query, Score: h.Score}
		if frags, ok := h.Fragments["content"]; ok && len(frags) > 0 {
			hit.Fragment = frags[0]
		}
		out = append(out, hit)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func (ix *Index) Close() error {
	return ix.bleve.Close()
}
