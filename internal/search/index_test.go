package search

import "testing"

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSearchScopedToUser(t *testing.T) {
	idx := newTestIndex(t)
	docs := []Doc{
		{ID: "b1", UserID: "user-1", Kind: "brief", Query: "keyword research", Content: "keyword research basics for beginners"},
		{ID: "b2", UserID: "user-2", Kind: "brief", Query: "keyword research", Content: "keyword research for agencies"},
		{ID: "a1", UserID: "user-1", Kind: "article", Query: "link building", Content: "guide to link building outreach"},
	}
	for _, d := range docs {
		if err := idx.Add(d); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	hits, err := idx.Search("user-1", "keyword research", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "b1" {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestSearchFindsBothKinds(t *testing.T) {
	idx := newTestIndex(t)
	_ = idx.Add(Doc{ID: "b1", UserID: "u", Kind: "brief", Query: "seo audit", Content: "how to run an seo audit"})
	_ = idx.Add(Doc{ID: "a1", UserID: "u", Kind: "article", Query: "seo audit", Content: "the complete seo audit checklist"})

	hits, err := idx.Search("u", "seo audit", 10)
	if err != nil {
		t.Fatal(err)
	}
	kinds := map[string]bool{}
	for _, h := range hits {
		kinds[h.Kind] = true
	}
	if !kinds["brief"] || !kinds["article"] {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestReindexReplacesContent(t *testing.T) {
	idx := newTestIndex(t)
	_ = idx.Add(Doc{ID: "b1", UserID: "u", Kind: "brief", Query: "old", Content: "content about pelicans"})
	_ = idx.Add(Doc{ID: "b1", UserID: "u", Kind: "brief", Query: "new", Content: "content about flamingos"})

	hits, err := idx.Search("u", "pelicans", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Fatalf("stale content still indexed: %+v", hits)
	}
	hits, err = idx.Search("u", "flamingos", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestRemove(t *testing.T) {
	idx := newTestIndex(t)
	_ = idx.Add(Doc{ID: "b1", UserID: "u", Kind: "brief", Query: "q", Content: "ephemeral brief"})
	if err := idx.Remove("brief", "b1"); err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Search("u", "ephemeral", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Fatalf("hits = %+v", hits)
	}
}
