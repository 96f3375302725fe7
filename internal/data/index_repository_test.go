//go:build integration

package data

import (
	"context"
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// setupIndexTest creates a new in-memory SQLite database and a
// PageIndexRepository for testing. It returns the repository and a teardown
// function to be deferred.
func setupIndexTest(t *testing.T) (*PageIndexRepository, *sqlx.DB, func()) {
	t.Helper()

	// Use a non-shared in-memory database for complete test isolation.
	db, err := sqlx.Connect("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("Failed to connect to sqlite test database: %v", err)
	}
	// Every pool connection gets its own in-memory database, so keep one.
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE page_index (
		word TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		frequency INTEGER NOT NULL
	);`
	db.MustExec(schema)

	repo := NewPageIndexRepository(db)

	teardown := func() {
		db.Close()
	}

	return repo, db, teardown
}

// fakeDoc satisfies Document with a fixed token map.
type fakeDoc struct {
	id     string
	counts map[string]int
}

func (d fakeDoc) DocumentID() string          { return d.id }
func (d fakeDoc) TokenCounts() map[string]int { return d.counts }

func rowCount(t *testing.T, db *sqlx.DB, docID string) int {
	t.Helper()
	var n int
	if err := db.Get(&n, "SELECT COUNT(*) FROM page_index WHERE doc_id = ?", docID); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return n
}

func TestPageIndexRepository_UpdateIndexIdempotent(t *testing.T) {
	repo, db, teardown := setupIndexTest(t)
	defer teardown()
	ctx := context.Background()

	doc := fakeDoc{id: "doc1", counts: map[string]int{"alpha": 3, "beta": 1}}
	if err := repo.UpdateIndex(ctx, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.UpdateIndex(ctx, doc); err != nil {
		t.Fatalf("unexpected error on second update: %v", err)
	}

	stored, err := repo.Tokens(ctx, "doc1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(stored, doc.counts) {
		t.Errorf("expected %v, got %v", doc.counts, stored)
	}
	if n := rowCount(t, db, "doc1"); n != 2 {
		t.Errorf("expected exactly 2 rows, got %d", n)
	}
}

func TestPageIndexRepository_UpdateIndexRemovesStaleTokens(t *testing.T) {
	repo, db, teardown := setupIndexTest(t)
	defer teardown()
	ctx := context.Background()

	if err := repo.UpdateIndex(ctx, fakeDoc{id: "doc1", counts: map[string]int{"old": 1, "kept": 2}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	updated := map[string]int{"kept": 5, "fresh": 1}
	if err := repo.UpdateIndex(ctx, fakeDoc{id: "doc1", counts: updated}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := repo.Tokens(ctx, "doc1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(stored, updated) {
		t.Errorf("expected %v, got %v", updated, stored)
	}
	if n := rowCount(t, db, "doc1"); n != 2 {
		t.Errorf("expected stale rows gone, got %d rows", n)
	}
}

func TestPageIndexRepository_DeleteOldTokensIdempotent(t *testing.T) {
	repo, _, teardown := setupIndexTest(t)
	defer teardown()
	ctx := context.Background()

	if err := repo.AddOrUpdateTokens(ctx, "doc1", map[string]int{"a": 1, "b": 2, "c": 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keep := map[string]int{"b": 2}
	for i := 0; i < 2; i++ {
		if err := repo.DeleteOldTokens(ctx, "doc1", keep); err != nil {
			t.Fatalf("unexpected error on call %d: %v", i+1, err)
		}
		stored, err := repo.Tokens(ctx, "doc1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(stored, keep) {
			t.Errorf("call %d: expected %v, got %v", i+1, keep, stored)
		}
	}
}

func TestPageIndexRepository_MigrateDocID(t *testing.T) {
	repo, _, teardown := setupIndexTest(t)
	defer teardown()
	ctx := context.Background()

	counts := map[string]int{"alpha": 2, "beta": 7}
	if err := repo.AddOrUpdateTokens(ctx, "old-id", counts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := repo.MigrateDocID(ctx, "new-id", "old-id"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	oldTokens, err := repo.Tokens(ctx, "old-id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(oldTokens) != 0 {
		t.Errorf("expected no rows under old id, got %v", oldTokens)
	}

	newTokens, err := repo.Tokens(ctx, "new-id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(newTokens, counts) {
		t.Errorf("expected %v under new id, got %v", counts, newTokens)
	}
}

func TestPageIndexRepository_Delete(t *testing.T) {
	repo, _, teardown := setupIndexTest(t)
	defer teardown()
	ctx := context.Background()

	if err := repo.AddOrUpdateTokens(ctx, "doc1", map[string]int{"a": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Delete(ctx, "doc1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := repo.Tokens(ctx, "doc1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("expected empty index after delete, got %v", stored)
	}
}

func TestPageIndexRepository_SearchRanking(t *testing.T) {
	repo, _, teardown := setupIndexTest(t)
	defer teardown()
	ctx := context.Background()

	docs := []fakeDoc{
		{id: "doc1", counts: map[string]int{"word1": 3, "word2": 2, "word3": 1}},
		{id: "doc2", counts: map[string]int{"word1": 5, "word2": 4, "word3": 6}},
		{id: "doc3", counts: map[string]int{"word1": 22, "word2": 4, "word3": 6}},
	}
	for _, doc := range docs {
		if err := repo.UpdateIndex(ctx, doc); err != nil {
			t.Fatalf("unexpected error indexing %s: %v", doc.id, err)
		}
	}

	results, err := repo.Search(ctx, []string{"word1", "word2", "word3"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []SearchResult{
		{DocID: "doc3", TotalFrequency: 32},
		{DocID: "doc2", TotalFrequency: 15},
		{DocID: "doc1", TotalFrequency: 6},
	}
	if !reflect.DeepEqual(results, want) {
		t.Errorf("expected %v, got %v", want, results)
	}
}

func TestPageIndexRepository_SearchCaseSensitivity(t *testing.T) {
	repo, _, teardown := setupIndexTest(t)
	defer teardown()
	ctx := context.Background()

	if err := repo.AddOrUpdateTokens(ctx, "lower", map[string]int{"word1": 1, "word2": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.AddOrUpdateTokens(ctx, "upper", map[string]int{"Word1": 1, "Word2": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sensitive, err := repo.Search(ctx, []string{"word1", "Word2"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := make(map[string]int, len(sensitive))
	for _, r := range sensitive {
		got[r.DocID] = r.TotalFrequency
	}
	if got["lower"] != 1 || got["upper"] != 1 {
		t.Errorf("expected exactly the exact-case tokens to match, got %v", got)
	}

	folded, err := repo.Search(ctx, []string{"word1", "Word2"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got = make(map[string]int, len(folded))
	for _, r := range folded {
		got[r.DocID] = r.TotalFrequency
	}
	if got["lower"] != 2 || got["upper"] != 2 {
		t.Errorf("expected both case variants to match per document, got %v", got)
	}
}

func TestPageIndexRepository_SearchEmptyTerms(t *testing.T) {
	repo, _, teardown := setupIndexTest(t)
	defer teardown()

	results, err := repo.Search(context.Background(), nil, true)
	if err != nil {
		t.Fatalf("expected no error for empty terms, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result, got %v", results)
	}
}
