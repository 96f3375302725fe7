package data

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Document is what the index store needs from a page: a stable id and the
// current token-frequency map.
type Document interface {
	DocumentID() string
	TokenCounts() map[string]int
}

// SearchResult is one ranked hit from the inverted index.
type SearchResult struct {
	DocID          string `db:"doc_id"`
	TotalFrequency int    `db:"total_frequency"`
}

// PageIndexRepository persists per-document token frequencies in the
// page_index table. Rows are semantically unique per (word, doc_id); the
// upsert logic enforces that, not the schema.
type PageIndexRepository struct {
	db *sqlx.DB
}

// NewPageIndexRepository creates a new PageIndexRepository.
func NewPageIndexRepository(db *sqlx.DB) *PageIndexRepository {
	return &PageIndexRepository{db: db}
}

// UpdateIndex replaces the stored index rows for doc with its current token
// counts. Stale words are deleted and current words upserted inside one
// transaction, so a reader never observes a mix of old and new rows.
// Calling it again without intervening edits changes nothing.
func (r *PageIndexRepository) UpdateIndex(ctx context.Context, doc Document) error {
	index := doc.TokenCounts()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index update: %w", err)
	}
	defer tx.Rollback()

	if err := deleteOldTokens(ctx, tx, doc.DocumentID(), index); err != nil {
		return err
	}
	if err := addOrUpdateTokens(ctx, tx, doc.DocumentID(), index); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index update: %w", err)
	}
	return nil
}

// Tokens returns the word-to-frequency map currently stored for docID.
func (r *PageIndexRepository) Tokens(ctx context.Context, docID string) (map[string]int, error) {
	return tokens(ctx, r.db, docID)
}

// DeleteOldTokens removes stored rows for docID whose word is not a key of
// newIndex. Repeating the call with the same newIndex is a no-op.
func (r *PageIndexRepository) DeleteOldTokens(ctx context.Context, docID string, newIndex map[string]int) error {
	return deleteOldTokens(ctx, r.db, docID, newIndex)
}

// AddOrUpdateTokens upserts every (word, docID, frequency) pair in index,
// overwriting any stored frequency for the same word.
func (r *PageIndexRepository) AddOrUpdateTokens(ctx context.Context, docID string, index map[string]int) error {
	return addOrUpdateTokens(ctx, r.db, docID, index)
}

// MigrateDocID rewrites every row stored under oldID to newID, so a page's
// index history survives a rename. No rows remain under oldID afterwards.
func (r *PageIndexRepository) MigrateDocID(ctx context.Context, newID, oldID string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE page_index SET doc_id = ? WHERE doc_id = ?", newID, oldID); err != nil {
		return fmt.Errorf("migrate index rows from %s to %s: %w", oldID, newID, err)
	}
	return nil
}

// Delete removes every index row for docID.
func (r *PageIndexRepository) Delete(ctx context.Context, docID string) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM page_index WHERE doc_id = ?", docID); err != nil {
		return fmt.Errorf("delete index rows for %s: %w", docID, err)
	}
	return nil
}

// Search finds every document containing any of the terms, summing the
// frequency of all matched terms per document, ordered by descending total.
// An empty term list yields an empty result.
func (r *PageIndexRepository) Search(ctx context.Context, terms []string, ignoreCase bool) ([]SearchResult, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	wordExpr := "word"
	if ignoreCase {
		wordExpr = "LOWER(word)"
		lowered := make([]string, len(terms))
		for i, term := range terms {
			lowered[i] = strings.ToLower(term)
		}
		terms = lowered
	}

	query, args, err := sqlx.In(fmt.Sprintf(`
		SELECT doc_id, SUM(frequency) AS total_frequency
		FROM page_index
		WHERE %s IN (?)
		GROUP BY doc_id
		ORDER BY total_frequency DESC`, wordExpr), terms)
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}

	var results []SearchResult
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return results, nil
}

func tokens(ctx context.Context, q sqlx.QueryerContext, docID string) (map[string]int, error) {
	rows, err := q.QueryxContext(ctx,
		"SELECT word, frequency FROM page_index WHERE doc_id = ?", docID)
	if err != nil {
		return nil, fmt.Errorf("query tokens for %s: %w", docID, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var word string
		var frequency int
		if err := rows.Scan(&word, &frequency); err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		counts[word] = frequency
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read token rows: %w", err)
	}
	return counts, nil
}

func deleteOldTokens(ctx context.Context, q sqlx.ExtContext, docID string, newIndex map[string]int) error {
	current, err := tokens(ctx, q, docID)
	if err != nil {
		return err
	}

	var stale []string
	for word := range current {
		if _, ok := newIndex[word]; !ok {
			stale = append(stale, word)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	query, args, err := sqlx.In(
		"DELETE FROM page_index WHERE doc_id = ? AND word IN (?)", docID, stale)
	if err != nil {
		return fmt.Errorf("build stale token delete: %w", err)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete stale tokens for %s: %w", docID, err)
	}
	return nil
}

func addOrUpdateTokens(ctx context.Context, q sqlx.ExtContext, docID string, index map[string]int) error {
	for word, frequency := range index {
		res, err := q.ExecContext(ctx,
			"UPDATE page_index SET frequency = ? WHERE doc_id = ? AND word = ?",
			frequency, docID, word)
		if err != nil {
			return fmt.Errorf("update token %q for %s: %w", word, docID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			if _, err := q.ExecContext(ctx,
				"INSERT INTO page_index (word, doc_id, frequency) VALUES (?, ?, ?)",
				word, docID, frequency); err != nil {
				return fmt.Errorf("insert token %q for %s: %w", word, docID, err)
			}
		}
	}
	return nil
}
