package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// SQLiteStore persists vectors in a sqlite table keyed by (namespace, id)
// and scores queries with brute-force cosine similarity. Embeddings are
// JSON-encoded float32 slices.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(db *sql.DB, logger *zap.Logger) (*SQLiteStore, error) {
	schema := `
    CREATE TABLE IF NOT EXISTS vectors (
        namespace TEXT NOT NULL,
        id TEXT NOT NULL,
        embedding_json TEXT NOT NULL,
        chunk_text TEXT NOT NULL,
        item_id TEXT NOT NULL,
        PRIMARY KEY (namespace, id)
    );
    CREATE INDEX IF NOT EXISTS idx_vectors_item ON vectors (namespace, item_id);
    `
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize vector schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	if namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if len(vectors) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vectors (namespace, id, embedding_json, chunk_text, item_id)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (namespace, id) DO UPDATE SET
            embedding_json = excluded.embedding_json,
            chunk_text = excluded.chunk_text,
            item_id = excluded.item_id`)
	if err != nil {
		return fmt.Errorf("failed to prepare vector upsert: %w", err)
	}
	defer stmt.Close()

	for _, v := range vectors {
		embeddingJSON, err := json.Marshal(v.Values)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding for %s: %w", v.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, namespace, v.ID, string(embeddingJSON), v.Text, v.ItemID); err != nil {
			return fmt.Errorf("failed to upsert vector %s: %w", v.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if topK <= 0 {
		topK = 5
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, embedding_json, chunk_text, item_id FROM vectors WHERE namespace = ?", namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var id, embeddingJSON, chunkText, itemID string
		if err := rows.Scan(&id, &embeddingJSON, &chunkText, &itemID); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}
		var embedding []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &embedding); err != nil {
			s.logger.Warn("skipping vector with unreadable embedding",
				zap.String("namespace", namespace), zap.String("id", id), zap.Error(err))
			continue
		}
		score, err := CosineSimilarity(vector, embedding)
		if err != nil {
			s.logger.Warn("skipping vector with mismatched dimension",
				zap.String("namespace", namespace), zap.String("id", id), zap.Error(err))
			continue
		}
		matches = append(matches, Match{ID: id, Score: score, Text: chunkText, ItemID: itemID})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vector rows: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *SQLiteStore) ListByPrefix(ctx context.Context, namespace, prefix string) ([]string, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM vectors WHERE namespace = ? AND id LIKE ? || '%' ORDER BY id", namespace, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list vectors by prefix: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vector id: %w", err)
		}
		// LIKE treats _ and % as wildcards; item ids are uuids so the
		// prefix itself is safe, but re-check to keep the contract exact.
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) DeleteMany(ctx context.Context, namespace string, ids []string) error {
	if namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM vectors WHERE namespace = ? AND id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare vector delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, namespace, id); err != nil {
			return fmt.Errorf("failed to delete vector %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteNamespace(ctx context.Context, namespace string) error {
	if namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM vectors WHERE namespace = ?", namespace)
	if err != nil {
		return fmt.Errorf("failed to delete namespace %s: %w", namespace, err)
	}
	return nil
}
