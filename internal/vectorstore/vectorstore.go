// Package vectorstore provides namespace-scoped vector persistence and
// similarity search. A namespace is the unit of tenant isolation: a user's
// uid, or "project-{id}" for a project scope. Callers never issue
// cross-namespace operations.
package vectorstore

import (
	"context"
	"fmt"
)

// Vector is one embedded chunk ready for upsert.
type Vector struct {
	ID     string
	Values []float32
	Text   string
	ItemID string
}

// Match is one query result, scored by cosine similarity.
type Match struct {
	ID     string
	Score  float32
	Text   string
	ItemID string
}

type Store interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	// Query returns at most topK matches ordered by descending score.
	// Ties break deterministically on ascending id.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
	ListByPrefix(ctx context.Context, namespace, prefix string) ([]string, error)
	DeleteMany(ctx context.Context, namespace string, ids []string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

// ProfileNamespace returns the namespace for a user's personal scope.
func ProfileNamespace(uid string) string {
	return uid
}

// ProjectNamespace returns the namespace for a project scope.
func ProjectNamespace(projectID string) string {
	return "project-" + projectID
}

// ChunkID builds the vector id for chunk i of a content item. The "-chunk-"
// infix guarantees that no item id is a prefix of another item's chunk ids.
func ChunkID(itemID string, i int) string {
	return fmt.Sprintf("%s-chunk-%d", itemID, i)
}

// ChunkPrefix is the id prefix matching all and only an item's chunks.
func ChunkPrefix(itemID string) string {
	return itemID + "-chunk-"
}
