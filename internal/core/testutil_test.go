package core

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/echotwin/echotwin/internal/store"
	"github.com/echotwin/echotwin/internal/vectorstore"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestVectors(t *testing.T, s *store.SQLiteStore) vectorstore.Store {
	t.Helper()
	v, err := vectorstore.NewSQLiteStore(s.DB(), zap.NewNop())
	require.NoError(t, err)
	return v
}

func newTestUser(t *testing.T, s *store.SQLiteStore, uid string, profileLimit, projectLimit int64) *store.User {
	t.Helper()
	user, err := s.CreateUser(uid, uid+"@example.com", "", 3, profileLimit, projectLimit)
	require.NoError(t, err)
	return user
}

// fakeEmbedder produces deterministic vectors: one dimension per keyword
// (occurrence count) plus a constant base component so no vector is zero.
// Texts sharing a keyword score high against each other, which makes
// retrieval assertions exact.
type fakeEmbedder struct {
	calls int
}

var embedKeywords = []string{"zebra", "quota", "gopher", "harbor"}

func embedFor(text string) []float32 {
	vec := make([]float32, len(embedKeywords)+1)
	lower := strings.ToLower(text)
	for i, kw := range embedKeywords {
		vec[i] = float32(strings.Count(lower, kw))
	}
	vec[len(embedKeywords)] = 0.1
	return vec
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	f.calls++
	return embedFor(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedFor(t)
	}
	return out, nil
}

// failingEmbedder aborts every batch, for compensation-path tests.
type failingEmbedder struct{}

func (failingEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embedding provider unavailable")
}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding provider unavailable")
}

// fakeChatter records the call shape and returns a canned reply; the reply
// itself is treated as opaque by every test.
type fakeChatter struct {
	lastSystem   string
	lastHistory  []Message
	lastQuestion string
	reply        string
}

func (f *fakeChatter) Chat(_ context.Context, system string, history []Message, question string) (string, error) {
	f.lastSystem = system
	f.lastHistory = history
	f.lastQuestion = question
	if f.reply == "" {
		return "canned reply", nil
	}
	return f.reply, nil
}

func newTestIngestion(t *testing.T, s *store.SQLiteStore, v vectorstore.Store, e Embedder) *IngestionService {
	t.Helper()
	return NewIngestionService(s, v, e, NewQuotaLedger(s), DefaultChunkSize, DefaultChunkOverlap, testLogger())
}
