package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echotwin/echotwin/internal/apperr"
	"github.com/echotwin/echotwin/internal/store"
	"github.com/echotwin/echotwin/internal/vectorstore"
)

func TestIngestTextChunksAndCharges(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	newTestUser(t, s, "ingest-user", 30000, 30000)
	svc := newTestIngestion(t, s, v, &fakeEmbedder{})
	scope := ProfileScope("ingest-user")
	ctx := context.Background()

	text := "The zebra sanctuary opened in 2019. " + strings.Repeat("lorem ipsum dolor sit amet ", 92)
	text = text[:2500]

	item, err := svc.IngestText(ctx, scope, text, store.KindConversation)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), item.CharacterCount)
	assert.Equal(t, store.KindConversation, item.Kind)

	used, _, err := NewQuotaLedger(s).Usage(scope)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), used)

	// 2500 chars at size 1000 / overlap 100 is three windows.
	ids, err := v.ListByPrefix(ctx, scope.Namespace(), vectorstore.ChunkPrefix(item.ID))
	require.NoError(t, err)
	require.Len(t, ids, 3)
	for i, id := range ids {
		assert.Equal(t, vectorstore.ChunkID(item.ID, i), id)
	}
}

func TestIngestTextRejectsEmpty(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	newTestUser(t, s, "ingest-user", 30000, 30000)
	svc := newTestIngestion(t, s, v, &fakeEmbedder{})

	_, err := svc.IngestText(context.Background(), ProfileScope("ingest-user"), "   \n\t ", store.KindConversation)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestIngestTextQuotaRejectionLeavesNothingBehind(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	newTestUser(t, s, "full-user", 100, 100)
	svc := newTestIngestion(t, s, v, &fakeEmbedder{})
	scope := ProfileScope("full-user")
	ctx := context.Background()

	_, err := svc.IngestText(ctx, scope, strings.Repeat("a", 101), store.KindConversation)
	require.True(t, apperr.IsCode(err, apperr.CodeQuotaExceeded))

	items, err := svc.ListItems(scope, store.KindConversation)
	require.NoError(t, err)
	assert.Empty(t, items)

	used, _, err := NewQuotaLedger(s).Usage(scope)
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)
}

func TestIngestCompensatesOnEmbeddingFailure(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	newTestUser(t, s, "embed-fail-user", 30000, 30000)
	svc := newTestIngestion(t, s, v, failingEmbedder{})
	scope := ProfileScope("embed-fail-user")
	ctx := context.Background()

	_, err := svc.IngestText(ctx, scope, "some perfectly fine text", store.KindConversation)
	require.True(t, apperr.IsCode(err, apperr.CodeUpstream))

	// No item, no vectors, no charge: the pipeline rolled everything back.
	items, err := svc.ListItems(scope, store.KindConversation)
	require.NoError(t, err)
	assert.Empty(t, items)

	used, _, err := NewQuotaLedger(s).Usage(scope)
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)

	matches, err := v.Query(ctx, scope.Namespace(), embedFor("anything"), 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDeleteItemRemovesExactlyItsVectorsAndReleasesQuota(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	newTestUser(t, s, "delete-user", 30000, 30000)
	svc := newTestIngestion(t, s, v, &fakeEmbedder{})
	scope := ProfileScope("delete-user")
	ctx := context.Background()

	first, err := svc.IngestText(ctx, scope, strings.Repeat("first zebra text ", 100), store.KindConversation)
	require.NoError(t, err)
	second, err := svc.IngestText(ctx, scope, strings.Repeat("second gopher text ", 100), store.KindConversation)
	require.NoError(t, err)

	usedBefore, _, err := NewQuotaLedger(s).Usage(scope)
	require.NoError(t, err)
	assert.Equal(t, first.CharacterCount+second.CharacterCount, usedBefore)

	require.NoError(t, svc.DeleteItem(ctx, scope, first.ID, store.KindConversation))

	// The first item's vectors are gone; the second item's are untouched.
	ids, err := v.ListByPrefix(ctx, scope.Namespace(), vectorstore.ChunkPrefix(first.ID))
	require.NoError(t, err)
	assert.Empty(t, ids)
	ids, err = v.ListByPrefix(ctx, scope.Namespace(), vectorstore.ChunkPrefix(second.ID))
	require.NoError(t, err)
	assert.NotEmpty(t, ids)

	usedAfter, _, err := NewQuotaLedger(s).Usage(scope)
	require.NoError(t, err)
	assert.Equal(t, second.CharacterCount, usedAfter)

	items, err := svc.ListItems(scope, store.KindConversation)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, second.ID, items[0].ID)
}

func TestDeleteItemScopeAndKindMismatch(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	newTestUser(t, s, "owner", 30000, 30000)
	newTestUser(t, s, "other", 30000, 30000)
	svc := newTestIngestion(t, s, v, &fakeEmbedder{})
	ctx := context.Background()

	item, err := svc.IngestText(ctx, ProfileScope("owner"), "owned content", store.KindConversation)
	require.NoError(t, err)

	// Wrong user, wrong scope, and wrong kind all surface as not found.
	err = svc.DeleteItem(ctx, ProfileScope("other"), item.ID, store.KindConversation)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
	err = svc.DeleteItem(ctx, ProjectScope("owner", "some-project"), item.ID, store.KindConversation)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
	err = svc.DeleteItem(ctx, ProfileScope("owner"), item.ID, store.KindFile)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	// The item is still there for its real owner.
	items, err := svc.ListItems(ProfileScope("owner"), store.KindConversation)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestIngestNamespaceIsolation(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	newTestUser(t, s, "tenant-a", 30000, 30000)
	newTestUser(t, s, "tenant-b", 30000, 30000)
	svc := newTestIngestion(t, s, v, &fakeEmbedder{})
	ctx := context.Background()

	_, err := svc.IngestText(ctx, ProfileScope("tenant-a"), "tenant a knows about the zebra", store.KindConversation)
	require.NoError(t, err)

	// Tenant B queries their own namespace and sees nothing of tenant A.
	matches, err := v.Query(ctx, ProfileScope("tenant-b").Namespace(), embedFor("zebra"), 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestIngestFileWritingSampleSingleCharge(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	newTestUser(t, s, "sample-user", 30000, 30000)
	svc := newTestIngestion(t, s, v, &fakeEmbedder{})
	scope := ProfileScope("sample-user")
	ctx := context.Background()

	text := "I write in short, direct sentences. Always have."
	path := filepath.Join(t.TempDir(), "sample.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))

	item, err := svc.IngestFile(ctx, scope, path, "sample.txt", "text/plain", true)
	require.NoError(t, err)
	assert.True(t, item.IsWritingSample)
	assert.Equal(t, store.KindFile, item.Kind)

	// Stored as an item, mirrored into the profile field, charged once.
	user, err := s.GetUser("sample-user")
	require.NoError(t, err)
	assert.Equal(t, text, user.Profile.WritingSample)
	assert.Equal(t, int64(len(text)), user.ProfileCharactersUsed)
}

func TestIngestFilePlainUpload(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	newTestUser(t, s, "file-user", 30000, 30000)
	svc := newTestIngestion(t, s, v, &fakeEmbedder{})
	scope := ProfileScope("file-user")
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\nthe gopher burrows deep"), 0o600))

	item, err := svc.IngestFile(ctx, scope, path, "notes.md", "text/markdown", false)
	require.NoError(t, err)
	assert.Equal(t, "notes.md", item.Filename)
	assert.False(t, item.IsWritingSample)

	user, err := s.GetUser("file-user")
	require.NoError(t, err)
	assert.Empty(t, user.Profile.WritingSample)

	files, err := svc.ListItems(scope, store.KindFile)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
