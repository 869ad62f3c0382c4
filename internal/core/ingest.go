package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/echotwin/echotwin/internal/apperr"
	"github.com/echotwin/echotwin/internal/store"
	"github.com/echotwin/echotwin/internal/vectorstore"
)

// IngestionService runs the extract → quota → persist → chunk → embed →
// upsert pipeline as one unit of transactional intent. Every step is a hard
// gate; failures past the quota commit compensate by deleting the item,
// its vectors, and the charged quota.
type IngestionService struct {
	store        *store.SQLiteStore
	vectors      vectorstore.Store
	embedder     Embedder
	quota        *QuotaLedger
	chunkSize    int
	chunkOverlap int
	logger       *zap.Logger
}

func NewIngestionService(s *store.SQLiteStore, v vectorstore.Store, e Embedder, q *QuotaLedger, chunkSize, chunkOverlap int, logger *zap.Logger) *IngestionService {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &IngestionService{
		store:        s,
		vectors:      v,
		embedder:     e,
		quota:        q,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// IngestText stores a text as a ContentItem in the given scope, charges its
// length against the scope's quota, and indexes its chunks under the scope's
// namespace.
func (s *IngestionService) IngestText(ctx context.Context, scope Scope, text, kind string) (*store.ContentItem, error) {
	item := &store.ContentItem{Kind: kind}
	return s.ingest(ctx, scope, text, item)
}

// IngestFile extracts text from an uploaded file and runs the standard
// pipeline. A writing sample additionally overwrites the profile's
// writingSample field with the full extracted text; both effects share the
// single quota charge. The caller removes the temp file afterwards.
func (s *IngestionService) IngestFile(ctx context.Context, scope Scope, path, filename, mimeType string, isWritingSample bool) (*store.ContentItem, error) {
	text, err := ExtractText(path, mimeType)
	if err != nil {
		return nil, err
	}

	item := &store.ContentItem{
		Kind:            store.KindFile,
		Filename:        filename,
		MimeType:        mimeType,
		IsWritingSample: isWritingSample,
	}
	stored, err := s.ingest(ctx, scope, text, item)
	if err != nil {
		return nil, err
	}

	if isWritingSample && !scope.IsProject() {
		if err := s.overwriteWritingSample(scope.UID, text); err != nil {
			s.logger.Error("failed to update writing sample profile field",
				zap.String("uid", scope.UID), zap.Error(err))
			return nil, err
		}
	}
	return stored, nil
}

func (s *IngestionService) ingest(ctx context.Context, scope Scope, text string, item *store.ContentItem) (*store.ContentItem, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.NewValidation("no extractable text in content")
	}

	length := int64(len(text))

	// Advisory gate first so rejections carry exact counter values before
	// anything is written.
	if err := s.quota.Reserve(scope, length); err != nil {
		return nil, err
	}

	item.UID = scope.UID
	item.ProjectID = scope.ProjectID
	item.Text = text
	item.CharacterCount = length
	if err := s.store.CreateItem(item); err != nil {
		return nil, apperr.NewInternal(err)
	}

	// The commit is a conditional increment; a concurrent ingestion may have
	// filled the scope since the reserve, in which case the item is rolled
	// back and the caller sees fresh counter values.
	if err := s.quota.Commit(scope, length); err != nil {
		if derr := s.store.DeleteItem(item.ID); derr != nil {
			s.logger.Error("failed to roll back item after quota rejection",
				zap.String("item", item.ID), zap.Error(derr))
		}
		return nil, err
	}

	if err := s.index(ctx, scope, item); err != nil {
		s.compensate(ctx, scope, item)
		return nil, err
	}

	s.logger.Info("ingested content item",
		zap.String("item", item.ID),
		zap.String("namespace", scope.Namespace()),
		zap.Int64("chars", length))
	return item, nil
}

// index chunks, embeds, and upserts an item's vectors. All-or-nothing: a
// failed embedding aborts without committing any vector.
func (s *IngestionService) index(ctx context.Context, scope Scope, item *store.ContentItem) error {
	chunks, err := ChunkText(item.Text, s.chunkSize, s.chunkOverlap)
	if err != nil {
		return apperr.NewInternal(err)
	}
	if len(chunks) == 0 {
		return nil
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return apperr.NewUpstream("chunk embedding", err)
	}

	vectors := make([]vectorstore.Vector, len(chunks))
	for i, chunk := range chunks {
		vectors[i] = vectorstore.Vector{
			ID:     vectorstore.ChunkID(item.ID, i),
			Values: embeddings[i],
			Text:   chunk,
			ItemID: item.ID,
		}
	}
	if err := s.vectors.Upsert(ctx, scope.Namespace(), vectors); err != nil {
		return apperr.NewInternal(err)
	}
	return nil
}

// compensate undoes a partially ingested item: vectors, metadata, quota.
// Best-effort; failures are logged, not surfaced, since the caller already
// has the original error.
func (s *IngestionService) compensate(ctx context.Context, scope Scope, item *store.ContentItem) {
	ns := scope.Namespace()
	if ids, err := s.vectors.ListByPrefix(ctx, ns, vectorstore.ChunkPrefix(item.ID)); err == nil && len(ids) > 0 {
		if err := s.vectors.DeleteMany(ctx, ns, ids); err != nil {
			s.logger.Error("compensation: failed to delete vectors", zap.String("item", item.ID), zap.Error(err))
		}
	}
	if err := s.store.DeleteItem(item.ID); err != nil {
		s.logger.Error("compensation: failed to delete item", zap.String("item", item.ID), zap.Error(err))
	}
	if err := s.quota.Release(scope, item.CharacterCount); err != nil {
		s.logger.Error("compensation: failed to release quota", zap.String("item", item.ID), zap.Error(err))
	}
}

// DeleteItem removes a content item, exactly its vectors (matched by the
// "-chunk-" id prefix), and releases its recorded character count from the
// scope's counter.
func (s *IngestionService) DeleteItem(ctx context.Context, scope Scope, itemID, kind string) error {
	item, err := s.store.GetItem(itemID)
	if err != nil {
		return apperr.NewInternal(err)
	}
	if item == nil || item.UID != scope.UID || item.ProjectID != scope.ProjectID || (kind != "" && item.Kind != kind) {
		return apperr.NewNotFound("content item")
	}

	ns := scope.Namespace()
	ids, err := s.vectors.ListByPrefix(ctx, ns, vectorstore.ChunkPrefix(item.ID))
	if err != nil {
		return apperr.NewInternal(err)
	}
	if err := s.vectors.DeleteMany(ctx, ns, ids); err != nil {
		return apperr.NewInternal(err)
	}
	if err := s.store.DeleteItem(item.ID); err != nil {
		return apperr.NewInternal(err)
	}
	if err := s.quota.Release(scope, item.CharacterCount); err != nil {
		return err
	}

	s.logger.Info("deleted content item",
		zap.String("item", item.ID),
		zap.String("namespace", ns),
		zap.Int("vectors", len(ids)),
		zap.Int64("chars", item.CharacterCount))
	return nil
}

// ListItems returns a scope's items of one kind, newest first.
func (s *IngestionService) ListItems(scope Scope, kind string) ([]store.ContentItem, error) {
	items, err := s.store.ListItems(scope.UID, scope.ProjectID, kind)
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	return items, nil
}

func (s *IngestionService) overwriteWritingSample(uid, text string) error {
	user, err := s.store.GetUser(uid)
	if err != nil {
		return apperr.NewInternal(err)
	}
	if user == nil {
		return apperr.NewNotFound("user")
	}
	profile := user.Profile
	profile.WritingSample = text
	if err := s.store.UpdateProfile(uid, profile); err != nil {
		return apperr.NewInternal(err)
	}
	return nil
}
