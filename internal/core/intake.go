package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/echotwin/echotwin/internal/apperr"
	"github.com/echotwin/echotwin/internal/store"
)

// IntakeService drives the conversational-intake mode: the assistant
// interviews the user about themselves, and each user turn is ingested into
// the profile scope as retrievable conversation content.
type IntakeService struct {
	store     *store.SQLiteStore
	ingestion *IngestionService
	chatter   Chatter
	logger    *zap.Logger
}

func NewIntakeService(s *store.SQLiteStore, ing *IngestionService, c Chatter, logger *zap.Logger) *IntakeService {
	return &IntakeService{store: s, ingestion: ing, chatter: c, logger: logger}
}

// IntakeReply is the interviewer's next question plus the item created from
// the user's message, if it was ingested.
type IntakeReply struct {
	Text string             `json:"reply"`
	Item *store.ContentItem `json:"item,omitempty"`
}

func (s *IntakeService) Converse(ctx context.Context, uid, message string, history []Message) (*IntakeReply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperr.NewValidation("message is required")
	}

	user, err := s.store.GetUser(uid)
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	if user == nil {
		return nil, apperr.NewNotFound("user")
	}

	// The user's turn becomes retrievable context for later answering. A
	// quota rejection aborts intake so the client can surface the limit.
	item, err := s.ingestion.IngestText(ctx, ProfileScope(uid), message, store.KindConversation)
	if err != nil {
		return nil, err
	}

	system := BuildSystemPrompt(intakeContract, profileFields(user), "")
	reply, err := s.chatter.Chat(ctx, system, history, message)
	if err != nil {
		// The message is already stored and charged; keep it and surface
		// the upstream failure.
		s.logger.Warn("intake chat failed after ingestion", zap.String("uid", uid), zap.Error(err))
		return nil, apperr.NewUpstream("intake completion", err)
	}

	return &IntakeReply{Text: reply, Item: item}, nil
}
