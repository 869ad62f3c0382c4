package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/echotwin/echotwin/internal/apperr"
	"github.com/echotwin/echotwin/internal/store"
	"github.com/echotwin/echotwin/internal/vectorstore"
)

// AssistantService assembles grounding context and produces answers. The
// question is embedded with the same pinned model used at ingestion time,
// matched against the scope's namespace only.
type AssistantService struct {
	store    *store.SQLiteStore
	vectors  vectorstore.Store
	embedder Embedder
	chatter  Chatter
	topK     int
	logger   *zap.Logger
}

func NewAssistantService(s *store.SQLiteStore, v vectorstore.Store, e Embedder, c Chatter, topK int, logger *zap.Logger) *AssistantService {
	if topK <= 0 {
		topK = 5
	}
	return &AssistantService{store: s, vectors: v, embedder: e, chatter: c, topK: topK, logger: logger}
}

// Answer holds the model reply plus the raw retrieved context for
// auditability. The reply is inherently non-deterministic; RetrievedContext
// is the part callers can assert on.
type Answer struct {
	Text             string `json:"answer"`
	RetrievedContext string `json:"retrievedContext"`
}

func (s *AssistantService) Answer(ctx context.Context, scope Scope, question string, history []Message) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, apperr.NewValidation("question is required")
	}

	retrieved, err := s.RetrieveContext(ctx, scope, question)
	if err != nil {
		return nil, err
	}

	contract, fields, err := s.promptInputs(scope)
	if err != nil {
		return nil, err
	}

	system := BuildSystemPrompt(contract, fields, retrieved)
	reply, err := s.chatter.Chat(ctx, system, history, question)
	if err != nil {
		return nil, apperr.NewUpstream("chat completion", err)
	}

	return &Answer{Text: reply, RetrievedContext: retrieved}, nil
}

// RetrieveContext embeds the question, queries the scope's namespace for the
// top matches, and concatenates their texts in ranked order with blank-line
// separators. Empty string when nothing matched.
func (s *AssistantService) RetrieveContext(ctx context.Context, scope Scope, question string) (string, error) {
	queryEmbedding, err := s.embedder.EmbedText(ctx, question)
	if err != nil {
		return "", apperr.NewUpstream("query embedding", err)
	}

	matches, err := s.vectors.Query(ctx, scope.Namespace(), queryEmbedding, s.topK)
	if err != nil {
		return "", apperr.NewInternal(err)
	}
	if len(matches) == 0 {
		s.logger.Debug("no matches for query", zap.String("namespace", scope.Namespace()))
		return "", nil
	}

	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		texts = append(texts, m.Text)
	}
	return strings.Join(texts, "\n\n"), nil
}

// promptInputs loads the behavior contract and profile fields for a scope.
// Profile scope uses the user's structured profile; project scope uses the
// project's name, description, and optional custom system prompt.
func (s *AssistantService) promptInputs(scope Scope) (string, []PromptField, error) {
	if scope.IsProject() {
		project, err := s.store.GetProject(scope.ProjectID)
		if err != nil {
			return "", nil, apperr.NewInternal(err)
		}
		if project == nil {
			return "", nil, apperr.NewNotFound("project")
		}
		contract := personaContract
		if project.SystemPrompt != "" {
			contract = project.SystemPrompt
		}
		fields := []PromptField{
			{Label: "Project name", Value: project.Name},
			{Label: "Project description", Value: project.Description},
		}
		return contract, fields, nil
	}

	user, err := s.store.GetUser(scope.UID)
	if err != nil {
		return "", nil, apperr.NewInternal(err)
	}
	if user == nil {
		return "", nil, apperr.NewNotFound("user")
	}
	return personaContract, profileFields(user), nil
}

func profileFields(user *store.User) []PromptField {
	return []PromptField{
		{Label: "Name", Value: user.Username},
		{Label: "Bio", Value: user.Profile.Bio},
		{Label: "Personality", Value: user.Profile.Personality},
		{Label: "Work style", Value: user.Profile.WorkStyle},
		{Label: "Communication style", Value: user.Profile.CommunicationStyle},
		{Label: "Interests", Value: user.Profile.Interests},
		{Label: "Writing sample", Value: user.Profile.WritingSample},
	}
}
