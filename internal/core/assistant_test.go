package core

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echotwin/echotwin/internal/apperr"
	"github.com/echotwin/echotwin/internal/store"
)

func TestAnswerRetrievesIngestedContent(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	newTestUser(t, s, "ask-user", 30000, 30000)
	embedder := &fakeEmbedder{}
	chatter := &fakeChatter{reply: "they visit the zebra sanctuary every spring"}
	ingestion := newTestIngestion(t, s, v, embedder)
	assistant := NewAssistantService(s, v, embedder, chatter, 5, testLogger())
	scope := ProfileScope("ask-user")
	ctx := context.Background()

	fact := "The zebra sanctuary opened in 2019 and hosts forty animals."
	_, err := ingestion.IngestText(ctx, scope, fact, store.KindConversation)
	require.NoError(t, err)
	_, err = ingestion.IngestText(ctx, scope, "An unrelated note about the harbor schedule.", store.KindConversation)
	require.NoError(t, err)

	answer, err := assistant.Answer(ctx, scope, "Tell me about the zebra sanctuary", nil)
	require.NoError(t, err)

	assert.Equal(t, chatter.reply, answer.Text)
	assert.Contains(t, answer.RetrievedContext, fact)
	// The assembled system prompt carries the retrieved context and the
	// question is forwarded untouched.
	assert.Contains(t, chatter.lastSystem, fact)
	assert.Equal(t, "Tell me about the zebra sanctuary", chatter.lastQuestion)
}

func TestAnswerRankedOrder(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	newTestUser(t, s, "rank-user", 30000, 30000)
	embedder := &fakeEmbedder{}
	ingestion := newTestIngestion(t, s, v, embedder)
	assistant := NewAssistantService(s, v, embedder, &fakeChatter{}, 5, testLogger())
	scope := ProfileScope("rank-user")
	ctx := context.Background()

	_, err := ingestion.IngestText(ctx, scope, "zebra zebra zebra", store.KindConversation)
	require.NoError(t, err)
	_, err = ingestion.IngestText(ctx, scope, "one zebra and much harbor harbor harbor talk", store.KindConversation)
	require.NoError(t, err)

	retrieved, err := assistant.RetrieveContext(ctx, scope, "zebra")
	require.NoError(t, err)

	parts := strings.Split(retrieved, "\n\n")
	require.Len(t, parts, 2)
	assert.Equal(t, "zebra zebra zebra", parts[0])
}

func TestAnswerNoMatchesUsesSentinel(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	newTestUser(t, s, "empty-user", 30000, 30000)
	chatter := &fakeChatter{}
	assistant := NewAssistantService(s, v, &fakeEmbedder{}, chatter, 5, testLogger())

	answer, err := assistant.Answer(context.Background(), ProfileScope("empty-user"), "anything at all", nil)
	require.NoError(t, err)
	assert.Empty(t, answer.RetrievedContext)
	assert.Contains(t, chatter.lastSystem, NoContextSentinel)
}

func TestAnswerValidatesQuestion(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	assistant := NewAssistantService(s, v, &fakeEmbedder{}, &fakeChatter{}, 5, testLogger())

	_, err := assistant.Answer(context.Background(), ProfileScope("anyone"), "   ", nil)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestAnswerProjectScopeUsesProjectPromptAndNamespace(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	newTestUser(t, s, "proj-ask-user", 30000, 30000)
	project, err := s.CreateProject("proj-ask-user", "Gopher Watch", "Tracks gopher sightings", "You are the Gopher Watch assistant.", true)
	require.NoError(t, err)

	embedder := &fakeEmbedder{}
	chatter := &fakeChatter{}
	ingestion := newTestIngestion(t, s, v, embedder)
	assistant := NewAssistantService(s, v, embedder, chatter, 5, testLogger())
	ctx := context.Background()

	profileScope := ProfileScope("proj-ask-user")
	projectScope := ProjectScope("proj-ask-user", project.ID)

	_, err = ingestion.IngestText(ctx, profileScope, "profile-only gopher fact", store.KindConversation)
	require.NoError(t, err)
	_, err = ingestion.IngestText(ctx, projectScope, "project gopher sighting at dawn", store.KindConversation)
	require.NoError(t, err)

	answer, err := assistant.Answer(ctx, projectScope, "any gopher news?", nil)
	require.NoError(t, err)

	// Only the project namespace is searched, and the project's custom
	// system prompt replaces the default contract.
	assert.Contains(t, answer.RetrievedContext, "project gopher sighting at dawn")
	assert.NotContains(t, answer.RetrievedContext, "profile-only gopher fact")
	assert.True(t, strings.HasPrefix(chatter.lastSystem, "You are the Gopher Watch assistant."))
	assert.Contains(t, chatter.lastSystem, "Project name: Gopher Watch")
}

func TestAnswerHistoryForwarded(t *testing.T) {
	s := newTestStore(t)
	v := newTestVectors(t, s)
	newTestUser(t, s, "hist-user", 30000, 30000)
	chatter := &fakeChatter{}
	assistant := NewAssistantService(s, v, &fakeEmbedder{}, chatter, 5, testLogger())

	history := []Message{
		{Role: "user", Content: "earlier question"},
		{Role: "model", Content: "earlier answer"},
	}
	_, err := assistant.Answer(context.Background(), ProfileScope("hist-user"), "follow-up", history)
	require.NoError(t, err)
	assert.Equal(t, history, chatter.lastHistory)
}
