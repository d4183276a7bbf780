package conversations

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisor-core/server/internal/agent/model"
)

// memoryRepo is an in-memory ConversationRepository for tests.
type memoryRepo struct {
	threads map[string][]*schema.Message
	failAdd bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{threads: map[string][]*schema.Message{}}
}

func (r *memoryRepo) AddMessage(ctx context.Context, threadID string, message *schema.Message) error {
	if r.failAdd {
		return fmt.Errorf("add failed")
	}
	r.threads[threadID] = append(r.threads[threadID], message)
	return nil
}

func (r *memoryRepo) LoadHistory(ctx context.Context, threadID string) (*model.ConversationHistory, error) {
	msgs := make([]*schema.Message, len(r.threads[threadID]))
	copy(msgs, r.threads[threadID])
	return &model.ConversationHistory{ThreadID: threadID, Messages: msgs}, nil
}

func (r *memoryRepo) ClearHistory(ctx context.Context, threadID string) error {
	delete(r.threads, threadID)
	return nil
}

func (r *memoryRepo) GetMessageCount(ctx context.Context, threadID string) (int, error) {
	return len(r.threads[threadID]), nil
}

func newTestManager(repo model.ConversationRepository, window int) *MessagesManager {
	return NewMessagesManager(repo, model.ConversationConfig{HistoryWindow: window})
}

// TestProcessUserMessage_PersistsAndReturnsHistory verifies the utterance is
// appended and included in the returned history.
func TestProcessUserMessage_PersistsAndReturnsHistory(t *testing.T) {
	repo := newMemoryRepo()
	mm := newTestManager(repo, 50)
	ctx := context.Background()

	history, err := mm.ProcessUserMessage(ctx, "t1", "hello")
	require.NoError(t, err)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, schema.User, history.Messages[0].Role)
	assert.Equal(t, "hello", history.Messages[0].Content)

	count, err := repo.GetMessageCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestProcessUserMessage_BlankNotPersisted verifies a blank utterance does
// not pollute the thread.
func TestProcessUserMessage_BlankNotPersisted(t *testing.T) {
	repo := newMemoryRepo()
	mm := newTestManager(repo, 50)
	ctx := context.Background()

	history, err := mm.ProcessUserMessage(ctx, "t1", "   ")
	require.NoError(t, err)
	assert.Empty(t, history.Messages)
}

// TestSaveAssistant verifies assistant replies land in the thread in order.
func TestSaveAssistant(t *testing.T) {
	repo := newMemoryRepo()
	mm := newTestManager(repo, 50)
	ctx := context.Background()

	_, err := mm.ProcessUserMessage(ctx, "t1", "hi")
	require.NoError(t, err)
	require.NoError(t, mm.SaveAssistant(ctx, "t1", "hello there"))

	history, err := repo.LoadHistory(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, schema.User, history.Messages[0].Role)
	assert.Equal(t, schema.Assistant, history.Messages[1].Role)
	assert.Equal(t, "hello there", history.Messages[1].Content)
}

// TestBuildTurnPrompt_Assembly verifies prompt section ordering and that the
// just-added utterance is not duplicated into the history window.
func TestBuildTurnPrompt_Assembly(t *testing.T) {
	mm := newTestManager(newMemoryRepo(), 50)

	history := []*schema.Message{
		schema.AssistantMessage("Hi there!", nil),
		schema.UserMessage("what do you sell?"),
	}
	chunks := []model.ContextChunk{
		{Snippet: "We sell software."},
		{Snippet: "Plans start at $29."},
	}

	prompt := mm.BuildTurnPrompt(chunks, "PERSONA", history, "what do you sell?")

	assert.Contains(t, prompt, "Context:We sell software. Plans start at $29.")
	assert.Contains(t, prompt, "PERSONA")
	assert.Contains(t, prompt, "AssistantMessage(Hi there!)")
	// The trailing utterance is the raw query, not a history line.
	assert.NotContains(t, prompt, "UserMessage(what do you sell?)")
	assert.Contains(t, prompt, "what do you sell?")
}

// TestBuildTurnPrompt_WindowTrims verifies only the most recent window of
// history is carried.
func TestBuildTurnPrompt_WindowTrims(t *testing.T) {
	mm := newTestManager(newMemoryRepo(), 3)

	history := []*schema.Message{
		schema.UserMessage("oldest"),
		schema.AssistantMessage("older reply", nil),
		schema.UserMessage("recent"),
		schema.UserMessage("latest"),
	}

	prompt := mm.BuildTurnPrompt(nil, "P", history, "latest")

	assert.NotContains(t, prompt, "UserMessage(oldest)")
	assert.Contains(t, prompt, "AssistantMessage(older reply)")
	assert.Contains(t, prompt, "UserMessage(recent)")
}

// TestRecentUserText verifies only user messages are joined, bounded by max.
func TestRecentUserText(t *testing.T) {
	msgs := []*schema.Message{
		schema.UserMessage("one"),
		schema.AssistantMessage("reply", nil),
		schema.UserMessage("two"),
		schema.UserMessage("three"),
	}

	assert.Equal(t, "one two three", RecentUserText(msgs, 10))
	assert.Equal(t, "two three", RecentUserText(msgs, 2))
	assert.Equal(t, "", RecentUserText(nil, 10))
}
