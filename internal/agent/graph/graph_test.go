package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisor-core/server/internal/agent/completion"
	"github.com/advisor-core/server/internal/agent/model"
	errx "github.com/advisor-core/server/internal/core/error"
)

// ===== In-memory fakes =====

type fakeRepo struct {
	threads        map[string][]*schema.Message
	checkpoints    map[string]model.Checkpoint
	urls           map[string]string
	failCheckpoint bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		threads:     map[string][]*schema.Message{},
		checkpoints: map[string]model.Checkpoint{},
		urls:        map[string]string{},
	}
}

func (r *fakeRepo) AddMessage(ctx context.Context, threadID string, message *schema.Message) error {
	r.threads[threadID] = append(r.threads[threadID], message)
	return nil
}

func (r *fakeRepo) LoadHistory(ctx context.Context, threadID string) (*model.ConversationHistory, error) {
	msgs := make([]*schema.Message, len(r.threads[threadID]))
	copy(msgs, r.threads[threadID])
	return &model.ConversationHistory{ThreadID: threadID, Messages: msgs}, nil
}

func (r *fakeRepo) ClearHistory(ctx context.Context, threadID string) error {
	delete(r.threads, threadID)
	return nil
}

func (r *fakeRepo) GetMessageCount(ctx context.Context, threadID string) (int, error) {
	return len(r.threads[threadID]), nil
}

func (r *fakeRepo) SaveCheckpoint(ctx context.Context, threadID string, cp model.Checkpoint) error {
	if r.failCheckpoint {
		return errx.WrapRedis(fmt.Errorf("connection refused"))
	}
	r.checkpoints[threadID] = cp
	return nil
}

func (r *fakeRepo) LoadCheckpoint(ctx context.Context, threadID string) (*model.Checkpoint, error) {
	cp, ok := r.checkpoints[threadID]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (r *fakeRepo) RegisterPresentationURL(ctx context.Context, urlType, url string) error {
	r.urls[urlType] = url
	return nil
}

func (r *fakeRepo) LookupPresentationURL(ctx context.Context, urlType string) (string, error) {
	return r.urls[urlType], nil
}

// scriptedCompleter replays canned replies in order; the last reply repeats.
type scriptedCompleter struct {
	replies []string
	calls   int
	prompts []string
	err     error
}

func (c *scriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	i := c.calls
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	c.calls++
	if i < 0 {
		return "", nil
	}
	return c.replies[i], nil
}

type fakeRetriever struct {
	chunks []model.ContextChunk
	calls  int
}

func (r *fakeRetriever) Search(ctx context.Context, query string, topK int) []model.ContextChunk {
	r.calls++
	return r.chunks
}

type fakeStore struct {
	stored [][]byte
}

func (s *fakeStore) Store(ctx context.Context, data []byte) (string, error) {
	s.stored = append(s.stored, data)
	return fmt.Sprintf("http://localhost:8000/api/ppt/media/slide-%d.png", len(s.stored)), nil
}

type engineFixture struct {
	repo      *fakeRepo
	response  *scriptedCompleter
	summary   *scriptedCompleter
	retriever *fakeRetriever
	store     *fakeStore
	engine    *Engine
}

func newEngineFixture(t *testing.T, responses ...string) *engineFixture {
	t.Helper()

	f := &engineFixture{
		repo:     newFakeRepo(),
		response: &scriptedCompleter{replies: responses},
		summary:  &scriptedCompleter{replies: []string{"A short pitch about our product."}},
		retriever: &fakeRetriever{chunks: []model.ContextChunk{
			{ID: "c1", Score: 0.9, Snippet: "We sell an AI sales platform."},
		}},
		store: &fakeStore{},
	}

	engine, err := BuildTurnEngine(context.Background(), Config{
		Prompt:       model.PersonaPromptConfig{BusinessType: "SaaS company", BusinessName: "Smooth AI", Greeting: "Hi there!"},
		ToolLinks:    model.ToolLinksConfig{PricingPageURL: "https://smooth.ai/pricing", MeetingSchedulerURL: "https://calendly.com/smooth-ai/demo"},
		Conversation: model.ConversationConfig{HistoryWindow: 50, ToolSuggestAfter: 3, RetrievalTopK: 5},

		ConversationRepo: f.repo,
		CheckpointRepo:   f.repo,
		PresentationURLs: f.repo,
		Retriever:        f.retriever,
		ArtifactStore:    f.store,
		Models:           &completion.Models{Response: f.response, Summary: f.summary},
	})
	require.NoError(t, err)
	f.engine = engine
	return f
}

// ===== Tests =====

// TestTurn_NormalReply verifies a plain model reply passes through with
// normal UI mode and lands in the persisted history.
func TestTurn_NormalReply(t *testing.T) {
	f := newEngineFixture(t, "We offer an AI sales platform starting at $29.")
	ctx := context.Background()

	res, err := f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "what do you sell?"})
	require.NoError(t, err)
	assert.Equal(t, model.UIModeNormal, res.UIMode)
	assert.Equal(t, "We offer an AI sales platform starting at $29.", res.Message)
	assert.Empty(t, res.PresentationURL)

	// greeting, user utterance, assistant reply
	msgs := f.repo.threads["t1"]
	require.Len(t, msgs, 3)
	assert.Equal(t, schema.Assistant, msgs[0].Role)
	assert.Equal(t, "Hi there!", msgs[0].Content)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, "what do you sell?", msgs[1].Content)
	assert.Equal(t, schema.Assistant, msgs[2].Role)

	// The turn prompt carries retrieved context and the utterance.
	require.Len(t, f.response.prompts, 1)
	assert.Contains(t, f.response.prompts[0], "We sell an AI sales platform.")
	assert.Contains(t, f.response.prompts[0], "what do you sell?")
}

// TestTurn_EmptyReplyIsValidOutput verifies an empty completion is a valid
// turn outcome: exactly one assistant message is still appended to the
// thread and the result carries the empty text with normal UI mode.
func TestTurn_EmptyReplyIsValidOutput(t *testing.T) {
	f := newEngineFixture(t, "")
	ctx := context.Background()

	res, err := f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "hello"})
	require.NoError(t, err)
	assert.Equal(t, model.UIModeNormal, res.UIMode)
	assert.Equal(t, "", res.Message)

	// greeting, user utterance, empty assistant reply
	msgs := f.repo.threads["t1"]
	require.Len(t, msgs, 3)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, "hello", msgs[1].Content)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, "", msgs[2].Content)
}

// TestTurn_EmptyRetrievalStillReplies verifies an empty knowledge base
// degrades to an uncontextualized reply, never a failed turn.
func TestTurn_EmptyRetrievalStillReplies(t *testing.T) {
	f := newEngineFixture(t, "Happy to help!")
	f.retriever.chunks = nil
	ctx := context.Background()

	res, err := f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "hello?"})
	require.NoError(t, err)
	assert.Equal(t, model.UIModeNormal, res.UIMode)
	assert.Equal(t, "Happy to help!", res.Message)
	assert.Equal(t, 1, f.retriever.calls)
}

// TestTurn_PresentationDirective verifies the ppt_sharing branch: the slide
// is rendered and stored, the confirmation replaces the directive in the
// persisted history, and the checkpoint records the sharing state.
func TestTurn_PresentationDirective(t *testing.T) {
	f := newEngineFixture(t, `{"directive": "ppt_sharing"}`)
	ctx := context.Background()

	res, err := f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "show me a presentation"})
	require.NoError(t, err)

	assert.Equal(t, model.UIModePresentation, res.UIMode)
	assert.NotEmpty(t, res.PresentationURL)
	assert.Contains(t, res.Message, res.PresentationURL)
	require.Len(t, f.store.stored, 1)

	// The raw directive must never be persisted; the confirmation is.
	for _, msg := range f.repo.threads["t1"] {
		assert.NotContains(t, msg.Content, "directive")
	}
	last := f.repo.threads["t1"][len(f.repo.threads["t1"])-1]
	assert.Equal(t, schema.Assistant, last.Role)
	assert.Contains(t, last.Content, "Presentation created and available at:")

	cp := f.repo.checkpoints["t1"]
	assert.Equal(t, model.SharingPresentation, cp.SharingState)
	assert.Equal(t, res.PresentationURL, cp.PresentationURL)
	assert.Contains(t, cp.UsedTools, "ppt_sharing")

	// Summary model was asked for the slide text.
	require.Len(t, f.summary.prompts, 1)
	assert.Contains(t, f.summary.prompts[0], "less than 700 characters")
}

// TestTurn_PricingDirective verifies the goto_pricing branch hands out the
// configured pricing URL and marks the visit in the checkpoint.
func TestTurn_PricingDirective(t *testing.T) {
	f := newEngineFixture(t, `{"directive": "goto_pricing"}`)
	ctx := context.Background()

	res, err := f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "how much is it?"})
	require.NoError(t, err)

	assert.Equal(t, model.UIModeGotoPage, res.UIMode)
	assert.Equal(t, "https://smooth.ai/pricing", res.PricingPageURL)
	assert.Contains(t, res.Message, "https://smooth.ai/pricing")

	cp := f.repo.checkpoints["t1"]
	assert.True(t, cp.VisitedPricingPage)
	assert.Contains(t, cp.UsedTools, "goto_pricing")
}

// TestTurn_PricingDirective_RegisteredURLWins verifies an uploaded pricing
// presentation overrides the static link.
func TestTurn_PricingDirective_RegisteredURLWins(t *testing.T) {
	f := newEngineFixture(t, `{"directive": "goto_pricing"}`)
	ctx := context.Background()
	require.NoError(t, f.repo.RegisterPresentationURL(ctx, "pricing", "http://localhost:8000/api/ppt/media/deck.pdf"))

	res, err := f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "pricing?"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api/ppt/media/deck.pdf", res.PricingPageURL)
}

// TestTurn_MeetingDirective verifies the ask_meeting branch.
func TestTurn_MeetingDirective(t *testing.T) {
	f := newEngineFixture(t, `{"directive": "ask_meeting"}`)
	ctx := context.Background()

	res, err := f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "can we talk?"})
	require.NoError(t, err)

	assert.Equal(t, model.UIModeAskForMeeting, res.UIMode)
	assert.Contains(t, res.Message, "https://calendly.com/smooth-ai/demo")
	assert.Contains(t, f.repo.checkpoints["t1"].UsedTools, "ask_meeting")
}

// TestTurn_SubstringDirectiveRoutes verifies the fallback substring match
// still triggers the tool branch.
func TestTurn_SubstringDirectiveRoutes(t *testing.T) {
	f := newEngineFixture(t, "Let me set that up. ppt_sharing")
	ctx := context.Background()

	res, err := f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "deck please"})
	require.NoError(t, err)
	assert.Equal(t, model.UIModePresentation, res.UIMode)
	assert.NotEmpty(t, res.PresentationURL)
}

// TestTurn_SequentialTurnsKeepOrder verifies two turns interleave correctly
// in the persisted thread.
func TestTurn_SequentialTurnsKeepOrder(t *testing.T) {
	f := newEngineFixture(t, "First answer.", "Second answer.")
	ctx := context.Background()

	_, err := f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "first question"})
	require.NoError(t, err)
	_, err = f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "second question"})
	require.NoError(t, err)

	msgs := f.repo.threads["t1"]
	require.Len(t, msgs, 5)
	contents := []string{}
	for _, m := range msgs {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{
		"Hi there!",
		"first question",
		"First answer.",
		"second question",
		"Second answer.",
	}, contents)
}

// TestTurn_RefreshIsOneShot verifies the greeting is injected only on the
// first turn of an engine, and that Reset re-arms the refresh.
func TestTurn_RefreshIsOneShot(t *testing.T) {
	f := newEngineFixture(t, "Reply.")
	ctx := context.Background()

	_, err := f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "one"})
	require.NoError(t, err)
	_, err = f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "two"})
	require.NoError(t, err)

	greetings := 0
	for _, m := range f.repo.threads["t1"] {
		if m.Content == "Hi there!" {
			greetings++
		}
	}
	assert.Equal(t, 1, greetings)

	f.engine.Reset()
	_, err = f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "three"})
	require.NoError(t, err)

	greetings = 0
	for _, m := range f.repo.threads["t1"] {
		if m.Content == "Hi there!" {
			greetings++
		}
	}
	assert.Equal(t, 2, greetings)
}

// TestTurn_CheckpointFailureFailsTurn verifies the persistence-before-ack
// rule: a failed checkpoint write fails the whole turn.
func TestTurn_CheckpointFailureFailsTurn(t *testing.T) {
	f := newEngineFixture(t, "Reply.")
	f.repo.failCheckpoint = true
	ctx := context.Background()

	_, err := f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "hello"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrPersistence))
}

// TestTurn_BlankUtteranceIsInvalid verifies a turn with nothing to respond
// to is rejected as invalid turn state.
func TestTurn_BlankUtteranceIsInvalid(t *testing.T) {
	f := newEngineFixture(t, "Reply.")
	ctx := context.Background()

	_, err := f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "   "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrInvalidTurnState))
}

// TestTurn_CompletionFailurePropagates verifies model failures surface as
// completion errors and nothing is acknowledged.
func TestTurn_CompletionFailurePropagates(t *testing.T) {
	f := newEngineFixture(t)
	f.response.err = errx.WrapCompletion(fmt.Errorf("upstream 500"))
	ctx := context.Background()

	_, err := f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "hello"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrCompletionFailure))
	assert.Empty(t, f.repo.checkpoints)
}

// TestTurn_CheckpointRestoredAcrossEngines verifies durable state survives a
// new engine: the pricing visit from one session is visible to the next.
func TestTurn_CheckpointRestoredAcrossEngines(t *testing.T) {
	f := newEngineFixture(t, `{"directive": "goto_pricing"}`)
	ctx := context.Background()

	_, err := f.engine.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "pricing?"})
	require.NoError(t, err)

	// Second engine over the same repos, e.g. a reconnect.
	second, err := BuildTurnEngine(ctx, Config{
		Prompt:       model.PersonaPromptConfig{BusinessName: "Smooth AI", BusinessType: "SaaS company"},
		ToolLinks:    model.ToolLinksConfig{PricingPageURL: "https://smooth.ai/pricing"},
		Conversation: model.ConversationConfig{HistoryWindow: 50, ToolSuggestAfter: 3, RetrievalTopK: 5},

		ConversationRepo: f.repo,
		CheckpointRepo:   f.repo,
		PresentationURLs: f.repo,
		Retriever:        f.retriever,
		ArtifactStore:    f.store,
		Models:           &completion.Models{Response: &scriptedCompleter{replies: []string{"Welcome back."}}, Summary: f.summary},
	})
	require.NoError(t, err)

	res, err := second.Turn(ctx, model.QueryInput{ThreadID: "t1", Utterance: "hi again"})
	require.NoError(t, err)
	// Refresh clears volatile state on the first turn of the new engine, and
	// finalize snapshots that cleared state back to the checkpoint.
	assert.Equal(t, model.UIModeNormal, res.UIMode)
	assert.False(t, f.repo.checkpoints["t1"].VisitedPricingPage)
}
