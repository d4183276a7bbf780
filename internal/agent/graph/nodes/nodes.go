package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/advisor-core/server/internal/agent/completion"
	"github.com/advisor-core/server/internal/agent/graph/conversations"
	"github.com/advisor-core/server/internal/agent/graph/prompts"
	"github.com/advisor-core/server/internal/agent/graph/router"
	"github.com/advisor-core/server/internal/agent/model"
	"github.com/advisor-core/server/internal/agent/retriever"
	"github.com/advisor-core/server/internal/artifact"
	errx "github.com/advisor-core/server/internal/core/error"
	logx "github.com/advisor-core/server/pkg/logger"
)

// Graph node names. Tool node names equal their directive so the routing
// condition can map a directive straight to its node.
const (
	NodeStateRefresh = "state_refresh"
	NodeChat         = "chat"
	NodePresentation = string(router.DirectivePresentation)
	NodePricing      = string(router.DirectivePricing)
	NodeMeeting      = string(router.DirectiveMeeting)
	NodeFinalize     = "finalize"
)

const (
	// RecentUserWindow bounds how many user messages feed the slide summary.
	RecentUserWindow = 50

	malformedReplyApology = "Sorry, I had trouble forming that response. Could you rephrase your question?"
)

// NewStateRefreshNode restores the durable thread checkpoint into graph state
// and, exactly once per gate, resets volatile fields and records the greeting.
func NewStateRefreshNode(
	cpRepo model.CheckpointRepository,
	mm *conversations.MessagesManager,
	promptConfig model.PersonaPromptConfig,
	gate *RefreshGate,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) (model.QueryInput, error) {
		cp, err := cpRepo.LoadCheckpoint(ctx, in.ThreadID)
		if err != nil {
			return in, fmt.Errorf("load checkpoint: %w", err)
		}

		err = compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			s.ThreadID = in.ThreadID
			if cp != nil {
				s.Restore(*cp)
			}
			if gate.TryFire() {
				s.Refresh()
				logx.Debug().Str("thread_id", in.ThreadID).Msg("Turn state refreshed")
				if promptConfig.Greeting != "" {
					if err := mm.SaveAssistant(ctx, in.ThreadID, promptConfig.Greeting); err != nil {
						logx.Error().Err(err).Str("thread_id", in.ThreadID).Msg("Error saving greeting")
					}
				}
			}
			return nil
		})
		if err != nil {
			return in, fmt.Errorf("failed to access state: %w", err)
		}

		return in, nil
	})
}

// NewChatNode runs one retrieval-augmented completion turn: persist the
// utterance, search the knowledge base, render the persona prompt, and ask
// the response model for a reply.
func NewChatNode(
	mm *conversations.MessagesManager,
	retr retriever.Retriever,
	completer completion.Completer,
	promptConfig model.PersonaPromptConfig,
	convConfig model.ConversationConfig,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) (*schema.Message, error) {
		history, err := mm.ProcessUserMessage(ctx, in.ThreadID, in.Utterance)
		if err != nil {
			return nil, fmt.Errorf("error getting conversation history: %w", err)
		}

		latest := latestUserMessage(history.Messages)
		if latest == "" {
			return nil, errx.NewInvalidTurnState("no user utterance to respond to")
		}

		// Retrieval soft-fails inside the retriever: an unreachable vector
		// store degrades to an uncontextualized reply, never a failed turn.
		chunks := retr.Search(ctx, latest, convConfig.RetrievalTopK)

		var hints prompts.ToolHints
		err = compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			s.Messages = history.Messages
			s.Context = chunks
			s.ToolSuggestCount++
			next := nextUnusedTool(s.UsedTools)
			hints = prompts.ToolHints{
				SuggestTool: s.ToolSuggestCount > convConfig.ToolSuggestAfter && next != "",
				NextTool:    next,
				UsedTools:   s.UsedTools,
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		persona, err := prompts.RenderPersona(ctx, promptConfig, hints)
		if err != nil {
			return nil, err
		}

		turnPrompt := mm.BuildTurnPrompt(chunks, persona, history.Messages, latest)

		reply, err := completer.Complete(ctx, turnPrompt)
		if err != nil {
			return nil, err
		}

		return schema.AssistantMessage(reply, nil), nil
	})
}

// NewChatPostHandler appends the model reply to graph state and persists it,
// unless the reply is a tool directive. Directive replies are routing
// signals; the tool node persists its own confirmation instead. Exactly one
// assistant message is appended per invocation; empty completion text is
// valid output, not an error.
func NewChatPostHandler(mm *conversations.MessagesManager) func(context.Context, *schema.Message, *model.TurnState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.TurnState) (*schema.Message, error) {
		if out == nil {
			return out, nil
		}

		state.Messages = append(state.Messages, out)

		if _, isDirective := router.Extract(out.Content); isDirective {
			return out, nil
		}
		if err := mm.SaveAssistant(ctx, state.ThreadID, out.Content); err != nil {
			logx.Error().Err(err).Str("thread_id", state.ThreadID).Msg("Error saving assistant reply")
			return nil, errx.WrapPersistence(err)
		}
		return out, nil
	}
}

// NewDirectiveCondition routes the model reply: a recognized tool directive
// enters its tool node, everything else goes straight to finalize. An empty
// assistant reply is an ordinary non-directive reply. Only a nil or
// non-assistant input degrades to the canned apology, which is appended to
// the history like any other assistant message.
func NewDirectiveCondition(mm *conversations.MessagesManager) func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		if input == nil || input.Role != schema.Assistant {
			logx.Warn().Msg("Non-assistant reply from chat node - finalizing with apology")
			var threadID string
			if err := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
				s.ForcedReply = malformedReplyApology
				s.Messages = append(s.Messages, schema.AssistantMessage(malformedReplyApology, nil))
				threadID = s.ThreadID
				return nil
			}); err != nil {
				return "", fmt.Errorf("failed to access state: %w", err)
			}
			if err := mm.SaveAssistant(ctx, threadID, malformedReplyApology); err != nil {
				logx.Error().Err(err).Str("thread_id", threadID).Msg("Error saving apology")
				return "", errx.WrapPersistence(err)
			}
			return NodeFinalize, nil
		}

		if directive, ok := router.Extract(input.Content); ok {
			logx.Debug().Str("directive", string(directive)).Msg("Routing to tool node")
			return string(directive), nil
		}

		return NodeFinalize, nil
	}
}

// NewPresentationNode summarizes the visitor's interest with the summary
// model, renders it onto a slide, stores the artifact, and confirms the URL.
func NewPresentationNode(
	mm *conversations.MessagesManager,
	summary completion.Completer,
	store artifact.Store,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (*schema.Message, error) {
		var threadID, recentUsers string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			s.SharingState = model.SharingPresentation
			threadID = s.ThreadID
			recentUsers = conversations.RecentUserText(s.Messages, RecentUserWindow)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		summaryPrompt := fmt.Sprintf(
			"Analyze the following conversation history to determine the most suitable presentation type "+
				"and generate the corresponding presentation text in less than 700 characters: %s",
			recentUsers,
		)
		slideText, err := summary.Complete(ctx, summaryPrompt)
		if err != nil {
			return nil, err
		}

		data, err := artifact.RenderSlide(slideText)
		if err != nil {
			logx.Error().Err(err).Str("thread_id", threadID).Msg("Error rendering slide")
			return nil, err
		}
		url, err := store.Store(ctx, data)
		if err != nil {
			logx.Error().Err(err).Str("thread_id", threadID).Msg("Error storing slide")
			return nil, err
		}

		confirmation := fmt.Sprintf("Presentation created and available at: %s", url)

		reply := schema.AssistantMessage(confirmation, nil)
		err = compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			s.UIMode = model.UIModePresentation
			s.PresentationURL = url
			s.UsedTools = appendUniqueTool(s.UsedTools, NodePresentation)
			s.Messages = append(s.Messages, reply)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if err := mm.SaveAssistant(ctx, threadID, confirmation); err != nil {
			logx.Error().Err(err).Str("thread_id", threadID).Msg("Error saving presentation confirmation")
			return nil, errx.WrapPersistence(err)
		}

		logx.Debug().Str("thread_id", threadID).Str("url", url).Msg("Presentation tool completed")
		return reply, nil
	})
}

// NewPricingNode points the visitor at the pricing page. A registered
// pricing presentation URL takes precedence over the configured static link.
func NewPricingNode(
	mm *conversations.MessagesManager,
	urls model.PresentationURLRepository,
	links model.ToolLinksConfig,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (*schema.Message, error) {
		url, err := urls.LookupPresentationURL(ctx, "pricing")
		if err != nil {
			logx.Error().Err(err).Msg("Error looking up pricing URL - using configured link")
			url = ""
		}
		if url == "" {
			url = links.PricingPageURL
		}

		confirmation := fmt.Sprintf("You can find our pricing details here: %s", url)

		var threadID string
		reply := schema.AssistantMessage(confirmation, nil)
		err = compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			threadID = s.ThreadID
			s.UIMode = model.UIModeGotoPage
			s.PricingPageURL = url
			s.VisitedPricingPage = true
			s.UsedTools = appendUniqueTool(s.UsedTools, NodePricing)
			s.Messages = append(s.Messages, reply)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if err := mm.SaveAssistant(ctx, threadID, confirmation); err != nil {
			logx.Error().Err(err).Str("thread_id", threadID).Msg("Error saving pricing confirmation")
			return nil, errx.WrapPersistence(err)
		}

		return reply, nil
	})
}

// NewMeetingNode offers the scheduling link.
func NewMeetingNode(
	mm *conversations.MessagesManager,
	links model.ToolLinksConfig,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (*schema.Message, error) {
		confirmation := fmt.Sprintf("Would you like to schedule a meeting? Pick a time that suits you: %s", links.MeetingSchedulerURL)

		var threadID string
		reply := schema.AssistantMessage(confirmation, nil)
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			threadID = s.ThreadID
			s.UIMode = model.UIModeAskForMeeting
			s.UsedTools = appendUniqueTool(s.UsedTools, NodeMeeting)
			s.Messages = append(s.Messages, reply)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if err := mm.SaveAssistant(ctx, threadID, confirmation); err != nil {
			logx.Error().Err(err).Str("thread_id", threadID).Msg("Error saving meeting offer")
			return nil, errx.WrapPersistence(err)
		}

		return reply, nil
	})
}

// NewFinalizeNode assembles the turn result and persists the durable
// checkpoint. Checkpoint persistence failing fails the turn: the client is
// never acknowledged for state that was not saved.
func NewFinalizeNode(cpRepo model.CheckpointRepository) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (*model.TurnResult, error) {
		var (
			res      model.TurnResult
			threadID string
			cp       model.Checkpoint
		)
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			res = model.TurnResult{
				UIMode:          s.UIMode,
				PresentationURL: s.PresentationURL,
				PricingPageURL:  s.PricingPageURL,
			}
			if in != nil {
				res.Message = in.Content
			}
			if s.ForcedReply != "" {
				res.Message = s.ForcedReply
				res.UIMode = model.UIModeNormal
				s.ForcedReply = ""
			}
			threadID = s.ThreadID
			cp = s.Snapshot()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if err := cpRepo.SaveCheckpoint(ctx, threadID, cp); err != nil {
			logx.Error().Err(err).Str("thread_id", threadID).Msg("Error saving checkpoint")
			return nil, errx.WrapPersistence(err)
		}

		return &res, nil
	})
}
