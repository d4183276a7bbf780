// Package graph composes the per-turn conversation pipeline: refresh state,
// run the retrieval-augmented chat model, optionally branch into a tool node,
// and finalize the turn result against durable storage.
package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/advisor-core/server/internal/agent/completion"
	"github.com/advisor-core/server/internal/agent/graph/conversations"
	"github.com/advisor-core/server/internal/agent/graph/nodes"
	"github.com/advisor-core/server/internal/agent/graph/observers"
	"github.com/advisor-core/server/internal/agent/model"
	"github.com/advisor-core/server/internal/agent/retriever"
	"github.com/advisor-core/server/internal/artifact"
	logx "github.com/advisor-core/server/pkg/logger"
)

// Config holds everything needed to compose the full turn graph end-to-end.
type Config struct {
	APIKey  string
	BaseURL string

	ResponseModel model.ResponseModelConfig
	SummaryModel  model.SummaryModelConfig
	Prompt        model.PersonaPromptConfig
	ToolLinks     model.ToolLinksConfig
	Conversation  model.ConversationConfig

	ConversationRepo model.ConversationRepository
	CheckpointRepo   model.CheckpointRepository
	PresentationURLs model.PresentationURLRepository
	Retriever        retriever.Retriever
	ArtifactStore    artifact.Store

	// Models overrides the Gemini completers when set; used by tests and by
	// callers that share models across engines.
	Models *completion.Models
}

// GraphConfig holds the composed collaborators the builder wires into nodes.
type GraphConfig struct {
	Models           *completion.Models
	MessagesManager  *conversations.MessagesManager
	CheckpointRepo   model.CheckpointRepository
	PresentationURLs model.PresentationURLRepository
	Retriever        retriever.Retriever
	ArtifactStore    artifact.Store
	Prompt           model.PersonaPromptConfig
	ToolLinks        model.ToolLinksConfig
	Conversation     model.ConversationConfig
	Gate             *nodes.RefreshGate
}

// GraphBuilder handles the construction of the turn graph.
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *model.TurnResult]
}

// Engine executes compiled turn graphs for one client session. It is not
// safe for concurrent Turn calls; each connection owns its own Engine.
type Engine struct {
	runnable compose.Runnable[model.QueryInput, *model.TurnResult]
	gate     *nodes.RefreshGate
}

// Turn processes one user utterance and returns the turn outcome.
func (e *Engine) Turn(ctx context.Context, in model.QueryInput) (*model.TurnResult, error) {
	ctx, tracker := completion.WithCostTracker(ctx)

	out, err := e.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()...))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("graph returned nil result")
	}
	out.CostUSD = tracker.TotalUSD()

	logx.Debug().
		Str("thread_id", in.ThreadID).
		Str("ui_mode", string(out.UIMode)).
		Float64("turn_cost_usd", out.CostUSD).
		Msg("Turn completed")
	return out, nil
}

// Reset re-arms the one-shot state refresh, so the next turn starts from
// clean volatile state again.
func (e *Engine) Reset() {
	e.gate.Reset()
}

// BuildTurnEngine composes chat models, the messages manager, builds the
// graph, and returns a ready Engine.
func BuildTurnEngine(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.CheckpointRepo == nil {
		return nil, fmt.Errorf("checkpoint repo is nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is nil")
	}
	if cfg.ArtifactStore == nil {
		return nil, fmt.Errorf("artifact store is nil")
	}
	if cfg.PresentationURLs == nil {
		return nil, fmt.Errorf("presentation url repo is nil")
	}

	models := cfg.Models
	if models == nil {
		var err error
		models, err = completion.NewModels(ctx, completion.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Response: &cfg.ResponseModel,
			Summary:  &cfg.SummaryModel,
		})
		if err != nil {
			return nil, err
		}
	}

	mm := conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation)
	gate := nodes.NewRefreshGate()

	runnable, err := BuildGraph(ctx, &GraphConfig{
		Models:           models,
		MessagesManager:  mm,
		CheckpointRepo:   cfg.CheckpointRepo,
		PresentationURLs: cfg.PresentationURLs,
		Retriever:        cfg.Retriever,
		ArtifactStore:    cfg.ArtifactStore,
		Prompt:           cfg.Prompt,
		ToolLinks:        cfg.ToolLinks,
		Conversation:     cfg.Conversation,
		Gate:             gate,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Turn graph built successfully")
	return &Engine{runnable: runnable, gate: gate}, nil
}

// BuildGraph constructs and returns the compiled turn graph.
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *model.TurnResult], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Models == nil || config.Models.Response == nil || config.Models.Summary == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.Gate == nil {
		config.Gate = nodes.NewRefreshGate()
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *model.TurnResult](
			compose.WithGenLocalState(func(ctx context.Context) *model.TurnState {
				return model.NewTurnState()
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeStateRefresh,
		nodes.NewStateRefreshNode(b.config.CheckpointRepo, b.config.MessagesManager, b.config.Prompt, b.config.Gate),
	)

	b.graph.AddLambdaNode(nodes.NodeChat,
		nodes.NewChatNode(b.config.MessagesManager, b.config.Retriever, b.config.Models.Response, b.config.Prompt, b.config.Conversation),
		compose.WithStatePostHandler(nodes.NewChatPostHandler(b.config.MessagesManager)),
	)

	b.graph.AddLambdaNode(nodes.NodePresentation,
		nodes.NewPresentationNode(b.config.MessagesManager, b.config.Models.Summary, b.config.ArtifactStore),
	)

	b.graph.AddLambdaNode(nodes.NodePricing,
		nodes.NewPricingNode(b.config.MessagesManager, b.config.PresentationURLs, b.config.ToolLinks),
	)

	b.graph.AddLambdaNode(nodes.NodeMeeting,
		nodes.NewMeetingNode(b.config.MessagesManager, b.config.ToolLinks),
	)

	b.graph.AddLambdaNode(nodes.NodeFinalize,
		nodes.NewFinalizeNode(b.config.CheckpointRepo),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeStateRefresh},
		{nodes.NodeStateRefresh, nodes.NodeChat},
		{nodes.NodePresentation, nodes.NodeFinalize},
		{nodes.NodePricing, nodes.NodeFinalize},
		{nodes.NodeMeeting, nodes.NodeFinalize},
		{nodes.NodeFinalize, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates the directive routing branch after the chat node
func (b *GraphBuilder) addBranches() error {
	directiveBranch := compose.NewGraphBranch(
		nodes.NewDirectiveCondition(b.config.MessagesManager),
		map[string]bool{
			nodes.NodePresentation: true,
			nodes.NodePricing:      true,
			nodes.NodeMeeting:      true,
			nodes.NodeFinalize:     true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeChat, directiveBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding directive branch")
		return fmt.Errorf("error adding directive branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *model.TurnResult], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(20))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
