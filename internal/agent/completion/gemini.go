package completion

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/advisor-core/server/internal/agent/model"
	errx "github.com/advisor-core/server/internal/core/error"
	logx "github.com/advisor-core/server/pkg/logger"
)

// Config holds the configuration for chat model creation.
type Config struct {
	APIKey   string
	BaseURL  string
	Response *model.ResponseModelConfig
	Summary  *model.SummaryModelConfig
}

// Models bundles the two completers the graph needs: the main response
// model and the cheaper summary model used by the presentation tool and
// the session summary email.
type Models struct {
	Response Completer
	Summary  Completer
}

// GeminiCompleter adapts an Eino Gemini chat model to the single-turn
// Complete contract and accounts for per-call usage cost.
type GeminiCompleter struct {
	cm        *gemini.ChatModel
	modelName string
}

func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := g.cm.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		logx.Error().Err(err).Str("model", g.modelName).Msg("completion request failed")
		return "", errx.WrapCompletion(err)
	}
	if out == nil {
		return "", nil
	}

	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		pricing := model.ResolvePricing(g.modelName)
		inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
		logx.Debug().
			Str("model", g.modelName).
			Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
			Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
			Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
			Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", totalC).
			Msg("LLM usage")
		costFromContext(ctx).add(totalC)
	}

	return out.Content, nil
}

// NewModels creates both chat models against a shared Gemini client.
func NewModels(ctx context.Context, config Config) (*Models, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	responseModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Response.Model,
		Temperature: &config.Response.Temperature,
		MaxTokens:   &config.Response.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	summaryModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Summary.Model,
		Temperature: &config.Summary.Temperature,
		MaxTokens:   &config.Summary.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating summary model")
		return nil, fmt.Errorf("error creating summary model: %w", err)
	}

	return &Models{
		Response: &GeminiCompleter{cm: responseModel, modelName: config.Response.Model},
		Summary:  &GeminiCompleter{cm: summaryModel, modelName: config.Summary.Model},
	}, nil
}
