package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/advisor-core/server/internal/agent/graph/router"
	"github.com/advisor-core/server/internal/agent/model"
)

//go:embed template/persona_prompt.txt
var personaSystemPrompt string

// DirectiveDoc is one row of the tool table shown to the model.
type DirectiveDoc struct {
	Name    string
	Purpose string
}

// ToolHints carries the per-thread tool-suggestion signal into the template.
type ToolHints struct {
	SuggestTool bool
	NextTool    string
	UsedTools   []string
}

func directiveDocs() []DirectiveDoc {
	return []DirectiveDoc{
		{Name: string(router.DirectivePresentation), Purpose: "share a generated presentation with the visitor"},
		{Name: string(router.DirectivePricing), Purpose: "send the visitor to the pricing page"},
		{Name: string(router.DirectiveMeeting), Purpose: "offer to schedule a meeting"},
	}
}

// RenderPersona renders the persona system prompt and triggers prompt callbacks.
func RenderPersona(ctx context.Context, config model.PersonaPromptConfig, hints ToolHints) (string, error) {
	// Render via Eino prompt component (Go template) to both format and emit callbacks
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(personaSystemPrompt),
	)
	vars := map[string]any{
		"BusinessType": config.BusinessType,
		"BusinessName": config.BusinessName,
		"Directives":   directiveDocs(),
		"UsedTools":    hints.UsedTools,
		"SuggestTool":  hints.SuggestTool,
		"NextTool":     hints.NextTool,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("persona prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("persona prompt render: empty result")
	}
	return msgs[0].Content, nil
}
