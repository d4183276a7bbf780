package model

// ================ Config ================
type ConversationConfig struct {
	TTL string `envconfig:"CONVERSATION_TTL" default:"15m"`
	// HistoryWindow bounds how many prior messages the chat prompt carries.
	HistoryWindow int `envconfig:"CONVERSATION_HISTORY_WINDOW" default:"50"`
	// ToolSuggestAfter is the number of turns after which the persona may
	// proactively steer the conversation toward an unused tool.
	ToolSuggestAfter int `envconfig:"CONVERSATION_TOOL_SUGGEST_AFTER" default:"3"`
	// RetrievalTopK is how many context chunks each turn requests.
	RetrievalTopK int `envconfig:"CONVERSATION_RETRIEVAL_TOP_K" default:"5"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
}

// SummaryModelConfig drives the short descriptor used by the presentation
// tool and the end-of-session summary email.
type SummaryModelConfig struct {
	Model       string  `envconfig:"SUMMARY_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"SUMMARY_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"SUMMARY_TEMPERATURE" default:"0.2"`
}

type PersonaPromptConfig struct {
	BusinessType string `envconfig:"PROMPT_BUSINESS_TYPE" default:"AI sales platform"`
	BusinessName string `envconfig:"PROMPT_BUSINESS_NAME" default:"Smooth AI"`
	// Greeting is the assistant message injected by the one-shot refresh.
	Greeting string `envconfig:"PROMPT_GREETING" default:"Hi there!"`
}

// ToolLinksConfig holds the side-channel URLs handed out by tool nodes when
// no registered presentation URL overrides them.
type ToolLinksConfig struct {
	PricingPageURL      string `envconfig:"PRICING_PAGE_URL" default:"https://smooth.ai/pricing"`
	MeetingSchedulerURL string `envconfig:"MEETING_SCHEDULER_URL" default:"https://calendly.com/smooth-ai/demo"`
}
