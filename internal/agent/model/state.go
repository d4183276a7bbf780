package model

import (
	"github.com/cloudwego/eino/schema"
)

// UIMode is the rendering directive sent to the frontend with each turn.
type UIMode string

const (
	UIModeNormal        UIMode = "normal"
	UIModeAskForMeeting UIMode = "ask_for_meeting"
	UIModePresentation  UIMode = "presentation"
	UIModeGotoPage      UIMode = "goto_page"
)

// SharingState tracks whether the graph is mid-presentation-flow.
type SharingState string

const (
	SharingNormal       SharingState = "normal"
	SharingPresentation SharingState = "presentation"
)

// ContextChunk is one ranked snippet returned by the retriever.
type ContextChunk struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Snippet  string         `json:"snippet"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TurnState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//   - Durable fields round-trip through Checkpoint; Context and TotalCostUSD
//     are transient and rebuilt every turn.
type TurnState struct {
	ThreadID string
	Messages []*schema.Message // mutated only inside Eino state handlers
	Context  []ContextChunk    // most recent retrieval, overwritten per turn

	UIMode             UIMode
	SharingState       SharingState
	PresentationURL    string
	PricingPageURL     string
	VisitedPricingPage bool

	// ToolSuggestCount counts turns on this thread; past the configured
	// threshold the persona prompt may proactively steer toward a tool.
	ToolSuggestCount int
	UsedTools        []string

	// ForcedReply, when set, overrides the assistant reply in the final
	// result. Used for the apology path when routing sees a malformed reply.
	ForcedReply string

	// Accumulated total LLM cost (USD) across model invocations for this turn.
	TotalCostUSD float64
}

// NewTurnState returns a TurnState with per-turn defaults applied.
func NewTurnState() *TurnState {
	return &TurnState{
		UIMode:       UIModeNormal,
		SharingState: SharingNormal,
	}
}

// Checkpoint is the durable subset of TurnState, persisted per thread after
// each successful turn.
type Checkpoint struct {
	SharingState       SharingState `json:"sharing_state"`
	PresentationURL    string       `json:"presentation_url,omitempty"`
	PricingPageURL     string       `json:"pricing_page_url,omitempty"`
	VisitedPricingPage bool         `json:"visited_pricing_page"`
	ToolSuggestCount   int          `json:"tool_suggest_count"`
	UsedTools          []string     `json:"used_tools,omitempty"`
}

// Snapshot extracts the durable fields from the state.
func (s *TurnState) Snapshot() Checkpoint {
	return Checkpoint{
		SharingState:       s.SharingState,
		PresentationURL:    s.PresentationURL,
		PricingPageURL:     s.PricingPageURL,
		VisitedPricingPage: s.VisitedPricingPage,
		ToolSuggestCount:   s.ToolSuggestCount,
		UsedTools:          s.UsedTools,
	}
}

// Restore applies a persisted checkpoint onto a fresh state.
func (s *TurnState) Restore(cp Checkpoint) {
	if cp.SharingState != "" {
		s.SharingState = cp.SharingState
	}
	s.PresentationURL = cp.PresentationURL
	s.PricingPageURL = cp.PricingPageURL
	s.VisitedPricingPage = cp.VisitedPricingPage
	s.ToolSuggestCount = cp.ToolSuggestCount
	s.UsedTools = cp.UsedTools
}

// Refresh resets the volatile fields to defaults. Used by the one-shot
// refresh node at the start of an engine's life.
func (s *TurnState) Refresh() {
	s.Context = nil
	s.UIMode = UIModeNormal
	s.SharingState = SharingNormal
	s.PresentationURL = ""
	s.PricingPageURL = ""
	s.VisitedPricingPage = false
	s.ToolSuggestCount = 0
	s.UsedTools = nil
}

// QueryInput represents the input for processing one user turn.
type QueryInput struct {
	ThreadID  string `json:"thread_id"`
	Utterance string `json:"utterance"`
}

// TurnResult is the caller-facing outcome of one graph traversal.
type TurnResult struct {
	UIMode          UIMode  `json:"ui_mode"`
	Message         string  `json:"message"`
	PresentationURL string  `json:"presentation_url,omitempty"`
	PricingPageURL  string  `json:"pricing_page_url,omitempty"`
	CostUSD         float64 `json:"-"`
}
