package nodes

import (
	"github.com/cloudwego/eino/schema"

	"github.com/advisor-core/server/internal/agent/graph/router"
)

// RefreshGate arms the one-shot state refresh performed on the first turn of
// an engine's life. Turns on a single connection run sequentially, so no
// locking is needed.
type RefreshGate struct {
	fired bool
}

func NewRefreshGate() *RefreshGate {
	return &RefreshGate{}
}

// TryFire reports true exactly once until Reset is called.
func (g *RefreshGate) TryFire() bool {
	if g.fired {
		return false
	}
	g.fired = true
	return true
}

// Reset re-arms the gate so the next turn refreshes state again.
func (g *RefreshGate) Reset() {
	g.fired = false
}

// ===== Small helpers to keep node bodies simple/readable =====

// latestUserMessage returns the content of the most recent user message, or
// "" when the history holds none.
func latestUserMessage(messages []*schema.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg != nil && msg.Role == schema.User && msg.Content != "" {
			return msg.Content
		}
	}
	return ""
}

// appendUniqueTool records a tool use without duplicating entries.
func appendUniqueTool(used []string, tool string) []string {
	for _, t := range used {
		if t == tool {
			return used
		}
	}
	return append(used, tool)
}

// nextUnusedTool picks the first directive not yet used on this thread, in
// suggestion order. Returns "" when every tool has been used.
func nextUnusedTool(used []string) string {
	for _, d := range router.Vocabulary() {
		seen := false
		for _, t := range used {
			if t == string(d) {
				seen = true
				break
			}
		}
		if !seen {
			return string(d)
		}
	}
	return ""
}
