package completion

import (
	"context"
	"sync"
)

// CostTracker accumulates LLM usage cost across the model calls of one turn.
// Safe for concurrent use; a turn may fan out to the summary model.
type CostTracker struct {
	mu       sync.Mutex
	totalUSD float64
}

func (t *CostTracker) add(usd float64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.totalUSD += usd
	t.mu.Unlock()
}

// TotalUSD returns the accumulated cost so far.
func (t *CostTracker) TotalUSD() float64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalUSD
}

type costKey struct{}

// WithCostTracker attaches a fresh tracker to the context for one turn.
func WithCostTracker(ctx context.Context) (context.Context, *CostTracker) {
	t := &CostTracker{}
	return context.WithValue(ctx, costKey{}, t), t
}

func costFromContext(ctx context.Context) *CostTracker {
	t, _ := ctx.Value(costKey{}).(*CostTracker)
	return t
}
