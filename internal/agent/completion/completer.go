package completion

import "context"

// Completer is the stateless text-in/text-out completion collaborator.
// An empty reply is valid output, not an error.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
