// Package observers wires Eino component callbacks into structured logs so a
// turn can be traced node by node without touching the graph code.
package observers

import (
	"github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// NewAllCallbacks returns the handler set passed to every graph invocation.
func NewAllCallbacks() []callbacks.Handler {
	handler := callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler()).
		Prompt(newPromptHandler()).
		Handler()
	return []callbacks.Handler{handler}
}
