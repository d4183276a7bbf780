package conversations

import (
	"context"
	"strings"

	"github.com/advisor-core/server/internal/agent/model"

	"github.com/cloudwego/eino/schema"
)

type MessagesManager struct {
	conversationRepo model.ConversationRepository
	historyWindow    int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		historyWindow:    config.HistoryWindow,
	}
}

// ProcessUserMessage appends the new utterance to the thread and returns the
// full history including it. Blank utterances are not persisted, which lets
// the chat node detect a turn with nothing to respond to.
func (cm *MessagesManager) ProcessUserMessage(ctx context.Context, threadID string, utterance string) (*model.ConversationHistory, error) {
	if strings.TrimSpace(utterance) != "" {
		userMsg := schema.UserMessage(utterance)
		if err := cm.conversationRepo.AddMessage(ctx, threadID, userMsg); err != nil {
			return nil, err
		}
	}
	return cm.conversationRepo.LoadHistory(ctx, threadID)
}

// SaveAssistant persists a final assistant reply for the thread.
func (cm *MessagesManager) SaveAssistant(ctx context.Context, threadID string, content string) error {
	assistantMsg := schema.AssistantMessage(content, nil)
	return cm.conversationRepo.AddMessage(ctx, threadID, assistantMsg)
}

// BuildTurnPrompt concatenates retrieved context, the persona prompt, a
// rolling history window, and the raw user utterance into the single-turn
// completion prompt. The final history entry (the just-added utterance) is
// excluded from the window so it is not duplicated.
func (cm *MessagesManager) BuildTurnPrompt(chunks []model.ContextChunk, persona string, history []*schema.Message, utterance string) string {
	var b strings.Builder

	b.WriteString("Context:")
	b.WriteString(contextText(chunks))
	b.WriteString("\n\n")
	b.WriteString(persona)
	b.WriteString("\n\nHistory:")
	b.WriteString(cm.historyText(history))
	b.WriteString("\n\n")
	b.WriteString(utterance)

	return b.String()
}

func contextText(chunks []model.ContextChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.Snippet == "" {
			continue
		}
		parts = append(parts, c.Snippet)
	}
	return strings.Join(parts, " ")
}

func (cm *MessagesManager) historyText(messages []*schema.Message) string {
	if len(messages) > 0 {
		messages = messages[:len(messages)-1]
	}
	recent := trimTail(messages, cm.historyWindow-1)

	var b strings.Builder
	for _, msg := range messages2lines(recent) {
		b.WriteString(msg)
	}
	return b.String()
}

func messages2lines(messages []*schema.Message) []string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			lines = append(lines, "\nUserMessage("+msg.Content+")")
		case schema.Assistant:
			lines = append(lines, "\nAssistantMessage("+msg.Content+")")
		}
	}
	return lines
}

// RecentUserText joins the most recent user-authored messages, oldest first.
// The presentation tool summarizes this slice into a slide descriptor.
func RecentUserText(messages []*schema.Message, max int) string {
	userMsgs := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg != nil && msg.Role == schema.User && msg.Content != "" {
			userMsgs = append(userMsgs, msg.Content)
		}
	}
	if len(userMsgs) > max {
		userMsgs = userMsgs[len(userMsgs)-max:]
	}
	return strings.Join(userMsgs, " ")
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns < 0 {
		maxTurns = 0
	}
	if len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
