package model

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
)

type ConversationRepository interface {
	// AddMessage appends a message to the conversation history for the given thread
	AddMessage(ctx context.Context, threadID string, message *schema.Message) error

	// LoadHistory retrieves the conversation history for a thread
	LoadHistory(ctx context.Context, threadID string) (*ConversationHistory, error)

	// ClearHistory removes all conversation history for a thread
	ClearHistory(ctx context.Context, threadID string) error

	// GetMessageCount returns the number of messages in the conversation
	GetMessageCount(ctx context.Context, threadID string) (int, error)
}

// CheckpointRepository persists the durable TurnState subset per thread.
// SaveCheckpoint must complete before a turn is acknowledged to the client.
type CheckpointRepository interface {
	SaveCheckpoint(ctx context.Context, threadID string, cp Checkpoint) error

	// LoadCheckpoint returns nil when no checkpoint exists for the thread.
	LoadCheckpoint(ctx context.Context, threadID string) (*Checkpoint, error)
}

// Meeting is a scheduling event reported by the client over the socket.
type Meeting struct {
	ThreadID     string    `json:"thread_id"`
	MeetingLink  string    `json:"meeting_link"`
	ScheduledFor string    `json:"scheduled_for,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type MeetingRepository interface {
	SaveMeeting(ctx context.Context, m Meeting) error
}

// PresentationURLRepository maps a presentation type (e.g. "pricing") to a
// stored artifact URL, populated by the upload endpoint.
type PresentationURLRepository interface {
	RegisterPresentationURL(ctx context.Context, urlType, url string) error

	// LookupPresentationURL returns "" without error when nothing is registered.
	LookupPresentationURL(ctx context.Context, urlType string) (string, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ThreadID string
	Messages []*schema.Message
}
