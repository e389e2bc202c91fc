package ai

import (
	"context"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    string // system, user, assistant
	Content string
}

// StreamEventType classifies events on a generation stream.
type StreamEventType string

const (
	// StreamEventDelta carries a partial chunk of assistant output.
	StreamEventDelta StreamEventType = "delta"
	// StreamEventStatus carries a provider status marker.
	StreamEventStatus StreamEventType = "status"
	// StreamEventDone marks successful completion of the stream.
	StreamEventDone StreamEventType = "done"
	// StreamEventError terminates the stream with a provider failure.
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one incremental unit of generation output. A stream ends
// with exactly one terminal event, either done or error, never both.
type StreamEvent struct {
	Type    StreamEventType
	Content string
	Err     error
}

// GenerateRequest describes one generation call.
type GenerateRequest struct {
	// ConversationID is the provider-side handle; empty for stateless chat.
	ConversationID string
	// Agent identifies the assistant identity to generate under. May be nil
	// for stateless chat, in which case Model is used directly.
	Agent *Agent
	// Model overrides the agent model for stateless chat.
	Model string
	// History holds the conversation turns in order, including the newest
	// user turn last.
	History []Turn
}

// ConversationProvider is the narrow surface of the generative-completion
// provider. A single configured implementation is constructed at process
// start and shared across requests; implementations must be safe for
// concurrent use.
type ConversationProvider interface {
	// CreateConversation creates a provider-side conversation and returns
	// its opaque handle.
	CreateConversation(ctx context.Context) (string, error)

	// AppendTurn appends a turn to the conversation and returns the
	// provider-assigned message ID.
	AppendTurn(ctx context.Context, conversationID string, turn Turn) (string, error)

	// GenerateStream starts one generation and returns its event stream.
	// The returned channel is closed after the terminal event. Canceling ctx
	// stops the generation best-effort.
	GenerateStream(ctx context.Context, req *GenerateRequest) (<-chan StreamEvent, error)
}

// Helper constructors for turns.

// SystemTurn creates a system turn.
func SystemTurn(content string) Turn {
	return Turn{Role: "system", Content: content}
}

// UserTurn creates a user turn.
func UserTurn(content string) Turn {
	return Turn{Role: "user", Content: content}
}

// AssistantTurn creates an assistant turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: "assistant", Content: content}
}
