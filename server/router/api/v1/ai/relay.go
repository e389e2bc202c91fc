package ai

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/campfire-chat/campfire/plugin/ai"
	apierrors "github.com/campfire-chat/campfire/server/internal/errors"
	"github.com/campfire-chat/campfire/server/internal/observability"
	"github.com/campfire-chat/campfire/store"
)

// EventType classifies events emitted to relay callers.
type EventType string

const (
	// EventMeta is the first event of every stream and carries the
	// authoritative conversation handle and the provider message ID.
	EventMeta EventType = "meta"
	// EventDelta carries a partial chunk of assistant output.
	EventDelta EventType = "delta"
	// EventStatus carries a provider status marker.
	EventStatus EventType = "status"
	// EventDone marks successful completion.
	EventDone EventType = "done"
	// EventError terminates the stream with a failure.
	EventError EventType = "error"
)

// Event is one unit of relay output.
type Event struct {
	Type      EventType
	ThreadID  string
	MessageID string
	Content   string
	Err       error
}

// Request is one inbound chat turn.
type Request struct {
	// ThreadID is the caller-supplied conversation handle; empty requests a
	// new conversation.
	ThreadID string
	// Message is the user's input text.
	Message string
	// Agent is the optional agent selector; empty uses the default agent.
	Agent string
	// UserID is the authenticated principal.
	UserID int32
}

// ConversationStore is the narrow store surface the relay mirrors turns into.
type ConversationStore interface {
	GetConversation(ctx context.Context, find *store.FindConversation) (*store.Conversation, error)
	CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error)
	UpdateConversation(ctx context.Context, update *store.UpdateConversation) (*store.Conversation, error)
	CreateMessage(ctx context.Context, create *store.Message) (*store.Message, error)
	ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error)
}

// Relay turns one inbound chat request into one streamed reply. It sequences
// conversation-handle creation, turn submission, and generation against the
// provider, and forwards the provider's events to the caller in arrival
// order. Conversation state lives with the provider; the relay only mirrors
// turns into the local store for listing and history.
type Relay struct {
	provider ai.ConversationProvider
	registry *ai.Registry
	store    ConversationStore
	metrics  *observability.Metrics
}

// NewRelay creates a relay around a shared provider client.
func NewRelay(provider ai.ConversationProvider, registry *ai.Registry, store ConversationStore) *Relay {
	return &Relay{
		provider: provider,
		registry: registry,
		store:    store,
		metrics:  observability.GlobalMetrics(),
	}
}

// mirrorTimeout bounds best-effort store writes that outlive the request.
const mirrorTimeout = 5 * time.Second

// HandleMessage validates the request, ensures a conversation handle exists,
// appends the user turn, and starts one generation. Validation failures
// return before any provider call is made. The returned channel is closed
// after a single terminal event (done or error).
func (r *Relay) HandleMessage(ctx context.Context, req *Request) (<-chan Event, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, apierrors.InvalidArgument("message must not be empty")
	}

	agent, ok := r.registry.Resolve(req.Agent)
	if !ok {
		if req.Agent == "" {
			return nil, apierrors.AgentNotFound("no agent identity available")
		}
		return nil, apierrors.AgentNotFound(req.Agent)
	}

	logger := observability.NewRequestContext(slog.Default(), agent.Selector, req.UserID)
	logger.Info("chat relay started",
		slog.Int(observability.LogFieldMessageLen, len(message)),
	)
	r.metrics.RecordRequest(agent.Selector)

	threadID := req.ThreadID
	conversation, err := r.lookupConversation(ctx, threadID, req.UserID)
	if err != nil {
		r.metrics.RecordFailure(agent.Selector)
		return nil, apierrors.Internal("failed to look up conversation", err)
	}
	// A handle created under a different agent is stale: selecting a new
	// agent starts a new conversation.
	if conversation != nil && conversation.AgentID != agent.Selector {
		logger.Info("agent switched, discarding conversation handle",
			slog.String(observability.LogFieldThreadID, threadID),
			slog.String("previous_agent", conversation.AgentID),
		)
		threadID = ""
		conversation = nil
	}

	now := time.Now().Unix()
	if threadID == "" {
		threadID, err = r.provider.CreateConversation(ctx)
		if err != nil {
			r.metrics.RecordFailure(agent.Selector)
			return nil, apierrors.ProviderFailed("failed to create conversation", err)
		}
		logger.Debug("conversation created",
			slog.String(observability.LogFieldThreadID, threadID),
		)
	}
	conversation = r.mirrorConversation(ctx, conversation, threadID, message, agent.Selector, req.UserID, now, logger)

	// The agent identity leads every generation as a system turn, so two
	// agents never produce the same provider input.
	history := append([]ai.Turn{ai.SystemTurn(agent.SystemPrompt())}, r.loadHistory(ctx, conversation, logger)...)
	history = append(history, ai.UserTurn(message))

	messageID, err := r.provider.AppendTurn(ctx, threadID, ai.UserTurn(message))
	if err != nil {
		r.metrics.RecordFailure(agent.Selector)
		return nil, apierrors.ProviderFailed("failed to submit turn", err)
	}
	if conversation != nil {
		if _, err := r.store.CreateMessage(ctx, &store.Message{
			UID:            shortuuid.New(),
			ConversationID: conversation.ID,
			Role:           store.MessageRoleUser,
			Content:        message,
			CreatedTs:      now,
		}); err != nil {
			logger.Warn("failed to mirror user turn", slog.String("error", err.Error()))
		}
	}

	stream, err := r.provider.GenerateStream(ctx, &ai.GenerateRequest{
		ConversationID: threadID,
		Agent:          agent,
		History:        history,
	})
	if err != nil {
		r.metrics.RecordFailure(agent.Selector)
		return nil, apierrors.ProviderFailed("failed to start generation", err)
	}

	events := make(chan Event)
	go r.pump(ctx, stream, events, conversation, threadID, messageID, agent.Selector, logger)
	return events, nil
}

// pump forwards provider events to the caller without reordering or
// coalescing. It accumulates the assistant reply so the completed turn can be
// mirrored once the stream finishes.
func (r *Relay) pump(
	ctx context.Context,
	stream <-chan ai.StreamEvent,
	events chan<- Event,
	conversation *store.Conversation,
	threadID string,
	messageID string,
	agent string,
	logger *observability.RequestContext,
) {
	defer close(events)

	if !r.send(ctx, events, Event{Type: EventMeta, ThreadID: threadID, MessageID: messageID}) {
		return
	}

	var reply strings.Builder
	for ev := range stream {
		switch ev.Type {
		case ai.StreamEventDelta:
			reply.WriteString(ev.Content)
			if !r.send(ctx, events, Event{Type: EventDelta, Content: ev.Content}) {
				return
			}
			r.metrics.RecordStreamEvent()

		case ai.StreamEventStatus:
			if !r.send(ctx, events, Event{Type: EventStatus, Content: ev.Content}) {
				return
			}

		case ai.StreamEventDone:
			r.mirrorReply(conversation, reply.String(), logger)
			r.send(ctx, events, Event{Type: EventDone})
			r.metrics.RecordDuration(agent, logger.Duration())
			logger.Info("chat relay completed",
				slog.Int64(observability.LogFieldDuration, logger.DurationMs()),
				slog.String(observability.LogFieldThreadID, threadID),
			)
			return

		case ai.StreamEventError:
			r.metrics.RecordFailure(agent)
			logger.Error("chat relay failed", ev.Err,
				slog.String(observability.LogFieldThreadID, threadID),
			)
			r.send(ctx, events, Event{Type: EventError, Err: ev.Err})
			return
		}
	}

	// Stream closed without a terminal event: the provider call was
	// canceled. Nothing more to forward.
}

func (r *Relay) send(ctx context.Context, events chan<- Event, event Event) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Relay) lookupConversation(ctx context.Context, threadID string, userID int32) (*store.Conversation, error) {
	if threadID == "" {
		return nil, nil
	}
	return r.store.GetConversation(ctx, &store.FindConversation{
		UID:       &threadID,
		CreatorID: &userID,
	})
}

// mirrorConversation ensures a local row references the provider handle.
// Mirror failures are logged, not fatal: the provider remains the source of
// truth for conversation state.
func (r *Relay) mirrorConversation(
	ctx context.Context,
	conversation *store.Conversation,
	threadID string,
	message string,
	agent string,
	userID int32,
	now int64,
	logger *observability.RequestContext,
) *store.Conversation {
	if conversation != nil {
		if _, err := r.store.UpdateConversation(ctx, &store.UpdateConversation{
			ID:        conversation.ID,
			UpdatedTs: &now,
		}); err != nil {
			logger.Warn("failed to touch conversation", slog.String("error", err.Error()))
		}
		return conversation
	}

	created, err := r.store.CreateConversation(ctx, &store.Conversation{
		UID:       threadID,
		CreatorID: userID,
		Title:     deriveTitle(message),
		AgentID:   agent,
		CreatedTs: now,
		UpdatedTs: now,
		RowStatus: store.Normal,
	})
	if err != nil {
		logger.Warn("failed to mirror conversation",
			slog.String(observability.LogFieldThreadID, threadID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return created
}

func (r *Relay) loadHistory(ctx context.Context, conversation *store.Conversation, logger *observability.RequestContext) []ai.Turn {
	if conversation == nil {
		return nil
	}
	messages, err := r.store.ListMessages(ctx, &store.FindMessage{ConversationID: &conversation.ID})
	if err != nil {
		logger.Warn("failed to load history", slog.String("error", err.Error()))
		return nil
	}
	turns := make([]ai.Turn, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case store.MessageRoleUser:
			turns = append(turns, ai.UserTurn(m.Content))
		case store.MessageRoleAssistant:
			turns = append(turns, ai.AssistantTurn(m.Content))
		}
	}
	return turns
}

// mirrorReply persists the completed assistant turn. It runs on its own
// context so a caller disconnect right at completion does not lose the turn.
func (r *Relay) mirrorReply(conversation *store.Conversation, reply string, logger *observability.RequestContext) {
	if conversation == nil || reply == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	if _, err := r.store.CreateMessage(ctx, &store.Message{
		UID:            shortuuid.New(),
		ConversationID: conversation.ID,
		Role:           store.MessageRoleAssistant,
		Content:        reply,
		CreatedTs:      time.Now().Unix(),
	}); err != nil {
		logger.Warn("failed to mirror assistant turn", slog.String("error", err.Error()))
	}
}

// deriveTitle uses the leading words of the first message as the mirror
// row's display title.
func deriveTitle(message string) string {
	const maxTitleLen = 48
	title := strings.Join(strings.Fields(message), " ")
	runes := []rune(title)
	if len(runes) <= maxTitleLen {
		return title
	}
	return string(runes[:maxTitleLen]) + "…"
}
