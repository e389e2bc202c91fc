package ai

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campfire-chat/campfire/internal/profile"
	"github.com/campfire-chat/campfire/plugin/ai"
	apierrors "github.com/campfire-chat/campfire/server/internal/errors"
	"github.com/campfire-chat/campfire/store"
)

// fakeProvider records provider calls in order and replays a scripted stream.
type fakeProvider struct {
	calls []string

	createConversationID string
	createErr            error
	appendMessageID      string
	appendErr            error
	appendedTurns        []ai.Turn
	streamEvents         []ai.StreamEvent
	streamErr            error
	generateReq          *ai.GenerateRequest
	generateCtx          context.Context
	liveStream           chan ai.StreamEvent
}

func (p *fakeProvider) CreateConversation(ctx context.Context) (string, error) {
	p.calls = append(p.calls, "create")
	if p.createErr != nil {
		return "", p.createErr
	}
	return p.createConversationID, nil
}

func (p *fakeProvider) AppendTurn(ctx context.Context, conversationID string, turn ai.Turn) (string, error) {
	p.calls = append(p.calls, "append:"+conversationID)
	p.appendedTurns = append(p.appendedTurns, turn)
	if p.appendErr != nil {
		return "", p.appendErr
	}
	return p.appendMessageID, nil
}

func (p *fakeProvider) GenerateStream(ctx context.Context, req *ai.GenerateRequest) (<-chan ai.StreamEvent, error) {
	p.calls = append(p.calls, "generate:"+req.ConversationID)
	p.generateReq = req
	p.generateCtx = ctx
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	if p.liveStream != nil {
		return p.liveStream, nil
	}
	events := make(chan ai.StreamEvent, len(p.streamEvents))
	for _, ev := range p.streamEvents {
		events <- ev
	}
	close(events)
	return events, nil
}

// fakeStore is an in-memory ConversationStore.
type fakeStore struct {
	nextID        int32
	conversations []*store.Conversation
	messages      []*store.Message
}

func (s *fakeStore) GetConversation(ctx context.Context, find *store.FindConversation) (*store.Conversation, error) {
	for _, c := range s.conversations {
		if find.UID != nil && c.UID != *find.UID {
			continue
		}
		if find.CreatorID != nil && c.CreatorID != *find.CreatorID {
			continue
		}
		return c, nil
	}
	return nil, nil
}

func (s *fakeStore) CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error) {
	s.nextID++
	create.ID = s.nextID
	s.conversations = append(s.conversations, create)
	return create, nil
}

func (s *fakeStore) UpdateConversation(ctx context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	for _, c := range s.conversations {
		if c.ID == update.ID {
			if update.UpdatedTs != nil {
				c.UpdatedTs = *update.UpdatedTs
			}
			return c, nil
		}
	}
	return nil, fmt.Errorf("conversation %d not found", update.ID)
}

func (s *fakeStore) CreateMessage(ctx context.Context, create *store.Message) (*store.Message, error) {
	s.nextID++
	create.ID = s.nextID
	s.messages = append(s.messages, create)
	return create, nil
}

func (s *fakeStore) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	var result []*store.Message
	for _, m := range s.messages {
		if find.ConversationID != nil && m.ConversationID != *find.ConversationID {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func testRegistry(t *testing.T) *ai.Registry {
	t.Helper()
	registry, err := ai.NewRegistryFromProfile(&profile.Profile{
		Agents:       "camper=asst_camper,astronomy=asst_astro",
		DefaultAgent: "camper",
		ChatModel:    "gpt-4o",
	})
	require.NoError(t, err)
	return registry
}

func collectEvents(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var collected []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return collected
			}
			collected = append(collected, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestHandleMessageNewConversation(t *testing.T) {
	provider := &fakeProvider{
		createConversationID: "thread_1",
		appendMessageID:      "msg_1",
		streamEvents: []ai.StreamEvent{
			{Type: ai.StreamEventDelta, Content: "Hello"},
			{Type: ai.StreamEventDelta, Content: ", camper"},
			{Type: ai.StreamEventDone},
		},
	}
	st := &fakeStore{}
	relay := NewRelay(provider, testRegistry(t), st)

	events, err := relay.HandleMessage(context.Background(), &Request{
		Message: "Tell me about tents",
		UserID:  7,
	})
	require.NoError(t, err)
	collected := collectEvents(t, events)

	// The provider is driven in a fixed order: the conversation handle is
	// created before the turn is appended, and the turn is appended before
	// generation starts.
	assert.Equal(t, []string{"create", "append:thread_1", "generate:thread_1"}, provider.calls)

	require.Len(t, collected, 4)
	assert.Equal(t, EventMeta, collected[0].Type)
	assert.Equal(t, "thread_1", collected[0].ThreadID)
	assert.Equal(t, "msg_1", collected[0].MessageID)
	assert.Equal(t, EventDelta, collected[1].Type)
	assert.Equal(t, "Hello", collected[1].Content)
	assert.Equal(t, EventDelta, collected[2].Type)
	assert.Equal(t, ", camper", collected[2].Content)
	assert.Equal(t, EventDone, collected[3].Type)
}

func TestHandleMessageEventOrderPreserved(t *testing.T) {
	provider := &fakeProvider{
		createConversationID: "thread_1",
		appendMessageID:      "msg_1",
		streamEvents: []ai.StreamEvent{
			{Type: ai.StreamEventDelta, Content: "A"},
			{Type: ai.StreamEventDelta, Content: "B"},
			{Type: ai.StreamEventDelta, Content: "C"},
			{Type: ai.StreamEventDone},
		},
	}
	relay := NewRelay(provider, testRegistry(t), &fakeStore{})

	events, err := relay.HandleMessage(context.Background(), &Request{Message: "hi", UserID: 1})
	require.NoError(t, err)
	collected := collectEvents(t, events)

	var deltas []string
	for _, ev := range collected {
		if ev.Type == EventDelta {
			deltas = append(deltas, ev.Content)
		}
	}
	assert.Equal(t, []string{"A", "B", "C"}, deltas)
	assert.Equal(t, EventDone, collected[len(collected)-1].Type)
}

func TestHandleMessageEmptyMessage(t *testing.T) {
	provider := &fakeProvider{}
	relay := NewRelay(provider, testRegistry(t), &fakeStore{})

	for _, message := range []string{"", "   ", "\n\t"} {
		_, err := relay.HandleMessage(context.Background(), &Request{Message: message, UserID: 1})
		require.Error(t, err)
		assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeInvalidArgument))
	}
	// Validation failures never reach the provider.
	assert.Empty(t, provider.calls)
}

func TestHandleMessageUnknownAgent(t *testing.T) {
	provider := &fakeProvider{}
	relay := NewRelay(provider, testRegistry(t), &fakeStore{})

	_, err := relay.HandleMessage(context.Background(), &Request{
		Message: "hi",
		Agent:   "gardening",
		UserID:  1,
	})
	require.Error(t, err)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeAgentNotFound))
	assert.Empty(t, provider.calls)
}

func TestHandleMessageReusesExistingHandle(t *testing.T) {
	provider := &fakeProvider{
		appendMessageID: "msg_2",
		streamEvents: []ai.StreamEvent{
			{Type: ai.StreamEventDelta, Content: "sure"},
			{Type: ai.StreamEventDone},
		},
	}
	st := &fakeStore{}
	_, err := st.CreateConversation(context.Background(), &store.Conversation{
		UID:       "thread_1",
		CreatorID: 7,
		AgentID:   "camper",
		RowStatus: store.Normal,
	})
	require.NoError(t, err)
	relay := NewRelay(provider, testRegistry(t), st)

	events, err := relay.HandleMessage(context.Background(), &Request{
		ThreadID: "thread_1",
		Message:  "and sleeping bags?",
		Agent:    "camper",
		UserID:   7,
	})
	require.NoError(t, err)
	collected := collectEvents(t, events)

	// No new handle is created for a live conversation.
	assert.Equal(t, []string{"append:thread_1", "generate:thread_1"}, provider.calls)
	assert.Equal(t, "thread_1", collected[0].ThreadID)
}

func TestHandleMessageAgentSwitchDiscardsHandle(t *testing.T) {
	provider := &fakeProvider{
		createConversationID: "thread_2",
		appendMessageID:      "msg_1",
		streamEvents: []ai.StreamEvent{
			{Type: ai.StreamEventDelta, Content: "stars"},
			{Type: ai.StreamEventDone},
		},
	}
	st := &fakeStore{}
	_, err := st.CreateConversation(context.Background(), &store.Conversation{
		UID:       "thread_1",
		CreatorID: 7,
		AgentID:   "camper",
		RowStatus: store.Normal,
	})
	require.NoError(t, err)
	relay := NewRelay(provider, testRegistry(t), st)

	events, err := relay.HandleMessage(context.Background(), &Request{
		ThreadID: "thread_1",
		Message:  "what about Orion?",
		Agent:    "astronomy",
		UserID:   7,
	})
	require.NoError(t, err)
	collected := collectEvents(t, events)

	// Switching agents abandons the old handle and starts over.
	assert.Equal(t, []string{"create", "append:thread_2", "generate:thread_2"}, provider.calls)
	assert.Equal(t, "thread_2", collected[0].ThreadID)
	require.NotNil(t, provider.generateReq)
	assert.Equal(t, "astronomy", provider.generateReq.Agent.Selector)
}

func TestHandleMessageDefaultAgent(t *testing.T) {
	provider := &fakeProvider{
		createConversationID: "thread_1",
		appendMessageID:      "msg_1",
		streamEvents:         []ai.StreamEvent{{Type: ai.StreamEventDone}},
	}
	relay := NewRelay(provider, testRegistry(t), &fakeStore{})

	events, err := relay.HandleMessage(context.Background(), &Request{Message: "hi", UserID: 1})
	require.NoError(t, err)
	collectEvents(t, events)

	require.NotNil(t, provider.generateReq)
	assert.Equal(t, "camper", provider.generateReq.Agent.Selector)
}

func TestHandleMessageProviderCreateFails(t *testing.T) {
	provider := &fakeProvider{createErr: fmt.Errorf("upstream unavailable")}
	relay := NewRelay(provider, testRegistry(t), &fakeStore{})

	_, err := relay.HandleMessage(context.Background(), &Request{Message: "hi", UserID: 1})
	require.Error(t, err)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeProviderFailed))
	// Nothing past the failed call runs.
	assert.Equal(t, []string{"create"}, provider.calls)
}

func TestHandleMessageStreamError(t *testing.T) {
	provider := &fakeProvider{
		createConversationID: "thread_1",
		appendMessageID:      "msg_1",
		streamEvents: []ai.StreamEvent{
			{Type: ai.StreamEventDelta, Content: "partial"},
			{Type: ai.StreamEventError, Err: fmt.Errorf("upstream reset")},
		},
	}
	relay := NewRelay(provider, testRegistry(t), &fakeStore{})

	events, err := relay.HandleMessage(context.Background(), &Request{Message: "hi", UserID: 1})
	require.NoError(t, err)
	collected := collectEvents(t, events)

	// Exactly one terminal event, and nothing after it.
	last := collected[len(collected)-1]
	assert.Equal(t, EventError, last.Type)
	require.Error(t, last.Err)
	for _, ev := range collected[:len(collected)-1] {
		assert.NotEqual(t, EventError, ev.Type)
		assert.NotEqual(t, EventDone, ev.Type)
	}
}

func TestHandleMessageMirrorsTurns(t *testing.T) {
	provider := &fakeProvider{
		createConversationID: "thread_1",
		appendMessageID:      "msg_1",
		streamEvents: []ai.StreamEvent{
			{Type: ai.StreamEventDelta, Content: "pitch it "},
			{Type: ai.StreamEventDelta, Content: "upwind"},
			{Type: ai.StreamEventDone},
		},
	}
	st := &fakeStore{}
	relay := NewRelay(provider, testRegistry(t), st)

	events, err := relay.HandleMessage(context.Background(), &Request{
		Message: "How do I pitch a tent?",
		UserID:  7,
	})
	require.NoError(t, err)
	collectEvents(t, events)

	require.Len(t, st.conversations, 1)
	assert.Equal(t, "thread_1", st.conversations[0].UID)
	assert.Equal(t, "camper", st.conversations[0].AgentID)

	require.Len(t, st.messages, 2)
	assert.Equal(t, store.MessageRoleUser, st.messages[0].Role)
	assert.Equal(t, "How do I pitch a tent?", st.messages[0].Content)
	assert.Equal(t, store.MessageRoleAssistant, st.messages[1].Role)
	assert.Equal(t, "pitch it upwind", st.messages[1].Content)
}

func TestHandleMessageHistoryIncludesMirroredTurns(t *testing.T) {
	provider := &fakeProvider{
		appendMessageID: "msg_3",
		streamEvents:    []ai.StreamEvent{{Type: ai.StreamEventDone}},
	}
	st := &fakeStore{}
	conv, err := st.CreateConversation(context.Background(), &store.Conversation{
		UID:       "thread_1",
		CreatorID: 7,
		AgentID:   "camper",
		RowStatus: store.Normal,
	})
	require.NoError(t, err)
	_, err = st.CreateMessage(context.Background(), &store.Message{
		ConversationID: conv.ID,
		Role:           store.MessageRoleUser,
		Content:        "Tell me about tents",
	})
	require.NoError(t, err)
	_, err = st.CreateMessage(context.Background(), &store.Message{
		ConversationID: conv.ID,
		Role:           store.MessageRoleAssistant,
		Content:        "Tents keep you dry",
	})
	require.NoError(t, err)
	relay := NewRelay(provider, testRegistry(t), st)

	events, err := relay.HandleMessage(context.Background(), &Request{
		ThreadID: "thread_1",
		Message:  "and stakes?",
		Agent:    "camper",
		UserID:   7,
	})
	require.NoError(t, err)
	collectEvents(t, events)

	require.NotNil(t, provider.generateReq)
	history := provider.generateReq.History
	require.Len(t, history, 4)
	assert.Equal(t, "system", history[0].Role)
	assert.Equal(t, "Tell me about tents", history[1].Content)
	assert.Equal(t, "Tents keep you dry", history[2].Content)
	assert.Equal(t, "and stakes?", history[3].Content)
	assert.Equal(t, "user", history[3].Role)
}

func TestHandleMessageAgentIdentityShapesGeneration(t *testing.T) {
	generateFor := func(selector string) *ai.GenerateRequest {
		provider := &fakeProvider{
			createConversationID: "thread_1",
			appendMessageID:      "msg_1",
			streamEvents:         []ai.StreamEvent{{Type: ai.StreamEventDone}},
		}
		relay := NewRelay(provider, testRegistry(t), &fakeStore{})
		events, err := relay.HandleMessage(context.Background(), &Request{
			Message: "what should I pack?",
			Agent:   selector,
			UserID:  7,
		})
		require.NoError(t, err)
		collectEvents(t, events)
		require.NotNil(t, provider.generateReq)
		return provider.generateReq
	}

	camper := generateFor("camper")
	astro := generateFor("astronomy")

	// Identical inputs aside from the agent must still reach the provider
	// distinguishably: the leading system turn carries the identity.
	require.NotEmpty(t, camper.History)
	require.NotEmpty(t, astro.History)
	assert.Equal(t, "system", camper.History[0].Role)
	assert.Equal(t, "system", astro.History[0].Role)
	assert.NotEqual(t, camper.History[0].Content, astro.History[0].Content)
	assert.Contains(t, camper.History[0].Content, "asst_camper")
	assert.Contains(t, astro.History[0].Content, "asst_astro")
}

func TestHandleMessageCallerDisconnectStopsForwarding(t *testing.T) {
	stream := make(chan ai.StreamEvent)
	provider := &fakeProvider{
		createConversationID: "thread_1",
		appendMessageID:      "msg_1",
		liveStream:           stream,
	}
	relay := NewRelay(provider, testRegistry(t), &fakeStore{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := relay.HandleMessage(ctx, &Request{Message: "hi", UserID: 1})
	require.NoError(t, err)

	ev := <-events
	require.Equal(t, EventMeta, ev.Type)

	stream <- ai.StreamEvent{Type: ai.StreamEventDelta, Content: "partial"}
	ev = <-events
	require.Equal(t, EventDelta, ev.Type)

	// The caller goes away mid-stream. The provider honors the canceled
	// context by ending the stream without a terminal event.
	cancel()
	close(stream)

	for ev := range events {
		assert.NotEqual(t, EventDone, ev.Type)
		assert.NotEqual(t, EventError, ev.Type)
	}
	require.NotNil(t, provider.generateCtx)
	assert.Error(t, provider.generateCtx.Err())
}
