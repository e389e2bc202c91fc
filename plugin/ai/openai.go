package ai

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/campfire-chat/campfire/internal/profile"
)

// OpenAIProvider implements ConversationProvider on an OpenAI-compatible API.
// Conversation handles are provider threads; generation streams through the
// chat completions API under the agent's model.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates the provider client from the profile. The client
// is reused for the lifetime of the process.
func NewOpenAIProvider(p *profile.Profile) (*OpenAIProvider, error) {
	if p.ProviderAPIKey == "" {
		return nil, errors.New("provider API key is required, set CAMPFIRE_PROVIDER_API_KEY")
	}

	clientConfig := openai.DefaultConfig(p.ProviderAPIKey)
	if p.ProviderBaseURL != "" {
		clientConfig.BaseURL = p.ProviderBaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  p.ChatModel,
	}, nil
}

func (o *OpenAIProvider) CreateConversation(ctx context.Context) (string, error) {
	thread, err := o.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

func (o *OpenAIProvider) AppendTurn(ctx context.Context, conversationID string, turn Turn) (string, error) {
	message, err := o.client.CreateMessage(ctx, conversationID, openai.MessageRequest{
		Role:    turn.Role,
		Content: turn.Content,
	})
	if err != nil {
		return "", err
	}
	return message.ID, nil
}

func (o *OpenAIProvider) GenerateStream(ctx context.Context, req *GenerateRequest) (<-chan StreamEvent, error) {
	model := o.model
	if req.Model != "" {
		model = req.Model
	}
	if req.Agent != nil && req.Agent.Model != "" {
		model = req.Agent.Model
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertTurns(req.History),
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				send(ctx, events, StreamEvent{Type: StreamEventDone})
				return
			}
			if err != nil {
				send(ctx, events, StreamEvent{Type: StreamEventError, Err: err})
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}

			choice := resp.Choices[0]
			if choice.Delta.Content != "" {
				if !send(ctx, events, StreamEvent{Type: StreamEventDelta, Content: choice.Delta.Content}) {
					return
				}
			}
			if choice.FinishReason != "" && choice.FinishReason != openai.FinishReasonNull {
				if !send(ctx, events, StreamEvent{Type: StreamEventStatus, Content: string(choice.FinishReason)}) {
					return
				}
			}
		}
	}()

	return events, nil
}

// send delivers an event unless the context is canceled. Returns false when
// the caller has gone away.
func send(ctx context.Context, events chan<- StreamEvent, event StreamEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func convertTurns(turns []Turn) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, len(turns))
	for i, t := range turns {
		role := openai.ChatMessageRoleUser
		switch t.Role {
		case "system":
			role = openai.ChatMessageRoleSystem
		case "assistant":
			role = openai.ChatMessageRoleAssistant
		}
		messages[i] = openai.ChatCompletionMessage{
			Role:    role,
			Content: t.Content,
		}
	}
	return messages
}
