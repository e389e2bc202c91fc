package v1

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/campfire-chat/campfire/plugin/ai"
	apierrors "github.com/campfire-chat/campfire/server/internal/errors"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
}

type deltaPayload struct {
	Content string `json:"content"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Chat streams one completion over a caller-supplied message history. The
// conversation state lives with the caller; nothing is persisted.
func (s *APIV1Service) Chat(c echo.Context) error {
	user := s.currentUser(c)
	if user == nil {
		return writeError(c, apierrors.Unauthorized("authentication required"))
	}
	if s.provider == nil || s.registry == nil {
		return writeError(c, apierrors.Internal("chat provider is not configured", nil))
	}

	request := &chatRequest{}
	if err := c.Bind(request); err != nil {
		return writeError(c, apierrors.InvalidArgument("malformed request body"))
	}
	if len(request.Messages) == 0 {
		return writeError(c, apierrors.InvalidArgument("messages must not be empty"))
	}
	last := request.Messages[len(request.Messages)-1]
	if last.Role != "user" || strings.TrimSpace(last.Content) == "" {
		return writeError(c, apierrors.InvalidArgument("last message must be non-empty user text"))
	}

	if !s.rateLimiter.AllowUser(user.ID) {
		return writeError(c, apierrors.RateLimitExceeded("too many chat requests"))
	}

	ctx := c.Request().Context()
	if err := s.streamSemaphore.Acquire(ctx, 1); err != nil {
		return writeError(c, apierrors.ContextCanceled(err))
	}
	defer s.streamSemaphore.Release(1)

	history := make([]ai.Turn, 0, len(request.Messages))
	for _, m := range request.Messages {
		history = append(history, ai.Turn{Role: m.Role, Content: m.Content})
	}
	stream, err := s.provider.GenerateStream(ctx, &ai.GenerateRequest{
		Model:   s.Profile.ChatModel,
		History: history,
	})
	if err != nil {
		return writeError(c, apierrors.ProviderFailed("failed to start completion", err))
	}

	writer := newSSEWriter(c)
	for ev := range stream {
		switch ev.Type {
		case ai.StreamEventDelta:
			if err := writer.WriteEvent("delta", &deltaPayload{Content: ev.Content}); err != nil {
				return nil
			}
		case ai.StreamEventDone:
			return writer.WriteEvent("done", struct{}{})
		case ai.StreamEventError:
			return writer.WriteEvent("error", &errorPayload{Message: ev.Err.Error()})
		}
	}
	return nil
}
