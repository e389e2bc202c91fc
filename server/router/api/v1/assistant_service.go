package v1

import (
	"github.com/labstack/echo/v4"

	apierrors "github.com/campfire-chat/campfire/server/internal/errors"
	airelay "github.com/campfire-chat/campfire/server/router/api/v1/ai"
)

type assistantRequest struct {
	ThreadID string `json:"threadId"`
	Message  string `json:"message"`
	Agent    string `json:"agent"`
}

type metaPayload struct {
	ThreadID  string `json:"threadId"`
	MessageID string `json:"messageId"`
}

// Assistant relays one message into an agent conversation and streams the
// reply. The first event is always meta with the authoritative thread
// handle; clients must adopt it, the handle they sent may have been
// discarded.
func (s *APIV1Service) Assistant(c echo.Context) error {
	user := s.currentUser(c)
	if user == nil {
		return writeError(c, apierrors.Unauthorized("authentication required"))
	}
	if s.relay == nil {
		return writeError(c, apierrors.Internal("assistant provider is not configured", nil))
	}

	request := &assistantRequest{}
	if err := c.Bind(request); err != nil {
		return writeError(c, apierrors.InvalidArgument("malformed request body"))
	}

	if !s.rateLimiter.AllowUser(user.ID) {
		return writeError(c, apierrors.RateLimitExceeded("too many assistant requests"))
	}

	ctx := c.Request().Context()
	if err := s.streamSemaphore.Acquire(ctx, 1); err != nil {
		return writeError(c, apierrors.ContextCanceled(err))
	}
	defer s.streamSemaphore.Release(1)

	events, err := s.relay.HandleMessage(ctx, &airelay.Request{
		ThreadID: request.ThreadID,
		Message:  request.Message,
		Agent:    request.Agent,
		UserID:   user.ID,
	})
	if err != nil {
		return writeError(c, err)
	}

	writer := newSSEWriter(c)
	for ev := range events {
		switch ev.Type {
		case airelay.EventMeta:
			if err := writer.WriteEvent("meta", &metaPayload{ThreadID: ev.ThreadID, MessageID: ev.MessageID}); err != nil {
				return nil
			}
		case airelay.EventDelta:
			if err := writer.WriteEvent("delta", &deltaPayload{Content: ev.Content}); err != nil {
				return nil
			}
		case airelay.EventStatus:
			if err := writer.WriteEvent("status", &deltaPayload{Content: ev.Content}); err != nil {
				return nil
			}
		case airelay.EventDone:
			return writer.WriteEvent("done", struct{}{})
		case airelay.EventError:
			return writer.WriteEvent("error", &errorPayload{Message: ev.Err.Error()})
		}
	}
	return nil
}
