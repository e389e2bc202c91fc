package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/campfire-chat/campfire/server/internal/errors"
	"github.com/campfire-chat/campfire/store"
)

type conversationResponse struct {
	UID       string `json:"uid"`
	Title     string `json:"title"`
	Agent     string `json:"agent"`
	CreatedTs int64  `json:"createdTs"`
	UpdatedTs int64  `json:"updatedTs"`
}

type messageResponse struct {
	UID       string `json:"uid"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedTs int64  `json:"createdTs"`
}

// ListConversations returns the caller's conversations, most recently
// active first.
func (s *APIV1Service) ListConversations(c echo.Context) error {
	user := s.currentUser(c)
	if user == nil {
		return writeError(c, apierrors.Unauthorized("authentication required"))
	}

	normal := store.Normal
	conversations, err := s.Store.ListConversations(c.Request().Context(), &store.FindConversation{
		CreatorID: &user.ID,
		RowStatus: &normal,
	})
	if err != nil {
		return writeError(c, apierrors.Internal("failed to list conversations", err))
	}

	response := make([]*conversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		response = append(response, &conversationResponse{
			UID:       conv.UID,
			Title:     conv.Title,
			Agent:     conv.AgentID,
			CreatedTs: conv.CreatedTs,
			UpdatedTs: conv.UpdatedTs,
		})
	}
	return c.JSON(http.StatusOK, response)
}

// ListConversationMessages returns the mirrored turns of one conversation in
// creation order.
func (s *APIV1Service) ListConversationMessages(c echo.Context) error {
	user := s.currentUser(c)
	if user == nil {
		return writeError(c, apierrors.Unauthorized("authentication required"))
	}

	ctx := c.Request().Context()
	conversation, err := s.findOwnedConversation(c, user.ID)
	if err != nil {
		return writeError(c, err)
	}
	if conversation == nil {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}

	messages, err := s.Store.ListMessages(ctx, &store.FindMessage{ConversationID: &conversation.ID})
	if err != nil {
		return writeError(c, apierrors.Internal("failed to list messages", err))
	}

	response := make([]*messageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, &messageResponse{
			UID:       m.UID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedTs: m.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, response)
}

// DeleteConversation removes the mirrored conversation and its turns. The
// provider-side thread is left alone; the handle simply stops being offered.
func (s *APIV1Service) DeleteConversation(c echo.Context) error {
	user := s.currentUser(c)
	if user == nil {
		return writeError(c, apierrors.Unauthorized("authentication required"))
	}

	conversation, err := s.findOwnedConversation(c, user.ID)
	if err != nil {
		return writeError(c, err)
	}
	if conversation == nil {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}

	if err := s.Store.DeleteConversation(c.Request().Context(), &store.DeleteConversation{ID: conversation.ID}); err != nil {
		return writeError(c, apierrors.Internal("failed to delete conversation", err))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) findOwnedConversation(c echo.Context, userID int32) (*store.Conversation, error) {
	uid := c.Param("uid")
	if uid == "" {
		return nil, apierrors.InvalidArgument("missing conversation uid")
	}
	conversation, err := s.Store.GetConversation(c.Request().Context(), &store.FindConversation{
		UID:       &uid,
		CreatorID: &userID,
	})
	if err != nil {
		return nil, apierrors.Internal("failed to look up conversation", err)
	}
	return conversation, nil
}
