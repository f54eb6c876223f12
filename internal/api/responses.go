package api

import (
	"github.com/google/uuid"

	"github.com/sonnkraft/funnel-backend/internal/funnel"
	"github.com/sonnkraft/funnel-backend/internal/types"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse represents a generic success response.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// SessionResponse is returned when a widget session is created.
type SessionResponse struct {
	Token          string    `json:"token"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

// ConversationResponse is the widget's view of a conversation.
type ConversationResponse struct {
	ConversationID uuid.UUID        `json:"conversation_id"`
	Step           types.FunnelStep `json:"step"`
	Language       string           `json:"language"`
	Messages       []types.Message  `json:"messages"`
	CanGoBack      bool             `json:"can_go_back"`
}

func conversationView(conv *funnel.Conversation) ConversationResponse {
	return ConversationResponse{
		ConversationID: conv.ID,
		Step:           conv.Step,
		Language:       conv.Language,
		Messages:       conv.Messages,
		CanGoBack:      len(conv.History) > 1,
	}
}
