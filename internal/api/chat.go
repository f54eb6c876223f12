package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sonnkraft/funnel-backend/internal/events"
)

// SendMessageRequest is the request body for sending a chat message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// TriggerRequest is the request body for a marketing-page chat trigger.
type TriggerRequest struct {
	Trigger   string   `json:"trigger"`
	Promo     string   `json:"promo,omitempty"`
	Context   string   `json:"context,omitempty"`
	Products  []string `json:"products,omitempty"`
	ServiceID string   `json:"service_id,omitempty"`
}

// CreateSession handles POST /chat/session. It mints a fresh conversation id
// and the token the widget uses for all further calls. No account needed;
// sessions are anonymous.
func (s *Server) CreateSession(c echo.Context) error {
	conversationID := uuid.New()
	token, err := s.authService.IssueToken(conversationID)
	if err != nil {
		s.logger.WithError(err).Error("failed to issue session token")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create session"})
	}
	return c.JSON(http.StatusCreated, SessionResponse{Token: token, ConversationID: conversationID})
}

// OpenChat handles POST /chat/open. It resumes the stored conversation or
// starts a greeted fresh one.
func (s *Server) OpenChat(c echo.Context) error {
	conv, err := s.chatService.Open(c.Request().Context(), GetConversationID(c))
	if err != nil {
		s.logger.WithError(err).Error("failed to open conversation")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to open conversation"})
	}
	return c.JSON(http.StatusOK, conversationView(conv))
}

// SendMessage handles POST /chat/messages.
func (s *Server) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.Content == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content is required"})
	}

	conv, err := s.chatService.SendMessage(c.Request().Context(), GetConversationID(c), req.Content, nil)
	if err != nil {
		s.logger.WithError(err).Error("failed to process message")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to process message"})
	}
	return c.JSON(http.StatusOK, conversationView(conv))
}

// GoBack handles POST /chat/back.
func (s *Server) GoBack(c echo.Context) error {
	conv, err := s.chatService.Back(c.Request().Context(), GetConversationID(c))
	if err != nil {
		s.logger.WithError(err).Error("failed to go back")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to go back"})
	}
	return c.JSON(http.StatusOK, conversationView(conv))
}

// ResetChat handles POST /chat/reset.
func (s *Server) ResetChat(c echo.Context) error {
	conv, err := s.chatService.Reset(c.Request().Context(), GetConversationID(c))
	if err != nil {
		s.logger.WithError(err).Error("failed to reset conversation")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to reset conversation"})
	}
	return c.JSON(http.StatusOK, conversationView(conv))
}

// ConfirmSubmit handles POST /chat/confirm, the widget's submit button.
func (s *Server) ConfirmSubmit(c echo.Context) error {
	conv, err := s.chatService.Confirm(c.Request().Context(), GetConversationID(c))
	if err != nil {
		s.logger.WithError(err).Error("failed to confirm submission")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to confirm submission"})
	}
	return c.JSON(http.StatusOK, conversationView(conv))
}

// Trigger handles POST /chat/triggers. Marketing pages fire these to start a
// purpose-built conversation before the widget opens.
func (s *Server) Trigger(c echo.Context) error {
	var req TriggerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	evt := events.Event{
		Trigger:        events.Trigger(req.Trigger),
		ConversationID: GetConversationID(c),
		Promo:          req.Promo,
		Context:        req.Context,
		Products:       req.Products,
		ServiceID:      req.ServiceID,
	}
	switch evt.Trigger {
	case events.TriggerPromo, events.TriggerContext, events.TriggerComparison, events.TriggerService:
	default:
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown trigger"})
	}

	conv, err := s.chatService.Seed(c.Request().Context(), evt)
	if err != nil {
		s.logger.WithError(err).Error("failed to seed conversation")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to seed conversation"})
	}
	return c.JSON(http.StatusOK, conversationView(conv))
}
