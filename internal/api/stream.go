package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// StreamMessage handles GET /chat/stream. It sends one message and streams
// the assistant's answer as server-sent events: "delta" events per chunk and
// a final "done" event carrying the whole conversation.
//
// The token travels as a query parameter because EventSource cannot set
// request headers.
func (s *Server) StreamMessage(c echo.Context) error {
	conversationID, err := s.authService.ValidateToken(c.QueryParam("token"))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
	}
	content := c.QueryParam("content")
	if content == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content is required"})
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	conv, err := s.chatService.SendMessage(c.Request().Context(), conversationID, content, func(chunk string) error {
		writeEvent(w, "delta", chunk)
		w.Flush()
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to stream message")
		writeEvent(w, "error", "failed to process message")
		w.Flush()
		return nil
	}

	payload, err := json.Marshal(conversationView(conv))
	if err != nil {
		s.logger.WithError(err).Error("failed to encode conversation")
		writeEvent(w, "error", "failed to encode conversation")
		w.Flush()
		return nil
	}
	writeEvent(w, "done", string(payload))
	w.Flush()
	return nil
}

// writeEvent emits one SSE event. Multi-line data becomes multiple data:
// lines per the SSE framing rules.
func writeEvent(w *echo.Response, event, data string) {
	fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
