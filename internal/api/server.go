package api

import (
	"github.com/sirupsen/logrus"

	"github.com/sonnkraft/funnel-backend/internal/service"
	"github.com/sonnkraft/funnel-backend/internal/service/chat"
)

// Server holds API dependencies.
type Server struct {
	authService *service.AuthService
	chatService *chat.Service
	logger      *logrus.Logger
}

// NewServer creates a new API server.
func NewServer(authService *service.AuthService, chatService *chat.Service, logger *logrus.Logger) *Server {
	return &Server{
		authService: authService,
		chatService: chatService,
		logger:      logger,
	}
}
