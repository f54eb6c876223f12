package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeSession is the expected token type for widget session tokens.
const TokenTypeSession = "session"

// sessionTokenTTL bounds how long an issued widget token stays usable. It is
// longer than the snapshot TTL so a token never outlives its conversation
// the other way around.
const sessionTokenTTL = 24 * time.Hour

// Claims is the JWT claims structure for anonymous widget sessions. A session
// is bound to exactly one conversation id.
type Claims struct {
	jwt.RegisteredClaims
	ConversationID string `json:"conversation_id"`
	TokenType      string `json:"token_type"`
}

// AuthService issues and validates widget session tokens.
type AuthService struct {
	jwtSecret []byte
}

// NewAuthService creates a new AuthService with the given JWT secret.
func NewAuthService(secret string) *AuthService {
	return &AuthService{jwtSecret: []byte(secret)}
}

// IssueToken creates a signed session token for a conversation. The widget
// stores it and sends it on every subsequent request.
func (a *AuthService) IssueToken(conversationID uuid.UUID) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTokenTTL)),
		},
		ConversationID: conversationID.String(),
		TokenType:      TokenTypeSession,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
}

// ValidateToken validates a session token and returns the conversation id it
// is bound to.
func (a *AuthService) ValidateToken(tokenStr string) (uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	if !token.Valid {
		return uuid.Nil, errors.New("invalid or expired token")
	}
	if claims.TokenType != TokenTypeSession {
		return uuid.Nil, errors.New("session token required")
	}
	conversationID, err := uuid.Parse(claims.ConversationID)
	if err != nil {
		return uuid.Nil, errors.New("token missing conversation id")
	}
	return conversationID, nil
}
