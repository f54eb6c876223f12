// Package session persists conversation snapshots between page loads, so a
// visitor who closes the widget and reopens it resumes where they left off.
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sonnkraft/funnel-backend/internal/types"
)

// ErrNotFound is returned when no snapshot exists for a conversation.
var ErrNotFound = errors.New("session: snapshot not found")

// Store saves and loads conversation snapshots keyed by conversation id.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) (*types.ConversationSnapshot, error)
	Save(ctx context.Context, snap types.ConversationSnapshot) error
	Delete(ctx context.Context, id uuid.UUID) error
}
