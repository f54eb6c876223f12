// Package chat orchestrates conversations: it restores or creates state per
// widget session, routes input through the funnel controller and persists
// snapshots between requests.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sonnkraft/funnel-backend/internal/events"
	"github.com/sonnkraft/funnel-backend/internal/funnel"
	"github.com/sonnkraft/funnel-backend/internal/session"
	"github.com/sonnkraft/funnel-backend/internal/types"
)

// Service is the application service behind the chat API. All conversation
// mutation goes through here; a per-conversation mutex keeps the controller
// the single writer even under concurrent requests.
type Service struct {
	controller *funnel.Controller
	store      session.Store
	catalog    funnel.CatalogProvider
	bus        *events.Bus
	language   string
	logger     *logrus.Logger

	locks sync.Map // uuid.UUID -> *sync.Mutex
}

// NewService wires the chat service. bus may be nil when no observers exist.
func NewService(controller *funnel.Controller, store session.Store, catalog funnel.CatalogProvider, bus *events.Bus, language string, logger *logrus.Logger) *Service {
	return &Service{
		controller: controller,
		store:      store,
		catalog:    catalog,
		bus:        bus,
		language:   language,
		logger:     logger,
	}
}

// Open restores the stored conversation for the session, or starts a fresh
// greeted one when none exists.
func (s *Service) Open(ctx context.Context, id uuid.UUID) (*funnel.Conversation, error) {
	unlock := s.lock(id)
	defer unlock()

	conv, restored := s.loadOrStart(ctx, id)
	if !restored {
		s.controller.Greet(conv)
		s.persist(ctx, conv)
	}
	s.publish(events.Event{Trigger: events.TriggerOpenChat, ConversationID: id})
	return conv, nil
}

// SendMessage routes one user input through the funnel and persists the
// resulting state.
func (s *Service) SendMessage(ctx context.Context, id uuid.UUID, input string, onDelta funnel.DeltaFunc) (*funnel.Conversation, error) {
	unlock := s.lock(id)
	defer unlock()

	conv, restored := s.loadOrStart(ctx, id)
	if !restored {
		s.controller.Greet(conv)
	}
	if err := s.controller.HandleInput(ctx, conv, input, onDelta); err != nil {
		return nil, err
	}
	s.persist(ctx, conv)
	return conv, nil
}

// Back returns the conversation to the previous funnel step.
func (s *Service) Back(ctx context.Context, id uuid.UUID) (*funnel.Conversation, error) {
	unlock := s.lock(id)
	defer unlock()

	conv, restored := s.loadOrStart(ctx, id)
	if restored {
		s.controller.Back(conv)
	} else {
		s.controller.Greet(conv)
	}
	s.persist(ctx, conv)
	return conv, nil
}

// Reset discards all conversation state and greets again.
func (s *Service) Reset(ctx context.Context, id uuid.UUID) (*funnel.Conversation, error) {
	unlock := s.lock(id)
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.WithError(err).Warn("failed to delete snapshot on reset")
	}
	conv := s.start(id)
	s.controller.Reset(conv)
	s.persist(ctx, conv)
	return conv, nil
}

// Confirm triggers the lead submission from the widget's submit button.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*funnel.Conversation, error) {
	unlock := s.lock(id)
	defer unlock()

	conv, restored := s.loadOrStart(ctx, id)
	if !restored {
		s.controller.Greet(conv)
		s.persist(ctx, conv)
		return conv, nil
	}
	if err := s.controller.Confirm(ctx, conv); err != nil {
		return nil, err
	}
	s.persist(ctx, conv)
	return conv, nil
}

// Seed starts a purpose-built conversation from a marketing-page trigger. Any
// stored snapshot is discarded first so the trigger always wins over an old
// conversation.
func (s *Service) Seed(ctx context.Context, evt events.Event) (*funnel.Conversation, error) {
	unlock := s.lock(evt.ConversationID)
	defer unlock()

	if err := s.store.Delete(ctx, evt.ConversationID); err != nil {
		s.logger.WithError(err).Warn("failed to delete snapshot on seed")
	}
	conv := s.start(evt.ConversationID)

	var err error
	switch evt.Trigger {
	case events.TriggerPromo:
		s.controller.SeedPromo(conv, evt.Promo)
	case events.TriggerContext:
		s.controller.SeedContext(conv, evt.Context)
	case events.TriggerComparison:
		err = s.controller.SeedComparison(ctx, conv, evt.Products)
	case events.TriggerService:
		svc, ok := s.findService(ctx, evt.ServiceID)
		if !ok {
			s.logger.WithField("service_id", evt.ServiceID).Warn("unknown service in chat trigger")
			s.controller.Greet(conv)
			break
		}
		err = s.controller.SeedService(conv, svc)
	default:
		s.controller.Greet(conv)
	}
	if err != nil {
		return nil, err
	}

	s.persist(ctx, conv)
	s.publish(evt)
	return conv, nil
}

// loadOrStart restores the snapshot for id, or returns a fresh ungreeted
// conversation. The bool reports whether state was restored.
func (s *Service) loadOrStart(ctx context.Context, id uuid.UUID) (*funnel.Conversation, bool) {
	snap, err := s.store.Load(ctx, id)
	if err == nil {
		return funnel.FromSnapshot(*snap), true
	}
	if !errors.Is(err, session.ErrNotFound) {
		s.logger.WithError(err).WithField("conversation_id", id).Warn("failed to load snapshot")
	}
	return s.start(id), false
}

func (s *Service) start(id uuid.UUID) *funnel.Conversation {
	conv := funnel.NewConversation(s.language)
	conv.ID = id
	return conv
}

// persist saves a snapshot unless the conversation is on a confirmation step
// or carries an active comparison; both must not survive a page reload.
func (s *Service) persist(ctx context.Context, conv *funnel.Conversation) {
	if conv.Step.Confirmation() || conv.ComparisonContext {
		return
	}
	if err := s.store.Save(ctx, conv.Snapshot()); err != nil {
		s.logger.WithError(err).WithField("conversation_id", conv.ID).Warn("failed to save snapshot")
	}
}

func (s *Service) findService(ctx context.Context, serviceID string) (types.Service, bool) {
	for _, svc := range s.catalog.Services(ctx) {
		if strings.EqualFold(svc.ID, serviceID) {
			return svc, true
		}
	}
	return types.Service{}, false
}

func (s *Service) publish(evt events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(evt)
}

func (s *Service) lock(id uuid.UUID) func() {
	m, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
