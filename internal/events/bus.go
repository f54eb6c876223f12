// Package events carries chat triggers from the marketing pages to the chat
// service. Pages fire a trigger (via the widget API); subscribers decide how
// the next conversation starts.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Trigger identifies how a chat was launched.
type Trigger string

const (
	// TriggerOpenChat opens the widget, resuming a stored conversation if any.
	TriggerOpenChat Trigger = "open-chat"
	// TriggerPromo starts a fresh conversation from a promotional deep link.
	TriggerPromo Trigger = "start-new-chat-promo"
	// TriggerContext starts a fresh conversation grounded on page context.
	TriggerContext Trigger = "start-chat-with-context"
	// TriggerComparison starts a fresh conversation with a product comparison.
	TriggerComparison Trigger = "start-chat-with-comparison-context"
	// TriggerService starts a fresh conversation with a preselected service.
	TriggerService Trigger = "start-chat-with-service"
)

// Event is one chat trigger with its payload. Exactly one payload field is
// meaningful per trigger.
type Event struct {
	Trigger        Trigger
	ConversationID uuid.UUID
	Promo          string
	Context        string
	Products       []string
	ServiceID      string
}

// Handler consumes a published event.
type Handler func(Event)

// Bus is an in-process observer bus. Publish delivers to every subscriber
// synchronously in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Trigger][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Trigger][]Handler)}
}

// Subscribe registers a handler for one trigger.
func (b *Bus) Subscribe(trigger Trigger, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[trigger] = append(b.handlers[trigger], h)
}

// Publish delivers the event to all handlers subscribed to its trigger.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	handlers := b.handlers[evt.Trigger]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}
