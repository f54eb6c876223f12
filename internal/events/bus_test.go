package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishReachesOnlyMatchingSubscribers(t *testing.T) {
	bus := NewBus()

	var promos, contexts []Event
	bus.Subscribe(TriggerPromo, func(evt Event) { promos = append(promos, evt) })
	bus.Subscribe(TriggerContext, func(evt Event) { contexts = append(contexts, evt) })

	bus.Publish(Event{Trigger: TriggerPromo, Promo: "fruehjahrsaktion"})
	bus.Publish(Event{Trigger: TriggerPromo, Promo: "sommeraktion"})
	bus.Publish(Event{Trigger: TriggerContext, Context: "Wärmepumpen-Ratgeber"})

	assert.Len(t, promos, 2)
	assert.Equal(t, "fruehjahrsaktion", promos[0].Promo)
	assert.Len(t, contexts, 1)
}

func TestPublishInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	bus.Subscribe(TriggerOpenChat, func(Event) { order = append(order, 1) })
	bus.Subscribe(TriggerOpenChat, func(Event) { order = append(order, 2) })

	bus.Publish(Event{Trigger: TriggerOpenChat})

	assert.Equal(t, []int{1, 2}, order)
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.Publish(Event{Trigger: TriggerComparison, Products: []string{"A", "B"}})
	})
}
