package events

import (
	"github.com/juju/pubsub/v2"
)

const (
	TopicPaymentCreated       = "payment.created"
	TopicPaymentStatusChanged = "payment.status-changed"
	TopicPaymentRefunded      = "payment.refunded"
	TopicPayoutStatusChanged  = "payout.status-changed"
)

// Publisher is the producer-side view of the event bus. Services publish
// immutable event values and never learn who, if anyone, is listening.
type Publisher interface {
	Publish(topic string, event any)
}

// Hub fans domain events out to in-process subscribers.
type Hub struct {
	hub *pubsub.SimpleHub
}

func NewHub() *Hub {
	return &Hub{hub: pubsub.NewSimpleHub(nil)}
}

func (h *Hub) Publish(topic string, event any) {
	_ = h.hub.Publish(topic, event)
}

// Subscribe registers a handler for a topic and returns an unsubscribe
// function.
func (h *Hub) Subscribe(topic string, handler func(topic string, event any)) func() {
	return h.hub.Subscribe(topic, func(t string, data interface{}) {
		handler(t, data)
	})
}
