package notify

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/farellandr/showticket/internal/log"
	"github.com/sirupsen/logrus"
)

// Publisher puts notifications on the message bus for the mail consumer.
type Publisher struct {
	pub message.Publisher
}

func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

func (p *Publisher) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("kind", string(n.Kind))
	if id := log.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}
	return p.pub.Publish(Topic, msg)
}

// LogNotifier only logs. It is used when no message bus is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	log.FromContext(ctx).WithFields(logrus.Fields{
		"kind":        n.Kind,
		"purchase_id": n.PurchaseID,
		"token":       n.Token,
	}).Info("Notification not delivered, no message bus configured")
	return nil
}
