package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/farellandr/showticket/internal/log"
	"github.com/farellandr/showticket/internal/metrics"
	"github.com/farellandr/showticket/internal/repository"
)

// Consumer mails notifications to buyers and records the last delivery
// attempt on the purchase. A failed delivery is recorded and acknowledged;
// it never touches the purchase status.
type Consumer struct {
	store  repository.Store
	mailer Mailer
	now    func() time.Time
}

func NewConsumer(store repository.Store, mailer Mailer) *Consumer {
	return &Consumer{store: store, mailer: mailer, now: time.Now}
}

func (c *Consumer) Handle(msg *message.Message) error {
	var n Notification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		log.FromContext(msg.Context()).WithError(err).Error("Dropping undecodable notification")
		return nil
	}
	return c.Deliver(msg.Context(), n)
}

func (c *Consumer) Deliver(ctx context.Context, n Notification) error {
	logger := log.FromContext(ctx).WithField("purchase_id", n.PurchaseID).WithField("kind", n.Kind)

	sendErr := c.send(ctx, n)
	metrics.NotificationSent(string(n.Kind), sendErr)
	if sendErr != nil {
		logger.WithError(sendErr).Warn("Notification delivery failed")
	}

	err := c.store.Transaction(ctx, func(tx repository.Store) error {
		purchase, err := tx.LockPurchase(ctx, n.PurchaseID)
		if err != nil {
			return err
		}
		if sendErr != nil {
			purchase.NotificationLastError = sendErr.Error()
		} else {
			now := c.now()
			purchase.NotifiedAt = &now
			purchase.NotificationLastError = ""
		}
		return tx.SavePurchase(ctx, purchase)
	})
	if errors.Is(err, repository.ErrNotFound) {
		logger.Warn("Notification for unknown purchase")
		return nil
	}
	return err
}

func (c *Consumer) send(ctx context.Context, n Notification) error {
	if strings.TrimSpace(n.BuyerEmail) == "" {
		return errors.New("buyer has no email address")
	}
	mail, err := Render(n)
	if err != nil {
		return err
	}
	return c.mailer.Send(ctx, mail)
}

// Direct delivers in-process, without a bus. Useful for the CLI and for
// single-node setups without redis.
type Direct struct {
	consumer *Consumer
}

func NewDirect(consumer *Consumer) *Direct {
	return &Direct{consumer: consumer}
}

func (d *Direct) Notify(ctx context.Context, n Notification) error {
	return d.consumer.Deliver(ctx, n)
}
