package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/farellandr/showticket/internal/artifacts"
	"github.com/farellandr/showticket/internal/log"
	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/notify"
	"github.com/google/uuid"
)

var ErrValidation = errors.New("validation failed")

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ArtifactRenderer turns ticket data into image and document bytes.
type ArtifactRenderer interface {
	RenderTicket(ctx context.Context, art artifacts.TicketArt) ([]byte, error)
	TicketPDF(png []byte) ([]byte, error)
	BundlePDF(pngs [][]byte) ([]byte, error)
	Archive(files []artifacts.File) ([]byte, error)
}

// ObjectStore publishes bytes under a name and returns the public URL.
// Putting the same name twice overwrites.
type ObjectStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

type Fulfiller interface {
	Run(ctx context.Context, purchaseID uuid.UUID) Outcome
}

type Clock func() time.Time

// Links builds the public URLs handed to buyers.
type Links struct {
	BaseURL string
}

func (l Links) base() string {
	return strings.TrimRight(l.BaseURL, "/")
}

func (l Links) Ticket(token string) string {
	return l.base() + "/ticket/" + token
}

func (l Links) Status(token string) string {
	return l.base() + "/status/" + token
}

func (l Links) Webhook(provider string) string {
	return l.base() + "/webhooks/" + provider
}

func buildNotification(kind notify.Kind, purchase *models.Purchase, links Links, now time.Time, extra ...notify.Link) notify.Notification {
	return notify.Notification{
		Kind:       kind,
		PurchaseID: purchase.ID,
		Token:      purchase.Token,
		BuyerName:  purchase.BuyerName,
		BuyerEmail: purchase.BuyerEmail,
		ShowName:   purchase.ShowName,
		TotalCents: purchase.TotalCents(),
		StatusURL:  links.Status(purchase.Token),
		Links:      extra,
		OccurredAt: now,
	}
}

// NotifyTimeout bounds how long an operation waits on its notifier.
var NotifyTimeout = 15 * time.Second

// sendNotification never fails the caller; notifications are best-effort.
func sendNotification(ctx context.Context, notifier notify.Notifier, n notify.Notification) {
	if notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, NotifyTimeout)
	defer cancel()

	if err := notifier.Notify(ctx, n); err != nil {
		log.FromContext(ctx).WithError(err).
			WithField("purchase_id", n.PurchaseID).
			WithField("kind", n.Kind).
			Warn("Could not hand off notification")
	}
}
