package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const Topic = "showticket.notifications"

type Kind string

const (
	KindReservationReceived  Kind = "reservation_received"
	KindReservationConfirmed Kind = "reservation_confirmed"
	KindPurchasePaid         Kind = "purchase_paid"
	KindTicketsIssued        Kind = "tickets_issued"
)

type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type Notification struct {
	Kind       Kind      `json:"kind"`
	PurchaseID uuid.UUID `json:"purchase_id"`
	Token      string    `json:"token"`
	BuyerName  string    `json:"buyer_name"`
	BuyerEmail string    `json:"buyer_email"`
	ShowName   string    `json:"show_name"`
	TotalCents int64     `json:"total_cents"`
	StatusURL  string    `json:"status_url"`
	Links      []Link    `json:"links,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier hands a notification off for delivery. Delivery problems are the
// notifier's business; callers only see errors from the hand-off itself.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
