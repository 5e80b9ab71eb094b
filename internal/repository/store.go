package repository

import (
	"context"
	"errors"
	"time"

	"github.com/farellandr/showticket/internal/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type PurchaseFilter struct {
	Statuses []models.PurchaseStatus
	// Query matches buyer name, tax id, email, show name or token, case-insensitively.
	Query string
	Limit int
}

// Store is the order repository. Every method runs against the transaction the
// store was handed in, when it comes from Transaction.
type Store interface {
	// Transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	SavePurchase(ctx context.Context, purchase *models.Purchase) error
	PurchaseByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	PurchaseByToken(ctx context.Context, token string) (*models.Purchase, error)
	// LockPurchase loads the purchase and holds its row lock until the
	// surrounding transaction ends.
	LockPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	LatestPurchaseForBuyer(ctx context.Context, eventID uuid.UUID, showName, taxID string) (*models.Purchase, error)
	ListPurchases(ctx context.Context, filter PurchaseFilter) ([]models.Purchase, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	SavePayment(ctx context.Context, payment *models.Payment) error
	// PaymentsForPurchase returns the attempts newest first.
	PaymentsForPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.Payment, error)
	PendingPaymentsExpiredBefore(ctx context.Context, t time.Time) ([]models.Payment, error)

	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	SaveTicket(ctx context.Context, ticket *models.Ticket) error
	// TicketsForPurchase returns tickets in attendee order.
	TicketsForPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.Ticket, error)
	TicketByToken(ctx context.Context, token string) (*models.Ticket, error)
	CountFulfilledTickets(ctx context.Context, purchaseID uuid.UUID) (int64, error)

	CreateEvent(ctx context.Context, event *models.Event) error
	EventBySlug(ctx context.Context, slug string) (*models.Event, error)
	CreateShow(ctx context.Context, show *models.Show) error
	SaveShow(ctx context.Context, show *models.Show) error
	ShowByID(ctx context.Context, id uuid.UUID) (*models.Show, error)
	ShowByName(ctx context.Context, eventID uuid.UUID, name string) (*models.Show, error)
	ShowsForEvent(ctx context.Context, eventID uuid.UUID, activeOnly bool) ([]models.Show, error)

	UserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
	SaveWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
}
