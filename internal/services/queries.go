package services

import (
	"context"
	"time"

	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/google/uuid"
)

type PaymentView struct {
	Provider     string               `json:"provider"`
	Status       models.PaymentStatus `json:"status"`
	AmountCents  int64                `json:"amount_cents"`
	Currency     string               `json:"currency"`
	CheckoutURL  string               `json:"checkout_url,omitempty"`
	QRText       string               `json:"qr_text,omitempty"`
	ExpiresAt    *time.Time           `json:"expires_at,omitempty"`
	PaidAt       *time.Time           `json:"paid_at,omitempty"`
	BundlePDFURL string               `json:"bundle_pdf_url,omitempty"`
	BundleZIPURL string               `json:"bundle_zip_url,omitempty"`
}

type TicketView struct {
	Sequence   int               `json:"sequence"`
	PersonName string            `json:"person_name"`
	PersonRole models.PersonRole `json:"person_role"`
	VerifyURL  string            `json:"verify_url"`
	PNGURL     string            `json:"png_url"`
	PDFURL     string            `json:"pdf_url"`
}

// StatusView is what the purchase token holder may see.
type StatusView struct {
	Token      string                `json:"token"`
	ShowName   string                `json:"show_name"`
	BuyerName  string                `json:"buyer_name"`
	Status     models.PurchaseStatus `json:"status"`
	Quantity   int                   `json:"quantity"`
	TotalCents int64                 `json:"total_cents"`
	CreatedAt  time.Time             `json:"created_at"`
	Payment    *PaymentView          `json:"payment,omitempty"`
	Tickets    []TicketView          `json:"tickets"`
}

type TicketVerification struct {
	Valid      bool                `json:"valid"`
	ShowName   string              `json:"show_name"`
	PersonName string              `json:"person_name"`
	Status     models.TicketStatus `json:"status"`
}

type Queries struct {
	store repository.Store
	links Links
	now   Clock
}

func NewQueries(store repository.Store, links Links) *Queries {
	return &Queries{store: store, links: links, now: time.Now}
}

// Status reads a purchase by its public token. Reading applies the lazy
// expiry of a pending payment.
func (q *Queries) Status(ctx context.Context, token string) (*StatusView, error) {
	p, err := q.store.PurchaseByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if p, err = ExpireDue(ctx, q.store, p.ID, q.now()); err != nil {
		return nil, err
	}

	view := &StatusView{
		Token:      p.Token,
		ShowName:   p.ShowName,
		BuyerName:  p.BuyerName,
		Status:     p.Status,
		Quantity:   p.Quantity,
		TotalCents: p.TotalCents(),
		CreatedAt:  p.CreatedAt,
		Tickets:    []TicketView{},
	}

	payments, err := q.store.PaymentsForPurchase(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	pay, ok := settledPayment(payments)
	if !ok && len(payments) > 0 {
		pay = &payments[0]
	}
	if pay != nil {
		view.Payment = &PaymentView{
			Provider:     pay.Provider,
			Status:       pay.Status,
			AmountCents:  pay.AmountCents,
			Currency:     pay.Currency,
			ExpiresAt:    pay.ExpiresAt,
			PaidAt:       pay.PaidAt,
			BundlePDFURL: pay.BundlePDFURL,
			BundleZIPURL: pay.BundleZIPURL,
		}
		if pay.Status == models.PaymentPending {
			view.Payment.CheckoutURL = pay.CheckoutURL
			view.Payment.QRText = pay.QRText
		}
	}

	tickets, err := q.store.TicketsForPurchase(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for _, t := range tickets {
		if !t.HasArtifacts() {
			continue
		}
		view.Tickets = append(view.Tickets, TicketView{
			Sequence:   t.Sequence,
			PersonName: t.PersonName,
			PersonRole: t.PersonRole,
			VerifyURL:  q.links.Ticket(t.Token),
			PNGURL:     t.PNGURL,
			PDFURL:     t.PDFURL,
		})
	}
	return view, nil
}

// VerifyTicket answers the door scanner. It shows only the scanned ticket.
func (q *Queries) VerifyTicket(ctx context.Context, token string) (*TicketVerification, error) {
	t, err := q.store.TicketByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	p, err := q.store.PurchaseByID(ctx, t.PurchaseID)
	if err != nil {
		return nil, err
	}
	return &TicketVerification{
		Valid:      p.Status == models.PurchasePaid && t.Status == models.TicketIssued,
		ShowName:   t.ShowName,
		PersonName: t.PersonName,
		Status:     t.Status,
	}, nil
}

// Expirer applies the lazy expiry to every overdue payment at once, for
// deployments that want expired orders to show up without being read.
type Expirer struct {
	store repository.Store
	now   Clock
}

func NewExpirer(store repository.Store) *Expirer {
	return &Expirer{store: store, now: time.Now}
}

// Sweep fails every pending payment past its expiry and returns how many
// purchases it moved to failed.
func (e *Expirer) Sweep(ctx context.Context) (int, error) {
	now := e.now()
	due, err := e.store.PendingPaymentsExpiredBefore(ctx, now)
	if err != nil {
		return 0, err
	}

	seen := map[string]bool{}
	failed := 0
	for _, pay := range due {
		if seen[pay.PurchaseID.String()] {
			continue
		}
		seen[pay.PurchaseID.String()] = true

		expired, err := e.expire(ctx, pay.PurchaseID, now)
		if err != nil {
			return failed, err
		}
		if expired {
			failed++
		}
	}
	return failed, nil
}

func (e *Expirer) expire(ctx context.Context, purchaseID uuid.UUID, now time.Time) (bool, error) {
	var expired bool
	err := e.store.Transaction(ctx, func(tx repository.Store) error {
		p, err := tx.LockPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		before := p.Status
		if _, err := expireDue(ctx, tx, p, now); err != nil {
			return err
		}
		expired = before != models.PurchaseFailed && p.Status == models.PurchaseFailed
		return nil
	})
	return expired, err
}
