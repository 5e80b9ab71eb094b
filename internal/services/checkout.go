package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/farellandr/showticket/internal/helpers"
	"github.com/farellandr/showticket/internal/log"
	"github.com/farellandr/showticket/internal/metrics"
	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/notify"
	"github.com/farellandr/showticket/internal/payments"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
)

var (
	ErrShowUnavailable = errors.New("show is not available")
	ErrGateway         = errors.New("payment provider unavailable")
)

type BuyRequest struct {
	EventSlug  string
	ShowName   string
	BuyerName  string
	BuyerTaxID string
	BuyerEmail string
	BuyerPhone string
	Guests     string
}

type BuyResult struct {
	Decision Decision
	Purchase *models.Purchase
	// Payment is the attempt to pay with; nil for reservations.
	Payment *models.Payment
}

type CheckoutConfig struct {
	Currency     string
	PaymentTTL   time.Duration
	DedupeWindow time.Duration
	Links        Links
}

type Checkout struct {
	store    repository.Store
	gateway  payments.Gateway
	guard    *DuplicateGuard
	locker   Locker
	notifier notify.Notifier
	config   CheckoutConfig
	now      Clock
}

func NewCheckout(store repository.Store, gateway payments.Gateway, locker Locker, notifier notify.Notifier, config CheckoutConfig) *Checkout {
	if config.Currency == "" {
		config.Currency = "BRL"
	}
	if config.PaymentTTL <= 0 {
		config.PaymentTTL = 30 * time.Minute
	}
	return &Checkout{
		store:    store,
		gateway:  gateway,
		guard:    NewDuplicateGuard(store, config.DedupeWindow),
		locker:   locker,
		notifier: notifier,
		config:   config,
		now:      time.Now,
	}
}

func (r *BuyRequest) normalize() error {
	r.BuyerName = strings.Join(strings.Fields(r.BuyerName), " ")
	r.ShowName = strings.TrimSpace(r.ShowName)
	r.EventSlug = strings.TrimSpace(r.EventSlug)
	r.BuyerEmail = strings.ToLower(strings.TrimSpace(r.BuyerEmail))
	r.BuyerPhone = helpers.DigitsOnly(r.BuyerPhone)
	r.BuyerTaxID = helpers.DigitsOnly(r.BuyerTaxID)
	r.Guests = strings.Join(SplitGuests(r.Guests), "\n")

	switch {
	case r.BuyerName == "":
		return validationError("buyer name is required")
	case r.EventSlug == "" || r.ShowName == "":
		return validationError("event and show are required")
	case r.BuyerTaxID != "" && !helpers.ValidTaxID(r.BuyerTaxID):
		return validationError("tax id must have 11 or 14 digits")
	}
	if r.BuyerEmail != "" {
		if _, err := mail.ParseAddress(r.BuyerEmail); err != nil {
			return validationError("invalid email address")
		}
	}
	return nil
}

// Buy accepts an order. Resubmissions inside the dedupe window return the
// existing purchase, and buyers with a finished order are redirected to it.
func (c *Checkout) Buy(ctx context.Context, req BuyRequest) (*BuyResult, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	event, err := c.store.EventBySlug(ctx, req.EventSlug)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, validationError("unknown event %q", req.EventSlug)
	}
	if err != nil {
		return nil, err
	}
	show, err := c.store.ShowByName(ctx, event.ID, req.ShowName)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, validationError("unknown show %q", req.ShowName)
	}
	if err != nil {
		return nil, err
	}
	if !show.IsActive {
		return nil, ErrShowUnavailable
	}

	key := OrderKey{
		EventID:   event.ID,
		ShowName:  show.Name,
		TaxID:     req.BuyerTaxID,
		PartyHash: PartyHash(req.BuyerName, req.Guests),
	}

	if c.locker != nil && key.TaxID != "" {
		unlock, err := c.locker.Lock(ctx, fmt.Sprintf("buy:%s:%s:%s", key.EventID, show.ID, key.TaxID), 45*time.Second)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	guard, err := c.guard.Check(ctx, key)
	if err != nil {
		return nil, err
	}
	if guard.Decision != DecisionAllow {
		log.FromContext(ctx).WithField("purchase_id", guard.Purchase.ID).WithField("decision", guard.Decision).Info("Returning existing purchase")
		return c.existing(ctx, guard)
	}

	return c.create(ctx, req, event, show, key)
}

func (c *Checkout) existing(ctx context.Context, guard GuardResult) (*BuyResult, error) {
	result := &BuyResult{Decision: guard.Decision, Purchase: guard.Purchase}
	attempts, err := c.store.PaymentsForPurchase(ctx, guard.Purchase.ID)
	if err != nil {
		return nil, err
	}
	if len(attempts) > 0 {
		result.Payment = &attempts[0]
	}
	return result, nil
}

func (c *Checkout) create(ctx context.Context, req BuyRequest, event *models.Event, show *models.Show, key OrderKey) (*BuyResult, error) {
	now := c.now()
	purchase := &models.Purchase{
		ID:         uuid.New(),
		Token:      shortuuid.New(),
		EventID:    event.ID,
		ShowName:   show.Name,
		BuyerName:  req.BuyerName,
		BuyerTaxID: req.BuyerTaxID,
		BuyerEmail: req.BuyerEmail,
		BuyerPhone: req.BuyerPhone,
		GuestsText: req.Guests,
		Quantity:   len(ExpandAttendees(req.BuyerName, req.Guests)),
		PartyHash:  key.PartyHash,
		Status:     show.InitialStatus(),
	}
	if show.PriceCents != nil {
		purchase.UnitPriceCents = *show.PriceCents
	}

	var payment *models.Payment
	if purchase.Status == models.PurchasePendingPayment {
		// The charge is opened outside the transaction. If the insert fails,
		// the orphan charge expires on the provider side.
		charge, err := c.gateway.CreateCharge(ctx, payments.ChargeRequest{
			Reference:       helpers.PurchaseReference(purchase.ID),
			Description:     fmt.Sprintf("%s - %d ingresso(s)", show.Name, purchase.Quantity),
			AmountCents:     purchase.TotalCents(),
			Currency:        c.config.Currency,
			BuyerName:       purchase.BuyerName,
			BuyerEmail:      purchase.BuyerEmail,
			BuyerTaxID:      purchase.BuyerTaxID,
			BuyerPhone:      purchase.BuyerPhone,
			NotificationURL: c.config.Links.Webhook(c.gateway.Provider()),
			ExpiresIn:       c.config.PaymentTTL,
		})
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("Could not create charge")
			return nil, fmt.Errorf("%w: %v", ErrGateway, err)
		}

		expiresAt := charge.ExpiresAt
		if expiresAt == nil {
			t := now.Add(c.config.PaymentTTL)
			expiresAt = &t
		}
		payment = &models.Payment{
			PurchaseID:  purchase.ID,
			Provider:    c.gateway.Provider(),
			AmountCents: purchase.TotalCents(),
			Currency:    c.config.Currency,
			Status:      models.PaymentPending,
			ExternalID:  charge.ExternalID,
			CheckoutURL: charge.CheckoutURL,
			QRText:      charge.QRText,
			ExpiresAt:   expiresAt,
		}
	}

	err := c.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.CreatePurchase(ctx, purchase); err != nil {
			return err
		}
		if payment != nil {
			return tx.CreatePayment(ctx, payment)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	metrics.PurchaseCreated(string(purchase.Status))
	log.FromContext(ctx).WithField("purchase_id", purchase.ID).WithField("status", purchase.Status).Info("Purchase created")

	if purchase.Status != models.PurchasePendingPayment {
		sendNotification(ctx, c.notifier, buildNotification(notify.KindReservationReceived, purchase, c.config.Links, now))
	}
	return &BuyResult{Decision: DecisionAllow, Purchase: purchase, Payment: payment}, nil
}
