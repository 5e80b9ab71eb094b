package services

import (
	"context"
	"errors"
	"time"

	"github.com/farellandr/showticket/internal/helpers"
	"github.com/farellandr/showticket/internal/log"
	"github.com/farellandr/showticket/internal/metrics"
	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/notify"
	"github.com/farellandr/showticket/internal/payments"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Settlement is the single road to paid, shared by provider notifications
// and the operator override.
type Settlement struct {
	store     repository.Store
	fulfiller Fulfiller
	notifier  notify.Notifier
	links     Links
	now       Clock
}

func NewSettlement(store repository.Store, fulfiller Fulfiller, notifier notify.Notifier, links Links) *Settlement {
	return &Settlement{store: store, fulfiller: fulfiller, notifier: notifier, links: links, now: time.Now}
}

// Pay settles the purchase with the picked attempt and then makes sure the
// tickets exist. A fulfillment failure is returned as the outcome so the
// caller can retry; the paid state stays committed.
func (s *Settlement) Pay(ctx context.Context, purchaseID uuid.UUID, pick PaymentPicker) Outcome {
	outcome, purchase := settle(ctx, s.store, purchaseID, pick, s.now())
	switch outcome.Kind {
	case Applied:
		sendNotification(ctx, s.notifier, buildNotification(notify.KindPurchasePaid, purchase, s.links, s.now()))
	case NoOp:
		if purchase == nil || purchase.Status != models.PurchasePaid {
			return outcome
		}
	default:
		return outcome
	}

	fulfilled, err := IsFulfilled(ctx, s.store, purchaseID)
	if err != nil {
		return transient("check fulfillment", err)
	}
	if fulfilled {
		return outcome
	}

	if result := s.fulfiller.Run(ctx, purchaseID); result.Kind == TransientFailure || result.Kind == FatalError {
		return result
	}
	return outcome
}

type Reconciler struct {
	store       repository.Store
	normalizers payments.Normalizers
	settlement  *Settlement
	now         Clock
}

func NewReconciler(store repository.Store, normalizers payments.Normalizers, settlement *Settlement) *Reconciler {
	return &Reconciler{store: store, normalizers: normalizers, settlement: settlement, now: time.Now}
}

// Receive authenticates, records and applies one provider notification.
func (r *Reconciler) Receive(ctx context.Context, provider string, in payments.Inbound) Outcome {
	logger := log.FromContext(ctx).WithField("provider", provider)

	normalizer, err := r.normalizers.Get(provider)
	if err != nil {
		return invalid(err)
	}
	if err := normalizer.Verify(in); err != nil {
		logger.WithError(err).Warn("Rejected unauthenticated notification")
		metrics.WebhookReceived(provider, "rejected")
		return invalid(err)
	}

	event := &models.WebhookEvent{
		Provider:    provider,
		ContentType: in.ContentType,
		Payload:     string(in.Body),
	}
	parsed, parseErr := normalizer.Parse(in)
	if parseErr == nil {
		event.ExternalID = parsed.ExternalID
		event.Reference = parsed.Reference
		event.Status = parsed.RawStatus
	}
	if err := r.store.CreateWebhookEvent(ctx, event); err != nil {
		return transient("store notification", err)
	}

	var outcome Outcome
	if parseErr != nil {
		logger.WithError(parseErr).Warn("Ignoring notification that could not be parsed")
		outcome = noop("payload not understood")
	} else {
		outcome = r.Reconcile(ctx, provider, parsed)
	}

	now := r.now()
	event.Outcome = string(outcome.Kind)
	event.ProcessedAt = &now
	if outcome.Err != nil {
		event.ProcessingError = outcome.Err.Error()
	}
	if err := r.store.SaveWebhookEvent(ctx, event); err != nil {
		logger.WithError(err).Error("Could not record notification outcome")
	}

	metrics.WebhookReceived(provider, string(outcome.Kind))
	return outcome
}

func (r *Reconciler) Reconcile(ctx context.Context, provider string, n payments.ParsedNotification) Outcome {
	logger := log.FromContext(ctx).WithFields(logrus.Fields{
		"provider":    provider,
		"reference":   n.Reference,
		"external_id": n.ExternalID,
		"status":      n.Status,
	})

	purchaseID, err := helpers.ParsePurchaseReference(n.Reference)
	if err != nil {
		logger.Info("Notification does not reference a purchase")
		return noop("unrecognized reference")
	}

	if _, err := r.store.PurchaseByID(ctx, purchaseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn("Notification for unknown purchase")
			return noop("purchase not found")
		}
		return transient("load purchase", err)
	}

	pick := ByExternalID(provider, n.ExternalID)
	var outcome Outcome
	switch n.Status {
	case payments.StatusPaid:
		outcome = r.settlement.Pay(ctx, purchaseID, pick)
	case payments.StatusFailed:
		outcome = failAttempt(ctx, r.store, purchaseID, pick)
	default:
		outcome = noop("status does not change state")
	}

	logger.WithField("outcome", outcome.String()).Info("Notification reconciled")
	return outcome
}
