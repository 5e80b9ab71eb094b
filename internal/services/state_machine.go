package services

import (
	"context"
	"errors"
	"time"

	"github.com/farellandr/showticket/internal/log"
	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// IsFulfilled reports whether the purchase already has its ticket set. A run
// commits every ticket URL at once, so one fulfilled ticket means all are.
func IsFulfilled(ctx context.Context, store repository.Store, purchaseID uuid.UUID) (bool, error) {
	n, err := store.CountFulfilledTickets(ctx, purchaseID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func settledPayment(payments []models.Payment) (*models.Payment, bool) {
	p, ok := lo.Find(payments, func(p models.Payment) bool { return models.IsSettled(&p) })
	if !ok {
		return nil, false
	}
	return &p, true
}

// expireDue fails every pending payment past its expiry and, when no open
// attempt is left, the pending purchase with it. The caller holds the
// purchase row lock. Racing readers write the same terminal values.
func expireDue(ctx context.Context, tx repository.Store, purchase *models.Purchase, now time.Time) (bool, error) {
	if purchase.Status != models.PurchasePendingPayment {
		return false, nil
	}

	payments, err := tx.PaymentsForPurchase(ctx, purchase.ID)
	if err != nil {
		return false, err
	}

	changed := false
	open := 0
	for i := range payments {
		pay := &payments[i]
		if pay.IsExpired(now) {
			if err := pay.Fail(); err != nil {
				return false, err
			}
			if err := tx.SavePayment(ctx, pay); err != nil {
				return false, err
			}
			changed = true
			continue
		}
		if pay.Status == models.PaymentPending {
			open++
		}
	}

	if changed && open == 0 {
		if err := purchase.Fail(); err != nil {
			return false, err
		}
		if err := tx.SavePurchase(ctx, purchase); err != nil {
			return false, err
		}
		log.FromContext(ctx).WithField("purchase_id", purchase.ID).Info("Purchase expired without payment")
	}
	return changed, nil
}

// ExpireDue applies the lazy expiry check to one purchase and returns it as
// stored afterwards.
func ExpireDue(ctx context.Context, store repository.Store, purchaseID uuid.UUID, now time.Time) (*models.Purchase, error) {
	var purchase *models.Purchase
	err := store.Transaction(ctx, func(tx repository.Store) error {
		p, err := tx.LockPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		if _, err := expireDue(ctx, tx, p, now); err != nil {
			return err
		}
		purchase = p
		return nil
	})
	return purchase, err
}

// PaymentPicker chooses the attempt a confirmation refers to.
type PaymentPicker func(payments []models.Payment) *models.Payment

// ByExternalID prefers the provider's own id and falls back to the newest
// attempt of that provider.
func ByExternalID(provider, externalID string) PaymentPicker {
	return func(payments []models.Payment) *models.Payment {
		if externalID != "" {
			if p, ok := lo.Find(payments, func(p models.Payment) bool {
				return p.Provider == provider && p.ExternalID == externalID
			}); ok {
				return &p
			}
		}
		if p, ok := lo.Find(payments, func(p models.Payment) bool { return p.Provider == provider }); ok {
			return &p
		}
		return nil
	}
}

// LatestOpen picks the newest pending attempt, else the newest attempt.
func LatestOpen(payments []models.Payment) *models.Payment {
	if p, ok := lo.Find(payments, func(p models.Payment) bool { return p.Status == models.PaymentPending }); ok {
		return &p
	}
	if len(payments) > 0 {
		p := payments[0]
		return &p
	}
	return nil
}

// settle moves one purchase to paid together with the picked payment, in a
// single transaction under the purchase row lock. Replays are no-ops.
func settle(ctx context.Context, store repository.Store, purchaseID uuid.UUID, pick PaymentPicker, now time.Time) (Outcome, *models.Purchase) {
	logger := log.FromContext(ctx).WithField("purchase_id", purchaseID)

	var (
		outcome  Outcome
		purchase *models.Purchase
	)
	err := store.Transaction(ctx, func(tx repository.Store) error {
		p, err := tx.LockPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		purchase = p

		payments, err := tx.PaymentsForPurchase(ctx, p.ID)
		if err != nil {
			return err
		}
		target := pick(payments)
		if target == nil {
			outcome = noop("no matching payment")
			return nil
		}

		if settled, ok := settledPayment(payments); ok {
			if settled.ID != target.ID {
				logger.WithFields(logrus.Fields{
					"settled_payment_id": settled.ID,
					"payment_id":         target.ID,
				}).Error("Second payment confirmed for a settled purchase, refund required")
				outcome = conflict("purchase already settled by another payment")
				return nil
			}
			if p.Status != models.PurchasePaid {
				if err := p.MarkPaid(); err != nil {
					outcome = conflict(err.Error())
					return nil
				}
				if err := tx.SavePurchase(ctx, p); err != nil {
					return err
				}
			}
			outcome = noop("payment already settled")
			return nil
		}

		if err := p.MarkPaid(); err != nil {
			if errors.Is(err, models.ErrInvalidTransition) {
				// The money is real even if the order is not; keep the
				// attempt truthful and leave the purchase to an operator.
				if p.Status == models.PurchaseCancelled {
					target.MarkPaid(now)
					if err := tx.SavePayment(ctx, target); err != nil {
						return err
					}
					logger.WithField("payment_id", target.ID).Error("Payment confirmed for a cancelled purchase, refund required")
				}
				outcome = conflict(err.Error())
				return nil
			}
			return err
		}

		target.MarkPaid(now)
		if err := tx.SavePayment(ctx, target); err != nil {
			return err
		}
		for i := range payments {
			other := &payments[i]
			if other.ID == target.ID || other.Status != models.PaymentPending {
				continue
			}
			if err := other.Fail(); err != nil {
				return err
			}
			if err := tx.SavePayment(ctx, other); err != nil {
				return err
			}
		}
		if err := tx.SavePurchase(ctx, p); err != nil {
			return err
		}

		logger.WithField("payment_id", target.ID).Info("Purchase paid")
		outcome = applied("purchase paid")
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return noop("purchase not found"), nil
		}
		return transient("settle purchase", err), nil
	}
	return outcome, purchase
}

// failAttempt records a provider-reported failure on the picked pending
// attempt. The purchase fails only when no other attempt is still open.
func failAttempt(ctx context.Context, store repository.Store, purchaseID uuid.UUID, pick PaymentPicker) Outcome {
	var outcome Outcome
	err := store.Transaction(ctx, func(tx repository.Store) error {
		p, err := tx.LockPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		payments, err := tx.PaymentsForPurchase(ctx, p.ID)
		if err != nil {
			return err
		}
		target := pick(payments)
		if target == nil || target.Status != models.PaymentPending {
			outcome = noop("no pending payment to fail")
			return nil
		}

		if err := target.Fail(); err != nil {
			return err
		}
		if err := tx.SavePayment(ctx, target); err != nil {
			return err
		}

		stillOpen := lo.ContainsBy(payments, func(other models.Payment) bool {
			return other.ID != target.ID && other.Status == models.PaymentPending
		})
		if !stillOpen && p.Status == models.PurchasePendingPayment {
			if err := p.Fail(); err != nil {
				return err
			}
			if err := tx.SavePurchase(ctx, p); err != nil {
				return err
			}
		}
		outcome = applied("payment failed")
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return noop("purchase not found")
		}
		return transient("fail payment", err)
	}
	return outcome
}
