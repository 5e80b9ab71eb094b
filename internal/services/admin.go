package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/farellandr/showticket/internal/log"
	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/notify"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/samber/lo"
)

// Admin holds the operator actions. Every one goes through the same state
// machine as the automated paths.
type Admin struct {
	store      repository.Store
	settlement *Settlement
	fulfiller  Fulfiller
	notifier   notify.Notifier
	links      Links
	now        Clock
}

func NewAdmin(store repository.Store, settlement *Settlement, fulfiller Fulfiller, notifier notify.Notifier, links Links) *Admin {
	return &Admin{
		store:      store,
		settlement: settlement,
		fulfiller:  fulfiller,
		notifier:   notifier,
		links:      links,
		now:        time.Now,
	}
}

func (a *Admin) purchase(ctx context.Context, token string) (*models.Purchase, Outcome, bool) {
	p, err := a.store.PurchaseByToken(ctx, strings.TrimSpace(token))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalid(repository.ErrNotFound), false
	}
	if err != nil {
		return nil, transient("load purchase", err), false
	}
	return p, Outcome{}, true
}

// mutate runs change on the locked purchase and saves it when it returns nil.
func (a *Admin) mutate(ctx context.Context, token string, change func(tx repository.Store, p *models.Purchase) error) (*models.Purchase, error) {
	p, failed, ok := a.purchase(ctx, token)
	if !ok {
		return nil, failed.Err
	}

	var locked *models.Purchase
	err := a.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		if locked, err = tx.LockPurchase(ctx, p.ID); err != nil {
			return err
		}
		if err := change(tx, locked); err != nil {
			return err
		}
		return tx.SavePurchase(ctx, locked)
	})
	return locked, err
}

func transitionOutcome(err error, done string) Outcome {
	switch {
	case err == nil:
		return applied(done)
	case errors.Is(err, models.ErrAlreadyConfirmed):
		return noop(err.Error())
	case errors.Is(err, models.ErrInvalidTransition):
		return conflict(err.Error())
	case errors.Is(err, models.ErrReasonRequired), errors.Is(err, repository.ErrNotFound):
		return invalid(err)
	}
	return transient(done, err)
}

func (a *Admin) ConfirmReservation(ctx context.Context, token string) Outcome {
	now := a.now()
	p, err := a.mutate(ctx, token, func(_ repository.Store, p *models.Purchase) error {
		return p.ConfirmReservation(now)
	})
	outcome := transitionOutcome(err, "reservation confirmed")
	if outcome.Kind == Applied {
		sendNotification(ctx, a.notifier, buildNotification(notify.KindReservationConfirmed, p, a.links, now))
	}
	return outcome
}

func (a *Admin) Cancel(ctx context.Context, token, reason string) Outcome {
	if strings.TrimSpace(reason) == "" {
		return invalid(models.ErrReasonRequired)
	}
	p, err := a.mutate(ctx, token, func(tx repository.Store, p *models.Purchase) error {
		if err := p.Cancel(reason); err != nil {
			return err
		}
		// Open attempts die with the order.
		return failOpenPayments(ctx, tx, p)
	})
	outcome := transitionOutcome(err, "purchase cancelled")
	if outcome.Kind == Applied {
		log.FromContext(ctx).WithField("purchase_id", p.ID).WithField("reason", p.CancelReason).Info("Purchase cancelled by operator")
	}
	return outcome
}

func failOpenPayments(ctx context.Context, tx repository.Store, p *models.Purchase) error {
	payments, err := tx.PaymentsForPurchase(ctx, p.ID)
	if err != nil {
		return err
	}
	for i := range payments {
		if payments[i].Status != models.PaymentPending {
			continue
		}
		if err := payments[i].Fail(); err != nil {
			return err
		}
		if err := tx.SavePayment(ctx, &payments[i]); err != nil {
			return err
		}
	}
	return nil
}

// MarkPaid is the manual reconciliation override: it settles the newest open
// attempt exactly as a provider confirmation would.
func (a *Admin) MarkPaid(ctx context.Context, token string) Outcome {
	p, failed, ok := a.purchase(ctx, token)
	if !ok {
		return failed
	}
	if p.Status != models.PurchasePendingPayment && p.Status != models.PurchaseFailed && p.Status != models.PurchasePaid {
		return conflict("purchase in status " + string(p.Status) + " cannot be paid")
	}
	return a.settlement.Pay(ctx, p.ID, LatestOpen)
}

func (a *Admin) Refulfill(ctx context.Context, token string) Outcome {
	p, failed, ok := a.purchase(ctx, token)
	if !ok {
		return failed
	}
	return a.fulfiller.Run(ctx, p.ID)
}

type PurchaseRow struct {
	Purchase models.Purchase
	Payment  *models.Payment
	Tickets  int
}

func (a *Admin) ListPurchases(ctx context.Context, filter repository.PurchaseFilter) ([]PurchaseRow, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 200
	}
	purchases, err := a.store.ListPurchases(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows := make([]PurchaseRow, 0, len(purchases))
	for _, p := range purchases {
		row := PurchaseRow{Purchase: p}
		payments, err := a.store.PaymentsForPurchase(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if settled, ok := settledPayment(payments); ok {
			row.Payment = settled
		} else if len(payments) > 0 {
			row.Payment = &payments[0]
		}
		tickets, err := a.store.TicketsForPurchase(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		row.Tickets = len(lo.Filter(tickets, func(t models.Ticket, _ int) bool { return t.HasArtifacts() }))
		rows = append(rows, row)
	}
	return rows, nil
}
