package services

import (
	"context"
	"errors"
	"time"

	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/google/uuid"
)

const DefaultDedupeWindow = 120 * time.Second

type Decision string

const (
	DecisionAllow    Decision = "allow"
	DecisionReuse    Decision = "reuse"
	DecisionRedirect Decision = "redirect"
)

type OrderKey struct {
	EventID   uuid.UUID
	ShowName  string
	TaxID     string
	PartyHash string
}

type GuardResult struct {
	Decision Decision
	// Purchase is the existing order for reuse and redirect.
	Purchase *models.Purchase
}

// DuplicateGuard absorbs resubmitted buy forms. It is a heuristic: two
// requests racing inside the window can still both be allowed.
type DuplicateGuard struct {
	store  repository.Store
	window time.Duration
	now    Clock
}

func NewDuplicateGuard(store repository.Store, window time.Duration) *DuplicateGuard {
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	return &DuplicateGuard{store: store, window: window, now: time.Now}
}

func (g *DuplicateGuard) Check(ctx context.Context, key OrderKey) (GuardResult, error) {
	allow := GuardResult{Decision: DecisionAllow}
	if key.TaxID == "" {
		return allow, nil
	}

	latest, err := g.store.LatestPurchaseForBuyer(ctx, key.EventID, key.ShowName, key.TaxID)
	if errors.Is(err, repository.ErrNotFound) {
		return allow, nil
	}
	if err != nil {
		return GuardResult{}, err
	}

	now := g.now()
	latest, err = ExpireDue(ctx, g.store, latest.ID, now)
	if err != nil {
		return GuardResult{}, err
	}

	switch latest.Status {
	case models.PurchaseFailed, models.PurchaseCancelled:
		return allow, nil
	case models.PurchasePaid, models.PurchaseReserved:
		return GuardResult{Decision: DecisionRedirect, Purchase: latest}, nil
	}

	payments, err := g.store.PaymentsForPurchase(ctx, latest.ID)
	if err != nil {
		return GuardResult{}, err
	}
	if _, paid := settledPayment(payments); paid {
		return GuardResult{Decision: DecisionRedirect, Purchase: latest}, nil
	}

	if latest.Status.IsOpen() && now.Sub(latest.CreatedAt) <= g.window && latest.PartyHash == key.PartyHash {
		return GuardResult{Decision: DecisionReuse, Purchase: latest}, nil
	}
	return allow, nil
}
