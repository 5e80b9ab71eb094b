package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/farellandr/showticket/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPurchase(token string) *models.Purchase {
	return &models.Purchase{
		Token:      token,
		EventID:    uuid.New(),
		ShowName:   "Jazz Night",
		BuyerName:  "Ana Souza",
		BuyerTaxID: "52998224725",
		Quantity:   1,
		Status:     models.PurchasePendingPayment,
	}
}

func TestMemoryStoreTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := newPurchase("tok-1")
	require.NoError(t, store.CreatePurchase(ctx, p))

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(tx Store) error {
		locked, err := tx.LockPurchase(ctx, p.ID)
		require.NoError(t, err)
		require.NoError(t, locked.MarkPaid())
		require.NoError(t, tx.SavePurchase(ctx, locked))
		require.NoError(t, tx.CreateTicket(ctx, &models.Ticket{PurchaseID: p.ID, Token: "t-1", Sequence: 1}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.PurchaseByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchasePendingPayment, got.Status)

	tickets, err := store.TicketsForPurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestMemoryStoreTransactionCommits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := newPurchase("tok-1")

	err := store.Transaction(ctx, func(tx Store) error {
		if err := tx.CreatePurchase(ctx, p); err != nil {
			return err
		}
		return tx.CreatePayment(ctx, &models.Payment{PurchaseID: p.ID, Provider: "pagbank", AmountCents: 5000, Status: models.PaymentPending})
	})
	require.NoError(t, err)

	payments, err := store.PaymentsForPurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestMemoryStoreSerializesTransactions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := newPurchase("tok-1")
	p.Quantity = 0
	require.NoError(t, store.CreatePurchase(ctx, p))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Transaction(ctx, func(tx Store) error {
				locked, err := tx.LockPurchase(ctx, p.ID)
				if err != nil {
					return err
				}
				locked.Quantity++
				return tx.SavePurchase(ctx, locked)
			})
		}()
	}
	wg.Wait()

	got, err := store.PurchaseByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Quantity)
}

func TestMemoryStoreRejectsDuplicateTokens(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.CreatePurchase(ctx, newPurchase("same")))
	assert.ErrorIs(t, store.CreatePurchase(ctx, newPurchase("same")), ErrConflict)

	require.NoError(t, store.CreateTicket(ctx, &models.Ticket{Token: "ticket"}))
	assert.ErrorIs(t, store.CreateTicket(ctx, &models.Ticket{Token: "ticket"}), ErrConflict)
}

func TestMemoryStoreLatestPurchaseForBuyer(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := newPurchase("first")
	require.NoError(t, store.CreatePurchase(ctx, first))
	second := newPurchase("second")
	second.EventID = first.EventID
	require.NoError(t, store.CreatePurchase(ctx, second))

	got, err := store.LatestPurchaseForBuyer(ctx, first.EventID, "Jazz Night", "52998224725")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Token)

	_, err = store.LatestPurchaseForBuyer(ctx, first.EventID, "Other Show", "52998224725")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreListPurchases(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	paid := newPurchase("paid")
	paid.Status = models.PurchasePaid
	paid.BuyerName = "Bruno Lima"
	require.NoError(t, store.CreatePurchase(ctx, paid))
	require.NoError(t, store.CreatePurchase(ctx, newPurchase("open")))

	all, err := store.ListPurchases(ctx, PurchaseFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "open", all[0].Token)

	onlyPaid, err := store.ListPurchases(ctx, PurchaseFilter{Statuses: []models.PurchaseStatus{models.PurchasePaid}})
	require.NoError(t, err)
	require.Len(t, onlyPaid, 1)

	byName, err := store.ListPurchases(ctx, PurchaseFilter{Query: "bruno"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "paid", byName[0].Token)
}

func TestMemoryStoreExpiredPayments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	require.NoError(t, store.CreatePayment(ctx, &models.Payment{Status: models.PaymentPending, ExpiresAt: &past}))
	require.NoError(t, store.CreatePayment(ctx, &models.Payment{Status: models.PaymentPending, ExpiresAt: &future}))
	require.NoError(t, store.CreatePayment(ctx, &models.Payment{Status: models.PaymentPaid, ExpiresAt: &past}))

	expired, err := store.PendingPaymentsExpiredBefore(ctx, now)
	require.NoError(t, err)
	assert.Len(t, expired, 1)
}

func TestMemoryStoreCountFulfilledTickets(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	purchaseID := uuid.New()

	require.NoError(t, store.CreateTicket(ctx, &models.Ticket{PurchaseID: purchaseID, Token: "a", PNGURL: "a.png", PDFURL: "a.pdf"}))
	require.NoError(t, store.CreateTicket(ctx, &models.Ticket{PurchaseID: purchaseID, Token: "b", PNGURL: "b.png"}))

	n, err := store.CountFulfilledTickets(ctx, purchaseID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
