package repository

import (
	"context"
	"testing"

	"github.com/farellandr/showticket/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Role{}, &models.User{}, &models.Event{}, &models.Show{},
		&models.Purchase{}, &models.Payment{}, &models.Ticket{}, &models.WebhookEvent{},
	))
	return db
}

func TestGormStorePurchaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(newTestDB(t))

	p := newPurchase("tok-gorm")
	require.NoError(t, store.CreatePurchase(ctx, p))
	require.NotEqual(t, uuid.Nil, p.ID)

	got, err := store.PurchaseByToken(ctx, "tok-gorm")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, models.PurchasePendingPayment, got.Status)

	_, err = store.PurchaseByToken(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStoreTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(newTestDB(t))
	p := newPurchase("tok-rollback")
	require.NoError(t, store.CreatePurchase(ctx, p))

	err := store.Transaction(ctx, func(tx Store) error {
		require.NoError(t, tx.CreateTicket(ctx, &models.Ticket{
			PurchaseID: p.ID, EventID: p.EventID, ShowName: p.ShowName,
			PersonName: "Ana Souza", PersonRole: models.RoleBuyer, Sequence: 1,
			Token: "ticket-1", Status: models.TicketIssued,
		}))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	tickets, err := store.TicketsForPurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestGormStoreTicketsAndCounts(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(newTestDB(t))
	p := newPurchase("tok-tickets")
	require.NoError(t, store.CreatePurchase(ctx, p))

	for i, name := range []string{"Ana Souza", "Bruno Lima"} {
		ticket := &models.Ticket{
			PurchaseID: p.ID, EventID: p.EventID, ShowName: p.ShowName,
			PersonName: name, PersonRole: models.RoleGuest, Sequence: 2 - i,
			Token: name, Status: models.TicketIssued,
		}
		require.NoError(t, store.CreateTicket(ctx, ticket))
		if i == 0 {
			ticket.PNGURL, ticket.PDFURL = "a.png", "a.pdf"
			require.NoError(t, store.SaveTicket(ctx, ticket))
		}
	}

	tickets, err := store.TicketsForPurchase(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "Bruno Lima", tickets[0].PersonName)

	n, err := store.CountFulfilledTickets(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestGormStoreShowsForEvent(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(newTestDB(t))

	event := &models.Event{Name: "Festival", Slug: "festival"}
	require.NoError(t, store.CreateEvent(ctx, event))
	require.NoError(t, store.CreateShow(ctx, &models.Show{EventID: event.ID, Name: "Jazz Night", Slug: "jazz-night", RequiresTicket: true, IsActive: true}))
	require.NoError(t, store.CreateShow(ctx, &models.Show{EventID: event.ID, Name: "Closed", Slug: "closed", RequiresTicket: true, IsActive: false}))

	active, err := store.ShowsForEvent(ctx, event.ID, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Jazz Night", active[0].Name)

	all, err := store.ShowsForEvent(ctx, event.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
