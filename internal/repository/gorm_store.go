package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/farellandr/showticket/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	}
	return err
}

func take[T any](q *gorm.DB) (*T, error) {
	var v T
	if err := q.Take(&v).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (s *GormStore) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	return translate(s.conn(ctx).Create(purchase).Error)
}

func (s *GormStore) SavePurchase(ctx context.Context, purchase *models.Purchase) error {
	return translate(s.conn(ctx).Save(purchase).Error)
}

func (s *GormStore) PurchaseByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return take[models.Purchase](s.conn(ctx).Where("id = ?", id))
}

func (s *GormStore) PurchaseByToken(ctx context.Context, token string) (*models.Purchase, error) {
	return take[models.Purchase](s.conn(ctx).Where("token = ?", token))
}

func (s *GormStore) LockPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return take[models.Purchase](s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (s *GormStore) LatestPurchaseForBuyer(ctx context.Context, eventID uuid.UUID, showName, taxID string) (*models.Purchase, error) {
	return take[models.Purchase](s.conn(ctx).
		Where("event_id = ? AND show_name = ? AND buyer_tax_id = ?", eventID, showName, taxID).
		Order("created_at DESC"))
}

func (s *GormStore) ListPurchases(ctx context.Context, filter PurchaseFilter) ([]models.Purchase, error) {
	q := s.conn(ctx).Order("created_at DESC")
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Query)); term != "" {
		like := "%" + term + "%"
		q = q.Where(
			"LOWER(buyer_name) LIKE ? OR buyer_tax_id LIKE ? OR LOWER(buyer_email) LIKE ? OR LOWER(show_name) LIKE ? OR token LIKE ?",
			like, like, like, like, like,
		)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var purchases []models.Purchase
	if err := q.Find(&purchases).Error; err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *GormStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return translate(s.conn(ctx).Create(payment).Error)
}

func (s *GormStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	return translate(s.conn(ctx).Save(payment).Error)
}

func (s *GormStore) PaymentsForPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.conn(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (s *GormStore) PendingPaymentsExpiredBefore(ctx context.Context, t time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.conn(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", models.PaymentPending, t).
		Order("expires_at ASC").
		Find(&payments).Error
	return payments, err
}

func (s *GormStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	return translate(s.conn(ctx).Create(ticket).Error)
}

func (s *GormStore) SaveTicket(ctx context.Context, ticket *models.Ticket) error {
	return translate(s.conn(ctx).Save(ticket).Error)
}

func (s *GormStore) TicketsForPurchase(ctx context.Context, purchaseID uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.conn(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("sequence ASC").
		Find(&tickets).Error
	return tickets, err
}

func (s *GormStore) TicketByToken(ctx context.Context, token string) (*models.Ticket, error) {
	return take[models.Ticket](s.conn(ctx).Where("token = ?", token))
}

func (s *GormStore) CountFulfilledTickets(ctx context.Context, purchaseID uuid.UUID) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Ticket{}).
		Where("purchase_id = ? AND png_url <> '' AND pdf_url <> ''", purchaseID).
		Count(&n).Error
	return n, err
}

func (s *GormStore) CreateEvent(ctx context.Context, event *models.Event) error {
	return translate(s.conn(ctx).Create(event).Error)
}

func (s *GormStore) EventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return take[models.Event](s.conn(ctx).Where("slug = ?", slug))
}

func (s *GormStore) CreateShow(ctx context.Context, show *models.Show) error {
	return translate(s.conn(ctx).Create(show).Error)
}

func (s *GormStore) SaveShow(ctx context.Context, show *models.Show) error {
	return translate(s.conn(ctx).Save(show).Error)
}

func (s *GormStore) ShowByID(ctx context.Context, id uuid.UUID) (*models.Show, error) {
	return take[models.Show](s.conn(ctx).Where("id = ?", id))
}

func (s *GormStore) ShowByName(ctx context.Context, eventID uuid.UUID, name string) (*models.Show, error) {
	return take[models.Show](s.conn(ctx).Where("event_id = ? AND name = ?", eventID, name))
}

func (s *GormStore) ShowsForEvent(ctx context.Context, eventID uuid.UUID, activeOnly bool) ([]models.Show, error) {
	q := s.conn(ctx).Where("event_id = ?", eventID).Order("created_at DESC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var shows []models.Show
	err := q.Find(&shows).Error
	return shows, err
}

func (s *GormStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return take[models.User](s.conn(ctx).Preload("Role").Where("email = ?", email))
}

func (s *GormStore) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return s.conn(ctx).Create(event).Error
}

func (s *GormStore) SaveWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return s.conn(ctx).Save(event).Error
}
