package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Payment struct {
	ID                   uuid.UUID     `gorm:"type:uuid;primary_key"`
	PurchaseID           uuid.UUID     `gorm:"type:uuid;not null;index"`
	Provider             string        `gorm:"size:40;not null"`
	AmountCents          int64         `gorm:"not null"`
	Currency             string        `gorm:"size:10;not null;default:'BRL'"`
	Status               PaymentStatus `gorm:"size:20;not null;default:'pending';index"`
	ExternalID           string        `gorm:"size:120;index"`
	CheckoutURL          string        `gorm:"size:600"`
	QRText               string        `gorm:"type:text"`
	ExpiresAt            *time.Time
	PaidAt               *time.Time
	BundlePDFURL         string `gorm:"size:500"`
	BundleZIPURL         string `gorm:"size:500"`
	FulfilledAt          *time.Time
	FulfillmentLastError string `gorm:"type:text"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (payment *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return
}

// IsSettled is the single answer to "has money been collected by this attempt".
func IsSettled(payment *Payment) bool {
	return payment != nil && payment.Status == PaymentPaid
}

func (payment *Payment) IsExpired(now time.Time) bool {
	return payment.Status == PaymentPending && payment.ExpiresAt != nil && now.After(*payment.ExpiresAt)
}

// MarkPaid accepts a pending attempt, replays on a paid one, and a late
// confirmation of an attempt that was failed by the expiry check.
func (payment *Payment) MarkPaid(now time.Time) {
	if payment.Status == PaymentPaid {
		return
	}
	payment.Status = PaymentPaid
	payment.PaidAt = &now
}

func (payment *Payment) Fail() error {
	switch payment.Status {
	case PaymentFailed:
		return nil
	case PaymentPaid:
		return invalidTransition(payment.Status, PaymentFailed)
	}
	payment.Status = PaymentFailed
	return nil
}
