package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Purchase struct {
	ID                     uuid.UUID      `gorm:"type:uuid;primary_key"`
	Token                  string         `gorm:"size:80;not null;uniqueIndex"`
	EventID                uuid.UUID      `gorm:"type:uuid;not null;index:idx_purchases_buyer,priority:1"`
	ShowName               string         `gorm:"size:180;not null;index:idx_purchases_buyer,priority:2"`
	BuyerName              string         `gorm:"size:160;not null"`
	BuyerTaxID             string         `gorm:"size:14;index:idx_purchases_buyer,priority:3"`
	BuyerEmail             string         `gorm:"size:200"`
	BuyerPhone             string         `gorm:"size:40"`
	GuestsText             string         `gorm:"type:text"`
	Quantity               int            `gorm:"not null;default:1"`
	UnitPriceCents         int64          `gorm:"not null;default:0"`
	PartyHash              string         `gorm:"size:64"`
	Status                 PurchaseStatus `gorm:"size:30;not null;index"`
	CancelReason           string         `gorm:"type:text"`
	ReservationConfirmedAt *time.Time
	NotifiedAt             *time.Time
	NotificationLastError  string `gorm:"type:text"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (purchase *Purchase) BeforeCreate(tx *gorm.DB) (err error) {
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	return
}

func (purchase *Purchase) TotalCents() int64 {
	return purchase.UnitPriceCents * int64(purchase.Quantity)
}

func (purchase *Purchase) transition(next PurchaseStatus) error {
	if !purchase.Status.CanTransitionTo(next) {
		return invalidTransition(purchase.Status, next)
	}
	purchase.Status = next
	return nil
}

// MarkPaid is idempotent: a paid purchase stays paid without error.
func (purchase *Purchase) MarkPaid() error {
	if purchase.Status == PurchasePaid {
		return nil
	}
	return purchase.transition(PurchasePaid)
}

func (purchase *Purchase) Fail() error {
	if purchase.Status == PurchaseFailed {
		return nil
	}
	return purchase.transition(PurchaseFailed)
}

func (purchase *Purchase) ConfirmReservation(now time.Time) error {
	if purchase.Status == PurchaseReserved {
		return ErrAlreadyConfirmed
	}
	if err := purchase.transition(PurchaseReserved); err != nil {
		return err
	}
	purchase.ReservationConfirmedAt = &now
	return nil
}

func (purchase *Purchase) Cancel(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if err := purchase.transition(PurchaseCancelled); err != nil {
		return err
	}
	purchase.CancelReason = reason
	return nil
}
