package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Event struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Name      string    `gorm:"size:160;not null"`
	Slug      string    `gorm:"size:160;not null;uniqueIndex"`
	DateText  string    `gorm:"size:120"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (event *Event) BeforeCreate(tx *gorm.DB) (err error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return
}

// Show is one night of an event. A nil PriceCents on a ticketed show means the
// price is not configured yet and orders become reservations.
type Show struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	EventID        uuid.UUID `gorm:"type:uuid;not null;index"`
	Name           string    `gorm:"size:200;not null"`
	Slug           string    `gorm:"size:200;not null;uniqueIndex"`
	DateText       string    `gorm:"size:120"`
	PriceCents     *int64
	RequiresTicket bool `gorm:"not null"`
	IsActive       bool `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (show *Show) BeforeCreate(tx *gorm.DB) (err error) {
	if show.ID == uuid.Nil {
		show.ID = uuid.New()
	}
	return
}

func (show *Show) InitialStatus() PurchaseStatus {
	switch {
	case !show.RequiresTicket:
		return PurchaseReservationPending
	case show.PriceCents == nil:
		return PurchaseReservationPendingPrice
	default:
		return PurchasePendingPayment
	}
}
