package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Ticket struct {
	ID         uuid.UUID    `gorm:"type:uuid;primary_key"`
	PurchaseID uuid.UUID    `gorm:"type:uuid;not null;index"`
	EventID    uuid.UUID    `gorm:"type:uuid;not null"`
	ShowName   string       `gorm:"size:180;not null"`
	PersonName string       `gorm:"size:160;not null"`
	PersonRole PersonRole   `gorm:"size:20;not null;default:'guest'"`
	Sequence   int          `gorm:"not null"`
	Token      string       `gorm:"size:80;not null;uniqueIndex"`
	Status     TicketStatus `gorm:"size:20;not null;default:'issued'"`
	IssuedAt   time.Time
	PNGURL     string `gorm:"size:500"`
	PDFURL     string `gorm:"size:500"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ticket *Ticket) BeforeCreate(tx *gorm.DB) (err error) {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	return
}

func (ticket *Ticket) HasArtifacts() bool {
	return ticket.PNGURL != "" && ticket.PDFURL != ""
}
