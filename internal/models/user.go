package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a back-office operator. Buyers never authenticate.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Name      string    `gorm:"size:160"`
	Email     string    `gorm:"unique;not null"`
	Password  string    `gorm:"not null"`
	RoleID    uuid.UUID `gorm:"type:uuid"`
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return
}
