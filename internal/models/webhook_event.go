package models

import "time"

// WebhookEvent keeps every provider notification as received, with the outcome
// of processing it, so operators can diagnose retries and unmatched payloads.
type WebhookEvent struct {
	ID              uint   `gorm:"primaryKey"`
	Provider        string `gorm:"size:40;not null;index"`
	ExternalID      string `gorm:"size:191;index"`
	Reference       string `gorm:"size:191;index"`
	Status          string `gorm:"size:60"`
	ContentType     string `gorm:"size:120"`
	Payload         string `gorm:"type:text;not null"`
	Outcome         string `gorm:"size:40"`
	ProcessedAt     *time.Time
	ProcessingError string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"index"`
}
