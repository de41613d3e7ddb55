package models

import (
	"time"

	"github.com/google/uuid"
)

// Base is embedded by every persisted document. IDs are UUID strings so they
// can travel through signed credentials and cache keys without conversion.
type Base struct {
	ID        string    `json:"id"       bson:"_id"`
	CreatedAt time.Time `json:"created"  bson:"created_at"`
	UpdatedAt time.Time `json:"modified" bson:"updated_at"`
}

// NewBase fills in a fresh ID and timestamps.
func NewBase() Base {
	now := time.Now()
	return Base{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now}
}
