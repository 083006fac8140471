package model

import (
	"time"

	"github.com/google/uuid"
)

// Product is a row in the `products` table. The catalog side of the backend
// is a thin read layer; pricing is stored in minor units to avoid floats.
type Product struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Sku        string     `json:"sku"`
	PriceCents int64      `json:"price_cents"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	IsDeleted  bool       `json:"-"`
}
