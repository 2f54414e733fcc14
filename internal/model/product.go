package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog product.
type Product struct {
	ID          int64
	Name        string
	Image       string
	Price       decimal.Decimal
	Description string
	CreatedAt   time.Time
}
