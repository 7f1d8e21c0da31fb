package model

import (
	"time"

	"github.com/google/uuid"
)

// Lot is a manufactured batch. Immutable once created; the virtual codes
// it produced partition across statuses but always sum to Quantity.
type Lot struct {
	Base
	ProductID       uuid.UUID `db:"product_id" json:"product_id"`
	LotNumber       string    `db:"lot_number" json:"lot_number"`
	ManufactureDate time.Time `db:"manufacture_date" json:"manufacture_date"`
	ExpiryDate      time.Time `db:"expiry_date" json:"expiry_date"`
	Quantity        int       `db:"quantity" json:"quantity"`
}

// LotStock is a lot joined with its remaining in-stock count for one owner.
type LotStock struct {
	Lot
	InStock int `db:"in_stock" json:"in_stock"`
}

type CreateLotRequest struct {
	ProductID       uuid.UUID `json:"product_id" binding:"required"`
	LotNumber       string    `json:"lot_number" binding:"required,max=100"`
	ManufactureDate time.Time `json:"manufacture_date" binding:"required"`
	ExpiryDate      time.Time `json:"expiry_date" binding:"required,gtfield=ManufactureDate"`
	Quantity        int       `json:"quantity" binding:"required,gt=0,lte=100000"`
	IdempotencyKey  string    `json:"idempotency_key" binding:"required,max=100"`
}
