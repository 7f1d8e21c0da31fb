package model

import (
	"time"

	"github.com/google/uuid"
)

// InventoryLine is one lot's remaining stock for an owning organization,
// listed in FIFO (manufacture date) order.
type InventoryLine struct {
	ProductID       uuid.UUID `db:"product_id" json:"product_id"`
	ProductName     string    `db:"product_name" json:"product_name"`
	UDIDI           string    `db:"udi_di" json:"udi_di"`
	LotID           uuid.UUID `db:"lot_id" json:"lot_id"`
	LotNumber       string    `db:"lot_number" json:"lot_number"`
	ManufactureDate time.Time `db:"manufacture_date" json:"manufacture_date"`
	ExpiryDate      time.Time `db:"expiry_date" json:"expiry_date"`
	InStock         int       `db:"in_stock" json:"in_stock"`
}
