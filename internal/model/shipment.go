package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ShipmentBatch struct {
	Base
	FromOrganizationID uuid.UUID  `db:"from_organization_id" json:"from_organization_id"`
	ToOrganizationID   uuid.UUID  `db:"to_organization_id" json:"to_organization_id"`
	ProductID          uuid.UUID  `db:"product_id" json:"product_id"`
	Quantity           int        `db:"quantity" json:"quantity"`
	ShipmentDate       time.Time  `db:"shipment_date" json:"shipment_date"`
	IsRecalled         bool       `db:"is_recalled" json:"is_recalled"`
	RecallReason       *string    `db:"recall_reason" json:"recall_reason,omitempty"`
	RecallDate         *time.Time `db:"recall_date" json:"recall_date,omitempty"`
	IsReturned         bool       `db:"is_returned" json:"is_returned"`
	ReturnDate         *time.Time `db:"return_date" json:"return_date,omitempty"`
}

// ShipmentDetail records exactly which codes of one lot moved in a batch.
type ShipmentDetail struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	ShipmentID uuid.UUID      `db:"shipment_id" json:"shipment_id"`
	LotID      uuid.UUID      `db:"lot_id" json:"lot_id"`
	CodeIDs    pq.StringArray `db:"code_ids" json:"code_ids"`
	Quantity   int            `db:"quantity" json:"quantity"`
}

// CodeUUIDs converts the stored id strings back to uuids.
func (d *ShipmentDetail) CodeUUIDs() ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(d.CodeIDs))
	for _, raw := range d.CodeIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type CreateShipmentRequest struct {
	ToOrganizationID uuid.UUID `json:"to_organization_id" binding:"required"`
	ProductID        uuid.UUID `json:"product_id" binding:"required"`
	Quantity         int       `json:"quantity" binding:"required,gt=0"`
	IdempotencyKey   string    `json:"idempotency_key" binding:"required,max=100"`
}

type RecallShipmentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

type ReturnShipmentRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

type ShipmentFilters struct {
	OrganizationID uuid.UUID
	ProductID      uuid.UUID
	StartDate      time.Time
	EndDate        time.Time
	IncludeRecalls bool
}
