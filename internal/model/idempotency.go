package model

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyKey pins a caller-supplied token to the record a generating
// operation produced, so re-execution returns the original result instead
// of double-creating codes or batches.
type IdempotencyKey struct {
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	Key            string    `db:"key" json:"key"`
	Operation      string    `db:"operation" json:"operation"`
	RefID          uuid.UUID `db:"ref_id" json:"ref_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Idempotent operation names
const (
	OpProduce = "PRODUCE"
	OpShip    = "SHIP"
	OpTreat   = "TREAT"
	OpDispose = "DISPOSE"
)
