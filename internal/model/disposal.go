package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type DisposalReason string

const (
	DisposalExpired DisposalReason = "EXPIRED"
	DisposalDamaged DisposalReason = "DAMAGED"
	DisposalQuality DisposalReason = "QUALITY"
	DisposalOther   DisposalReason = "OTHER"
)

// DisposalRecord is terminal. There is no reversal path for disposals.
type DisposalRecord struct {
	Base
	OrganizationID uuid.UUID      `db:"organization_id" json:"organization_id"`
	CodeIDs        pq.StringArray `db:"code_ids" json:"code_ids"`
	Reason         DisposalReason `db:"reason" json:"reason"`
	DisposalDate   time.Time      `db:"disposal_date" json:"disposal_date"`
}

type CreateDisposalRequest struct {
	CodeIDs        []uuid.UUID    `json:"code_ids" binding:"required,min=1"`
	Reason         DisposalReason `json:"reason" binding:"required,oneof=EXPIRED DAMAGED QUALITY OTHER"`
	IdempotencyKey string         `json:"idempotency_key" binding:"required,max=100"`
}
