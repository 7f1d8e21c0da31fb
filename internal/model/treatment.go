package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type TreatmentRecord struct {
	Base
	HospitalID    uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	PatientPhone  string     `db:"patient_phone" json:"patient_phone"`
	TreatmentDate time.Time  `db:"treatment_date" json:"treatment_date"`
	IsRecalled    bool       `db:"is_recalled" json:"is_recalled"`
	RecallReason  *string    `db:"recall_reason" json:"recall_reason,omitempty"`
	RecallDate    *time.Time `db:"recall_date" json:"recall_date,omitempty"`

	// Derived on read, never stored.
	IsRecallable bool `db:"-" json:"is_recallable"`
}

// Recallable reports whether the record is inside the recall window.
func (t *TreatmentRecord) Recallable(now time.Time, window time.Duration) bool {
	return !t.IsRecalled && now.Sub(t.TreatmentDate) <= window
}

type TreatmentItem struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	TreatmentID uuid.UUID      `db:"treatment_id" json:"treatment_id"`
	ProductID   uuid.UUID      `db:"product_id" json:"product_id"`
	CodeIDs     pq.StringArray `db:"code_ids" json:"code_ids"`
	Quantity    int            `db:"quantity" json:"quantity"`
}

func (i *TreatmentItem) CodeUUIDs() ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(i.CodeIDs))
	for _, raw := range i.CodeIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type CreateTreatmentRequest struct {
	PatientPhone   string    `json:"patient_phone" binding:"required,phone"`
	ProductID      uuid.UUID `json:"product_id" binding:"required"`
	Quantity       int       `json:"quantity" binding:"required,gt=0"`
	IdempotencyKey string    `json:"idempotency_key" binding:"required,max=100"`
}

type RecallTreatmentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}
