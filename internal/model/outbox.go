package model

import (
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusRetry     OutboxStatus = "retry"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxEvent rows are written in the same transaction as the ledger
// operation they describe, then published by the worker.
type OutboxEvent struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	EventType    string     `db:"event_type" json:"event_type"`
	Payload      []byte     `db:"payload" json:"payload"`
	Status       string     `db:"status" json:"status"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int        `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Outbox event types
const (
	EventTreatmentCreated = "treatment.created"
	EventRecallExecuted   = "recall.executed"
)

// TreatmentCreatedPayload notifies the patient-messaging collaborator of a
// new treatment.
type TreatmentCreatedPayload struct {
	TreatmentID  uuid.UUID `json:"treatment_id"`
	HospitalID   uuid.UUID `json:"hospital_id"`
	PatientPhone string    `json:"patient_phone"`
	ProductID    uuid.UUID `json:"product_id"`
	Quantity     int       `json:"quantity"`
	TreatedAt    time.Time `json:"treated_at"`
}

// RecallExecutedPayload describes a completed recall. NotifyOrgID is the
// organization holding the recalled goods, the one the notifier contacts.
// PatientPhone is only set for treatment recalls.
type RecallExecutedPayload struct {
	RefType      RefType   `json:"ref_type"`
	RefID        uuid.UUID `json:"ref_id"`
	Reason       string    `json:"reason"`
	NotifyOrgID  uuid.UUID `json:"notify_org_id"`
	PatientPhone string    `json:"patient_phone,omitempty"`
	RecalledBy   uuid.UUID `json:"recalled_by"`
	RecalledAt   time.Time `json:"recalled_at"`
}
