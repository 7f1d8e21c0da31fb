package model

import (
	"github.com/google/uuid"
)

type DeactivationReason string

const (
	DeactivationSafetyIssue  DeactivationReason = "SAFETY_ISSUE"
	DeactivationQualityIssue DeactivationReason = "QUALITY_ISSUE"
	DeactivationDiscontinued DeactivationReason = "DISCONTINUED"
	DeactivationOther        DeactivationReason = "OTHER"
)

// Product identifies a device model by its UDI-DI. Deactivation stops new
// lots but never touches historical allocations.
type Product struct {
	Base
	OrganizationID     uuid.UUID           `db:"organization_id" json:"organization_id"`
	UDIDI              string              `db:"udi_di" json:"udi_di"`
	ModelName          string              `db:"model_name" json:"model_name"`
	IsActive           bool                `db:"is_active" json:"is_active"`
	DeactivationReason *DeactivationReason `db:"deactivation_reason" json:"deactivation_reason,omitempty"`
}

type CreateProductRequest struct {
	UDIDI     string `json:"udi_di" binding:"required,max=100"`
	ModelName string `json:"model_name" binding:"required,max=200"`
}

type DeactivateProductRequest struct {
	Reason DeactivationReason `json:"reason" binding:"required,oneof=SAFETY_ISSUE QUALITY_ISSUE DISCONTINUED OTHER"`
}
