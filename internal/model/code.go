package model

import (
	"fmt"

	"github.com/google/uuid"
)

type CodeStatus string

const (
	CodeStatusInStock  CodeStatus = "IN_STOCK"
	CodeStatusUsed     CodeStatus = "USED"
	CodeStatusDisposed CodeStatus = "DISPOSED"
)

type OwnerType string

const (
	OwnerTypeOrganization OwnerType = "ORGANIZATION"
	OwnerTypePatient      OwnerType = "PATIENT"
)

// Owner is the tagged union of the two custody holders. Exactly one of
// OrganizationID / PatientPhone is meaningful, selected by Type.
type Owner struct {
	Type           OwnerType `json:"type"`
	OrganizationID uuid.UUID `json:"organization_id,omitempty"`
	PatientPhone   string    `json:"patient_phone,omitempty"`
}

func OrgOwner(id uuid.UUID) Owner {
	return Owner{Type: OwnerTypeOrganization, OrganizationID: id}
}

func PatientOwner(phone string) Owner {
	return Owner{Type: OwnerTypePatient, PatientPhone: phone}
}

func (o Owner) Equal(other Owner) bool {
	if o.Type != other.Type {
		return false
	}
	if o.Type == OwnerTypeOrganization {
		return o.OrganizationID == other.OrganizationID
	}
	return o.PatientPhone == other.PatientPhone
}

func (o Owner) String() string {
	if o.Type == OwnerTypePatient {
		return fmt.Sprintf("patient:%s", o.PatientPhone)
	}
	return fmt.Sprintf("org:%s", o.OrganizationID)
}

// VirtualCode is the ledger row for one physical unit. Rows are never
// deleted; DISPOSED is terminal.
type VirtualCode struct {
	Base
	LotID      uuid.UUID  `db:"lot_id" json:"lot_id"`
	Code       string     `db:"code" json:"code"`
	Status     CodeStatus `db:"status" json:"status"`
	OwnerType  OwnerType  `db:"owner_type" json:"-"`
	OwnerOrgID *uuid.UUID `db:"owner_org_id" json:"-"`
	OwnerPhone *string    `db:"owner_phone" json:"-"`
}

// Owner reconstructs the tagged union from the storage columns.
func (c *VirtualCode) Owner() Owner {
	if c.OwnerType == OwnerTypePatient {
		phone := ""
		if c.OwnerPhone != nil {
			phone = *c.OwnerPhone
		}
		return PatientOwner(phone)
	}
	var id uuid.UUID
	if c.OwnerOrgID != nil {
		id = *c.OwnerOrgID
	}
	return OrgOwner(id)
}

// Allocation is one lot's contribution to a satisfied request.
type Allocation struct {
	LotID   uuid.UUID   `json:"lot_id"`
	CodeIDs []uuid.UUID `json:"code_ids"`
}

func AllocationTotal(allocs []Allocation) int {
	total := 0
	for _, a := range allocs {
		total += len(a.CodeIDs)
	}
	return total
}
