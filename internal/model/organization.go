package model

type OrganizationType string

const (
	OrgTypeManufacturer OrganizationType = "MANUFACTURER"
	OrgTypeDistributor  OrganizationType = "DISTRIBUTOR"
	OrgTypeHospital     OrganizationType = "HOSPITAL"
	OrgTypeAdmin        OrganizationType = "ADMIN"
)

type OrganizationStatus string

const (
	OrgStatusActive          OrganizationStatus = "ACTIVE"
	OrgStatusPendingApproval OrganizationStatus = "PENDING_APPROVAL"
	OrgStatusInactive        OrganizationStatus = "INACTIVE"
)

// Organization status is written by the approval workflow collaborator;
// the ledger only ever reads it.
type Organization struct {
	Base
	Name         string             `db:"name" json:"name"`
	Type         OrganizationType   `db:"type" json:"type"`
	Status       OrganizationStatus `db:"status" json:"status"`
	ContactEmail string             `db:"contact_email" json:"contact_email"`
	ContactPhone string             `db:"contact_phone" json:"contact_phone,omitempty"`
}

type RegisterOrganizationRequest struct {
	Name         string           `json:"name" binding:"required,max=200"`
	Type         OrganizationType `json:"type" binding:"required,oneof=MANUFACTURER DISTRIBUTOR HOSPITAL"`
	ContactEmail string           `json:"contact_email" binding:"required,email"`
	ContactPhone string           `json:"contact_phone" binding:"omitempty,phone"`
}
