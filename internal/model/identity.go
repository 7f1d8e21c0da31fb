package model

import "github.com/google/uuid"

// Actor is the acting organization's identity for a ledger call, supplied
// by the identity collaborator and passed explicitly into every service
// method. The ledger never reads it from ambient state.
type Actor struct {
	OrganizationID uuid.UUID
	Type           OrganizationType
}
