package model

import (
	"time"

	"github.com/google/uuid"
)

type ActionType string

const (
	ActionProduced ActionType = "PRODUCED"
	ActionShipped  ActionType = "SHIPPED"
	ActionReceived ActionType = "RECEIVED"
	ActionTreated  ActionType = "TREATED"
	ActionRecalled ActionType = "RECALLED"
	ActionReturned ActionType = "RETURNED"
	ActionDisposed ActionType = "DISPOSED"
)

type RefType string

const (
	RefShipment  RefType = "SHIPMENT"
	RefTreatment RefType = "TREATMENT"
	RefDisposal  RefType = "DISPOSAL"
	RefLot       RefType = "LOT"
)

// HistoryEvent is one append-only ledger row per code per transition. The
// from_* columns snapshot the pre-event (status, owner) pair; recall
// restores from this snapshot, never from recomputed state.
type HistoryEvent struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	VirtualCodeID uuid.UUID  `db:"virtual_code_id" json:"virtual_code_id"`
	ActionType    ActionType `db:"action_type" json:"action_type"`
	RefType       RefType    `db:"ref_type" json:"ref_type"`
	RefID         uuid.UUID  `db:"ref_id" json:"ref_id"`
	FromStatus    CodeStatus `db:"from_status" json:"from_status"`
	FromOwnerType OwnerType  `db:"from_owner_type" json:"-"`
	FromOwnerOrg  *uuid.UUID `db:"from_owner_org_id" json:"-"`
	FromOwnerTel  *string    `db:"from_owner_phone" json:"-"`
	ToStatus      CodeStatus `db:"to_status" json:"to_status"`
	ToOwnerType   OwnerType  `db:"to_owner_type" json:"-"`
	ToOwnerOrg    *uuid.UUID `db:"to_owner_org_id" json:"-"`
	ToOwnerTel    *string    `db:"to_owner_phone" json:"-"`
	IsRecall      bool       `db:"is_recall" json:"is_recall"`
	RecallReason  *string    `db:"recall_reason" json:"recall_reason,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

func ownerFromColumns(t OwnerType, org *uuid.UUID, phone *string) Owner {
	if t == OwnerTypePatient {
		p := ""
		if phone != nil {
			p = *phone
		}
		return PatientOwner(p)
	}
	var id uuid.UUID
	if org != nil {
		id = *org
	}
	return OrgOwner(id)
}

func (e *HistoryEvent) FromOwner() Owner {
	return ownerFromColumns(e.FromOwnerType, e.FromOwnerOrg, e.FromOwnerTel)
}

func (e *HistoryEvent) ToOwner() Owner {
	return ownerFromColumns(e.ToOwnerType, e.ToOwnerOrg, e.ToOwnerTel)
}

// SetFromOwner fills the from_* storage columns.
func (e *HistoryEvent) SetFromOwner(o Owner) {
	e.FromOwnerType = o.Type
	e.FromOwnerOrg, e.FromOwnerTel = ownerColumns(o)
}

// SetToOwner fills the to_* storage columns.
func (e *HistoryEvent) SetToOwner(o Owner) {
	e.ToOwnerType = o.Type
	e.ToOwnerOrg, e.ToOwnerTel = ownerColumns(o)
}

func ownerColumns(o Owner) (*uuid.UUID, *string) {
	if o.Type == OwnerTypePatient {
		phone := o.PatientPhone
		return nil, &phone
	}
	id := o.OrganizationID
	return &id, nil
}

// EventSummary is one row per operation (shipment/treatment/disposal) with
// its lot and quantity breakdown joined in.
type EventSummary struct {
	RefType       RefType    `db:"ref_type" json:"ref_type"`
	RefID         uuid.UUID  `db:"ref_id" json:"ref_id"`
	ActionType    ActionType `db:"action_type" json:"action_type"`
	FromOwnerName *string    `db:"from_owner_name" json:"from_owner_name,omitempty"`
	ToOwnerName   *string    `db:"to_owner_name" json:"to_owner_name,omitempty"`
	Quantity      int        `db:"quantity" json:"quantity"`
	IsRecall      bool       `db:"is_recall" json:"is_recall"`
	OccurredAt    time.Time  `db:"occurred_at" json:"occurred_at"`
	Lots          []LotLine  `db:"-" json:"lots,omitempty"`
}

// LotLine is one lot's share inside an event summary.
type LotLine struct {
	LotID     uuid.UUID `db:"lot_id" json:"lot_id"`
	LotNumber string    `db:"lot_number" json:"lot_number"`
	Quantity  int       `db:"quantity" json:"quantity"`
}

// CodeTrace is the denormalized transfer chain entry for one code.
type CodeTrace struct {
	HistoryEvent
	Code        string  `db:"code" json:"code"`
	LotNumber   string  `db:"lot_number" json:"lot_number"`
	ProductName string  `db:"product_name" json:"product_name"`
	FromName    *string `db:"from_name" json:"from_name,omitempty"`
	ToName      *string `db:"to_name" json:"to_name,omitempty"`
}

// HistoryFilters narrows history queries. Zero values mean "no filter".
type HistoryFilters struct {
	OrganizationID uuid.UUID
	ProductID      uuid.UUID
	LotID          uuid.UUID
	ActionType     ActionType
	StartDate      time.Time
	EndDate        time.Time
	IncludeRecalls bool
}
