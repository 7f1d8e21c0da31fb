package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/trace-api/internal/model"
)

// TxManager scopes a unit of work to one database transaction. Every
// allocate+transfer and every recall+revert runs inside a single WithTx
// call; a returned error rolls the whole unit back.
type TxManager interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// All repository interfaces in one file
type (
	OrganizationRepository interface {
		Create(ctx context.Context, org *model.Organization) error
		Get(ctx context.Context, id uuid.UUID) (*model.Organization, error)
		List(ctx context.Context) ([]*model.Organization, error)
	}

	ProductRepository interface {
		Create(ctx context.Context, product *model.Product) error
		Get(ctx context.Context, id uuid.UUID) (*model.Product, error)
		ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*model.Product, error)
		Deactivate(ctx context.Context, id uuid.UUID, reason model.DeactivationReason) error
	}

	LotRepository interface {
		CreateTx(ctx context.Context, tx *sqlx.Tx, lot *model.Lot) error
		Get(ctx context.Context, id uuid.UUID) (*model.Lot, error)
		ListByProduct(ctx context.Context, productID uuid.UUID) ([]*model.Lot, error)
		ListInventory(ctx context.Context, orgID uuid.UUID) ([]*model.InventoryLine, error)
		ListExpiredStock(ctx context.Context, orgID uuid.UUID, asOf time.Time) ([]*model.InventoryLine, error)
	}

	// CodeRepository owns the virtual code rows. Lock methods take the
	// transaction the surrounding unit of work opened and acquire row
	// locks (SELECT ... FOR UPDATE) held until commit.
	CodeRepository interface {
		BulkCreateTx(ctx context.Context, tx *sqlx.Tx, codes []*model.VirtualCode) error
		Get(ctx context.Context, id uuid.UUID) (*model.VirtualCode, error)
		GetByCode(ctx context.Context, code string) (*model.VirtualCode, error)
		ListLotStockTx(ctx context.Context, tx *sqlx.Tx, orgID, productID uuid.UUID) ([]*model.LotStock, error)
		LockAvailableTx(ctx context.Context, tx *sqlx.Tx, orgID, lotID uuid.UUID, limit int) ([]uuid.UUID, error)
		LockByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID) ([]*model.VirtualCode, error)
		TransferTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID, status model.CodeStatus, owner model.Owner) error
		CountByLotStatus(ctx context.Context, lotID uuid.UUID) (map[model.CodeStatus]int, error)
	}

	ShipmentRepository interface {
		CreateTx(ctx context.Context, tx *sqlx.Tx, batch *model.ShipmentBatch, details []*model.ShipmentDetail) error
		Get(ctx context.Context, id uuid.UUID) (*model.ShipmentBatch, error)
		Details(ctx context.Context, shipmentID uuid.UUID) ([]*model.ShipmentDetail, error)
		GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.ShipmentBatch, error)
		MarkRecalledTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reason string, at time.Time) error
		MarkReturnedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, at time.Time) error
		List(ctx context.Context, filters *model.ShipmentFilters, p model.Pagination) ([]*model.ShipmentBatch, int, error)
	}

	TreatmentRepository interface {
		CreateTx(ctx context.Context, tx *sqlx.Tx, record *model.TreatmentRecord, items []*model.TreatmentItem) error
		Get(ctx context.Context, id uuid.UUID) (*model.TreatmentRecord, error)
		Items(ctx context.Context, treatmentID uuid.UUID) ([]*model.TreatmentItem, error)
		GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.TreatmentRecord, error)
		MarkRecalledTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reason string, at time.Time) error
		List(ctx context.Context, hospitalID uuid.UUID, p model.Pagination) ([]*model.TreatmentRecord, int, error)
	}

	DisposalRepository interface {
		CreateTx(ctx context.Context, tx *sqlx.Tx, record *model.DisposalRecord) error
		Get(ctx context.Context, id uuid.UUID) (*model.DisposalRecord, error)
		List(ctx context.Context, orgID uuid.UUID, p model.Pagination) ([]*model.DisposalRecord, int, error)
	}

	// HistoryRepository is append-only. Nothing updates or deletes a row;
	// recall appends compensating rows.
	HistoryRepository interface {
		AppendTx(ctx context.Context, tx *sqlx.Tx, events []*model.HistoryEvent) error
		ListByCode(ctx context.Context, codeID uuid.UUID) ([]*model.CodeTrace, error)
		ListByRefTx(ctx context.Context, tx *sqlx.Tx, refType model.RefType, refID uuid.UUID, action model.ActionType) ([]*model.HistoryEvent, error)
		ListSummaries(ctx context.Context, filters *model.HistoryFilters, p model.Pagination) ([]*model.EventSummary, int, error)
		ListSummariesCursor(ctx context.Context, filters *model.HistoryFilters, cursor string, limit int) ([]*model.EventSummary, string, error)
	}

	OutboxRepository interface {
		CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	IdempotencyRepository interface {
		Get(ctx context.Context, orgID uuid.UUID, key string) (*model.IdempotencyKey, error)
		ReserveTx(ctx context.Context, tx *sqlx.Tx, record *model.IdempotencyKey) error
	}
)
