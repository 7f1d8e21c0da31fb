package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/trace-api/internal/model"
)

func (r *codeRepository) BulkCreateTx(ctx context.Context, tx *sqlx.Tx, codes []*model.VirtualCode) error {
	if len(codes) == 0 {
		return nil
	}

	query := `
		INSERT INTO virtual_codes (
			id, lot_id, code, status, owner_type, owner_org_id, owner_phone,
			created_at, updated_at
		) VALUES (:id, :lot_id, :code, :status, :owner_type, :owner_org_id,
				  :owner_phone, :created_at, :updated_at)
	`
	now := time.Now()
	for _, c := range codes {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.CreatedAt = now
		c.UpdatedAt = now
	}

	if _, err := tx.NamedExecContext(ctx, query, codes); err != nil {
		return fmt.Errorf("failed to bulk create codes: %w", err)
	}
	return nil
}

func (r *codeRepository) Get(ctx context.Context, id uuid.UUID) (*model.VirtualCode, error) {
	query := `
		SELECT id, lot_id, code, status, owner_type, owner_org_id,
			   owner_phone, created_at, updated_at
		FROM virtual_codes
		WHERE id = $1
	`
	var code model.VirtualCode
	if err := r.db.GetContext(ctx, &code, query, id); err != nil {
		return nil, wrapNotFound(err, "virtual code")
	}
	return &code, nil
}

func (r *codeRepository) GetByCode(ctx context.Context, codeStr string) (*model.VirtualCode, error) {
	query := `
		SELECT id, lot_id, code, status, owner_type, owner_org_id,
			   owner_phone, created_at, updated_at
		FROM virtual_codes
		WHERE code = $1
	`
	var code model.VirtualCode
	if err := r.db.GetContext(ctx, &code, query, codeStr); err != nil {
		return nil, wrapNotFound(err, "virtual code")
	}
	return &code, nil
}

// ListLotStockTx returns the organization's lots of a product that still
// hold in-stock codes, FIFO ordered: manufacture date ascending, lot
// creation order breaking ties.
func (r *codeRepository) ListLotStockTx(ctx context.Context, tx *sqlx.Tx, orgID, productID uuid.UUID) ([]*model.LotStock, error) {
	query := `
		SELECT l.id, l.product_id, l.lot_number, l.manufacture_date,
			   l.expiry_date, l.quantity, l.created_at, l.updated_at,
			   COUNT(vc.id) AS in_stock
		FROM lots l
		JOIN virtual_codes vc ON vc.lot_id = l.id
		WHERE l.product_id = $1
		  AND vc.status = 'IN_STOCK'
		  AND vc.owner_type = 'ORGANIZATION'
		  AND vc.owner_org_id = $2
		GROUP BY l.id
		ORDER BY l.manufacture_date ASC, l.created_at ASC
	`
	var lots []*model.LotStock
	if err := tx.SelectContext(ctx, &lots, query, productID, orgID); err != nil {
		return nil, fmt.Errorf("failed to list lot stock: %w", err)
	}
	return lots, nil
}

// LockAvailableTx selects up to limit in-stock codes of one lot owned by
// the organization and locks them for the rest of the transaction. Under
// read committed, a row whose status or owner changed after the lock wait
// is re-checked and dropped from the result, so two racing allocations can
// never both take the same code.
func (r *codeRepository) LockAvailableTx(ctx context.Context, tx *sqlx.Tx, orgID, lotID uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM virtual_codes
		WHERE lot_id = $1
		  AND status = 'IN_STOCK'
		  AND owner_type = 'ORGANIZATION'
		  AND owner_org_id = $2
		ORDER BY code ASC
		LIMIT $3
		FOR UPDATE
	`
	var ids []uuid.UUID
	if err := tx.SelectContext(ctx, &ids, query, lotID, orgID, limit); err != nil {
		return nil, fmt.Errorf("failed to lock available codes: %w", err)
	}
	return ids, nil
}

// LockByIDsTx locks the given codes in a stable order to avoid deadlocks
// between concurrent explicit-code operations.
func (r *codeRepository) LockByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID) ([]*model.VirtualCode, error) {
	query := `
		SELECT id, lot_id, code, status, owner_type, owner_org_id,
			   owner_phone, created_at, updated_at
		FROM virtual_codes
		WHERE id = ANY($1)
		ORDER BY id ASC
		FOR UPDATE
	`
	var codes []*model.VirtualCode
	if err := tx.SelectContext(ctx, &codes, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to lock codes: %w", err)
	}
	return codes, nil
}

// TransferTx reassigns status and owner for the given codes. Callers must
// hold the row locks already.
func (r *codeRepository) TransferTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID, status model.CodeStatus, owner model.Owner) error {
	query := `
		UPDATE virtual_codes
		SET status = $1, owner_type = $2, owner_org_id = $3, owner_phone = $4,
			updated_at = $5
		WHERE id = ANY($6)
	`
	var orgID *uuid.UUID
	var phone *string
	if owner.Type == model.OwnerTypeOrganization {
		id := owner.OrganizationID
		orgID = &id
	} else {
		p := owner.PatientPhone
		phone = &p
	}

	result, err := tx.ExecContext(ctx, query, status, owner.Type, orgID, phone, time.Now(), pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to transfer codes: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows != int64(len(ids)) {
		return fmt.Errorf("transfer affected %d of %d codes", rows, len(ids))
	}
	return nil
}

// CountByLotStatus returns the status partition counts for a lot. For any
// lot the counts always sum to lot.quantity.
func (r *codeRepository) CountByLotStatus(ctx context.Context, lotID uuid.UUID) (map[model.CodeStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM virtual_codes
		WHERE lot_id = $1
		GROUP BY status
	`
	rows := []struct {
		Status model.CodeStatus `db:"status"`
		Count  int              `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, lotID); err != nil {
		return nil, fmt.Errorf("failed to count codes by status: %w", err)
	}

	counts := make(map[model.CodeStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
