package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/trace-api/internal/model"
)

func (r *lotRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, lot *model.Lot) error {
	query := `
		INSERT INTO lots (
			id, product_id, lot_number, manufacture_date, expiry_date,
			quantity, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	lot.ID = uuid.New()
	lot.CreatedAt = time.Now()
	lot.UpdatedAt = time.Now()

	_, err := tx.ExecContext(ctx, query,
		lot.ID,
		lot.ProductID,
		lot.LotNumber,
		lot.ManufactureDate,
		lot.ExpiryDate,
		lot.Quantity,
		lot.CreatedAt,
		lot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create lot: %w", err)
	}
	return nil
}

func (r *lotRepository) Get(ctx context.Context, id uuid.UUID) (*model.Lot, error) {
	query := `
		SELECT id, product_id, lot_number, manufacture_date, expiry_date,
			   quantity, created_at, updated_at
		FROM lots
		WHERE id = $1
	`
	var lot model.Lot
	if err := r.db.GetContext(ctx, &lot, query, id); err != nil {
		return nil, wrapNotFound(err, "lot")
	}
	return &lot, nil
}

func (r *lotRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*model.Lot, error) {
	query := `
		SELECT id, product_id, lot_number, manufacture_date, expiry_date,
			   quantity, created_at, updated_at
		FROM lots
		WHERE product_id = $1
		ORDER BY manufacture_date ASC, created_at ASC
	`
	var lots []*model.Lot
	if err := r.db.SelectContext(ctx, &lots, query, productID); err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	return lots, nil
}

// ListInventory returns the organization's remaining stock per lot in FIFO
// order, derived from the ledger rows.
func (r *lotRepository) ListInventory(ctx context.Context, orgID uuid.UUID) ([]*model.InventoryLine, error) {
	query := `
		SELECT p.id AS product_id, p.model_name AS product_name, p.udi_di,
			   l.id AS lot_id, l.lot_number, l.manufacture_date, l.expiry_date,
			   COUNT(vc.id) AS in_stock
		FROM virtual_codes vc
		JOIN lots l ON l.id = vc.lot_id
		JOIN products p ON p.id = l.product_id
		WHERE vc.status = 'IN_STOCK'
		  AND vc.owner_type = 'ORGANIZATION'
		  AND vc.owner_org_id = $1
		GROUP BY p.id, p.model_name, p.udi_di, l.id, l.lot_number,
				 l.manufacture_date, l.expiry_date, l.created_at
		ORDER BY p.model_name ASC, l.manufacture_date ASC, l.created_at ASC
	`
	var lines []*model.InventoryLine
	if err := r.db.SelectContext(ctx, &lines, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return lines, nil
}

// ListExpiredStock returns expired lots still holding in-stock codes for
// the organization, candidates for disposal with reason EXPIRED.
func (r *lotRepository) ListExpiredStock(ctx context.Context, orgID uuid.UUID, asOf time.Time) ([]*model.InventoryLine, error) {
	query := `
		SELECT p.id AS product_id, p.model_name AS product_name, p.udi_di,
			   l.id AS lot_id, l.lot_number, l.manufacture_date, l.expiry_date,
			   COUNT(vc.id) AS in_stock
		FROM virtual_codes vc
		JOIN lots l ON l.id = vc.lot_id
		JOIN products p ON p.id = l.product_id
		WHERE vc.status = 'IN_STOCK'
		  AND vc.owner_type = 'ORGANIZATION'
		  AND vc.owner_org_id = $1
		  AND l.expiry_date < $2
		GROUP BY p.id, p.model_name, p.udi_di, l.id, l.lot_number,
				 l.manufacture_date, l.expiry_date, l.created_at
		ORDER BY l.expiry_date ASC
	`
	var lines []*model.InventoryLine
	if err := r.db.SelectContext(ctx, &lines, query, orgID, asOf); err != nil {
		return nil, fmt.Errorf("failed to list expired stock: %w", err)
	}
	return lines, nil
}
