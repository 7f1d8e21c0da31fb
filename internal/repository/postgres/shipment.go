package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/trace-api/internal/model"
	apperrors "github.com/jwalitptl/trace-api/pkg/errors"
)

func (r *shipmentRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, batch *model.ShipmentBatch, details []*model.ShipmentDetail) error {
	query := `
		INSERT INTO shipment_batches (
			id, from_organization_id, to_organization_id, product_id,
			quantity, shipment_date, is_recalled, is_returned,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, false, false, $7, $8)
	`
	batch.ID = uuid.New()
	batch.CreatedAt = time.Now()
	batch.UpdatedAt = time.Now()

	_, err := tx.ExecContext(ctx, query,
		batch.ID,
		batch.FromOrganizationID,
		batch.ToOrganizationID,
		batch.ProductID,
		batch.Quantity,
		batch.ShipmentDate,
		batch.CreatedAt,
		batch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create shipment batch: %w", err)
	}

	detailQuery := `
		INSERT INTO shipment_details (id, shipment_id, lot_id, code_ids, quantity)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, d := range details {
		d.ID = uuid.New()
		d.ShipmentID = batch.ID
		if _, err := tx.ExecContext(ctx, detailQuery, d.ID, d.ShipmentID, d.LotID, d.CodeIDs, d.Quantity); err != nil {
			return fmt.Errorf("failed to create shipment detail: %w", err)
		}
	}
	return nil
}

const shipmentColumns = `
	id, from_organization_id, to_organization_id, product_id, quantity,
	shipment_date, is_recalled, recall_reason, recall_date, is_returned,
	return_date, created_at, updated_at
`

func (r *shipmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.ShipmentBatch, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipment_batches WHERE id = $1`
	var batch model.ShipmentBatch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, wrapNotFound(err, "shipment")
	}
	return &batch, nil
}

func (r *shipmentRepository) Details(ctx context.Context, shipmentID uuid.UUID) ([]*model.ShipmentDetail, error) {
	query := `
		SELECT id, shipment_id, lot_id, code_ids, quantity
		FROM shipment_details
		WHERE shipment_id = $1
		ORDER BY id ASC
	`
	var details []*model.ShipmentDetail
	if err := r.db.SelectContext(ctx, &details, query, shipmentID); err != nil {
		return nil, fmt.Errorf("failed to list shipment details: %w", err)
	}
	return details, nil
}

// GetForUpdateTx locks the batch row so a racing second recall or return
// waits and then sees is_recalled/is_returned already set.
func (r *shipmentRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.ShipmentBatch, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipment_batches WHERE id = $1 FOR UPDATE`
	var batch model.ShipmentBatch
	if err := tx.GetContext(ctx, &batch, query, id); err != nil {
		return nil, wrapNotFound(err, "shipment")
	}
	return &batch, nil
}

func (r *shipmentRepository) MarkRecalledTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reason string, at time.Time) error {
	query := `
		UPDATE shipment_batches
		SET is_recalled = true, recall_reason = $1, recall_date = $2, updated_at = $2
		WHERE id = $3 AND is_recalled = false
	`
	result, err := tx.ExecContext(ctx, query, reason, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark shipment recalled: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.AlreadyRecalled("shipment")
	}
	return nil
}

func (r *shipmentRepository) MarkReturnedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE shipment_batches
		SET is_returned = true, return_date = $1, updated_at = $1
		WHERE id = $2 AND is_returned = false
	`
	result, err := tx.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark shipment returned: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.Conflict("shipment already returned", nil)
	}
	return nil
}

func (r *shipmentRepository) List(ctx context.Context, filters *model.ShipmentFilters, p model.Pagination) ([]*model.ShipmentBatch, int, error) {
	where := ` WHERE (from_organization_id = $1 OR to_organization_id = $1)`
	args := []interface{}{filters.OrganizationID}
	argCount := 2

	if filters.ProductID != uuid.Nil {
		where += fmt.Sprintf(" AND product_id = $%d", argCount)
		args = append(args, filters.ProductID)
		argCount++
	}
	if !filters.StartDate.IsZero() {
		where += fmt.Sprintf(" AND shipment_date >= $%d", argCount)
		args = append(args, filters.StartDate)
		argCount++
	}
	if !filters.EndDate.IsZero() {
		where += fmt.Sprintf(" AND shipment_date <= $%d", argCount)
		args = append(args, filters.EndDate)
		argCount++
	}
	if !filters.IncludeRecalls {
		where += " AND is_recalled = false"
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM shipment_batches`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count shipments: %w", err)
	}

	query := `SELECT ` + shipmentColumns + ` FROM shipment_batches` + where +
		fmt.Sprintf(" ORDER BY shipment_date DESC, id DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, p.PageSize, p.Offset())

	var batches []*model.ShipmentBatch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list shipments: %w", err)
	}
	return batches, total, nil
}
