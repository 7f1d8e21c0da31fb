package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/trace-api/internal/model"
)

func (r *disposalRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, record *model.DisposalRecord) error {
	query := `
		INSERT INTO disposal_records (
			id, organization_id, code_ids, reason, disposal_date,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	record.ID = uuid.New()
	record.CreatedAt = time.Now()
	record.UpdatedAt = time.Now()

	_, err := tx.ExecContext(ctx, query,
		record.ID,
		record.OrganizationID,
		record.CodeIDs,
		record.Reason,
		record.DisposalDate,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create disposal record: %w", err)
	}
	return nil
}

func (r *disposalRepository) Get(ctx context.Context, id uuid.UUID) (*model.DisposalRecord, error) {
	query := `
		SELECT id, organization_id, code_ids, reason, disposal_date,
			   created_at, updated_at
		FROM disposal_records
		WHERE id = $1
	`
	var record model.DisposalRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, wrapNotFound(err, "disposal")
	}
	return &record, nil
}

func (r *disposalRepository) List(ctx context.Context, orgID uuid.UUID, p model.Pagination) ([]*model.DisposalRecord, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM disposal_records WHERE organization_id = $1`, orgID); err != nil {
		return nil, 0, fmt.Errorf("failed to count disposals: %w", err)
	}

	query := `
		SELECT id, organization_id, code_ids, reason, disposal_date,
			   created_at, updated_at
		FROM disposal_records
		WHERE organization_id = $1
		ORDER BY disposal_date DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	var records []*model.DisposalRecord
	if err := r.db.SelectContext(ctx, &records, query, orgID, p.PageSize, p.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to list disposals: %w", err)
	}
	return records, total, nil
}
