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

const treatmentColumns = `
	id, hospital_id, patient_phone, treatment_date, is_recalled,
	recall_reason, recall_date, created_at, updated_at
`

func (r *treatmentRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, record *model.TreatmentRecord, items []*model.TreatmentItem) error {
	query := `
		INSERT INTO treatment_records (
			id, hospital_id, patient_phone, treatment_date, is_recalled,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, false, $5, $6)
	`
	record.ID = uuid.New()
	record.CreatedAt = time.Now()
	record.UpdatedAt = time.Now()

	_, err := tx.ExecContext(ctx, query,
		record.ID,
		record.HospitalID,
		record.PatientPhone,
		record.TreatmentDate,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create treatment record: %w", err)
	}

	itemQuery := `
		INSERT INTO treatment_items (id, treatment_id, product_id, code_ids, quantity)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, item := range items {
		item.ID = uuid.New()
		item.TreatmentID = record.ID
		if _, err := tx.ExecContext(ctx, itemQuery, item.ID, item.TreatmentID, item.ProductID, item.CodeIDs, item.Quantity); err != nil {
			return fmt.Errorf("failed to create treatment item: %w", err)
		}
	}
	return nil
}

func (r *treatmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.TreatmentRecord, error) {
	query := `SELECT ` + treatmentColumns + ` FROM treatment_records WHERE id = $1`
	var record model.TreatmentRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, wrapNotFound(err, "treatment")
	}
	return &record, nil
}

func (r *treatmentRepository) Items(ctx context.Context, treatmentID uuid.UUID) ([]*model.TreatmentItem, error) {
	query := `
		SELECT id, treatment_id, product_id, code_ids, quantity
		FROM treatment_items
		WHERE treatment_id = $1
		ORDER BY id ASC
	`
	var items []*model.TreatmentItem
	if err := r.db.SelectContext(ctx, &items, query, treatmentID); err != nil {
		return nil, fmt.Errorf("failed to list treatment items: %w", err)
	}
	return items, nil
}

func (r *treatmentRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.TreatmentRecord, error) {
	query := `SELECT ` + treatmentColumns + ` FROM treatment_records WHERE id = $1 FOR UPDATE`
	var record model.TreatmentRecord
	if err := tx.GetContext(ctx, &record, query, id); err != nil {
		return nil, wrapNotFound(err, "treatment")
	}
	return &record, nil
}

func (r *treatmentRepository) MarkRecalledTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reason string, at time.Time) error {
	query := `
		UPDATE treatment_records
		SET is_recalled = true, recall_reason = $1, recall_date = $2, updated_at = $2
		WHERE id = $3 AND is_recalled = false
	`
	result, err := tx.ExecContext(ctx, query, reason, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark treatment recalled: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.AlreadyRecalled("treatment")
	}
	return nil
}

func (r *treatmentRepository) List(ctx context.Context, hospitalID uuid.UUID, p model.Pagination) ([]*model.TreatmentRecord, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM treatment_records WHERE hospital_id = $1`, hospitalID); err != nil {
		return nil, 0, fmt.Errorf("failed to count treatments: %w", err)
	}

	query := `SELECT ` + treatmentColumns + `
		FROM treatment_records
		WHERE hospital_id = $1
		ORDER BY treatment_date DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	var records []*model.TreatmentRecord
	if err := r.db.SelectContext(ctx, &records, query, hospitalID, p.PageSize, p.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to list treatments: %w", err)
	}
	return records, total, nil
}
