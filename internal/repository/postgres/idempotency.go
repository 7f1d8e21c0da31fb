package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/trace-api/internal/model"
	apperrors "github.com/jwalitptl/trace-api/pkg/errors"
)

func (r *idempotencyRepository) Get(ctx context.Context, orgID uuid.UUID, key string) (*model.IdempotencyKey, error) {
	query := `
		SELECT organization_id, key, operation, ref_id, created_at
		FROM idempotency_keys
		WHERE organization_id = $1 AND key = $2
	`
	var record model.IdempotencyKey
	err := r.db.GetContext(ctx, &record, query, orgID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}
	return &record, nil
}

// ReserveTx inserts the key inside the operation's transaction. A replay
// that raced past the pre-check loses on the primary key and aborts the
// whole unit of work with ConflictError.
func (r *idempotencyRepository) ReserveTx(ctx context.Context, tx *sqlx.Tx, record *model.IdempotencyKey) error {
	query := `
		INSERT INTO idempotency_keys (organization_id, key, operation, ref_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	record.CreatedAt = time.Now()

	_, err := tx.ExecContext(ctx, query,
		record.OrganizationID,
		record.Key,
		record.Operation,
		record.RefID,
		record.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("operation with this idempotency key already executed", err)
		}
		return fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	return nil
}
