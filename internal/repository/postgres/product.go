package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/trace-api/internal/model"
	apperrors "github.com/jwalitptl/trace-api/pkg/errors"
)

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	query := `
		INSERT INTO products (
			id, organization_id, udi_di, model_name, is_active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	product.ID = uuid.New()
	product.IsActive = true
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		product.ID,
		product.OrganizationID,
		product.UDIDI,
		product.ModelName,
		product.IsActive,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("product with this UDI-DI already exists", err)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	query := `
		SELECT id, organization_id, udi_di, model_name, is_active,
			   deactivation_reason, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	var product model.Product
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		return nil, wrapNotFound(err, "product")
	}
	return &product, nil
}

func (r *productRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*model.Product, error) {
	query := `
		SELECT id, organization_id, udi_di, model_name, is_active,
			   deactivation_reason, created_at, updated_at
		FROM products
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`
	var products []*model.Product
	if err := r.db.SelectContext(ctx, &products, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Deactivate stops new lots of the product. Historical allocations and
// ledger rows are untouched.
func (r *productRepository) Deactivate(ctx context.Context, id uuid.UUID, reason model.DeactivationReason) error {
	query := `
		UPDATE products
		SET is_active = false, deactivation_reason = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, reason, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate product: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("product", nil)
	}
	return nil
}
