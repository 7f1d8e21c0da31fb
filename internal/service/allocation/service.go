package allocation

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/trace-api/internal/model"
	"github.com/jwalitptl/trace-api/internal/repository"
	apperrors "github.com/jwalitptl/trace-api/pkg/errors"
)

// Engine selects the specific codes that satisfy an outbound action.
// FIFO by lot manufacture date, ties broken by lot creation order. It
// always runs inside the caller's transaction: the selected rows stay
// locked until the surrounding unit of work commits or rolls back, so a
// failed allocation retains nothing.
type Engine struct {
	codes repository.CodeRepository
}

func NewEngine(codes repository.CodeRepository) *Engine {
	return &Engine{codes: codes}
}

// Allocate greedily consumes in-stock codes from the earliest-manufactured
// lot first until quantity is satisfied. Returns InsufficientStockError
// without partial effects when the organization's total stock falls short,
// including when a concurrent allocation shrinks it mid-flight.
func (e *Engine) Allocate(ctx context.Context, tx *sqlx.Tx, orgID, productID uuid.UUID, quantity int) ([]model.Allocation, error) {
	if quantity <= 0 {
		return nil, apperrors.Validation("quantity must be positive", nil)
	}

	lots, err := e.codes.ListLotStockTx(ctx, tx, orgID, productID)
	if err != nil {
		return nil, err
	}

	available := 0
	for _, lot := range lots {
		available += lot.InStock
	}
	if available < quantity {
		return nil, apperrors.InsufficientStock(quantity, available)
	}

	var allocations []model.Allocation
	remaining := quantity
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		take := lot.InStock
		if take > remaining {
			take = remaining
		}

		ids, err := e.codes.LockAvailableTx(ctx, tx, orgID, lot.ID, take)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			// Lot drained by a concurrent allocation after the count.
			continue
		}

		allocations = append(allocations, model.Allocation{LotID: lot.ID, CodeIDs: ids})
		remaining -= len(ids)
	}

	if remaining > 0 {
		// Lost a race for the last units. The transaction rolls back, so
		// the codes locked above are released untouched.
		return nil, apperrors.InsufficientStock(quantity, quantity-remaining)
	}
	return allocations, nil
}
