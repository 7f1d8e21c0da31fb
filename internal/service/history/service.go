package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/trace-api/internal/model"
	"github.com/jwalitptl/trace-api/internal/repository"
)

// Service reads the append-only trail: per-event summaries and per-code
// transfer chains. It never writes; the state machine appends.
type Service struct {
	history    repository.HistoryRepository
	codes      repository.CodeRepository
	shipments  repository.ShipmentRepository
	treatments repository.TreatmentRepository
	window     time.Duration
}

func NewService(
	history repository.HistoryRepository,
	codes repository.CodeRepository,
	shipments repository.ShipmentRepository,
	treatments repository.TreatmentRepository,
	window time.Duration,
) *Service {
	return &Service{
		history:    history,
		codes:      codes,
		shipments:  shipments,
		treatments: treatments,
		window:     window,
	}
}

// ListSummaries returns one row per operation with lot breakdowns,
// offset-paginated.
func (s *Service) ListSummaries(ctx context.Context, filters *model.HistoryFilters, p model.Pagination) ([]*model.EventSummary, int, error) {
	p.Normalize()
	return s.history.ListSummaries(ctx, filters, p)
}

// ListSummariesCursor is the cursor-paginated access pattern over the same
// capability.
func (s *Service) ListSummariesCursor(ctx context.Context, filters *model.HistoryFilters, cursor string, limit int) ([]*model.EventSummary, string, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.history.ListSummariesCursor(ctx, filters, cursor, limit)
}

// TraceCode returns the full transfer chain for one code.
func (s *Service) TraceCode(ctx context.Context, codeID uuid.UUID) ([]*model.CodeTrace, error) {
	if _, err := s.codes.Get(ctx, codeID); err != nil {
		return nil, err
	}
	return s.history.ListByCode(ctx, codeID)
}

// TraceByCodeString resolves a printed code string to its chain.
func (s *Service) TraceByCodeString(ctx context.Context, code string) ([]*model.CodeTrace, error) {
	vc, err := s.codes.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.history.ListByCode(ctx, vc.ID)
}

// GetTreatment returns a treatment with its derived recallability.
func (s *Service) GetTreatment(ctx context.Context, id uuid.UUID) (*model.TreatmentRecord, error) {
	record, err := s.treatments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	record.IsRecallable = record.Recallable(time.Now(), s.window)
	return record, nil
}

func (s *Service) ListTreatments(ctx context.Context, hospitalID uuid.UUID, p model.Pagination) ([]*model.TreatmentRecord, int, error) {
	p.Normalize()
	records, total, err := s.treatments.List(ctx, hospitalID, p)
	if err != nil {
		return nil, 0, err
	}
	now := time.Now()
	for _, r := range records {
		r.IsRecallable = r.Recallable(now, s.window)
	}
	return records, total, nil
}

func (s *Service) GetShipment(ctx context.Context, id uuid.UUID) (*model.ShipmentBatch, []*model.ShipmentDetail, error) {
	batch, err := s.shipments.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	details, err := s.shipments.Details(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return batch, details, nil
}

func (s *Service) ListShipments(ctx context.Context, filters *model.ShipmentFilters, p model.Pagination) ([]*model.ShipmentBatch, int, error) {
	p.Normalize()
	return s.shipments.List(ctx, filters, p)
}
