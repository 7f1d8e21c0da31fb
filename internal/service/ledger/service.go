package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/trace-api/internal/model"
	"github.com/jwalitptl/trace-api/internal/repository"
	"github.com/jwalitptl/trace-api/internal/service/allocation"
	"github.com/jwalitptl/trace-api/internal/service/event"
	apperrors "github.com/jwalitptl/trace-api/pkg/errors"
	"github.com/jwalitptl/trace-api/pkg/logger"
	"github.com/jwalitptl/trace-api/pkg/metrics"
)

// Service executes the forward ownership transitions: PRODUCE, SHIP,
// TREAT, DISPOSE. Each runs as one transaction wrapping allocation,
// transfer, record creation and history append; any failure aborts the
// whole unit of work.
type Service struct {
	txm        repository.TxManager
	orgs       repository.OrganizationRepository
	products   repository.ProductRepository
	lots       repository.LotRepository
	codes      repository.CodeRepository
	shipments  repository.ShipmentRepository
	treatments repository.TreatmentRepository
	disposals  repository.DisposalRepository
	history    repository.HistoryRepository
	idem       repository.IdempotencyRepository
	allocator  *allocation.Engine
	events     *event.Service
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

type Config struct {
	TxManager     repository.TxManager
	Organizations repository.OrganizationRepository
	Products      repository.ProductRepository
	Lots          repository.LotRepository
	Codes         repository.CodeRepository
	Shipments     repository.ShipmentRepository
	Treatments    repository.TreatmentRepository
	Disposals     repository.DisposalRepository
	History       repository.HistoryRepository
	Idempotency   repository.IdempotencyRepository
	Allocator     *allocation.Engine
	Events        *event.Service
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
}

func NewService(cfg Config) *Service {
	return &Service{
		txm:        cfg.TxManager,
		orgs:       cfg.Organizations,
		products:   cfg.Products,
		lots:       cfg.Lots,
		codes:      cfg.Codes,
		shipments:  cfg.Shipments,
		treatments: cfg.Treatments,
		disposals:  cfg.Disposals,
		history:    cfg.History,
		idem:       cfg.Idempotency,
		allocator:  cfg.Allocator,
		events:     cfg.Events,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// replay returns the ref id of a previously executed operation with the
// same idempotency key, uuid.Nil when the key is fresh.
func (s *Service) replay(ctx context.Context, actor model.Actor, key, operation string) (uuid.UUID, error) {
	existing, err := s.idem.Get(ctx, actor.OrganizationID, key)
	if err != nil {
		return uuid.Nil, err
	}
	if existing == nil {
		return uuid.Nil, nil
	}
	if existing.Operation != operation {
		return uuid.Nil, apperrors.Conflict("idempotency key used by a different operation", nil)
	}
	return existing.RefID, nil
}

func (s *Service) activeOrganization(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	org, err := s.orgs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if org.Status != model.OrgStatusActive {
		return nil, apperrors.Forbidden(fmt.Sprintf("organization %s is not active", org.Name))
	}
	return org, nil
}

// Produce creates a lot and bulk-creates its virtual codes in stock under
// the manufacturer, with one PRODUCED history event per code.
func (s *Service) Produce(ctx context.Context, actor model.Actor, req *model.CreateLotRequest) (*model.Lot, error) {
	start := time.Now()
	if actor.Type != model.OrgTypeManufacturer {
		return nil, apperrors.Forbidden("only manufacturers can produce lots")
	}
	if _, err := s.activeOrganization(ctx, actor.OrganizationID); err != nil {
		return nil, err
	}

	product, err := s.products.Get(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product.OrganizationID != actor.OrganizationID {
		return nil, apperrors.Forbidden("product belongs to another organization")
	}
	if !product.IsActive {
		return nil, apperrors.Validation("product is deactivated", nil)
	}

	if refID, err := s.replay(ctx, actor, req.IdempotencyKey, model.OpProduce); err != nil {
		return nil, err
	} else if refID != uuid.Nil {
		return s.lots.Get(ctx, refID)
	}

	lot := &model.Lot{
		ProductID:       req.ProductID,
		LotNumber:       req.LotNumber,
		ManufactureDate: req.ManufactureDate,
		ExpiryDate:      req.ExpiryDate,
		Quantity:        req.Quantity,
	}

	err = s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.lots.CreateTx(ctx, tx, lot); err != nil {
			return err
		}
		if err := s.idem.ReserveTx(ctx, tx, &model.IdempotencyKey{
			OrganizationID: actor.OrganizationID,
			Key:            req.IdempotencyKey,
			Operation:      model.OpProduce,
			RefID:          lot.ID,
		}); err != nil {
			return err
		}

		owner := model.OrgOwner(actor.OrganizationID)
		codes := make([]*model.VirtualCode, req.Quantity)
		for i := range codes {
			codes[i] = &model.VirtualCode{
				Base:      model.Base{ID: uuid.New()},
				LotID:     lot.ID,
				Code:      fmt.Sprintf("%s-%.8s-%05d", lot.LotNumber, lot.ID, i+1),
				Status:    model.CodeStatusInStock,
				OwnerType: owner.Type,
			}
			id := owner.OrganizationID
			codes[i].OwnerOrgID = &id
		}
		if err := s.codes.BulkCreateTx(ctx, tx, codes); err != nil {
			return err
		}

		events := make([]*model.HistoryEvent, len(codes))
		for i, c := range codes {
			e := &model.HistoryEvent{
				VirtualCodeID: c.ID,
				ActionType:    model.ActionProduced,
				RefType:       model.RefLot,
				RefID:         lot.ID,
				FromStatus:    model.CodeStatusInStock,
				ToStatus:      model.CodeStatusInStock,
			}
			e.SetFromOwner(owner)
			e.SetToOwner(owner)
			events[i] = e
		}
		return s.history.AppendTx(ctx, tx, events)
	})
	if err != nil {
		s.observe("produce", start, err)
		return nil, err
	}

	s.observe("produce", start, nil)
	s.logger.Info("lot produced",
		"lot_id", lot.ID.String(),
		"product_id", lot.ProductID.String(),
		"quantity", lot.Quantity)
	return lot, nil
}

// Ship allocates from the sender's stock and atomically reassigns the
// selected codes to the receiving organization. Status stays IN_STOCK;
// there is no in-transit state.
func (s *Service) Ship(ctx context.Context, actor model.Actor, req *model.CreateShipmentRequest) (*model.ShipmentBatch, error) {
	start := time.Now()
	if actor.Type != model.OrgTypeManufacturer && actor.Type != model.OrgTypeDistributor {
		return nil, apperrors.Forbidden("only manufacturers and distributors can ship")
	}
	if req.ToOrganizationID == actor.OrganizationID {
		return nil, apperrors.Validation("cannot ship to own organization", nil)
	}
	if _, err := s.activeOrganization(ctx, actor.OrganizationID); err != nil {
		return nil, err
	}
	if _, err := s.activeOrganization(ctx, req.ToOrganizationID); err != nil {
		return nil, err
	}
	if _, err := s.products.Get(ctx, req.ProductID); err != nil {
		return nil, err
	}

	if refID, err := s.replay(ctx, actor, req.IdempotencyKey, model.OpShip); err != nil {
		return nil, err
	} else if refID != uuid.Nil {
		return s.shipments.Get(ctx, refID)
	}

	batch := &model.ShipmentBatch{
		FromOrganizationID: actor.OrganizationID,
		ToOrganizationID:   req.ToOrganizationID,
		ProductID:          req.ProductID,
		Quantity:           req.Quantity,
		ShipmentDate:       time.Now(),
	}

	err := s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		allocations, err := s.allocator.Allocate(ctx, tx, actor.OrganizationID, req.ProductID, req.Quantity)
		if err != nil {
			return err
		}

		fromOwner := model.OrgOwner(actor.OrganizationID)
		toOwner := model.OrgOwner(req.ToOrganizationID)

		details := make([]*model.ShipmentDetail, 0, len(allocations))
		var allIDs []uuid.UUID
		for _, alloc := range allocations {
			detail := &model.ShipmentDetail{
				LotID:    alloc.LotID,
				Quantity: len(alloc.CodeIDs),
			}
			for _, id := range alloc.CodeIDs {
				detail.CodeIDs = append(detail.CodeIDs, id.String())
			}
			details = append(details, detail)
			allIDs = append(allIDs, alloc.CodeIDs...)
		}

		if err := s.codes.TransferTx(ctx, tx, allIDs, model.CodeStatusInStock, toOwner); err != nil {
			return err
		}
		if err := s.shipments.CreateTx(ctx, tx, batch, details); err != nil {
			return err
		}
		if err := s.idem.ReserveTx(ctx, tx, &model.IdempotencyKey{
			OrganizationID: actor.OrganizationID,
			Key:            req.IdempotencyKey,
			Operation:      model.OpShip,
			RefID:          batch.ID,
		}); err != nil {
			return err
		}

		events := make([]*model.HistoryEvent, 0, 2*len(allIDs))
		for _, id := range allIDs {
			for _, action := range []model.ActionType{model.ActionShipped, model.ActionReceived} {
				e := &model.HistoryEvent{
					VirtualCodeID: id,
					ActionType:    action,
					RefType:       model.RefShipment,
					RefID:         batch.ID,
					FromStatus:    model.CodeStatusInStock,
					ToStatus:      model.CodeStatusInStock,
				}
				e.SetFromOwner(fromOwner)
				e.SetToOwner(toOwner)
				events = append(events, e)
			}
		}
		return s.history.AppendTx(ctx, tx, events)
	})
	if err != nil {
		s.observe("ship", start, err)
		return nil, err
	}

	s.observe("ship", start, nil)
	s.logger.Info("shipment created",
		"shipment_id", batch.ID.String(),
		"from", batch.FromOrganizationID.String(),
		"to", batch.ToOrganizationID.String(),
		"quantity", batch.Quantity)
	return batch, nil
}

// Treat allocates from the hospital's stock, marks the codes USED and
// transfers custody to the patient. Recallable for the configured window.
func (s *Service) Treat(ctx context.Context, actor model.Actor, req *model.CreateTreatmentRequest) (*model.TreatmentRecord, error) {
	start := time.Now()
	if actor.Type != model.OrgTypeHospital {
		return nil, apperrors.Forbidden("only hospitals can treat patients")
	}
	if _, err := s.activeOrganization(ctx, actor.OrganizationID); err != nil {
		return nil, err
	}
	if _, err := s.products.Get(ctx, req.ProductID); err != nil {
		return nil, err
	}

	if refID, err := s.replay(ctx, actor, req.IdempotencyKey, model.OpTreat); err != nil {
		return nil, err
	} else if refID != uuid.Nil {
		return s.treatments.Get(ctx, refID)
	}

	record := &model.TreatmentRecord{
		HospitalID:    actor.OrganizationID,
		PatientPhone:  req.PatientPhone,
		TreatmentDate: time.Now(),
	}

	err := s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		allocations, err := s.allocator.Allocate(ctx, tx, actor.OrganizationID, req.ProductID, req.Quantity)
		if err != nil {
			return err
		}

		fromOwner := model.OrgOwner(actor.OrganizationID)
		toOwner := model.PatientOwner(req.PatientPhone)

		var allIDs []uuid.UUID
		item := &model.TreatmentItem{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
		}
		for _, alloc := range allocations {
			for _, id := range alloc.CodeIDs {
				item.CodeIDs = append(item.CodeIDs, id.String())
			}
			allIDs = append(allIDs, alloc.CodeIDs...)
		}

		if err := s.codes.TransferTx(ctx, tx, allIDs, model.CodeStatusUsed, toOwner); err != nil {
			return err
		}
		if err := s.treatments.CreateTx(ctx, tx, record, []*model.TreatmentItem{item}); err != nil {
			return err
		}
		if err := s.idem.ReserveTx(ctx, tx, &model.IdempotencyKey{
			OrganizationID: actor.OrganizationID,
			Key:            req.IdempotencyKey,
			Operation:      model.OpTreat,
			RefID:          record.ID,
		}); err != nil {
			return err
		}

		events := make([]*model.HistoryEvent, len(allIDs))
		for i, id := range allIDs {
			e := &model.HistoryEvent{
				VirtualCodeID: id,
				ActionType:    model.ActionTreated,
				RefType:       model.RefTreatment,
				RefID:         record.ID,
				FromStatus:    model.CodeStatusInStock,
				ToStatus:      model.CodeStatusUsed,
			}
			e.SetFromOwner(fromOwner)
			e.SetToOwner(toOwner)
			events[i] = e
		}
		if err := s.history.AppendTx(ctx, tx, events); err != nil {
			return err
		}

		return s.events.EmitTx(ctx, tx, model.EventTreatmentCreated, &model.TreatmentCreatedPayload{
			TreatmentID:  record.ID,
			HospitalID:   record.HospitalID,
			PatientPhone: record.PatientPhone,
			ProductID:    req.ProductID,
			Quantity:     req.Quantity,
			TreatedAt:    record.TreatmentDate,
		})
	})
	if err != nil {
		s.observe("treat", start, err)
		return nil, err
	}

	s.observe("treat", start, nil)
	s.logger.Info("treatment recorded",
		"treatment_id", record.ID.String(),
		"hospital_id", record.HospitalID.String(),
		"patient", logger.RedactPhone(record.PatientPhone),
		"quantity", req.Quantity)
	return record, nil
}

// Dispose terminally retires the given codes. The caller must currently
// own every one of them; DISPOSED has no reversal path.
func (s *Service) Dispose(ctx context.Context, actor model.Actor, req *model.CreateDisposalRequest) (*model.DisposalRecord, error) {
	start := time.Now()
	if _, err := s.activeOrganization(ctx, actor.OrganizationID); err != nil {
		return nil, err
	}

	if refID, err := s.replay(ctx, actor, req.IdempotencyKey, model.OpDispose); err != nil {
		return nil, err
	} else if refID != uuid.Nil {
		return s.disposals.Get(ctx, refID)
	}

	record := &model.DisposalRecord{
		OrganizationID: actor.OrganizationID,
		Reason:         req.Reason,
		DisposalDate:   time.Now(),
	}
	for _, id := range req.CodeIDs {
		record.CodeIDs = append(record.CodeIDs, id.String())
	}

	err := s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		codes, err := s.codes.LockByIDsTx(ctx, tx, req.CodeIDs)
		if err != nil {
			return err
		}
		if len(codes) != len(req.CodeIDs) {
			return apperrors.NotFound("virtual code", nil)
		}

		owner := model.OrgOwner(actor.OrganizationID)
		for _, c := range codes {
			if c.Status != model.CodeStatusInStock {
				return apperrors.UnauthorizedTransfer(fmt.Sprintf("code %s is not in stock", c.Code))
			}
			if !c.Owner().Equal(owner) {
				return apperrors.UnauthorizedTransfer(fmt.Sprintf("code %s is not owned by the caller", c.Code))
			}
		}

		if err := s.codes.TransferTx(ctx, tx, req.CodeIDs, model.CodeStatusDisposed, owner); err != nil {
			return err
		}
		if err := s.disposals.CreateTx(ctx, tx, record); err != nil {
			return err
		}
		if err := s.idem.ReserveTx(ctx, tx, &model.IdempotencyKey{
			OrganizationID: actor.OrganizationID,
			Key:            req.IdempotencyKey,
			Operation:      model.OpDispose,
			RefID:          record.ID,
		}); err != nil {
			return err
		}

		events := make([]*model.HistoryEvent, len(codes))
		for i, c := range codes {
			e := &model.HistoryEvent{
				VirtualCodeID: c.ID,
				ActionType:    model.ActionDisposed,
				RefType:       model.RefDisposal,
				RefID:         record.ID,
				FromStatus:    c.Status,
				ToStatus:      model.CodeStatusDisposed,
			}
			e.SetFromOwner(c.Owner())
			e.SetToOwner(owner)
			events[i] = e
		}
		return s.history.AppendTx(ctx, tx, events)
	})
	if err != nil {
		s.observe("dispose", start, err)
		return nil, err
	}

	s.observe("dispose", start, nil)
	s.logger.Info("codes disposed",
		"disposal_id", record.ID.String(),
		"organization_id", record.OrganizationID.String(),
		"count", len(req.CodeIDs),
		"reason", string(req.Reason))
	return record, nil
}

func (s *Service) observe(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		if apperrors.Is(err, apperrors.ErrInsufficientStock) {
			s.metrics.AllocationShortfall.Inc()
		}
	}
	s.metrics.LedgerOperations.WithLabelValues(operation, status).Inc()
	s.metrics.LedgerLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
