package recall

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/trace-api/internal/model"
	"github.com/jwalitptl/trace-api/internal/repository"
	"github.com/jwalitptl/trace-api/internal/service/event"
	apperrors "github.com/jwalitptl/trace-api/pkg/errors"
	"github.com/jwalitptl/trace-api/pkg/logger"
	"github.com/jwalitptl/trace-api/pkg/metrics"
)

// DefaultWindow bounds how long after a shipment or treatment a recall is
// still permitted.
const DefaultWindow = 24 * time.Hour

// Service validates recall preconditions (window, exclusivity,
// authorization) and then executes the compensating transition: every
// affected code returns to the exact (status, owner) pair stored with the
// original event. All-or-nothing across the whole event.
type Service struct {
	txm        repository.TxManager
	codes      repository.CodeRepository
	shipments  repository.ShipmentRepository
	treatments repository.TreatmentRepository
	history    repository.HistoryRepository
	events     *event.Service
	window     time.Duration
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

type Config struct {
	TxManager  repository.TxManager
	Codes      repository.CodeRepository
	Shipments  repository.ShipmentRepository
	Treatments repository.TreatmentRepository
	History    repository.HistoryRepository
	Events     *event.Service
	Window     time.Duration
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

func NewService(cfg Config) *Service {
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{
		txm:        cfg.TxManager,
		codes:      cfg.Codes,
		shipments:  cfg.Shipments,
		treatments: cfg.Treatments,
		history:    cfg.History,
		events:     cfg.Events,
		window:     window,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// RecallShipment reverts a shipment within the recall window. Only the
// shipping organization (or an admin) may initiate it.
func (s *Service) RecallShipment(ctx context.Context, actor model.Actor, shipmentID uuid.UUID, reason string) error {
	err := s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		batch, err := s.shipments.GetForUpdateTx(ctx, tx, shipmentID)
		if err != nil {
			return err
		}
		if actor.Type != model.OrgTypeAdmin && batch.FromOrganizationID != actor.OrganizationID {
			return apperrors.UnauthorizedTransfer("only the shipping organization can recall a shipment")
		}
		if batch.IsRecalled {
			return apperrors.AlreadyRecalled("shipment")
		}
		if batch.IsReturned {
			return apperrors.Conflict("shipment has been returned", nil)
		}
		if age := time.Since(batch.ShipmentDate); age > s.window {
			return apperrors.RecallWindowExpired(fmt.Sprintf(
				"shipment is %s old, recall window is %s", age.Round(time.Minute), s.window))
		}

		if err := s.revert(ctx, tx, model.RefShipment, batch.ID, model.ActionShipped, reason); err != nil {
			return err
		}
		if err := s.shipments.MarkRecalledTx(ctx, tx, batch.ID, reason, time.Now()); err != nil {
			return err
		}

		// The receiving organization holds the recalled stock and gets
		// the notification email.
		return s.events.EmitTx(ctx, tx, model.EventRecallExecuted, &model.RecallExecutedPayload{
			RefType:     model.RefShipment,
			RefID:       batch.ID,
			Reason:      reason,
			NotifyOrgID: batch.ToOrganizationID,
			RecalledBy:  actor.OrganizationID,
			RecalledAt:  time.Now(),
		})
	})
	if err != nil {
		s.observe("shipment", err)
		return err
	}

	s.observe("shipment", nil)
	s.logger.Info("shipment recalled", "shipment_id", shipmentID.String(), "reason", reason)
	return nil
}

// RecallTreatment reverts a treatment within the recall window and emits
// the patient-facing recall event.
func (s *Service) RecallTreatment(ctx context.Context, actor model.Actor, treatmentID uuid.UUID, reason string) error {
	var patientPhone string
	err := s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		record, err := s.treatments.GetForUpdateTx(ctx, tx, treatmentID)
		if err != nil {
			return err
		}
		if actor.Type != model.OrgTypeAdmin && record.HospitalID != actor.OrganizationID {
			return apperrors.UnauthorizedTransfer("only the treating hospital can recall a treatment")
		}
		if record.IsRecalled {
			return apperrors.AlreadyRecalled("treatment")
		}
		if age := time.Since(record.TreatmentDate); age > s.window {
			return apperrors.RecallWindowExpired(fmt.Sprintf(
				"treatment is %s old, recall window is %s", age.Round(time.Minute), s.window))
		}
		patientPhone = record.PatientPhone

		if err := s.revert(ctx, tx, model.RefTreatment, record.ID, model.ActionTreated, reason); err != nil {
			return err
		}
		if err := s.treatments.MarkRecalledTx(ctx, tx, record.ID, reason, time.Now()); err != nil {
			return err
		}

		return s.events.EmitTx(ctx, tx, model.EventRecallExecuted, &model.RecallExecutedPayload{
			RefType:      model.RefTreatment,
			RefID:        record.ID,
			Reason:       reason,
			NotifyOrgID:  record.HospitalID,
			PatientPhone: patientPhone,
			RecalledBy:   actor.OrganizationID,
			RecalledAt:   time.Now(),
		})
	})
	if err != nil {
		s.observe("treatment", err)
		return err
	}

	s.observe("treatment", nil)
	s.logger.Info("treatment recalled",
		"treatment_id", treatmentID.String(),
		"patient", logger.RedactPhone(patientPhone),
		"reason", reason)
	return nil
}

// ReturnShipment sends an un-consumed shipment back to the sender. Unlike
// recall it has no time window and is initiated by the receiving side.
func (s *Service) ReturnShipment(ctx context.Context, actor model.Actor, shipmentID uuid.UUID, reason string) error {
	err := s.txm.WithTx(ctx, func(tx *sqlx.Tx) error {
		batch, err := s.shipments.GetForUpdateTx(ctx, tx, shipmentID)
		if err != nil {
			return err
		}
		if actor.Type != model.OrgTypeAdmin && batch.ToOrganizationID != actor.OrganizationID {
			return apperrors.UnauthorizedTransfer("only the receiving organization can return a shipment")
		}
		if batch.IsRecalled {
			return apperrors.AlreadyRecalled("shipment")
		}
		if batch.IsReturned {
			return apperrors.Conflict("shipment has already been returned", nil)
		}

		if err := s.revertReturn(ctx, tx, batch, reason); err != nil {
			return err
		}
		return s.shipments.MarkReturnedTx(ctx, tx, batch.ID, time.Now())
	})
	if err != nil {
		s.observe("return", err)
		return err
	}

	s.observe("return", nil)
	s.logger.Info("shipment returned", "shipment_id", shipmentID.String())
	return nil
}

// revert restores every code of the event to the (status, owner) stored
// with the original forward history rows and appends one compensating
// RECALLED event per code.
func (s *Service) revert(ctx context.Context, tx *sqlx.Tx, refType model.RefType, refID uuid.UUID, action model.ActionType, reason string) error {
	originals, err := s.history.ListByRefTx(ctx, tx, refType, refID, action)
	if err != nil {
		return err
	}
	if len(originals) == 0 {
		return apperrors.NotFound("history for event", nil)
	}

	ids := make([]uuid.UUID, len(originals))
	for i, e := range originals {
		ids[i] = e.VirtualCodeID
	}

	current, err := s.codes.LockByIDsTx(ctx, tx, ids)
	if err != nil {
		return err
	}
	if len(current) != len(ids) {
		return apperrors.NotFound("virtual code", nil)
	}

	// Every code must still sit in the post-event state. A code that has
	// since moved on (re-shipped, treated, disposed) blocks the recall.
	byID := make(map[uuid.UUID]*model.VirtualCode, len(current))
	for _, c := range current {
		byID[c.ID] = c
	}
	for _, orig := range originals {
		c := byID[orig.VirtualCodeID]
		if c == nil {
			return apperrors.NotFound("virtual code", nil)
		}
		if c.Status != orig.ToStatus || !c.Owner().Equal(orig.ToOwner()) {
			return apperrors.Conflict(fmt.Sprintf("code %s has moved since the event", c.Code), nil)
		}
	}

	// All originals of one event share the same restored state.
	restored := originals[0]
	if err := s.codes.TransferTx(ctx, tx, ids, restored.FromStatus, restored.FromOwner()); err != nil {
		return err
	}

	compensating := make([]*model.HistoryEvent, len(originals))
	recallReason := reason
	for i, orig := range originals {
		e := &model.HistoryEvent{
			VirtualCodeID: orig.VirtualCodeID,
			ActionType:    model.ActionRecalled,
			RefType:       refType,
			RefID:         refID,
			FromStatus:    orig.ToStatus,
			ToStatus:      orig.FromStatus,
			IsRecall:      true,
			RecallReason:  &recallReason,
		}
		e.SetFromOwner(orig.ToOwner())
		e.SetToOwner(orig.FromOwner())
		compensating[i] = e
	}
	return s.history.AppendTx(ctx, tx, compensating)
}

// revertReturn mirrors revert for the RETURN path, appending RETURNED
// events instead of recall markers.
func (s *Service) revertReturn(ctx context.Context, tx *sqlx.Tx, batch *model.ShipmentBatch, reason string) error {
	originals, err := s.history.ListByRefTx(ctx, tx, model.RefShipment, batch.ID, model.ActionShipped)
	if err != nil {
		return err
	}
	if len(originals) == 0 {
		return apperrors.NotFound("history for shipment", nil)
	}

	ids := make([]uuid.UUID, len(originals))
	for i, e := range originals {
		ids[i] = e.VirtualCodeID
	}

	current, err := s.codes.LockByIDsTx(ctx, tx, ids)
	if err != nil {
		return err
	}
	receiver := model.OrgOwner(batch.ToOrganizationID)
	if len(current) != len(ids) {
		return apperrors.NotFound("virtual code", nil)
	}
	for _, c := range current {
		if c.Status != model.CodeStatusInStock || !c.Owner().Equal(receiver) {
			return apperrors.UnauthorizedTransfer(fmt.Sprintf(
				"code %s is no longer held by the receiving organization", c.Code))
		}
	}

	sender := model.OrgOwner(batch.FromOrganizationID)
	if err := s.codes.TransferTx(ctx, tx, ids, model.CodeStatusInStock, sender); err != nil {
		return err
	}

	events := make([]*model.HistoryEvent, len(ids))
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	for i, id := range ids {
		e := &model.HistoryEvent{
			VirtualCodeID: id,
			ActionType:    model.ActionReturned,
			RefType:       model.RefShipment,
			RefID:         batch.ID,
			FromStatus:    model.CodeStatusInStock,
			ToStatus:      model.CodeStatusInStock,
			RecallReason:  reasonPtr,
		}
		e.SetFromOwner(receiver)
		e.SetToOwner(sender)
		events[i] = e
	}
	return s.history.AppendTx(ctx, tx, events)
}

func (s *Service) observe(eventType string, err error) {
	if s.metrics == nil {
		return
	}
	if err == nil {
		s.metrics.RecallsExecuted.WithLabelValues(eventType).Inc()
	}
}
