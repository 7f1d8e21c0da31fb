package recall

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/trace-api/internal/middleware"
	"github.com/jwalitptl/trace-api/internal/model"
	"github.com/jwalitptl/trace-api/internal/service/recall"
	apperrors "github.com/jwalitptl/trace-api/pkg/errors"
	"github.com/jwalitptl/trace-api/pkg/httputil"
)

type Handler struct {
	service *recall.Service
}

func NewHandler(service *recall.Service) *Handler {
	return &Handler{service: service}
}

// RecallShipment undoes a shipment within the recall window. Only the
// sending organization (or an admin) may trigger it.
func (h *Handler) RecallShipment(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid shipment ID", nil))
		return
	}

	var req model.RecallShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid request", err))
		return
	}

	if err := h.service.RecallShipment(c.Request.Context(), actor, id, req.Reason); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"recalled": true})
}

func (h *Handler) RecallTreatment(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid treatment ID", nil))
		return
	}

	var req model.RecallTreatmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid request", err))
		return
	}

	if err := h.service.RecallTreatment(c.Request.Context(), actor, id, req.Reason); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"recalled": true})
}

// ReturnShipment sends received stock back to the shipper. Unlike a
// recall it is initiated by the receiver and has no time window.
func (h *Handler) ReturnShipment(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid shipment ID", nil))
		return
	}

	// The reason is optional, so a body-less POST is fine.
	var req model.ReturnShipmentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.RespondWithError(c, apperrors.Validation("invalid request", err))
			return
		}
	}

	if err := h.service.ReturnShipment(c.Request.Context(), actor, id, req.Reason); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"returned": true})
}
