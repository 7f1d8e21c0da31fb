package history

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/trace-api/internal/middleware"
	"github.com/jwalitptl/trace-api/internal/model"
	"github.com/jwalitptl/trace-api/internal/service/history"
	apperrors "github.com/jwalitptl/trace-api/pkg/errors"
	"github.com/jwalitptl/trace-api/pkg/httputil"
)

type Handler struct {
	service *history.Service
}

func NewHandler(service *history.Service) *Handler {
	return &Handler{service: service}
}

func parseFilters(c *gin.Context) (*model.HistoryFilters, error) {
	filters := &model.HistoryFilters{}

	if raw := c.Query("org_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperrors.BadRequest("invalid organization ID", nil)
		}
		filters.OrganizationID = id
	}
	if raw := c.Query("product_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperrors.BadRequest("invalid product ID", nil)
		}
		filters.ProductID = id
	}
	if raw := c.Query("lot_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperrors.BadRequest("invalid lot ID", nil)
		}
		filters.LotID = id
	}
	if raw := c.Query("action"); raw != "" {
		filters.ActionType = model.ActionType(raw)
	}
	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, apperrors.BadRequest("invalid start_date, expected RFC3339", nil)
		}
		filters.StartDate = t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, apperrors.BadRequest("invalid end_date, expected RFC3339", nil)
		}
		filters.EndDate = t
	}
	filters.IncludeRecalls = c.Query("include_recalls") == "true"

	return filters, nil
}

// ListSummaries serves the offset-paginated activity feed. One row per
// business event, with a per-lot quantity breakdown attached.
func (h *Handler) ListSummaries(c *gin.Context) {
	filters, err := parseFilters(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var p model.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid pagination parameters", nil))
		return
	}
	p.Normalize()

	summaries, total, err := h.service.ListSummaries(c.Request.Context(), filters, p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, summaries, p.Page, p.PageSize, total)
}

// ListSummariesCursor serves the same feed keyed by an opaque cursor,
// which stays stable while new events are appended.
func (h *Handler) ListSummariesCursor(c *gin.Context) {
	filters, err := parseFilters(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid limit", nil))
			return
		}
	}

	summaries, next, err := h.service.ListSummariesCursor(c.Request.Context(), filters, c.Query("cursor"), limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCursor(c, summaries, next)
}

// TraceCode returns the full chain of custody of one unit, oldest
// event first.
func (h *Handler) TraceCode(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid code ID", nil))
		return
	}

	trace, err := h.service.TraceCode(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, trace)
}

// TraceByCode looks a unit up by its printed code string instead of
// its UUID.
func (h *Handler) TraceByCode(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		httputil.RespondWithError(c, apperrors.BadRequest("code is required", nil))
		return
	}

	trace, err := h.service.TraceByCodeString(c.Request.Context(), code)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, trace)
}

func (h *Handler) GetShipment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid shipment ID", nil))
		return
	}

	batch, details, err := h.service.GetShipment(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{
		"shipment": batch,
		"details":  details,
	})
}

func (h *Handler) ListShipments(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	filters := &model.ShipmentFilters{OrganizationID: actor.OrganizationID}
	if raw := c.Query("product_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid product ID", nil))
			return
		}
		filters.ProductID = id
	}
	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid start_date, expected RFC3339", nil))
			return
		}
		filters.StartDate = t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid end_date, expected RFC3339", nil))
			return
		}
		filters.EndDate = t
	}
	filters.IncludeRecalls = c.Query("include_recalls") == "true"

	var p model.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid pagination parameters", nil))
		return
	}
	p.Normalize()

	batches, total, err := h.service.ListShipments(c.Request.Context(), filters, p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, batches, p.Page, p.PageSize, total)
}

func (h *Handler) GetTreatment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid treatment ID", nil))
		return
	}

	record, err := h.service.GetTreatment(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, record)
}

func (h *Handler) ListTreatments(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	var p model.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid pagination parameters", nil))
		return
	}
	p.Normalize()

	records, total, err := h.service.ListTreatments(c.Request.Context(), actor.OrganizationID, p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, records, p.Page, p.PageSize, total)
}
