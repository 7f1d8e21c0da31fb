package catalog

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/trace-api/internal/middleware"
	"github.com/jwalitptl/trace-api/internal/model"
	"github.com/jwalitptl/trace-api/internal/service/catalog"
	apperrors "github.com/jwalitptl/trace-api/pkg/errors"
	"github.com/jwalitptl/trace-api/pkg/httputil"
)

type Handler struct {
	service *catalog.Service
}

func NewHandler(service *catalog.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateProduct(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	var req model.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid request", err))
		return
	}

	product, err := h.service.CreateProduct(c.Request.Context(), actor, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, product)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid product ID", nil))
		return
	}

	product, err := h.service.GetProduct(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, product)
}

// ListProducts returns the catalog of one manufacturer. Without an
// org_id query parameter it defaults to the caller's own organization.
func (h *Handler) ListProducts(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	orgID := actor.OrganizationID
	if raw := c.Query("org_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid organization ID", nil))
			return
		}
		orgID = id
	}

	products, err := h.service.ListProducts(c.Request.Context(), orgID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, products)
}

func (h *Handler) DeactivateProduct(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid product ID", nil))
		return
	}

	var req model.DeactivateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid request", err))
		return
	}

	if err := h.service.DeactivateProduct(c.Request.Context(), actor, id, req.Reason); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"deactivated": true})
}

func (h *Handler) GetLot(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid lot ID", nil))
		return
	}

	lot, err := h.service.GetLot(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, lot)
}

func (h *Handler) ListLots(c *gin.Context) {
	productID, err := uuid.Parse(c.Query("product_id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid product ID", nil))
		return
	}

	lots, err := h.service.ListLots(c.Request.Context(), productID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, lots)
}

// LotStatus reports how many of a lot's codes sit in each status.
func (h *Handler) LotStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid lot ID", nil))
		return
	}

	counts, err := h.service.LotStatus(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, counts)
}

// Inventory returns the caller's current in-stock holdings grouped by
// product and lot.
func (h *Handler) Inventory(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	lines, err := h.service.Inventory(c.Request.Context(), actor.OrganizationID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, lines)
}

// ExpiredStock lists in-stock holdings whose lot expiry date has
// passed, so holders can dispose of them.
func (h *Handler) ExpiredStock(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	lines, err := h.service.ExpiredStock(c.Request.Context(), actor.OrganizationID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, lines)
}
