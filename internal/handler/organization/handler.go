package organization

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

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

// Register creates an organization in PENDING_APPROVAL status. It is
// the only unauthenticated write endpoint.
func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid request", err))
		return
	}

	org, err := h.service.RegisterOrganization(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, org)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid organization ID", nil))
		return
	}

	org, err := h.service.GetOrganization(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, org)
}

func (h *Handler) List(c *gin.Context) {
	orgs, err := h.service.ListOrganizations(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, orgs)
}
