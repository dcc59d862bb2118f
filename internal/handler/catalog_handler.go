package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/twoem/portal-api/internal/models"
	"github.com/twoem/portal-api/internal/service"
	appErrors "github.com/twoem/portal-api/pkg/errors"
	"github.com/twoem/portal-api/pkg/response"
)

// CatalogHandler exposes the public services catalog.
type CatalogHandler struct {
	service *service.CatalogService
}

// NewCatalogHandler creates a new handler.
func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// List godoc
// @Summary List services
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /services [get]
func (h *CatalogHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Patch godoc
// @Summary Edit catalog entry
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Param payload body models.ServiceEntryPatch true "Patch payload"
// @Success 204
// @Router /admin/services/{id} [patch]
func (h *CatalogHandler) Patch(c *gin.Context) {
	var patch models.ServiceEntryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid patch payload"))
		return
	}

	if err := h.service.Patch(c.Request.Context(), c.Param("id"), patch); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
