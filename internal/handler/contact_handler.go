package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/twoem/portal-api/internal/models"
	"github.com/twoem/portal-api/internal/service"
	appErrors "github.com/twoem/portal-api/pkg/errors"
	"github.com/twoem/portal-api/pkg/response"
)

// ContactHandler exposes the public contact form and its admin view.
type ContactHandler struct {
	service *service.ContactService
}

// NewContactHandler creates a new handler.
func NewContactHandler(svc *service.ContactService) *ContactHandler {
	return &ContactHandler{service: svc}
}

// Submit godoc
// @Summary Submit contact form
// @Tags Contact
// @Accept json
// @Produce json
// @Param payload body models.CreateContactRequest true "Contact payload"
// @Success 201 {object} response.Envelope
// @Router /contact [post]
func (h *ContactHandler) Submit(c *gin.Context) {
	var req models.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid contact payload"))
		return
	}

	submission, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// List godoc
// @Summary List contact submissions
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/contact [get]
func (h *ContactHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// MarkRead godoc
// @Summary Mark submission handled
// @Tags Admin
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /admin/contact/{id}/read [post]
func (h *ContactHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
