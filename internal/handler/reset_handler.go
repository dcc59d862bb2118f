package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/twoem/portal-api/internal/models"
	"github.com/twoem/portal-api/internal/service"
	appErrors "github.com/twoem/portal-api/pkg/errors"
	"github.com/twoem/portal-api/pkg/response"
)

// ResetHandler exposes the password reset flow.
type ResetHandler struct {
	service *service.ResetService
}

// NewResetHandler creates a new handler.
func NewResetHandler(svc *service.ResetService) *ResetHandler {
	return &ResetHandler{service: svc}
}

// Request godoc
// @Summary Request password reset
// @Tags Password Reset
// @Accept json
// @Produce json
// @Param payload body models.RequestResetRequest true "Reset payload"
// @Success 202 {object} response.Envelope
// @Router /resets/request [post]
func (h *ResetHandler) Request(c *gin.Context) {
	var req models.RequestResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reset payload"))
		return
	}

	if err := h.service.Request(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"status": "received"}, nil)
}

// Complete godoc
// @Summary Complete password reset
// @Description Redeems an approved reset code for a new password
// @Tags Password Reset
// @Accept json
// @Produce json
// @Param payload body models.CompleteResetRequest true "Completion payload"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /resets/complete [post]
func (h *ResetHandler) Complete(c *gin.Context) {
	var req models.CompleteResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reset payload"))
		return
	}

	if err := h.service.Complete(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List reset requests
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /admin/resets [get]
func (h *ResetHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), models.ResetStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Approve godoc
// @Summary Approve reset request
// @Description Generates the reset code and mails it to the account owner
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/resets/{id}/approve [post]
func (h *ResetHandler) Approve(c *gin.Context) {
	reset, err := h.service.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reset, nil)
}

// Reject godoc
// @Summary Reject reset request
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/resets/{id}/reject [post]
func (h *ResetHandler) Reject(c *gin.Context) {
	reset, err := h.service.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reset, nil)
}
