package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/twoem/portal-api/internal/models"
	"github.com/twoem/portal-api/internal/service"
	appErrors "github.com/twoem/portal-api/pkg/errors"
	"github.com/twoem/portal-api/pkg/response"
)

// CredentialHandler exposes the sealed credentials vault.
type CredentialHandler struct {
	service *service.CredentialService
}

// NewCredentialHandler creates a new handler.
func NewCredentialHandler(svc *service.CredentialService) *CredentialHandler {
	return &CredentialHandler{service: svc}
}

// Create godoc
// @Summary Store client credentials
// @Description Seals the secrets before persistence
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateCredentialRequest true "Credential payload"
// @Success 201 {object} response.Envelope
// @Router /admin/credentials [post]
func (h *CredentialHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid credential payload"))
		return
	}

	cred, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cred)
}

// List godoc
// @Summary List client credentials
// @Description Returns unsealed credentials for admin use
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/credentials [get]
func (h *CredentialHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
