package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/twoem/portal-api/internal/models"
	"github.com/twoem/portal-api/internal/service"
	appErrors "github.com/twoem/portal-api/pkg/errors"
	"github.com/twoem/portal-api/pkg/response"
)

// ArtifactHandler exposes file and eulogy endpoints plus the shared
// download pipeline.
type ArtifactHandler struct {
	artifacts *service.ArtifactService
	release   *service.ReleaseService
}

// NewArtifactHandler creates a new handler.
func NewArtifactHandler(artifacts *service.ArtifactService, release *service.ReleaseService) *ArtifactHandler {
	return &ArtifactHandler{artifacts: artifacts, release: release}
}

// UploadFile godoc
// @Summary Upload file
// @Tags Artifacts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.UploadFileRequest true "File payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /files [post]
func (h *ArtifactHandler) UploadFile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UploadFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid file payload"))
		return
	}

	meta, err := h.artifacts.UploadFile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, meta)
}

// ListPublicFiles godoc
// @Summary List public files
// @Tags Artifacts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /files [get]
func (h *ArtifactHandler) ListPublicFiles(c *gin.Context) {
	items, err := h.artifacts.ListPublicFiles(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ListMyFiles godoc
// @Summary List own uploads
// @Tags Artifacts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /files/mine [get]
func (h *ArtifactHandler) ListMyFiles(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	items, err := h.artifacts.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// UploadEulogy godoc
// @Summary Publish eulogy
// @Description Publishes a memorial document that expires after the configured number of days
// @Tags Eulogies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.UploadEulogyRequest true "Eulogy payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /eulogies [post]
func (h *ArtifactHandler) UploadEulogy(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UploadEulogyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid eulogy payload"))
		return
	}

	meta, err := h.artifacts.UploadEulogy(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, meta)
}

// ListPublicEulogies godoc
// @Summary List public eulogies
// @Tags Eulogies
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /eulogies [get]
func (h *ArtifactHandler) ListPublicEulogies(c *gin.Context) {
	items, err := h.artifacts.ListPublicEulogies(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Download godoc
// @Summary Download artifact payload
// @Description Runs the release gate sequence and streams the payload on success
// @Tags Artifacts
// @Produce octet-stream
// @Param id path string true "Artifact ID"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /artifacts/{id}/download [get]
func (h *ArtifactHandler) Download(c *gin.Context) {
	result, err := h.release.Release(c.Request.Context(), c.Param("id"), callerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.MediaType, result.Payload)
}

// DownloadOwnCertificate godoc
// @Summary Download the caller's certificate
// @Description Resolves the caller's certificate and runs the release gate sequence
// @Tags Students
// @Produce octet-stream
// @Security BearerAuth
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/me/certificate [get]
func (h *ArtifactHandler) DownloadOwnCertificate(c *gin.Context) {
	result, err := h.release.ReleaseOwnCertificate(c.Request.Context(), callerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.MediaType, result.Payload)
}

// Patch godoc
// @Summary Update artifact metadata
// @Tags Artifacts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Artifact ID"
// @Param payload body models.ArtifactPatch true "Patch payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /artifacts/{id} [patch]
func (h *ArtifactHandler) Patch(c *gin.Context) {
	var patch models.ArtifactPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid patch payload"))
		return
	}

	meta, err := h.artifacts.Patch(c.Request.Context(), callerFromContext(c), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meta, nil)
}

// Delete godoc
// @Summary Delete artifact
// @Tags Artifacts
// @Security BearerAuth
// @Param id path string true "Artifact ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /artifacts/{id} [delete]
func (h *ArtifactHandler) Delete(c *gin.Context) {
	if err := h.artifacts.Delete(c.Request.Context(), callerFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListAll godoc
// @Summary List all artifacts of a kind
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param kind query string false "Artifact kind"
// @Success 200 {object} response.Envelope
// @Router /admin/artifacts [get]
func (h *ArtifactHandler) ListAll(c *gin.Context) {
	kind := models.ArtifactKind(c.Query("kind"))
	items, err := h.artifacts.ListAll(c.Request.Context(), kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// PurgeExpired godoc
// @Summary Purge expired artifacts
// @Description Deletes every artifact whose expiry has passed
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/artifacts/purge-expired [post]
func (h *ArtifactHandler) PurgeExpired(c *gin.Context) {
	count, err := h.release.PurgeExpired(c.Request.Context(), callerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"purged": count}, nil)
}
