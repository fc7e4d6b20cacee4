package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/accademia-musici/academy-api/internal/service"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
	"github.com/accademia-musici/academy-api/pkg/response"
)

// SecretaryHandler manages per-secretary permission flags.
type SecretaryHandler struct {
	service *service.SecretaryService
}

// NewSecretaryHandler creates a new handler.
func NewSecretaryHandler(svc *service.SecretaryService) *SecretaryHandler {
	return &SecretaryHandler{service: svc}
}

// Get godoc
// @Summary Get secretary permissions
// @Description Falls back to the default flag set when none are stored
// @Tags Secretaries
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /secretaries/{id}/permissions [get]
func (h *SecretaryHandler) Get(c *gin.Context) {
	permissions, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, permissions, nil)
}

// Update godoc
// @Summary Update secretary permissions
// @Tags Secretaries
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body service.UpdateSecretaryPermissionsRequest true "Permission flags"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /secretaries/{id}/permissions [put]
func (h *SecretaryHandler) Update(c *gin.Context) {
	var req service.UpdateSecretaryPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid permissions payload"))
		return
	}

	permissions, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, permissions, nil)
}
