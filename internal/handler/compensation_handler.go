package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/accademia-musici/academy-api/internal/models"
	"github.com/accademia-musici/academy-api/internal/service"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
	"github.com/accademia-musici/academy-api/pkg/response"
)

// CompensationHandler wires HTTP endpoints to the compensation engine.
type CompensationHandler struct {
	service *service.CompensationService
}

// NewCompensationHandler creates a new handler.
func NewCompensationHandler(svc *service.CompensationService) *CompensationHandler {
	return &CompensationHandler{service: svc}
}

func compensationPeriod(c *gin.Context) (string, time.Time, time.Time, error) {
	user := userFromContext(c)
	if user == nil {
		return "", time.Time{}, time.Time{}, appErrors.ErrUnauthorized
	}

	teacherID := c.Query("teacher_id")
	if user.Role == models.RoleTeacher {
		teacherID = user.ID
	}
	if teacherID == "" {
		return "", time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required")
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return "", time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339")
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return "", time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339")
	}
	return teacherID, from, to, nil
}

// Compute godoc
// @Summary Compute teacher compensation
// @Description Teachers always compute their own statement
// @Tags Compensation
// @Produce json
// @Param teacher_id query string false "Teacher (staff only)"
// @Param from query string true "Period start, RFC3339"
// @Param to query string true "Period end, RFC3339"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /compensation [get]
func (h *CompensationHandler) Compute(c *gin.Context) {
	teacherID, from, to, err := compensationPeriod(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	statement, err := h.service.Compute(c.Request.Context(), teacherID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statement, nil)
}

// Statement godoc
// @Summary Download compensation statement as PDF
// @Tags Compensation
// @Produce application/pdf
// @Param teacher_id query string false "Teacher (staff only)"
// @Param from query string true "Period start, RFC3339"
// @Param to query string true "Period end, RFC3339"
// @Success 200 {file} file
// @Router /compensation/statement [get]
func (h *CompensationHandler) Statement(c *gin.Context) {
	teacherID, from, to, err := compensationPeriod(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	data, err := h.service.StatementPDF(c.Request.Context(), teacherID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("compensation-%s-%s.pdf", teacherID, from.UTC().Format("200601"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}

// ListRates godoc
// @Summary List compensation rates for a teacher
// @Tags Compensation
// @Produce json
// @Param teacher_id query string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /compensation/rates [get]
func (h *CompensationHandler) ListRates(c *gin.Context) {
	teacherID := c.Query("teacher_id")
	if teacherID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required"))
		return
	}

	rates, err := h.service.ListRates(c.Request.Context(), teacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rates, nil)
}

// SetRate godoc
// @Summary Set a compensation rate
// @Description Course-specific rates take precedence over the teacher default
// @Tags Compensation
// @Accept json
// @Produce json
// @Param payload body service.SetRateRequest true "Rate payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /compensation/rates [post]
func (h *CompensationHandler) SetRate(c *gin.Context) {
	var req service.SetRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rate payload"))
		return
	}

	rate, err := h.service.SetRate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rate)
}

// UpdateRate godoc
// @Summary Update a compensation rate
// @Tags Compensation
// @Accept json
// @Produce json
// @Param id path string true "Rate ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /compensation/rates/{id} [put]
func (h *CompensationHandler) UpdateRate(c *gin.Context) {
	var payload struct {
		RatePerLesson float64 `json:"rate_per_lesson" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "rate_per_lesson must be positive"))
		return
	}

	rate, err := h.service.UpdateRate(c.Request.Context(), c.Param("id"), payload.RatePerLesson)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rate, nil)
}

// DeleteRate godoc
// @Summary Delete a compensation rate
// @Tags Compensation
// @Produce json
// @Param id path string true "Rate ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /compensation/rates/{id} [delete]
func (h *CompensationHandler) DeleteRate(c *gin.Context) {
	if err := h.service.DeleteRate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
