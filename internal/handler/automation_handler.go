package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/accademia-musici/academy-api/internal/service"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
	"github.com/accademia-musici/academy-api/pkg/response"
)

// AutomationHandler exposes the bookkeeping sweeps as admin endpoints so they
// can be driven by an external scheduler.
type AutomationHandler struct {
	payments      *service.PaymentService
	notifications *service.NotificationService
	metrics       *service.MetricsService
}

// NewAutomationHandler creates a new handler.
func NewAutomationHandler(payments *service.PaymentService, notifications *service.NotificationService, metrics *service.MetricsService) *AutomationHandler {
	return &AutomationHandler{payments: payments, notifications: notifications, metrics: metrics}
}

// SweepOverdue godoc
// @Summary Flag overdue payments
// @Description Moves pending payments past their tolerance window to OVERDUE
// @Tags Automation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /automation/payments/overdue [post]
func (h *AutomationHandler) SweepOverdue(c *gin.Context) {
	rows, err := h.payments.AdvanceOverdue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSweep("overdue", rows)
	response.JSON(c, http.StatusOK, gin.H{"updated": rows}, nil)
}

// GenerateMonthly godoc
// @Summary Generate monthly payment entries
// @Description Creates missing entries for the given period, skipping existing ones. Amount and description default to the configured fee.
// @Tags Automation
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /automation/payments/monthly [post]
func (h *AutomationHandler) GenerateMonthly(c *gin.Context) {
	now := time.Now().UTC()
	payload := struct {
		Year        int      `json:"year"`
		Month       int      `json:"month"`
		Amount      *float64 `json:"amount"`
		Description *string  `json:"description"`
	}{Year: now.Year(), Month: int(now.Month())}
	if err := c.ShouldBindJSON(&payload); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid period payload"))
		return
	}
	if payload.Month < 1 || payload.Month > 12 || payload.Year < 2000 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "period out of range"))
		return
	}

	created, err := h.payments.GenerateMonthly(c.Request.Context(), service.GenerateMonthlyRequest{
		Year:        payload.Year,
		Month:       time.Month(payload.Month),
		Amount:      payload.Amount,
		Description: payload.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSweep("monthly_generation", int64(created))
	response.JSON(c, http.StatusOK, gin.H{"created": created}, nil)
}

// PaymentReminders godoc
// @Summary Notify users with overdue payments
// @Tags Automation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /automation/reminders/payments [post]
func (h *AutomationHandler) PaymentReminders(c *gin.Context) {
	notified, err := h.notifications.SendPaymentReminders(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSweep("payment_reminders", int64(notified))
	response.JSON(c, http.StatusOK, gin.H{"notified": notified}, nil)
}

// ExpiryReminders godoc
// @Summary Notify users with expiring annual memberships
// @Tags Automation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /automation/reminders/expiry [post]
func (h *AutomationHandler) ExpiryReminders(c *gin.Context) {
	notified, err := h.notifications.SendExpiryReminders(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSweep("expiry_reminders", int64(notified))
	response.JSON(c, http.StatusOK, gin.H{"notified": notified}, nil)
}
