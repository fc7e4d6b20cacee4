package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/accademia-musici/academy-api/internal/models"
	"github.com/accademia-musici/academy-api/internal/service"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
	"github.com/accademia-musici/academy-api/pkg/response"
)

// PaymentRequestHandler wires HTTP endpoints to the payment request workflow.
type PaymentRequestHandler struct {
	service *service.PaymentRequestService
}

// NewPaymentRequestHandler creates a new handler.
func NewPaymentRequestHandler(svc *service.PaymentRequestService) *PaymentRequestHandler {
	return &PaymentRequestHandler{service: svc}
}

// List godoc
// @Summary List payment requests
// @Description Non-staff callers only see their own requests
// @Tags PaymentRequests
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /payment-requests [get]
func (h *PaymentRequestHandler) List(c *gin.Context) {
	user := userFromContext(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var status *models.PaymentRequestStatus
	if statusParam := c.Query("status"); statusParam != "" {
		candidate := models.PaymentRequestStatus(statusParam)
		switch candidate {
		case models.RequestPending, models.RequestConfirmed, models.RequestApproved, models.RequestRejected:
			status = &candidate
		default:
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown request status"))
			return
		}
	}

	requests, err := h.service.List(c.Request.Context(), user, status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Get godoc
// @Summary Get payment request
// @Tags PaymentRequests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payment-requests/{id} [get]
func (h *PaymentRequestHandler) Get(c *gin.Context) {
	user := userFromContext(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	request, err := h.service.Get(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Create godoc
// @Summary Create payment request
// @Description Opens a request and notifies the target user
// @Tags PaymentRequests
// @Accept json
// @Produce json
// @Param payload body service.CreatePaymentRequestRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /payment-requests [post]
func (h *PaymentRequestHandler) Create(c *gin.Context) {
	var req service.CreatePaymentRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}

	request, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Confirm godoc
// @Summary Confirm a pending payment request
// @Description Only the request owner can confirm
// @Tags PaymentRequests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payment-requests/{id}/confirm [post]
func (h *PaymentRequestHandler) Confirm(c *gin.Context) {
	user := userFromContext(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ConfirmPaymentRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid confirm payload"))
		return
	}

	request, err := h.service.Confirm(c.Request.Context(), user, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Approve godoc
// @Summary Approve a confirmed payment request
// @Description Materialises the paid payment entry atomically
// @Tags PaymentRequests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payment-requests/{id}/approve [post]
func (h *PaymentRequestHandler) Approve(c *gin.Context) {
	user := userFromContext(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	request, err := h.service.Approve(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Reject godoc
// @Summary Reject a payment request
// @Tags PaymentRequests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.RejectPaymentRequestRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payment-requests/{id}/reject [post]
func (h *PaymentRequestHandler) Reject(c *gin.Context) {
	var req service.RejectPaymentRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "rejection reason required"))
		return
	}

	request, err := h.service.Reject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
