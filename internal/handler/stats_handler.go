package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/accademia-musici/academy-api/internal/service"
	"github.com/accademia-musici/academy-api/pkg/response"
)

// StatsHandler exposes the cached admin dashboard counters.
type StatsHandler struct {
	service *service.StatsService
}

// NewStatsHandler creates a new handler.
func NewStatsHandler(svc *service.StatsService) *StatsHandler {
	return &StatsHandler{service: svc}
}

// Admin godoc
// @Summary Admin dashboard statistics
// @Description Counters are cached in Redis for a short TTL
// @Tags Stats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stats/admin [get]
func (h *StatsHandler) Admin(c *gin.Context) {
	stats, err := h.service.AdminStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
