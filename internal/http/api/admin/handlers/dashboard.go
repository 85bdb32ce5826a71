package handlers

import (
	"net/http"

	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/receipt"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// DashboardHandler serves the back-office summary.
type DashboardHandler struct {
	receipts *receipt.Service
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(receipts *receipt.Service) *DashboardHandler {
	return &DashboardHandler{receipts: receipts}
}

// Summary returns member and approval counters.
func (h *DashboardHandler) Summary(c *gin.Context) {
	stats, errStats := h.receipts.Stats(c.Request.Context())
	if errStats != nil {
		log.WithError(errStats).Error("dashboard: stats failed")
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "query failed")
		return
	}
	c.JSON(http.StatusOK, stats)
}
