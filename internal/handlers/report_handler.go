package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "plancast/internal/errors"
	"plancast/internal/models"
	"plancast/internal/services"
)

// ReportHandler handles financial report requests.
type ReportHandler struct {
	reportService services.ReportServicer
	timeout       time.Duration
}

// NewReportHandler creates a new ReportHandler. Generation is bounded by
// timeout; a report that exceeds it is abandoned and reported as cancelled.
func NewReportHandler(reportService services.ReportServicer, timeout time.Duration) *ReportHandler {
	return &ReportHandler{reportService: reportService, timeout: timeout}
}

// GenerateReport handles the assembly of a financial report
// @Summary     Generate report
// @Description Assemble a cash-flow, profit-and-loss, or balance-sheet report for a scenario in the plan's reporting currency
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       id       path  string true  "Plan ID"
// @Param       type     path  string true  "Report type (cash_flow, profit_loss, balance_sheet)"
// @Param       scenario query string false "Scenario (default realistic)"
// @Success     200 {object} map[string]interface{} "Report"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     408 {object} ErrorResponse "Generation cancelled or timed out"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/reports/{type} [get]
func (h *ReportHandler) GenerateReport(c *gin.Context) {
	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	reportType := services.ReportType(c.Param("type"))
	switch reportType {
	case services.ReportTypeCashFlow, services.ReportTypeProfitLoss, services.ReportTypeBalanceSheet:
	default:
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid report type, must be cash_flow, profit_loss, or balance_sheet"))
		return
	}

	scenario := models.ScenarioRealistic
	if v := c.Query("scenario"); v != "" {
		scenario = models.Scenario(v)
		switch scenario {
		case models.ScenarioOptimistic, models.ScenarioRealistic, models.ScenarioPessimistic:
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid scenario"))
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	report, err := h.reportService.GenerateReport(ctx, planID, reportType, scenario)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}
