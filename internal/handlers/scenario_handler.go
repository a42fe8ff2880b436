package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "plancast/internal/errors"
	"plancast/internal/services"
)

// ScenarioHandler handles cross-scenario analysis requests.
type ScenarioHandler struct {
	scenarioService services.ScenarioServicer
}

// NewScenarioHandler creates a new ScenarioHandler.
func NewScenarioHandler(scenarioService services.ScenarioServicer) *ScenarioHandler {
	return &ScenarioHandler{scenarioService: scenarioService}
}

// CompareScenarios handles the side-by-side scenario comparison
// @Summary     Compare scenarios
// @Description Compute KPIs and return metrics once per scenario; scenarios with no data report null metrics rather than borrowing values
// @Tags        scenarios
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Plan ID"
// @Success     200 {object} map[string]interface{} "Per-scenario metrics"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     408 {object} ErrorResponse "Cancelled"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/scenarios/comparison [get]
func (h *ScenarioHandler) CompareScenarios(c *gin.Context) {
	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	comparison, err := h.scenarioService.CompareScenarios(c.Request.Context(), planID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comparison": comparison})
}

// SensitivityRequest represents the request payload for a sensitivity analysis
type SensitivityRequest struct {
	Variable string            `json:"variable" binding:"required,sensitivity_variable"`
	Deltas   []decimal.Decimal `json:"deltas" binding:"required,min=1,max=50"`
}

// Sensitivity handles the single-variable sensitivity analysis
// @Summary     Run sensitivity analysis
// @Description Recompute NPV for each delta with one variable perturbed; results preserve the request's delta order
// @Tags        scenarios
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Plan ID"
// @Param       request body SensitivityRequest true "Variable and deltas"
// @Success     200 {object} map[string]interface{} "Sensitivity points"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan or baseline analysis not found"
// @Failure     408 {object} ErrorResponse "Cancelled"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/scenarios/sensitivity [post]
func (h *ScenarioHandler) Sensitivity(c *gin.Context) {
	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SensitivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	points, err := h.scenarioService.Sensitivity(c.Request.Context(), planID, req.Variable, req.Deltas)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"variable": req.Variable, "points": points})
}

// BreakEven handles the break-even scan of the Realistic scenario
// @Summary     Get break-even point
// @Description Scan the Realistic scenario's cumulative cash flow for the first non-negative period, interpolating between periods
// @Tags        scenarios
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Plan ID"
// @Success     200 {object} map[string]interface{} "Break-even result"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/break-even [get]
func (h *ScenarioHandler) BreakEven(c *gin.Context) {
	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.scenarioService.BreakEven(planID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"break_even": result})
}
