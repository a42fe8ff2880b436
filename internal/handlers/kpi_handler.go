package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "plancast/internal/errors"
	"plancast/internal/models"
	"plancast/internal/services"
)

// KPIHandler handles derived-KPI requests.
type KPIHandler struct {
	kpiService   services.KPIServicer
	auditService services.AuditServicer
}

// NewKPIHandler creates a new KPIHandler.
func NewKPIHandler(kpiService services.KPIServicer, auditService services.AuditServicer) *KPIHandler {
	return &KPIHandler{kpiService: kpiService, auditService: auditService}
}

// CalculateKPIsRequest represents the request payload for a KPI computation
type CalculateKPIsRequest struct {
	Scenario                string           `json:"scenario" binding:"required,scenario"`
	TrailingPeriods         int              `json:"trailing_periods" binding:"omitempty,min=1,max=120"`
	OpeningCashBalance      *decimal.Decimal `json:"opening_cash_balance"`
	NewCustomers            *decimal.Decimal `json:"new_customers"`
	AvgRevenuePerCustomer   *decimal.Decimal `json:"avg_revenue_per_customer"`
	CustomerLifetimePeriods *decimal.Decimal `json:"customer_lifetime_periods"`
}

func (r CalculateKPIsRequest) assumptions() services.KPIAssumptions {
	return services.KPIAssumptions{
		TrailingPeriods:         r.TrailingPeriods,
		OpeningCashBalance:      r.OpeningCashBalance,
		NewCustomers:            r.NewCustomers,
		AvgRevenuePerCustomer:   r.AvgRevenuePerCustomer,
		CustomerLifetimePeriods: r.CustomerLifetimePeriods,
	}
}

// CalculateKPIs handles the computation and persistence of a scenario's KPIs
// @Summary     Calculate KPIs
// @Description Compute the full KPI catalogue for a scenario and persist it, replacing prior values; undefined KPIs are stored with a null value
// @Tags        kpis
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Plan ID"
// @Param       request body CalculateKPIsRequest true "Scenario and assumptions"
// @Success     200 {object} map[string]interface{} "Computed KPIs"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/kpis [post]
func (h *KPIHandler) CalculateKPIs(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CalculateKPIsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	kpis, err := h.kpiService.CalculateKPIs(planID, models.Scenario(req.Scenario), req.assumptions())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "CALCULATE_KPIS", "plan", planID, c.ClientIP(),
		map[string]interface{}{"scenario": req.Scenario})

	c.JSON(http.StatusOK, gin.H{"kpis": kpis})
}

// CalculateAllScenarios handles KPI computation across every scenario
// @Summary     Calculate KPIs for all scenarios
// @Description Compute and persist the KPI catalogue once per scenario, keyed separately
// @Tags        kpis
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Plan ID"
// @Param       request body CalculateKPIsRequest true "Assumptions (scenario field ignored)"
// @Success     200 {object} map[string]interface{} "KPIs per scenario"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/kpis/scenarios [post]
func (h *KPIHandler) CalculateAllScenarios(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	// Scenario is not required here; bind the assumptions directly.
	var req struct {
		TrailingPeriods         int              `json:"trailing_periods" binding:"omitempty,min=1,max=120"`
		OpeningCashBalance      *decimal.Decimal `json:"opening_cash_balance"`
		NewCustomers            *decimal.Decimal `json:"new_customers"`
		AvgRevenuePerCustomer   *decimal.Decimal `json:"avg_revenue_per_customer"`
		CustomerLifetimePeriods *decimal.Decimal `json:"customer_lifetime_periods"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	results, err := h.kpiService.CalculateAllScenarios(planID, services.KPIAssumptions{
		TrailingPeriods:         req.TrailingPeriods,
		OpeningCashBalance:      req.OpeningCashBalance,
		NewCustomers:            req.NewCustomers,
		AvgRevenuePerCustomer:   req.AvgRevenuePerCustomer,
		CustomerLifetimePeriods: req.CustomerLifetimePeriods,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "CALCULATE_KPIS_ALL", "plan", planID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"scenarios": results})
}

// GetKPIByName handles the retrieval of a single named KPI
// @Summary     Get KPI by name
// @Description Get the latest computed value of one KPI; an undefined value is a computation failure, not a silent null
// @Tags        kpis
// @Produce     json
// @Security    BearerAuth
// @Param       id       path  string true  "Plan ID"
// @Param       name     path  string true  "KPI name"
// @Param       scenario query string false "Scenario (default realistic)"
// @Success     200 {object} map[string]interface{} "KPI"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "KPI not found"
// @Failure     422 {object} ErrorResponse "KPI undefined for the stored data"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/kpis/{name} [get]
func (h *KPIHandler) GetKPIByName(c *gin.Context) {
	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
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

	kpi, err := h.kpiService.GetKPIByName(planID, c.Param("name"), scenario)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kpi": kpi})
}

// ListKPIsByCategory handles the category-filtered listing of computed KPIs
// @Summary     List KPIs by category
// @Description Get the plan's computed KPIs, optionally filtered by category
// @Tags        kpis
// @Produce     json
// @Security    BearerAuth
// @Param       id       path  string true  "Plan ID"
// @Param       category query string false "KPI category (profitability, liquidity, unit_economics)"
// @Success     200 {object} map[string]interface{} "KPIs"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/kpis [get]
func (h *KPIHandler) ListKPIsByCategory(c *gin.Context) {
	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	kpis, err := h.kpiService.ListKPIsByCategory(planID, c.Query("category"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kpis": kpis})
}
