package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "plancast/internal/errors"
	"plancast/internal/models"
	"plancast/internal/pagination"
	"plancast/internal/services"
)

// InvestmentHandler handles investment-analysis requests.
type InvestmentHandler struct {
	investmentService services.InvestmentServicer
	auditService      services.AuditServicer
}

// NewInvestmentHandler creates a new InvestmentHandler.
func NewInvestmentHandler(investmentService services.InvestmentServicer, auditService services.AuditServicer) *InvestmentHandler {
	return &InvestmentHandler{investmentService: investmentService, auditService: auditService}
}

// CreateAnalysisRequest represents the request payload for creating an analysis
type CreateAnalysisRequest struct {
	Name              string            `json:"name" binding:"required,max=255"`
	AnalysisType      string            `json:"analysis_type" binding:"required,analysis_type"`
	InitialInvestment decimal.Decimal   `json:"initial_investment" binding:"required"`
	ExpectedReturn    decimal.Decimal   `json:"expected_return"`
	DiscountRate      decimal.Decimal   `json:"discount_rate"`
	AnalysisPeriods   int               `json:"analysis_periods" binding:"omitempty,min=1,max=600"`
	Currency          string            `json:"currency" binding:"required,iso4217"`
	RiskLevel         string            `json:"risk_level" binding:"omitempty,risk_level"`
	FundingSource     string            `json:"funding_source" binding:"max=255"`
	CashFlows         []decimal.Decimal `json:"cash_flows"`
	Scenario          string            `json:"scenario" binding:"omitempty,scenario"`
}

// CreateAnalysis handles the creation of a new investment analysis
// @Summary     Create an analysis
// @Description Create an investment analysis; ROI, NPV, and IRR are computed before anything is stored
// @Tags        analyses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Plan ID"
// @Param       request body CreateAnalysisRequest true "Analysis details"
// @Success     201 {object} map[string]interface{} "Analysis created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     422 {object} ErrorResponse "IRR did not converge"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/analyses [post]
func (h *InvestmentHandler) CreateAnalysis(c *gin.Context) {
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

	var req CreateAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	analysis, err := h.investmentService.CreateAnalysis(actor, planID, services.AnalysisInput{
		Name:              req.Name,
		AnalysisType:      models.AnalysisType(req.AnalysisType),
		InitialInvestment: req.InitialInvestment,
		ExpectedReturn:    req.ExpectedReturn,
		DiscountRate:      req.DiscountRate,
		AnalysisPeriods:   req.AnalysisPeriods,
		Currency:          req.Currency,
		RiskLevel:         models.RiskLevel(req.RiskLevel),
		FundingSource:     req.FundingSource,
		CashFlows:         req.CashFlows,
		Scenario:          models.Scenario(req.Scenario),
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "CREATE_ANALYSIS", "investment_analysis", analysis.ID, c.ClientIP(),
		map[string]interface{}{"plan_id": planID, "analysis_type": req.AnalysisType})

	c.JSON(http.StatusCreated, gin.H{"analysis": analysis})
}

// GetAnalysis handles the retrieval of a single analysis
// @Summary     Get analysis by ID
// @Description Get a specific investment analysis scoped to its plan
// @Tags        analyses
// @Produce     json
// @Security    BearerAuth
// @Param       id         path string true "Plan ID"
// @Param       analysisID path string true "Analysis ID"
// @Success     200 {object} map[string]interface{} "Analysis"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Analysis not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/analyses/{analysisID} [get]
func (h *InvestmentHandler) GetAnalysis(c *gin.Context) {
	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	analysisID, err := parsePathID(c, "analysisID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	analysis, err := h.investmentService.GetAnalysisByID(planID, analysisID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

// GetPlanAnalyses handles the paginated listing of a plan's analyses
// @Summary     List plan analyses
// @Description Get a paginated list of a plan's investment analyses, newest first
// @Tags        analyses
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Plan ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.InvestmentAnalysis] "Paginated analyses"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/analyses [get]
func (h *InvestmentHandler) GetPlanAnalyses(c *gin.Context) {
	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.investmentService.GetPlanAnalyses(planID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RecomputeAnalysis handles re-deriving an analysis's metrics from its stored inputs
// @Summary     Recompute analysis
// @Description Re-derive ROI, NPV, and IRR from the stored inputs, replacing all derived fields together
// @Tags        analyses
// @Produce     json
// @Security    BearerAuth
// @Param       id         path string true "Plan ID"
// @Param       analysisID path string true "Analysis ID"
// @Success     200 {object} map[string]interface{} "Recomputed analysis"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Analysis not found"
// @Failure     422 {object} ErrorResponse "IRR did not converge"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/analyses/{analysisID}/recompute [post]
func (h *InvestmentHandler) RecomputeAnalysis(c *gin.Context) {
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
	analysisID, err := parsePathID(c, "analysisID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	analysis, err := h.investmentService.RecomputeAnalysis(actor, planID, analysisID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "RECOMPUTE_ANALYSIS", "investment_analysis", analysisID, c.ClientIP(),
		map[string]interface{}{"plan_id": planID})

	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

// ROIRequest represents the request payload for an on-demand ROI calculation
type ROIRequest struct {
	InitialInvestment decimal.Decimal `json:"initial_investment" binding:"required"`
	ExpectedReturn    decimal.Decimal `json:"expected_return" binding:"required"`
}

// CalculateROI handles an on-demand ROI calculation
// @Summary     Calculate ROI
// @Description Compute return on investment from an initial investment and expected return
// @Tags        analyses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string     true "Plan ID"
// @Param       request body ROIRequest true "ROI inputs"
// @Success     200 {object} map[string]interface{} "ROI"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/calculations/roi [post]
func (h *InvestmentHandler) CalculateROI(c *gin.Context) {
	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ROIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	roi, err := h.investmentService.CalculateROI(planID, req.InitialInvestment, req.ExpectedReturn)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roi": roi})
}

// CashFlowCalculationRequest represents the request payload for NPV and IRR calculations
type CashFlowCalculationRequest struct {
	InitialInvestment decimal.Decimal   `json:"initial_investment" binding:"required"`
	DiscountRate      decimal.Decimal   `json:"discount_rate"`
	CashFlows         []decimal.Decimal `json:"cash_flows"`
	Scenario          string            `json:"scenario" binding:"omitempty,scenario"`
	Periods           int               `json:"periods" binding:"omitempty,min=1,max=600"`
}

func (r CashFlowCalculationRequest) params() services.CashFlowParams {
	return services.CashFlowParams{
		InitialInvestment: r.InitialInvestment,
		CashFlows:         r.CashFlows,
		Scenario:          models.Scenario(r.Scenario),
		Periods:           r.Periods,
	}
}

// CalculateNPV handles an on-demand NPV calculation
// @Summary     Calculate NPV
// @Description Compute net present value from explicit cash flows or a scenario's projected flows
// @Tags        analyses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                     true "Plan ID"
// @Param       request body CashFlowCalculationRequest true "NPV inputs"
// @Success     200 {object} map[string]interface{} "NPV"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/calculations/npv [post]
func (h *InvestmentHandler) CalculateNPV(c *gin.Context) {
	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CashFlowCalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	npv, err := h.investmentService.CalculateNPV(planID, req.DiscountRate, req.params())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"npv": npv})
}

// CalculateIRR handles an on-demand IRR calculation
// @Summary     Calculate IRR
// @Description Compute internal rate of return from explicit cash flows or a scenario's projected flows
// @Tags        analyses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                     true "Plan ID"
// @Param       request body CashFlowCalculationRequest true "IRR inputs"
// @Success     200 {object} map[string]interface{} "IRR"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     422 {object} ErrorResponse "IRR did not converge"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/calculations/irr [post]
func (h *InvestmentHandler) CalculateIRR(c *gin.Context) {
	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CashFlowCalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	irr, err := h.investmentService.CalculateIRR(planID, req.params())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"irr": irr})
}
