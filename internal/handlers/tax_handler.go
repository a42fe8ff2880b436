package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "plancast/internal/errors"
	"plancast/internal/models"
	"plancast/internal/pagination"
	"plancast/internal/services"
)

// TaxHandler handles tax-rule and tax-calculation requests.
type TaxHandler struct {
	taxService   services.TaxServicer
	auditService services.AuditServicer
}

// NewTaxHandler creates a new TaxHandler.
func NewTaxHandler(taxService services.TaxServicer, auditService services.AuditServicer) *TaxHandler {
	return &TaxHandler{taxService: taxService, auditService: auditService}
}

// CalculateTaxRequest represents the request payload for a standalone tax calculation
type CalculateTaxRequest struct {
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Currency string          `json:"currency" binding:"required,iso4217"`
	Category string          `json:"category" binding:"required,max=100"`
	Country  string          `json:"country" binding:"required,max=100"`
	Region   string          `json:"region" binding:"max=100"`
	Date     *string         `json:"date"`
}

// CalculateTax handles a standalone tax calculation
// @Summary     Calculate tax
// @Description Apply the effective tax rule for a jurisdiction and category to an amount
// @Tags        tax
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CalculateTaxRequest true "Calculation inputs"
// @Success     200 {object} map[string]interface{} "Tax calculation"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "No applicable tax rule"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /tax/calculate [post]
func (h *TaxHandler) CalculateTax(c *gin.Context) {
	var req CalculateTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var date time.Time
	if req.Date != nil && *req.Date != "" {
		parsed, parseErr := parseFlexibleTime(*req.Date)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid date format, use RFC3339 or YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	calculation, err := h.taxService.CalculateTax(services.TaxCalculationRequest{
		Amount:       req.Amount,
		Currency:     req.Currency,
		Category:     req.Category,
		Jurisdiction: services.Jurisdiction{Country: req.Country, Region: req.Region},
		Date:         date,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calculation": calculation})
}

// ProjectionTaxRequest represents the jurisdiction payload for projection tax calculations
type ProjectionTaxRequest struct {
	Country string `json:"country" binding:"required,max=100"`
	Region  string `json:"region" binding:"max=100"`
}

// CalculateProjectionTax handles the tax calculation for a single projection item
// @Summary     Calculate projection tax
// @Description Apply the effective tax rule to a projection item's base amount at its period date
// @Tags        tax
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id           path string               true "Plan ID"
// @Param       projectionID path string               true "Projection ID"
// @Param       request      body ProjectionTaxRequest true "Jurisdiction"
// @Success     200 {object} map[string]interface{} "Tax calculation"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Projection or tax rule not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/projections/{projectionID}/tax [post]
func (h *TaxHandler) CalculateProjectionTax(c *gin.Context) {
	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	projectionID, err := parsePathID(c, "projectionID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ProjectionTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	calculation, err := h.taxService.CalculateProjectionTax(planID, projectionID,
		services.Jurisdiction{Country: req.Country, Region: req.Region})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calculation": calculation})
}

// PlanTaxRequest represents the payload for a batch plan tax calculation
type PlanTaxRequest struct {
	Scenario string `json:"scenario" binding:"required,scenario"`
	Country  string `json:"country" binding:"required,max=100"`
	Region   string `json:"region" binding:"max=100"`
}

// CalculatePlanTaxes handles the batch tax calculation across a scenario's projections
// @Summary     Calculate plan taxes
// @Description Apply tax rules to every projection in a scenario; failing items carry their own error instead of aborting the batch
// @Tags        tax
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string         true "Plan ID"
// @Param       request body PlanTaxRequest true "Scenario and jurisdiction"
// @Success     200 {object} map[string]interface{} "Per-item outcomes"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/tax [post]
func (h *TaxHandler) CalculatePlanTaxes(c *gin.Context) {
	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PlanTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	outcomes, err := h.taxService.CalculatePlanTaxes(planID, models.Scenario(req.Scenario),
		services.Jurisdiction{Country: req.Country, Region: req.Region})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

// ListTaxRules handles the paginated listing of tax rules
// @Summary     List tax rules
// @Description Get the tax rules for a country, optionally narrowed to a region plus the country-wide fallbacks
// @Tags        tax
// @Produce     json
// @Security    BearerAuth
// @Param       country   query string true  "Country"
// @Param       region    query string false "Region"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.TaxRule] "Paginated tax rules"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /tax/rules [get]
func (h *TaxHandler) ListTaxRules(c *gin.Context) {
	country := c.Query("country")
	if country == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "country query parameter is required"))
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.taxService.ListTaxRules(country, c.Query("region"), page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// TaxBracketRequest is one tier of a progressive schedule in a rule payload
type TaxBracketRequest struct {
	UpTo *decimal.Decimal `json:"up_to"`
	Rate decimal.Decimal  `json:"rate"`
}

// CreateTaxRuleRequest represents the request payload for creating a tax rule
type CreateTaxRuleRequest struct {
	Country       string              `json:"country" binding:"required,max=100"`
	Region        string              `json:"region" binding:"max=100"`
	Category      string              `json:"category" binding:"required,max=100"`
	Rate          decimal.Decimal     `json:"rate"`
	Brackets      []TaxBracketRequest `json:"brackets"`
	Currency      string              `json:"currency" binding:"required,iso4217"`
	EffectiveFrom string              `json:"effective_from" binding:"required"`
	EffectiveTo   *string             `json:"effective_to"`
	Description   string              `json:"description" binding:"max=1000"`
}

// CreateTaxRule handles the creation of a new tax rule
// @Summary     Create a tax rule
// @Description Create an effective-dated tax rule, either flat-rate or progressive
// @Tags        tax
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTaxRuleRequest true "Rule details"
// @Success     201 {object} map[string]interface{} "Rule created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Currency not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /tax/rules [post]
func (h *TaxHandler) CreateTaxRule(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTaxRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	effectiveFrom, err := parseFlexibleTime(req.EffectiveFrom)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid effective_from format, use RFC3339 or YYYY-MM-DD"))
		return
	}

	var effectiveTo *time.Time
	if req.EffectiveTo != nil && *req.EffectiveTo != "" {
		parsed, parseErr := parseFlexibleTime(*req.EffectiveTo)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid effective_to format, use RFC3339 or YYYY-MM-DD"))
			return
		}
		effectiveTo = &parsed
	}

	brackets := make(models.TaxBrackets, 0, len(req.Brackets))
	for _, b := range req.Brackets {
		brackets = append(brackets, models.TaxBracket{UpTo: b.UpTo, Rate: b.Rate})
	}

	rule, err := h.taxService.CreateTaxRule(actor, services.TaxRuleInput{
		Country:       req.Country,
		Region:        req.Region,
		Category:      req.Category,
		Rate:          req.Rate,
		Brackets:      brackets,
		Currency:      req.Currency,
		EffectiveFrom: effectiveFrom,
		EffectiveTo:   effectiveTo,
		Description:   req.Description,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "CREATE_TAX_RULE", "tax_rule", rule.ID, c.ClientIP(),
		map[string]interface{}{"country": req.Country, "region": req.Region, "category": req.Category})

	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}
