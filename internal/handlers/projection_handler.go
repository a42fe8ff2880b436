package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "plancast/internal/errors"
	"plancast/internal/models"
	"plancast/internal/pagination"
	"plancast/internal/services"
)

// ProjectionHandler handles projection line-item requests.
type ProjectionHandler struct {
	projectionService services.ProjectionServicer
	auditService      services.AuditServicer
}

// NewProjectionHandler creates a new ProjectionHandler.
func NewProjectionHandler(projectionService services.ProjectionServicer, auditService services.AuditServicer) *ProjectionHandler {
	return &ProjectionHandler{projectionService: projectionService, auditService: auditService}
}

// ProjectionRequest represents the request payload for creating or updating a projection
type ProjectionRequest struct {
	Name        string          `json:"name" binding:"required,max=255"`
	Description string          `json:"description" binding:"max=1000"`
	Type        string          `json:"type" binding:"required,projection_type"`
	Scenario    string          `json:"scenario" binding:"required,scenario"`
	Year        int             `json:"year" binding:"required"`
	Month       int             `json:"month" binding:"required,min=1,max=12"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Currency    string          `json:"currency" binding:"required,iso4217"`
	Category    string          `json:"category" binding:"required,max=100"`
	Subcategory string          `json:"subcategory" binding:"max=100"`
	IsRecurring bool            `json:"is_recurring"`
	Frequency   string          `json:"frequency" binding:"omitempty,frequency"`
	GrowthRate  decimal.Decimal `json:"growth_rate"`
	Assumptions string          `json:"assumptions" binding:"max=2000"`
}

func (r ProjectionRequest) toInput() services.ProjectionInput {
	return services.ProjectionInput{
		Name:        r.Name,
		Description: r.Description,
		Type:        models.ProjectionType(r.Type),
		Scenario:    models.Scenario(r.Scenario),
		Year:        r.Year,
		Month:       r.Month,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Category:    r.Category,
		Subcategory: r.Subcategory,
		IsRecurring: r.IsRecurring,
		Frequency:   models.Frequency(r.Frequency),
		GrowthRate:  r.GrowthRate,
		Assumptions: r.Assumptions,
	}
}

// CreateProjection handles the creation of a new projection item
// @Summary     Create a projection
// @Description Create a new projection line item; the base amount is resolved against the plan's reporting currency at write time
// @Tags        projections
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Plan ID"
// @Param       request body ProjectionRequest true "Projection details"
// @Success     201 {object} map[string]interface{} "Projection created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan, currency, or rate not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/projections [post]
func (h *ProjectionHandler) CreateProjection(c *gin.Context) {
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

	var req ProjectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	item, err := h.projectionService.CreateProjection(actor, planID, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "CREATE_PROJECTION", "projection", item.ID, c.ClientIP(),
		map[string]interface{}{"plan_id": planID, "type": req.Type, "scenario": req.Scenario, "amount": req.Amount.String()})

	c.JSON(http.StatusCreated, gin.H{"projection": item})
}

// GetProjection handles the retrieval of a single projection item
// @Summary     Get projection by ID
// @Description Get a specific projection line item scoped to its plan
// @Tags        projections
// @Produce     json
// @Security    BearerAuth
// @Param       id           path string true "Plan ID"
// @Param       projectionID path string true "Projection ID"
// @Success     200 {object} map[string]interface{} "Projection"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Projection not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/projections/{projectionID} [get]
func (h *ProjectionHandler) GetProjection(c *gin.Context) {
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

	item, err := h.projectionService.GetProjectionByID(planID, projectionID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projection": item})
}

// GetPlanProjections handles the filtered, paginated listing of plan projections
// @Summary     List plan projections
// @Description Get a paginated list of a plan's projection items with optional filters
// @Tags        projections
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Plan ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Param       scenario  query string false "Filter by scenario (optimistic, realistic, pessimistic)"
// @Param       type      query string false "Filter by projection type"
// @Param       category  query string false "Filter by category"
// @Param       from_year query int    false "Filter by first year (inclusive)"
// @Param       to_year   query int    false "Filter by last year (inclusive)"
// @Success     200 {object} pagination.PageResponse[models.ProjectionItem] "Paginated projections"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/projections [get]
func (h *ProjectionHandler) GetPlanProjections(c *gin.Context) {
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

	filter, err := parseProjectionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.projectionService.GetPlanProjections(planID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseProjectionFilter(c *gin.Context) (services.ProjectionFilter, error) {
	var filter services.ProjectionFilter

	if v := c.Query("scenario"); v != "" {
		scenario := models.Scenario(v)
		switch scenario {
		case models.ScenarioOptimistic, models.ScenarioRealistic, models.ScenarioPessimistic:
			filter.Scenario = &scenario
		default:
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid scenario, must be optimistic, realistic, or pessimistic")
		}
	}

	if v := c.Query("type"); v != "" {
		ptype := models.ProjectionType(v)
		switch ptype {
		case models.ProjectionTypeRevenue, models.ProjectionTypeExpense,
			models.ProjectionTypeCashFlow, models.ProjectionTypeInvestment,
			models.ProjectionTypeFunding:
			filter.Type = &ptype
		default:
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid type")
		}
	}

	if v := c.Query("category"); v != "" {
		category := v
		filter.Category = &category
	}

	if v := c.Query("from_year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid from_year")
		}
		filter.FromYear = &year
	}

	if v := c.Query("to_year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid to_year")
		}
		filter.ToYear = &year
	}

	return filter, nil
}

// UpdateProjection handles updating an existing projection item
// @Summary     Update projection
// @Description Replace a projection's editable fields; the base amount is re-resolved at the new period
// @Tags        projections
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id           path string            true "Plan ID"
// @Param       projectionID path string            true "Projection ID"
// @Param       request      body ProjectionRequest true "Projection details"
// @Success     200 {object} map[string]interface{} "Projection updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Projection not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/projections/{projectionID} [put]
func (h *ProjectionHandler) UpdateProjection(c *gin.Context) {
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
	projectionID, err := parsePathID(c, "projectionID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ProjectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	item, err := h.projectionService.UpdateProjection(actor, planID, projectionID, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "UPDATE_PROJECTION", "projection", item.ID, c.ClientIP(),
		map[string]interface{}{"plan_id": planID})

	c.JSON(http.StatusOK, gin.H{"projection": item})
}

// DeleteProjection handles soft-deleting a projection item
// @Summary     Delete projection
// @Description Soft-delete a projection line item
// @Tags        projections
// @Produce     json
// @Security    BearerAuth
// @Param       id           path string true "Plan ID"
// @Param       projectionID path string true "Projection ID"
// @Success     200 {object} map[string]interface{} "Projection deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Projection not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/projections/{projectionID} [delete]
func (h *ProjectionHandler) DeleteProjection(c *gin.Context) {
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
	projectionID, err := parsePathID(c, "projectionID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.projectionService.DeleteProjection(actor, planID, projectionID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "DELETE_PROJECTION", "projection", projectionID, c.ClientIP(),
		map[string]interface{}{"plan_id": planID})

	c.JSON(http.StatusOK, gin.H{"message": "Projection deleted"})
}
