package services

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "plancast/internal/errors"
	"plancast/internal/models"
	"plancast/internal/pagination"
)

// projectionService owns the canonical projection line items of each plan.
type projectionService struct {
	db              *gorm.DB
	planService     PlanServicer
	currencyService CurrencyServicer

	// Per-plan write locks. Writes to the same plan are serialized so a
	// concurrent KPI or report computation never observes a torn item set.
	locks sync.Map
}

// NewProjectionService creates a new ProjectionServicer.
func NewProjectionService(db *gorm.DB, planService PlanServicer, currencyService CurrencyServicer) ProjectionServicer {
	return &projectionService{db: db, planService: planService, currencyService: currencyService}
}

func (s *projectionService) lockPlan(planID string) func() {
	v, _ := s.locks.LoadOrStore(planID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// frequencyStep returns the period stride of a recurrence frequency.
func frequencyStep(f models.Frequency) int {
	switch f {
	case models.FrequencyQuarterly:
		return 3
	case models.FrequencyYearly:
		return 12
	default:
		return 1
	}
}

func validateProjectionInput(in ProjectionInput) error {
	if in.Name == "" {
		return apperrors.WithMessage(apperrors.ErrValidation, "Projection name is required")
	}
	if in.Month < 1 || in.Month > 12 {
		return apperrors.WithMessage(apperrors.ErrValidation, "Month must be between 1 and 12")
	}
	if in.Year < 1900 || in.Year > 2200 {
		return apperrors.WithMessage(apperrors.ErrValidation, fmt.Sprintf("Year %d is out of range", in.Year))
	}
	switch in.Type {
	case models.ProjectionTypeRevenue, models.ProjectionTypeExpense,
		models.ProjectionTypeInvestment, models.ProjectionTypeFunding:
		if in.Amount.Sign() < 0 {
			return apperrors.WithMessage(apperrors.ErrValidation, "Amount must be non-negative for this projection type")
		}
	case models.ProjectionTypeCashFlow:
		// Signed amounts are allowed for raw cash-flow items.
	default:
		return apperrors.WithMessage(apperrors.ErrValidation, "Unknown projection type")
	}
	switch in.Scenario {
	case models.ScenarioOptimistic, models.ScenarioRealistic, models.ScenarioPessimistic:
	default:
		return apperrors.WithMessage(apperrors.ErrValidation, "Unknown scenario")
	}
	if in.Category == "" {
		return apperrors.WithMessage(apperrors.ErrValidation, "Category is required")
	}
	if in.GrowthRate.LessThanOrEqual(decimal.NewFromInt(-1)) {
		return apperrors.WithMessage(apperrors.ErrValidation, "Growth rate must be greater than -100%")
	}
	if in.IsRecurring && in.Frequency == models.FrequencyOneTime {
		return apperrors.WithMessage(apperrors.ErrValidation, "Recurring projections need a monthly, quarterly, or yearly frequency")
	}
	return nil
}

// CreateProjection validates, converts, and stores a new line item. The
// base amount is resolved before anything is written; a failed conversion
// fails the whole create.
func (s *projectionService) CreateProjection(actor, planID string, in ProjectionInput) (*models.ProjectionItem, error) {
	plan, err := s.planService.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if err := validateProjectionInput(in); err != nil {
		return nil, err
	}
	if in.Frequency == "" {
		in.Frequency = models.FrequencyOneTime
	}

	unlock := s.lockPlan(planID)
	defer unlock()

	item := &models.ProjectionItem{
		PlanID:      planID,
		Name:        in.Name,
		Description: in.Description,
		Type:        in.Type,
		Scenario:    in.Scenario,
		Year:        in.Year,
		Month:       in.Month,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Category:    in.Category,
		Subcategory: in.Subcategory,
		IsRecurring: in.IsRecurring,
		Frequency:   in.Frequency,
		GrowthRate:  in.GrowthRate,
		Assumptions: in.Assumptions,
		CreatedBy:   actor,
		UpdatedBy:   actor,
	}

	baseAmount, err := s.currencyService.Convert(in.Amount, in.Currency, plan.ReportingCurrency, item.PeriodDate())
	if err != nil {
		return nil, err
	}
	item.BaseAmount = baseAmount

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(item).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return item, nil
}

// GetProjectionByID returns an item scoped to the plan.
func (s *projectionService) GetProjectionByID(planID, projectionID string) (*models.ProjectionItem, error) {
	var item models.ProjectionItem
	if err := s.db.First(&item, "id = ? AND plan_id = ?", projectionID, planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProjectionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &item, nil
}

// GetPlanProjections returns a filtered, paginated list of plan items.
func (s *projectionService) GetPlanProjections(planID string, page pagination.PageRequest, filter ProjectionFilter) (*pagination.PageResponse[models.ProjectionItem], error) {
	if err := s.planService.Exists(planID); err != nil {
		return nil, err
	}

	page.Defaults()

	query := s.db.Model(&models.ProjectionItem{}).Where("plan_id = ?", planID)
	if filter.Scenario != nil {
		query = query.Where("scenario = ?", *filter.Scenario)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}
	if filter.FromYear != nil {
		query = query.Where("year >= ?", *filter.FromYear)
	}
	if filter.ToYear != nil {
		query = query.Where("year <= ?", *filter.ToYear)
	}

	var totalItems int64
	if err := query.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var items []models.ProjectionItem
	if err := query.Order("year, month, category").
		Scopes(pagination.Paginate(page)).Find(&items).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(items, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetScenarioProjections returns all items of one scenario in period order.
func (s *projectionService) GetScenarioProjections(planID string, scenario models.Scenario) ([]models.ProjectionItem, error) {
	if err := s.planService.Exists(planID); err != nil {
		return nil, err
	}

	var items []models.ProjectionItem
	if err := s.db.
		Where("plan_id = ? AND scenario = ?", planID, scenario).
		Order("year, month, category").
		Find(&items).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return items, nil
}

// UpdateProjection replaces the caller-editable fields and re-resolves the
// base amount against the rate effective at the (possibly new) period.
func (s *projectionService) UpdateProjection(actor, planID, projectionID string, in ProjectionInput) (*models.ProjectionItem, error) {
	plan, err := s.planService.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if err := validateProjectionInput(in); err != nil {
		return nil, err
	}
	if in.Frequency == "" {
		in.Frequency = models.FrequencyOneTime
	}

	unlock := s.lockPlan(planID)
	defer unlock()

	item, err := s.GetProjectionByID(planID, projectionID)
	if err != nil {
		return nil, err
	}

	item.Name = in.Name
	item.Description = in.Description
	item.Type = in.Type
	item.Scenario = in.Scenario
	item.Year = in.Year
	item.Month = in.Month
	item.Amount = in.Amount
	item.Currency = in.Currency
	item.Category = in.Category
	item.Subcategory = in.Subcategory
	item.IsRecurring = in.IsRecurring
	item.Frequency = in.Frequency
	item.GrowthRate = in.GrowthRate
	item.Assumptions = in.Assumptions
	item.UpdatedBy = actor

	baseAmount, err := s.currencyService.Convert(in.Amount, in.Currency, plan.ReportingCurrency, item.PeriodDate())
	if err != nil {
		return nil, err
	}
	item.BaseAmount = baseAmount

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Save(item).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return item, nil
}

// DeleteProjection soft-deletes an item.
func (s *projectionService) DeleteProjection(actor, planID, projectionID string) error {
	if err := s.planService.Exists(planID); err != nil {
		return err
	}

	unlock := s.lockPlan(planID)
	defer unlock()

	item, err := s.GetProjectionByID(planID, projectionID)
	if err != nil {
		return err
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Model(item).Update("updated_by", actor).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		if txErr := tx.Delete(item).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return nil
	}); err != nil {
		return err
	}
	return nil
}

// flowSign returns the cash-flow direction of a projection type: +1 for
// inflows, -1 for outflows, 0 for raw signed cash-flow items.
func flowSign(t models.ProjectionType) int {
	switch t {
	case models.ProjectionTypeRevenue, models.ProjectionTypeFunding:
		return 1
	case models.ProjectionTypeExpense, models.ProjectionTypeInvestment:
		return -1
	default:
		return 0
	}
}

// signedBaseAmount applies the flow direction to an item's base amount.
func signedBaseAmount(item *models.ProjectionItem) decimal.Decimal {
	switch flowSign(item.Type) {
	case 1:
		return item.BaseAmount
	case -1:
		return item.BaseAmount.Neg()
	default:
		return item.BaseAmount
	}
}

// FlowComponents expands the scenario's items into per-period inflow and
// outflow series over the requested horizon, starting at the plan's
// earliest projected period. Recurring items repeat at their frequency
// stride with growth compounded per occurrence. Signed cash-flow items
// contribute to whichever side their sign indicates.
func (s *projectionService) FlowComponents(planID string, scenario models.Scenario, periods int) ([]decimal.Decimal, []decimal.Decimal, error) {
	if periods <= 0 {
		return nil, nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Analysis period must be positive")
	}

	items, err := s.GetScenarioProjections(planID, scenario)
	if err != nil {
		return nil, nil, err
	}

	inflows := make([]decimal.Decimal, periods)
	outflows := make([]decimal.Decimal, periods)
	for i := 0; i < periods; i++ {
		inflows[i] = decimal.Zero
		outflows[i] = decimal.Zero
	}
	if len(items) == 0 {
		return inflows, outflows, nil
	}

	start := items[0].PeriodIndex()
	for i := range items {
		if idx := items[i].PeriodIndex(); idx < start {
			start = idx
		}
	}

	add := func(t int, amount decimal.Decimal) {
		if amount.Sign() >= 0 {
			inflows[t] = inflows[t].Add(amount)
		} else {
			outflows[t] = outflows[t].Add(amount.Neg())
		}
	}

	one := decimal.NewFromInt(1)
	for i := range items {
		item := &items[i]
		offset := item.PeriodIndex() - start
		if offset >= periods {
			continue
		}

		amount := signedBaseAmount(item)
		if !item.IsRecurring {
			add(offset, amount)
			continue
		}

		step := frequencyStep(item.Frequency)
		factor := one.Add(item.GrowthRate)
		occurrence := amount
		for t := offset; t < periods; t += step {
			add(t, occurrence)
			occurrence = occurrence.Mul(factor)
		}
	}

	return inflows, outflows, nil
}

// CashFlowSeries derives per-period net cash flows for the scenario over
// the requested horizon.
func (s *projectionService) CashFlowSeries(planID string, scenario models.Scenario, periods int) ([]decimal.Decimal, error) {
	inflows, outflows, err := s.FlowComponents(planID, scenario, periods)
	if err != nil {
		return nil, err
	}

	series := make([]decimal.Decimal, periods)
	for i := 0; i < periods; i++ {
		series[i] = inflows[i].Sub(outflows[i])
	}
	return series, nil
}
