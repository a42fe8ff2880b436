package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "plancast/internal/errors"
	"plancast/internal/finmath"
	"plancast/internal/models"
	"plancast/internal/pagination"
)

// taxService resolves tax rules by jurisdiction, category, and date, and
// applies flat or progressive schedules.
type taxService struct {
	db              *gorm.DB
	planService     PlanServicer
	projectionSvc   ProjectionServicer
	currencyService CurrencyServicer
}

// NewTaxService creates a new TaxServicer.
func NewTaxService(db *gorm.DB, planService PlanServicer, projectionSvc ProjectionServicer, currencyService CurrencyServicer) TaxServicer {
	return &taxService{
		db:              db,
		planService:     planService,
		projectionSvc:   projectionSvc,
		currencyService: currencyService,
	}
}

// resolveRule finds the rule matching (country, region, category) whose
// validity window contains date. A region-specific rule wins; if none
// matches, the country-level rule (empty region) is the fallback.
func (s *taxService) resolveRule(jurisdiction Jurisdiction, category string, date time.Time) (*models.TaxRule, error) {
	regions := []string{jurisdiction.Region}
	if jurisdiction.Region != "" {
		regions = append(regions, "")
	}

	for _, region := range regions {
		var rule models.TaxRule
		err := s.db.
			Where("country = ? AND region = ? AND category = ?", jurisdiction.Country, region, category).
			Where("effective_from <= ?", date).
			Where("effective_to IS NULL OR effective_to >= ?", date).
			Order("effective_from DESC").
			First(&rule).Error
		if err == nil {
			return &rule, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil, apperrors.ErrTaxRuleNotFound
}

// apply computes the tax due on amount under the rule, converting the
// result into the rule's currency when needed. The rule's validity window
// must contain date.
func (s *taxService) apply(rule *models.TaxRule, amount decimal.Decimal, currency string, date time.Time) (*TaxCalculation, error) {
	if !rule.AppliesAt(date) {
		return nil, apperrors.ErrTaxRuleNotFound
	}

	taxable := amount
	if currency != rule.Currency {
		converted, err := s.currencyService.Convert(amount, currency, rule.Currency, date)
		if err != nil {
			return nil, err
		}
		taxable = converted
	}

	var tax decimal.Decimal
	if rule.IsProgressive() {
		brackets := make([]finmath.Bracket, len(rule.Brackets))
		for i, b := range rule.Brackets {
			brackets[i] = finmath.Bracket{UpTo: b.UpTo, Rate: b.Rate}
		}
		tax = finmath.ProgressiveTax(taxable, brackets)
	} else {
		tax = taxable.Mul(rule.Rate)
	}

	effectiveRate := decimal.Zero
	if !taxable.IsZero() {
		effectiveRate = tax.DivRound(taxable, ratePrecision)
	}

	return &TaxCalculation{
		RuleID:        rule.ID,
		Country:       rule.Country,
		Region:        rule.Region,
		Category:      rule.Category,
		TaxAmount:     tax,
		EffectiveRate: effectiveRate,
		Currency:      rule.Currency,
		CalculatedAt:  time.Now().UTC(),
	}, nil
}

// CalculateTax applies the resolved rule to a standalone amount.
func (s *taxService) CalculateTax(req TaxCalculationRequest) (*TaxCalculation, error) {
	if req.Jurisdiction.Country == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Jurisdiction country is required")
	}
	if req.Category == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Tax category is required")
	}
	if req.Amount.Sign() < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Taxable amount must be non-negative")
	}
	date := req.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	rule, err := s.resolveRule(req.Jurisdiction, req.Category, date)
	if err != nil {
		return nil, err
	}
	return s.apply(rule, req.Amount, req.Currency, date)
}

// CalculateProjectionTax computes the tax due on a single projection item's
// base amount, using the rate effective at the item's period.
func (s *taxService) CalculateProjectionTax(planID, projectionID string, jurisdiction Jurisdiction) (*TaxCalculation, error) {
	plan, err := s.planService.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	item, err := s.projectionSvc.GetProjectionByID(planID, projectionID)
	if err != nil {
		return nil, err
	}

	rule, err := s.resolveRule(jurisdiction, item.Category, item.PeriodDate())
	if err != nil {
		return nil, err
	}
	return s.apply(rule, item.BaseAmount, plan.ReportingCurrency, item.PeriodDate())
}

// CalculatePlanTaxes computes taxes for every item of a scenario. Failures
// are reported per item; the batch never aborts on the first failure.
func (s *taxService) CalculatePlanTaxes(planID string, scenario models.Scenario, jurisdiction Jurisdiction) ([]ProjectionTaxOutcome, error) {
	plan, err := s.planService.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	items, err := s.projectionSvc.GetScenarioProjections(planID, scenario)
	if err != nil {
		return nil, err
	}

	outcomes := make([]ProjectionTaxOutcome, 0, len(items))
	for i := range items {
		item := &items[i]
		outcome := ProjectionTaxOutcome{ProjectionID: item.ID}

		rule, ruleErr := s.resolveRule(jurisdiction, item.Category, item.PeriodDate())
		if ruleErr != nil {
			outcome.Error = asAppError(ruleErr)
			outcomes = append(outcomes, outcome)
			continue
		}

		calc, calcErr := s.apply(rule, item.BaseAmount, plan.ReportingCurrency, item.PeriodDate())
		if calcErr != nil {
			outcome.Error = asAppError(calcErr)
		} else {
			outcome.Calculation = calc
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// ListTaxRules returns rules for a country, optionally narrowed to a region
// (country-level rules are always included for context).
func (s *taxService) ListTaxRules(country, region string, page pagination.PageRequest) (*pagination.PageResponse[models.TaxRule], error) {
	page.Defaults()

	query := s.db.Model(&models.TaxRule{}).Where("country = ?", country)
	if region != "" {
		query = query.Where("region IN ?", []string{region, ""})
	}

	var totalItems int64
	if err := query.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rules []models.TaxRule
	if err := query.Order("category, region, effective_from DESC").
		Scopes(pagination.Paginate(page)).Find(&rules).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(rules, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// CreateTaxRule stores a new effective-dated rule.
func (s *taxService) CreateTaxRule(actor string, in TaxRuleInput) (*models.TaxRule, error) {
	if in.Country == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Country is required")
	}
	if in.Category == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Category is required")
	}
	if in.Rate.Sign() < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Rate must be non-negative")
	}
	if in.EffectiveTo != nil && in.EffectiveTo.Before(in.EffectiveFrom) {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "effective_to must not precede effective_from")
	}
	if _, err := s.currencyService.GetCurrency(in.Currency); err != nil {
		return nil, err
	}

	prev := decimal.Zero
	for _, b := range in.Brackets {
		if b.Rate.Sign() < 0 {
			return nil, apperrors.WithMessage(apperrors.ErrValidation, "Bracket rates must be non-negative")
		}
		if b.UpTo != nil {
			if b.UpTo.LessThanOrEqual(prev) {
				return nil, apperrors.WithMessage(apperrors.ErrValidation, "Bracket bounds must be strictly increasing")
			}
			prev = *b.UpTo
		}
	}

	rule := &models.TaxRule{
		Country:       in.Country,
		Region:        in.Region,
		Category:      in.Category,
		Rate:          in.Rate,
		Brackets:      in.Brackets,
		Currency:      in.Currency,
		EffectiveFrom: in.EffectiveFrom,
		EffectiveTo:   in.EffectiveTo,
		Description:   in.Description,
	}
	if err := s.db.Create(rule).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rule, nil
}

// asAppError normalizes any error into an AppError for batch outcome lists.
func asAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
