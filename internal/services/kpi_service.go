package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "plancast/internal/errors"
	"plancast/internal/models"
)

// KPI grouping categories.
const (
	kpiCategoryProfitability = "profitability"
	kpiCategoryLiquidity     = "liquidity"
	kpiCategoryUnitEconomics = "unit_economics"
)

// Projection categories with special KPI meaning.
const (
	categoryCOGS = "cogs"
)

// acquisitionCategories are the expense categories counted as customer
// acquisition spend for CAC.
var acquisitionCategories = map[string]bool{
	"marketing":            true,
	"sales":                true,
	"customer_acquisition": true,
}

// defaultTrailingPeriods is the burn-rate window when the caller does not
// supply one.
const defaultTrailingPeriods = 6

// kpiService derives the KPI catalogue from normalized projections.
type kpiService struct {
	db            *gorm.DB
	planService   PlanServicer
	projectionSvc ProjectionServicer
}

// NewKPIService creates a new KPIServicer.
func NewKPIService(db *gorm.DB, planService PlanServicer, projectionSvc ProjectionServicer) KPIServicer {
	return &kpiService{db: db, planService: planService, projectionSvc: projectionSvc}
}

// planMetrics are the intermediate sums a KPI computation needs. All values
// are base amounts, summed by explicit grouping keys so duplicate items
// never double-count relative to each other.
type planMetrics struct {
	revenue          decimal.Decimal
	cogs             decimal.Decimal
	acquisitionSpend decimal.Decimal
	fixedCosts       decimal.Decimal

	// Net flow per calendar period over the projection horizon, zero-filled
	// and recurrence-expanded. A trailing burn-rate window counts calendar
	// periods, not item-bearing ones.
	periodNets []decimal.Decimal
}

func deriveMetrics(items []models.ProjectionItem) planMetrics {
	m := planMetrics{
		revenue:          decimal.Zero,
		cogs:             decimal.Zero,
		acquisitionSpend: decimal.Zero,
		fixedCosts:       decimal.Zero,
	}

	for i := range items {
		item := &items[i]

		switch item.Type {
		case models.ProjectionTypeRevenue:
			m.revenue = m.revenue.Add(item.BaseAmount)
		case models.ProjectionTypeExpense:
			if item.Category == categoryCOGS {
				m.cogs = m.cogs.Add(item.BaseAmount)
			}
			if acquisitionCategories[item.Category] {
				m.acquisitionSpend = m.acquisitionSpend.Add(item.BaseAmount)
			}
			if item.IsRecurring {
				m.fixedCosts = m.fixedCosts.Add(item.BaseAmount)
			}
		}
	}

	return m
}

// projectionHorizon returns the number of calendar periods the items span,
// from the earliest projected period through the latest.
func projectionHorizon(items []models.ProjectionItem) int {
	if len(items) == 0 {
		return 0
	}
	first := items[0].PeriodIndex()
	last := first
	for i := range items {
		idx := items[i].PeriodIndex()
		if idx < first {
			first = idx
		}
		if idx > last {
			last = idx
		}
	}
	return last - first + 1
}

// undefinedKPI is the stored form of a KPI whose denominator (or required
// assumption) is missing: a null value, not an error.
func undefinedKPI() decimal.NullDecimal {
	return decimal.NullDecimal{Valid: false}
}

func definedKPI(v decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(v)
}

// computeCatalogue evaluates every KPI in the fixed catalogue.
func computeCatalogue(m planMetrics, a KPIAssumptions) map[string]struct {
	category string
	value    decimal.NullDecimal
} {
	out := make(map[string]struct {
		category string
		value    decimal.NullDecimal
	})
	set := func(name, category string, value decimal.NullDecimal) {
		out[name] = struct {
			category string
			value    decimal.NullDecimal
		}{category: category, value: value}
	}

	// Gross Margin = (Revenue − COGS) / Revenue
	grossMargin := undefinedKPI()
	grossMarginRatio := decimal.Zero
	if !m.revenue.IsZero() {
		grossMarginRatio = m.revenue.Sub(m.cogs).DivRound(m.revenue, ratePrecision)
		grossMargin = definedKPI(grossMarginRatio)
	}
	set(models.KPIGrossMargin, kpiCategoryProfitability, grossMargin)

	// Burn Rate = average net cash outflow per period over the trailing window
	trailing := a.TrailingPeriods
	if trailing <= 0 {
		trailing = defaultTrailingPeriods
	}
	burnRate := undefinedKPI()
	if n := len(m.periodNets); n > 0 {
		window := m.periodNets
		if n > trailing {
			window = m.periodNets[n-trailing:]
		}
		sum := decimal.Zero
		for _, v := range window {
			sum = sum.Add(v)
		}
		avgNet := sum.DivRound(decimal.NewFromInt(int64(len(window))), ratePrecision)
		burnRate = definedKPI(avgNet.Neg()) // positive when cash is burning
	}
	set(models.KPIBurnRate, kpiCategoryLiquidity, burnRate)

	// Runway = cash balance / burn rate, undefined when burn rate <= 0
	runway := undefinedKPI()
	if burnRate.Valid && burnRate.Decimal.Sign() > 0 {
		cash := decimal.Zero
		if a.OpeningCashBalance != nil {
			cash = *a.OpeningCashBalance
		}
		for _, v := range m.periodNets {
			cash = cash.Add(v)
		}
		if cash.Sign() >= 0 {
			runway = definedKPI(cash.DivRound(burnRate.Decimal, ratePrecision))
		}
	}
	set(models.KPIRunway, kpiCategoryLiquidity, runway)

	// CAC = acquisition spend / new customers acquired
	cac := undefinedKPI()
	if a.NewCustomers != nil && a.NewCustomers.Sign() > 0 {
		cac = definedKPI(m.acquisitionSpend.DivRound(*a.NewCustomers, ratePrecision))
	}
	set(models.KPICAC, kpiCategoryUnitEconomics, cac)

	// LTV = average revenue per customer × expected customer lifetime
	ltv := undefinedKPI()
	if a.AvgRevenuePerCustomer != nil && a.CustomerLifetimePeriods != nil {
		ltv = definedKPI(a.AvgRevenuePerCustomer.Mul(*a.CustomerLifetimePeriods))
	}
	set(models.KPILTV, kpiCategoryUnitEconomics, ltv)

	// Break-even Revenue = fixed costs / gross-margin ratio
	breakEvenRevenue := undefinedKPI()
	if grossMargin.Valid && grossMarginRatio.Sign() > 0 {
		breakEvenRevenue = definedKPI(m.fixedCosts.DivRound(grossMarginRatio, ratePrecision))
	}
	set(models.KPIBreakEvenRevenue, kpiCategoryProfitability, breakEvenRevenue)

	return out
}

// kpiOrder fixes the presentation order of the catalogue.
var kpiOrder = []string{
	models.KPIGrossMargin,
	models.KPIBurnRate,
	models.KPIRunway,
	models.KPICAC,
	models.KPILTV,
	models.KPIBreakEvenRevenue,
}

// CalculateKPIs recomputes the full catalogue for one scenario and
// overwrites any prior values for the same (plan, name, scenario) keys.
func (s *kpiService) CalculateKPIs(planID string, scenario models.Scenario, assumptions KPIAssumptions) ([]models.FinancialKPI, error) {
	if err := s.planService.Exists(planID); err != nil {
		return nil, err
	}

	items, err := s.projectionSvc.GetScenarioProjections(planID, scenario)
	if err != nil {
		return nil, err
	}

	metrics := deriveMetrics(items)
	if horizon := projectionHorizon(items); horizon > 0 {
		series, seriesErr := s.projectionSvc.CashFlowSeries(planID, scenario, horizon)
		if seriesErr != nil {
			return nil, seriesErr
		}
		metrics.periodNets = series
	}

	catalogue := computeCatalogue(metrics, assumptions)
	now := time.Now().UTC()

	kpis := make([]models.FinancialKPI, 0, len(kpiOrder))
	for _, name := range kpiOrder {
		entry := catalogue[name]
		kpis = append(kpis, models.FinancialKPI{
			PlanID:     planID,
			Name:       name,
			Category:   entry.category,
			Scenario:   scenario,
			Value:      entry.value,
			ComputedAt: now,
		})
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Where("plan_id = ? AND scenario = ?", planID, scenario).
			Delete(&models.FinancialKPI{}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		for i := range kpis {
			if txErr := tx.Create(&kpis[i]).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return kpis, nil
}

// CalculateAllScenarios computes the catalogue once per scenario, keyed
// separately. Scenario values are never merged or averaged.
func (s *kpiService) CalculateAllScenarios(planID string, assumptions KPIAssumptions) (map[models.Scenario][]models.FinancialKPI, error) {
	result := make(map[models.Scenario][]models.FinancialKPI, len(models.AllScenarios))
	for _, scenario := range models.AllScenarios {
		kpis, err := s.CalculateKPIs(planID, scenario, assumptions)
		if err != nil {
			return nil, err
		}
		result[scenario] = kpis
	}
	return result, nil
}

// GetKPIByName returns the latest computed KPI for the key. A KPI whose
// value is undefined fails with COMPUTATION_FAILURE when requested
// directly; batch accessors instead return the null entry.
func (s *kpiService) GetKPIByName(planID, name string, scenario models.Scenario) (*models.FinancialKPI, error) {
	var kpi models.FinancialKPI
	err := s.db.
		Where("plan_id = ? AND name = ? AND scenario = ?", planID, name, scenario).
		Order("computed_at DESC").
		First(&kpi).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrKPINotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if !kpi.Value.Valid {
		return nil, apperrors.WithMessage(apperrors.ErrComputationFailure,
			"KPI "+name+" is undefined for the current projections")
	}
	return &kpi, nil
}

// ListKPIsByCategory returns all computed KPIs of a grouping category
// across scenarios, undefined entries included.
func (s *kpiService) ListKPIsByCategory(planID, category string) ([]models.FinancialKPI, error) {
	if err := s.planService.Exists(planID); err != nil {
		return nil, err
	}

	var kpis []models.FinancialKPI
	if err := s.db.
		Where("plan_id = ? AND category = ?", planID, category).
		Order("scenario, name").
		Find(&kpis).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return kpis, nil
}
