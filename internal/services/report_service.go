package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "plancast/internal/errors"
	"plancast/internal/finmath"
	"plancast/internal/models"
)

// reportService assembles financial reports from projection data. All
// report amounts are base amounts in the plan's reporting currency,
// rounded to the currency's minor units only at assembly time.
type reportService struct {
	db              *gorm.DB
	planService     PlanServicer
	currencyService CurrencyServicer
	projectionSvc   ProjectionServicer
}

// NewReportService creates a new ReportServicer.
func NewReportService(db *gorm.DB, planService PlanServicer, currencyService CurrencyServicer, projectionSvc ProjectionServicer) ReportServicer {
	return &reportService{
		db:              db,
		planService:     planService,
		currencyService: currencyService,
		projectionSvc:   projectionSvc,
	}
}

// GenerateReport dispatches to the requested report type.
func (s *reportService) GenerateReport(ctx context.Context, planID string, reportType ReportType, scenario models.Scenario) (*Report, error) {
	switch reportType {
	case ReportTypeCashFlow:
		return s.CashFlowReport(ctx, planID, scenario)
	case ReportTypeProfitLoss:
		return s.ProfitLossReport(ctx, planID, scenario)
	case ReportTypeBalanceSheet:
		return s.BalanceSheetReport(ctx, planID, scenario)
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown report type: "+string(reportType))
	}
}

// reportContext gathers everything a report assembly needs: the scenario's
// items, the reporting currency's minor-unit count, and the plan horizon.
type reportContext struct {
	plan    *models.BusinessPlan
	items   []models.ProjectionItem
	places  int32
	horizon int
	start   int
}

func (s *reportService) load(ctx context.Context, planID string, scenario models.Scenario) (*reportContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCancelled, err)
	}

	switch scenario {
	case models.ScenarioOptimistic, models.ScenarioRealistic, models.ScenarioPessimistic:
	default:
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Unknown scenario")
	}

	plan, err := s.planService.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	currency, err := s.currencyService.GetCurrency(plan.ReportingCurrency)
	if err != nil {
		return nil, err
	}
	items, err := s.projectionSvc.GetScenarioProjections(planID, scenario)
	if err != nil {
		return nil, err
	}

	rc := &reportContext{plan: plan, items: items, places: currency.DecimalPlaces}
	if len(items) > 0 {
		minIdx, maxIdx := items[0].PeriodIndex(), items[0].PeriodIndex()
		for i := range items {
			idx := items[i].PeriodIndex()
			if idx < minIdx {
				minIdx = idx
			}
			if idx > maxIdx {
				maxIdx = idx
			}
		}
		rc.start = minIdx
		rc.horizon = maxIdx - minIdx + 1
	}
	return rc, nil
}

// expandedTotal sums an item's occurrences across the plan horizon. A
// non-recurring item contributes its base amount once; a recurring one
// repeats at its frequency stride with growth compounded per occurrence.
func (rc *reportContext) expandedTotal(item *models.ProjectionItem) decimal.Decimal {
	if !item.IsRecurring {
		return item.BaseAmount
	}
	offset := item.PeriodIndex() - rc.start
	remaining := rc.horizon - offset
	if remaining <= 0 {
		return decimal.Zero
	}
	step := frequencyStep(item.Frequency)
	n := (remaining + step - 1) / step

	total := decimal.Zero
	for _, v := range finmath.GrowthSeries(item.BaseAmount, item.GrowthRate, n) {
		total = total.Add(v)
	}
	return total
}

// lineAccumulator groups amounts by (category, subcategory) and emits
// sorted, rounded report lines.
type lineAccumulator struct {
	amounts map[[2]string]decimal.Decimal
	keys    [][2]string
}

func newLineAccumulator() *lineAccumulator {
	return &lineAccumulator{amounts: make(map[[2]string]decimal.Decimal)}
}

func (a *lineAccumulator) add(category, subcategory string, amount decimal.Decimal) {
	key := [2]string{category, subcategory}
	if _, ok := a.amounts[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.amounts[key] = a.amounts[key].Add(amount)
}

func (a *lineAccumulator) section(title string, places int32) ReportSection {
	sort.Slice(a.keys, func(i, j int) bool {
		if a.keys[i][0] != a.keys[j][0] {
			return a.keys[i][0] < a.keys[j][0]
		}
		return a.keys[i][1] < a.keys[j][1]
	})

	section := ReportSection{Title: title, Lines: make([]ReportLine, 0, len(a.keys))}
	total := decimal.Zero
	for _, key := range a.keys {
		amount := a.amounts[key]
		total = total.Add(amount)
		section.Lines = append(section.Lines, ReportLine{
			Category:    key[0],
			Subcategory: key[1],
			Amount:      finmath.Present(amount, places),
		})
	}
	section.Total = finmath.Present(total, places)
	return section
}

func (s *reportService) newReport(rc *reportContext, reportType ReportType, scenario models.Scenario) *Report {
	return &Report{
		PlanID:      rc.plan.ID,
		Type:        reportType,
		Scenario:    scenario,
		Currency:    rc.plan.ReportingCurrency,
		GeneratedAt: time.Now().UTC(),
		Totals:      make(map[string]decimal.Decimal),
	}
}

// CashFlowReport groups signed flows into operating, investing, and
// financing activities. Revenue, expenses, and raw cash-flow items are
// operating; investment outlays are investing; funding inflows are
// financing.
func (s *reportService) CashFlowReport(ctx context.Context, planID string, scenario models.Scenario) (*Report, error) {
	rc, err := s.load(ctx, planID, scenario)
	if err != nil {
		return nil, err
	}

	operating := newLineAccumulator()
	investing := newLineAccumulator()
	financing := newLineAccumulator()

	for i := range rc.items {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCancelled, err)
		}
		item := &rc.items[i]
		total := rc.expandedTotal(item)

		switch item.Type {
		case models.ProjectionTypeRevenue, models.ProjectionTypeCashFlow:
			operating.add(item.Category, item.Subcategory, total)
		case models.ProjectionTypeExpense:
			operating.add(item.Category, item.Subcategory, total.Neg())
		case models.ProjectionTypeInvestment:
			investing.add(item.Category, item.Subcategory, total.Neg())
		case models.ProjectionTypeFunding:
			financing.add(item.Category, item.Subcategory, total)
		}
	}

	report := s.newReport(rc, ReportTypeCashFlow, scenario)
	report.Sections = []ReportSection{
		operating.section("Operating Activities", rc.places),
		investing.section("Investing Activities", rc.places),
		financing.section("Financing Activities", rc.places),
	}

	net := decimal.Zero
	for _, section := range report.Sections {
		net = net.Add(section.Total)
	}
	report.Totals["net_cash_flow"] = finmath.Present(net, rc.places)
	return report, nil
}

// ProfitLossReport assembles revenue, cost of goods sold, and operating
// expenses with gross-profit and net-income totals. Funding, investment,
// and raw cash-flow items are not income-statement activity and are
// excluded.
func (s *reportService) ProfitLossReport(ctx context.Context, planID string, scenario models.Scenario) (*Report, error) {
	rc, err := s.load(ctx, planID, scenario)
	if err != nil {
		return nil, err
	}

	revenue := newLineAccumulator()
	cogs := newLineAccumulator()
	opex := newLineAccumulator()

	for i := range rc.items {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCancelled, err)
		}
		item := &rc.items[i]
		total := rc.expandedTotal(item)

		switch item.Type {
		case models.ProjectionTypeRevenue:
			revenue.add(item.Category, item.Subcategory, total)
		case models.ProjectionTypeExpense:
			if item.Category == categoryCOGS {
				cogs.add(item.Category, item.Subcategory, total)
			} else {
				opex.add(item.Category, item.Subcategory, total)
			}
		}
	}

	report := s.newReport(rc, ReportTypeProfitLoss, scenario)
	revenueSection := revenue.section("Revenue", rc.places)
	cogsSection := cogs.section("Cost of Goods Sold", rc.places)
	opexSection := opex.section("Operating Expenses", rc.places)
	report.Sections = []ReportSection{revenueSection, cogsSection, opexSection}

	gross := revenueSection.Total.Sub(cogsSection.Total)
	report.Totals["gross_profit"] = finmath.Present(gross, rc.places)
	report.Totals["net_income"] = finmath.Present(gross.Sub(opexSection.Total), rc.places)
	return report, nil
}

// BalanceSheetReport assembles the positions derivable from flow data:
// the projected cash position, cumulative invested capital, and
// cumulative funding raised. Projection items carry no asset valuations
// or liability schedules, so the report is marked partial.
func (s *reportService) BalanceSheetReport(ctx context.Context, planID string, scenario models.Scenario) (*Report, error) {
	rc, err := s.load(ctx, planID, scenario)
	if err != nil {
		return nil, err
	}

	assets := newLineAccumulator()
	invested := newLineAccumulator()
	funding := newLineAccumulator()

	cash := decimal.Zero
	for i := range rc.items {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCancelled, err)
		}
		item := &rc.items[i]
		total := rc.expandedTotal(item)

		switch item.Type {
		case models.ProjectionTypeRevenue, models.ProjectionTypeFunding:
			cash = cash.Add(total)
		case models.ProjectionTypeExpense, models.ProjectionTypeInvestment:
			cash = cash.Sub(total)
		case models.ProjectionTypeCashFlow:
			cash = cash.Add(total)
		}

		switch item.Type {
		case models.ProjectionTypeInvestment:
			invested.add(item.Category, item.Subcategory, total)
		case models.ProjectionTypeFunding:
			funding.add(item.Category, item.Subcategory, total)
		}
	}
	assets.add("cash", "", cash)

	report := s.newReport(rc, ReportTypeBalanceSheet, scenario)
	report.Sections = []ReportSection{
		assets.section("Assets", rc.places),
		invested.section("Invested Capital", rc.places),
		funding.section("Funding Raised", rc.places),
	}
	report.Totals["cash_position"] = finmath.Present(cash, rc.places)
	report.Partial = true
	report.Notes = "Derived from projected flows only; asset valuations and liability schedules are not tracked."
	return report, nil
}
