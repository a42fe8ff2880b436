package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"plancast/internal/errors"
	"plancast/internal/finmath"
	"plancast/internal/models"
	"plancast/internal/pagination"
)

// PlanServicer is the boundary to the business-plan module. The analysis
// engine never manages plan lifecycle; it only verifies existence and reads
// the plan's reporting currency.
type PlanServicer interface {
	Exists(planID string) error
	GetPlan(planID string) (*models.BusinessPlan, error)
}

// CurrencyServicer defines the contract for currency and exchange-rate operations.
type CurrencyServicer interface {
	GetCurrency(code string) (*models.Currency, error)
	ListCurrencies() ([]models.Currency, error)
	// Convert converts amount from one currency to another using the most
	// recent rate effective on or before asOf. Same-currency conversion is
	// identity; a missing direct rate falls back to the inverted inverse
	// rate; otherwise ErrRateNotFound.
	Convert(amount decimal.Decimal, from, to string, asOf time.Time) (decimal.Decimal, error)
	GetExchangeRate(from, to string, asOf time.Time) (*models.ExchangeRate, error)
	// CreateExchangeRate appends a new effective-dated rate row. Rates are
	// never updated in place, so historical conversions stay reproducible.
	CreateExchangeRate(actor, from, to string, rate decimal.Decimal, effectiveDate time.Time) (*models.ExchangeRate, error)
}

// ProjectionInput carries the caller-supplied fields of a projection item.
type ProjectionInput struct {
	Name        string
	Description string
	Type        models.ProjectionType
	Scenario    models.Scenario
	Year        int
	Month       int
	Amount      decimal.Decimal
	Currency    string
	Category    string
	Subcategory string
	IsRecurring bool
	Frequency   models.Frequency
	GrowthRate  decimal.Decimal
	Assumptions string
}

// ProjectionFilter holds optional filter parameters for listing projections.
type ProjectionFilter struct {
	Scenario *models.Scenario
	Type     *models.ProjectionType
	Category *string
	FromYear *int
	ToYear   *int
}

// ProjectionServicer defines the contract for projection line-item storage.
// Every write threads the acting identity explicitly and serializes against
// other writes on the same plan.
type ProjectionServicer interface {
	CreateProjection(actor, planID string, in ProjectionInput) (*models.ProjectionItem, error)
	GetProjectionByID(planID, projectionID string) (*models.ProjectionItem, error)
	GetPlanProjections(planID string, page pagination.PageRequest, filter ProjectionFilter) (*pagination.PageResponse[models.ProjectionItem], error)
	GetScenarioProjections(planID string, scenario models.Scenario) ([]models.ProjectionItem, error)
	UpdateProjection(actor, planID, projectionID string, in ProjectionInput) (*models.ProjectionItem, error)
	DeleteProjection(actor, planID, projectionID string) error
	// CashFlowSeries derives the per-period net cash flow (revenue and
	// funding inflows minus expense and investment outflows, in base
	// amounts) for the scenario over the given number of periods starting
	// at the plan's earliest projected period. Recurring items are expanded
	// across the horizon at their frequency with growth compounded per
	// occurrence.
	CashFlowSeries(planID string, scenario models.Scenario, periods int) ([]decimal.Decimal, error)
	// FlowComponents returns the per-period inflow and outflow series
	// separately (both non-negative), aligned on the same horizon as
	// CashFlowSeries. Sensitivity analysis perturbs one side while holding
	// the other fixed.
	FlowComponents(planID string, scenario models.Scenario, periods int) (inflows, outflows []decimal.Decimal, err error)
}

// Jurisdiction identifies the tax jurisdiction for a calculation.
type Jurisdiction struct {
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
}

// TaxCalculationRequest holds the inputs of a standalone tax calculation.
type TaxCalculationRequest struct {
	Amount       decimal.Decimal
	Currency     string
	Category     string
	Jurisdiction Jurisdiction
	Date         time.Time
}

// TaxCalculation is the result of applying a tax rule to an amount.
type TaxCalculation struct {
	RuleID        string          `json:"rule_id"`
	Country       string          `json:"country"`
	Region        string          `json:"region,omitempty"`
	Category      string          `json:"category"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	EffectiveRate decimal.Decimal `json:"effective_rate"`
	Currency      string          `json:"currency"`
	CalculatedAt  time.Time       `json:"calculated_at"`
}

// ProjectionTaxOutcome is a per-item result in a batch tax calculation.
// Batch calculations never abort on the first failure; each item carries
// either its calculation or its error.
type ProjectionTaxOutcome struct {
	ProjectionID string           `json:"projection_id"`
	Calculation  *TaxCalculation  `json:"calculation,omitempty"`
	Error        *errors.AppError `json:"error,omitempty"`
}

// TaxRuleInput carries the caller-supplied fields of a tax rule.
type TaxRuleInput struct {
	Country       string
	Region        string
	Category      string
	Rate          decimal.Decimal
	Brackets      models.TaxBrackets
	Currency      string
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	Description   string
}

// TaxServicer defines the contract for tax-rule resolution and calculation.
type TaxServicer interface {
	CalculateTax(req TaxCalculationRequest) (*TaxCalculation, error)
	CalculateProjectionTax(planID, projectionID string, jurisdiction Jurisdiction) (*TaxCalculation, error)
	CalculatePlanTaxes(planID string, scenario models.Scenario, jurisdiction Jurisdiction) ([]ProjectionTaxOutcome, error)
	ListTaxRules(country, region string, page pagination.PageRequest) (*pagination.PageResponse[models.TaxRule], error)
	CreateTaxRule(actor string, in TaxRuleInput) (*models.TaxRule, error)
}

// KPIAssumptions supplies the plan-level inputs that cannot be derived from
// projection items alone. Nil pointers leave the dependent KPI undefined.
type KPIAssumptions struct {
	TrailingPeriods         int              `json:"trailing_periods"`
	OpeningCashBalance      *decimal.Decimal `json:"opening_cash_balance,omitempty"`
	NewCustomers            *decimal.Decimal `json:"new_customers,omitempty"`
	AvgRevenuePerCustomer   *decimal.Decimal `json:"avg_revenue_per_customer,omitempty"`
	CustomerLifetimePeriods *decimal.Decimal `json:"customer_lifetime_periods,omitempty"`
}

// KPIServicer defines the contract for derived KPI computation and lookup.
// Batch computation stores undefined KPIs with a null value; the single-KPI
// accessor instead fails with COMPUTATION_FAILURE when the value is
// undefined.
type KPIServicer interface {
	CalculateKPIs(planID string, scenario models.Scenario, assumptions KPIAssumptions) ([]models.FinancialKPI, error)
	CalculateAllScenarios(planID string, assumptions KPIAssumptions) (map[models.Scenario][]models.FinancialKPI, error)
	GetKPIByName(planID, name string, scenario models.Scenario) (*models.FinancialKPI, error)
	ListKPIsByCategory(planID, category string) ([]models.FinancialKPI, error)
}

// AnalysisInput carries the caller-supplied fields of an investment analysis.
// CashFlows, when present, is the explicit per-period series (t=1..T);
// otherwise the series is derived from the plan's projections for Scenario.
type AnalysisInput struct {
	Name              string
	AnalysisType      models.AnalysisType
	InitialInvestment decimal.Decimal
	ExpectedReturn    decimal.Decimal
	DiscountRate      decimal.Decimal
	AnalysisPeriods   int
	Currency          string
	RiskLevel         models.RiskLevel
	FundingSource     string
	CashFlows         []decimal.Decimal
	Scenario          models.Scenario
}

// CashFlowParams selects the cash-flow series for an on-demand NPV or IRR
// calculation: either an explicit series or one derived from projections.
type CashFlowParams struct {
	InitialInvestment decimal.Decimal
	CashFlows         []decimal.Decimal
	Scenario          models.Scenario
	Periods           int
}

// InvestmentServicer defines the contract for investment-return analysis.
type InvestmentServicer interface {
	CreateAnalysis(actor, planID string, in AnalysisInput) (*models.InvestmentAnalysis, error)
	GetAnalysisByID(planID, analysisID string) (*models.InvestmentAnalysis, error)
	GetPlanAnalyses(planID string, page pagination.PageRequest) (*pagination.PageResponse[models.InvestmentAnalysis], error)
	// RecomputeAnalysis re-derives ROI, NPV, and IRR from the stored inputs
	// and replaces all derived fields atomically.
	RecomputeAnalysis(actor, planID, analysisID string) (*models.InvestmentAnalysis, error)
	CalculateROI(planID string, initialInvestment, expectedReturn decimal.Decimal) (decimal.Decimal, error)
	CalculateNPV(planID string, discountRate decimal.Decimal, p CashFlowParams) (decimal.Decimal, error)
	CalculateIRR(planID string, p CashFlowParams) (decimal.Decimal, error)
}

// ScenarioMetrics bundles the per-scenario results of a comparison. NPV and
// ROI are null when the plan has no analysis inputs or no projections in
// the scenario; values are never inferred from another scenario.
type ScenarioMetrics struct {
	KPIs []models.FinancialKPI `json:"kpis"`
	NPV  decimal.NullDecimal   `json:"npv"`
	ROI  decimal.NullDecimal   `json:"roi"`
}

// ScenarioComparison maps each defined scenario to its metrics.
type ScenarioComparison map[models.Scenario]ScenarioMetrics

// SensitivityPoint is one (delta, recomputed value) pair. The result list
// preserves the caller-supplied delta order.
type SensitivityPoint struct {
	Delta decimal.Decimal     `json:"delta"`
	Value decimal.NullDecimal `json:"value"`
}

// Sensitivity target variables.
const (
	SensitivityVariableRevenue      = "revenue"
	SensitivityVariableExpenses     = "expenses"
	SensitivityVariableDiscountRate = "discount_rate"
)

// BreakEvenResult reports the break-even scan over the Realistic scenario's
// cumulative cash flow. Period is fractional when the crossing falls
// between two discrete periods; Reached=false means the cumulative value
// never turned non-negative within the horizon (not an error).
type BreakEvenResult struct {
	Reached        bool                `json:"reached"`
	Period         decimal.NullDecimal `json:"period"`
	HorizonPeriods int                 `json:"horizon_periods"`
}

// ScenarioServicer defines the contract for cross-scenario analysis.
type ScenarioServicer interface {
	CompareScenarios(ctx context.Context, planID string) (ScenarioComparison, error)
	Sensitivity(ctx context.Context, planID, variable string, deltas []decimal.Decimal) ([]SensitivityPoint, error)
	BreakEven(planID string) (*BreakEvenResult, error)
}

// ReportType selects which financial report to assemble.
type ReportType string

const (
	ReportTypeCashFlow     ReportType = "cash_flow"
	ReportTypeProfitLoss   ReportType = "profit_loss"
	ReportTypeBalanceSheet ReportType = "balance_sheet"
)

// ReportLine is one grouped amount inside a report section.
type ReportLine struct {
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// ReportSection is a titled group of report lines with a section total.
type ReportSection struct {
	Title string          `json:"title"`
	Lines []ReportLine    `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// Report is an assembled financial report in the plan's reporting currency.
// Partial marks reports that cannot be fully derived from flow data alone
// (the balance sheet); Notes explains the limitation.
type Report struct {
	PlanID      string                     `json:"plan_id"`
	Type        ReportType                 `json:"type"`
	Scenario    models.Scenario            `json:"scenario"`
	Currency    string                     `json:"currency"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Sections    []ReportSection            `json:"sections"`
	Totals      map[string]decimal.Decimal `json:"totals"`
	Partial     bool                       `json:"partial,omitempty"`
	Notes       string                     `json:"notes,omitempty"`
}

// ReportServicer defines the contract for report assembly. Generation honors
// context cancellation and surfaces CANCELLED instead of a partial report.
type ReportServicer interface {
	GenerateReport(ctx context.Context, planID string, reportType ReportType, scenario models.Scenario) (*Report, error)
	CashFlowReport(ctx context.Context, planID string, scenario models.Scenario) (*Report, error)
	ProfitLossReport(ctx context.Context, planID string, scenario models.Scenario) (*Report, error)
	BalanceSheetReport(ctx context.Context, planID string, scenario models.Scenario) (*Report, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(actor, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}

// breakEvenFromCumulative adapts a finmath break-even point to the service
// result shape.
func breakEvenFromCumulative(p finmath.BreakEvenPoint, horizon int) *BreakEvenResult {
	res := &BreakEvenResult{Reached: p.Reached, HorizonPeriods: horizon}
	if p.Reached {
		res.Period = decimal.NewNullDecimal(p.Period)
	}
	return res
}
