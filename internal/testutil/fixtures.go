package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"plancast/internal/models"
	"plancast/internal/uuid"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// TestActor returns a fresh UUID usable as an acting identity.
func TestActor() string {
	return uuid.New()
}

// CreateTestPlan creates a plan with the given reporting currency.
func CreateTestPlan(t *testing.T, db *gorm.DB, reportingCurrency string) *models.BusinessPlan {
	t.Helper()

	plan := &models.BusinessPlan{
		Name:              fmt.Sprintf("Test Plan %d", nextID()),
		OwnerID:           uuid.New(),
		ReportingCurrency: reportingCurrency,
	}
	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("failed to create test plan: %v", err)
	}
	return plan
}

// CreateTestCurrency creates a currency with the given minor-unit count.
func CreateTestCurrency(t *testing.T, db *gorm.DB, code string, decimalPlaces int32) *models.Currency {
	t.Helper()

	currency := &models.Currency{
		Code:          code,
		Name:          fmt.Sprintf("Test Currency %s", code),
		Symbol:        code,
		DecimalPlaces: decimalPlaces,
	}
	if err := db.Create(currency).Error; err != nil {
		t.Fatalf("failed to create test currency %s: %v", code, err)
	}
	return currency
}

// CreateTestRate creates an effective-dated exchange rate row.
func CreateTestRate(t *testing.T, db *gorm.DB, from, to string, rate decimal.Decimal, effectiveDate time.Time) *models.ExchangeRate {
	t.Helper()

	row := &models.ExchangeRate{
		FromCurrency:  from,
		ToCurrency:    to,
		Rate:          rate,
		EffectiveDate: effectiveDate,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("failed to create test rate %s->%s: %v", from, to, err)
	}
	return row
}

// CreateTestProjection creates a one-time projection line item with
// BaseAmount equal to Amount (same-currency plan).
func CreateTestProjection(t *testing.T, db *gorm.DB, planID string, ptype models.ProjectionType, scenario models.Scenario, year, month int, amount decimal.Decimal) *models.ProjectionItem {
	t.Helper()

	item := &models.ProjectionItem{
		PlanID:     planID,
		Name:       fmt.Sprintf("Test Projection %d", nextID()),
		Type:       ptype,
		Scenario:   scenario,
		Year:       year,
		Month:      month,
		Amount:     amount,
		Currency:   "USD",
		BaseAmount: amount,
		Category:   "general",
		Frequency:  models.FrequencyOneTime,
		CreatedBy:  uuid.New(),
		UpdatedBy:  uuid.New(),
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("failed to create test projection: %v", err)
	}
	return item
}

// CreateTestRecurringProjection creates a monthly recurring item with the
// given growth rate, otherwise like CreateTestProjection.
func CreateTestRecurringProjection(t *testing.T, db *gorm.DB, planID string, ptype models.ProjectionType, scenario models.Scenario, year, month int, amount, growthRate decimal.Decimal) *models.ProjectionItem {
	t.Helper()

	item := &models.ProjectionItem{
		PlanID:      planID,
		Name:        fmt.Sprintf("Test Recurring Projection %d", nextID()),
		Type:        ptype,
		Scenario:    scenario,
		Year:        year,
		Month:       month,
		Amount:      amount,
		Currency:    "USD",
		BaseAmount:  amount,
		Category:    "general",
		IsRecurring: true,
		Frequency:   models.FrequencyMonthly,
		GrowthRate:  growthRate,
		CreatedBy:   uuid.New(),
		UpdatedBy:   uuid.New(),
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("failed to create test recurring projection: %v", err)
	}
	return item
}

// CreateTestTaxRule creates a flat-rate tax rule effective since 2020.
func CreateTestTaxRule(t *testing.T, db *gorm.DB, country, region, category string, rate decimal.Decimal, currency string) *models.TaxRule {
	t.Helper()

	rule := &models.TaxRule{
		Country:       country,
		Region:        region,
		Category:      category,
		Rate:          rate,
		Currency:      currency,
		EffectiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := db.Create(rule).Error; err != nil {
		t.Fatalf("failed to create test tax rule: %v", err)
	}
	return rule
}

// CreateTestAnalysis creates a composite analysis with the given inputs.
func CreateTestAnalysis(t *testing.T, db *gorm.DB, planID string, initialInvestment, discountRate decimal.Decimal, periods int) *models.InvestmentAnalysis {
	t.Helper()

	analysis := &models.InvestmentAnalysis{
		PlanID:            planID,
		Name:              fmt.Sprintf("Test Analysis %d", nextID()),
		AnalysisType:      models.AnalysisTypeComposite,
		InitialInvestment: initialInvestment,
		ExpectedReturn:    initialInvestment,
		DiscountRate:      discountRate,
		AnalysisPeriods:   periods,
		Currency:          "USD",
		RiskLevel:         models.RiskLevelMedium,
		CreatedBy:         uuid.New(),
		UpdatedBy:         uuid.New(),
	}
	if err := db.Create(analysis).Error; err != nil {
		t.Fatalf("failed to create test analysis: %v", err)
	}
	return analysis
}
