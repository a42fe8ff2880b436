package services_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"plancast/internal/models"
	"plancast/internal/pagination"
	"plancast/internal/services"
	"plancast/internal/testutil"
)

func setupTaxService(t *testing.T) (*gorm.DB, services.TaxServicer) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
	planService := services.NewPlanService(db)
	currencyService := services.NewCurrencyService(db)
	projectionSvc := services.NewProjectionService(db, planService, currencyService)
	return db, services.NewTaxService(db, planService, projectionSvc, currencyService)
}

func taxDate() time.Time {
	return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
}

func TestCalculateTaxFlatRate(t *testing.T) {
	db, svc := setupTaxService(t)
	testutil.CreateTestTaxRule(t, db, "US", "", "income", decimal.RequireFromString("0.15"), "USD")

	calc, err := svc.CalculateTax(services.TaxCalculationRequest{
		Amount:       decimal.NewFromInt(2000),
		Currency:     "USD",
		Category:     "income",
		Jurisdiction: services.Jurisdiction{Country: "US"},
		Date:         taxDate(),
	})
	testutil.AssertNoError(t, err)

	if !calc.TaxAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected tax 300, got %s", calc.TaxAmount)
	}
	if !calc.EffectiveRate.Equal(decimal.RequireFromString("0.15")) {
		t.Errorf("expected effective rate 0.15, got %s", calc.EffectiveRate)
	}
	if calc.Currency != "USD" {
		t.Errorf("expected result currency USD, got %s", calc.Currency)
	}
}

func TestCalculateTaxProgressive(t *testing.T) {
	db, svc := setupTaxService(t)

	upTo1 := decimal.NewFromInt(1000)
	upTo2 := decimal.NewFromInt(5000)
	rule := &models.TaxRule{
		Country:  "DE",
		Category: "income",
		Currency: "USD",
		Brackets: models.TaxBrackets{
			{UpTo: &upTo1, Rate: decimal.RequireFromString("0.10")},
			{UpTo: &upTo2, Rate: decimal.RequireFromString("0.20")},
			{UpTo: nil, Rate: decimal.RequireFromString("0.30")},
		},
		EffectiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := db.Create(rule).Error; err != nil {
		t.Fatalf("failed to create progressive rule: %v", err)
	}

	tests := []struct {
		name   string
		amount int64
		want   string
	}{
		{"first bracket only", 500, "50"},
		{"spans two brackets", 3000, "500"},
		{"spans all brackets", 10000, "2400"},
		{"zero amount", 0, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := svc.CalculateTax(services.TaxCalculationRequest{
				Amount:       decimal.NewFromInt(tt.amount),
				Currency:     "USD",
				Category:     "income",
				Jurisdiction: services.Jurisdiction{Country: "DE"},
				Date:         taxDate(),
			})
			testutil.AssertNoError(t, err)
			if !calc.TaxAmount.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("expected tax %s, got %s", tt.want, calc.TaxAmount)
			}
		})
	}
}

func TestResolveRuleRegionFallback(t *testing.T) {
	db, svc := setupTaxService(t)
	countryRule := testutil.CreateTestTaxRule(t, db, "US", "", "sales", decimal.RequireFromString("0.05"), "USD")
	regionRule := testutil.CreateTestTaxRule(t, db, "US", "CA", "sales", decimal.RequireFromString("0.0725"), "USD")

	t.Run("region rule wins when present", func(t *testing.T) {
		calc, err := svc.CalculateTax(services.TaxCalculationRequest{
			Amount:       decimal.NewFromInt(100),
			Currency:     "USD",
			Category:     "sales",
			Jurisdiction: services.Jurisdiction{Country: "US", Region: "CA"},
			Date:         taxDate(),
		})
		testutil.AssertNoError(t, err)
		if calc.RuleID != regionRule.ID {
			t.Errorf("expected region rule %s, got %s", regionRule.ID, calc.RuleID)
		}
	})

	t.Run("unknown region falls back to country rule", func(t *testing.T) {
		calc, err := svc.CalculateTax(services.TaxCalculationRequest{
			Amount:       decimal.NewFromInt(100),
			Currency:     "USD",
			Category:     "sales",
			Jurisdiction: services.Jurisdiction{Country: "US", Region: "NY"},
			Date:         taxDate(),
		})
		testutil.AssertNoError(t, err)
		if calc.RuleID != countryRule.ID {
			t.Errorf("expected country rule %s, got %s", countryRule.ID, calc.RuleID)
		}
	})

	t.Run("no matching jurisdiction", func(t *testing.T) {
		_, err := svc.CalculateTax(services.TaxCalculationRequest{
			Amount:       decimal.NewFromInt(100),
			Currency:     "USD",
			Category:     "sales",
			Jurisdiction: services.Jurisdiction{Country: "FR"},
			Date:         taxDate(),
		})
		testutil.AssertAppError(t, err, "TAX_RULE_NOT_FOUND")
	})
}

func TestRuleValidityWindow(t *testing.T) {
	db, svc := setupTaxService(t)

	to := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	rule := &models.TaxRule{
		Country:       "US",
		Category:      "income",
		Rate:          decimal.RequireFromString("0.10"),
		Currency:      "USD",
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EffectiveTo:   &to,
	}
	if err := db.Create(rule).Error; err != nil {
		t.Fatalf("failed to create windowed rule: %v", err)
	}

	tests := []struct {
		name    string
		date    time.Time
		applies bool
	}{
		{"on effective_from", rule.EffectiveFrom, true},
		{"inside window", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), true},
		{"on effective_to", to, true},
		{"before window", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), false},
		{"after window", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rule.AppliesAt(tt.date); got != tt.applies {
				t.Fatalf("AppliesAt(%s) = %v, want %v", tt.date.Format("2006-01-02"), got, tt.applies)
			}

			calc, err := svc.CalculateTax(services.TaxCalculationRequest{
				Amount:       decimal.NewFromInt(1000),
				Currency:     "USD",
				Category:     "income",
				Jurisdiction: services.Jurisdiction{Country: "US"},
				Date:         tt.date,
			})
			if !tt.applies {
				testutil.AssertAppError(t, err, "TAX_RULE_NOT_FOUND")
				return
			}
			testutil.AssertNoError(t, err)
			if !calc.TaxAmount.Equal(decimal.NewFromInt(100)) {
				t.Errorf("expected tax 100, got %s", calc.TaxAmount)
			}
		})
	}
}

func TestCalculateTaxConvertsCurrency(t *testing.T) {
	db, svc := setupTaxService(t)
	testutil.CreateTestCurrency(t, db, "USD", 2)
	testutil.CreateTestCurrency(t, db, "EUR", 2)
	testutil.CreateTestRate(t, db, "USD", "EUR", decimal.RequireFromString("0.9"),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	testutil.CreateTestTaxRule(t, db, "DE", "", "income", decimal.RequireFromString("0.2"), "EUR")

	calc, err := svc.CalculateTax(services.TaxCalculationRequest{
		Amount:       decimal.NewFromInt(1000),
		Currency:     "USD",
		Category:     "income",
		Jurisdiction: services.Jurisdiction{Country: "DE"},
		Date:         taxDate(),
	})
	testutil.AssertNoError(t, err)

	// 1000 USD -> 900 EUR taxable, 20% of that.
	if !calc.TaxAmount.Equal(decimal.NewFromInt(180)) {
		t.Errorf("expected tax 180, got %s", calc.TaxAmount)
	}
	if calc.Currency != "EUR" {
		t.Errorf("tax should be stated in the rule currency, got %s", calc.Currency)
	}
}

func TestCalculateTaxValidation(t *testing.T) {
	_, svc := setupTaxService(t)

	tests := []struct {
		name string
		req  services.TaxCalculationRequest
	}{
		{"missing country", services.TaxCalculationRequest{Amount: decimal.NewFromInt(100), Currency: "USD", Category: "income"}},
		{"missing category", services.TaxCalculationRequest{Amount: decimal.NewFromInt(100), Currency: "USD", Jurisdiction: services.Jurisdiction{Country: "US"}}},
		{"negative amount", services.TaxCalculationRequest{Amount: decimal.NewFromInt(-1), Currency: "USD", Category: "income", Jurisdiction: services.Jurisdiction{Country: "US"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CalculateTax(tt.req)
			testutil.AssertAppError(t, err, "VALIDATION_FAILED")
		})
	}
}

func TestCalculateProjectionTax(t *testing.T) {
	db, svc := setupTaxService(t)
	plan := testutil.CreateTestPlan(t, db, "USD")
	item := testutil.CreateTestProjection(t, db, plan.ID, models.ProjectionTypeRevenue, models.ScenarioRealistic, 2026, 1, decimal.NewFromInt(2000))
	testutil.CreateTestTaxRule(t, db, "US", "", "general", decimal.RequireFromString("0.15"), "USD")

	calc, err := svc.CalculateProjectionTax(plan.ID, item.ID, services.Jurisdiction{Country: "US"})
	testutil.AssertNoError(t, err)
	if !calc.TaxAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected tax 300, got %s", calc.TaxAmount)
	}

	_, err = svc.CalculateProjectionTax(plan.ID, testutil.TestActor(), services.Jurisdiction{Country: "US"})
	testutil.AssertAppError(t, err, "PROJECTION_NOT_FOUND")
}

func TestCalculatePlanTaxesNeverAborts(t *testing.T) {
	db, svc := setupTaxService(t)
	plan := testutil.CreateTestPlan(t, db, "USD")

	covered := testutil.CreateTestProjection(t, db, plan.ID, models.ProjectionTypeRevenue, models.ScenarioRealistic, 2026, 1, decimal.NewFromInt(1000))

	// Second item's category has no rule anywhere.
	uncovered := &models.ProjectionItem{
		PlanID:     plan.ID,
		Name:       "Licensing revenue",
		Type:       models.ProjectionTypeRevenue,
		Scenario:   models.ScenarioRealistic,
		Year:       2026,
		Month:      2,
		Amount:     decimal.NewFromInt(500),
		Currency:   "USD",
		BaseAmount: decimal.NewFromInt(500),
		Category:   "licensing",
		Frequency:  models.FrequencyOneTime,
		CreatedBy:  testutil.TestActor(),
		UpdatedBy:  testutil.TestActor(),
	}
	if err := db.Create(uncovered).Error; err != nil {
		t.Fatalf("failed to create item: %v", err)
	}

	testutil.CreateTestTaxRule(t, db, "US", "", "general", decimal.RequireFromString("0.1"), "USD")

	outcomes, err := svc.CalculatePlanTaxes(plan.ID, models.ScenarioRealistic, services.Jurisdiction{Country: "US"})
	testutil.AssertNoError(t, err)
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}

	byID := make(map[string]services.ProjectionTaxOutcome, len(outcomes))
	for _, o := range outcomes {
		byID[o.ProjectionID] = o
	}

	good := byID[covered.ID]
	if good.Calculation == nil || !good.Calculation.TaxAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("covered item should have a calculation of 100, got %+v", good.Calculation)
	}
	bad := byID[uncovered.ID]
	if bad.Error == nil || bad.Error.Code != "TAX_RULE_NOT_FOUND" {
		t.Errorf("uncovered item should carry TAX_RULE_NOT_FOUND, got %+v", bad.Error)
	}
}

func TestCreateTaxRule(t *testing.T) {
	db, svc := setupTaxService(t)
	testutil.CreateTestCurrency(t, db, "USD", 2)
	actor := testutil.TestActor()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	upTo := decimal.NewFromInt(1000)
	rule, err := svc.CreateTaxRule(actor, services.TaxRuleInput{
		Country:  "US",
		Category: "income",
		Rate:     decimal.Zero,
		Brackets: models.TaxBrackets{
			{UpTo: &upTo, Rate: decimal.RequireFromString("0.1")},
			{UpTo: nil, Rate: decimal.RequireFromString("0.2")},
		},
		Currency:      "USD",
		EffectiveFrom: from,
	})
	testutil.AssertNoError(t, err)
	if !rule.IsProgressive() {
		t.Error("rule with brackets should be progressive")
	}

	t.Run("rejects non-increasing brackets", func(t *testing.T) {
		lo := decimal.NewFromInt(1000)
		hi := decimal.NewFromInt(500)
		_, err := svc.CreateTaxRule(actor, services.TaxRuleInput{
			Country:  "US",
			Category: "income",
			Brackets: models.TaxBrackets{
				{UpTo: &lo, Rate: decimal.RequireFromString("0.1")},
				{UpTo: &hi, Rate: decimal.RequireFromString("0.2")},
			},
			Currency:      "USD",
			EffectiveFrom: from,
		})
		testutil.AssertAppError(t, err, "VALIDATION_FAILED")
	})

	t.Run("rejects inverted validity window", func(t *testing.T) {
		to := from.AddDate(-1, 0, 0)
		_, err := svc.CreateTaxRule(actor, services.TaxRuleInput{
			Country:       "US",
			Category:      "income",
			Rate:          decimal.RequireFromString("0.1"),
			Currency:      "USD",
			EffectiveFrom: from,
			EffectiveTo:   &to,
		})
		testutil.AssertAppError(t, err, "VALIDATION_FAILED")
	})

	t.Run("rejects unknown currency", func(t *testing.T) {
		_, err := svc.CreateTaxRule(actor, services.TaxRuleInput{
			Country:       "US",
			Category:      "income",
			Rate:          decimal.RequireFromString("0.1"),
			Currency:      "XXX",
			EffectiveFrom: from,
		})
		testutil.AssertAppError(t, err, "CURRENCY_NOT_FOUND")
	})
}

func TestListTaxRules(t *testing.T) {
	db, svc := setupTaxService(t)
	testutil.CreateTestTaxRule(t, db, "US", "", "income", decimal.RequireFromString("0.15"), "USD")
	testutil.CreateTestTaxRule(t, db, "US", "CA", "income", decimal.RequireFromString("0.093"), "USD")
	testutil.CreateTestTaxRule(t, db, "US", "TX", "income", decimal.Zero, "USD")
	testutil.CreateTestTaxRule(t, db, "DE", "", "income", decimal.RequireFromString("0.19"), "EUR")

	t.Run("country only", func(t *testing.T) {
		resp, err := svc.ListTaxRules("US", "", pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if resp.TotalItems != 3 {
			t.Errorf("expected 3 US rules, got %d", resp.TotalItems)
		}
	})

	t.Run("region includes country-level rules", func(t *testing.T) {
		resp, err := svc.ListTaxRules("US", "CA", pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if resp.TotalItems != 2 {
			t.Errorf("expected CA plus country-level rule, got %d", resp.TotalItems)
		}
	})
}
