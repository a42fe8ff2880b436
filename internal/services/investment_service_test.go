package services_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"plancast/internal/models"
	"plancast/internal/pagination"
	"plancast/internal/services"
	"plancast/internal/testutil"
)

func setupInvestmentService(t *testing.T) (*gorm.DB, services.InvestmentServicer) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
	planService := services.NewPlanService(db)
	currencyService := services.NewCurrencyService(db)
	projectionSvc := services.NewProjectionService(db, planService, currencyService)
	return db, services.NewInvestmentService(db, planService, projectionSvc)
}

func decimals(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestCalculateROI(t *testing.T) {
	db, svc := setupInvestmentService(t)
	plan := testutil.CreateTestPlan(t, db, "USD")

	roi, err := svc.CalculateROI(plan.ID, decimal.NewFromInt(10000), decimal.NewFromInt(15000))
	testutil.AssertNoError(t, err)
	if !roi.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("expected ROI 0.5, got %s", roi)
	}

	t.Run("zero investment", func(t *testing.T) {
		_, err := svc.CalculateROI(plan.ID, decimal.Zero, decimal.NewFromInt(15000))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("unknown plan", func(t *testing.T) {
		_, err := svc.CalculateROI(testutil.TestActor(), decimal.NewFromInt(1), decimal.NewFromInt(2))
		testutil.AssertAppError(t, err, "PLAN_NOT_FOUND")
	})
}

func TestCalculateNPVExplicitSeries(t *testing.T) {
	db, svc := setupInvestmentService(t)
	plan := testutil.CreateTestPlan(t, db, "USD")

	npv, err := svc.CalculateNPV(plan.ID, decimal.RequireFromString("0.10"), services.CashFlowParams{
		InitialInvestment: decimal.NewFromInt(1000),
		CashFlows:         decimals("300", "400", "500", "600"),
	})
	testutil.AssertNoError(t, err)
	if !npv.Round(2).Equal(decimal.RequireFromString("388.77")) {
		t.Errorf("expected NPV 388.77, got %s", npv.Round(2))
	}
}

func TestCalculateNPVDerivedFromProjections(t *testing.T) {
	db, svc := setupInvestmentService(t)
	plan := testutil.CreateTestPlan(t, db, "USD")

	testutil.CreateTestProjection(t, db, plan.ID, models.ProjectionTypeRevenue, models.ScenarioRealistic, 2026, 1, decimal.NewFromInt(1100))

	// One inflow of 1100 a period out at 10%: present value 1000.
	npv, err := svc.CalculateNPV(plan.ID, decimal.RequireFromString("0.10"), services.CashFlowParams{
		InitialInvestment: decimal.NewFromInt(500),
		Scenario:          models.ScenarioRealistic,
		Periods:           1,
	})
	testutil.AssertNoError(t, err)
	if !npv.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected NPV 500, got %s", npv)
	}
}

func TestCalculateIRR(t *testing.T) {
	db, svc := setupInvestmentService(t)
	plan := testutil.CreateTestPlan(t, db, "USD")

	irr, err := svc.CalculateIRR(plan.ID, services.CashFlowParams{
		InitialInvestment: decimal.NewFromInt(1000),
		CashFlows:         decimals("300", "400", "500", "600"),
	})
	testutil.AssertNoError(t, err)
	if irr.LessThan(decimal.RequireFromString("0.248")) || irr.GreaterThan(decimal.RequireFromString("0.249")) {
		t.Errorf("expected IRR near 0.2489, got %s", irr)
	}

	t.Run("no sign change", func(t *testing.T) {
		_, err := svc.CalculateIRR(plan.ID, services.CashFlowParams{
			InitialInvestment: decimal.NewFromInt(1000),
			CashFlows:         decimals("-100", "-200"),
		})
		testutil.AssertAppError(t, err, "NO_CONVERGENCE")
	})
}

func TestCreateAnalysisComposite(t *testing.T) {
	db, svc := setupInvestmentService(t)
	plan := testutil.CreateTestPlan(t, db, "USD")
	actor := testutil.TestActor()

	analysis, err := svc.CreateAnalysis(actor, plan.ID, services.AnalysisInput{
		Name:              "Seed round deployment",
		AnalysisType:      models.AnalysisTypeComposite,
		InitialInvestment: decimal.NewFromInt(1000),
		ExpectedReturn:    decimal.NewFromInt(1500),
		DiscountRate:      decimal.RequireFromString("0.10"),
		Currency:          "USD",
		CashFlows:         decimals("300", "400", "500", "600"),
	})
	testutil.AssertNoError(t, err)

	if !analysis.ROI.Valid || !analysis.ROI.Decimal.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("expected ROI 0.5, got %+v", analysis.ROI)
	}
	if !analysis.NPV.Valid || !analysis.NPV.Decimal.Round(2).Equal(decimal.RequireFromString("388.77")) {
		t.Errorf("expected NPV 388.77, got %+v", analysis.NPV)
	}
	if !analysis.IRR.Valid {
		t.Error("expected a defined IRR")
	}
	if analysis.ComputedAt == nil {
		t.Error("derived fields must carry a computation timestamp")
	}
	if analysis.AnalysisPeriods != 4 {
		t.Errorf("expected periods defaulted to the series length, got %d", analysis.AnalysisPeriods)
	}
	if analysis.RiskLevel != models.RiskLevelMedium {
		t.Errorf("expected medium default risk level, got %s", analysis.RiskLevel)
	}

	stored, err := svc.GetAnalysisByID(plan.ID, analysis.ID)
	testutil.AssertNoError(t, err)
	if !stored.ROI.Valid || !stored.NPV.Valid || !stored.IRR.Valid {
		t.Error("all derived fields should be persisted together")
	}
}

func TestCreateAnalysisIRRUndefined(t *testing.T) {
	db, svc := setupInvestmentService(t)
	plan := testutil.CreateTestPlan(t, db, "USD")
	actor := testutil.TestActor()

	noRoot := services.AnalysisInput{
		Name:              "Sunk cost review",
		InitialInvestment: decimal.NewFromInt(1000),
		ExpectedReturn:    decimal.NewFromInt(500),
		DiscountRate:      decimal.RequireFromString("0.10"),
		Currency:          "USD",
		CashFlows:         decimals("-100", "-200"),
	}

	t.Run("composite stores null IRR", func(t *testing.T) {
		in := noRoot
		in.AnalysisType = models.AnalysisTypeComposite
		analysis, err := svc.CreateAnalysis(actor, plan.ID, in)
		testutil.AssertNoError(t, err)
		if analysis.IRR.Valid {
			t.Errorf("expected null IRR for a series with no root, got %s", analysis.IRR.Decimal)
		}
		if !analysis.NPV.Valid {
			t.Error("NPV should still be computed")
		}
	})

	t.Run("irr-typed analysis fails and stores nothing", func(t *testing.T) {
		in := noRoot
		in.AnalysisType = models.AnalysisTypeIRR
		_, err := svc.CreateAnalysis(actor, plan.ID, in)
		testutil.AssertAppError(t, err, "NO_CONVERGENCE")

		var count int64
		if err := db.Model(&models.InvestmentAnalysis{}).
			Where("plan_id = ? AND analysis_type = ?", plan.ID, models.AnalysisTypeIRR).
			Count(&count).Error; err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 0 {
			t.Errorf("failed computation must not persist a row, found %d", count)
		}
	})
}

func TestCreateAnalysisValidation(t *testing.T) {
	db, svc := setupInvestmentService(t)
	plan := testutil.CreateTestPlan(t, db, "USD")
	actor := testutil.TestActor()

	base := services.AnalysisInput{
		Name:              "Check",
		AnalysisType:      models.AnalysisTypeNPV,
		InitialInvestment: decimal.NewFromInt(1000),
		DiscountRate:      decimal.RequireFromString("0.10"),
		Currency:          "USD",
		CashFlows:         decimals("100"),
	}

	tests := []struct {
		name   string
		mutate func(*services.AnalysisInput)
		code   string
	}{
		{"missing name", func(in *services.AnalysisInput) { in.Name = "" }, "VALIDATION_FAILED"},
		{"unknown type", func(in *services.AnalysisInput) { in.AnalysisType = "payback" }, "VALIDATION_FAILED"},
		{"negative investment", func(in *services.AnalysisInput) { in.InitialInvestment = decimal.NewFromInt(-1) }, "VALIDATION_FAILED"},
		{"discount rate at -100%", func(in *services.AnalysisInput) { in.DiscountRate = decimal.NewFromInt(-1) }, "VALIDATION_FAILED"},
		{"zero investment for ROI", func(in *services.AnalysisInput) {
			in.AnalysisType = models.AnalysisTypeROI
			in.InitialInvestment = decimal.Zero
		}, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := svc.CreateAnalysis(actor, plan.ID, in)
			testutil.AssertAppError(t, err, tt.code)
		})
	}
}

func TestRecomputeAnalysis(t *testing.T) {
	db, svc := setupInvestmentService(t)
	plan := testutil.CreateTestPlan(t, db, "USD")
	editor := testutil.TestActor()

	analysis := testutil.CreateTestAnalysis(t, db, plan.ID, decimal.NewFromInt(500), decimal.RequireFromString("0.10"), 1)
	testutil.CreateTestProjection(t, db, plan.ID, models.ProjectionTypeRevenue, models.ScenarioRealistic, 2026, 1, decimal.NewFromInt(1100))

	recomputed, err := svc.RecomputeAnalysis(editor, plan.ID, analysis.ID)
	testutil.AssertNoError(t, err)
	if !recomputed.NPV.Valid || !recomputed.NPV.Decimal.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected NPV 500 from derived flows, got %+v", recomputed.NPV)
	}
	if recomputed.ComputedAt == nil {
		t.Error("recompute must refresh the computation timestamp")
	}
	if recomputed.UpdatedBy != editor {
		t.Error("recompute must record the acting identity")
	}

	_, err = svc.RecomputeAnalysis(editor, plan.ID, testutil.TestActor())
	testutil.AssertAppError(t, err, "ANALYSIS_NOT_FOUND")
}

func TestGetPlanAnalyses(t *testing.T) {
	db, svc := setupInvestmentService(t)
	plan := testutil.CreateTestPlan(t, db, "USD")

	for i := 0; i < 3; i++ {
		testutil.CreateTestAnalysis(t, db, plan.ID, decimal.NewFromInt(1000), decimal.RequireFromString("0.10"), 4)
	}

	resp, err := svc.GetPlanAnalyses(plan.ID, pagination.PageRequest{Page: 1, PageSize: 2})
	testutil.AssertNoError(t, err)
	if resp.TotalItems != 3 {
		t.Errorf("expected 3 analyses total, got %d", resp.TotalItems)
	}
	if len(resp.Data) != 2 {
		t.Errorf("expected a 2-item page, got %d", len(resp.Data))
	}
	if resp.TotalPages != 2 {
		t.Errorf("expected 2 pages, got %d", resp.TotalPages)
	}
}
