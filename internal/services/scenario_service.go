package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "plancast/internal/errors"
	"plancast/internal/finmath"
	"plancast/internal/models"
)

// scenarioService orchestrates per-scenario KPI and return-metric
// computation. Scenario results stay keyed separately; nothing is
// interpolated between scenarios.
type scenarioService struct {
	db            *gorm.DB
	planService   PlanServicer
	projectionSvc ProjectionServicer
	kpiService    KPIServicer
}

// NewScenarioService creates a new ScenarioServicer.
func NewScenarioService(db *gorm.DB, planService PlanServicer, projectionSvc ProjectionServicer, kpiService KPIServicer) ScenarioServicer {
	return &scenarioService{
		db:            db,
		planService:   planService,
		projectionSvc: projectionSvc,
		kpiService:    kpiService,
	}
}

// latestAnalysis returns the plan's most recent investment analysis, whose
// inputs (initial investment, discount rate, horizon) seed the per-scenario
// return metrics.
func (s *scenarioService) latestAnalysis(planID string) (*models.InvestmentAnalysis, error) {
	var analysis models.InvestmentAnalysis
	err := s.db.
		Where("plan_id = ?", planID).
		Order("created_at DESC").
		First(&analysis).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAnalysisNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &analysis, nil
}

// CompareScenarios computes KPIs and return metrics once per defined
// scenario. A scenario with no projections keeps undefined KPI values and
// null NPV/ROI; values are never inferred from another scenario's data.
func (s *scenarioService) CompareScenarios(ctx context.Context, planID string) (ScenarioComparison, error) {
	if err := s.planService.Exists(planID); err != nil {
		return nil, err
	}

	analysis, err := s.latestAnalysis(planID)
	if err != nil && !errors.Is(err, apperrors.ErrAnalysisNotFound) {
		return nil, err
	}

	comparison := make(ScenarioComparison, len(models.AllScenarios))
	for _, scenario := range models.AllScenarios {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apperrors.Wrap(apperrors.ErrCancelled, ctxErr)
		}

		kpis, kpiErr := s.kpiService.CalculateKPIs(planID, scenario, KPIAssumptions{})
		if kpiErr != nil {
			return nil, kpiErr
		}

		metrics := ScenarioMetrics{KPIs: kpis}

		items, itemErr := s.projectionSvc.GetScenarioProjections(planID, scenario)
		if itemErr != nil {
			return nil, itemErr
		}

		if analysis != nil && len(items) > 0 {
			flows, flowErr := s.projectionSvc.CashFlowSeries(planID, scenario, analysis.AnalysisPeriods)
			if flowErr != nil {
				return nil, flowErr
			}

			series := append([]decimal.Decimal{analysis.InitialInvestment.Neg()}, flows...)
			metrics.NPV = decimal.NewNullDecimal(finmath.NPV(analysis.DiscountRate, series))

			// Scenario gain is the total net flow over the horizon.
			if !analysis.InitialInvestment.IsZero() {
				gain := decimal.Zero
				for _, f := range flows {
					gain = gain.Add(f)
				}
				roi, roiErr := finmath.ROI(analysis.InitialInvestment, gain)
				if roiErr == nil {
					metrics.ROI = decimal.NewNullDecimal(roi)
				}
			}
		}

		comparison[scenario] = metrics
	}

	return comparison, nil
}

// Sensitivity recomputes NPV for each caller-supplied delta with exactly
// one input variable perturbed, holding everything else fixed. Result
// order preserves the caller's delta order.
func (s *scenarioService) Sensitivity(ctx context.Context, planID, variable string, deltas []decimal.Decimal) ([]SensitivityPoint, error) {
	if err := s.planService.Exists(planID); err != nil {
		return nil, err
	}
	switch variable {
	case SensitivityVariableRevenue, SensitivityVariableExpenses, SensitivityVariableDiscountRate:
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown sensitivity variable: "+variable)
	}
	if len(deltas) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "At least one delta is required")
	}

	analysis, err := s.latestAnalysis(planID)
	if err != nil {
		return nil, err
	}

	inflows, outflows, err := s.projectionSvc.FlowComponents(planID, models.ScenarioRealistic, analysis.AnalysisPeriods)
	if err != nil {
		return nil, err
	}

	one := decimal.NewFromInt(1)
	points := make([]SensitivityPoint, 0, len(deltas))
	for _, delta := range deltas {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apperrors.Wrap(apperrors.ErrCancelled, ctxErr)
		}

		scale := one.Add(delta)
		rate := analysis.DiscountRate

		series := make([]decimal.Decimal, 0, len(inflows)+1)
		series = append(series, analysis.InitialInvestment.Neg())
		for i := range inflows {
			in, out := inflows[i], outflows[i]
			switch variable {
			case SensitivityVariableRevenue:
				in = in.Mul(scale)
			case SensitivityVariableExpenses:
				out = out.Mul(scale)
			}
			series = append(series, in.Sub(out))
		}
		if variable == SensitivityVariableDiscountRate {
			rate = analysis.DiscountRate.Mul(scale)
		}

		points = append(points, SensitivityPoint{
			Delta: delta,
			Value: decimal.NewNullDecimal(finmath.NPV(rate, series)),
		})
	}

	return points, nil
}

// BreakEven scans the Realistic scenario's cumulative cash flow in period
// order and interpolates the fractional break-even period. A horizon that
// never turns non-negative reports Reached=false, not an error.
func (s *scenarioService) BreakEven(planID string) (*BreakEvenResult, error) {
	items, err := s.projectionSvc.GetScenarioProjections(planID, models.ScenarioRealistic)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return &BreakEvenResult{Reached: false, HorizonPeriods: 0}, nil
	}

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
	horizon := maxIdx - minIdx + 1

	flows, err := s.projectionSvc.CashFlowSeries(planID, models.ScenarioRealistic, horizon)
	if err != nil {
		return nil, err
	}

	cumulative := make([]decimal.Decimal, len(flows))
	running := decimal.Zero
	for i, f := range flows {
		running = running.Add(f)
		cumulative[i] = running
	}

	return breakEvenFromCumulative(finmath.BreakEven(cumulative), horizon), nil
}
