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

// defaultAnalysisPeriods is the derived cash-flow horizon when the caller
// does not supply one.
const defaultAnalysisPeriods = 12

// investmentService computes ROI, NPV, and IRR for plan analyses.
type investmentService struct {
	db            *gorm.DB
	planService   PlanServicer
	projectionSvc ProjectionServicer
}

// NewInvestmentService creates a new InvestmentServicer.
func NewInvestmentService(db *gorm.DB, planService PlanServicer, projectionSvc ProjectionServicer) InvestmentServicer {
	return &investmentService{db: db, planService: planService, projectionSvc: projectionSvc}
}

// flowSeries assembles the full cash-flow series with the initial outlay at
// t=0, deriving the per-period flows from projections when no explicit
// series is supplied.
func (s *investmentService) flowSeries(planID string, p CashFlowParams) ([]decimal.Decimal, error) {
	flows := p.CashFlows
	if flows == nil {
		scenario := p.Scenario
		if scenario == "" {
			scenario = models.ScenarioRealistic
		}
		periods := p.Periods
		if periods <= 0 {
			periods = defaultAnalysisPeriods
		}
		derived, err := s.projectionSvc.CashFlowSeries(planID, scenario, periods)
		if err != nil {
			return nil, err
		}
		flows = derived
	}

	series := make([]decimal.Decimal, 0, len(flows)+1)
	series = append(series, p.InitialInvestment.Neg())
	series = append(series, flows...)
	return series, nil
}

// CalculateROI computes (expected - initial) / initial for the plan.
func (s *investmentService) CalculateROI(planID string, initialInvestment, expectedReturn decimal.Decimal) (decimal.Decimal, error) {
	if err := s.planService.Exists(planID); err != nil {
		return decimal.Zero, err
	}

	roi, err := finmath.ROI(initialInvestment, expectedReturn)
	if err != nil {
		return decimal.Zero, apperrors.WithMessage(apperrors.ErrInvalidInput, "Initial investment must be non-zero for ROI")
	}
	return roi, nil
}

// CalculateNPV computes the net present value of the selected series.
func (s *investmentService) CalculateNPV(planID string, discountRate decimal.Decimal, p CashFlowParams) (decimal.Decimal, error) {
	if err := s.planService.Exists(planID); err != nil {
		return decimal.Zero, err
	}
	series, err := s.flowSeries(planID, p)
	if err != nil {
		return decimal.Zero, err
	}
	return finmath.NPV(discountRate, series), nil
}

// CalculateIRR finds the internal rate of return of the selected series.
func (s *investmentService) CalculateIRR(planID string, p CashFlowParams) (decimal.Decimal, error) {
	if err := s.planService.Exists(planID); err != nil {
		return decimal.Zero, err
	}
	series, err := s.flowSeries(planID, p)
	if err != nil {
		return decimal.Zero, err
	}

	irr, err := finmath.IRR(series, finmath.DefaultIRROptions())
	if err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrNoConvergence, err)
	}
	return irr, nil
}

func validateAnalysisInput(in AnalysisInput) error {
	if in.Name == "" {
		return apperrors.WithMessage(apperrors.ErrValidation, "Analysis name is required")
	}
	switch in.AnalysisType {
	case models.AnalysisTypeROI, models.AnalysisTypeNPV, models.AnalysisTypeIRR, models.AnalysisTypeComposite:
	default:
		return apperrors.WithMessage(apperrors.ErrValidation, "Unknown analysis type")
	}
	if in.InitialInvestment.Sign() < 0 {
		return apperrors.WithMessage(apperrors.ErrValidation, "Initial investment must be non-negative")
	}
	if in.AnalysisPeriods < 0 {
		return apperrors.WithMessage(apperrors.ErrValidation, "Analysis period must be non-negative")
	}
	if in.DiscountRate.LessThanOrEqual(decimal.NewFromInt(-1)) {
		return apperrors.WithMessage(apperrors.ErrValidation, "Discount rate must be greater than -100%")
	}
	return nil
}

// compute derives ROI, NPV, and IRR for the analysis and replaces all
// derived fields together. IRR is stored as null for composite analyses
// whose series admits no root; an IRR-typed analysis fails instead.
func (s *investmentService) compute(analysis *models.InvestmentAnalysis, explicitFlows []decimal.Decimal) error {
	wantROI := analysis.AnalysisType == models.AnalysisTypeROI || analysis.AnalysisType == models.AnalysisTypeComposite
	wantNPV := analysis.AnalysisType == models.AnalysisTypeNPV || analysis.AnalysisType == models.AnalysisTypeComposite
	wantIRR := analysis.AnalysisType == models.AnalysisTypeIRR || analysis.AnalysisType == models.AnalysisTypeComposite

	roi := decimal.NullDecimal{}
	npv := decimal.NullDecimal{}
	irr := decimal.NullDecimal{}

	if wantROI {
		v, err := finmath.ROI(analysis.InitialInvestment, analysis.ExpectedReturn)
		if err != nil {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "Initial investment must be non-zero for ROI")
		}
		roi = decimal.NewNullDecimal(v)
	}

	if wantNPV || wantIRR {
		series, err := s.flowSeries(analysis.PlanID, CashFlowParams{
			InitialInvestment: analysis.InitialInvestment,
			CashFlows:         explicitFlows,
			Periods:           analysis.AnalysisPeriods,
		})
		if err != nil {
			return err
		}

		if wantNPV {
			npv = decimal.NewNullDecimal(finmath.NPV(analysis.DiscountRate, series))
		}
		if wantIRR {
			v, irrErr := finmath.IRR(series, finmath.DefaultIRROptions())
			switch {
			case irrErr == nil:
				irr = decimal.NewNullDecimal(v)
			case analysis.AnalysisType == models.AnalysisTypeIRR:
				return apperrors.Wrap(apperrors.ErrNoConvergence, irrErr)
			}
		}
	}

	now := time.Now().UTC()
	analysis.ROI = roi
	analysis.NPV = npv
	analysis.IRR = irr
	analysis.ComputedAt = &now
	return nil
}

// CreateAnalysis validates, computes, and stores a new analysis. Derived
// fields are computed before the row is written; a failed computation
// stores nothing.
func (s *investmentService) CreateAnalysis(actor, planID string, in AnalysisInput) (*models.InvestmentAnalysis, error) {
	if err := s.planService.Exists(planID); err != nil {
		return nil, err
	}
	if err := validateAnalysisInput(in); err != nil {
		return nil, err
	}

	riskLevel := in.RiskLevel
	if riskLevel == "" {
		riskLevel = models.RiskLevelMedium
	}
	periods := in.AnalysisPeriods
	if periods == 0 {
		if len(in.CashFlows) > 0 {
			periods = len(in.CashFlows)
		} else {
			periods = defaultAnalysisPeriods
		}
	}

	analysis := &models.InvestmentAnalysis{
		PlanID:            planID,
		Name:              in.Name,
		AnalysisType:      in.AnalysisType,
		InitialInvestment: in.InitialInvestment,
		ExpectedReturn:    in.ExpectedReturn,
		DiscountRate:      in.DiscountRate,
		AnalysisPeriods:   periods,
		Currency:          in.Currency,
		RiskLevel:         riskLevel,
		FundingSource:     in.FundingSource,
		CreatedBy:         actor,
		UpdatedBy:         actor,
	}

	if err := s.compute(analysis, in.CashFlows); err != nil {
		return nil, err
	}

	if err := s.db.Create(analysis).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return analysis, nil
}

// GetAnalysisByID returns an analysis scoped to the plan.
func (s *investmentService) GetAnalysisByID(planID, analysisID string) (*models.InvestmentAnalysis, error) {
	var analysis models.InvestmentAnalysis
	if err := s.db.First(&analysis, "id = ? AND plan_id = ?", analysisID, planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAnalysisNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &analysis, nil
}

// GetPlanAnalyses returns a paginated list of the plan's analyses.
func (s *investmentService) GetPlanAnalyses(planID string, page pagination.PageRequest) (*pagination.PageResponse[models.InvestmentAnalysis], error) {
	if err := s.planService.Exists(planID); err != nil {
		return nil, err
	}

	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.InvestmentAnalysis{}).Where("plan_id = ?", planID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var analyses []models.InvestmentAnalysis
	if err := base.Order("created_at DESC").
		Scopes(pagination.Paginate(page)).Find(&analyses).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(analyses, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// RecomputeAnalysis re-derives all return metrics from the stored inputs
// against the plan's current projections and persists them in one write.
func (s *investmentService) RecomputeAnalysis(actor, planID, analysisID string) (*models.InvestmentAnalysis, error) {
	analysis, err := s.GetAnalysisByID(planID, analysisID)
	if err != nil {
		return nil, err
	}

	if err := s.compute(analysis, nil); err != nil {
		return nil, err
	}
	analysis.UpdatedBy = actor

	if err := s.db.Save(analysis).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return analysis, nil
}
