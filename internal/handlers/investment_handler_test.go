package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "plancast/internal/errors"
	"plancast/internal/models"
	"plancast/internal/pagination"
	"plancast/internal/services"
	"plancast/internal/uuid"
)

// --- mock investment service ---

type mockInvestmentService struct {
	createAnalysisFn  func(actor, planID string, in services.AnalysisInput) (*models.InvestmentAnalysis, error)
	getAnalysisFn     func(planID, analysisID string) (*models.InvestmentAnalysis, error)
	getPlanAnalysesFn func(planID string, page pagination.PageRequest) (*pagination.PageResponse[models.InvestmentAnalysis], error)
	recomputeFn       func(actor, planID, analysisID string) (*models.InvestmentAnalysis, error)
	roiFn             func(planID string, initialInvestment, expectedReturn decimal.Decimal) (decimal.Decimal, error)
	npvFn             func(planID string, discountRate decimal.Decimal, p services.CashFlowParams) (decimal.Decimal, error)
	irrFn             func(planID string, p services.CashFlowParams) (decimal.Decimal, error)
}

func (m *mockInvestmentService) CreateAnalysis(actor, planID string, in services.AnalysisInput) (*models.InvestmentAnalysis, error) {
	if m.createAnalysisFn != nil {
		return m.createAnalysisFn(actor, planID, in)
	}
	return &models.InvestmentAnalysis{}, nil
}

func (m *mockInvestmentService) GetAnalysisByID(planID, analysisID string) (*models.InvestmentAnalysis, error) {
	if m.getAnalysisFn != nil {
		return m.getAnalysisFn(planID, analysisID)
	}
	return &models.InvestmentAnalysis{}, nil
}

func (m *mockInvestmentService) GetPlanAnalyses(planID string, page pagination.PageRequest) (*pagination.PageResponse[models.InvestmentAnalysis], error) {
	if m.getPlanAnalysesFn != nil {
		return m.getPlanAnalysesFn(planID, page)
	}
	resp := pagination.NewPageResponse([]models.InvestmentAnalysis{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockInvestmentService) RecomputeAnalysis(actor, planID, analysisID string) (*models.InvestmentAnalysis, error) {
	if m.recomputeFn != nil {
		return m.recomputeFn(actor, planID, analysisID)
	}
	return &models.InvestmentAnalysis{}, nil
}

func (m *mockInvestmentService) CalculateROI(planID string, initialInvestment, expectedReturn decimal.Decimal) (decimal.Decimal, error) {
	if m.roiFn != nil {
		return m.roiFn(planID, initialInvestment, expectedReturn)
	}
	return decimal.Zero, nil
}

func (m *mockInvestmentService) CalculateNPV(planID string, discountRate decimal.Decimal, p services.CashFlowParams) (decimal.Decimal, error) {
	if m.npvFn != nil {
		return m.npvFn(planID, discountRate, p)
	}
	return decimal.Zero, nil
}

func (m *mockInvestmentService) CalculateIRR(planID string, p services.CashFlowParams) (decimal.Decimal, error) {
	if m.irrFn != nil {
		return m.irrFn(planID, p)
	}
	return decimal.Zero, nil
}

var _ services.InvestmentServicer = (*mockInvestmentService)(nil)

func setupInvestmentRouter(handler *InvestmentHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectActor(testActor))
	auth.POST("/plans/:id/analyses", handler.CreateAnalysis)
	auth.GET("/plans/:id/analyses", handler.GetPlanAnalyses)
	auth.GET("/plans/:id/analyses/:analysisID", handler.GetAnalysis)
	auth.POST("/plans/:id/analyses/:analysisID/recompute", handler.RecomputeAnalysis)
	auth.POST("/plans/:id/calculations/roi", handler.CalculateROI)
	auth.POST("/plans/:id/calculations/npv", handler.CalculateNPV)
	auth.POST("/plans/:id/calculations/irr", handler.CalculateIRR)
	return r
}

const analysisBody = `{"name":"Seed round","analysis_type":"composite","initial_investment":1000,"expected_return":1500,"discount_rate":0.1,"currency":"USD","cash_flows":[300,400,500,600]}`

// --- tests ---

func TestInvestmentHandler_CreateAnalysis(t *testing.T) {
	planID := uuid.New()

	t.Run("returns 201 on success", func(t *testing.T) {
		svc := &mockInvestmentService{
			createAnalysisFn: func(actor, gotPlanID string, in services.AnalysisInput) (*models.InvestmentAnalysis, error) {
				if actor != testActor {
					t.Errorf("expected actor %s, got %s", testActor, actor)
				}
				if in.AnalysisType != models.AnalysisTypeComposite {
					t.Errorf("expected composite type, got %s", in.AnalysisType)
				}
				if len(in.CashFlows) != 4 {
					t.Errorf("expected 4 cash flows, got %d", len(in.CashFlows))
				}
				return &models.InvestmentAnalysis{
					PlanID:            gotPlanID,
					Name:              in.Name,
					AnalysisType:      in.AnalysisType,
					InitialInvestment: in.InitialInvestment,
					ROI:               decimal.NewNullDecimal(decimal.RequireFromString("0.5")),
				}, nil
			},
		}
		handler := NewInvestmentHandler(svc, &mockAuditService{})
		r := setupInvestmentRouter(handler)

		rec := doRequest(r, "POST", "/plans/"+planID+"/analyses", analysisBody)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		analysis := result["analysis"].(map[string]interface{})
		if analysis["name"] != "Seed round" {
			t.Errorf("expected analysis in response, got %v", analysis["name"])
		}
	})

	t.Run("returns 400 on missing analysis type", func(t *testing.T) {
		handler := NewInvestmentHandler(&mockInvestmentService{}, &mockAuditService{})
		r := setupInvestmentRouter(handler)

		rec := doRequest(r, "POST", "/plans/"+planID+"/analyses",
			`{"name":"X","initial_investment":1000,"currency":"USD"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 422 when IRR does not converge", func(t *testing.T) {
		svc := &mockInvestmentService{
			createAnalysisFn: func(_, _ string, _ services.AnalysisInput) (*models.InvestmentAnalysis, error) {
				return nil, apperrors.ErrNoConvergence
			},
		}
		handler := NewInvestmentHandler(svc, &mockAuditService{})
		r := setupInvestmentRouter(handler)

		rec := doRequest(r, "POST", "/plans/"+planID+"/analyses", analysisBody)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "NO_CONVERGENCE")
	})
}

func TestInvestmentHandler_GetAnalysis(t *testing.T) {
	planID := uuid.New()
	analysisID := uuid.New()

	t.Run("returns 404 when missing", func(t *testing.T) {
		svc := &mockInvestmentService{
			getAnalysisFn: func(_, _ string) (*models.InvestmentAnalysis, error) {
				return nil, apperrors.ErrAnalysisNotFound
			},
		}
		handler := NewInvestmentHandler(svc, &mockAuditService{})
		r := setupInvestmentRouter(handler)

		rec := doRequest(r, "GET", "/plans/"+planID+"/analyses/"+analysisID, "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "ANALYSIS_NOT_FOUND")
	})

	t.Run("returns 400 on malformed analysis id", func(t *testing.T) {
		handler := NewInvestmentHandler(&mockInvestmentService{}, &mockAuditService{})
		r := setupInvestmentRouter(handler)

		rec := doRequest(r, "GET", "/plans/"+planID+"/analyses/not-a-uuid", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestInvestmentHandler_RecomputeAnalysis(t *testing.T) {
	planID := uuid.New()
	analysisID := uuid.New()

	svc := &mockInvestmentService{
		recomputeFn: func(actor, _, gotAnalysisID string) (*models.InvestmentAnalysis, error) {
			if actor != testActor {
				t.Errorf("expected actor %s, got %s", testActor, actor)
			}
			return &models.InvestmentAnalysis{
				NPV: decimal.NewNullDecimal(decimal.RequireFromString("388.77")),
			}, nil
		},
	}
	handler := NewInvestmentHandler(svc, &mockAuditService{})
	r := setupInvestmentRouter(handler)

	rec := doRequest(r, "POST", "/plans/"+planID+"/analyses/"+analysisID+"/recompute", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestInvestmentHandler_CalculateROI(t *testing.T) {
	planID := uuid.New()

	t.Run("returns the ratio", func(t *testing.T) {
		svc := &mockInvestmentService{
			roiFn: func(_ string, initial, expected decimal.Decimal) (decimal.Decimal, error) {
				if !initial.Equal(decimal.NewFromInt(10000)) || !expected.Equal(decimal.NewFromInt(15000)) {
					t.Errorf("unexpected inputs: %s / %s", initial, expected)
				}
				return decimal.RequireFromString("0.5"), nil
			},
		}
		handler := NewInvestmentHandler(svc, &mockAuditService{})
		r := setupInvestmentRouter(handler)

		rec := doRequest(r, "POST", "/plans/"+planID+"/calculations/roi",
			`{"initial_investment":10000,"expected_return":15000}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["roi"] != "0.5" {
			t.Errorf("expected roi 0.5, got %v", result["roi"])
		}
	})

	t.Run("returns 400 on zero investment", func(t *testing.T) {
		svc := &mockInvestmentService{
			roiFn: func(_ string, _, _ decimal.Decimal) (decimal.Decimal, error) {
				return decimal.Zero, apperrors.ErrInvalidInput
			},
		}
		handler := NewInvestmentHandler(svc, &mockAuditService{})
		r := setupInvestmentRouter(handler)

		rec := doRequest(r, "POST", "/plans/"+planID+"/calculations/roi",
			`{"initial_investment":1,"expected_return":15000}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestInvestmentHandler_CalculateIRR(t *testing.T) {
	planID := uuid.New()

	t.Run("passes scenario params through", func(t *testing.T) {
		svc := &mockInvestmentService{
			irrFn: func(_ string, p services.CashFlowParams) (decimal.Decimal, error) {
				if p.Scenario != models.ScenarioOptimistic || p.Periods != 24 {
					t.Errorf("unexpected params: %+v", p)
				}
				return decimal.RequireFromString("0.2"), nil
			},
		}
		handler := NewInvestmentHandler(svc, &mockAuditService{})
		r := setupInvestmentRouter(handler)

		rec := doRequest(r, "POST", "/plans/"+planID+"/calculations/irr",
			`{"initial_investment":1000,"scenario":"optimistic","periods":24}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns 422 when no root exists", func(t *testing.T) {
		svc := &mockInvestmentService{
			irrFn: func(_ string, _ services.CashFlowParams) (decimal.Decimal, error) {
				return decimal.Zero, apperrors.ErrNoConvergence
			},
		}
		handler := NewInvestmentHandler(svc, &mockAuditService{})
		r := setupInvestmentRouter(handler)

		rec := doRequest(r, "POST", "/plans/"+planID+"/calculations/irr",
			`{"initial_investment":1000,"cash_flows":[-100,-200]}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})
}
