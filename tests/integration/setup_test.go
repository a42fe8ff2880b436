package integration

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"plancast/internal/config"
	"plancast/internal/handlers"
	"plancast/internal/logger"
	"plancast/internal/middleware"
	"plancast/internal/models"
	"plancast/internal/services"
	"plancast/internal/uuid"
	"plancast/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.BusinessPlan{},
		&models.Currency{},
		&models.ExchangeRate{},
		&models.ProjectionItem{},
		&models.TaxRule{},
		&models.FinancialKPI{},
		&models.InvestmentAnalysis{},
		&models.AuditLog{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	// Services
	auditService := services.NewAuditService(db)
	planService := services.NewPlanService(db)
	currencyService := services.NewCurrencyService(db)
	projectionService := services.NewProjectionService(db, planService, currencyService)
	taxService := services.NewTaxService(db, planService, projectionService, currencyService)
	kpiService := services.NewKPIService(db, planService, projectionService)
	investmentService := services.NewInvestmentService(db, planService, projectionService)
	scenarioService := services.NewScenarioService(db, planService, projectionService, kpiService)
	reportService := services.NewReportService(db, planService, currencyService, projectionService)

	// Handlers
	currencyHandler := handlers.NewCurrencyHandler(currencyService, auditService)
	projectionHandler := handlers.NewProjectionHandler(projectionService, auditService)
	taxHandler := handlers.NewTaxHandler(taxService, auditService)
	kpiHandler := handlers.NewKPIHandler(kpiService, auditService)
	investmentHandler := handlers.NewInvestmentHandler(investmentService, auditService)
	scenarioHandler := handlers.NewScenarioHandler(scenarioService)
	reportHandler := handlers.NewReportHandler(reportService, 30*time.Second)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware())

	currencies := v1.Group("/currencies")
	currencies.GET("", currencyHandler.ListCurrencies)
	currencies.POST("/convert", currencyHandler.Convert)
	currencies.GET("/rates", currencyHandler.GetExchangeRate)
	currencies.POST("/rates", currencyHandler.CreateExchangeRate)
	currencies.GET("/:code", currencyHandler.GetCurrency)

	tax := v1.Group("/tax")
	tax.POST("/calculate", taxHandler.CalculateTax)
	tax.GET("/rules", taxHandler.ListTaxRules)
	tax.POST("/rules", taxHandler.CreateTaxRule)

	plans := v1.Group("/plans/:id")
	plans.POST("/projections", projectionHandler.CreateProjection)
	plans.GET("/projections", projectionHandler.GetPlanProjections)
	plans.GET("/projections/:projectionID", projectionHandler.GetProjection)
	plans.PUT("/projections/:projectionID", projectionHandler.UpdateProjection)
	plans.DELETE("/projections/:projectionID", projectionHandler.DeleteProjection)
	plans.POST("/projections/:projectionID/tax", taxHandler.CalculateProjectionTax)
	plans.POST("/tax", taxHandler.CalculatePlanTaxes)

	plans.POST("/kpis", kpiHandler.CalculateKPIs)
	plans.GET("/kpis", kpiHandler.ListKPIsByCategory)
	plans.POST("/kpis/scenarios", kpiHandler.CalculateAllScenarios)
	plans.GET("/kpis/:name", kpiHandler.GetKPIByName)

	plans.POST("/analyses", investmentHandler.CreateAnalysis)
	plans.GET("/analyses", investmentHandler.GetPlanAnalyses)
	plans.GET("/analyses/:analysisID", investmentHandler.GetAnalysis)
	plans.POST("/analyses/:analysisID/recompute", investmentHandler.RecomputeAnalysis)
	plans.POST("/calculations/roi", investmentHandler.CalculateROI)
	plans.POST("/calculations/npv", investmentHandler.CalculateNPV)
	plans.POST("/calculations/irr", investmentHandler.CalculateIRR)

	plans.GET("/scenarios/comparison", scenarioHandler.CompareScenarios)
	plans.POST("/scenarios/sensitivity", scenarioHandler.Sensitivity)
	plans.GET("/break-even", scenarioHandler.BreakEven)

	plans.GET("/reports/:type", reportHandler.GenerateReport)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// issueToken signs an access token for a fresh actor, the way the platform's
// identity service would, and returns the token with the actor ID.
func issueToken(t *testing.T) (token, actorID string) {
	t.Helper()

	actorID = uuid.New()
	claims := middleware.JWTClaims{
		ActorID:   actorID,
		Email:     "analyst@example.com",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(config.Get().JWTSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed, actorID
}

// seedCurrency inserts a currency row.
func (app *testApp) seedCurrency(t *testing.T, code string, decimalPlaces int32) {
	t.Helper()
	currency := &models.Currency{Code: code, Name: code, Symbol: code, DecimalPlaces: decimalPlaces}
	if err := app.DB.Create(currency).Error; err != nil {
		t.Fatalf("failed to seed currency %s: %v", code, err)
	}
}

// seedPlan inserts a business plan; plan lifecycle is owned by another
// system, so tests create the row directly.
func (app *testApp) seedPlan(t *testing.T, reportingCurrency string) *models.BusinessPlan {
	t.Helper()
	plan := &models.BusinessPlan{
		Name:              "Integration Plan",
		OwnerID:           uuid.New(),
		ReportingCurrency: reportingCurrency,
	}
	if err := app.DB.Create(plan).Error; err != nil {
		t.Fatalf("failed to seed plan: %v", err)
	}
	return plan
}

// seedRate inserts an exchange rate row.
func (app *testApp) seedRate(t *testing.T, from, to string, rate string, effectiveDate time.Time) {
	t.Helper()
	row := &models.ExchangeRate{
		FromCurrency:  from,
		ToCurrency:    to,
		Rate:          decimal.RequireFromString(rate),
		EffectiveDate: effectiveDate,
	}
	if err := app.DB.Create(row).Error; err != nil {
		t.Fatalf("failed to seed rate %s->%s: %v", from, to, err)
	}
}
