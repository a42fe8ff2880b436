package main

import (
	"fmt"
	"net/http"
	"os"

	"plancast/internal/config"
	"plancast/internal/database"
	"plancast/internal/handlers"
	"plancast/internal/logger"
	"plancast/internal/middleware"
	"plancast/internal/services"
	"plancast/internal/validator"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "plancast/internal/docs" // Import swagger docs
)

// @title           Plancast API
// @version         1.0
// @description     Plancast is a business-planning platform whose analysis engine projects finances across scenarios, converts currencies, applies tax rules, and derives KPIs and investment-return metrics.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Register custom binding validators
	validator.Register()

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Initialize services
	db := dbManager.DB()
	auditService := services.NewAuditService(db)
	planService := services.NewPlanService(db)
	currencyService := services.NewCurrencyService(db)
	projectionService := services.NewProjectionService(db, planService, currencyService)
	taxService := services.NewTaxService(db, planService, projectionService, currencyService)
	kpiService := services.NewKPIService(db, planService, projectionService)
	investmentService := services.NewInvestmentService(db, planService, projectionService)
	scenarioService := services.NewScenarioService(db, planService, projectionService, kpiService)
	reportService := services.NewReportService(db, planService, currencyService, projectionService)

	// Initialize handlers
	currencyHandler := handlers.NewCurrencyHandler(currencyService, auditService)
	projectionHandler := handlers.NewProjectionHandler(projectionService, auditService)
	taxHandler := handlers.NewTaxHandler(taxService, auditService)
	kpiHandler := handlers.NewKPIHandler(kpiService, auditService)
	investmentHandler := handlers.NewInvestmentHandler(investmentService, auditService)
	scenarioHandler := handlers.NewScenarioHandler(scenarioService)
	reportHandler := handlers.NewReportHandler(reportService, appConfig.ReportTimeout)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group; every route requires an authenticated actor
	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware())

	// Currency routes
	currencies := v1.Group("/currencies")
	currencies.GET("", currencyHandler.ListCurrencies)
	currencies.POST("/convert", currencyHandler.Convert)
	currencies.GET("/rates", currencyHandler.GetExchangeRate)
	currencies.POST("/rates", currencyHandler.CreateExchangeRate)
	currencies.GET("/:code", currencyHandler.GetCurrency)

	// Tax routes
	tax := v1.Group("/tax")
	tax.POST("/calculate", taxHandler.CalculateTax)
	tax.GET("/rules", taxHandler.ListTaxRules)
	tax.POST("/rules", taxHandler.CreateTaxRule)

	// Plan-scoped routes
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

	log.Infof("Starting plancast server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
