package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnalysisType classifies an investment analysis.
type AnalysisType string

const (
	AnalysisTypeROI       AnalysisType = "roi"
	AnalysisTypeNPV       AnalysisType = "npv"
	AnalysisTypeIRR       AnalysisType = "irr"
	AnalysisTypeComposite AnalysisType = "composite"
)

// RiskLevel is a coarse qualitative risk tag on an analysis.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// InvestmentAnalysis holds the inputs and computed return metrics for one
// named analysis of a plan. Derived fields (ROI/NPV/IRR, ComputedAt) are
// replaced together on every recomputation, never partially updated.
type InvestmentAnalysis struct {
	Base
	PlanID            string          `gorm:"type:uuid;not null;index" json:"plan_id"`
	Name              string          `gorm:"not null" json:"name"`
	AnalysisType      AnalysisType    `gorm:"not null" json:"analysis_type"`
	InitialInvestment decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"initial_investment"`
	ExpectedReturn    decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"expected_return"`
	DiscountRate      decimal.Decimal `gorm:"type:decimal(10,6);not null" json:"discount_rate"`
	AnalysisPeriods   int             `gorm:"not null" json:"analysis_periods"`
	Currency          string          `gorm:"size:3;not null" json:"currency"`

	// Derived fields, replaced atomically on each computation.
	ROI decimal.NullDecimal `gorm:"type:decimal(20,6)" json:"roi"`
	NPV decimal.NullDecimal `gorm:"type:decimal(20,6)" json:"npv"`
	IRR decimal.NullDecimal `gorm:"type:decimal(20,6)" json:"irr"`

	RiskLevel     RiskLevel  `gorm:"default:'medium'" json:"risk_level"`
	FundingSource string     `json:"funding_source"`
	ComputedAt    *time.Time `json:"computed_at,omitempty"`
	CreatedBy     string     `gorm:"type:uuid" json:"created_by"`
	UpdatedBy     string     `gorm:"type:uuid" json:"updated_by"`

	// Relationships
	Plan BusinessPlan `gorm:"foreignKey:PlanID" json:"-"`
}
