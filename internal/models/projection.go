package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProjectionType classifies what a line item projects.
type ProjectionType string

const (
	ProjectionTypeRevenue    ProjectionType = "revenue"
	ProjectionTypeExpense    ProjectionType = "expense"
	ProjectionTypeCashFlow   ProjectionType = "cash_flow"
	ProjectionTypeInvestment ProjectionType = "investment"
	ProjectionTypeFunding    ProjectionType = "funding"
)

// Scenario partitions a plan's projections into alternative futures.
// Scenarios are never interpolated or merged.
type Scenario string

const (
	ScenarioOptimistic  Scenario = "optimistic"
	ScenarioRealistic   Scenario = "realistic"
	ScenarioPessimistic Scenario = "pessimistic"
)

// AllScenarios lists every defined scenario in comparison order.
var AllScenarios = []Scenario{ScenarioOptimistic, ScenarioRealistic, ScenarioPessimistic}

// Frequency describes how a recurring projection repeats.
type Frequency string

const (
	FrequencyOneTime   Frequency = "one_time"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// ProjectionItem is one dated, categorized monetary line item of a plan.
// BaseAmount is Amount converted into the plan's reporting currency using
// the exchange rate effective on the item's period reference date; it is
// populated at write time and an item is rejected if conversion fails.
type ProjectionItem struct {
	Base
	PlanID      string          `gorm:"type:uuid;not null;index" json:"plan_id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description"`
	Type        ProjectionType  `gorm:"not null;index" json:"type"`
	Scenario    Scenario        `gorm:"not null;index" json:"scenario"`
	Year        int             `gorm:"not null" json:"year"`
	Month       int             `gorm:"not null" json:"month"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"amount"`
	Currency    string          `gorm:"not null" json:"currency"`
	BaseAmount  decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"base_amount"`
	Category    string          `gorm:"not null;index" json:"category"`
	Subcategory string          `json:"subcategory"`
	IsRecurring bool            `gorm:"default:false" json:"is_recurring"`
	Frequency   Frequency       `gorm:"default:'one_time'" json:"frequency"`
	GrowthRate  decimal.Decimal `gorm:"type:decimal(10,6);default:0" json:"growth_rate"`
	Assumptions string          `json:"assumptions"`
	CreatedBy   string          `gorm:"type:uuid" json:"created_by"`
	UpdatedBy   string          `gorm:"type:uuid" json:"updated_by"`

	// Relationships
	Plan BusinessPlan `gorm:"foreignKey:PlanID" json:"-"`
}

// PeriodDate returns the reference date of the item's period, used for
// exchange-rate and tax-rule effective-date lookups.
func (p *ProjectionItem) PeriodDate() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodIndex returns a sortable scalar for (year, month) ordering.
func (p *ProjectionItem) PeriodIndex() int {
	return p.Year*12 + (p.Month - 1)
}
