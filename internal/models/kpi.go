package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// KPI catalogue names.
const (
	KPIGrossMargin      = "gross_margin"
	KPIBurnRate         = "burn_rate"
	KPIRunway           = "runway"
	KPICAC              = "customer_acquisition_cost"
	KPILTV              = "customer_lifetime_value"
	KPIBreakEvenRevenue = "break_even_revenue"
)

// FinancialKPI is a derived metric for one (plan, name, scenario) key.
// KPIs are never mutated directly; recomputation overwrites the prior
// value for the same key. A null Value means the KPI is undefined for
// the current data (for example a zero-denominator), which is distinct
// from a computation error.
type FinancialKPI struct {
	Base
	PlanID     string              `gorm:"type:uuid;not null;index:idx_kpi_key" json:"plan_id"`
	Name       string              `gorm:"not null;index:idx_kpi_key" json:"name"`
	Category   string              `gorm:"not null;index" json:"category"`
	Scenario   Scenario            `gorm:"not null;index:idx_kpi_key" json:"scenario"`
	Value      decimal.NullDecimal `gorm:"type:decimal(20,6)" json:"value"`
	ComputedAt time.Time           `gorm:"not null" json:"computed_at"`
}
