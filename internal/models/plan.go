package models

// BusinessPlan is the owning scope for every projection, KPI, and analysis.
// Plan lifecycle (creation, questionnaires, AI content) is managed by the
// planning module; the analysis engine only needs existence checks and the
// authoritative reporting currency for base-amount conversions.
type BusinessPlan struct {
	Base
	Name              string `gorm:"not null" json:"name"`
	OwnerID           string `gorm:"type:uuid;not null;index" json:"owner_id"`
	ReportingCurrency string `gorm:"not null;default:'USD'" json:"reporting_currency"`
}
