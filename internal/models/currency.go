package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is a supported currency with its presentation precision.
type Currency struct {
	Code          string    `gorm:"primaryKey;size:3" json:"code"`
	Name          string    `gorm:"not null" json:"name"`
	Symbol        string    `json:"symbol"`
	DecimalPlaces int32     `gorm:"not null;default:2" json:"decimal_places"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ExchangeRate is one effective-dated conversion rate between two currencies.
// Rates are append-only: corrections are new rows with a later effective
// date, so historical conversions stay reproducible.
type ExchangeRate struct {
	Base
	FromCurrency  string          `gorm:"size:3;not null;index:idx_rate_pair_date" json:"from_currency"`
	ToCurrency    string          `gorm:"size:3;not null;index:idx_rate_pair_date" json:"to_currency"`
	Rate          decimal.Decimal `gorm:"type:decimal(20,10);not null" json:"rate"`
	EffectiveDate time.Time       `gorm:"not null;index:idx_rate_pair_date" json:"effective_date"`
}
