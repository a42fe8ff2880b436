package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TaxBracket is one tier of a progressive rate schedule. UpTo is the upper
// bound of the bracket in the rule's currency; a nil UpTo means unbounded.
type TaxBracket struct {
	UpTo *decimal.Decimal `json:"up_to,omitempty"`
	Rate decimal.Decimal  `json:"rate"`
}

// TaxBrackets is a JSON-encoded ordered list of brackets. An empty list
// means the rule applies its flat Rate.
type TaxBrackets []TaxBracket

// Value implements driver.Valuer, serializing brackets as JSON.
func (b TaxBrackets) Value() (driver.Value, error) {
	if len(b) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (b *TaxBrackets) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	default:
		return fmt.Errorf("unsupported type for TaxBrackets: %T", value)
	}
}

// TaxRule stores a jurisdiction/category tax rate with temporal validity.
// An empty Region matches any region of the country (country-level rule).
// A nil EffectiveTo means the rule is currently active.
type TaxRule struct {
	Base
	Country       string          `gorm:"size:2;not null;index:idx_tax_jurisdiction" json:"country"`
	Region        string          `gorm:"index:idx_tax_jurisdiction" json:"region"`
	Category      string          `gorm:"not null;index:idx_tax_jurisdiction" json:"category"`
	Rate          decimal.Decimal `gorm:"type:decimal(10,6);not null" json:"rate"`
	Brackets      TaxBrackets     `gorm:"type:text" json:"brackets,omitempty"`
	Currency      string          `gorm:"size:3;not null" json:"currency"`
	EffectiveFrom time.Time       `gorm:"not null;index" json:"effective_from"`
	EffectiveTo   *time.Time      `gorm:"index" json:"effective_to,omitempty"`
	Description   string          `json:"description"`
}

// AppliesAt reports whether the rule's validity window contains date.
func (r *TaxRule) AppliesAt(date time.Time) bool {
	if date.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || !date.After(*r.EffectiveTo)
}

// IsProgressive reports whether the rule uses a bracketed schedule.
func (r *TaxRule) IsProgressive() bool {
	return len(r.Brackets) > 0
}
