package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "plancast/internal/errors"
	"plancast/internal/models"
)

// ratePrecision is the number of fractional digits carried through rate
// division. Amounts are only rounded to minor units at presentation.
const ratePrecision = 12

// currencyService handles currency lookup and effective-dated conversion.
type currencyService struct {
	db *gorm.DB
}

// NewCurrencyService creates a new CurrencyServicer.
func NewCurrencyService(db *gorm.DB) CurrencyServicer {
	return &currencyService{db: db}
}

// GetCurrency returns a currency by its ISO code.
func (s *currencyService) GetCurrency(code string) (*models.Currency, error) {
	var currency models.Currency
	if err := s.db.First(&currency, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCurrencyNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &currency, nil
}

// ListCurrencies returns all supported currencies ordered by code.
func (s *currencyService) ListCurrencies() ([]models.Currency, error) {
	var currencies []models.Currency
	if err := s.db.Order("code").Find(&currencies).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return currencies, nil
}

// lookupRate finds the most recent rate for (from, to) effective on or
// before asOf. Future-dated rates are never selected.
func (s *currencyService) lookupRate(from, to string, asOf time.Time) (*models.ExchangeRate, error) {
	var rate models.ExchangeRate
	err := s.db.
		Where("from_currency = ? AND to_currency = ? AND effective_date <= ?", from, to, asOf).
		Order("effective_date DESC").
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRateNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &rate, nil
}

// GetExchangeRate resolves the rate effective at asOf for the pair,
// falling back to the inverted inverse pair when no direct rate exists.
func (s *currencyService) GetExchangeRate(from, to string, asOf time.Time) (*models.ExchangeRate, error) {
	rate, err := s.lookupRate(from, to, asOf)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, apperrors.ErrRateNotFound) {
		return nil, err
	}

	inverse, invErr := s.lookupRate(to, from, asOf)
	if invErr != nil {
		if errors.Is(invErr, apperrors.ErrRateNotFound) {
			return nil, apperrors.ErrRateNotFound
		}
		return nil, invErr
	}
	if inverse.Rate.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrComputationFailure, "Inverse exchange rate is zero")
	}

	// Synthesized, not persisted: rate' = 1/rate at the inverse row's date.
	return &models.ExchangeRate{
		FromCurrency:  from,
		ToCurrency:    to,
		Rate:          decimal.NewFromInt(1).DivRound(inverse.Rate, ratePrecision),
		EffectiveDate: inverse.EffectiveDate,
	}, nil
}

// Convert converts amount between currencies at the rate effective at asOf.
func (s *currencyService) Convert(amount decimal.Decimal, from, to string, asOf time.Time) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	if _, err := s.GetCurrency(from); err != nil {
		return decimal.Zero, err
	}
	if _, err := s.GetCurrency(to); err != nil {
		return decimal.Zero, err
	}

	rate, err := s.GetExchangeRate(from, to, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	return amount.Mul(rate.Rate), nil
}

// CreateExchangeRate appends a new effective-dated rate row.
func (s *currencyService) CreateExchangeRate(actor, from, to string, rate decimal.Decimal, effectiveDate time.Time) (*models.ExchangeRate, error) {
	if from == to {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Cannot create a rate from a currency to itself")
	}
	if rate.Sign() <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Exchange rate must be positive")
	}
	if _, err := s.GetCurrency(from); err != nil {
		return nil, err
	}
	if _, err := s.GetCurrency(to); err != nil {
		return nil, err
	}

	row := &models.ExchangeRate{
		FromCurrency:  from,
		ToCurrency:    to,
		Rate:          rate,
		EffectiveDate: effectiveDate,
	}
	if err := s.db.Create(row).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return row, nil
}
