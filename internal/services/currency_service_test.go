package services_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"plancast/internal/models"
	"plancast/internal/services"
	"plancast/internal/testutil"
)

func setupCurrencyService(t *testing.T) (*gorm.DB, services.CurrencyServicer) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
	return db, services.NewCurrencyService(db)
}

func jan(year int) time.Time {
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestGetCurrency(t *testing.T) {
	db, svc := setupCurrencyService(t)
	testutil.CreateTestCurrency(t, db, "USD", 2)

	currency, err := svc.GetCurrency("USD")
	testutil.AssertNoError(t, err)
	if currency.DecimalPlaces != 2 {
		t.Errorf("expected 2 decimal places, got %d", currency.DecimalPlaces)
	}

	_, err = svc.GetCurrency("XXX")
	testutil.AssertAppError(t, err, "CURRENCY_NOT_FOUND")
}

func TestConvertIdentity(t *testing.T) {
	_, svc := setupCurrencyService(t)

	// Same-currency conversion needs no rate and no stored currency.
	amount := decimal.RequireFromString("123.45")
	converted, err := svc.Convert(amount, "USD", "USD", time.Now())
	testutil.AssertNoError(t, err)
	if !converted.Equal(amount) {
		t.Errorf("expected identity conversion, got %s", converted)
	}
}

func TestConvertEffectiveDateSelection(t *testing.T) {
	db, svc := setupCurrencyService(t)
	testutil.CreateTestCurrency(t, db, "USD", 2)
	testutil.CreateTestCurrency(t, db, "EUR", 2)

	testutil.CreateTestRate(t, db, "USD", "EUR", decimal.RequireFromString("0.90"), jan(2025))
	testutil.CreateTestRate(t, db, "USD", "EUR", decimal.RequireFromString("0.95"), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		name string
		asOf time.Time
		want string
	}{
		{"between effective dates uses older rate", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "90"},
		{"after both uses newest rate", time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), "95"},
		{"exactly on effective date uses that rate", jan(2025), "90"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			converted, err := svc.Convert(decimal.NewFromInt(100), "USD", "EUR", tt.asOf)
			testutil.AssertNoError(t, err)
			if !converted.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("expected %s, got %s", tt.want, converted)
			}
		})
	}

	// A date before every effective date has no usable rate.
	_, err := svc.Convert(decimal.NewFromInt(100), "USD", "EUR", jan(2024))
	testutil.AssertAppError(t, err, "RATE_NOT_FOUND")
}

func TestInverseRateFallback(t *testing.T) {
	db, svc := setupCurrencyService(t)
	testutil.CreateTestCurrency(t, db, "USD", 2)
	testutil.CreateTestCurrency(t, db, "EUR", 2)

	// Only the EUR->USD direction is stored.
	testutil.CreateTestRate(t, db, "EUR", "USD", decimal.RequireFromString("1.25"), jan(2025))

	rate, err := svc.GetExchangeRate("USD", "EUR", jan(2026))
	testutil.AssertNoError(t, err)
	if !rate.Rate.Equal(decimal.RequireFromString("0.8")) {
		t.Errorf("expected synthesized rate 0.8, got %s", rate.Rate)
	}
	if rate.ID != "" {
		t.Error("synthesized inverse rate must not be persisted")
	}

	converted, err := svc.Convert(decimal.NewFromInt(100), "USD", "EUR", jan(2026))
	testutil.AssertNoError(t, err)
	if !converted.Equal(decimal.NewFromInt(80)) {
		t.Errorf("expected 80, got %s", converted)
	}
}

func TestConvertRoundTrip(t *testing.T) {
	db, svc := setupCurrencyService(t)
	testutil.CreateTestCurrency(t, db, "USD", 2)
	testutil.CreateTestCurrency(t, db, "EUR", 2)
	testutil.CreateTestRate(t, db, "USD", "EUR", decimal.RequireFromString("0.9273"), jan(2025))

	amount := decimal.RequireFromString("1000.00")
	there, err := svc.Convert(amount, "USD", "EUR", jan(2026))
	testutil.AssertNoError(t, err)
	back, err := svc.Convert(there, "EUR", "USD", jan(2026))
	testutil.AssertNoError(t, err)

	// Round-trip error stays within one minor unit of USD.
	diff := back.Sub(amount).Abs()
	if diff.GreaterThan(decimal.RequireFromString("0.01")) {
		t.Errorf("round trip drifted by %s", diff)
	}
}

func TestCreateExchangeRate(t *testing.T) {
	db, svc := setupCurrencyService(t)
	testutil.CreateTestCurrency(t, db, "USD", 2)
	testutil.CreateTestCurrency(t, db, "EUR", 2)
	actor := testutil.TestActor()

	rate, err := svc.CreateExchangeRate(actor, "USD", "EUR", decimal.RequireFromString("0.92"), jan(2025))
	testutil.AssertNoError(t, err)
	if rate.ID == "" {
		t.Error("created rate should have an ID")
	}

	// Corrections are new rows, never updates: a second rate for the same
	// pair coexists with the first.
	_, err = svc.CreateExchangeRate(actor, "USD", "EUR", decimal.RequireFromString("0.93"), jan(2026))
	testutil.AssertNoError(t, err)

	var count int64
	if err := db.Model(&models.ExchangeRate{}).Where("from_currency = ? AND to_currency = ?", "USD", "EUR").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 rate rows, got %d", count)
	}

	t.Run("rejects same-currency pair", func(t *testing.T) {
		_, err := svc.CreateExchangeRate(actor, "USD", "USD", decimal.NewFromInt(1), jan(2025))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("rejects non-positive rate", func(t *testing.T) {
		_, err := svc.CreateExchangeRate(actor, "USD", "EUR", decimal.Zero, jan(2025))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("rejects unknown currency", func(t *testing.T) {
		_, err := svc.CreateExchangeRate(actor, "USD", "XXX", decimal.NewFromInt(1), jan(2025))
		testutil.AssertAppError(t, err, "CURRENCY_NOT_FOUND")
	})
}
