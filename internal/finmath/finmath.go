// Package finmath implements the numeric core of the analysis engine:
// investment-return metrics, break-even interpolation, progressive tax,
// and recurring-series growth. All money values are decimal; binary
// floating point is never used for amounts.
package finmath

import (
	"errors"

	"github.com/shopspring/decimal"
)

// divPrecision is the number of fractional digits carried through internal
// divisions. Rounding to a currency's minor units happens only at
// presentation boundaries.
const divPrecision = 12

// Sentinel errors returned by the pure math functions. Callers map these
// onto their own error taxonomy.
var (
	ErrZeroInvestment = errors.New("finmath: initial investment must be non-zero")
	ErrNoSignChange   = errors.New("finmath: npv does not change sign over the search interval")
	ErrNoConvergence  = errors.New("finmath: iteration budget exhausted before reaching tolerance")
)

var one = decimal.NewFromInt(1)

// ROI computes (expectedReturn - initialInvestment) / initialInvestment.
func ROI(initialInvestment, expectedReturn decimal.Decimal) (decimal.Decimal, error) {
	if initialInvestment.IsZero() {
		return decimal.Zero, ErrZeroInvestment
	}
	return expectedReturn.Sub(initialInvestment).DivRound(initialInvestment, divPrecision), nil
}

// NPV computes the net present value of cashFlows at the given per-period
// discount rate. cashFlows[0] is the t=0 flow (typically the negative
// initial outlay) and is not discounted.
func NPV(rate decimal.Decimal, cashFlows []decimal.Decimal) decimal.Decimal {
	npv := decimal.Zero
	base := one.Add(rate)
	for t, cf := range cashFlows {
		if t == 0 {
			npv = npv.Add(cf)
			continue
		}
		factor := base.Pow(decimal.NewFromInt(int64(t)))
		npv = npv.Add(cf.DivRound(factor, divPrecision))
	}
	return npv
}

// IRROptions bounds the IRR root search.
type IRROptions struct {
	Lower         decimal.Decimal
	Upper         decimal.Decimal
	Tolerance     decimal.Decimal
	MaxIterations int
}

// DefaultIRROptions returns the standard search interval of (-0.99, 10.0)
// with an absolute NPV tolerance of 1e-6 in reporting-currency units.
func DefaultIRROptions() IRROptions {
	return IRROptions{
		Lower:         decimal.NewFromFloat(-0.99),
		Upper:         decimal.NewFromInt(10),
		Tolerance:     decimal.New(1, -6),
		MaxIterations: 200,
	}
}

// IRR finds the discount rate at which NPV(rate, cashFlows) is zero, by
// bisection over [opts.Lower, opts.Upper]. The interval endpoints must
// bracket a sign change, otherwise ErrNoSignChange is returned. The search
// stops as soon as |NPV| falls below opts.Tolerance; exhausting the
// iteration budget first yields ErrNoConvergence.
func IRR(cashFlows []decimal.Decimal, opts IRROptions) (decimal.Decimal, error) {
	if opts.MaxIterations <= 0 {
		opts = DefaultIRROptions()
	}

	lower, upper := opts.Lower, opts.Upper
	fLower := NPV(lower, cashFlows)
	fUpper := NPV(upper, cashFlows)

	if fLower.Abs().LessThan(opts.Tolerance) {
		return lower, nil
	}
	if fUpper.Abs().LessThan(opts.Tolerance) {
		return upper, nil
	}
	if fLower.Sign() == fUpper.Sign() {
		return decimal.Zero, ErrNoSignChange
	}

	two := decimal.NewFromInt(2)
	mid := lower
	for i := 0; i < opts.MaxIterations; i++ {
		mid = lower.Add(upper).DivRound(two, divPrecision)
		fMid := NPV(mid, cashFlows)

		if fMid.Abs().LessThan(opts.Tolerance) {
			return mid, nil
		}

		if fMid.Sign() == fLower.Sign() {
			lower, fLower = mid, fMid
		} else {
			upper = mid
		}
	}

	// The interval may have narrowed below the representable rate
	// resolution without NPV itself crossing the tolerance.
	return decimal.Zero, ErrNoConvergence
}

// BreakEvenPoint is the result of a cumulative cash-flow break-even scan.
type BreakEvenPoint struct {
	Reached bool            `json:"reached"`
	Period  decimal.Decimal `json:"period"`
}

// BreakEven scans a cumulative cash-flow series in period order and returns
// the (possibly fractional) period at which the cumulative value first
// becomes non-negative, linearly interpolating between adjacent periods.
// A series that never turns non-negative yields Reached=false.
func BreakEven(cumulative []decimal.Decimal) BreakEvenPoint {
	for i, v := range cumulative {
		if v.Sign() < 0 {
			continue
		}
		if i == 0 {
			return BreakEvenPoint{Reached: true, Period: decimal.Zero}
		}
		prev := cumulative[i-1]
		delta := v.Sub(prev)
		if delta.IsZero() {
			return BreakEvenPoint{Reached: true, Period: decimal.NewFromInt(int64(i))}
		}
		frac := prev.Neg().DivRound(delta, divPrecision)
		period := decimal.NewFromInt(int64(i - 1)).Add(frac)
		return BreakEvenPoint{Reached: true, Period: period}
	}
	return BreakEvenPoint{Reached: false}
}

// Bracket is one tier of a progressive schedule. A nil UpTo is unbounded.
type Bracket struct {
	UpTo *decimal.Decimal
	Rate decimal.Decimal
}

// ProgressiveTax applies a bracketed rate schedule to amount: each slice of
// the amount falling inside a bracket is taxed at that bracket's rate.
// Brackets must be ordered by ascending upper bound, with at most one
// unbounded (nil UpTo) final bracket. Non-positive amounts yield zero tax.
func ProgressiveTax(amount decimal.Decimal, brackets []Bracket) decimal.Decimal {
	if amount.Sign() <= 0 {
		return decimal.Zero
	}

	tax := decimal.Zero
	lower := decimal.Zero
	for _, b := range brackets {
		upper := amount
		if b.UpTo != nil && b.UpTo.LessThan(amount) {
			upper = *b.UpTo
		}
		if upper.LessThanOrEqual(lower) {
			continue
		}
		tax = tax.Add(upper.Sub(lower).Mul(b.Rate))
		if b.UpTo == nil || amount.LessThanOrEqual(*b.UpTo) {
			break
		}
		lower = *b.UpTo
	}
	return tax
}

// GrowthSeries projects base across n occurrences with a per-occurrence
// growth rate compounded from the second occurrence onward.
func GrowthSeries(base, growthRate decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	series := make([]decimal.Decimal, n)
	factor := one.Add(growthRate)
	current := base
	for i := 0; i < n; i++ {
		series[i] = current
		current = current.Mul(factor)
	}
	return series
}

// Present rounds a value to the given number of minor units using banker's
// rounding. This is the only place amounts lose internal precision.
func Present(v decimal.Decimal, places int32) decimal.Decimal {
	return v.RoundBank(places)
}
