package money

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrNegativeResult   = errors.New("negative_result")
	ErrCurrencyMismatch = errors.New("currency_mismatch")
)

// rateScale is the fixed denominator used when applying fractional rates.
// Rates are snapped to six decimal places once, then all arithmetic stays
// in integer minor units.
const rateScale = 1_000_000

// minorDigits maps ISO currency codes to their minor-unit exponent.
// Currencies not listed default to two digits.
var minorDigits = map[string]int{
	"BIF": 0,
	"CLP": 0,
	"IDR": 0,
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"JOD": 3,
	"KWD": 3,
	"OMR": 3,
	"TND": 3,
}

// Money is an amount in integer minor units tagged with a currency code.
// The zero value is an invalid, currency-less zero; construct through New
// or Parse.
type Money struct {
	amount   int64
	currency string
}

// New wraps an already minor-unit amount.
func New(amount int64, currency string) Money {
	return Money{amount: amount, currency: normalize(currency)}
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{amount: 0, currency: normalize(currency)}
}

// Parse converts a decimal string (e.g. "100.00") into minor units.
// Input with more fractional digits than the currency allows is rejected,
// not rounded: a caller sending "1.005" in USD has a bug upstream.
func Parse(value, currency string) (Money, error) {
	currency = normalize(currency)
	digits := Digits(currency)

	raw := strings.TrimSpace(value)
	if raw == "" {
		return Money{}, ErrInvalidAmount
	}

	neg := false
	if raw[0] == '+' || raw[0] == '-' {
		neg = raw[0] == '-'
		raw = raw[1:]
	}

	whole, frac := raw, ""
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		whole, frac = raw[:i], raw[i+1:]
	}
	if whole == "" && frac == "" {
		return Money{}, ErrInvalidAmount
	}
	if len(frac) > digits {
		return Money{}, fmt.Errorf("%w: %q exceeds %d fractional digits", ErrInvalidAmount, value, digits)
	}

	var units int64
	for _, r := range whole {
		if r < '0' || r > '9' {
			return Money{}, ErrInvalidAmount
		}
		var ok bool
		units, ok = mulCheck(units, 10)
		if !ok {
			return Money{}, ErrInvalidAmount
		}
		units, ok = addCheck(units, int64(r-'0'))
		if !ok {
			return Money{}, ErrInvalidAmount
		}
	}
	for i := 0; i < digits; i++ {
		d := int64(0)
		if i < len(frac) {
			r := frac[i]
			if r < '0' || r > '9' {
				return Money{}, ErrInvalidAmount
			}
			d = int64(r - '0')
		}
		var ok bool
		units, ok = mulCheck(units, 10)
		if !ok {
			return Money{}, ErrInvalidAmount
		}
		units, ok = addCheck(units, d)
		if !ok {
			return Money{}, ErrInvalidAmount
		}
	}
	if neg {
		units = -units
	}
	return Money{amount: units, currency: currency}, nil
}

// MustParse is Parse for test fixtures and compiled-in defaults.
func MustParse(value, currency string) Money {
	m, err := Parse(value, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Digits returns the minor-unit exponent for a currency code.
func Digits(currency string) int {
	if d, ok := minorDigits[normalize(currency)]; ok {
		return d
	}
	return 2
}

func (m Money) MinorUnits() int64  { return m.amount }
func (m Money) Currency() string   { return m.currency }
func (m Money) IsZero() bool       { return m.amount == 0 }
func (m Money) IsNegative() bool   { return m.amount < 0 }

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	sum, ok := addCheck(m.amount, other.amount)
	if !ok {
		return Money{}, ErrInvalidAmount
	}
	return Money{amount: sum, currency: m.currency}, nil
}

// Sub returns m - other and fails with ErrNegativeResult when the result
// would drop below zero. Callers that legitimately floor at zero use
// SubClamped instead.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	diff := m.amount - other.amount
	if diff < 0 {
		return Money{}, ErrNegativeResult
	}
	return Money{amount: diff, currency: m.currency}, nil
}

// SubClamped returns max(0, m - other).
func (m Money) SubClamped(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	diff := m.amount - other.amount
	if diff < 0 {
		diff = 0
	}
	return Money{amount: diff, currency: m.currency}, nil
}

// MulInt returns m * n for a non-negative integer scalar.
func (m Money) MulInt(n int64) (Money, error) {
	if n < 0 {
		return Money{}, ErrInvalidAmount
	}
	product, ok := mulCheck(m.amount, n)
	if !ok {
		return Money{}, ErrInvalidAmount
	}
	return Money{amount: product, currency: m.currency}, nil
}

// PercentOf applies a fractional rate in [0,1] with a single round-half-up
// at the end. The rate is snapped to six decimal places, then the whole
// computation runs in integer arithmetic.
func (m Money) PercentOf(rate float64) (Money, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 || rate > 1 {
		return Money{}, ErrInvalidAmount
	}
	if m.amount < 0 {
		return Money{}, ErrNegativeResult
	}
	scaled := int64(math.Round(rate * rateScale))
	product, ok := mulCheck(m.amount, scaled)
	if !ok {
		return Money{}, ErrInvalidAmount
	}
	return Money{amount: divHalfUp(product, rateScale), currency: m.currency}, nil
}

// Cmp returns -1, 0 or 1 comparing m against other.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.amount < other.amount:
		return -1, nil
	case m.amount > other.amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// String renders the amount with the currency's minor-unit exponent,
// e.g. "IDR 15000" or "USD 12.50".
func (m Money) String() string {
	digits := Digits(m.currency)
	if digits == 0 {
		return fmt.Sprintf("%s %d", m.currency, m.amount)
	}
	pow := int64(1)
	for i := 0; i < digits; i++ {
		pow *= 10
	}
	units := m.amount
	sign := ""
	if units < 0 {
		sign = "-"
		units = -units
	}
	return fmt.Sprintf("%s %s%d.%0*d", m.currency, sign, units/pow, digits, units%pow)
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}

// divHalfUp divides a non-negative numerator rounding half up.
func divHalfUp(n, d int64) int64 {
	return (n + d/2) / d
}

func normalize(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

func addCheck(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func mulCheck(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/b != a {
		return 0, false
	}
	return product, true
}
