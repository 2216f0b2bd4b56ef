package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	m, err := Parse("100.00", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), m.MinorUnits())
	assert.Equal(t, "USD", m.Currency())

	m, err = Parse("50.5", "usd")
	require.NoError(t, err)
	assert.Equal(t, int64(5050), m.MinorUnits())

	// Zero-digit currency takes whole units only.
	m, err = Parse("15000", "IDR")
	require.NoError(t, err)
	assert.Equal(t, int64(15000), m.MinorUnits())

	m, err = Parse("1.250", "KWD")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), m.MinorUnits())
}

func TestParse_RejectsExcessPrecision(t *testing.T) {
	_, err := Parse("1.005", "USD")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("10.5", "JPY")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParse_RejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "  ", "abc", "1,000.00", "1.2.3", "."} {
		_, err := Parse(raw, "USD")
		assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", raw)
	}
}

func TestAddSub(t *testing.T) {
	a := New(10000, "USD")
	b := New(2500, "USD")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(12500), sum.MinorUnits())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(7500), diff.MinorUnits())

	_, err = b.Sub(a)
	assert.ErrorIs(t, err, ErrNegativeResult)

	clamped, err := b.SubClamped(a)
	require.NoError(t, err)
	assert.Equal(t, int64(0), clamped.MinorUnits())
}

func TestCurrencyMismatch(t *testing.T) {
	a := New(100, "USD")
	b := New(100, "EUR")

	_, err := a.Add(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = a.Sub(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMulInt(t *testing.T) {
	m, err := New(10000, "USD").MulInt(3)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), m.MinorUnits())

	_, err = New(10000, "USD").MulInt(-1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMulInt_Overflow(t *testing.T) {
	huge := New(1<<62, "USD")
	_, err := huge.MulInt(4)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPercentOf(t *testing.T) {
	// 5% of 245.00 = 12.25
	tax, err := New(24500, "USD").PercentOf(0.05)
	require.NoError(t, err)
	assert.Equal(t, int64(1225), tax.MinorUnits())

	// Half rounds up: 5% of 0.10 = 0.005 -> 0.01
	tax, err = New(10, "USD").PercentOf(0.05)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tax.MinorUnits())

	zero, err := New(24500, "USD").PercentOf(0)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = New(24500, "USD").PercentOf(1.5)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestString(t *testing.T) {
	assert.Equal(t, "USD 12.50", New(1250, "USD").String())
	assert.Equal(t, "IDR 15000", New(15000, "IDR").String())
	assert.Equal(t, "USD 0.05", New(5, "USD").String())
	assert.Equal(t, "KWD 1.250", New(1250, "KWD").String())
}
