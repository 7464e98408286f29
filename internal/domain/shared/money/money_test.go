package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalisesCurrency(t *testing.T) {
	m, err := New(150, "thb")
	require.NoError(t, err)
	assert.Equal(t, Money{Amount: 150, Currency: "THB"}, m)

	_, err = New(1, "BAHT")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestArithmetic(t *testing.T) {
	a := Units(10, "THB")
	b := Must(250, "THB")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), sum.Amount)

	diff, err := b.Sub(a)
	require.NoError(t, err)
	assert.Equal(t, int64(-750), diff.Amount)
	assert.True(t, diff.IsNegative())
	assert.Equal(t, int64(750), diff.Abs().Amount)

	_, err = a.Add(Units(1, "USD"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	_, err = a.Add(Money{Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	assert.Equal(t, int64(3000), a.Multiply(3).Amount)
	assert.True(t, Zero("thb").IsZero())
}

func TestSum(t *testing.T) {
	total, err := Sum("THB", Units(1, "THB"), Units(2, "THB"))
	require.NoError(t, err)
	assert.Equal(t, Units(3, "THB"), total)

	empty, err := Sum("THB")
	require.NoError(t, err)
	assert.Equal(t, Zero("THB"), empty)

	_, err = Sum("THB", Units(1, "USD"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestBasisPointsRoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		amount, bps, want int64
	}{
		{1050, 500, 53},
		{1000, 500, 50},
		{-1050, 500, -53},
		{1, 4999, 0},
		{1, 5000, 1},
	}
	for _, tc := range cases {
		got := Must(tc.amount, "THB").BasisPoints(tc.bps)
		assert.Equal(t, tc.want, got.Amount, "%d * %d bps", tc.amount, tc.bps)
	}
}
