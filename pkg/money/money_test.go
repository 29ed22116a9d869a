package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestValidatePositive(t *testing.T) {
	require.NoError(t, ValidatePositive("amount", d("10.25")))

	for _, bad := range []string{"0", "-1", "1.005", "1000000000000"} {
		err := ValidatePositive("amount", d(bad))
		require.Error(t, err, bad)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), bad)
	}
}

func TestPercent(t *testing.T) {
	assert.InDelta(t, 50.0, Percent(d("500"), d("1000")), 0.0001)
	assert.Equal(t, 0.0, Percent(d("5"), decimal.Zero))
}

func TestSum(t *testing.T) {
	assert.True(t, d("6.50").Equal(Sum(d("1.25"), d("2.25"), d("3"))))
	assert.True(t, Sum().IsZero())
}

func TestAllocateNeverGoesNegative(t *testing.T) {
	quarters := []float64{25, 25, 25, 25}
	got := Allocate(d("0.02"), quarters)
	require.Len(t, got, 4)
	for i, want := range []string{"0.01", "0.01", "0", "0"} {
		assert.True(t, d(want).Equal(got[i]), "part %d = %s", i, got[i])
	}

	twenty := make([]float64, 20)
	for i := range twenty {
		twenty[i] = 5
	}
	for _, amount := range []string{"0.01", "0.19", "1.50", "7.77", "1000.01"} {
		parts := Allocate(d(amount), twenty)
		for i, p := range parts {
			assert.False(t, p.IsNegative(), "%s part %d = %s", amount, i, p)
			assert.True(t, HasCentPrecision(p))
		}
		assert.True(t, d(amount).Equal(Sum(parts...)), amount)
	}
}

func TestAllocateLargestRemainderFirst(t *testing.T) {
	got := Allocate(d("1.00"), []float64{33.33, 33.33, 33.34})
	assert.True(t, d("0.33").Equal(got[0]))
	assert.True(t, d("0.33").Equal(got[1]))
	assert.True(t, d("0.34").Equal(got[2]))

	// weights off by the plan tolerance are normalised
	got = Allocate(d("10.00"), []float64{50, 50.01})
	assert.True(t, d("10.00").Equal(Sum(got...)))

	assert.Nil(t, Allocate(d("1"), nil))
}
