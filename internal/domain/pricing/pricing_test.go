package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/money"
)

func TestNightlyCalculator(t *testing.T) {
	start := time.Date(2026, time.October, 29, 0, 0, 0, 0, time.UTC)
	dr := daterange.MustNew(start, start.AddDate(0, 0, 3))

	q, err := NightlyCalculator{}.Quote(money.Must(10000, "USD"), dr)
	require.NoError(t, err)
	assert.Equal(t, 3, q.Nights)
	assert.Equal(t, "300.00", q.Total.Decimal())
	assert.Equal(t, money.Must(10000, "USD"), q.Nightly)
}

func TestNightlyCalculatorAcrossDST(t *testing.T) {
	start := time.Date(2027, time.March, 27, 0, 0, 0, 0, time.UTC)
	dr := daterange.MustNew(start, start.AddDate(0, 0, 4))
	q, err := NightlyCalculator{}.Quote(money.Must(9950, "EUR"), dr)
	require.NoError(t, err)
	assert.Equal(t, "398.00", q.Total.Decimal())
}

func TestNightlyCalculatorRejectsBadInput(t *testing.T) {
	start := time.Date(2026, time.October, 29, 0, 0, 0, 0, time.UTC)
	dr := daterange.MustNew(start, start.AddDate(0, 0, 1))

	_, err := NightlyCalculator{}.Quote(money.Money{Amount: 100}, dr)
	assert.ErrorIs(t, err, ErrCurrencyUnset)
	_, err = NightlyCalculator{}.Quote(money.Must(0, "USD"), dr)
	assert.ErrorIs(t, err, ErrNightlyRate)
	_, err = NightlyCalculator{}.Quote(money.Must(100, "USD"), daterange.DateRange{Start: start, End: start})
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)
}
