package pricing

import (
	"errors"

	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/money"
)

var (
	ErrCurrencyUnset = errors.New("pricing: currency must be defined")
	ErrNightlyRate   = errors.New("pricing: nightly rate must be positive")
)

// Quote is the price of a stay: nightly rate times nights, nothing else.
type Quote struct {
	Nights  int
	Nightly money.Money
	Total   money.Money
}

type Calculator interface {
	Quote(rate money.Money, dr daterange.DateRange) (Quote, error)
}

// NightlyCalculator prices a stay as rate × nights with no proration.
type NightlyCalculator struct{}

func (NightlyCalculator) Quote(rate money.Money, dr daterange.DateRange) (Quote, error) {
	if rate.Currency == "" {
		return Quote{}, ErrCurrencyUnset
	}
	if rate.Amount <= 0 {
		return Quote{}, ErrNightlyRate
	}
	if err := dr.Validate(); err != nil {
		return Quote{}, err
	}
	nights := dr.Nights()
	return Quote{
		Nights:  nights,
		Nightly: rate,
		Total:   rate.Multiply(int64(nights)),
	}, nil
}

var _ Calculator = NightlyCalculator{}
