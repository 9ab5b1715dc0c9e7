package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrUnknownCurrency  = errors.New("money: unknown currency")
)

// Currency is an ISO 4217 alphabetic code.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	INR Currency = "INR"
)

// minorUnits returns the number of decimal places for the currency's minor unit.
func minorUnits(c Currency) (int32, error) {
	switch c {
	case USD, EUR, GBP, INR:
		return 2, nil
	case JPY:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, string(c))
	}
}

// Money is a fixed-point amount in a single currency. Arithmetic across
// currencies is rejected; every result is rounded half-up to the currency's
// minor unit before it is observed.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

func New(amount decimal.Decimal, currency Currency) (Money, error) {
	places, err := minorUnits(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: amount.Round(places), currency: currency}, nil
}

func NewFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("money: parse amount: %w", err)
	}
	return New(d, currency)
}

func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency      { return m.currency }

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}

func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return New(m.amount.Add(other.amount), m.currency)
}

func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return New(m.amount.Sub(other.amount), m.currency)
}

// MulQty scales a unit amount by an item quantity.
func (m Money) MulQty(qty int) (Money, error) {
	return New(m.amount.Mul(decimal.NewFromInt(int64(qty))), m.currency)
}

// Cmp returns -1, 0 or 1 comparing m against other.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c > 0, err
}

func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

func (m Money) String() string {
	return m.amount.String() + " " + string(m.currency)
}
