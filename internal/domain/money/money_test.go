package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewRoundsHalfUpToMinorUnit(t *testing.T) {
	cases := []struct {
		in   string
		cur  Currency
		want string
	}{
		{"10.005", USD, "10.01"},
		{"10.004", USD, "10"},
		{"10.004", JPY, "10"},
		{"10.5", JPY, "11"},
		{"99.999", EUR, "100"},
	}
	for _, tc := range cases {
		m, err := NewFromString(tc.in, tc.cur)
		if err != nil {
			t.Fatalf("NewFromString(%s %s): %v", tc.in, tc.cur, err)
		}
		want, _ := decimal.NewFromString(tc.want)
		if !m.Amount().Equal(want) {
			t.Fatalf("round %s %s: want=%s got=%s", tc.in, tc.cur, want, m.Amount())
		}
	}
}

func TestAddSubSameCurrency(t *testing.T) {
	a, _ := NewFromString("100", USD)
	b, _ := NewFromString("18", USD)

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sum.String() != "118 USD" {
		t.Fatalf("sum: want=%q got=%q", "118 USD", sum.String())
	}

	diff, err := sum.Sub(a)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if !diff.Equal(b) {
		t.Fatalf("diff: want=%s got=%s", b, diff)
	}
}

func TestCrossCurrencyArithmeticRejected(t *testing.T) {
	a, _ := NewFromString("10", USD)
	b, _ := NewFromString("10", EUR)

	if _, err := a.Add(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("Add cross-currency: want ErrCurrencyMismatch got %v", err)
	}
	if _, err := a.Sub(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("Sub cross-currency: want ErrCurrencyMismatch got %v", err)
	}
	if _, err := a.Cmp(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("Cmp cross-currency: want ErrCurrencyMismatch got %v", err)
	}
}

func TestMulQty(t *testing.T) {
	unit, _ := NewFromString("19.99", USD)
	total, err := unit.MulQty(3)
	if err != nil {
		t.Fatalf("MulQty: %v", err)
	}
	want, _ := NewFromString("59.97", USD)
	if !total.Equal(want) {
		t.Fatalf("total: want=%s got=%s", want, total)
	}
}

func TestUnknownCurrency(t *testing.T) {
	if _, err := NewFromString("1", Currency("XXX")); !errors.Is(err, ErrUnknownCurrency) {
		t.Fatalf("want ErrUnknownCurrency got %v", err)
	}
}

func TestZeroAndSigns(t *testing.T) {
	z := Zero(USD)
	if !z.IsZero() {
		t.Fatalf("Zero should be zero")
	}
	neg, _ := NewFromString("-5", USD)
	if !neg.IsNegative() {
		t.Fatalf("-5 should be negative")
	}
	pos, _ := NewFromString("5", USD)
	gt, err := pos.GreaterThan(z)
	if err != nil || !gt {
		t.Fatalf("5 > 0: want=true got=%v err=%v", gt, err)
	}
}
