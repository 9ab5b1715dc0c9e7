package aggregates

import (
	"github.com/shopspring/decimal"

	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/domain/money"
)

type orderTotals struct {
	SubTotal money.Money
	Tax      money.Money
	Shipping money.Money
	Discount money.Money
	Total    money.Money
}

// deriveOrderTotals computes total = sub_total + tax + shipping - discount in
// the order currency, rounding to the currency's minor unit at every step.
// Tax is taxRate applied to the sub-total. A discount that pushes the total
// negative is rejected.
func deriveOrderTotals(currency money.Currency, items []domainagg.OrderLineInput, taxRate decimal.Decimal, shipping, discount money.Money) (orderTotals, error) {
	var out orderTotals

	subTotal := money.Zero(currency)
	for _, it := range items {
		line, err := it.UnitPrice.MulQty(it.Quantity)
		if err != nil {
			return out, err
		}
		subTotal, err = subTotal.Add(line)
		if err != nil {
			return out, err
		}
	}

	if taxRate.IsNegative() {
		return out, ValidationError("tax rate must not be negative")
	}
	tax, err := money.New(subTotal.Amount().Mul(taxRate), currency)
	if err != nil {
		return out, err
	}

	if shipping.Currency() == "" {
		shipping = money.Zero(currency)
	}
	if discount.Currency() == "" {
		discount = money.Zero(currency)
	}
	if shipping.IsNegative() {
		return out, ValidationError("shipping cost must not be negative")
	}
	if discount.IsNegative() {
		return out, ValidationError("discount must not be negative")
	}

	total, err := subTotal.Add(tax)
	if err != nil {
		return out, err
	}
	total, err = total.Add(shipping)
	if err != nil {
		return out, err
	}
	total, err = total.Sub(discount)
	if err != nil {
		return out, err
	}
	if total.IsNegative() {
		return out, ValidationError("discount exceeds order total")
	}

	out = orderTotals{
		SubTotal: subTotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    total,
	}
	return out, nil
}
