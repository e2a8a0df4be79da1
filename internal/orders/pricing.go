package orders

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half away from zero to 2 places (99.995 -> 100.00).
func RoundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

func ValidPaymentPercent(p int) bool { return p == 50 || p == 100 }

// LineTotal is round(price * qty, 2).
func LineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return RoundMoney(price.Mul(decimal.NewFromInt(int64(qty))))
}

// Totals sums already-rounded line totals, then rounds the sum; the payment
// amount is computed from that rounded total.
func Totals(items []LineItem, percent int) (totalItems int, totalPrice, payment decimal.Decimal) {
	totalPrice = decimal.Zero
	for _, it := range items {
		totalItems += it.Quantity
		totalPrice = totalPrice.Add(it.LineTotal)
	}
	totalPrice = RoundMoney(totalPrice)
	payment = PaymentAmount(totalPrice, percent)
	return totalItems, totalPrice, payment
}

func PaymentAmount(total decimal.Decimal, percent int) decimal.Decimal {
	return RoundMoney(total.Mul(decimal.NewFromInt(int64(percent))).Div(hundred))
}
