package usecase

import (
	"tigu/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 小計から税・送料・値引きを決める
type PricingPolicy interface {
	Price(subtotal decimal.Decimal) model.Totals
}

// 税・送料・値引きはすべて0
type ZeroPricing struct{}

func (ZeroPricing) Price(subtotal decimal.Decimal) model.Totals {
	return model.Totals{
		Subtotal: subtotal,
		Tax:      decimal.Zero,
		Shipping: decimal.Zero,
		Discount: decimal.Zero,
	}
}

// 明細の合計（丸めなし）
func sumLines(lines []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l)
	}
	return sum
}
