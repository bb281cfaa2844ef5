package model

import (
	"github.com/shopspring/decimal"
)

// 金額は小数2桁固定
const MoneyScale int32 = 2

// 明細金額 = 単価 × 数量
func LineTotal(unitPrice decimal.Decimal, quantity int64) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(quantity))
}

// 注文・見積の金額ブロック
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
}

// total = subtotal + tax + shipping - discount
func (t Totals) Total() decimal.Decimal {
	return t.Subtotal.Add(t.Tax).Add(t.Shipping).Sub(t.Discount)
}

// 2桁の文字列（レスポンス用）
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}
