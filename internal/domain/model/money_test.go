package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// 浮動小数点の誤差が出ないこと
func TestLineTotal_Exact(t *testing.T) {
	sum := decimal.Zero
	for i := 0; i < 10; i++ {
		sum = sum.Add(LineTotal(decimal.RequireFromString("0.10"), 1))
	}
	assert.True(t, sum.Equal(decimal.RequireFromString("1.00")), sum.String())

	assert.Equal(t, "33.33", FormatMoney(LineTotal(decimal.RequireFromString("11.11"), 3)))
}

func TestTotals_Total(t *testing.T) {
	tt := Totals{
		Subtotal: decimal.RequireFromString("55.00"),
		Tax:      decimal.Zero,
		Shipping: decimal.Zero,
		Discount: decimal.Zero,
	}
	assert.Equal(t, "55.00", FormatMoney(tt.Total()))
}
