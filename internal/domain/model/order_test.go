package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestOrderStatus_Transitions(t *testing.T) {
	cases := []struct {
		from OrderStatus
		to   OrderStatus
		ok   bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusConfirmed, OrderStatusProcessing, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusProcessing, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusShipped, OrderStatusProcessing, false},
		{OrderStatusPending, OrderStatusPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

// 終端ステータスからはどこにも行けない
func TestOrderStatus_TerminalStatesRejectEverything(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded,
	}
	for _, terminal := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded} {
		assert.True(t, terminal.IsTerminal())
		for _, next := range all {
			assert.False(t, terminal.CanTransitionTo(next), "%s -> %s", terminal, next)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, st)

	_, err = ParseOrderStatus("SHIPPED")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestOrder_TransitionTo_LeavesStatusOnFailure(t *testing.T) {
	o := &Order{Status: OrderStatusDelivered, PaymentStatus: PaymentStatusPaid}

	err := o.TransitionTo(OrderStatusPending, testNow)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, OrderStatusDelivered, o.Status)
	assert.Nil(t, o.StatusUpdatedAt)
}

func TestOrder_TransitionTo_RecordsTimestamp(t *testing.T) {
	o := &Order{Status: OrderStatusPending, PaymentStatus: PaymentStatusPending}

	require.NoError(t, o.TransitionTo(OrderStatusConfirmed, testNow))

	assert.Equal(t, OrderStatusConfirmed, o.Status)
	require.NotNil(t, o.StatusUpdatedAt)
	assert.True(t, o.StatusUpdatedAt.Equal(testNow))
}

func TestOrder_Refund_RequiresPaid(t *testing.T) {
	o := &Order{Status: OrderStatusProcessing, PaymentStatus: PaymentStatusPending}
	assert.ErrorIs(t, o.TransitionTo(OrderStatusRefunded, testNow), ErrRefundRequiresPayment)
	assert.Equal(t, OrderStatusProcessing, o.Status)

	o.PaymentStatus = PaymentStatusPaid
	require.NoError(t, o.TransitionTo(OrderStatusRefunded, testNow))
	assert.Equal(t, OrderStatusRefunded, o.Status)
	assert.Equal(t, PaymentStatusRefunded, o.PaymentStatus)
}

func TestOrder_Delivered_SetsActualDeliveryDate(t *testing.T) {
	o := &Order{Status: OrderStatusShipped}
	require.NoError(t, o.TransitionTo(OrderStatusDelivered, testNow))
	require.NotNil(t, o.ActualDeliveryDate)
	assert.True(t, o.ActualDeliveryDate.Equal(testNow))
}

func TestOrder_Cancel(t *testing.T) {
	o := &Order{Status: OrderStatusConfirmed}
	require.NoError(t, o.Cancel("buyer changed mind", testNow))
	assert.Equal(t, OrderStatusCancelled, o.Status)
	require.NotNil(t, o.CancellationReason)
	assert.Equal(t, "buyer changed mind", *o.CancellationReason)
	require.NotNil(t, o.CancelledAt)

	shipped := &Order{Status: OrderStatusShipped}
	assert.ErrorIs(t, shipped.Cancel("late", testNow), ErrInvalidTransition)
	assert.Nil(t, shipped.CancellationReason)
}

func TestOrder_ApplyTotals(t *testing.T) {
	o := &Order{}
	o.ApplyTotals(Totals{
		Subtotal: decimal.RequireFromString("100.10"),
		Tax:      decimal.RequireFromString("13.01"),
		Shipping: decimal.RequireFromString("5.00"),
		Discount: decimal.RequireFromString("0.11"),
	})
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("118.00")), o.TotalAmount.String())
}

func TestNewOrderItem_SnapshotsProduct(t *testing.T) {
	p := Product{
		ID:             "p-1",
		SKU:            "CEM-425",
		Name:           LocalizedText{LangEnUS: "Cement"},
		Specifications: Attributes{"grade": "42.5"},
	}

	item := NewOrderItem(p, 3, decimal.RequireFromString("10.00"))

	// 後から商品を変えても明細は変わらない
	p.Name[LangEnUS] = "Renamed"
	p.Specifications["grade"] = "52.5"

	assert.Equal(t, "Cement", item.ProductName[LangEnUS])
	assert.Equal(t, "42.5", item.ProductSpecifications["grade"])
	assert.Equal(t, "CEM-425", item.ProductSKU)
	assert.True(t, item.TotalPrice.Equal(decimal.RequireFromString("30")))
}
