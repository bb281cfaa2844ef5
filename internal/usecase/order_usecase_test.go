package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"tigu/internal/domain/model"
	repo "tigu/internal/repository"
	"tigu/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const (
	buyerUserID   = "11111111-1111-1111-1111-111111111111"
	supplierUser  = "22222222-2222-2222-2222-222222222222"
	buyerCompany  = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	supplierCo    = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
	productCement = "cccccccc-cccc-cccc-cccc-cccccccccc01"
	productSteel  = "cccccccc-cccc-cccc-cccc-cccccccccc02"
)

func newOrderUsecase(r *TxReposMock) (*usecase.OrderUsecase, *TxManagerMock, *EventPublisherMock, *CatalogMock) {
	tx := &TxManagerMock{Repos: r}
	events := new(EventPublisherMock)
	catalog := new(CatalogMock)
	uc := usecase.NewOrderUsecase(tx, usecase.ZeroPricing{}, events, catalog, fixedClock{now: testNow}, discardLogger())
	return uc, tx, events, catalog
}

func product(id, sku string, price string) model.Product {
	return model.Product{
		ID:                id,
		SKU:               sku,
		Name:              model.NewLocalizedText(sku),
		Price:             decimal.RequireFromString(price),
		Stock:             100,
		CategoryID:        "cat",
		SupplierCompanyID: supplierCo,
		IsActive:          true,
	}
}

func createInput() usecase.CreateOrderInput {
	return usecase.CreateOrderInput{
		BuyerCompanyID:    buyerCompany,
		SupplierCompanyID: supplierCo,
		Items: []usecase.OrderItemInput{
			{ProductID: productCement, Quantity: 3, UnitPrice: decimal.RequireFromString("10.00")},
			{ProductID: productSteel, Quantity: 1, UnitPrice: decimal.RequireFromString("25.00")},
		},
		DeliveryAddress: model.Address{City: "Shanghai", Street: "1 Nanjing Rd"},
		DeliveryContact: model.Contact{Name: "Li", Phone: "13800000000"},
	}
}

// =====================
// CreateOrder
// =====================

func TestOrderUsecase_CreateOrder_Success_TotalsAndStock(t *testing.T) {
	ctx := context.Background()
	r := newTxRepos()
	uc, tx, events, catalog := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, buyerUserID, model.RoleUser, buyerCompany)

	r.products.On("FindByID", mock.Anything, productCement).Return(product(productCement, "CEM-1", "10.00"), nil)
	r.products.On("FindByID", mock.Anything, productSteel).Return(product(productSteel, "STL-1", "25.00"), nil)
	r.inventory.On("DecreaseStockIfEnough", mock.Anything, productCement, int64(3)).Return(true, nil).Once()
	r.inventory.On("DecreaseStockIfEnough", mock.Anything, productSteel, int64(1)).Return(true, nil).Once()
	r.inventory.On("CreateAdjustment", mock.Anything, mock.MatchedBy(func(a model.InventoryAdjustment) bool {
		return a.Delta < 0 && a.Reason == model.InventoryReasonOrder
	})).Return(nil).Twice()

	var saved *model.Order
	r.orders.On("Create", mock.Anything, mock.AnythingOfType("*model.Order")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*model.Order) }).
		Return(nil).Once()
	r.orderItems.On("CreateBulk", mock.Anything, mock.Anything, mock.MatchedBy(func(items []model.OrderItem) bool {
		return len(items) == 2
	})).Return(nil).Once()

	catalog.On("Bump", mock.Anything).Return(nil).Once()
	events.On("Publish", mock.Anything, usecase.EventOrderCreated, mock.Anything, mock.Anything).Return(nil).Once()

	out, err := uc.CreateOrder(ctx, buyerUserID, createInput())
	assert.NoError(t, err)

	assert.Equal(t, "55.00", out.Subtotal)
	assert.Equal(t, "55.00", out.TotalAmount)
	assert.Equal(t, "0.00", out.TaxAmount)
	assert.Equal(t, string(model.OrderStatusPending), out.Status)
	assert.Equal(t, string(model.PaymentStatusPending), out.PaymentStatus)
	assert.Len(t, out.Items, 2)
	assert.Equal(t, "30.00", out.Items[0].TotalPrice)
	assert.Equal(t, "CEM-1", out.Items[0].ProductSKU)
	assert.Regexp(t, `^ORD-20240501-[0-9A-F]{8}$`, out.OrderNumber)

	if assert.NotNil(t, saved) {
		assert.Equal(t, buyerUserID, saved.BuyerUserID)
		assert.True(t, saved.TotalAmount.Equal(decimal.RequireFromString("55")))
	}

	tx.AssertExpectations(t)
	r.inventory.AssertExpectations(t)
	r.orders.AssertExpectations(t)
	r.orderItems.AssertExpectations(t)
	events.AssertExpectations(t)
	catalog.AssertExpectations(t)
}

func TestOrderUsecase_CreateOrder_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	r := newTxRepos()
	uc, tx, events, catalog := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, buyerUserID, model.RoleUser, buyerCompany)

	r.products.On("FindByID", mock.Anything, productCement).Return(product(productCement, "CEM-1", "10.00"), nil)
	r.inventory.On("DecreaseStockIfEnough", mock.Anything, productCement, int64(3)).Return(false, nil).Once()

	_, err := uc.CreateOrder(ctx, buyerUserID, createInput())
	assertStatus(t, err, http.StatusBadRequest)
	assertErrContains(t, err, "Insufficient stock for product CEM-1")

	r.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	r.inventory.AssertNotCalled(t, "CreateAdjustment", mock.Anything, mock.Anything)
	events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	catalog.AssertNotCalled(t, "Bump", mock.Anything)
}

func TestOrderUsecase_CreateOrder_UnknownProduct(t *testing.T) {
	ctx := context.Background()
	r := newTxRepos()
	uc, tx, _, _ := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, buyerUserID, model.RoleUser, buyerCompany)
	r.products.On("FindByID", mock.Anything, productCement).Return(nil, repo.ErrNotFound)

	_, err := uc.CreateOrder(ctx, buyerUserID, createInput())
	assertStatus(t, err, http.StatusBadRequest)
	assertErrContains(t, err, "not found")

	r.inventory.AssertNotCalled(t, "DecreaseStockIfEnough", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUsecase_CreateOrder_ProductOfAnotherSupplier(t *testing.T) {
	ctx := context.Background()
	r := newTxRepos()
	uc, tx, _, _ := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, buyerUserID, model.RoleUser, buyerCompany)

	p := product(productCement, "CEM-1", "10.00")
	p.SupplierCompanyID = "someone-else"
	r.products.On("FindByID", mock.Anything, productCement).Return(p, nil)

	_, err := uc.CreateOrder(ctx, buyerUserID, createInput())
	assertStatus(t, err, http.StatusBadRequest)
	assertErrContains(t, err, "does not belong to the supplier")
}

func TestOrderUsecase_CreateOrder_NotBuyerMember(t *testing.T) {
	ctx := context.Background()
	r := newTxRepos()
	uc, tx, _, _ := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, supplierUser, model.RoleUser, supplierCo)

	_, err := uc.CreateOrder(ctx, supplierUser, createInput())
	assertStatus(t, err, http.StatusForbidden)

	r.products.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestOrderUsecase_CreateOrder_InvalidLines(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		items []usecase.OrderItemInput
		want  string
	}{
		{"empty", nil, "at least one item"},
		{"zero quantity", []usecase.OrderItemInput{{ProductID: productCement, Quantity: 0, UnitPrice: decimal.NewFromInt(1)}}, "quantity"},
		{"zero price", []usecase.OrderItemInput{{ProductID: productCement, Quantity: 1, UnitPrice: decimal.Zero}}, "unit_price"},
		{"negative price", []usecase.OrderItemInput{{ProductID: productCement, Quantity: 1, UnitPrice: decimal.NewFromInt(-5)}}, "unit_price"},
		{"sub-cent price", []usecase.OrderItemInput{{ProductID: productCement, Quantity: 3, UnitPrice: decimal.RequireFromString("0.001")}}, "2 decimal places"},
		{"half-cent price", []usecase.OrderItemInput{{ProductID: productCement, Quantity: 3, UnitPrice: decimal.RequireFromString("0.005")}}, "2 decimal places"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTxRepos()
			uc, tx, _, _ := newOrderUsecase(r)

			in := createInput()
			in.Items = tc.items

			_, err := uc.CreateOrder(ctx, buyerUserID, in)
			assertStatus(t, err, http.StatusBadRequest)
			assertErrContains(t, err, tc.want)
			tx.AssertNotCalled(t, "WithinTx", mock.Anything)
		})
	}
}

func TestOrderUsecase_CreateOrder_RetriesOnNumberCollision(t *testing.T) {
	ctx := context.Background()
	r := newTxRepos()
	uc, tx, events, catalog := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, buyerUserID, model.RoleUser, buyerCompany)

	r.products.On("FindByID", mock.Anything, mock.Anything).Return(product(productCement, "CEM-1", "10.00"), nil)
	r.inventory.On("DecreaseStockIfEnough", mock.Anything, productCement, int64(2)).Return(true, nil)
	r.inventory.On("CreateAdjustment", mock.Anything, mock.Anything).Return(nil)

	r.orders.On("Create", mock.Anything, mock.Anything).Return(repo.ErrDuplicate).Once()
	r.orders.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	r.orderItems.On("CreateBulk", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	catalog.On("Bump", mock.Anything).Return(nil)
	events.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	in := createInput()
	in.Items = []usecase.OrderItemInput{{ProductID: productCement, Quantity: 2, UnitPrice: decimal.NewFromInt(10)}}

	out, err := uc.CreateOrder(ctx, buyerUserID, in)
	assert.NoError(t, err)
	assert.Equal(t, "20.00", out.TotalAmount)

	tx.AssertNumberOfCalls(t, "WithinTx", 2)
	r.orders.AssertNumberOfCalls(t, "Create", 2)
}

func TestOrderUsecase_CreateOrder_PublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	r := newTxRepos()
	uc, tx, events, catalog := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, buyerUserID, model.RoleUser, buyerCompany)
	r.products.On("FindByID", mock.Anything, mock.Anything).Return(product(productCement, "CEM-1", "10.00"), nil)
	r.inventory.On("DecreaseStockIfEnough", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	r.inventory.On("CreateAdjustment", mock.Anything, mock.Anything).Return(nil)
	r.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	r.orderItems.On("CreateBulk", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	catalog.On("Bump", mock.Anything).Return(errors.New("redis down"))
	events.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	in := createInput()
	in.Items = in.Items[:1]

	_, err := uc.CreateOrder(ctx, buyerUserID, in)
	assert.NoError(t, err)
}

// =====================
// UpdateOrderStatus
// =====================

func existingOrder(status model.OrderStatus) model.Order {
	return model.Order{
		ID:                "order-1",
		OrderNumber:       "ORD-20240501-ABCDEF12",
		BuyerCompanyID:    buyerCompany,
		BuyerUserID:       buyerUserID,
		SupplierCompanyID: supplierCo,
		Status:            status,
		PaymentStatus:     model.PaymentStatusPending,
		Subtotal:          decimal.NewFromInt(55),
		TotalAmount:       decimal.NewFromInt(55),
	}
}

func TestOrderUsecase_UpdateOrderStatus_SupplierConfirms(t *testing.T) {
	ctx := context.Background()
	r := newTxRepos()
	uc, tx, events, _ := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, supplierUser, model.RoleUser, supplierCo)

	r.orders.On("FindByIDForUpdate", mock.Anything, "order-1").Return(existingOrder(model.OrderStatusPending), nil)
	r.orders.On("Update", mock.Anything, mock.MatchedBy(func(o *model.Order) bool {
		return o.Status == model.OrderStatusConfirmed && o.StatusUpdatedAt != nil
	})).Return(nil).Once()
	r.audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionUpdateOrderStatus && l.ResourceID == "order-1"
	})).Return(nil).Once()
	r.orderItems.On("ListByOrderID", mock.Anything, "order-1").Return([]model.OrderItem{}, nil)
	events.On("Publish", mock.Anything, usecase.EventOrderStatusChanged, "order-1", mock.MatchedBy(func(p usecase.StatusChangedPayload) bool {
		return p.From == "pending" && p.To == "confirmed"
	})).Return(nil).Once()

	out, err := uc.UpdateOrderStatus(ctx, supplierUser, "order-1", usecase.UpdateOrderStatusInput{Status: "confirmed"})
	assert.NoError(t, err)
	assert.Equal(t, "confirmed", out.Status)

	r.orders.AssertExpectations(t)
	r.audit.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestOrderUsecase_UpdateOrderStatus_RejectedTransitions(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		from model.OrderStatus
		to   string
	}{
		{"delivered back to pending", model.OrderStatusDelivered, "pending"},
		{"cancelled to confirmed", model.OrderStatusCancelled, "confirmed"},
		{"pending skips to shipped", model.OrderStatusPending, "shipped"},
		{"refund without payment", model.OrderStatusShipped, "refunded"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTxRepos()
			uc, tx, events, _ := newOrderUsecase(r)

			tx.On("WithinTx", mock.Anything).Return(nil)
			expectActor(r, supplierUser, model.RoleUser, supplierCo)
			r.orders.On("FindByIDForUpdate", mock.Anything, "order-1").Return(existingOrder(tc.from), nil)

			_, err := uc.UpdateOrderStatus(ctx, supplierUser, "order-1", usecase.UpdateOrderStatusInput{Status: tc.to})
			assertStatus(t, err, http.StatusBadRequest)

			r.orders.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
			r.audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestOrderUsecase_UpdateOrderStatus_BuyerForbidden(t *testing.T) {
	ctx := context.Background()
	r := newTxRepos()
	uc, tx, _, _ := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, buyerUserID, model.RoleUser, buyerCompany)
	r.orders.On("FindByIDForUpdate", mock.Anything, "order-1").Return(existingOrder(model.OrderStatusPending), nil)

	_, err := uc.UpdateOrderStatus(ctx, buyerUserID, "order-1", usecase.UpdateOrderStatusInput{Status: "confirmed"})
	assertStatus(t, err, http.StatusForbidden)
	assertErrContains(t, err, "Only the supplier can update order status")
}

func TestOrderUsecase_UpdateOrderStatus_UnknownStatus(t *testing.T) {
	r := newTxRepos()
	uc, tx, _, _ := newOrderUsecase(r)

	_, err := uc.UpdateOrderStatus(context.Background(), supplierUser, "order-1", usecase.UpdateOrderStatusInput{Status: "lost"})
	assertStatus(t, err, http.StatusBadRequest)
	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestOrderUsecase_UpdateOrderStatus_NotFound(t *testing.T) {
	r := newTxRepos()
	uc, tx, _, _ := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, supplierUser, model.RoleUser, supplierCo)
	r.orders.On("FindByIDForUpdate", mock.Anything, "missing").Return(nil, repo.ErrNotFound)

	_, err := uc.UpdateOrderStatus(context.Background(), supplierUser, "missing", usecase.UpdateOrderStatusInput{Status: "confirmed"})
	assertStatus(t, err, http.StatusNotFound)
}

// =====================
// CancelOrder
// =====================

func TestOrderUsecase_CancelOrder_RestocksItems(t *testing.T) {
	ctx := context.Background()
	r := newTxRepos()
	uc, tx, events, catalog := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, buyerUserID, model.RoleUser, buyerCompany)

	r.orders.On("FindByIDForUpdate", mock.Anything, "order-1").Return(existingOrder(model.OrderStatusConfirmed), nil)
	r.orders.On("Update", mock.Anything, mock.MatchedBy(func(o *model.Order) bool {
		return o.Status == model.OrderStatusCancelled && o.CancelledAt != nil &&
			o.CancellationReason != nil && *o.CancellationReason == "changed plans"
	})).Return(nil).Once()
	r.orderItems.On("ListByOrderID", mock.Anything, "order-1").Return([]model.OrderItem{
		{ID: "i1", ProductID: productCement, Quantity: 3, UnitPrice: decimal.NewFromInt(10), TotalPrice: decimal.NewFromInt(30)},
		{ID: "i2", ProductID: productSteel, Quantity: 1, UnitPrice: decimal.NewFromInt(25), TotalPrice: decimal.NewFromInt(25)},
	}, nil)
	r.inventory.On("IncreaseStock", mock.Anything, productCement, int64(3)).Return(nil).Once()
	r.inventory.On("IncreaseStock", mock.Anything, productSteel, int64(1)).Return(nil).Once()
	r.inventory.On("CreateAdjustment", mock.Anything, mock.MatchedBy(func(a model.InventoryAdjustment) bool {
		return a.Delta > 0 && a.Reason == model.InventoryReasonOrderCancel
	})).Return(nil).Twice()
	r.audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionCancelOrder
	})).Return(nil).Once()
	catalog.On("Bump", mock.Anything).Return(nil).Once()
	events.On("Publish", mock.Anything, usecase.EventOrderStatusChanged, "order-1", mock.Anything).Return(nil).Once()

	out, err := uc.CancelOrder(ctx, buyerUserID, "order-1", usecase.CancelOrderInput{Reason: "  changed plans "})
	assert.NoError(t, err)
	assert.Equal(t, "cancelled", out.Status)
	assert.Len(t, out.Items, 2)

	r.inventory.AssertExpectations(t)
	r.audit.AssertExpectations(t)
	catalog.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestOrderUsecase_CancelOrder_NotCancellableAfterProcessing(t *testing.T) {
	r := newTxRepos()
	uc, tx, _, _ := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, buyerUserID, model.RoleUser, buyerCompany)
	r.orders.On("FindByIDForUpdate", mock.Anything, "order-1").Return(existingOrder(model.OrderStatusProcessing), nil)

	_, err := uc.CancelOrder(context.Background(), buyerUserID, "order-1", usecase.CancelOrderInput{})
	assertStatus(t, err, http.StatusBadRequest)
	assertErrContains(t, err, "cannot be cancelled")

	r.inventory.AssertNotCalled(t, "IncreaseStock", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUsecase_CancelOrder_StrangerForbidden(t *testing.T) {
	r := newTxRepos()
	uc, tx, _, _ := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, "stranger", model.RoleUser, "other-company")
	r.orders.On("FindByIDForUpdate", mock.Anything, "order-1").Return(existingOrder(model.OrderStatusPending), nil)

	_, err := uc.CancelOrder(context.Background(), "stranger", "order-1", usecase.CancelOrderInput{})
	assertStatus(t, err, http.StatusForbidden)
}

func TestOrderUsecase_UpdateOrderStatus_CancelledRoutesToCancel(t *testing.T) {
	r := newTxRepos()
	uc, tx, events, catalog := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, supplierUser, model.RoleUser, supplierCo)
	r.orders.On("FindByIDForUpdate", mock.Anything, "order-1").Return(existingOrder(model.OrderStatusPending), nil)
	r.orders.On("Update", mock.Anything, mock.Anything).Return(nil)
	r.orderItems.On("ListByOrderID", mock.Anything, "order-1").Return([]model.OrderItem{
		{ID: "i1", ProductID: productCement, Quantity: 2},
	}, nil)
	r.inventory.On("IncreaseStock", mock.Anything, productCement, int64(2)).Return(nil).Once()
	r.inventory.On("CreateAdjustment", mock.Anything, mock.Anything).Return(nil)
	r.audit.On("Create", mock.Anything, mock.Anything).Return(nil)
	catalog.On("Bump", mock.Anything).Return(nil)
	events.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	out, err := uc.UpdateOrderStatus(context.Background(), supplierUser, "order-1", usecase.UpdateOrderStatusInput{Status: "cancelled"})
	assert.NoError(t, err)
	assert.Equal(t, "cancelled", out.Status)
	r.inventory.AssertExpectations(t)
}

func TestOrderUsecase_UpdateOrderStatus_BuyerCannotCancelViaStatus(t *testing.T) {
	r := newTxRepos()
	uc, tx, events, _ := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, buyerUserID, model.RoleUser, buyerCompany)
	r.orders.On("FindByIDForUpdate", mock.Anything, "order-1").Return(existingOrder(model.OrderStatusPending), nil)

	_, err := uc.UpdateOrderStatus(context.Background(), buyerUserID, "order-1", usecase.UpdateOrderStatusInput{Status: "cancelled"})
	assertStatus(t, err, http.StatusForbidden)

	r.orders.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	r.inventory.AssertNotCalled(t, "IncreaseStock", mock.Anything, mock.Anything, mock.Anything)
	events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =====================
// UpdateOrder / GetOrder
// =====================

func TestOrderUsecase_UpdateOrder_RefundedPaymentRejected(t *testing.T) {
	r := newTxRepos()
	uc, tx, _, _ := newOrderUsecase(r)

	refunded := "refunded"
	_, err := uc.UpdateOrder(context.Background(), supplierUser, "order-1", usecase.UpdateOrderInput{PaymentStatus: &refunded})
	assertStatus(t, err, http.StatusBadRequest)
	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestOrderUsecase_UpdateOrder_BuyerCannotSetPayment(t *testing.T) {
	r := newTxRepos()
	uc, tx, _, _ := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, buyerUserID, model.RoleUser, buyerCompany)
	r.orders.On("FindByIDForUpdate", mock.Anything, "order-1").Return(existingOrder(model.OrderStatusPending), nil)

	paid := "paid"
	_, err := uc.UpdateOrder(context.Background(), buyerUserID, "order-1", usecase.UpdateOrderInput{PaymentStatus: &paid})
	assertStatus(t, err, http.StatusForbidden)
	r.orders.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestOrderUsecase_UpdateOrder_SupplierMarksPaid(t *testing.T) {
	r := newTxRepos()
	uc, tx, _, _ := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, supplierUser, model.RoleUser, supplierCo)
	r.orders.On("FindByIDForUpdate", mock.Anything, "order-1").Return(existingOrder(model.OrderStatusConfirmed), nil)
	r.orders.On("Update", mock.Anything, mock.MatchedBy(func(o *model.Order) bool {
		return o.PaymentStatus == model.PaymentStatusPaid && o.InternalNotes != nil
	})).Return(nil).Once()
	r.orderItems.On("ListByOrderID", mock.Anything, "order-1").Return([]model.OrderItem{}, nil)

	paid := "paid"
	note := "wire received"
	out, err := uc.UpdateOrder(context.Background(), supplierUser, "order-1", usecase.UpdateOrderInput{PaymentStatus: &paid, InternalNotes: &note})
	assert.NoError(t, err)
	assert.Equal(t, "paid", out.PaymentStatus)
	if assert.NotNil(t, out.InternalNotes) {
		assert.Equal(t, note, *out.InternalNotes)
	}
}

func TestOrderUsecase_GetOrder_HidesInternalNotesFromBuyer(t *testing.T) {
	r := newTxRepos()
	uc, tx, _, _ := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, buyerUserID, model.RoleUser, buyerCompany)

	o := existingOrder(model.OrderStatusPending)
	note := "margin is thin"
	o.InternalNotes = &note
	r.orders.On("FindByID", mock.Anything, "order-1").Return(o, nil)
	r.orderItems.On("ListByOrderID", mock.Anything, "order-1").Return([]model.OrderItem{}, nil)

	out, err := uc.GetOrder(context.Background(), buyerUserID, "order-1")
	assert.NoError(t, err)
	assert.Nil(t, out.InternalNotes)
}

func TestOrderUsecase_ListOrders_ScopesToActor(t *testing.T) {
	r := newTxRepos()
	uc, tx, _, _ := newOrderUsecase(r)

	tx.On("WithinTx", mock.Anything).Return(nil)
	expectActor(r, supplierUser, model.RoleUser, supplierCo)

	r.orders.On("List", mock.Anything, mock.MatchedBy(func(f repo.OrderListFilter) bool {
		return !f.Scope.All && f.Scope.Side == repo.SideSupplier &&
			len(f.Scope.CompanyIDs) == 1 && f.Scope.CompanyIDs[0] == supplierCo &&
			f.Page == 1 && f.Limit == 20
	})).Return([]model.Order{existingOrder(model.OrderStatusPending)}, int64(1), nil).Once()
	r.orderItems.On("ListByOrderID", mock.Anything, "order-1").Return([]model.OrderItem{}, nil)

	out, err := uc.ListOrders(context.Background(), supplierUser, usecase.ListOrdersInput{Role: "supplier"})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	assert.Equal(t, 1, out.Pages)
	assert.Len(t, out.Items, 1)
	r.orders.AssertExpectations(t)
}

func TestOrderUsecase_ListOrders_InvalidFilters(t *testing.T) {
	r := newTxRepos()
	uc, tx, _, _ := newOrderUsecase(r)

	_, err := uc.ListOrders(context.Background(), buyerUserID, usecase.ListOrdersInput{Role: "owner"})
	assertStatus(t, err, http.StatusBadRequest)

	_, err = uc.ListOrders(context.Background(), buyerUserID, usecase.ListOrdersInput{Status: "lost"})
	assertStatus(t, err, http.StatusBadRequest)

	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}
