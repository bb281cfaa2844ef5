package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tigu/internal/auth"
	"tigu/internal/domain/model"
	repo "tigu/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 注文番号の重複（txを巻き戻して番号を振り直す）
var errNumberTaken = errors.New("document number already taken")

type OrderUsecase struct {
	tx      repo.TransactionManager
	pricing PricingPolicy
	events  EventPublisher
	catalog CatalogInvalidator
	clock   auth.Clock
	numbers NumberGenerator
	log     *slog.Logger
}

// DI
func NewOrderUsecase(
	tx repo.TransactionManager,
	pricing PricingPolicy,
	events EventPublisher,
	catalog CatalogInvalidator,
	clock auth.Clock,
	log *slog.Logger,
) *OrderUsecase {
	if pricing == nil {
		pricing = ZeroPricing{}
	}
	return &OrderUsecase{
		tx:      tx,
		pricing: pricing,
		events:  events,
		catalog: catalog,
		clock:   clock,
		numbers: DefaultNumberGenerator,
		log:     log,
	}
}

type OrderItemInput struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int64           `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateOrderInput struct {
	BuyerCompanyID        string           `json:"buyer_company_id" validate:"required"`
	SupplierCompanyID     string           `json:"supplier_company_id" validate:"required"`
	Items                 []OrderItemInput `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress       model.Address    `json:"delivery_address"`
	DeliveryContact       model.Contact    `json:"delivery_contact"`
	RequestedDeliveryDate *time.Time       `json:"requested_delivery_date"`
	Notes                 *string          `json:"notes" validate:"omitempty,max=2000"`
}

func validateLineItems(items []OrderItemInput) error {
	if len(items) == 0 {
		return badRequest("Order must contain at least one item")
	}
	for _, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			return badRequest("product_id is required")
		}
		if it.Quantity <= 0 {
			return badRequest("quantity must be greater than 0")
		}
		if !it.UnitPrice.IsPositive() {
			return badRequest("unit_price must be greater than 0")
		}
		//numeric(12,2)に入る桁だけ
		if !it.UnitPrice.Equal(it.UnitPrice.Truncate(model.MoneyScale)) {
			return badRequest("unit_price must have at most 2 decimal places")
		}
	}
	return nil
}

func (u *OrderUsecase) CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (OrderOutput, error) {
	if userID == "" {
		return OrderOutput{}, unauthorized()
	}
	if err := validateLineItems(in.Items); err != nil {
		return OrderOutput{}, err
	}
	if in.BuyerCompanyID == "" || in.SupplierCompanyID == "" {
		return OrderOutput{}, badRequest("buyer_company_id and supplier_company_id are required")
	}

	var out OrderOutput
	var err error

	//番号が重複したらtxごとやり直す
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			o, err := u.createOrderTx(ctx, r, userID, in)
			if err != nil {
				return err
			}
			out = toOrderOutput(o, o.Items, false)
			return nil
		})
		if !errors.Is(err, errNumberTaken) {
			break
		}
		u.log.Warn("order number collision", slog.Int("attempt", attempt))
	}
	if err != nil {
		return OrderOutput{}, txError(u.log, "create order", err)
	}

	u.log.Info("order created",
		slog.String("order_id", out.ID),
		slog.String("order_number", out.OrderNumber),
		slog.String("total", out.TotalAmount),
	)
	invalidateCatalog(ctx, u.log, u.catalog)
	publish(ctx, u.log, u.events, EventOrderCreated, out.ID, out)

	return out, nil
}

func (u *OrderUsecase) createOrderTx(ctx context.Context, r repo.TxRepos, userID string, in CreateOrderInput) (model.Order, error) {
	actor, err := loadActor(ctx, r, userID)
	if err != nil {
		return model.Order{}, err
	}
	if !actor.IsAdmin && !actor.MemberOf(in.BuyerCompanyID) {
		return model.Order{}, forbidden("Not a member of the buyer company")
	}

	now := u.clock.Now()
	orderID := uuid.NewString()

	items := make([]model.OrderItem, 0, len(in.Items))
	lines := make([]decimal.Decimal, 0, len(in.Items))

	for _, it := range in.Items {
		p, err := r.Products().FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
			return model.Order{}, badRequest(fmt.Sprintf("Product %s not found", it.ProductID))
		}
		if err != nil {
			return model.Order{}, fmt.Errorf("find product: %w", err)
		}
		if p.SupplierCompanyID != in.SupplierCompanyID {
			return model.Order{}, badRequest(fmt.Sprintf("Product %s does not belong to the supplier", p.SKU))
		}

		//在庫減算（足りないなら false）
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, p.ID, it.Quantity)
		if err != nil {
			return model.Order{}, fmt.Errorf("decrease stock: %w", err)
		}
		if !ok {
			return model.Order{}, badRequest(fmt.Sprintf("Insufficient stock for product %s", p.SKU))
		}
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   p.ID,
			ActorUserID: userID,
			Delta:       -it.Quantity,
			Reason:      model.InventoryReasonOrder,
			ReferenceID: &orderID,
			CreatedAt:   now,
		}); err != nil {
			return model.Order{}, fmt.Errorf("create adjustment: %w", err)
		}

		//スナップショット
		item := model.NewOrderItem(p, it.Quantity, it.UnitPrice)
		items = append(items, item)
		lines = append(lines, item.TotalPrice)
	}

	order := model.Order{
		ID:                    orderID,
		OrderNumber:           u.numbers(orderNumberPrefix, now),
		BuyerCompanyID:        in.BuyerCompanyID,
		BuyerUserID:           userID,
		SupplierCompanyID:     in.SupplierCompanyID,
		Status:                model.OrderStatusPending,
		PaymentStatus:         model.PaymentStatusPending,
		DeliveryAddress:       in.DeliveryAddress,
		DeliveryContact:       in.DeliveryContact,
		RequestedDeliveryDate: in.RequestedDeliveryDate,
		Notes:                 in.Notes,
		StatusUpdatedAt:       &now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	order.ApplyTotals(u.pricing.Price(sumLines(lines)))

	if err := r.Orders().Create(ctx, &order); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.Order{}, errNumberTaken
		}
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}
	if err := r.OrderItems().CreateBulk(ctx, order.ID, items); err != nil {
		return model.Order{}, fmt.Errorf("create order items: %w", err)
	}

	order.Items = items
	return order, nil
}

func (u *OrderUsecase) GetOrder(ctx context.Context, userID string, orderID string) (OrderOutput, error) {
	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		actor, err := loadActor(ctx, r, userID)
		if err != nil {
			return err
		}

		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("Order not found")
		}
		if err != nil {
			return fmt.Errorf("find order: %w", err)
		}
		if !actor.IsParty(o.BuyerUserID, o.BuyerCompanyID, o.SupplierCompanyID) {
			return forbidden("Not enough permissions")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}

		out = toOrderOutput(o, items, actor.IsAdmin || actor.MemberOf(o.SupplierCompanyID))
		return nil
	})
	if err != nil {
		return OrderOutput{}, txError(u.log, "get order", err)
	}
	return out, nil
}

type ListOrdersInput struct {
	Page          int
	Limit         int
	Status        string
	PaymentStatus string
	Role          string
	Q             string
	From          *time.Time
	To            *time.Time
}

func (u *OrderUsecase) ListOrders(ctx context.Context, userID string, in ListOrdersInput) (OrderListOutput, error) {
	side, err := parseSide(in.Role)
	if err != nil {
		return OrderListOutput{}, err
	}
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 || in.Limit > 100 {
		in.Limit = 20
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return OrderListOutput{}, badRequest("from must be before to")
	}

	filter := repo.OrderListFilter{
		Page:       in.Page,
		Limit:      in.Limit,
		NumberLike: in.Q,
		From:       in.From,
		To:         in.To,
	}
	if in.Status != "" {
		st, err := model.ParseOrderStatus(in.Status)
		if err != nil {
			return OrderListOutput{}, badRequest("invalid status")
		}
		filter.Status = &st
	}
	if in.PaymentStatus != "" {
		ps, err := model.ParsePaymentStatus(in.PaymentStatus)
		if err != nil {
			return OrderListOutput{}, badRequest("invalid payment_status")
		}
		filter.PaymentStatus = &ps
	}

	var out OrderListOutput

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		actor, err := loadActor(ctx, r, userID)
		if err != nil {
			return err
		}
		filter.Scope = actor.Scope(side)

		orders, total, err := r.Orders().List(ctx, filter)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}

		outs := make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return fmt.Errorf("list order items: %w", err)
			}
			outs = append(outs, toOrderOutput(o, items, actor.IsAdmin || actor.MemberOf(o.SupplierCompanyID)))
		}

		out = OrderListOutput{
			Items: outs,
			Total: total,
			Page:  in.Page,
			Limit: in.Limit,
			Pages: pageCount(total, in.Limit),
		}
		return nil
	})
	if err != nil {
		return OrderListOutput{}, txError(u.log, "list orders", err)
	}
	return out, nil
}

type UpdateOrderStatusInput struct {
	Status string `json:"status" validate:"required"`
}

func (u *OrderUsecase) UpdateOrderStatus(ctx context.Context, userID string, orderID string, in UpdateOrderStatusInput) (OrderOutput, error) {
	next, err := model.ParseOrderStatus(in.Status)
	if err != nil {
		return OrderOutput{}, badRequest("Invalid order status")
	}
	//在庫戻しはcancel側で（ただし売り手のみ）
	if next == model.OrderStatusCancelled {
		return u.cancelOrder(ctx, userID, orderID, CancelOrderInput{}, true)
	}

	var out OrderOutput
	var from model.OrderStatus

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		actor, err := loadActor(ctx, r, userID)
		if err != nil {
			return err
		}

		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("Order not found")
		}
		if err != nil {
			return fmt.Errorf("find order: %w", err)
		}
		if !actor.MemberOf(o.SupplierCompanyID) {
			return forbidden("Only the supplier can update order status")
		}

		now := u.clock.Now()
		from = o.Status
		before := statusSnapshot{Status: string(o.Status), PaymentStatus: string(o.PaymentStatus)}

		if err := o.TransitionTo(next, now); err != nil {
			return transitionError(err, fmt.Sprintf("Cannot change order status from %s to %s", from, next))
		}
		if err := r.Orders().Update(ctx, &o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		after := statusSnapshot{Status: string(o.Status), PaymentStatus: string(o.PaymentStatus)}
		if err := writeAudit(ctx, r, userID, model.AuditActionUpdateOrderStatus, model.AuditResourceOrder, o.ID, before, after, now); err != nil {
			return err
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		out = toOrderOutput(o, items, true)
		return nil
	})
	if err != nil {
		return OrderOutput{}, txError(u.log, "update order status", err)
	}

	u.log.Info("order status changed",
		slog.String("order_id", out.ID),
		slog.String("from", string(from)),
		slog.String("to", out.Status),
	)
	publish(ctx, u.log, u.events, EventOrderStatusChanged, out.ID, StatusChangedPayload{
		ID: out.ID, Number: out.OrderNumber, From: string(from), To: out.Status, Actor: userID,
	})

	return out, nil
}

type CancelOrderInput struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// pending/confirmedのみ。減らした在庫は戻す。
func (u *OrderUsecase) CancelOrder(ctx context.Context, userID string, orderID string, in CancelOrderInput) (OrderOutput, error) {
	return u.cancelOrder(ctx, userID, orderID, in, false)
}

func (u *OrderUsecase) cancelOrder(ctx context.Context, userID string, orderID string, in CancelOrderInput, supplierOnly bool) (OrderOutput, error) {
	var out OrderOutput
	var from model.OrderStatus

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		actor, err := loadActor(ctx, r, userID)
		if err != nil {
			return err
		}

		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("Order not found")
		}
		if err != nil {
			return fmt.Errorf("find order: %w", err)
		}
		if !actor.IsParty(o.BuyerUserID, o.BuyerCompanyID, o.SupplierCompanyID) {
			return forbidden("Not enough permissions")
		}
		if supplierOnly && !actor.MemberOf(o.SupplierCompanyID) {
			return forbidden("Only the supplier can update order status")
		}
		if !o.Status.IsCancellable() {
			return badRequest("Order cannot be cancelled in current status")
		}

		now := u.clock.Now()
		from = o.Status
		before := statusSnapshot{Status: string(o.Status), PaymentStatus: string(o.PaymentStatus)}

		if err := o.Cancel(strings.TrimSpace(in.Reason), now); err != nil {
			return transitionError(err, "Order cannot be cancelled in current status")
		}
		if err := r.Orders().Update(ctx, &o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}

		//在庫戻し
		for _, it := range items {
			if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
				return fmt.Errorf("restock product %s: %w", it.ProductID, err)
			}
			if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
				ProductID:   it.ProductID,
				ActorUserID: userID,
				Delta:       it.Quantity,
				Reason:      model.InventoryReasonOrderCancel,
				ReferenceID: &o.ID,
				CreatedAt:   now,
			}); err != nil {
				return fmt.Errorf("create adjustment: %w", err)
			}
		}

		after := statusSnapshot{Status: string(o.Status), PaymentStatus: string(o.PaymentStatus)}
		if err := writeAudit(ctx, r, userID, model.AuditActionCancelOrder, model.AuditResourceOrder, o.ID, before, after, now); err != nil {
			return err
		}

		out = toOrderOutput(o, items, actor.IsAdmin || actor.MemberOf(o.SupplierCompanyID))
		return nil
	})
	if err != nil {
		return OrderOutput{}, txError(u.log, "cancel order", err)
	}

	u.log.Info("order cancelled", slog.String("order_id", out.ID), slog.String("from", string(from)))
	invalidateCatalog(ctx, u.log, u.catalog)
	publish(ctx, u.log, u.events, EventOrderStatusChanged, out.ID, StatusChangedPayload{
		ID: out.ID, Number: out.OrderNumber, From: string(from), To: out.Status, Actor: userID,
	})

	return out, nil
}

// 更新できる項目だけ（ステータスは UpdateOrderStatus）
type UpdateOrderInput struct {
	PaymentStatus         *string        `json:"payment_status"`
	DeliveryAddress       *model.Address `json:"delivery_address"`
	DeliveryContact       *model.Contact `json:"delivery_contact"`
	RequestedDeliveryDate *time.Time     `json:"requested_delivery_date"`
	ActualDeliveryDate    *time.Time     `json:"actual_delivery_date"`
	Notes                 *string        `json:"notes" validate:"omitempty,max=2000"`
	InternalNotes         *string        `json:"internal_notes" validate:"omitempty,max=2000"`
}

func (u *OrderUsecase) UpdateOrder(ctx context.Context, userID string, orderID string, in UpdateOrderInput) (OrderOutput, error) {
	var payment *model.PaymentStatus
	if in.PaymentStatus != nil {
		ps, err := model.ParsePaymentStatus(*in.PaymentStatus)
		if err != nil {
			return OrderOutput{}, badRequest("Invalid payment status")
		}
		//refundedは返金遷移でだけ付く
		if ps == model.PaymentStatusRefunded {
			return OrderOutput{}, badRequest("Payment status refunded is set by a refund")
		}
		payment = &ps
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		actor, err := loadActor(ctx, r, userID)
		if err != nil {
			return err
		}

		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("Order not found")
		}
		if err != nil {
			return fmt.Errorf("find order: %w", err)
		}
		if !actor.IsParty(o.BuyerUserID, o.BuyerCompanyID, o.SupplierCompanyID) {
			return forbidden("Not enough permissions")
		}

		isSupplier := actor.IsAdmin || actor.MemberOf(o.SupplierCompanyID)
		if (payment != nil || in.InternalNotes != nil) && !isSupplier {
			return forbidden("Only the supplier can update payment status or internal notes")
		}
		if o.Status == model.OrderStatusCancelled || o.Status == model.OrderStatusRefunded {
			return badRequest("Order can no longer be updated")
		}

		if payment != nil {
			o.PaymentStatus = *payment
		}
		if in.DeliveryAddress != nil {
			o.DeliveryAddress = *in.DeliveryAddress
		}
		if in.DeliveryContact != nil {
			o.DeliveryContact = *in.DeliveryContact
		}
		if in.RequestedDeliveryDate != nil {
			o.RequestedDeliveryDate = in.RequestedDeliveryDate
		}
		if in.ActualDeliveryDate != nil {
			o.ActualDeliveryDate = in.ActualDeliveryDate
		}
		if in.Notes != nil {
			o.Notes = in.Notes
		}
		if in.InternalNotes != nil {
			o.InternalNotes = in.InternalNotes
		}

		if err := r.Orders().Update(ctx, &o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		out = toOrderOutput(o, items, isSupplier)
		return nil
	})
	if err != nil {
		return OrderOutput{}, txError(u.log, "update order", err)
	}
	return out, nil
}
