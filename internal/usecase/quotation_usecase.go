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

type QuotationUsecase struct {
	tx      repo.TransactionManager
	pricing PricingPolicy
	events  EventPublisher
	catalog CatalogInvalidator
	clock   auth.Clock
	numbers NumberGenerator
	log     *slog.Logger
}

// DI
func NewQuotationUsecase(
	tx repo.TransactionManager,
	pricing PricingPolicy,
	events EventPublisher,
	catalog CatalogInvalidator,
	clock auth.Clock,
	log *slog.Logger,
) *QuotationUsecase {
	if pricing == nil {
		pricing = ZeroPricing{}
	}
	return &QuotationUsecase{
		tx:      tx,
		pricing: pricing,
		events:  events,
		catalog: catalog,
		clock:   clock,
		numbers: DefaultNumberGenerator,
		log:     log,
	}
}

type QuotationItemInput struct {
	ProductID      string           `json:"product_id" validate:"required"`
	Quantity       int64            `json:"quantity" validate:"gt=0"`
	UnitPrice      decimal.Decimal  `json:"unit_price"`
	Description    *string          `json:"description" validate:"omitempty,max=2000"`
	Specifications model.Attributes `json:"specifications"`
	Brand          *string          `json:"brand" validate:"omitempty,max=100"`
	Model          *string          `json:"model" validate:"omitempty,max=100"`
	DeliveryTime   *int             `json:"delivery_time" validate:"omitempty,gte=0"`
}

type CreateQuotationInput struct {
	BuyerCompanyID    string               `json:"buyer_company_id" validate:"required"`
	BuyerUserID       string               `json:"buyer_user_id" validate:"required"`
	SupplierCompanyID string               `json:"supplier_company_id" validate:"required"`
	ValidUntil        time.Time            `json:"valid_until" validate:"required"`
	PaymentTerms      *string              `json:"payment_terms" validate:"omitempty,max=2000"`
	DeliveryTerms     *string              `json:"delivery_terms" validate:"omitempty,max=2000"`
	Notes             *string              `json:"notes" validate:"omitempty,max=2000"`
	Items             []QuotationItemInput `json:"items" validate:"required,min=1,dive"`
}

func (u *QuotationUsecase) CreateQuotation(ctx context.Context, userID string, in CreateQuotationInput) (QuotationOutput, error) {
	if userID == "" {
		return QuotationOutput{}, unauthorized()
	}
	lines := make([]OrderItemInput, 0, len(in.Items))
	for _, it := range in.Items {
		lines = append(lines, OrderItemInput{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	if err := validateLineItems(lines); err != nil {
		return QuotationOutput{}, err
	}

	now := u.clock.Now()
	if !in.ValidUntil.After(now) {
		return QuotationOutput{}, badRequest("valid_until must be in the future")
	}

	var out QuotationOutput
	var err error

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			q, err := u.createQuotationTx(ctx, r, userID, in, now)
			if err != nil {
				return err
			}
			out = toQuotationOutput(q, q.Items)
			return nil
		})
		if !errors.Is(err, errNumberTaken) {
			break
		}
		u.log.Warn("quotation number collision", slog.Int("attempt", attempt))
	}
	if err != nil {
		return QuotationOutput{}, txError(u.log, "create quotation", err)
	}

	u.log.Info("quotation created",
		slog.String("quotation_id", out.ID),
		slog.String("quotation_number", out.QuotationNumber),
		slog.String("total", out.TotalAmount),
	)
	return out, nil
}

func (u *QuotationUsecase) createQuotationTx(ctx context.Context, r repo.TxRepos, userID string, in CreateQuotationInput, now time.Time) (model.Quotation, error) {
	actor, err := loadActor(ctx, r, userID)
	if err != nil {
		return model.Quotation{}, err
	}
	if !actor.MemberOf(in.SupplierCompanyID) {
		return model.Quotation{}, forbidden("Not a member of the supplier company")
	}

	//買い手ユーザーが買い手会社に所属しているか
	buyerMembers, err := r.Companies().ListMemberships(ctx, in.BuyerUserID)
	if err != nil {
		return model.Quotation{}, fmt.Errorf("list buyer memberships: %w", err)
	}
	buyer := Actor{UserID: in.BuyerUserID}
	for _, m := range buyerMembers {
		buyer.CompanyIDs = append(buyer.CompanyIDs, m.CompanyID)
	}
	if !buyer.MemberOf(in.BuyerCompanyID) {
		return model.Quotation{}, badRequest("Buyer user does not belong to the buyer company")
	}

	items := make([]model.QuotationItem, 0, len(in.Items))
	lines := make([]decimal.Decimal, 0, len(in.Items))

	for _, it := range in.Items {
		p, err := r.Products().FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
			return model.Quotation{}, badRequest(fmt.Sprintf("Product %s not found", it.ProductID))
		}
		if err != nil {
			return model.Quotation{}, fmt.Errorf("find product: %w", err)
		}
		if p.SupplierCompanyID != in.SupplierCompanyID {
			return model.Quotation{}, badRequest(fmt.Sprintf("Product %s does not belong to the supplier", p.SKU))
		}

		total := model.LineTotal(it.UnitPrice, it.Quantity)
		items = append(items, model.QuotationItem{
			ProductID:      p.ID,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			TotalPrice:     total,
			Description:    it.Description,
			Specifications: it.Specifications,
			Brand:          it.Brand,
			Model:          it.Model,
			DeliveryTime:   it.DeliveryTime,
		})
		lines = append(lines, total)
	}

	q := model.Quotation{
		ID:                uuid.NewString(),
		QuotationNumber:   u.numbers(quotationNumberPrefix, now),
		BuyerCompanyID:    in.BuyerCompanyID,
		BuyerUserID:       in.BuyerUserID,
		SupplierCompanyID: in.SupplierCompanyID,
		SupplierUserID:    userID,
		Status:            model.QuotationStatusDraft,
		ValidUntil:        in.ValidUntil,
		PaymentTerms:      trimPtr(in.PaymentTerms),
		DeliveryTerms:     trimPtr(in.DeliveryTerms),
		Notes:             trimPtr(in.Notes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	q.ApplyTotals(u.pricing.Price(sumLines(lines)))

	if err := r.Quotations().Create(ctx, &q); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.Quotation{}, errNumberTaken
		}
		return model.Quotation{}, fmt.Errorf("create quotation: %w", err)
	}
	if err := r.QuotationItems().CreateBulk(ctx, q.ID, items); err != nil {
		return model.Quotation{}, fmt.Errorf("create quotation items: %w", err)
	}

	q.Items = items
	return q, nil
}

// 期限切れならexpiredにして保存する（自動遷移なので操作者は空）
func expireIfDue(ctx context.Context, r repo.TxRepos, q *model.Quotation, now time.Time) (bool, error) {
	before := statusSnapshot{Status: string(q.Status)}
	if !q.ExpireIfDue(now) {
		return false, nil
	}
	if err := r.Quotations().Update(ctx, q); err != nil {
		return false, fmt.Errorf("expire quotation: %w", err)
	}
	after := statusSnapshot{Status: string(q.Status)}
	if err := writeAudit(ctx, r, "", model.AuditActionUpdateQuotationStatus, model.AuditResourceQuotation, q.ID, before, after, now); err != nil {
		return false, err
	}
	return true, nil
}

func (u *QuotationUsecase) publishExpired(ctx context.Context, q QuotationOutput) {
	u.log.Info("quotation expired", slog.String("quotation_id", q.ID))
	publish(ctx, u.log, u.events, EventQuotationExpired, q.ID, StatusChangedPayload{
		ID: q.ID, Number: q.QuotationNumber, To: string(model.QuotationStatusExpired),
	})
}

// 読むときに期限切れ判定。買い手本人が初めて開いたらviewed。
func (u *QuotationUsecase) GetQuotation(ctx context.Context, userID string, quotationID string) (QuotationOutput, error) {
	var out QuotationOutput
	var expired bool

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		actor, err := loadActor(ctx, r, userID)
		if err != nil {
			return err
		}

		q, err := r.Quotations().FindByIDForUpdate(ctx, quotationID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("Quotation not found")
		}
		if err != nil {
			return fmt.Errorf("find quotation: %w", err)
		}
		if !actor.IsParty(q.BuyerUserID, q.BuyerCompanyID, q.SupplierCompanyID) {
			return forbidden("Not enough permissions")
		}

		now := u.clock.Now()
		expired, err = expireIfDue(ctx, r, &q, now)
		if err != nil {
			return err
		}
		if !expired && actor.UserID == q.BuyerUserID && q.MarkViewed(now) {
			if err := r.Quotations().Update(ctx, &q); err != nil {
				return fmt.Errorf("mark viewed: %w", err)
			}
		}

		items, err := r.QuotationItems().ListByQuotationID(ctx, q.ID)
		if err != nil {
			return fmt.Errorf("list quotation items: %w", err)
		}
		out = toQuotationOutput(q, items)
		return nil
	})
	if err != nil {
		return QuotationOutput{}, txError(u.log, "get quotation", err)
	}

	if expired {
		u.publishExpired(ctx, out)
	}
	return out, nil
}

type ListQuotationsInput struct {
	Page   int
	Limit  int
	Status string
	Role   string
}

func (u *QuotationUsecase) ListQuotations(ctx context.Context, userID string, in ListQuotationsInput) (QuotationListOutput, error) {
	side, err := parseSide(in.Role)
	if err != nil {
		return QuotationListOutput{}, err
	}
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 || in.Limit > 100 {
		in.Limit = 20
	}

	filter := repo.QuotationListFilter{Page: in.Page, Limit: in.Limit}
	if in.Status != "" {
		st, err := model.ParseQuotationStatus(in.Status)
		if err != nil {
			return QuotationListOutput{}, badRequest("invalid status")
		}
		filter.Status = &st
	}

	var out QuotationListOutput
	var expiredOuts []QuotationOutput

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		actor, err := loadActor(ctx, r, userID)
		if err != nil {
			return err
		}
		filter.Scope = actor.Scope(side)

		quotations, total, err := r.Quotations().List(ctx, filter)
		if err != nil {
			return fmt.Errorf("list quotations: %w", err)
		}

		now := u.clock.Now()
		outs := make([]QuotationOutput, 0, len(quotations))
		for i := range quotations {
			q := quotations[i]
			expired, err := expireIfDue(ctx, r, &q, now)
			if err != nil {
				return err
			}
			items, err := r.QuotationItems().ListByQuotationID(ctx, q.ID)
			if err != nil {
				return fmt.Errorf("list quotation items: %w", err)
			}
			qo := toQuotationOutput(q, items)
			if expired {
				expiredOuts = append(expiredOuts, qo)
			}
			outs = append(outs, qo)
		}

		out = QuotationListOutput{
			Items: outs,
			Total: total,
			Page:  in.Page,
			Limit: in.Limit,
			Pages: pageCount(total, in.Limit),
		}
		return nil
	})
	if err != nil {
		return QuotationListOutput{}, txError(u.log, "list quotations", err)
	}

	for _, q := range expiredOuts {
		u.publishExpired(ctx, q)
	}
	return out, nil
}

// 下書きのときだけ変更できる項目
type UpdateQuotationInput struct {
	ValidUntil    *time.Time `json:"valid_until"`
	PaymentTerms  *string    `json:"payment_terms" validate:"omitempty,max=2000"`
	DeliveryTerms *string    `json:"delivery_terms" validate:"omitempty,max=2000"`
	Notes         *string    `json:"notes" validate:"omitempty,max=2000"`
}

func (u *QuotationUsecase) UpdateQuotation(ctx context.Context, userID string, quotationID string, in UpdateQuotationInput) (QuotationOutput, error) {
	var out QuotationOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		q, err := u.findForSupplier(ctx, r, userID, quotationID)
		if err != nil {
			return err
		}
		if q.Status != model.QuotationStatusDraft {
			return badRequest("Only draft quotations can be updated")
		}

		now := u.clock.Now()
		if in.ValidUntil != nil {
			if !in.ValidUntil.After(now) {
				return badRequest("valid_until must be in the future")
			}
			q.ValidUntil = *in.ValidUntil
		}
		if in.PaymentTerms != nil {
			q.PaymentTerms = in.PaymentTerms
		}
		if in.DeliveryTerms != nil {
			q.DeliveryTerms = in.DeliveryTerms
		}
		if in.Notes != nil {
			q.Notes = in.Notes
		}

		if err := r.Quotations().Update(ctx, &q); err != nil {
			return fmt.Errorf("update quotation: %w", err)
		}

		items, err := r.QuotationItems().ListByQuotationID(ctx, q.ID)
		if err != nil {
			return fmt.Errorf("list quotation items: %w", err)
		}
		out = toQuotationOutput(q, items)
		return nil
	})
	if err != nil {
		return QuotationOutput{}, txError(u.log, "update quotation", err)
	}
	return out, nil
}

func (u *QuotationUsecase) findForSupplier(ctx context.Context, r repo.TxRepos, userID, quotationID string) (model.Quotation, error) {
	actor, err := loadActor(ctx, r, userID)
	if err != nil {
		return model.Quotation{}, err
	}

	q, err := r.Quotations().FindByIDForUpdate(ctx, quotationID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Quotation{}, notFound("Quotation not found")
	}
	if err != nil {
		return model.Quotation{}, fmt.Errorf("find quotation: %w", err)
	}
	if !actor.MemberOf(q.SupplierCompanyID) {
		return model.Quotation{}, forbidden("Only the supplier can modify this quotation")
	}
	return q, nil
}

func (u *QuotationUsecase) findForBuyer(ctx context.Context, r repo.TxRepos, userID, quotationID string) (model.Quotation, error) {
	actor, err := loadActor(ctx, r, userID)
	if err != nil {
		return model.Quotation{}, err
	}

	q, err := r.Quotations().FindByIDForUpdate(ctx, quotationID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Quotation{}, notFound("Quotation not found")
	}
	if err != nil {
		return model.Quotation{}, fmt.Errorf("find quotation: %w", err)
	}
	if actor.UserID != q.BuyerUserID && !actor.MemberOf(q.BuyerCompanyID) {
		return model.Quotation{}, forbidden("Only the buyer can respond to this quotation")
	}
	return q, nil
}

func (u *QuotationUsecase) SendQuotation(ctx context.Context, userID string, quotationID string) (MessageOutput, error) {
	var number string

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		q, err := u.findForSupplier(ctx, r, userID, quotationID)
		if err != nil {
			return err
		}

		now := u.clock.Now()
		before := statusSnapshot{Status: string(q.Status)}
		if err := q.Send(now); err != nil {
			return transitionError(err, "Only draft quotations can be sent")
		}
		if err := r.Quotations().Update(ctx, &q); err != nil {
			return fmt.Errorf("update quotation: %w", err)
		}

		number = q.QuotationNumber
		after := statusSnapshot{Status: string(q.Status)}
		return writeAudit(ctx, r, userID, model.AuditActionUpdateQuotationStatus, model.AuditResourceQuotation, q.ID, before, after, now)
	})
	if err != nil {
		return MessageOutput{}, txError(u.log, "send quotation", err)
	}

	u.log.Info("quotation sent", slog.String("quotation_id", quotationID))
	publish(ctx, u.log, u.events, EventQuotationSent, quotationID, StatusChangedPayload{
		ID: quotationID, Number: number, From: string(model.QuotationStatusDraft), To: string(model.QuotationStatusSent), Actor: userID,
	})

	return MessageOutput{Message: "Quotation sent successfully"}, nil
}

// 承諾すると同じtxで注文を作る（期限切れならexpiredを確定してエラー）
func (u *QuotationUsecase) AcceptQuotation(ctx context.Context, userID string, quotationID string) (MessageOutput, error) {
	var (
		order   model.Order
		q       model.Quotation
		from    model.QuotationStatus
		expired bool
		err     error
	)

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			found, err := u.findForBuyer(ctx, r, userID, quotationID)
			if err != nil {
				return err
			}
			q = found
			from = q.Status

			if q.Status != model.QuotationStatusSent && q.Status != model.QuotationStatusViewed {
				return badRequest("Quotation cannot be accepted in current status")
			}

			now := u.clock.Now()
			expired, err = expireIfDue(ctx, r, &q, now)
			if err != nil || expired {
				//expiredはcommitする
				return err
			}

			order, err = u.createOrderFromQuotation(ctx, r, userID, &q, now)
			if err != nil {
				return err
			}

			before := statusSnapshot{Status: string(from)}
			if err := q.Accept(order.ID, now); err != nil {
				return transitionError(err, "Quotation cannot be accepted in current status")
			}
			if err := r.Quotations().Update(ctx, &q); err != nil {
				return fmt.Errorf("update quotation: %w", err)
			}
			after := statusSnapshot{Status: string(q.Status)}
			return writeAudit(ctx, r, userID, model.AuditActionUpdateQuotationStatus, model.AuditResourceQuotation, q.ID, before, after, now)
		})
		if !errors.Is(err, errNumberTaken) {
			break
		}
		u.log.Warn("order number collision", slog.Int("attempt", attempt))
	}
	if err != nil {
		return MessageOutput{}, txError(u.log, "accept quotation", err)
	}

	if expired {
		u.publishExpired(ctx, toQuotationOutput(q, nil))
		return MessageOutput{}, badRequest("Quotation has expired")
	}

	orderID := order.ID
	u.log.Info("quotation accepted",
		slog.String("quotation_id", q.ID),
		slog.String("order_id", orderID),
		slog.String("total", model.FormatMoney(q.TotalAmount)),
	)
	invalidateCatalog(ctx, u.log, u.catalog)
	publish(ctx, u.log, u.events, EventQuotationAccepted, q.ID, StatusChangedPayload{
		ID: q.ID, Number: q.QuotationNumber, From: string(from), To: string(q.Status), Actor: userID,
	})
	publish(ctx, u.log, u.events, EventOrderCreated, orderID, toOrderOutput(order, order.Items, false))

	return MessageOutput{Message: "Quotation accepted and order created", OrderID: &orderID}, nil
}

// 見積の明細から注文を作る。スナップショットは現在の商品から取り直す。
func (u *QuotationUsecase) createOrderFromQuotation(ctx context.Context, r repo.TxRepos, userID string, q *model.Quotation, now time.Time) (model.Order, error) {
	qItems, err := r.QuotationItems().ListByQuotationID(ctx, q.ID)
	if err != nil {
		return model.Order{}, fmt.Errorf("list quotation items: %w", err)
	}

	orderID := uuid.NewString()
	items := make([]model.OrderItem, 0, len(qItems))

	for _, qi := range qItems {
		p, err := r.Products().FindByID(ctx, qi.ProductID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
			return model.Order{}, badRequest(fmt.Sprintf("Product %s not found", qi.ProductID))
		}
		if err != nil {
			return model.Order{}, fmt.Errorf("find product: %w", err)
		}

		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, p.ID, qi.Quantity)
		if err != nil {
			return model.Order{}, fmt.Errorf("decrease stock: %w", err)
		}
		if !ok {
			return model.Order{}, badRequest(fmt.Sprintf("Insufficient stock for product %s", p.SKU))
		}
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   p.ID,
			ActorUserID: userID,
			Delta:       -qi.Quantity,
			Reason:      model.InventoryReasonQuotationDeal,
			ReferenceID: &orderID,
			CreatedAt:   now,
		}); err != nil {
			return model.Order{}, fmt.Errorf("create adjustment: %w", err)
		}

		items = append(items, model.NewOrderItem(p, qi.Quantity, qi.UnitPrice))
	}

	order := model.Order{
		ID:                orderID,
		OrderNumber:       u.numbers(orderNumberPrefix, now),
		BuyerCompanyID:    q.BuyerCompanyID,
		BuyerUserID:       q.BuyerUserID,
		SupplierCompanyID: q.SupplierCompanyID,
		Status:            model.OrderStatusConfirmed,
		PaymentStatus:     model.PaymentStatusPending,
		Notes:             q.Notes,
		StatusUpdatedAt:   &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	order.ApplyTotals(q.Totals())

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

func (u *QuotationUsecase) RejectQuotation(ctx context.Context, userID string, quotationID string) (MessageOutput, error) {
	var (
		q       model.Quotation
		from    model.QuotationStatus
		expired bool
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		found, err := u.findForBuyer(ctx, r, userID, quotationID)
		if err != nil {
			return err
		}
		q = found
		from = q.Status

		if q.Status != model.QuotationStatusSent && q.Status != model.QuotationStatusViewed {
			return badRequest("Quotation cannot be rejected in current status")
		}

		now := u.clock.Now()
		expired, err = expireIfDue(ctx, r, &q, now)
		if err != nil || expired {
			return err
		}

		before := statusSnapshot{Status: string(from)}
		if err := q.Reject(now); err != nil {
			return transitionError(err, "Quotation cannot be rejected in current status")
		}
		if err := r.Quotations().Update(ctx, &q); err != nil {
			return fmt.Errorf("update quotation: %w", err)
		}
		after := statusSnapshot{Status: string(q.Status)}
		return writeAudit(ctx, r, userID, model.AuditActionUpdateQuotationStatus, model.AuditResourceQuotation, q.ID, before, after, now)
	})
	if err != nil {
		return MessageOutput{}, txError(u.log, "reject quotation", err)
	}

	if expired {
		u.publishExpired(ctx, toQuotationOutput(q, nil))
		return MessageOutput{}, badRequest("Quotation has expired")
	}

	u.log.Info("quotation rejected", slog.String("quotation_id", q.ID))
	publish(ctx, u.log, u.events, EventQuotationRejected, q.ID, StatusChangedPayload{
		ID: q.ID, Number: q.QuotationNumber, From: string(from), To: string(q.Status), Actor: userID,
	})

	return MessageOutput{Message: "Quotation rejected successfully"}, nil
}

// 入力の前後空白を落とす
func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
