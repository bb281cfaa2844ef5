package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"tigu/internal/domain/model"
	repo "tigu/internal/repository"
	"tigu/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	users          *UserRepoMock
	companies      *CompanyRepoMock
	products       *ProductRepoMock
	inventory      *InventoryRepoMock
	orders         *OrderRepoMock
	orderItems     *OrderItemRepoMock
	quotations     *QuotationRepoMock
	quotationItems *QuotationItemRepoMock
	refreshTokens  *RefreshTokenRepoMock
	audit          *AuditRepoMock
}

func newTxRepos() *TxReposMock {
	return &TxReposMock{
		users:          new(UserRepoMock),
		companies:      new(CompanyRepoMock),
		products:       new(ProductRepoMock),
		inventory:      new(InventoryRepoMock),
		orders:         new(OrderRepoMock),
		orderItems:     new(OrderItemRepoMock),
		quotations:     new(QuotationRepoMock),
		quotationItems: new(QuotationItemRepoMock),
		refreshTokens:  new(RefreshTokenRepoMock),
		audit:          new(AuditRepoMock),
	}
}

func (r *TxReposMock) Users() repo.UserRepository                   { return r.users }
func (r *TxReposMock) Companies() repo.CompanyRepository            { return r.companies }
func (r *TxReposMock) Products() repo.ProductRepository             { return r.products }
func (r *TxReposMock) Inventory() repo.InventoryRepository          { return r.inventory }
func (r *TxReposMock) Orders() repo.OrderRepository                 { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository         { return r.orderItems }
func (r *TxReposMock) Quotations() repo.QuotationRepository         { return r.quotations }
func (r *TxReposMock) QuotationItems() repo.QuotationItemRepository { return r.quotationItems }
func (r *TxReposMock) RefreshTokens() repo.RefreshTokenRepository   { return r.refreshTokens }
func (r *TxReposMock) AuditLogs() repo.AuditLogRepository           { return r.audit }

// =====================
// Repository mocks
// =====================

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) IncrementTokenVersion(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type CompanyRepoMock struct{ mock.Mock }

func (m *CompanyRepoMock) Create(ctx context.Context, company *model.Company) error {
	args := m.Called(ctx, company)
	return args.Error(0)
}

func (m *CompanyRepoMock) FindByID(ctx context.Context, id string) (model.Company, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(model.Company)
	return c, args.Error(1)
}

func (m *CompanyRepoMock) AddMember(ctx context.Context, member *model.CompanyUser) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *CompanyRepoMock) ListMemberships(ctx context.Context, userID string) ([]model.CompanyUser, error) {
	args := m.Called(ctx, userID)
	ms, _ := args.Get(0).([]model.CompanyUser)
	return ms, args.Error(1)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	args := m.Called(ctx, q)
	items, _ := args.Get(0).([]model.Product)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *ProductRepoMock) FindByID(ctx context.Context, id string) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) FindBySKU(ctx context.Context, sku string) (model.Product, error) {
	args := m.Called(ctx, sku)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) ListLowStock(ctx context.Context, supplierCompanyID *string) ([]model.Product, error) {
	args := m.Called(ctx, supplierCompanyID)
	items, _ := args.Get(0).([]model.Product)
	return items, args.Error(1)
}

func (m *ProductRepoMock) Create(ctx context.Context, p model.Product) (model.Product, error) {
	args := m.Called(ctx, p)
	created, _ := args.Get(0).(model.Product)
	return created, args.Error(1)
}

func (m *ProductRepoMock) Update(ctx context.Context, p model.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *ProductRepoMock) Deactivate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type CategoryRepoMock struct{ mock.Mock }

func (m *CategoryRepoMock) ListActive(ctx context.Context) ([]model.Category, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]model.Category)
	return items, args.Error(1)
}

func (m *CategoryRepoMock) FindBySlug(ctx context.Context, slug string) (model.Category, error) {
	args := m.Called(ctx, slug)
	c, _ := args.Get(0).(model.Category)
	return c, args.Error(1)
}

func (m *CategoryRepoMock) FindByID(ctx context.Context, id string) (model.Category, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(model.Category)
	return c, args.Error(1)
}

func (m *CategoryRepoMock) Create(ctx context.Context, c model.Category) (model.Category, error) {
	args := m.Called(ctx, c)
	created, _ := args.Get(0).(model.Category)
	return created, args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) SetStock(ctx context.Context, productID string, newStock int64, minStock *int64) error {
	args := m.Called(ctx, productID, newStock, minStock)
	return args.Error(0)
}

func (m *InventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID string, qty int64) (bool, error) {
	args := m.Called(ctx, productID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepoMock) IncreaseStock(ctx context.Context, productID string, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *InventoryRepoMock) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	args := m.Called(ctx, adj)
	return args.Error(0)
}

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) Create(ctx context.Context, o *model.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *OrderRepoMock) FindByID(ctx context.Context, id string) (model.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindByIDForUpdate(ctx context.Context, id string) (model.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) Update(ctx context.Context, o *model.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *OrderRepoMock) List(ctx context.Context, f repo.OrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	items, _ := args.Get(0).([]model.Order)
	return items, args.Get(1).(int64), args.Error(2)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type QuotationRepoMock struct{ mock.Mock }

func (m *QuotationRepoMock) Create(ctx context.Context, q *model.Quotation) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *QuotationRepoMock) FindByID(ctx context.Context, id string) (model.Quotation, error) {
	args := m.Called(ctx, id)
	q, _ := args.Get(0).(model.Quotation)
	return q, args.Error(1)
}

func (m *QuotationRepoMock) FindByIDForUpdate(ctx context.Context, id string) (model.Quotation, error) {
	args := m.Called(ctx, id)
	q, _ := args.Get(0).(model.Quotation)
	return q, args.Error(1)
}

func (m *QuotationRepoMock) Update(ctx context.Context, q *model.Quotation) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *QuotationRepoMock) List(ctx context.Context, f repo.QuotationListFilter) ([]model.Quotation, int64, error) {
	args := m.Called(ctx, f)
	items, _ := args.Get(0).([]model.Quotation)
	return items, args.Get(1).(int64), args.Error(2)
}

type QuotationItemRepoMock struct{ mock.Mock }

func (m *QuotationItemRepoMock) CreateBulk(ctx context.Context, quotationID string, items []model.QuotationItem) error {
	args := m.Called(ctx, quotationID, items)
	return args.Error(0)
}

func (m *QuotationItemRepoMock) ListByQuotationID(ctx context.Context, quotationID string) ([]model.QuotationItem, error) {
	args := m.Called(ctx, quotationID)
	items, _ := args.Get(0).([]model.QuotationItem)
	return items, args.Error(1)
}

type RefreshTokenRepoMock struct{ mock.Mock }

func (m *RefreshTokenRepoMock) Create(ctx context.Context, t *model.RefreshToken) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *RefreshTokenRepoMock) FindByTokenHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	args := m.Called(ctx, hash)
	t, _ := args.Get(0).(*model.RefreshToken)
	return t, args.Error(1)
}

func (m *RefreshTokenRepoMock) MarkUsed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *RefreshTokenRepoMock) DeleteAllByUserID(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *RefreshTokenRepoMock) DeleteByID(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

func (m *AuditRepoMock) ListByResource(ctx context.Context, resourceType model.AuditResourceType, resourceID string) ([]model.AuditLog, error) {
	args := m.Called(ctx, resourceType, resourceID)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

// =====================
// その他の依存
// =====================

type EventPublisherMock struct{ mock.Mock }

func (m *EventPublisherMock) Publish(ctx context.Context, eventType string, key string, payload any) error {
	args := m.Called(ctx, eventType, key, payload)
	return args.Error(0)
}

type CatalogMock struct{ mock.Mock }

func (m *CatalogMock) Bump(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	if assert.True(t, ok, "expected HTTPError, got %v", err) {
		assert.Equal(t, status, he.Status)
	}
}

// ユーザーと所属をloadActorに返す
func expectActor(r *TxReposMock, userID string, role model.Role, companyIDs ...string) {
	r.users.On("FindByID", mock.Anything, userID).Return(&model.User{ID: userID, Role: role, IsActive: true}, nil)

	members := make([]model.CompanyUser, 0, len(companyIDs))
	for _, id := range companyIDs {
		members = append(members, model.CompanyUser{CompanyID: id, UserID: userID, Role: model.CompanyRoleEmployee, IsActive: true})
	}
	r.companies.On("ListMemberships", mock.Anything, userID).Return(members, nil)
}
