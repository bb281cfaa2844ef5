package repository

import (
	"context"

	repo "tigu/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	users          repo.UserRepository
	companies      repo.CompanyRepository
	products       repo.ProductRepository
	inventory      repo.InventoryRepository
	orders         repo.OrderRepository
	orderItems     repo.OrderItemRepository
	quotations     repo.QuotationRepository
	quotationItems repo.QuotationItemRepository
	refreshTokens  repo.RefreshTokenRepository
	auditLogs      repo.AuditLogRepository
}

func (r *txReposGorm) Users() repo.UserRepository                   { return r.users }
func (r *txReposGorm) Companies() repo.CompanyRepository            { return r.companies }
func (r *txReposGorm) Products() repo.ProductRepository             { return r.products }
func (r *txReposGorm) Inventory() repo.InventoryRepository          { return r.inventory }
func (r *txReposGorm) Orders() repo.OrderRepository                 { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository         { return r.orderItems }
func (r *txReposGorm) Quotations() repo.QuotationRepository         { return r.quotations }
func (r *txReposGorm) QuotationItems() repo.QuotationItemRepository { return r.quotationItems }
func (r *txReposGorm) RefreshTokens() repo.RefreshTokenRepository   { return r.refreshTokens }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository           { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		return fn(newTxRepos(tx))
	})
}

func newTxRepos(db *gorm.DB) *txReposGorm {
	return &txReposGorm{
		users:          NewUserGormRepository(db),
		companies:      NewCompanyGormRepository(db),
		products:       NewProductGormRepository(db),
		inventory:      NewInventoryGormRepository(db),
		orders:         NewOrderGormRepository(db),
		orderItems:     NewOrderItemGormRepository(db),
		quotations:     NewQuotationGormRepository(db),
		quotationItems: NewQuotationItemGormRepository(db),
		refreshTokens:  NewRefreshTokenRepository(db),
		auditLogs:      NewAuditLogGormRepository(db),
	}
}
