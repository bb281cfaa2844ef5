package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Users() UserRepository
	Companies() CompanyRepository
	Products() ProductRepository
	Inventory() InventoryRepository
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Quotations() QuotationRepository
	QuotationItems() QuotationItemRepository
	RefreshTokens() RefreshTokenRepository
	AuditLogs() AuditLogRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
