package repository

import (
	"context"

	"tigu/internal/domain/model"
)

type InventoryRepository interface {
	// 在庫の現在値を設定（minStockはnilなら変えない）
	SetStock(ctx context.Context, productID string, newStock int64, minStock *int64) error

	// 在庫が足りるときだけ減算
	DecreaseStockIfEnough(ctx context.Context, productID string, qty int64) (bool, error)

	// 在庫戻し（キャンセルなど）
	IncreaseStock(ctx context.Context, productID string, qty int64) error

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
