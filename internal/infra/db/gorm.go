package db

import (
	"fmt"
	"log/slog"
	"time"

	"tigu/internal/config"
	"tigu/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		//一意制約違反を gorm.ErrDuplicatedKey に変換
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return gdb, nil
}

// Models はマイグレーション対象のモデル一覧。
func Models() []any {
	return []any{
		&model.User{},
		&model.Company{},
		&model.CompanyUser{},
		&model.Category{},
		&model.Product{},
		&model.InventoryAdjustment{},
		&model.Order{},
		&model.OrderItem{},
		&model.Quotation{},
		&model.QuotationItem{},
		&model.RefreshToken{},
		&model.AuditLog{},
	}
}

// Migrate はテーブルを作成・更新する。
func Migrate(gdb *gorm.DB, log *slog.Logger) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("database migrated", slog.Int("models", len(Models())))
	return nil
}
