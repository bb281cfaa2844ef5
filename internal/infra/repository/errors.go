package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// unique_violation
const pgUniqueViolation = "23505"

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// 一意制約違反か（TranslateError有効時はErrDuplicatedKey、無効時はドライバのエラー）
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IDが空ならuuidを振る
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// ページングの既定値
func normalizePage(page, limit, maxLimit, defLimit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > maxLimit {
		limit = defLimit
	}
	return page, limit
}
