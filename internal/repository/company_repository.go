package repository

import (
	"context"

	"tigu/internal/domain/model"
)

// 会社と所属の保存・取得
type CompanyRepository interface {
	Create(ctx context.Context, company *model.Company) error
	FindByID(ctx context.Context, companyID string) (model.Company, error)

	AddMember(ctx context.Context, member *model.CompanyUser) error
	// 有効な所属だけ返す
	ListMemberships(ctx context.Context, userID string) ([]model.CompanyUser, error)
}
