package model

import "time"

type CompanyType string

const (
	CompanyTypeSupplier CompanyType = "supplier"
	CompanyTypeBuyer    CompanyType = "buyer"
	CompanyTypeBoth     CompanyType = "both"
)

func (t CompanyType) Valid() bool {
	switch t {
	case CompanyTypeSupplier, CompanyTypeBuyer, CompanyTypeBoth:
		return true
	}
	return false
}

// 販売側になれるか
func (t CompanyType) CanSell() bool {
	return t == CompanyTypeSupplier || t == CompanyTypeBoth
}

// 購入側になれるか
func (t CompanyType) CanBuy() bool {
	return t == CompanyTypeBuyer || t == CompanyTypeBoth
}

type Company struct {
	ID              string        `gorm:"type:uuid;primaryKey" json:"id"`
	Code            string        `gorm:"column:company_code;type:varchar(50);uniqueIndex;not null" json:"company_code"`
	Name            LocalizedText `gorm:"column:company_name;serializer:json;not null" json:"company_name"`
	Type            CompanyType   `gorm:"column:company_type;type:varchar(20);not null" json:"company_type"`
	BusinessLicense *string       `gorm:"type:varchar(100)" json:"business_license"`
	TaxNumber       *string       `gorm:"type:varchar(50)" json:"tax_number"`
	IsVerified      bool          `gorm:"not null;default:false" json:"is_verified"`
	IsActive        bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type CompanyRole string

const (
	CompanyRoleAdmin    CompanyRole = "admin"
	CompanyRoleManager  CompanyRole = "manager"
	CompanyRoleEmployee CompanyRole = "employee"
)

// 会社とユーザーの所属
type CompanyUser struct {
	ID        string      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID string      `gorm:"type:uuid;not null;uniqueIndex:idx_company_user" json:"company_id"`
	UserID    string      `gorm:"type:uuid;not null;uniqueIndex:idx_company_user;index" json:"user_id"`
	Role      CompanyRole `gorm:"type:varchar(20);not null" json:"role"`
	IsActive  bool        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
}

func (CompanyUser) TableName() string {
	return "user_company_roles"
}
