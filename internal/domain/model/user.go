package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ログイン失敗でロックするまでの回数と期間
const (
	MaxFailedLoginAttempts = 5
	LoginLockDuration      = 30 * time.Minute
)

type User struct {
	ID                  string     `gorm:"type:uuid;primaryKey" json:"id"`
	Email               string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash        string     `gorm:"column:password_hash;not null" json:"-"`
	FullName            string     `gorm:"type:varchar(255);not null" json:"full_name"`
	Phone               *string    `gorm:"type:varchar(50)" json:"phone"`
	Role                Role       `gorm:"type:varchar(20);not null;default:'USER'" json:"role"`
	TokenVersion        int        `gorm:"not null;default:0" json:"token_version"`
	IsActive            bool       `gorm:"not null;default:true" json:"is_active"`
	FailedLoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	PasswordChangedAt   *time.Time `json:"password_changed_at"`
	LastLoginAt         *time.Time `json:"last_login_at"`
	DefaultCompanyID    *string    `gorm:"type:uuid;index" json:"default_company_id"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ロック中か
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// 失敗回数+1、上限でロック
func (u *User) RecordFailedLogin(now time.Time) {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= MaxFailedLoginAttempts {
		until := now.Add(LoginLockDuration)
		u.LockedUntil = &until
	}
}

// ログイン成功時
func (u *User) RecordSuccessfulLogin(now time.Time) {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
}
