package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tigu/internal/auth"
	"tigu/internal/domain/model"
	repo "tigu/internal/repository"

	"github.com/google/uuid"
)

// usecaseがValidatorInterfaceに依存する約束
type AuthValidator interface {
	ValidateRegister(ctx context.Context, in RegisterInput) error
	ValidateLogin(ctx context.Context, email string, password string) error
	ValidateRefresh(ctx context.Context, refreshToken string) error
	ValidateChangePassword(ctx context.Context, current string, next string) error
	ValidateForceLogout(ctx context.Context, targetUserID string) error
}

// bcryptのハッシュ化と照合
type PasswordService interface {
	auth.PasswordHasher
	auth.PasswordVerifier
}

type AuthUsecase struct {
	tx         repo.TransactionManager
	users      repo.UserRepository
	rtRepo     repo.RefreshTokenRepository
	validator  AuthValidator
	passwords  PasswordService
	issuer     auth.AccessTokenIssuer
	clock      auth.Clock
	refreshTTL time.Duration
	log        *slog.Logger
}

func NewAuthUsecase(
	tx repo.TransactionManager,
	users repo.UserRepository,
	rtRepo repo.RefreshTokenRepository,
	validator AuthValidator,
	passwords PasswordService,
	issuer auth.AccessTokenIssuer,
	clock auth.Clock,
	refreshTTL time.Duration,
	log *slog.Logger,
) *AuthUsecase {
	return &AuthUsecase{
		tx:         tx,
		users:      users,
		rtRepo:     rtRepo,
		validator:  validator,
		passwords:  passwords,
		issuer:     issuer,
		clock:      clock,
		refreshTTL: refreshTTL,
		log:        log,
	}
}

type UserSummary struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	FullName         string  `json:"full_name"`
	DefaultCompanyID *string `json:"default_company_id"`
}

type TokenOutput struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	User         UserSummary `json:"user"`
}

type MembershipOutput struct {
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
}

type UserOutput struct {
	ID                string             `json:"id"`
	Email             string             `json:"email"`
	FullName          string             `json:"full_name"`
	Phone             *string            `json:"phone"`
	Role              string             `json:"role"`
	IsActive          bool               `json:"is_active"`
	DefaultCompanyID  *string            `json:"default_company_id"`
	LastLoginAt       *time.Time         `json:"last_login_at"`
	PasswordChangedAt *time.Time         `json:"password_changed_at"`
	CreatedAt         time.Time          `json:"created_at"`
	Companies         []MembershipOutput `json:"companies"`
}

type ForceLogoutOutput struct {
	UserID          string `json:"user_id"`
	NewTokenVersion int    `json:"new_token_version"`
}

type RegisterInput struct {
	Email           string  `json:"email" validate:"required,email,max=255"`
	Password        string  `json:"password" validate:"required,min=8,max=128"`
	FullName        string  `json:"full_name" validate:"required,max=255"`
	Phone           *string `json:"phone" validate:"omitempty,max=50"`
	CompanyName     string  `json:"company_name" validate:"required,max=255"`
	CompanyType     string  `json:"company_type" validate:"required,oneof=supplier buyer both"`
	BusinessLicense *string `json:"business_license" validate:"omitempty,max=100"`
	TaxNumber       *string `json:"tax_number" validate:"omitempty,max=50"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileInput struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,max=50"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// 会社・ユーザー・所属を1つのtxで作る
func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput, userAgent string, ip string) (TokenOutput, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := u.validator.ValidateRegister(ctx, in); err != nil {
		return TokenOutput{}, err
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := u.passwords.Hash(in.Password)
	if err != nil {
		return TokenOutput{}, internalError(u.log, "hash password", err)
	}

	var out TokenOutput
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := u.clock.Now()

		company := &model.Company{
			ID:              uuid.NewString(),
			Code:            "COMP" + now.Format("20060102") + randomSuffix(),
			Name:            model.NewLocalizedText(strings.TrimSpace(in.CompanyName)),
			Type:            model.CompanyType(in.CompanyType),
			BusinessLicense: in.BusinessLicense,
			TaxNumber:       in.TaxNumber,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := r.Companies().Create(ctx, company); err != nil {
			return fmt.Errorf("create company: %w", err)
		}

		user := &model.User{
			ID:               uuid.NewString(),
			Email:            in.Email,
			PasswordHash:     pwHash,
			FullName:         strings.TrimSpace(in.FullName),
			Phone:            in.Phone,
			Role:             model.RoleUser,
			IsActive:         true,
			DefaultCompanyID: &company.ID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := r.Users().Create(ctx, user); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return conflict("Email already registered")
			}
			return fmt.Errorf("create user: %w", err)
		}

		if err := r.Companies().AddMember(ctx, &model.CompanyUser{
			ID:        uuid.NewString(),
			CompanyID: company.ID,
			UserID:    user.ID,
			Role:      model.CompanyRoleAdmin,
			IsActive:  true,
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("add member: %w", err)
		}

		out, err = u.issueTokens(ctx, r.RefreshTokens(), user, userAgent, ip, now)
		return err
	})
	if err != nil {
		return TokenOutput{}, txError(u.log, "register", err)
	}

	u.log.Info("user registered", slog.String("user_id", out.User.ID))
	return out, nil
}

// 失敗回数を保存するのでtxは使わない
func (u *AuthUsecase) Login(ctx context.Context, in LoginInput, userAgent string, ip string) (TokenOutput, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := u.validator.ValidateLogin(ctx, email, in.Password); err != nil {
		return TokenOutput{}, err
	}

	//ユーザー取得
	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, repo.ErrUserNotFound) {
		return TokenOutput{}, NewHTTPError(http.StatusUnauthorized, "Incorrect email or password")
	}
	if err != nil {
		return TokenOutput{}, internalError(u.log, "find user", err)
	}

	now := u.clock.Now()
	if user.IsLocked(now) {
		return TokenOutput{}, NewHTTPError(http.StatusLocked, "Account is locked. Try again later")
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return TokenOutput{}, forbidden("Inactive user")
	}

	//パスワード照合（bcrypt）
	if !u.passwords.Verify(in.Password, user.PasswordHash) {
		user.RecordFailedLogin(now)
		if err := u.users.Update(ctx, user); err != nil {
			return TokenOutput{}, internalError(u.log, "record failed login", err)
		}
		if user.IsLocked(now) {
			u.log.Warn("account locked", slog.String("user_id", user.ID), slog.String("ip", ip))
		}
		return TokenOutput{}, NewHTTPError(http.StatusUnauthorized, "Incorrect email or password")
	}

	//last_login更新
	user.RecordSuccessfulLogin(now)
	if err := u.users.Update(ctx, user); err != nil {
		return TokenOutput{}, internalError(u.log, "update last login", err)
	}

	out, err := u.issueTokens(ctx, u.rtRepo, user, userAgent, ip, now)
	if err != nil {
		return TokenOutput{}, internalError(u.log, "issue tokens", err)
	}
	return out, nil
}

// access token + refresh token（DBにはhash保存）
func (u *AuthUsecase) issueTokens(ctx context.Context, rtRepo repo.RefreshTokenRepository, user *model.User, userAgent, ip string, now time.Time) (TokenOutput, error) {
	accessToken, exp, err := u.issuer.Issue(user.ID, user.Role, user.TokenVersion, now)
	if err != nil {
		return TokenOutput{}, fmt.Errorf("issue access token: %w", err)
	}

	refreshPlain, refreshHash, err := auth.NewRefreshToken()
	if err != nil {
		return TokenOutput{}, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := rtRepo.Create(ctx, &model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: refreshHash,
		UserAgent: userAgent,
		IPAddress: ip,
		ExpiresAt: now.Add(u.refreshTTL),
		CreatedAt: now,
	}); err != nil {
		return TokenOutput{}, fmt.Errorf("save refresh token: %w", err)
	}

	return TokenOutput{
		AccessToken:  accessToken,
		RefreshToken: refreshPlain,
		TokenType:    "bearer",
		ExpiresIn:    int(exp.Sub(now).Seconds()),
		User: UserSummary{
			ID:               user.ID,
			Email:            user.Email,
			FullName:         user.FullName,
			DefaultCompanyID: user.DefaultCompanyID,
		},
	}, nil
}

func (u *AuthUsecase) Refresh(ctx context.Context, refreshTokenPlain string, userAgent string, ip string) (TokenOutput, error) {
	//入力検証
	if err := u.validator.ValidateRefresh(ctx, refreshTokenPlain); err != nil {
		return TokenOutput{}, err
	}

	//DB照合
	rt, err := u.rtRepo.FindByTokenHash(ctx, auth.HashToken(refreshTokenPlain))
	if errors.Is(err, repo.ErrRefreshTokenNotFound) {
		return TokenOutput{}, unauthorized()
	}
	if err != nil {
		return TokenOutput{}, internalError(u.log, "find refresh token", err)
	}

	now := u.clock.Now()

	//期限切れ
	if rt.ExpiresAt.Before(now) {
		_ = u.rtRepo.DeleteByID(ctx, rt.ID)
		return TokenOutput{}, unauthorized()
	}

	//revoked
	if rt.RevokedAt != nil {
		return TokenOutput{}, unauthorized()
	}

	//used済みが来たら replay → 全削除
	if rt.UsedAt != nil {
		u.log.Warn("refresh token reuse detected", slog.String("user_id", rt.UserID), slog.String("ip", ip))
		if err := u.rtRepo.DeleteAllByUserID(ctx, rt.UserID); err != nil {
			return TokenOutput{}, internalError(u.log, "revoke refresh tokens", err)
		}
		return TokenOutput{}, unauthorized()
	}

	//user_agent違い（再認証扱い。全削除）
	if userAgent != "" && rt.UserAgent != "" && userAgent != rt.UserAgent {
		_ = u.rtRepo.DeleteAllByUserID(ctx, rt.UserID)
		return TokenOutput{}, unauthorized()
	}

	//user取得
	user, err := u.users.FindByID(ctx, rt.UserID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return TokenOutput{}, unauthorized()
	}
	if err != nil {
		return TokenOutput{}, internalError(u.log, "find user", err)
	}
	if !user.IsActive {
		return TokenOutput{}, forbidden("Inactive user")
	}

	//旧tokenをusedにする（同時に使われたら片方だけ通る）
	if err := u.rtRepo.MarkUsed(ctx, rt.ID); err != nil {
		_ = u.rtRepo.DeleteAllByUserID(ctx, rt.UserID)
		return TokenOutput{}, unauthorized()
	}

	out, err := u.issueTokens(ctx, u.rtRepo, user, userAgent, ip, now)
	if err != nil {
		return TokenOutput{}, internalError(u.log, "issue tokens", err)
	}
	return out, nil
}

func (u *AuthUsecase) Logout(ctx context.Context, refreshTokenPlain string) (MessageOutput, error) {
	if err := u.validator.ValidateRefresh(ctx, refreshTokenPlain); err != nil {
		return MessageOutput{}, err
	}

	rt, err := u.rtRepo.FindByTokenHash(ctx, auth.HashToken(refreshTokenPlain))
	if errors.Is(err, repo.ErrRefreshTokenNotFound) {
		return MessageOutput{}, unauthorized()
	}
	if err != nil {
		return MessageOutput{}, internalError(u.log, "find refresh token", err)
	}

	//refreshを削除（失効）
	if err := u.rtRepo.DeleteByID(ctx, rt.ID); err != nil && !errors.Is(err, repo.ErrRefreshTokenNotFound) {
		return MessageOutput{}, internalError(u.log, "delete refresh token", err)
	}

	return MessageOutput{Message: "Successfully logged out"}, nil
}

// 全端末ログアウト（token_version+1 で発行済みaccess tokenも無効）
func (u *AuthUsecase) LogoutAll(ctx context.Context, userID string) (MessageOutput, error) {
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Users().IncrementTokenVersion(ctx, userID); err != nil {
			if errors.Is(err, repo.ErrUserNotFound) {
				return unauthorized()
			}
			return fmt.Errorf("increment token version: %w", err)
		}
		if err := r.RefreshTokens().DeleteAllByUserID(ctx, userID); err != nil {
			return fmt.Errorf("delete refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return MessageOutput{}, txError(u.log, "logout all", err)
	}
	return MessageOutput{Message: "Logged out from all devices"}, nil
}

func (u *AuthUsecase) Profile(ctx context.Context, userID string) (UserOutput, error) {
	var out UserOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		user, err := r.Users().FindByID(ctx, userID)
		if errors.Is(err, repo.ErrUserNotFound) {
			return unauthorized()
		}
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		members, err := r.Companies().ListMemberships(ctx, userID)
		if err != nil {
			return fmt.Errorf("list memberships: %w", err)
		}
		out = toUserOutput(user, members)
		return nil
	})
	if err != nil {
		return UserOutput{}, txError(u.log, "profile", err)
	}
	return out, nil
}

func (u *AuthUsecase) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (UserOutput, error) {
	if in.FullName != nil && strings.TrimSpace(*in.FullName) == "" {
		return UserOutput{}, badRequest("full_name must not be empty")
	}

	var out UserOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		user, err := r.Users().FindByID(ctx, userID)
		if errors.Is(err, repo.ErrUserNotFound) {
			return unauthorized()
		}
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		if in.FullName != nil {
			user.FullName = strings.TrimSpace(*in.FullName)
		}
		if in.Phone != nil {
			user.Phone = trimPtr(in.Phone)
		}
		user.UpdatedAt = u.clock.Now()

		if err := r.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		members, err := r.Companies().ListMemberships(ctx, userID)
		if err != nil {
			return fmt.Errorf("list memberships: %w", err)
		}
		out = toUserOutput(user, members)
		return nil
	})
	if err != nil {
		return UserOutput{}, txError(u.log, "update profile", err)
	}
	return out, nil
}

// パスワード変更後は既存のトークンをすべて無効にする
func (u *AuthUsecase) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) (MessageOutput, error) {
	if err := u.validator.ValidateChangePassword(ctx, in.CurrentPassword, in.NewPassword); err != nil {
		return MessageOutput{}, err
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		user, err := r.Users().FindByID(ctx, userID)
		if errors.Is(err, repo.ErrUserNotFound) {
			return unauthorized()
		}
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		if !u.passwords.Verify(in.CurrentPassword, user.PasswordHash) {
			return badRequest("Incorrect current password")
		}

		hashed, err := u.passwords.Hash(in.NewPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		now := u.clock.Now()
		user.PasswordHash = hashed
		user.PasswordChangedAt = &now
		user.TokenVersion++
		user.UpdatedAt = now

		if err := r.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if err := r.RefreshTokens().DeleteAllByUserID(ctx, userID); err != nil {
			return fmt.Errorf("delete refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return MessageOutput{}, txError(u.log, "change password", err)
	}
	return MessageOutput{Message: "Password updated successfully"}, nil
}

func (u *AuthUsecase) ForceLogout(ctx context.Context, actorUserID string, targetUserID string) (ForceLogoutOutput, error) {
	if err := u.validator.ValidateForceLogout(ctx, targetUserID); err != nil {
		return ForceLogoutOutput{}, err
	}

	var out ForceLogoutOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Users().FindByID(ctx, targetUserID)
		if errors.Is(err, repo.ErrUserNotFound) {
			return notFound("User not found")
		}
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		if err := r.Users().IncrementTokenVersion(ctx, targetUserID); err != nil {
			return fmt.Errorf("increment token version: %w", err)
		}
		if err := r.RefreshTokens().DeleteAllByUserID(ctx, targetUserID); err != nil {
			return fmt.Errorf("delete refresh tokens: %w", err)
		}

		//更新後を取得してnew_token_versionを返す
		after, err := r.Users().FindByID(ctx, targetUserID)
		if err != nil {
			return fmt.Errorf("reload user: %w", err)
		}

		if err := writeAudit(ctx, r, actorUserID, model.AuditActionForceLogout, model.AuditResourceUser, targetUserID,
			map[string]int{"token_version": before.TokenVersion},
			map[string]int{"token_version": after.TokenVersion},
			u.clock.Now(),
		); err != nil {
			return err
		}

		out = ForceLogoutOutput{UserID: after.ID, NewTokenVersion: after.TokenVersion}
		return nil
	})
	if err != nil {
		return ForceLogoutOutput{}, txError(u.log, "force logout", err)
	}

	u.log.Info("user force logged out", slog.String("user_id", targetUserID), slog.String("actor", actorUserID))
	return out, nil
}

func toUserOutput(u *model.User, members []model.CompanyUser) UserOutput {
	companies := make([]MembershipOutput, 0, len(members))
	for _, m := range members {
		companies = append(companies, MembershipOutput{CompanyID: m.CompanyID, Role: string(m.Role)})
	}
	return UserOutput{
		ID:                u.ID,
		Email:             u.Email,
		FullName:          u.FullName,
		Phone:             u.Phone,
		Role:              string(u.Role),
		IsActive:          u.IsActive,
		DefaultCompanyID:  u.DefaultCompanyID,
		LastLoginAt:       u.LastLoginAt,
		PasswordChangedAt: u.PasswordChangedAt,
		CreatedAt:         u.CreatedAt,
		Companies:         companies,
	}
}
