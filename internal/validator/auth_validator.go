package validator

import (
	"context"
	"net/http"
	"strings"

	repo "tigu/internal/repository"
	"tigu/internal/usecase"

	"github.com/google/uuid"
)

type authValidator struct {
	users repo.UserRepository
	req   *RequestValidator
}

// Usecaseは interface を依存注入
func NewAuthValidator(users repo.UserRepository, req *RequestValidator) usecase.AuthValidator {
	return &authValidator{users: users, req: req}
}

// サインアップの入力を検証
func (v *authValidator) ValidateRegister(ctx context.Context, in usecase.RegisterInput) error {
	if err := v.req.Validate(in); err != nil {
		return err
	}

	// email重複チェック（DBが必要）
	u, err := v.users.FindByEmail(ctx, strings.TrimSpace(in.Email))
	if err == nil && u != nil {
		return usecase.NewHTTPError(http.StatusConflict, "Email already registered")
	}

	return nil
}

// ログインの入力を検証
func (v *authValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	return v.req.Validate(usecase.LoginInput{Email: strings.TrimSpace(email), Password: password})
}

// refresh 入力を検証
func (v *authValidator) ValidateRefresh(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return usecase.NewHTTPError(http.StatusUnprocessableEntity, "refresh_token is required")
	}
	return nil
}

// パスワード変更の入力を検証
func (v *authValidator) ValidateChangePassword(ctx context.Context, current string, next string) error {
	if err := v.req.Validate(usecase.ChangePasswordInput{CurrentPassword: current, NewPassword: next}); err != nil {
		return err
	}
	if current == next {
		return usecase.NewHTTPError(http.StatusBadRequest, "New password must differ from the current password")
	}
	return nil
}

// 強制ログアウトの入力を検証
func (v *authValidator) ValidateForceLogout(ctx context.Context, targetUserID string) error {
	if _, err := uuid.Parse(targetUserID); err != nil {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return nil
}
