package validator

import (
	"context"
	"net/http"
	"testing"

	"tigu/internal/domain/model"
	repo "tigu/internal/repository"
	"tigu/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers struct {
	repo.UserRepository
	byEmail map[string]*model.User
}

func (s stubUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, repo.ErrUserNotFound
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok, "expected HTTPError, got %v", err)
	return he.Status
}

func validRegister() usecase.RegisterInput {
	return usecase.RegisterInput{
		Email:       "buyer@example.com",
		Password:    "password123",
		FullName:    "Buyer",
		CompanyName: "Buyer Co",
		CompanyType: "buyer",
	}
}

func TestRequestValidator_UsesJSONFieldNames(t *testing.T) {
	rv := NewRequestValidator()

	err := rv.Validate(usecase.CreateOrderInput{
		BuyerCompanyID:    "b",
		SupplierCompanyID: "s",
		Items:             []usecase.OrderItemInput{{ProductID: "p", Quantity: 0}},
	})
	require.Error(t, err)

	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, he.Status)
	assert.Contains(t, he.Message, "items[0].quantity")
}

func TestRequestValidator_OK(t *testing.T) {
	rv := NewRequestValidator()
	assert.NoError(t, rv.Validate(validRegister()))
}

func TestAuthValidator_Register(t *testing.T) {
	users := stubUsers{byEmail: map[string]*model.User{
		"taken@example.com": {ID: "u1", Email: "taken@example.com"},
	}}
	v := NewAuthValidator(users, NewRequestValidator())
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		assert.NoError(t, v.ValidateRegister(ctx, validRegister()))
	})

	t.Run("short password", func(t *testing.T) {
		in := validRegister()
		in.Password = "short"
		assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, v.ValidateRegister(ctx, in)))
	})

	t.Run("bad company type", func(t *testing.T) {
		in := validRegister()
		in.CompanyType = "retailer"
		assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, v.ValidateRegister(ctx, in)))
	})

	t.Run("email taken", func(t *testing.T) {
		in := validRegister()
		in.Email = "taken@example.com"
		assert.Equal(t, http.StatusConflict, statusOf(t, v.ValidateRegister(ctx, in)))
	})
}

func TestAuthValidator_LoginAndRefresh(t *testing.T) {
	v := NewAuthValidator(stubUsers{}, NewRequestValidator())
	ctx := context.Background()

	assert.NoError(t, v.ValidateLogin(ctx, "a@example.com", "x"))
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, v.ValidateLogin(ctx, "not-an-email", "x")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, v.ValidateRefresh(ctx, "  ")))
}

func TestAuthValidator_ChangePasswordAndForceLogout(t *testing.T) {
	v := NewAuthValidator(stubUsers{}, NewRequestValidator())
	ctx := context.Background()

	assert.NoError(t, v.ValidateChangePassword(ctx, "oldpassword", "newpassword"))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, v.ValidateChangePassword(ctx, "samepassword", "samepassword")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, v.ValidateChangePassword(ctx, "oldpassword", "short")))

	assert.NoError(t, v.ValidateForceLogout(ctx, "5b0c4a3e-1f1d-4a55-9d55-2f4c1c7f6f10"))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, v.ValidateForceLogout(ctx, "42")))
}
