package handler

import (
	"net/http"
	"time"

	"tigu/internal/usecase"

	"github.com/labstack/echo/v4"
)

const refreshCookieName = "refresh"

type AuthHandler struct {
	uc           *usecase.AuthUsecase
	refreshTTL   time.Duration // refresh cookie の有効期限
	cookieSecure bool
}

// DIコンストラクタ
func NewAuthHandler(uc *usecase.AuthUsecase, refreshTTL time.Duration, cookieSecure bool) *AuthHandler {
	return &AuthHandler{uc: uc, refreshTTL: refreshTTL, cookieSecure: cookieSecure}
}

// /auth/refresh と /auth/logout のリクエストボディ。
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo, authed ...echo.MiddlewareFunc) {
	g := e.Group("/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout)

	me := e.Group("/auth", authed...)
	me.POST("/logout-all", h.LogoutAll)
	me.GET("/me", h.Profile)
	me.PUT("/me", h.UpdateProfile)
	me.POST("/change-password", h.ChangePassword)
}

// RegisterはPOST /auth/registerのハンドラ
func (h *AuthHandler) Register(c echo.Context) error {
	var req usecase.RegisterInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Register(c.Request().Context(), req, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		return writeError(c, err)
	}

	h.setRefreshCookie(c, out.RefreshToken)
	return c.JSON(http.StatusCreated, out)
}

// LoginはPOST /auth/login のハンドラ。
func (h *AuthHandler) Login(c echo.Context) error {
	var req usecase.LoginInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid body"})
	}

	// User-Agentを取得（refreshtokenに紐付ける）
	out, err := h.uc.Login(c.Request().Context(), req, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		return writeError(c, err)
	}

	h.setRefreshCookie(c, out.RefreshToken)
	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	out, err := h.uc.Refresh(c.Request().Context(), h.refreshToken(c), c.Request().UserAgent(), c.RealIP())
	if err != nil {
		h.clearRefreshCookie(c)
		return writeError(c, err)
	}

	h.setRefreshCookie(c, out.RefreshToken)
	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	out, err := h.uc.Logout(c.Request().Context(), h.refreshToken(c))
	h.clearRefreshCookie(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.LogoutAll(c.Request().Context(), userID)
	h.clearRefreshCookie(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) Profile(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.Profile(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req usecase.UpdateProfileInput
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UpdateProfile(c.Request().Context(), userID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req usecase.ChangePasswordInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.ChangePassword(c.Request().Context(), userID, req)
	if err != nil {
		return writeError(c, err)
	}
	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, out)
}

// bodyを優先し、無ければcookie
func (h *AuthHandler) refreshToken(c echo.Context) string {
	var req refreshRequest
	if err := c.Bind(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if ck, err := c.Cookie(refreshCookieName); err == nil {
		return ck.Value
	}
	return ""
}

// refreshtoken をCookieにセット。
func (h *AuthHandler) setRefreshCookie(c echo.Context, plainRefresh string) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    plainRefresh,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(h.refreshTTL),
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
