package middleware

import (
	"net/http"
	"strings"

	"tigu/internal/auth"

	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // string
	CtxUserRoleKey     = "user_role"     // string
	CtxTokenVersionKey = "token_version" // int
)

// JWTを検証してclaimsを返す
type TokenParser interface {
	Parse(raw string) (auth.Claims, error)
}

// bearerAuth用のJWT検証ミドルウェア。
func AuthJWT(parser TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//Bearer形式か確認してtokenを抜く
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//署名・期限・sub/role/tvを検証
			claims, err := parser.Parse(rawToken)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxUserIDKey, claims.UserID)
			c.Set(CtxUserRoleKey, string(claims.Role))
			c.Set(CtxTokenVersionKey, claims.TokenVersion)

			return next(c)
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}
