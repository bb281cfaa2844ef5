package server

import (
	"net/http"

	"tigu/internal/handler"
	"tigu/internal/middleware"
	repo "tigu/internal/repository"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	Order        *handler.OrderHandler
	Quotation    *handler.QuotationHandler
	AdminUser    *handler.AdminUserHandler
}

func RegisterRoutes(e *echo.Echo, h Handlers, parser middleware.TokenParser, users repo.UserRepository) {
	// JWT必須 + token_version一致
	authed := []echo.MiddlewareFunc{
		middleware.AuthJWT(parser),
		middleware.TokenVersionGuard(users),
	}
	// + ADMIN限定
	admin := append(append([]echo.MiddlewareFunc{}, authed...), middleware.AdminRoleGuard())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h.Auth.RegisterRoutes(e, authed...)
	h.Product.RegisterRoutes(e)
	h.AdminProduct.RegisterRoutes(e, authed, admin)
	h.Quotation.RegisterRoutes(e, authed...)
	h.Order.RegisterRoutes(e, authed...)
	h.AdminUser.RegisterRoutes(e, admin...)
}
