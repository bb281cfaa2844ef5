package handler

import (
	"net/http"

	"tigu/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, authed ...echo.MiddlewareFunc) {
	g := e.Group("/orders", authed...)

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/supplier", h.listSupplier)
	g.GET("/:id", h.detail)
	g.PUT("/:id", h.update)
	g.PUT("/:id/status", h.updateStatus)
	g.POST("/:id/cancel", h.cancel)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req usecase.CreateOrderInput
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.CreateOrder(c.Request().Context(), userID, req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	return h.listAs(c, c.QueryParam("role"))
}

// role=supplier の短縮
func (h *OrderHandler) listSupplier(c echo.Context) error {
	return h.listAs(c, "supplier")
}

func (h *OrderHandler) listAs(c echo.Context, role string) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	page, err := queryInt(c, "page", 1)
	if err != nil {
		return writeError(c, err)
	}
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return writeError(c, err)
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return writeError(c, err)
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.ListOrders(c.Request().Context(), userID, usecase.ListOrdersInput{
		Page:          page,
		Limit:         limit,
		Status:        c.QueryParam("status"),
		PaymentStatus: c.QueryParam("payment_status"),
		Role:          role,
		Q:             c.QueryParam("q"),
		From:          from,
		To:            to,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.GetOrder(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) update(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req usecase.UpdateOrderInput
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UpdateOrder(c.Request().Context(), userID, c.Param("id"), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) updateStatus(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req usecase.UpdateOrderStatusInput
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UpdateOrderStatus(c.Request().Context(), userID, c.Param("id"), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	//理由は任意（body無しでもよい）
	var req usecase.CancelOrderInput
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.CancelOrder(c.Request().Context(), userID, c.Param("id"), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
