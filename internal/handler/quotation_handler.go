package handler

import (
	"net/http"

	"tigu/internal/usecase"

	"github.com/labstack/echo/v4"
)

type QuotationHandler struct {
	uc *usecase.QuotationUsecase
}

func NewQuotationHandler(uc *usecase.QuotationUsecase) *QuotationHandler {
	return &QuotationHandler{uc: uc}
}

func (h *QuotationHandler) RegisterRoutes(e *echo.Echo, authed ...echo.MiddlewareFunc) {
	g := e.Group("/orders/quotations", authed...)

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.PUT("/:id", h.update)
	g.POST("/:id/send", h.send)
	g.POST("/:id/accept", h.accept)
	g.POST("/:id/reject", h.reject)
}

func (h *QuotationHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req usecase.CreateQuotationInput
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.CreateQuotation(c.Request().Context(), userID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *QuotationHandler) list(c echo.Context) error {
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

	out, err := h.uc.ListQuotations(c.Request().Context(), userID, usecase.ListQuotationsInput{
		Page:   page,
		Limit:  limit,
		Status: c.QueryParam("status"),
		Role:   c.QueryParam("role"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *QuotationHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.GetQuotation(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *QuotationHandler) update(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req usecase.UpdateQuotationInput
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UpdateQuotation(c.Request().Context(), userID, c.Param("id"), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *QuotationHandler) send(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.SendQuotation(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *QuotationHandler) accept(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.AcceptQuotation(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *QuotationHandler) reject(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.RejectQuotation(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
