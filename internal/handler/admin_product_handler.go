package handler

import (
	"net/http"

	"tigu/internal/usecase"

	"github.com/labstack/echo/v4"
)

// SuccessResponse は { message: string } の形に寄せます。
type SuccessResponse struct {
	Message string `json:"message"`
}

// 商品・在庫の更新（供給側）とカテゴリ作成（ADMIN）をまとめる
type AdminProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewAdminProductHandler(uc *usecase.ProductUsecase) *AdminProductHandler {
	return &AdminProductHandler{uc: uc}
}

func (h *AdminProductHandler) RegisterRoutes(e *echo.Echo, authed []echo.MiddlewareFunc, admin []echo.MiddlewareFunc) {
	g := e.Group("/products", authed...)
	g.GET("/low-stock", h.lowStock)
	g.POST("", h.createProduct)
	g.PUT("/:id", h.updateProduct)
	g.DELETE("/:id", h.deleteProduct)
	g.PATCH("/:id/stock", h.updateStock)

	cat := e.Group("/categories", admin...)
	cat.POST("", h.createCategory)
}

func (h *AdminProductHandler) createProduct(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req usecase.CreateProductInput
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.CreateProduct(c.Request().Context(), userID, req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *AdminProductHandler) updateProduct(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req usecase.UpdateProductInput
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UpdateProduct(c.Request().Context(), userID, c.Param("id"), req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminProductHandler) deleteProduct(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	if err := h.uc.DeleteProduct(c.Request().Context(), userID, c.Param("id")); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "Product deleted successfully"})
}

func (h *AdminProductHandler) updateStock(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req usecase.UpdateStockInput
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UpdateStock(c.Request().Context(), userID, c.Param("id"), req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminProductHandler) lowStock(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.ListLowStock(c.Request().Context(), userID, c.QueryParam("supplier_company_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminProductHandler) createCategory(c echo.Context) error {
	var req usecase.CreateCategoryInput
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.CreateCategory(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}
