package handler

import (
	"net/http"
	"strconv"

	"tigu/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// /products と /categories の公開API
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

// 公開商品のルートを登録
func (h *ProductHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/products", h.list)
	e.GET("/products/:id", h.detail)
	e.GET("/categories", h.listCategories)
	e.GET("/categories/:slug", h.categoryBySlug)
}

func (h *ProductHandler) list(c echo.Context) error {
	// page（default 1）
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return writeError(c, err)
	}

	// limit（default 20）
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return writeError(c, err)
	}

	var minPrice *decimal.Decimal
	if v := c.QueryParam("min_price"); v != "" {
		x, err := decimal.NewFromString(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid min_price"})
		}
		minPrice = &x
	}

	var maxPrice *decimal.Decimal
	if v := c.QueryParam("max_price"); v != "" {
		x, err := decimal.NewFromString(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid max_price"})
		}
		maxPrice = &x
	}

	inStock := false
	if v := c.QueryParam("in_stock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid in_stock"})
		}
		inStock = b
	}

	out, err := h.uc.ListProducts(c.Request().Context(), usecase.ListProductsInput{
		Page:              page,
		Limit:             limit,
		Q:                 c.QueryParam("q"),
		CategoryID:        c.QueryParam("category_id"),
		SupplierCompanyID: c.QueryParam("supplier_company_id"),
		MinPrice:          minPrice,
		MaxPrice:          maxPrice,
		InStock:           inStock,
		Sort:              c.QueryParam("sort"),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) detail(c echo.Context) error {
	p, err := h.uc.GetProduct(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) listCategories(c echo.Context) error {
	out, err := h.uc.ListCategories(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) categoryBySlug(c echo.Context) error {
	out, err := h.uc.GetCategoryBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
