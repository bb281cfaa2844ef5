package handler

import (
	"net/http"
	"strconv"
	"time"

	"tigu/internal/middleware"
	"tigu/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// bodyの形が合わない・タグ違反は422
func bindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return usecase.NewHTTPError(http.StatusUnprocessableEntity, "invalid body")
	}
	if err := c.Validate(dst); err != nil {
		return err
	}
	return nil
}

//middleware.AuthJWT が c.Set("user_id", string) した値を取り出す

func getUserIDFromContext(c echo.Context) (string, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// 未指定ならdef
func queryInt(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, usecase.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return n, nil
}

// RFC3339 か YYYY-MM-DD
func queryTime(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, usecase.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &t, nil
}
