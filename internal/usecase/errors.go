package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"tigu/internal/domain/model"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 400
func badRequest(msg string) error { return NewHTTPError(http.StatusBadRequest, msg) }

// 422 リクエスト形式
func unprocessable(msg string) error { return NewHTTPError(http.StatusUnprocessableEntity, msg) }

func unauthorized() error { return NewHTTPError(http.StatusUnauthorized, "unauthorized") }

func forbidden(msg string) error { return NewHTTPError(http.StatusForbidden, msg) }

func notFound(msg string) error { return NewHTTPError(http.StatusNotFound, msg) }

// 409 email/SKU/slug重複
func conflict(msg string) error { return NewHTTPError(http.StatusConflict, msg) }

// 500は中身をログに残してクライアントには返さない
func internalError(log *slog.Logger, op string, err error) error {
	log.Error(op+" failed", slog.Any("err", err))
	return NewHTTPError(http.StatusInternalServerError, "internal error")
}

// modelの遷移エラーを400に寄せる
func transitionError(err error, msg string) error {
	switch {
	case errors.Is(err, model.ErrRefundRequiresPayment):
		return badRequest("Refund requires a paid order")
	case errors.Is(err, model.ErrInvalidTransition):
		return badRequest(msg)
	}
	return err
}

// WithinTxから返ったエラーがHTTPErrorでなければ500にする
func txError(log *slog.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsHTTPError(err); ok {
		return err
	}
	return internalError(log, op, err)
}
