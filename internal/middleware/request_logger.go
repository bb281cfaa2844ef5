package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				//ステータスを確定させる
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			logger.Info("request",
				slog.Int("status", res.Status),
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("remote", c.RealIP()),
				slog.String("duration", time.Since(start).String()),
				slog.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	}
}
