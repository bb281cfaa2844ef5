package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"tigu/internal/config"
	"tigu/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"
)

// echoの生成と共通ミドルウェア
func New(cfg config.Config, log *slog.Logger, v echo.Validator) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = v

	// /orders/ と /orders を同じに扱う
	e.Pre(echomw.RemoveTrailingSlash())

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(middleware.Metrics())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowCredentials: true,
	}))
	e.Use(middleware.SecureHeaders(cfg.IsProduction()))
	if cfg.RateLimitPerMinute > 0 {
		e.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	}

	return e
}

// ctxがキャンセルされたらgraceful shutdown
func Run(ctx context.Context, e *echo.Echo, cfg config.Config, log *slog.Logger) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      e,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		log.Info("shutting down http server")
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
