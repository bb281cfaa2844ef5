package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tigu/internal/auth"
	"tigu/internal/config"
	"tigu/internal/handler"
	"tigu/internal/infra/cache"
	"tigu/internal/infra/db"
	"tigu/internal/infra/events"
	infraRepo "tigu/internal/infra/repository"
	"tigu/internal/server"
	"tigu/internal/usecase"
	"tigu/internal/validator"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

type eventPublisher interface {
	usecase.EventPublisher
	Close() error
}

func main() {
	//.envは任意（無ければ環境変数のみ）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}
	log := config.NewLogger(cfg)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(gormDB, log); err != nil {
			return err
		}
	}

	//Redis（未設定ならキャッシュ無し）
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, reads go to the database", slog.Any("err", err))
		}
	}
	productCache := cache.NewProductCache(rdb, cfg.ProductCacheTTL)

	//Kafka（未設定ならログだけ）
	var publisher eventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	} else {
		publisher = events.NewNoopPublisher(log)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("close event publisher", slog.Any("err", err))
		}
	}()

	// DI
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	categoryRepo := infraRepo.NewCategoryGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	clock := auth.SystemClock{}
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.AccessTTL)
	passwords := auth.NewBcryptPasswordHasher(bcrypt.DefaultCost)

	reqValidator := validator.NewRequestValidator()
	authValidator := validator.NewAuthValidator(userRepo, reqValidator)

	authUC := usecase.NewAuthUsecase(txm, userRepo, rtRepo, authValidator, passwords, jwtManager, clock, cfg.RefreshTTL, log)
	adminUC := usecase.NewAdminUsecase(auditRepo, log)
	productUC := usecase.NewProductUsecase(txm, productRepo, categoryRepo, productCache, clock, log)
	orderUC := usecase.NewOrderUsecase(txm, usecase.ZeroPricing{}, publisher, productCache, clock, log)
	quotationUC := usecase.NewQuotationUsecase(txm, usecase.ZeroPricing{}, publisher, productCache, clock, log)

	e := server.New(cfg, log, reqValidator)
	server.RegisterRoutes(e, server.Handlers{
		Auth:         handler.NewAuthHandler(authUC, cfg.RefreshTTL, cfg.IsProduction()),
		Product:      handler.NewProductHandler(productUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		Order:        handler.NewOrderHandler(orderUC),
		Quotation:    handler.NewQuotationHandler(quotationUC),
		AdminUser:    handler.NewAdminUserHandler(authUC, adminUC),
	}, jwtManager, userRepo)

	return server.Run(ctx, e, cfg, log)
}
