package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stockguard/internal/accounting"
	"stockguard/internal/audit"
	"stockguard/internal/auth"
	"stockguard/internal/catalog"
	"stockguard/internal/config"
	"stockguard/internal/database"
	"stockguard/internal/httpx"
	"stockguard/internal/lock"
	"stockguard/internal/logger"
	"stockguard/internal/models"
	"stockguard/internal/sale"
	"stockguard/internal/stock"
	"stockguard/internal/team"
	"stockguard/internal/unit"
	"stockguard/internal/waste"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	x, err := database.SQLX(db)
	if err != nil {
		return err
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		locker = lock.NewRedis(rdb, cfg.Stock.LockTTL, log)
		log.Info("using redis locks", zap.String("addr", cfg.Redis.Addr))
	}

	conv := unit.NewConverter(log)
	stockRepo := stock.NewGormRepository(db)
	engine := stock.NewEngine(stockRepo, conv, locker, log, cfg.Stock.MaxRetries)

	auditSvc := audit.NewService(db, log)
	stockSvc := stock.NewService(stockRepo, conv, log)
	catalogSvc := catalog.NewService(db, log)
	ledger := sale.NewLedger(sale.NewGormRepository(db), engine, locker, sale.Policy{
		BlockOnInsufficientStock: cfg.Stock.BlockOnInsufficientStock,
	}, log)
	reports := sale.NewReports(x, time.Local)
	wasteSvc := waste.NewService(db, engine, locker, log)
	accountingSvc := accounting.NewService(db, x, accounting.SettingsFrom(cfg.Accounting), time.Local, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: httpx.ErrorHandler(log),
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.CORSOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Use(auth.JWTMiddleware(cfg.JWT.Secret))
	api.Get("/auth/me", auth.MeHandler())

	stock.NewHandler(stockSvc, auditSvc, log, cfg.Stock.ExpiringWithinDays).Register(api)
	catalog.NewHandler(catalogSvc, auditSvc, log).Register(api)
	sale.NewHandler(ledger, reports, auditSvc, log).Register(api)
	waste.NewHandler(wasteSvc, auditSvc, log).Register(api)

	// manager-only areas
	for _, prefix := range []string{"/team", "/accounting", "/audit-logs"} {
		api.Use(prefix, auth.RequireRole(models.RoleManager))
	}
	team.NewHandler(db, auditSvc, log).Register(api)
	accounting.NewHandler(accountingSvc, auditSvc, log).Register(api)
	api.Get("/audit-logs", audit.ListHandler(auditSvc))

	if len(cfg.Kafka.Brokers) > 0 {
		listener := sale.NewListener(
			sale.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.SalesTopic, cfg.Kafka.GroupID),
			ledger,
			log,
		)
		defer listener.Close()
		go listener.Start(ctx)
		log.Info("consuming POS sales",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.SalesTopic),
		)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.HTTPPort))
		errCh <- app.Listen(":" + cfg.Server.HTTPPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
