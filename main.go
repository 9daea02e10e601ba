package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"partshop/internal/config"
	"partshop/internal/database"
	"partshop/internal/handlers"
	"partshop/internal/logger"
	"partshop/internal/models"
	"partshop/internal/policy"
	"partshop/internal/repositories"
	"partshop/internal/services"
	"partshop/pkg/rabbitmq"
)

func main() {
	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, flush := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		JSON:       cfg.Log.JSON,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer flush()

	app, cleanup, err := setup(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer cleanup()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("starting server", zap.String("addr", cfg.AppPort))
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-quit
	log.Info("shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Error("error during fiber shutdown", zap.Error(err))
	}
	log.Info("server gracefully stopped")
}

// setup opens the database, applies the schema and wires the services into
// the HTTP app. cleanup releases the database and broker connections.
func setup(ctx context.Context, cfg *config.Config, log *zap.Logger) (*fiber.App, func(), error) {
	db, err := database.Open(database.Opts{
		Driver:          cfg.DB.Driver,
		DSN:             cfg.DB.DSN,
		LogLevel:        cfg.DB.LogLevel,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(db, cfg.DB.Driver, cfg.DB.DSN); err != nil {
			cleanup()
			return nil, nil, err
		}
		log.Info("schema migrated", zap.String("driver", cfg.DB.Driver))
	}

	pol, err := policy.New(cfg.PolicyMode)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if pol.Mode() == policy.ModeOpen {
		log.Warn("open access policy active: any holder of the anon key can read and modify every user's rows")
	}

	// publisher stays a nil interface without a broker
	var publisher services.CodePublisher
	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := mq.Close(); err != nil {
				log.Warn("close rabbitmq", zap.Error(err))
			}
		})
		publisher = mq
	} else {
		log.Info("RABBITMQ_URL not set, verification codes are stored only")
	}

	authService := services.NewAuthService(
		repositories.NewGORMUserRepository(db),
		repositories.NewGORMVerificationCodeRepository(db),
		publisher,
		cfg.JWTSecret,
		cfg.VerificationCodeTTL,
		log.Named("auth"),
	)
	tableService := services.NewTableService(pol, repositories.NewGORMRowRepository(db))

	if cfg.SeedDemo {
		partService := services.NewPartService(repositories.NewGORMPartRepository(db))
		n, err := partService.Seed(ctx, demoParts())
		if err != nil {
			log.Error("seeding demo parts", zap.Error(err))
		} else if n > 0 {
			log.Info("seeded demo parts", zap.Int("count", n))
		}
	}

	app := handlers.NewApp(handlers.AppDeps{
		DB:     db,
		Auth:   authService,
		Tables: tableService,
		Log:    log.Named("http"),
	})
	return app, cleanup, nil
}

func demoParts() []models.Part {
	price := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}
	return []models.Part{
		{PartNumber: "04465-02220", NameEN: "Front brake pad set", NameRU: models.Text("Колодки тормозные передние"), Category: models.Text("brakes"), Price: price("42.90"), Quantity: 12},
		{PartNumber: "43512-02230", NameEN: "Front brake disc", NameRU: models.Text("Диск тормозной передний"), Category: models.Text("brakes"), Price: price("61.00"), Quantity: 6},
		{PartNumber: "90915-YZZE1", NameEN: "Oil filter", NameRU: models.Text("Фильтр масляный"), Category: models.Text("filters"), Price: price("7.40"), Quantity: 40},
		{PartNumber: "17801-0Y040", NameEN: "Air filter", NameRU: models.Text("Фильтр воздушный"), Category: models.Text("filters"), Price: price("15.20"), Quantity: 18},
		{PartNumber: "90919-01253", NameEN: "Spark plug", NameRU: models.Text("Свеча зажигания"), Category: models.Text("ignition"), Price: price("9.75"), Quantity: 0},
	}
}
