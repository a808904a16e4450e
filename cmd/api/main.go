package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/hotspot-billing/internal/application/access"
	"github.com/jhoicas/hotspot-billing/internal/application/auth"
	"github.com/jhoicas/hotspot-billing/internal/application/license"
	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	"github.com/jhoicas/hotspot-billing/internal/application/settlement"
	"github.com/jhoicas/hotspot-billing/internal/clock"
	"github.com/jhoicas/hotspot-billing/internal/domain/repository"
	domsettlement "github.com/jhoicas/hotspot-billing/internal/domain/settlement"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/lock"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/memory"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/metrics"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/migration"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/mikrotik"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/mpesa"
	infrapdf "github.com/jhoicas/hotspot-billing/internal/infrastructure/pdf"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/postgres"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/queue"
	httpRouter "github.com/jhoicas/hotspot-billing/internal/interfaces/http"
	"github.com/jhoicas/hotspot-billing/pkg/config"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

// repos persistencia elegida por DB_DRIVER.
type repos struct {
	licenses      repository.LicenseRepository
	licenseOrders repository.LicenseOrderRepository
	accessOrders  repository.AccessOrderRepository
	users         repository.UserRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("db_driver", cfg.DB.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()
	clk := clock.Real{}

	// ── Persistencia ──
	var store repos
	if cfg.DB.Driver == "memory" {
		log.Warn().Msg("DB_DRIVER=memory: los datos se pierden al reiniciar")
		mem := memory.NewStore()
		store = repos{mem.Licenses(), mem.LicenseOrders(), mem.AccessOrders(), mem.Users()}
	} else {
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if cfg.DB.Migrate {
			if err := migration.RunMigrations(pool); err != nil {
				log.Fatal().Err(err).Msg("migraciones")
			}
			log.Info().Msg("migraciones aplicadas")
		}
		store = repos{
			licenses:      postgres.NewLicenseRepository(pool),
			licenseOrders: postgres.NewLicenseOrderRepository(pool),
			accessOrders:  postgres.NewAccessOrderRepository(pool),
			users:         postgres.NewUserRepository(pool),
		}
	}

	// ── Cola de liquidación y locks por orden ──
	var (
		settlementQueue ports.SettlementQueue
		locker          ports.OrderLocker
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("conexión a Redis")
		}
		rq := queue.NewRedisQueue(rdb, cfg.Redis.Prefix, log)
		if n, err := rq.Recover(ctx); err != nil {
			log.Error().Err(err).Msg("recuperar eventos en proceso")
		} else if n > 0 {
			log.Warn().Int("jobs", n).Msg("eventos sin confirmar devueltos a la cola")
		}
		settlementQueue = rq
		locker = lock.NewRedisLocker(rdb, cfg.Redis.Prefix)
	} else {
		log.Warn().Msg("REDIS_ADDR vacío: cola en memoria, los eventos pendientes se pierden al reiniciar")
		mq := queue.NewMemoryQueue()
		defer mq.Close()
		settlementQueue = mq
		locker = lock.NewMemoryLocker(clk)
	}

	// ── Proveedores externos ──
	mpesaClient := mpesa.NewClient(cfg.MPesa, clk, log)
	router := mikrotik.NewClient(cfg.MikroTik, log)
	if cfg.MikroTik.BaseURL == "" {
		log.Warn().Msg("MIKROTIK_BASE_URL vacío: las órdenes de acceso pagadas quedarán pending")
	}

	m := metrics.New(metrics.Config{ServiceName: cfg.App.Name, Environment: cfg.App.Env})

	// ── Casos de uso ──
	tiers := domsettlement.DefaultTiers()
	gate := license.NewGate(license.Settings{Key: cfg.License.Key}, store.licenses, store.users, clk, log, m)
	authUC := auth.NewAuthUseCase(store.users, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	accessUC := access.NewPurchaseUseCase(store.accessOrders, mpesaClient, tiers, clk, cfg.MPesa.Timeout, log, m)
	statusUC := license.NewStatusUseCase(gate, store.licenseOrders, log)
	renewalUC := license.NewRenewalUseCase(store.licenses, store.licenseOrders, mpesaClient, clk, cfg.MPesa.Timeout, log, m)
	adminUC := license.NewAdminUseCase(store.licenses, store.licenseOrders, clk)
	receiptUC := license.NewReceiptUseCase(store.licenseOrders, store.licenses, infrapdf.NewReceiptGenerator(cfg.App.Name))
	settlementSvc := settlement.NewService(settlementQueue, mpesaClient, clk, cfg.MPesa.Timeout, log)

	processor := settlement.NewProcessor(
		store.accessOrders, store.licenseOrders, store.licenses,
		router, locker, clk,
		settlement.Config{
			Tiers:          tiers,
			AccessValidity: cfg.Settlement.AccessValidity,
			GrantTimeout:   cfg.Settlement.GrantTimeout,
			LockTTL:        cfg.Settlement.LockTTL,
		},
		log,
	)
	worker := settlement.NewWorker(settlementQueue, processor, settlement.WorkerConfig{
		MaxAttempts:    cfg.Settlement.MaxAttempts,
		RetryBaseDelay: cfg.Settlement.RetryBaseDelay,
	}, log, m)

	workerCtx, stopWorker := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := worker.Run(workerCtx); err != nil {
			log.Error().Err(err).Msg("worker de liquidación finalizado")
		}
	}()

	// ── HTTP ──
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Hotspot Billing API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "demo": gate.Demo()})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:     authUC,
		AccessUC:   accessUC,
		StatusUC:   statusUC,
		RenewalUC:  renewalUC,
		AdminUC:    adminUC,
		ReceiptUC:  receiptUC,
		Settlement: settlementSvc,
		Gate:       gate,
		JWTSecret:  cfg.JWT.Secret,
		Log:        log,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	// el Job en curso termina antes de cerrar la cola y la base
	stopWorker()
	wg.Wait()

	log.Info().Msg("aplicación detenida")
}
