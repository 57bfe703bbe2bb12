package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-reservation/internal/config"
	"github.com/iliyamo/meeting-room-reservation/internal/database"
	"github.com/iliyamo/meeting-room-reservation/internal/handler"
	"github.com/iliyamo/meeting-room-reservation/internal/logger"
	"github.com/iliyamo/meeting-room-reservation/internal/middleware"
	"github.com/iliyamo/meeting-room-reservation/internal/queue"
	"github.com/iliyamo/meeting-room-reservation/internal/repository"
	"github.com/iliyamo/meeting-room-reservation/internal/router"
	"github.com/iliyamo/meeting-room-reservation/internal/service"
)

const serviceName = "meeting-room-reservation"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	rooms := repository.NewRoomRepo(db)
	reservations := repository.NewReservationRepo(db)
	store := repository.NewStore(db, cfg.TxTimeout)

	var opts []service.ReservationOption
	var wg sync.WaitGroup
	// the publisher outlives ctx so requests drained by Shutdown still
	// get their events out
	pubCtx, stopPublisher := context.WithCancel(context.Background())
	defer stopPublisher()
	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL, lg.Named("publisher"))
		opts = append(opts, service.WithEventPublisher(pub))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pub.Run(pubCtx)
		}()

		consumer := &queue.Consumer{URL: cfg.AMQPURL, Dir: cfg.EventLogDir, Log: lg.Named("consumer")}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("reservation consumer stopped", zap.Error(err))
			}
		}()
	} else {
		lg.Info("RABBITMQ_URL not set; reservation events disabled")
	}

	reservationSvc := service.NewReservationService(store, reservations, lg.Named("reservations"), opts...)
	roomSvc := service.NewRoomService(rooms, lg.Named("rooms"))
	userSvc := service.NewUserService(
		repository.NewUserRepo(db),
		repository.NewTokenRepo(db),
		service.AuthSettings{
			JWTSecret:  cfg.JWTSecret,
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
			BcryptCost: cfg.BcryptCost,
		},
		nil,
		lg.Named("users"),
	)

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		lg.Warn("redis unreachable; rate limiting and caching disabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		defer rdb.Close()
	}
	cache := middleware.NewResponseCache(cfg.Cache, rdb, lg.Named("cache"))

	if cfg.SuperAdmin.Enabled() {
		created, err := userSvc.EnsureSuperAdmin(ctx, service.SeedAccount(cfg.SuperAdmin))
		if err != nil {
			return fmt.Errorf("seed super admin: %w", err)
		}
		if created {
			lg.Info("super admin account created", zap.String("username", cfg.SuperAdmin.Username))
		}
	} else {
		lg.Info("SUPER_ADMIN_PASSWORD not set; super admin seeding skipped")
	}

	sweeper := service.NewStatusSweeper(rooms, store, cfg.SweepInterval, lg.Named("sweeper"))
	sweeper.OnChange(cache.Purge)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger(lg.Named("http")))
	e.Use(middleware.CORS(cfg.AllowedOrigins))

	router.Register(e, router.Handlers{
		Health:       &handler.HealthHandler{DB: db},
		Auth:         handler.NewAuthHandler(userSvc),
		Rooms:        handler.NewRoomHandler(roomSvc),
		Reservations: handler.NewReservationHandler(reservationSvc, lg.Named("export")),
		Users:        handler.NewUserHandler(userSvc),
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		Limiter:   middleware.RateLimit(cfg.RateLimit, rdb, lg.Named("ratelimit")),
		Cache:     cache,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stop()
		stopPublisher()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http shutdown", zap.Error(err))
	}
	stopPublisher()
	wg.Wait()
	return nil
}
