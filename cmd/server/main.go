package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tanefack/community-booking/internal/booking"
	"github.com/tanefack/community-booking/internal/config"
	"github.com/tanefack/community-booking/internal/database"
	"github.com/tanefack/community-booking/internal/handler"
	"github.com/tanefack/community-booking/internal/middleware"
	"github.com/tanefack/community-booking/internal/notify"
	"github.com/tanefack/community-booking/internal/payment"
	"github.com/tanefack/community-booking/internal/queue"
	"github.com/tanefack/community-booking/internal/repository"
	"github.com/tanefack/community-booking/internal/router"
	"github.com/tanefack/community-booking/internal/session"
	"github.com/tanefack/community-booking/internal/ussd"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use env vars

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Fatal("redis: connection failed; the USSD session store requires Redis")
	}
	defer func() { _ = rdb.Close() }()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	halls := repository.NewHallRepo(db)
	events := repository.NewEventRepo(db)
	bookings := repository.NewBookingRepo(db)
	transactions := repository.NewTransactionRepo(db)

	engine := booking.NewEngine(db, bookings, halls, events, cfg.HoldWindow)

	sweeper := booking.NewSweeper(engine, cfg.SweepInterval)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sweeper.Start(ctx)
	defer sweeper.Stop()

	publisher := notify.NewPublisher(cfg.RabbitURL, users, halls, events)
	sms := notify.NewATSmsSender(cfg.ATAPIURL, cfg.ATAPIKey, cfg.ATUsername)
	consumer := queue.NewConsumer(cfg.RabbitURL, sms, cfg.BookingLogPath)
	go consumer.Run(ctx)

	gateway := payment.NewHTTPGateway(cfg.ATPaymentsURL, cfg.ATAPIKey)
	payments := payment.NewService(gateway, transactions, engine, publisher, cfg.ATUsername, cfg.ProductName, cfg.CurrencyCode)

	sessions := session.NewStore(rdb, cfg.UssdSessionTimeout)
	history := notify.NewHistoryNotifier(bookings, publisher)
	machine := ussd.NewMachine(sessions, halls, events, users, engine, payments, history, cfg.BcryptCost)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.Register(e, router.Handlers{
		Auth:    handler.NewAuthHandler(cfg, users, tokens),
		Catalog: handler.NewCatalogHandler(halls, events, engine),
		Booking: handler.NewBookingHandler(engine, payments, users, bookings),
		Payment: handler.NewPaymentHandler(payments),
		Ussd:    handler.NewUssdHandler(machine),
	}, cfg.JWTSecret, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
