package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fulfillment-service/config"
	"fulfillment-service/internal/gateway"
	"fulfillment-service/internal/producer"
	"fulfillment-service/internal/repository"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/sweeper"
	transport "fulfillment-service/internal/transport/http"
	"fulfillment-service/pkg/database"
	"fulfillment-service/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// @Title Fulfillment Service API
// @Version 1.0
// @Description Резервация остатков и возвраты платежей
// @BasePath /
func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}

	defer logger.Sync()

	log := logger.L()

	cfg := config.Load(log)
	db := database.ConnectDB(&cfg.DB.Config, log)
	defer database.CloseDB(db, log)

	repos := repository.New(db)

	events := producer.NewFulfillmentProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer func() {
		if err := events.Close(); err != nil {
			log.Error("Ошибка при закрытии kafka writer", zap.Error(err))
		}
	}()

	stripeGW := gateway.NewStripeGateway(cfg.StripeSecretKey, log)

	stockSvc := service.NewStockService(repos, events, cfg.ReservationTTL, log)
	refundSvc := service.NewRefundService(repos, stripeGW, events, log)

	sw := sweeper.NewSweeper(repos, stockSvc, log)
	sched := sweeper.NewScheduler(sw, cfg.SweepInterval, log)
	sched.Start(context.Background())
	defer sched.Stop()

	h := transport.NewHandler(stockSvc, refundSvc, sw, log)
	r := transport.Router(h)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Starting fulfillment HTTP server", zap.String("addr", cfg.Port))
		if err := r.Run(cfg.Port); err != nil {
			log.Fatal("failed to run http server", zap.Error(err))
		}
	}()

	<-quit
	log.Info("Shutting down fulfillment service...")
	log.Info("Fulfillment service stopped gracefully")
}
