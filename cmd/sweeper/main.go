package main

import (
	"context"
	"os"

	"fulfillment-service/config"
	"fulfillment-service/internal/producer"
	"fulfillment-service/internal/repository"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/sweeper"
	"fulfillment-service/pkg/database"
	"fulfillment-service/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Разовый прогон обхода просроченных резерваций (для cron/K8s CronJob).
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
	defer events.Close()

	stockSvc := service.NewStockService(repos, events, cfg.ReservationTTL, log)
	sw := sweeper.NewSweeper(repos, stockSvc, log)

	released, err := sw.CleanupExpired(context.Background())
	if err != nil {
		log.Error("Обход завершился с ошибками", zap.Int("released", released), zap.Error(err))
		os.Exit(1)
	}

	log.Info("Обход просроченных резерваций завершён", zap.Int("released", released))
}
