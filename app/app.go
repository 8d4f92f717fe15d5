package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bookswap/exchange-service/config"
	"github.com/bookswap/exchange-service/internal/handler"
	"github.com/bookswap/exchange-service/internal/repository"
	"github.com/bookswap/exchange-service/internal/server"
	"github.com/bookswap/exchange-service/internal/service"
	"github.com/bookswap/exchange-service/migrations"
	"github.com/bookswap/exchange-service/pkg/kafka"
	"github.com/bookswap/exchange-service/pkg/logger"
	"github.com/bookswap/exchange-service/pkg/postgres"
)

func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "exchange")
	db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return fmt.Errorf("db init %v", err)
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return fmt.Errorf("repo %v", err)
	}

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return fmt.Errorf("kafka.NewProducer %v", err)
	}

	bookSvc := service.NewBookService(repo, log)
	userSvc := service.NewUserService(repo, log)
	statsSvc := service.NewStatsService(repo, log)
	exchangeSvc := service.NewExchangeService(repo, kafka.NewPublisher(producer), log)

	consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.StatsConsumerGroup)
	if err != nil {
		return fmt.Errorf("kafka.NewConsumer %v", err)
	}
	go kafka.Consume(consumer, handler.NewConsumer(statsSvc.RecordEvent, log), kafka.ExchangeTopic, log)

	h := handler.New(bookSvc, userSvc, exchangeSvc, statsSvc, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.Error("srv.Stop", zap.Error(err))
	}
	if err = consumer.Close(); err != nil {
		log.Error("consumer.Close", zap.Error(err))
	}
	if err = producer.Close(); err != nil {
		log.Error("producer.Close", zap.Error(err))
	}
	db.Close()
	log.Info("Graceful shutdown finished")
	return nil
}
