package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nevera/nevera_server/config"
	"github.com/nevera/nevera_server/internal/database"
	"github.com/nevera/nevera_server/internal/logger"
	"github.com/nevera/nevera_server/internal/pkg/queue"
	"github.com/nevera/nevera_server/internal/pkg/whatsapp"
	"github.com/nevera/nevera_server/internal/repository"
	"github.com/nevera/nevera_server/internal/worker"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	notifyQueue := queue.NewQueue(rdb, cfg.Quota.NotifyQueue)
	sender := whatsapp.NewClient(&cfg.WhatsApp)

	userRepo := repository.NewUserRepository(db)
	historyRepo := repository.NewHistoryRepository(db, cfg.Bot.HistoryLimit)

	notifier := worker.NewNotifier(notifyQueue, userRepo, historyRepo, sender, rdb, logger.New("notifier"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	notifier.Run(ctx, 15*time.Second)
	log.Println("Worker shutdown complete")
}
