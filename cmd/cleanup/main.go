package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/nevera/nevera_server/config"
	"github.com/nevera/nevera_server/internal/database"
	"github.com/nevera/nevera_server/internal/model"
	"github.com/nevera/nevera_server/internal/repository"
)

var (
	dryRun        = flag.Bool("dry-run", true, "Dry run mode, don't actually delete rows")
	keepDays      = flag.Int("keep-days", 0, "Days of history and alert logs to keep (0 = config value)")
	cleanHistory  = flag.Bool("clean-history", true, "Prune old conversation history")
	cleanAlerts   = flag.Bool("clean-alerts", true, "Prune old alert logs")
	cleanExpired  = flag.Bool("clean-expired", false, "Delete products expired for longer than the retention window")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	days := *keepDays
	if days <= 0 {
		days = cfg.Alerts.CleanupKeepDays
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	log.Printf("Retention cutoff: %s (%d days)", cutoff.Format("2006-01-02"), days)

	historyRepo := repository.NewHistoryRepository(db, cfg.Bot.HistoryLimit)
	alertRepo := repository.NewAlertRepository(db)

	if *cleanHistory {
		if *dryRun {
			var count int64
			db.Model(&model.ConversationMessage{}).Where("created_at < ?", cutoff).Count(&count)
			log.Printf("💬 Would delete %d conversation messages", count)
		} else {
			deleted, err := historyRepo.DeleteOlderThan(cutoff)
			if err != nil {
				log.Printf("Failed to prune history: %v", err)
			} else {
				log.Printf("💬 Deleted %d conversation messages", deleted)
			}
		}
	}

	if *cleanAlerts {
		if *dryRun {
			var count int64
			db.Model(&model.AlertLog{}).Where("sent_at < ?", cutoff).Count(&count)
			log.Printf("🔔 Would delete %d alert logs", count)
		} else {
			deleted, err := alertRepo.DeleteOlderThan(cutoff)
			if err != nil {
				log.Printf("Failed to prune alert logs: %v", err)
			} else {
				log.Printf("🔔 Deleted %d alert logs", deleted)
			}
		}
	}

	if *cleanExpired {
		if *dryRun {
			var count int64
			db.Model(&model.Product{}).Where("expiry_at < ?", cutoff).Count(&count)
			log.Printf("🥫 Would delete %d long-expired products", count)
		} else {
			res := db.Where("expiry_at < ?", cutoff).Delete(&model.Product{})
			if res.Error != nil {
				log.Printf("Failed to prune products: %v", res.Error)
			} else {
				log.Printf("🥫 Deleted %d long-expired products", res.RowsAffected)
			}
		}
	}

	log.Println("✅ Cleanup complete")
}
