package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"gorm.io/gorm"

	"github.com/Wikid82/phishguard/internal/config"
	"github.com/Wikid82/phishguard/internal/database"
	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/services"
)

// sampleBlacklist holds demo entries for local development.
var sampleBlacklist = []models.BlacklistEntry{
	{ItemType: models.ItemDomain, ItemValue: "paypa1-login.example", ThreatType: "typosquatting", Notes: "Sample typosquat of a payment brand"},
	{ItemType: models.ItemDomain, ItemValue: "secure-bank-update.example", ThreatType: "phishing", Notes: "Sample credential harvesting page"},
	{ItemType: models.ItemURL, ItemValue: "http://free-prize.example/claim?id=1", ThreatType: "scam", Notes: "Sample prize scam"},
	{ItemType: models.ItemIP, ItemValue: "203.0.113.66", ThreatType: "scanner", Notes: "Sample scanning host (TEST-NET-3)"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}
	fmt.Println("✓ Database migrated successfully")

	if err := seed(db, cfg, os.Stdout, os.Getenv("PHISHGUARD_DEFAULT_ADMIN_EMAIL"), os.Getenv("PHISHGUARD_DEFAULT_ADMIN_PASSWORD")); err != nil {
		log.Fatal(err)
	}

	fmt.Println("\n✓ Database seeding completed successfully!")
}

func seed(db *gorm.DB, cfg config.Config, out io.Writer, adminEmail, adminPassword string) error {
	added, err := services.NewTrainingService(db).Seed()
	if err != nil {
		return fmt.Errorf("seed training cases: %w", err)
	}
	fmt.Fprintf(out, "✓ Training cases added: %d\n", added)

	blacklist := services.NewBlacklistService(db)
	for _, e := range sampleBlacklist {
		entry := e
		entry.AddedBy = "seed"
		if err := blacklist.Upsert(&entry); err != nil {
			log.Printf("Failed to seed blacklist entry %s: %v", e.ItemValue, err)
			continue
		}
		fmt.Fprintf(out, "✓ Blacklisted %s: %s\n", entry.ItemType, entry.ItemValue)
	}

	if adminEmail == "" {
		adminEmail = "admin@localhost"
	}
	if adminPassword == "" {
		fmt.Fprintln(out, "  No default admin password set, skipping admin account")
		return nil
	}

	auth := services.NewAuthService(db, cfg)
	user, err := auth.Register(adminEmail, adminPassword, "Administrator")
	switch {
	case err == nil:
		if user.Role != models.RoleAdmin {
			if err := db.Model(user).Update("role", models.RoleAdmin).Error; err != nil {
				return fmt.Errorf("promote admin: %w", err)
			}
		}
		fmt.Fprintf(out, "✓ Created default admin: %s\n", adminEmail)
	case errors.Is(err, services.ErrEmailTaken):
		fmt.Fprintf(out, "  User already exists: %s\n", adminEmail)
	default:
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}
