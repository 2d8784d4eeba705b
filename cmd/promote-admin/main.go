package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/pkolev/texturevault/internal/config"
	"github.com/pkolev/texturevault/internal/database"
	"github.com/pkolev/texturevault/internal/services"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Println("Usage: promote-admin <email>")
		os.Exit(1)
	}

	email := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	accountService := services.NewAccountService(db)

	if err := accountService.PromoteAdmin(ctx, email); err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			log.Fatalf("No account found with email: %s", email)
		}
		log.Fatalf("Failed to promote account: %v", err)
	}

	fmt.Printf("Successfully promoted %s to platform admin\n", email)
}
