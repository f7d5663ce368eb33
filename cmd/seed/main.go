package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-user-auth-service/config"
	"github.com/oksasatya/go-user-auth-service/internal/container"
	"github.com/oksasatya/go-user-auth-service/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	username := flag.String("username", cfg.DefaultAdminUsername, "admin username")
	password := flag.String("password", cfg.DefaultAdminPassword, "admin password")
	flag.Parse()
	if *password == "" {
		log.Fatal("admin password required: set DEFAULT_ADMIN_PASSWORD or pass -password")
	}

	// events are not needed for a one-off bootstrap
	cfg.UserEventsEnabled = false
	cfg.SearchEnabled = false

	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)
	ctx := context.Background()
	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialise dependencies: %v", err)
	}
	defer c.Close()

	created, err := c.UserService.EnsureAdminExists(ctx, *username, *password)
	if err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
	if created {
		fmt.Printf("seeded admin: username=%s\n", *username)
		return
	}
	fmt.Println("an admin already exists, nothing to do")
}
