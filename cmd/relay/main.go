package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"storefront-chat/config"
	"storefront-chat/internal/server"
	"storefront-chat/internal/services"
	"storefront-chat/pkg/database"
	"storefront-chat/pkg/logger"
)

func main() {
	devToken := flag.String("dev-token", "", "print an access token for this demo user id and exit")
	flag.Parse()

	cfg := config.LoadConfig()

	if *devToken != "" {
		printDevToken(cfg, *devToken)
		return
	}

	l := logger.New(cfg.AppMode)
	defer l.Sync()
	logger.SetGlobalLogger(l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	relay, err := server.NewRelay(ctx, cfg, l)
	if err != nil {
		l.Errorf("Failed to assemble relay: %s", err)
		os.Exit(1)
	}
	defer relay.Close()

	if err := relay.Run(ctx); err != nil {
		l.Errorf("Relay stopped: %s", err)
		os.Exit(1)
	}
}

func printDevToken(cfg *config.Config, userID string) {
	auth := services.NewAuthService(cfg.JWTSecret)
	if !auth.Enabled() {
		log.Fatal("JWT_SECRET is empty; the relay runs without auth and needs no token")
	}
	for _, u := range database.DemoUsers() {
		if u.ID != userID {
			continue
		}
		token, err := auth.IssueAccessToken(u)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}
	log.Fatalf("Unknown demo user %q", userID)
}
