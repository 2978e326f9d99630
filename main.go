package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"oldschool-messanger/api"
	"oldschool-messanger/chat"
	"oldschool-messanger/config"
	"oldschool-messanger/models"
	"oldschool-messanger/socket"
	"oldschool-messanger/storage"
)

func main() {
	userID := flag.String("user-id", os.Getenv("OLDSCHOOL_USER_ID"), "authenticated user ID")
	username := flag.String("username", os.Getenv("OLDSCHOOL_USERNAME"), "authenticated username")
	token := flag.String("token", os.Getenv("OLDSCHOOL_TOKEN"), "bearer token for the backend")
	flag.Parse()

	if *userID == "" || *token == "" {
		log.Fatal("startup failed: --user-id and --token are required (or OLDSCHOOL_USER_ID / OLDSCHOOL_TOKEN)")
	}

	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		log.Fatalf("startup failed while loading config: %v", err)
	}

	session := models.SessionContext{
		UserID:   *userID,
		Username: *username,
		Token:    *token,
	}

	fmt.Printf("Device ID:       %s\n", cfg.DeviceID)
	fmt.Printf("User ID:         %s\n", session.UserID)
	fmt.Printf("Server:          %s\n", cfg.ServerBaseURL)
	fmt.Printf("Socket:          %s\n", cfg.SocketURL)
	fmt.Printf("Config File:     %s\n", cfgPath)
	dataDir := filepath.Dir(cfgPath)
	fmt.Printf("Data Directory:  %s\n", dataDir)

	cache, dbPath, err := storage.Open(dataDir)
	if err != nil {
		log.Fatalf("startup failed while opening database: %v", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			log.Printf("database close error: %v", err)
		}
	}()
	fmt.Printf("Database File:   %s\n", dbPath)

	client, err := api.NewClient(api.Options{
		BaseURL: cfg.ServerBaseURL,
		Session: session,
		Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("startup failed while building API client: %v", err)
	}

	controller, err := chat.NewController(chat.ControllerOptions{
		Session:      session,
		API:          client,
		Cache:        cache,
		TypingExpiry: time.Duration(cfg.TypingExpirySeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("startup failed while building chat controller: %v", err)
	}
	defer controller.Close()

	pushSession, err := socket.NewSession(socket.Options{
		URL:      cfg.SocketURL,
		Session:  session,
		Handlers: controller.SocketHandlers(),
	})
	if err != nil {
		log.Fatalf("startup failed while building push session: %v", err)
	}
	controller.AttachPush(pushSession)
	pushSession.Start()
	defer pushSession.Close()

	conversations := controller.Conversations().List()
	fmt.Printf("Conversations:   %d\n", len(conversations))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Status:          running (press Ctrl+C to stop)")
	<-ctx.Done()
	fmt.Println("Status:          shutting down")
}
