package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"event-rsvp-bot/internal/config"
	"event-rsvp-bot/internal/delivery"
	"event-rsvp-bot/internal/handler"
	"event-rsvp-bot/internal/messages"
	"event-rsvp-bot/internal/reminder"
	"event-rsvp-bot/internal/server"
	"event-rsvp-bot/internal/storage"
	"event-rsvp-bot/internal/whatsapp"
)

func main() {
	fmt.Println("🎉 Event RSVP Bot")
	fmt.Println("=================")

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fmt.Printf("Error creating data directory: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Printf("Error initializing storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	whatsappService, err := whatsapp.NewService(&whatsapp.Config{DataDir: cfg.DataDir}, log)
	if err != nil {
		fmt.Printf("Error initializing WhatsApp service: %v\n", err)
		os.Exit(1)
	}

	catalog := messages.NewCatalog(cfg.Event)
	queue := delivery.NewQueue(whatsappService, store, cfg.SendDelay, log)
	engine := handler.NewEngine(store, queue, catalog, cfg.InvitationImage, log)
	reminders := reminder.NewService(store, queue, catalog, cfg.Event.Date, log)
	scheduler := reminder.NewScheduler(reminders, cfg.ReminderHour, log)
	api := server.New(store, engine, reminders, whatsappService, log)

	whatsappService.SetInboundHandler(engine.HandleMessage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue.Start(ctx)
	scheduler.Start(ctx)

	go func() {
		if err := api.Start(":" + cfg.ServerPort); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	fmt.Println("Connecting to WhatsApp...")
	if err := whatsappService.Connect(); err != nil {
		fmt.Printf("Error connecting to WhatsApp: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n✅ Connected to WhatsApp!")
	fmt.Printf("📊 Dashboard API on port %s\n", cfg.ServerPort)
	fmt.Printf("📅 Days until event: %d\n", reminders.DaysLeft())
	fmt.Println("The bot is now listening for RSVP responses.")

	// Wait for interrupt signal
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	fmt.Println("\n\nShutting down...")
	scheduler.Stop()
	queue.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	whatsappService.Disconnect()
	fmt.Println("Goodbye! 👋")
}
