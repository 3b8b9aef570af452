package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okhomyn/eventbot/config"
	"github.com/okhomyn/eventbot/internal/bot"
	"github.com/okhomyn/eventbot/internal/clients/caldav"
	"github.com/okhomyn/eventbot/internal/scheduler"
	"github.com/okhomyn/eventbot/internal/service"
	"github.com/okhomyn/eventbot/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	eventSvc := service.NewEventService(store, cfg.Timezone)
	exportSvc := service.NewExportService(store, cfg.Timezone)
	statsSvc := service.NewStatsService(store, cfg.Timezone)

	// Optional push of new events to an external CalDAV calendar
	if cfg.CalDAVURL != "" {
		sync := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword)
		sync.SetCalendarID(cfg.CalDAVCalendarID)
		eventSvc.SetSync(sync)
	}

	tgBot, err := bot.New(cfg, store, eventSvc, exportSvc, statsSvc)
	if err != nil {
		log.Fatalf("Failed to init bot: %v", err)
	}

	sched := scheduler.New(cfg, store)
	sched.SetSender(tgBot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			log.Printf("Bot error: %v", err)
		}
	}()

	log.Println("EventBot started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := tgBot.Stop(shutdownCtx); err != nil {
		log.Printf("Error stopping bot: %v", err)
	}

	log.Println("EventBot stopped")
}
