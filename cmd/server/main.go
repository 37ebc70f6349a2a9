package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/payout-sync/internal/api"
	"github.com/ignite/payout-sync/internal/config"
	"github.com/ignite/payout-sync/internal/engine"
	"github.com/ignite/payout-sync/internal/ringba"
	"github.com/ignite/payout-sync/internal/scheduler"
	"github.com/ignite/payout-sync/internal/sheets"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func newSheetClient(cfg config.SheetsConfig, worksheet string) (*sheets.Client, error) {
	return sheets.NewClient(sheets.Config{
		SpreadsheetID:      cfg.SpreadsheetID,
		Worksheet:          worksheet,
		ServiceAccountJSON: cfg.ServiceAccountJSON,
		Timeout:            cfg.Timeout(),
	})
}

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if err := checkPortAvailable(cfg.Server.GetHost(), cfg.Server.Port); err != nil {
		log.Fatalf("%v", err)
	}

	// Sheet clients, one per worksheet
	daily, err := newSheetClient(cfg.Sheets, cfg.Sheets.DailyWorksheet)
	if err != nil {
		log.Fatalf("Failed to create daily sheet client: %v", err)
	}
	hourly, err := newSheetClient(cfg.Sheets, cfg.Sheets.HourlyWorksheet)
	if err != nil {
		log.Fatalf("Failed to create hourly sheet client: %v", err)
	}
	webhook, err := newSheetClient(cfg.Sheets, cfg.Sheets.WebhookWorksheet)
	if err != nil {
		log.Fatalf("Failed to create webhook sheet client: %v", err)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 60*time.Second)
	for name, client := range map[string]*sheets.Client{
		cfg.Sheets.DailyWorksheet:   daily,
		cfg.Sheets.HourlyWorksheet:  hourly,
		cfg.Sheets.WebhookWorksheet: webhook,
	} {
		if err := client.EnsureWorksheet(startupCtx); err != nil {
			cancelStartup()
			log.Fatalf("Failed to ensure worksheet %q: %v", name, err)
		}
	}
	cancelStartup()
	log.Println("Google Sheets worksheets verified")

	// Reporting source client
	ringbaClient := ringba.NewClient(ringba.Config{
		APIToken:       cfg.Ringba.APIToken,
		AccountID:      cfg.Ringba.AccountID,
		BaseURL:        cfg.Ringba.BaseURL,
		ReportTimezone: cfg.Ringba.ReportTimezone,
	})

	// Reconciliation engine
	eng := engine.New(ringbaClient, daily, hourly, engine.Config{
		Location:          cfg.Sync.Location(),
		WindowOpenHour:    cfg.Sync.WindowOpenHour,
		WindowCloseHour:   cfg.Sync.WindowCloseHour,
		IncludeTarget:     cfg.Sync.IncludeTarget,
		IncludeCallCounts: cfg.Sync.IncludeCallCounts,
	})

	// Schedule driver (optional: external cron deployments disable it and
	// drive the manual trigger endpoints instead)
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(eng, scheduler.Config{
			Location:        cfg.Sync.Location(),
			WindowOpenHour:  cfg.Sync.WindowOpenHour,
			WindowCloseHour: cfg.Sync.WindowCloseHour,
			HourlyMinute:    5,
			FinalizeHour:    cfg.Sync.FinalizeHour,
			FinalizeMinute:  cfg.Sync.FinalizeMinute,
			BackfillHour:    cfg.Sync.BackfillHour,
			BackfillMinute:  cfg.Sync.BackfillMinute,
		})
		sched.Start()
	} else {
		log.Println("Scheduler disabled (ENABLE_SCHEDULER not set)")
	}

	server := api.NewServer(cfg.Server, eng, api.NewWebhookSink(webhook))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized — server is ready")

	<-done
	log.Println("Shutting down...")

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
