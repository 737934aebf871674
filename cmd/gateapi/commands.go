// File: cmd/gateapi/commands.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartdevs17/helmetgate/internal/hardware"
	"github.com/smartdevs17/helmetgate/internal/models"
	"github.com/smartdevs17/helmetgate/internal/storage"
	"github.com/smartdevs17/helmetgate/internal/weather"
)

// seedPattern is the open/closed sequence written by the seed command
var seedPattern = []bool{true, false, true, true, false}

// seedSpacing separates seeded entries so their order is stable
const seedSpacing = 100 * time.Millisecond

// openStorage loads config, initializes logging and opens the migrated database
func openStorage() (storage.Storage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := initLogger(cfg); err != nil {
		return nil, err
	}
	store, err := storage.Open(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}

// seedLogs writes the sample log sequence ending at now, oldest first
func seedLogs(ctx context.Context, store storage.Storage, now time.Time) ([]*models.LogEntry, error) {
	entries := make([]*models.LogEntry, 0, len(seedPattern))
	start := now.Add(-time.Duration(len(seedPattern)-1) * seedSpacing)

	for i, isOpen := range seedPattern {
		entry := &models.LogEntry{
			IsOpen:    isOpen,
			CreatedAt: start.Add(time.Duration(i) * seedSpacing),
		}
		if err := store.SaveLog(ctx, entry); err != nil {
			return entries, fmt.Errorf("failed to save seed log %d: %w", i+1, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// migrateCmd applies pending schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Println("Migrations applied")
		return nil
	},
}

// seedCmd inserts sample log entries
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample gate logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := seedLogs(cmd.Context(), store, time.Now().UTC())
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  open=%-5v  %s\n", e.ID, e.IsOpen, e.CreatedAt.Format(time.RFC3339Nano))
		}
		fmt.Printf("Seeded %d logs\n", len(entries))
		return nil
	},
}

// resetLogsCmd drops and recreates the log table
var resetLogsCmd = &cobra.Command{
	Use:   "reset-logs",
	Short: "Delete every gate log",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to delete logs without --yes")
		}

		store, err := openStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.ResetLogs(cmd.Context()); err != nil {
			return fmt.Errorf("failed to reset logs: %w", err)
		}
		fmt.Println("Log table reset")
		return nil
	},
}

// checkCmd tests connectivity of every configured dependency
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test connectivity and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := initLogger(cfg); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		fmt.Println("Testing helmet gate API connectivity...")

		fmt.Printf("Testing storage connection (%s)...\n", cfg.Storage.Type)
		store, err := storage.Open(&cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()
		if err := store.Ping(); err != nil {
			return fmt.Errorf("failed to ping storage: %w", err)
		}
		fmt.Println("✓ Storage connection successful")

		gateCfg, err := store.GetConfig(ctx)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		if gateCfg == nil || gateCfg.WebhookURL == nil {
			fmt.Println("- Webhook URL not configured, skipping hardware check")
		} else {
			fmt.Printf("Testing gate controller at %s...\n", *gateCfg.WebhookURL)
			client := hardware.NewClient(hardware.ClientConfig{
				RequestTimeout: cfg.Hardware.RequestTimeout,
				RetryAttempts:  1,
			}, nil)
			if _, err := client.Status(ctx, *gateCfg.WebhookURL); err != nil {
				fmt.Printf("✗ Gate controller unreachable: %v\n", err)
			} else {
				fmt.Println("✓ Gate controller reachable")
			}
		}

		fmt.Println("Testing weather service...")
		forecaster := weather.NewClient(weather.Config{
			BaseURL:        cfg.Weather.BaseURL,
			Latitude:       cfg.Weather.Latitude,
			Longitude:      cfg.Weather.Longitude,
			Timezone:       cfg.Weather.Timezone,
			RequestTimeout: cfg.Weather.RequestTimeout,
		}, nil)
		if forecast, err := forecaster.Forecast(ctx); err != nil {
			fmt.Printf("✗ Weather service unreachable: %v\n", err)
		} else {
			fmt.Printf("✓ Weather service reachable (%s)\n", forecast.Description)
		}

		fmt.Println("\nConnectivity checks finished")
		return nil
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		if err := cfg.ValidateRelay(); err != nil {
			return fmt.Errorf("relay configuration validation failed: %w", err)
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Environment: %s\n", cfg.App.Environment)
		fmt.Printf("Database: %s\n", cfg.Storage.Type)
		fmt.Printf("API: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("Relay: %s:%d%s\n", cfg.Relay.Host, cfg.Relay.Port, cfg.Relay.StreamPath)
		fmt.Printf("Poller: %v\n", cfg.Poller.Enabled)

		return nil
	},
}

func init() {
	resetLogsCmd.Flags().Bool("yes", false, "confirm deleting every log")
}
