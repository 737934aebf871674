// File: cmd/gaterelay/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartdevs17/helmetgate/internal/config"
	"github.com/smartdevs17/helmetgate/internal/metrics"
	"github.com/smartdevs17/helmetgate/internal/middleware"
	"github.com/smartdevs17/helmetgate/internal/relay"
	"github.com/smartdevs17/helmetgate/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "gaterelay",
	Short:   "Helmet detection gate websocket relay",
	Long:    `Websocket echo relay for the helmet detection gate camera, with an optional auth service passthrough.`,
	Version: AppVersion,
	RunE:    runRelay,
}

// serveCmd is an explicit alias for the root command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	RunE:  runRelay,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Helmet Gate Relay %s\n", AppVersion)
	},
}

// runRelay runs the relay until an interrupt or SIGTERM arrives
func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if level := viper.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.ValidateRelay(); err != nil {
		return fmt.Errorf("invalid relay configuration: %w", err)
	}

	logCfg := cfg.Logging
	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := utils.ComponentLogger("gaterelay")

	srv, err := relay.NewServer(&relay.Config{
		Host:           cfg.Relay.Host,
		Port:           cfg.Relay.Port,
		StreamPath:     cfg.Relay.StreamPath,
		CORSOrigins:    middleware.ParseOrigins(cfg.Relay.CORSOrigin),
		AuthServiceURL: cfg.Relay.AuthServiceURL,
		ReadLimit:      cfg.Relay.ReadLimit,
		PingInterval:   cfg.Relay.PingInterval,
		EnableMetrics:  cfg.Relay.EnableMetrics,
	}, relay.NewAuthenticator(cfg.Relay.AuthTokens), metrics.NewManager())
	if err != nil {
		return fmt.Errorf("failed to create relay server: %w", err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	if err := srv.Start(); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"version":     AppVersion,
		"auth_tokens": len(cfg.Relay.AuthTokens),
		"auth_proxy":  cfg.Relay.AuthServiceURL != "",
	}).Info("Helmet gate relay started successfully")

	<-signalChan
	fmt.Println("\nReceived shutdown signal, stopping relay...")

	if err := srv.Stop(context.Background()); err != nil {
		logger.WithError(err).Error("Failed to stop relay server")
		return err
	}
	logger.Info("Helmet gate relay stopped")
	return nil
}

// init initializes the CLI commands
func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// main is the entry point
func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
