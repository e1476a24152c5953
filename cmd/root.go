package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/freightpool/absorb/app"
	"github.com/freightpool/absorb/config"
	"github.com/freightpool/absorb/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "absorb",
	Short: "Cargo absorption coordinator",
	Long:  "Detects absorption opportunities between nearby trucks, coordinates QR handovers and allocates pending deliveries onto routes.",
	RunE:  run,
}

func init() {
	cobra.OnInitialize(func() {
		// A missing .env file is fine; variables may come from the real env.
		_ = godotenv.Load()
	})
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
