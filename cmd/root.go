package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shiftbook/rosterscan/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "rosterscan",
	Short: "Convert roster images into structured shift records",
	Long:  "Sends a photographed work roster to the remote extraction function, answers its clarifying questions, reconciles job names against your configured jobs, and commits the confirmed shifts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
