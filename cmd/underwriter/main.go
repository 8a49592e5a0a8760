package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hatsunemiku3939/underwriter/config"
	"github.com/hatsunemiku3939/underwriter/pkg/log"
)

var rootCmd = &cobra.Command{
	Use:          "underwriter",
	Short:        "Validate extracted proposal documents against their proposal",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}
		logger := log.InitLog(log.Level(cfg.Service.LogLevel), cfg.Service.LogFormat)
		zap.ReplaceGlobals(logger)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
