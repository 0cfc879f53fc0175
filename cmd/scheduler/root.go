package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"factory-scheduler/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "scheduler",
	Short:        "Production scheduling service",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (default ./config.yaml)")
}

// newLogger 创建 JSON 格式的日志记录器，并设为默认
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}
