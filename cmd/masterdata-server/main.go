package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"factory-scheduler/internal/masterdata"
	"factory-scheduler/internal/persistence"
)

// main 是主数据服务的入口，对外提供主数据文件中的设备名称
func main() {
	var addr, catalogPath string

	cmd := &cobra.Command{
		Use:          "masterdata-server",
		Short:        "Serve equipment master data over HTTP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "masterdata")
			slog.SetDefault(logger)

			catalog, err := persistence.LoadCatalog(catalogPath, time.Local)
			if err != nil {
				return err
			}
			logger.Info("=== 主数据服务启动 ===", "addr", addr, "equipment", len(catalog.Equipment()))
			return http.ListenAndServe(addr, masterdata.NewHandler(catalog, logger))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8081", "listen address")
	cmd.Flags().StringVar(&catalogPath, "catalog", "catalog.yaml", "master data file")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
