package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"factory-scheduler/internal/app"
	"factory-scheduler/internal/config"
	"factory-scheduler/internal/engine"
	"factory-scheduler/internal/order"
	"factory-scheduler/internal/util"
)

var simulateOpts struct {
	productID int64
	quantity  int
	start     string
	deadline  string
	tenant    string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Compute a schedule without committing it and print the result as JSON",
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.Int64Var(&simulateOpts.productID, "product", 0, "product id")
	f.IntVar(&simulateOpts.quantity, "quantity", 0, "quantity to produce")
	f.StringVar(&simulateOpts.start, "start", "", "earliest start (default now)")
	f.StringVar(&simulateOpts.deadline, "deadline", "", "desired deadline")
	f.StringVar(&simulateOpts.tenant, "tenant", "", "tenant id (default from config)")
	_ = simulateCmd.MarkFlagRequired("product")
	_ = simulateCmd.MarkFlagRequired("quantity")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg, os.Stderr)
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	var start *time.Time
	if simulateOpts.start != "" {
		t, err := engine.ParseDeadline(simulateOpts.start, loc)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		start = &t
	}
	tenant := simulateOpts.tenant
	if tenant == "" {
		tenant = cfg.DefaultTenant
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, _ := util.EnsureTraceID(cmd.Context())
	result, err := a.Service.Simulate(ctx, order.SimulateRequest{
		ProductID:    simulateOpts.productID,
		Quantity:     simulateOpts.quantity,
		TenantID:     tenant,
		Start:        start,
		DeadlineDate: simulateOpts.deadline,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
