package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pcie-bw/internal/config"
	"pcie-bw/pkg"
	"pcie-bw/pkg/sweep"
)

var (
	// Sweep command flags
	sweepFormat string
	sweepSample int
	sweepWatch  bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Compute throughput over a range of transfer sizes",
	Long: `Evaluate every series of the model for each transfer size of the profile.

Series:
  • PCIe memory write, read and simultaneous read/write
  • Ethernet payload bandwidth at the profile line rate
  • Simple NIC, modern NIC with kernel driver, modern NIC with poll-mode driver

By default every 64th row is printed, use --sample 0 for all rows.

Examples:
  pciebw sweep
  pciebw sweep --gen 4 --lanes 16 --eth 100GigE
  pciebw sweep --sizes 64-9000 --sample 256 --format detailed
  pciebw sweep --format csv --sample 0 > gen3x8.csv
  pciebw sweep --config profile.yaml --watch`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	addProfileFlags(sweepCmd.Flags())

	sweepCmd.Flags().StringVarP(&sweepFormat, "format", "f", "table", "Output format: table, json, csv, simple, detailed")
	sweepCmd.Flags().IntVar(&sweepSample, "sample", -1, "Print every n-th row, 0 for all rows (default from profile)")
	sweepCmd.Flags().BoolVarP(&sweepWatch, "watch", "w", false, "Re-run the sweep whenever --config changes")
}

func runSweep(cmd *cobra.Command, args []string) error {
	if err := validateFormat(sweepFormat); err != nil {
		return err
	}
	if sweepWatch && configPath == "" {
		return fmt.Errorf("--watch requires --config")
	}

	cfg, err := loadProfile(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if err := printSweep(ctx, out, cfg); err != nil {
		return err
	}
	if !sweepWatch {
		return nil
	}

	monitor, err := newFSMonitor(configPath, func() {
		cfg, err := loadProfile(cmd)
		if err != nil {
			pkg.WithError(err).Warn("ignoring invalid profile")
			return
		}
		if err := printSweep(ctx, out, cfg); err != nil {
			pkg.WithError(err).Error("sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create file system monitor: %w", err)
	}
	if err := monitor.start(); err != nil {
		return fmt.Errorf("failed to watch %s: %w", configPath, err)
	}
	defer monitor.stop()

	<-ctx.Done()
	return nil
}

// printSweep runs the sweep of cfg and writes the sampled rows to out
func printSweep(ctx context.Context, out io.Writer, cfg *config.Config) error {
	model, sweepCfg, err := cfg.Build()
	if err != nil {
		return err
	}
	pkg.WithFields(map[string]interface{}{
		"link":  model.Link.String(),
		"basis": model.Basis.String(),
		"sizes": len(sweepCfg.Sizes),
	}).Info("running sweep")

	rows, err := sweep.Run(ctx, model, sweepCfg)
	if err != nil {
		return err
	}

	sample := cfg.Sweep.Sample
	if sweepSample >= 0 {
		sample = sweepSample
	}
	text, err := formatRows(sweepFormat, sweep.Sample(rows, sample), model.Ethernet.LineRate())
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, text)
	return err
}

