package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pcie-bw/internal/config"
	"pcie-bw/pkg"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "pciebw",
	Short: "PCIe bandwidth model - achievable throughput of PCIe, NIC and Ethernet layers",
	Long: `pciebw models the throughput a PCIe link actually delivers once TLP
headers, read completions, NIC descriptors, doorbells and interrupts are
accounted for, and compares it with an Ethernet line rate.

Features:
  • PCIe gen1..gen7, x1..x32, MPS/MRRS/RCB, ECRC and 32/64-bit addressing
  • Memory write, read and read/write efficiency per transfer size
  • Simple NIC and modern NIC (kernel or poll-mode driver) models
  • Ethernet payload bandwidth with optional VLAN tag and minimum IFG
  • Profiles in YAML, hot reload, gRPC service and Prometheus metrics

Examples:
  pciebw info                          # Summarise the default gen3 x8 profile
  pciebw sweep --gen 4 --lanes 16      # Sweep 64..1500 bytes on gen4 x16
  pciebw sweep --format csv > out.csv  # Full series as CSV
  pciebw detect --iface ens1f0         # Build a profile from a real NIC
  pciebw serve --config profile.yaml   # Serve the model over gRPC`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := pkg.SetLogLevelFromString(logLevel); err != nil {
			return err
		}
		return pkg.SetFormatFromString(logFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Profile file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text, json")
}

// loadProfile reads --config, or the defaults when unset, and applies the
// profile flags given on the command line
func loadProfile(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		if err := applyProfileLogging(cfg); err != nil {
			return nil, err
		}
		pkg.WithField("path", configPath).Debug("profile loaded")
	}
	if err := applyProfileFlags(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyProfileLogging applies the log section of a loaded profile unless
// the matching flag was given
func applyProfileLogging(cfg *config.Config) error {
	flags := rootCmd.PersistentFlags()
	if cfg.Log.Level != "" && !flags.Changed("log-level") {
		if err := pkg.SetLogLevelFromString(cfg.Log.Level); err != nil {
			return err
		}
	}
	if cfg.Log.Format != "" && !flags.Changed("log-format") {
		return pkg.SetFormatFromString(cfg.Log.Format)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
