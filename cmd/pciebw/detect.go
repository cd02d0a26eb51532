package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pcie-bw/pkg"
)

var (
	// Detect command flags
	detectIface     string
	detectPCI       string
	detectSysfsRoot string
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Build a profile from the PCIe link and speed of a real NIC",
	Long: `Read the negotiated PCIe link of a network device from sysfs and its
Ethernet speed from ethtool, and print the resulting profile as YAML.

MPS and MRRS are not exposed by sysfs and keep their profile values.

Examples:
  pciebw detect --iface ens1f0 > profile.yaml
  pciebw detect --pci 0000:3b:00.0
  pciebw detect --iface ens1f0 --estimate worst-case`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
	addProfileFlags(detectCmd.Flags())

	detectCmd.Flags().StringVarP(&detectIface, "iface", "i", "", "Network interface name")
	detectCmd.Flags().StringVar(&detectPCI, "pci", "", "PCI address, e.g. 0000:3b:00.0")
	detectCmd.Flags().StringVar(&detectSysfsRoot, "sysfs-root", pkg.DefaultSysfsRoot, "Mount point of sysfs")
}

func runDetect(cmd *cobra.Command, args []string) error {
	if detectIface == "" && detectPCI == "" {
		return fmt.Errorf("either --iface or --pci is required")
	}

	cfg, err := loadProfile(cmd)
	if err != nil {
		return err
	}

	address := detectPCI
	if detectIface != "" {
		if address == "" {
			if address, err = pkg.NetDevicePCIAddress(detectSysfsRoot, detectIface); err != nil {
				return err
			}
		}

		nif, err := pkg.InspectInterface(detectIface)
		switch {
		case err != nil:
			pkg.WithError(err).WithField("interface", detectIface).Warn("keeping profile line rate")
		case nif.LineRate == 0:
			pkg.WithFields(map[string]interface{}{
				"interface": detectIface,
				"speed":     nif.SpeedMbps,
			}).Warn("link speed has no Ethernet line rate, keeping profile value")
		default:
			cfg.Ethernet.LineRate = nif.LineRate.String()
			pkg.WithFields(map[string]interface{}{
				"interface": detectIface,
				"driver":    nif.Driver,
				"rx_ring":   nif.RxRing,
				"tx_ring":   nif.TxRing,
			}).Info("detected " + nif.LineRate.String())
		}
	}

	link, err := pkg.ReadPCIeLink(detectSysfsRoot, address)
	if err != nil {
		return err
	}
	if link.Downgraded() {
		pkg.WithFields(map[string]interface{}{
			"address": address,
			"speed":   link.Speed,
			"width":   link.Width,
			"max":     fmt.Sprintf("%s x%d", link.MaxSpeed, link.MaxWidth),
		}).Warn("PCIe link trained below its capability")
	}
	cfg.PCIe.Generation = link.Generation.String()
	cfg.PCIe.Lanes = int(link.Lanes)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("detected profile is invalid: %w", err)
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
