package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pcie-bw/pkg/sweep"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Summarise the PCIe and Ethernet configuration of a profile",
	Long: `Print the link parameters, the raw and TLP-layer bandwidth, TLP overheads
and the Ethernet figures of the profile.

Examples:
  pciebw info
  pciebw info --gen 5 --lanes 16 --eth 200GigE
  pciebw info --config profile.yaml --estimate worst-case`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	addProfileFlags(infoCmd.Flags())
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadProfile(cmd)
	if err != nil {
		return err
	}
	model, _, err := cfg.Build()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), formatInfo(model))
	return nil
}

func formatInfo(m sweep.Model) string {
	link := m.Link
	code, _ := link.Generation().Spec()
	p := newPrinter()

	var b strings.Builder
	b.WriteString("PCIe Config:\n")
	b.WriteString(fmt.Sprintf("  Version:    %s (%.1f GT/s, %s)\n", link.Generation(), code.TransferRate, code.Code))
	b.WriteString(fmt.Sprintf("  Lanes:      %s\n", link.Lanes()))
	b.WriteString(fmt.Sprintf("  Addr bits:  %d\n", int(link.AddressWidth())))
	b.WriteString(fmt.Sprintf("  ECRC:       %t\n", link.ECRC()))
	b.WriteString(fmt.Sprintf("  MPS:        %d\n", link.MPS()))
	b.WriteString(fmt.Sprintf("  MRRS:       %d\n", link.MRRS()))
	b.WriteString(fmt.Sprintf("  RCB:        %d (completions split at %s)\n", link.RCB(), link.CompletionSplit()))
	b.WriteString(fmt.Sprintf("  TLP BW:     %.2f Gb/s\n", link.TLPBandwidth().Gbps()))
	b.WriteString(fmt.Sprintf("  RAW BW:     %.2f Gb/s\n", link.RawBandwidth().Gbps()))
	b.WriteString(fmt.Sprintf("  MWr/MRd:    %d bytes\n", link.MemWriteOverhead()))
	b.WriteString(fmt.Sprintf("  CplD:       %d bytes\n", link.CompletionOverhead()))
	b.WriteString(fmt.Sprintf("  DLL:        %.2f%% of link time\n", 100*link.DataLinkOverhead()))
	b.WriteString(fmt.Sprintf("  Basis:      %s\n", m.Basis))

	e := m.Ethernet
	b.WriteString("\nEthernet Config:\n")
	b.WriteString(fmt.Sprintf("  Rate:       %s\n", e))
	b.WriteString(fmt.Sprintf("  Overhead:   %d bytes per frame\n", e.FrameOverhead()))
	b.WriteString("  Frame        Packets/s          Gb/s      Time\n")
	for _, frame := range []int{64, 128, 256, 512, 1024, 1518, 9000} {
		pps, err := e.PacketRateForFrame(frame)
		if err != nil {
			continue
		}
		bw, _ := e.BandwidthForFrame(frame)
		d, _ := e.FrameTime(frame)
		b.WriteString(p.Sprintf("  %-8d %13.0f %13.3f %9v\n", frame, pps, bw.Gbps(), d))
	}

	n := m.NIC
	b.WriteString("\nNIC Config:\n")
	b.WriteString(fmt.Sprintf("  Descriptor: %d bytes\n", n.DescriptorSize))
	b.WriteString(fmt.Sprintf("  Batch:      %d packets (poll-mode)\n", n.BatchSize))
	b.WriteString(fmt.Sprintf("  Duplex:     %s\n", n.Duplex))
	return b.String()
}
