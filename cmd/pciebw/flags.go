package main

import (
	"github.com/spf13/pflag"

	"pcie-bw/internal/config"
)

// addProfileFlags registers the flags that override profile values
func addProfileFlags(fs *pflag.FlagSet) {
	fs.String("gen", "", "PCIe generation (gen1..gen7)")
	fs.Int("lanes", 0, "PCIe link width (1, 2, 4, 8, 16, 32)")
	fs.Int("addr", 0, "Address width of memory requests (32 or 64)")
	fs.Bool("ecrc", false, "Append an ECRC digest to every TLP")
	fs.Int("mps", 0, "Maximum payload size")
	fs.Int("mrrs", 0, "Maximum read request size")
	fs.Int("rcb", 0, "Read completion boundary (64 or 128), used with --split rcb")
	fs.String("split", "", "Completion split: mps or rcb")
	fs.String("basis", "", "Reference bandwidth: tlp or raw")
	fs.String("estimate", "", "Estimate: nominal or worst-case")
	fs.String("eth", "", "Ethernet line rate (GigE..400GigE)")
	fs.Bool("vlan", false, "Tag Ethernet frames with VLAN")
	fs.Bool("min-ifg", false, "Use the minimum inter-frame gap")
	fs.Int("batch", 0, "Poll-mode driver batch size")
	fs.String("duplex", "", "Duplex policy: independent or shared")
	fs.String("sizes", "", "Transfer sizes, e.g. 64-1500,9000")
	fs.Int("allowance", -1, "Header allowance subtracted from each size")
}

// applyProfileFlags copies every flag set on the command line into cfg
func applyProfileFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	strs := map[string]*string{
		"gen":      &cfg.PCIe.Generation,
		"split":    &cfg.PCIe.CompletionSplit,
		"basis":    &cfg.Basis.Mode,
		"estimate": &cfg.Basis.Estimate,
		"eth":      &cfg.Ethernet.LineRate,
		"duplex":   &cfg.NIC.Duplex,
		"sizes":    &cfg.Sweep.Sizes,
	}
	ints := map[string]*int{
		"lanes":     &cfg.PCIe.Lanes,
		"addr":      &cfg.PCIe.AddressWidth,
		"mps":       &cfg.PCIe.MPS,
		"mrrs":      &cfg.PCIe.MRRS,
		"rcb":       &cfg.PCIe.RCB,
		"batch":     &cfg.NIC.BatchSize,
		"allowance": &cfg.Sweep.HeaderAllowance,
	}
	bools := map[string]*bool{
		"ecrc":    &cfg.PCIe.ECRC,
		"vlan":    &cfg.Ethernet.VLAN,
		"min-ifg": &cfg.Ethernet.MinimumIFG,
	}

	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		if p, ok := strs[f.Name]; ok {
			*p, err = fs.GetString(f.Name)
		} else if p, ok := ints[f.Name]; ok {
			*p, err = fs.GetInt(f.Name)
		} else if p, ok := bools[f.Name]; ok {
			*p, err = fs.GetBool(f.Name)
		}
	})
	return err
}
