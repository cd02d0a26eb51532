package pcie

import (
	"fmt"
	"strings"

	"pcie-bw/pkg/types"
)

// BasisMode selects the link figure downstream layers normalize against
type BasisMode int

const (
	// BasisTLP uses the TLP-layer bandwidth
	BasisTLP BasisMode = iota
	// BasisRaw uses the raw encoded channel bandwidth
	BasisRaw
)

func (m BasisMode) String() string {
	switch m {
	case BasisTLP:
		return "tlp"
	case BasisRaw:
		return "raw"
	}
	return fmt.Sprintf("basis(%d)", int(m))
}

// ParseBasisMode accepts "tlp" or "raw"
func ParseBasisMode(s string) (BasisMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tlp":
		return BasisTLP, nil
	case "raw":
		return BasisRaw, nil
	}
	return 0, types.NewConfigurationError("basis.mode", s, "expected tlp or raw")
}

// Estimate selects nominal or worst-case figures
type Estimate int

const (
	Nominal Estimate = iota
	// WorstCase also deducts data link layer protocol overhead
	WorstCase
)

func (e Estimate) String() string {
	switch e {
	case Nominal:
		return "nominal"
	case WorstCase:
		return "worst-case"
	}
	return fmt.Sprintf("estimate(%d)", int(e))
}

// ParseEstimate accepts "nominal" or "worst-case"
func ParseEstimate(s string) (Estimate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nominal":
		return Nominal, nil
	case "worst-case", "worstcase", "worst":
		return WorstCase, nil
	}
	return 0, types.NewConfigurationError("basis.estimate", s, "expected nominal or worst-case")
}

// Basis is the reference bandwidth every layer of one comparison is
// computed against. It is fixed at construction.
type Basis struct {
	mode      BasisMode
	estimate  Estimate
	reference types.Rate
}

// NewBasis selects the reference figure of cfg
func NewBasis(cfg LinkConfig, mode BasisMode, estimate Estimate) (Basis, error) {
	if cfg.RawBandwidth() <= 0 {
		return Basis{}, types.NewConfigurationError("link", cfg.String(), "link configuration is not initialised")
	}

	var ref types.Rate
	switch mode {
	case BasisTLP:
		ref = cfg.TLPBandwidth()
	case BasisRaw:
		ref = cfg.RawBandwidth()
	default:
		return Basis{}, types.NewConfigurationError("basis.mode", int(mode), "expected tlp or raw")
	}

	switch estimate {
	case Nominal:
	case WorstCase:
		ref -= ref * types.Rate(cfg.DataLinkOverhead())
	default:
		return Basis{}, types.NewConfigurationError("basis.estimate", int(estimate), "expected nominal or worst-case")
	}

	return Basis{mode: mode, estimate: estimate, reference: ref}, nil
}

func (b Basis) Mode() BasisMode { return b.mode }
func (b Basis) Estimate() Estimate { return b.estimate }
func (b Basis) Reference() types.Rate { return b.reference }

func (b Basis) String() string {
	return fmt.Sprintf("%s/%s %s", b.mode, b.estimate, b.reference)
}
