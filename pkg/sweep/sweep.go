// Package sweep evaluates every layer of a bandwidth model over a range of
// transfer sizes and assembles the results into rows.
package sweep

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"pcie-bw/pkg"
	"pcie-bw/pkg/eth"
	"pcie-bw/pkg/nic"
	"pcie-bw/pkg/pcie"
	"pcie-bw/pkg/types"
)

const (
	// DefaultMinSize and DefaultMaxSize bound the default size range
	DefaultMinSize = 64
	DefaultMaxSize = 1500
	// DefaultHeaderAllowance is subtracted from every size before
	// evaluation, modelling a frame size that carries a 4 byte header
	DefaultHeaderAllowance = 4
	// DefaultSampleEvery is the row stride of the sampled table
	DefaultSampleEvery = 64
)

// Model is a built set of layer configurations evaluated together.
// Every figure of one model shares Basis as its reference.
type Model struct {
	Link     pcie.LinkConfig
	Basis    pcie.Basis
	Ethernet eth.LinkConfig
	NIC      nic.Options
}

// Row holds the figures for one transfer size in Gb/s. NIC figures are the
// transmit side of a bidirectional transfer.
type Row struct {
	Size      int     `json:"size" csv:"size"`
	Payload   int     `json:"payload" csv:"payload"`
	Write     float64 `json:"pcie_write_gbps" csv:"pcie_write_gbps"`
	Read      float64 `json:"pcie_read_gbps" csv:"pcie_read_gbps"`
	ReadWrite float64 `json:"pcie_read_write_gbps" csv:"pcie_read_write_gbps"`
	Ethernet  float64 `json:"ethernet_gbps" csv:"ethernet_gbps"`
	SimpleNIC float64 `json:"simple_nic_gbps" csv:"simple_nic_gbps"`
	KernelNIC float64 `json:"modern_nic_kernel_gbps" csv:"modern_nic_kernel_gbps"`
	PMDNIC    float64 `json:"modern_nic_pmd_gbps" csv:"modern_nic_pmd_gbps"`
}

// Series returns the seven figures of r in column order
func (r Row) Series() []float64 {
	return []float64{r.Write, r.Read, r.ReadWrite, r.Ethernet, r.SimpleNIC, r.KernelNIC, r.PMDNIC}
}

// SeriesNames names the values returned by Row.Series
func SeriesNames(ethernet eth.LineRate) []string {
	return []string{
		"PCIe Write",
		"PCIe Read",
		"PCIe Read/Write",
		ethernet.String(),
		"Simple NIC",
		"Modern NIC (kernel)",
		"Modern NIC (PMD)",
	}
}

// Config controls a sweep
type Config struct {
	Sizes           []int
	HeaderAllowance int
	// Workers bounds concurrent evaluations, 0 means GOMAXPROCS
	Workers int
}

// DefaultConfig sweeps 64..1500 bytes with a 4 byte allowance
func DefaultConfig() Config {
	return Config{
		Sizes:           Range(DefaultMinSize, DefaultMaxSize),
		HeaderAllowance: DefaultHeaderAllowance,
	}
}

// Range returns the sizes lo..hi inclusive
func Range(lo, hi int) []int {
	if hi < lo {
		return nil
	}
	sizes := make([]int, 0, hi-lo+1)
	for s := lo; s <= hi; s++ {
		sizes = append(sizes, s)
	}
	return sizes
}

// Evaluate computes one row. The layers see size minus allowance.
func (m Model) Evaluate(size, allowance int) (Row, error) {
	payload := size - allowance
	if err := types.CheckSize(payload); err != nil {
		return Row{}, err
	}
	row := Row{Size: size, Payload: payload}

	w, err := pcie.Write(m.Link, m.Basis, payload)
	if err != nil {
		return Row{}, err
	}
	r, err := pcie.Read(m.Link, m.Basis, payload)
	if err != nil {
		return Row{}, err
	}
	rw, err := pcie.ReadWrite(m.Link, m.Basis, payload)
	if err != nil {
		return Row{}, err
	}
	e, err := m.Ethernet.EffectiveBandwidth(payload)
	if err != nil {
		return Row{}, err
	}

	opt := nic.WithOptions(m.NIC)
	simple, err := nic.Simple(m.Link, m.Basis, types.Both, payload, opt)
	if err != nil {
		return Row{}, err
	}
	kernel, err := nic.Modern(m.Link, m.Basis, types.Both, payload, nic.KernelDriver, opt)
	if err != nil {
		return Row{}, err
	}
	pmd, err := nic.Modern(m.Link, m.Basis, types.Both, payload, nic.PollMode, opt)
	if err != nil {
		return Row{}, err
	}

	row.Write = w.Transmit.Gbps()
	row.Read = r.Receive.Gbps()
	row.ReadWrite = rw.Transmit.Gbps()
	row.Ethernet = e.Gbps()
	row.SimpleNIC = simple.Transmit.Gbps()
	row.KernelNIC = kernel.Transmit.Gbps()
	row.PMDNIC = pmd.Transmit.Gbps()
	return row, nil
}

// Run evaluates every size of cfg concurrently. Rows are returned in the
// order of cfg.Sizes. The first error cancels the remaining work.
func Run(ctx context.Context, m Model, cfg Config) ([]Row, error) {
	if len(cfg.Sizes) == 0 {
		return nil, types.NewConfigurationError("sweep.sizes", "", "no sizes to evaluate")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	start := time.Now()
	rows := make([]Row, len(cfg.Sizes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, size := range cfg.Sizes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			row, err := m.Evaluate(size, cfg.HeaderAllowance)
			if err != nil {
				return fmt.Errorf("size %d: %w", size, err)
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pkg.Debug("swept %d sizes on %s with %d workers in %v", len(rows), m.Link, workers, time.Since(start))
	return rows, nil
}

// Sample returns every n-th row starting with the first
func Sample(rows []Row, n int) []Row {
	if n <= 1 {
		return rows
	}
	out := make([]Row, 0, len(rows)/n+1)
	for i := 0; i < len(rows); i += n {
		out = append(out, rows[i])
	}
	return out
}
