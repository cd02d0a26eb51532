// Package pcie models the bandwidth a PCIe link delivers to memory
// transactions once transaction layer packet (TLP) overheads are accounted
// for.
package pcie

import (
	"fmt"
	"strconv"
	"strings"

	"pcie-bw/pkg/types"
)

// Generation is a PCIe base specification generation
type Generation int

const (
	Gen1 Generation = iota + 1
	Gen2
	Gen3
	Gen4
	Gen5
	Gen6
	Gen7
)

// Generations lists the supported generations in ascending order
func Generations() []Generation {
	return []Generation{Gen1, Gen2, Gen3, Gen4, Gen5, Gen6, Gen7}
}

// LineCode is the physical layer encoding, Payload bits carried per Total bits
type LineCode struct {
	Payload int
	Total   int
}

// Efficiency returns Payload/Total
func (c LineCode) Efficiency() float64 {
	return float64(c.Payload) / float64(c.Total)
}

func (c LineCode) String() string {
	return fmt.Sprintf("%db/%db", c.Payload, c.Total)
}

// GenerationSpec holds the signaling constants of one generation
type GenerationSpec struct {
	TransferRate float64 // GT/s per lane
	Code         LineCode
}

// Spec returns the signaling constants for g. The second value is false
// for an unsupported generation.
func (g Generation) Spec() (GenerationSpec, bool) {
	switch g {
	case Gen1:
		return GenerationSpec{TransferRate: 2.5, Code: LineCode{8, 10}}, true
	case Gen2:
		return GenerationSpec{TransferRate: 5.0, Code: LineCode{8, 10}}, true
	case Gen3:
		return GenerationSpec{TransferRate: 8.0, Code: LineCode{128, 130}}, true
	case Gen4:
		return GenerationSpec{TransferRate: 16.0, Code: LineCode{128, 130}}, true
	case Gen5:
		return GenerationSpec{TransferRate: 32.0, Code: LineCode{128, 130}}, true
	case Gen6:
		return GenerationSpec{TransferRate: 64.0, Code: LineCode{242, 256}}, true
	case Gen7:
		return GenerationSpec{TransferRate: 128.0, Code: LineCode{242, 256}}, true
	}
	return GenerationSpec{}, false
}

// LaneRate returns the encoded per-lane bandwidth
func (g Generation) LaneRate() types.Rate {
	spec, ok := g.Spec()
	if !ok {
		return 0
	}
	return types.GbpsRate(spec.TransferRate * spec.Code.Efficiency())
}

func (g Generation) String() string {
	if _, ok := g.Spec(); !ok {
		return fmt.Sprintf("gen(%d)", int(g))
	}
	return fmt.Sprintf("gen%d", int(g))
}

// ParseGeneration accepts "gen3", "Gen3" or "3"
func ParseGeneration(s string) (Generation, error) {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "gen")
	n, err := strconv.Atoi(v)
	if err == nil {
		if _, ok := Generation(n).Spec(); ok {
			return Generation(n), nil
		}
	}
	return 0, types.NewConfigurationError("generation", s, "expected gen1..gen7")
}

// Lanes is the link width
type Lanes int

// LaneWidths lists the supported link widths
func LaneWidths() []Lanes {
	return []Lanes{1, 2, 4, 8, 16, 32}
}

// Valid reports whether l is a supported power-of-two width
func (l Lanes) Valid() bool {
	return l > 0 && l <= 32 && l&(l-1) == 0
}

func (l Lanes) String() string {
	return fmt.Sprintf("x%d", int(l))
}

// ParseLanes accepts "x8" or "8"
func ParseLanes(s string) (Lanes, error) {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "x")
	n, err := strconv.Atoi(v)
	if err != nil || !Lanes(n).Valid() {
		return 0, types.NewConfigurationError("lanes", s, "expected x1, x2, x4, x8, x16 or x32")
	}
	return Lanes(n), nil
}

// AddressWidth is the width of memory request addresses in bits
type AddressWidth int

const (
	Addr32 AddressWidth = 32
	Addr64 AddressWidth = 64
)

// CompletionSplit selects how a completer chunks read completions
type CompletionSplit int

const (
	// SplitAtMPS returns completions of up to MPS bytes
	SplitAtMPS CompletionSplit = iota
	// SplitAtRCB returns completions that end at every RCB boundary
	SplitAtRCB
)

func (c CompletionSplit) String() string {
	switch c {
	case SplitAtMPS:
		return "mps"
	case SplitAtRCB:
		return "rcb"
	}
	return fmt.Sprintf("split(%d)", int(c))
}

// ParseCompletionSplit accepts "mps" or "rcb"
func ParseCompletionSplit(s string) (CompletionSplit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mps":
		return SplitAtMPS, nil
	case "rcb":
		return SplitAtRCB, nil
	}
	return 0, types.NewConfigurationError("completion_split", s, "expected mps or rcb")
}

// PayloadSizes lists the values allowed for MPS and MRRS
func PayloadSizes() []int {
	return []int{128, 256, 512, 1024, 2048, 4096}
}

// CompletionBoundaries lists the values allowed for RCB
func CompletionBoundaries() []int {
	return []int{64, 128}
}

func contains(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// Params are the inputs of NewLinkConfig
type Params struct {
	Generation   Generation
	Lanes        Lanes
	AddressWidth AddressWidth
	ECRC         bool
	MPS          int
	MRRS         int
	// RCB only changes completion counts with SplitAtRCB
	RCB int

	CompletionSplit CompletionSplit
	// Overheads overrides DefaultTLPOverheads when set
	Overheads *TLPOverheads
}

// DefaultParams is a Gen3 x8 link with 64-bit addressing, no ECRC,
// MPS 256, MRRS 512 and RCB 64
func DefaultParams() Params {
	return Params{
		Generation:   Gen3,
		Lanes:        8,
		AddressWidth: Addr64,
		MPS:          256,
		MRRS:         512,
		RCB:          64,
	}
}

// LinkConfig is an immutable, validated PCIe link configuration
type LinkConfig struct {
	gen       Generation
	lanes     Lanes
	addr      AddressWidth
	ecrc      bool
	mps       int
	mrrs      int
	rcb       int
	split     CompletionSplit
	overheads TLPOverheads

	raw types.Rate
	tlp types.Rate
}

// NewLinkConfig validates p and derives the raw and TLP-layer bandwidth
func NewLinkConfig(p Params) (LinkConfig, error) {
	if _, ok := p.Generation.Spec(); !ok {
		return LinkConfig{}, types.NewConfigurationError("generation", p.Generation, "expected gen1..gen7")
	}
	if !p.Lanes.Valid() {
		return LinkConfig{}, types.NewConfigurationError("lanes", int(p.Lanes), "expected a power of two between 1 and 32")
	}
	if p.AddressWidth != Addr32 && p.AddressWidth != Addr64 {
		return LinkConfig{}, types.NewConfigurationError("address_width", int(p.AddressWidth), "expected 32 or 64")
	}
	if !contains(PayloadSizes(), p.MPS) {
		return LinkConfig{}, types.NewConfigurationError("mps", p.MPS, "expected one of 128, 256, 512, 1024, 2048, 4096")
	}
	if !contains(PayloadSizes(), p.MRRS) {
		return LinkConfig{}, types.NewConfigurationError("mrrs", p.MRRS, "expected one of 128, 256, 512, 1024, 2048, 4096")
	}
	if !contains(CompletionBoundaries(), p.RCB) {
		return LinkConfig{}, types.NewConfigurationError("rcb", p.RCB, "expected 64 or 128")
	}
	if p.CompletionSplit != SplitAtMPS && p.CompletionSplit != SplitAtRCB {
		return LinkConfig{}, types.NewConfigurationError("completion_split", int(p.CompletionSplit), "expected mps or rcb")
	}

	overheads := DefaultTLPOverheads()
	if p.Overheads != nil {
		overheads = *p.Overheads
	}
	if err := overheads.validate(); err != nil {
		return LinkConfig{}, err
	}

	c := LinkConfig{
		gen:       p.Generation,
		lanes:     p.Lanes,
		addr:      p.AddressWidth,
		ecrc:      p.ECRC,
		mps:       p.MPS,
		mrrs:      p.MRRS,
		rcb:       p.RCB,
		split:     p.CompletionSplit,
		overheads: overheads,
	}
	c.raw = p.Generation.LaneRate() * types.Rate(p.Lanes)
	c.tlp = c.raw * types.Rate(c.mps) / types.Rate(c.mps+c.MemWriteOverhead())
	return c, nil
}

func (c LinkConfig) Generation() Generation { return c.gen }
func (c LinkConfig) Lanes() Lanes { return c.lanes }
func (c LinkConfig) AddressWidth() AddressWidth { return c.addr }
func (c LinkConfig) ECRC() bool { return c.ecrc }
func (c LinkConfig) MPS() int { return c.mps }
func (c LinkConfig) MRRS() int { return c.mrrs }
func (c LinkConfig) RCB() int { return c.rcb }
func (c LinkConfig) CompletionSplit() CompletionSplit { return c.split }
func (c LinkConfig) Overheads() TLPOverheads { return c.overheads }

// Params returns the inputs c was built from
func (c LinkConfig) Params() Params {
	overheads := c.overheads
	return Params{
		Generation:      c.gen,
		Lanes:           c.lanes,
		AddressWidth:    c.addr,
		ECRC:            c.ecrc,
		MPS:             c.mps,
		MRRS:            c.mrrs,
		RCB:             c.rcb,
		CompletionSplit: c.split,
		Overheads:       &overheads,
	}
}

// RawBandwidth is the encoded signaling bandwidth of all lanes
func (c LinkConfig) RawBandwidth() types.Rate {
	return c.raw
}

// TLPBandwidth is the best case bandwidth left for payload when every TLP
// carries MPS bytes
func (c LinkConfig) TLPBandwidth() types.Rate {
	return c.tlp
}

// DataLinkOverhead is the fraction of link time spent on ACK and flow
// control DLLPs and SKIP ordered sets
func (c LinkConfig) DataLinkOverhead() float64 {
	return dataLinkOverhead(c.gen, c.lanes, c.mps)
}

// MemWriteOverhead is the number of non-payload bytes of one memory write TLP
func (c LinkConfig) MemWriteOverhead() int {
	return c.overheads.memRequest(c.addr, c.ecrc)
}

// MemReadOverhead is the size of one memory read request TLP
func (c LinkConfig) MemReadOverhead() int {
	return c.overheads.memRequest(c.addr, c.ecrc)
}

// CompletionOverhead is the number of non-payload bytes of one completion
// with data
func (c LinkConfig) CompletionOverhead() int {
	return c.overheads.completion(c.ecrc)
}

// WriteTLPs is the number of memory write TLPs needed for n bytes
func (c LinkConfig) WriteTLPs(n int) int {
	return ceilDiv(n, c.mps)
}

// ReadRequests is the number of memory read requests needed for n bytes
func (c LinkConfig) ReadRequests(n int) int {
	return ceilDiv(n, c.mrrs)
}

// Completions is the number of completions returned for a read of n bytes
// starting at an aligned address. Every request is completed separately,
// so the result is never below ReadRequests(n).
func (c LinkConfig) Completions(n int) int {
	chunk := c.mps
	if c.split == SplitAtRCB && c.rcb < chunk {
		chunk = c.rcb
	}
	full, rem := n/c.mrrs, n%c.mrrs
	return full*ceilDiv(c.mrrs, chunk) + ceilDiv(rem, chunk)
}

// WriteWireBytes is the number of bytes on the link for a write of n bytes
func (c LinkConfig) WriteWireBytes(n int) int {
	return n + c.WriteTLPs(n)*c.MemWriteOverhead()
}

// ReadRequestWireBytes is the number of bytes of read requests for a read
// of n bytes
func (c LinkConfig) ReadRequestWireBytes(n int) int {
	return c.ReadRequests(n) * c.MemReadOverhead()
}

// CompletionWireBytes is the number of bytes of completions for a read of
// n bytes
func (c LinkConfig) CompletionWireBytes(n int) int {
	return n + c.Completions(n)*c.CompletionOverhead()
}

func (c LinkConfig) String() string {
	return fmt.Sprintf("%s %s", c.gen, c.lanes)
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return 1 + (n-1)/d
}
