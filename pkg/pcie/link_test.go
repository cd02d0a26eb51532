package pcie

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcie-bw/pkg/types"
)

func mustConfig(t *testing.T, p Params) LinkConfig {
	t.Helper()
	cfg, err := NewLinkConfig(p)
	require.NoError(t, err)
	return cfg
}

func TestGen3x8Link(t *testing.T) {
	cfg := mustConfig(t, DefaultParams())

	assert.InDelta(t, 7.876923, Gen3.LaneRate().Gbps(), 1e-6)
	assert.InDelta(t, 63.015385, cfg.RawBandwidth().Gbps(), 1e-6)
	assert.Equal(t, 24, cfg.MemWriteOverhead())
	assert.Equal(t, 24, cfg.MemReadOverhead())
	assert.Equal(t, 20, cfg.CompletionOverhead())
	assert.InDelta(t, 63.015385*256/280, cfg.TLPBandwidth().Gbps(), 1e-6)
	assert.Equal(t, "gen3 x8", cfg.String())
}

func TestLaneRates(t *testing.T) {
	tests := []struct {
		gen  Generation
		want float64
	}{
		{Gen1, 2.0},
		{Gen2, 4.0},
		{Gen3, 8.0 * 128 / 130},
		{Gen4, 16.0 * 128 / 130},
		{Gen5, 32.0 * 128 / 130},
		{Gen6, 64.0 * 242 / 256},
		{Gen7, 128.0 * 242 / 256},
	}
	for _, tt := range tests {
		t.Run(tt.gen.String(), func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.gen.LaneRate().Gbps(), 1e-9)
		})
	}
}

func TestTLPBelowRaw(t *testing.T) {
	for _, gen := range Generations() {
		for _, lanes := range LaneWidths() {
			for _, mps := range PayloadSizes() {
				for _, ecrc := range []bool{false, true} {
					p := DefaultParams()
					p.Generation, p.Lanes, p.MPS, p.ECRC = gen, lanes, mps, ecrc
					cfg := mustConfig(t, p)
					assert.Greater(t, float64(cfg.TLPBandwidth()), 0.0)
					assert.Less(t, float64(cfg.TLPBandwidth()), float64(cfg.RawBandwidth()), "%s mps=%d", cfg, mps)
				}
			}
		}
	}
}

func TestDeterministic(t *testing.T) {
	a := mustConfig(t, DefaultParams())
	b := mustConfig(t, DefaultParams())
	assert.Equal(t, a.RawBandwidth(), b.RawBandwidth())
	assert.Equal(t, a.TLPBandwidth(), b.TLPBandwidth())
	assert.Equal(t, a, b)

	c := mustConfig(t, a.Params())
	assert.Equal(t, a, c)
}

func TestNewLinkConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Params)
		field string
	}{
		{"mps 300", func(p *Params) { p.MPS = 300 }, "mps"},
		{"mrrs 100", func(p *Params) { p.MRRS = 100 }, "mrrs"},
		{"rcb 32", func(p *Params) { p.RCB = 32 }, "rcb"},
		{"gen8", func(p *Params) { p.Generation = 8 }, "generation"},
		{"gen0", func(p *Params) { p.Generation = 0 }, "generation"},
		{"x3", func(p *Params) { p.Lanes = 3 }, "lanes"},
		{"x64", func(p *Params) { p.Lanes = 64 }, "lanes"},
		{"x0", func(p *Params) { p.Lanes = 0 }, "lanes"},
		{"addr 48", func(p *Params) { p.AddressWidth = 48 }, "address_width"},
		{"split", func(p *Params) { p.CompletionSplit = 7 }, "completion_split"},
		{"negative overhead", func(p *Params) {
			o := DefaultTLPOverheads()
			o.Digest = -1
			p.Overheads = &o
		}, "overheads.digest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mod(&p)
			_, err := NewLinkConfig(p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrConfiguration))

			var cerr *types.ConfigurationError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestParse(t *testing.T) {
	g, err := ParseGeneration("Gen4")
	require.NoError(t, err)
	assert.Equal(t, Gen4, g)
	g, err = ParseGeneration("6")
	require.NoError(t, err)
	assert.Equal(t, Gen6, g)
	_, err = ParseGeneration("gen9")
	assert.ErrorIs(t, err, types.ErrConfiguration)

	l, err := ParseLanes("x16")
	require.NoError(t, err)
	assert.Equal(t, Lanes(16), l)
	_, err = ParseLanes("x12")
	assert.ErrorIs(t, err, types.ErrConfiguration)

	s, err := ParseCompletionSplit("RCB")
	require.NoError(t, err)
	assert.Equal(t, SplitAtRCB, s)
	_, err = ParseCompletionSplit("page")
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestPacketCounts(t *testing.T) {
	cfg := mustConfig(t, DefaultParams())

	tests := []struct {
		size, tlps, reqs, cpls int
	}{
		{1, 1, 1, 1},
		{256, 1, 1, 1},
		{257, 2, 1, 2},
		{512, 2, 1, 2},
		{513, 3, 2, 3},
		{1500, 6, 3, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tlps, cfg.WriteTLPs(tt.size), "WriteTLPs(%d)", tt.size)
		assert.Equal(t, tt.reqs, cfg.ReadRequests(tt.size), "ReadRequests(%d)", tt.size)
		assert.Equal(t, tt.cpls, cfg.Completions(tt.size), "Completions(%d)", tt.size)
	}

	p := DefaultParams()
	p.CompletionSplit = SplitAtRCB
	rcb := mustConfig(t, p)
	assert.Equal(t, 4, rcb.Completions(256))
	assert.Equal(t, 8, rcb.Completions(512))
	assert.Equal(t, 9, rcb.Completions(513))

	p.MPS, p.MRRS = 128, 4096
	small := mustConfig(t, p)
	assert.Equal(t, 2, small.Completions(128))
	assert.Equal(t, 1, small.ReadRequests(4096))
	assert.Equal(t, 64, small.Completions(4096))
}

func TestDataLinkOverhead(t *testing.T) {
	cfg := mustConfig(t, DefaultParams())
	want := 8.0/203 + 8.0/203 + 4.0/1538
	assert.InDelta(t, want, cfg.DataLinkOverhead(), 1e-12)

	p := DefaultParams()
	p.Generation, p.Lanes, p.MPS = Gen1, 32, 2048
	gen1 := mustConfig(t, p)
	assert.InDelta(t, 8.0/148+8.0/248+4.0/1538, gen1.DataLinkOverhead(), 1e-12)

	assert.Zero(t, dataLinkOverhead(Gen3, 3, 256))
}

func TestCeilDivLargeValues(t *testing.T) {
	tests := []struct {
		n, d, want int
	}{
		{0, 256, 0},
		{1, 256, 1},
		{256, 256, 1},
		{257, 256, 2},
		{math.MaxInt, 256, math.MaxInt/256 + 1},
		{math.MaxInt, 1, math.MaxInt},
	}
	for _, tt := range tests {
		if got := ceilDiv(tt.n, tt.d); got != tt.want {
			t.Errorf("ceilDiv(%d, %d) = %d, want %d", tt.n, tt.d, got, tt.want)
		}
	}

	cfg := mustConfig(t, DefaultParams())
	if got := cfg.WriteTLPs(types.MaxSize); got != types.MaxSize/256 {
		t.Errorf("WriteTLPs(MaxSize) = %d, want %d", got, types.MaxSize/256)
	}
}

func TestRCBOnlyAffectsRCBSplit(t *testing.T) {
	completions := func(split CompletionSplit, rcb int) int {
		p := DefaultParams()
		p.CompletionSplit = split
		p.RCB = rcb
		return mustConfig(t, p).Completions(512)
	}

	assert.Equal(t, completions(SplitAtMPS, 64), completions(SplitAtMPS, 128))
	assert.Equal(t, 2, completions(SplitAtMPS, 64))
	assert.Equal(t, 8, completions(SplitAtRCB, 64))
	assert.Equal(t, 4, completions(SplitAtRCB, 128))
}
