// Package eth computes the payload bandwidth of an Ethernet link after MAC
// framing, preamble and inter-frame gap.
package eth

import (
	"fmt"
	"strings"
	"time"

	"pcie-bw/pkg/types"
)

// LineRate is a nominal Ethernet line rate
type LineRate int

const (
	GigE LineRate = iota + 1
	TenGigE
	TwentyFiveGigE
	FortyGigE
	FiftyGigE
	HundredGigE
	TwoHundredGigE
	FourHundredGigE
)

var lineRates = []struct {
	rate LineRate
	name string
	gbps float64
}{
	{FourHundredGigE, "400GigE", 400},
	{TwoHundredGigE, "200GigE", 200},
	{HundredGigE, "100GigE", 100},
	{FiftyGigE, "50GigE", 50},
	{FortyGigE, "40GigE", 40},
	{TwentyFiveGigE, "25GigE", 25},
	{TenGigE, "10GigE", 10},
	{GigE, "GigE", 1},
}

// LineRates lists the supported rates, fastest first
func LineRates() []LineRate {
	out := make([]LineRate, 0, len(lineRates))
	for _, r := range lineRates {
		out = append(out, r.rate)
	}
	return out
}

// Nominal returns the signaling rate of r, or 0 for an unknown rate
func (r LineRate) Nominal() types.Rate {
	for _, e := range lineRates {
		if e.rate == r {
			return types.GbpsRate(e.gbps)
		}
	}
	return 0
}

func (r LineRate) String() string {
	for _, e := range lineRates {
		if e.rate == r {
			return e.name
		}
	}
	return fmt.Sprintf("linerate(%d)", int(r))
}

// ParseLineRate accepts the names printed by String, case insensitive.
// "1GigE" is accepted for GigE.
func ParseLineRate(s string) (LineRate, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "1gige" {
		v = "gige"
	}
	for _, e := range lineRates {
		if strings.ToLower(e.name) == v {
			return e.rate, nil
		}
	}
	return 0, types.NewConfigurationError("line_rate", s, "expected one of 400GigE, 200GigE, 100GigE, 50GigE, 40GigE, 25GigE, 10GigE, GigE")
}

// FrameOverheads are the per-frame byte counts on the wire besides payload
type FrameOverheads struct {
	Preamble   int `yaml:"preamble"` // preamble and start of frame delimiter
	Header     int `yaml:"header"`
	VLANHeader int `yaml:"vlan_header"`
	CRC        int `yaml:"crc"`
	IFG        int `yaml:"ifg"`
	MinPayload int `yaml:"min_payload"`
	// MinPayloadVLAN is the minimum payload once a VLAN tag is present
	MinPayloadVLAN int `yaml:"min_payload_vlan"`
}

// DefaultFrameOverheads returns the IEEE 802.3 sizes
func DefaultFrameOverheads() FrameOverheads {
	return FrameOverheads{
		Preamble:       8,
		Header:         14,
		VLANHeader:     18,
		CRC:            4,
		IFG:            12,
		MinPayload:     46,
		MinPayloadVLAN: 42,
	}
}

// minimumIFG is the shortest gap a transmitter may use at rate r
func minimumIFG(r LineRate) int {
	switch r {
	case GigE:
		return 8
	case TenGigE, TwentyFiveGigE:
		return 5
	}
	return 1
}

// Option configures a LinkConfig
type Option func(*LinkConfig)

// WithVLAN adds an 802.1Q tag to every frame
func WithVLAN() Option {
	return func(c *LinkConfig) { c.vlan = true }
}

// WithMinimumIFG uses the shortest inter-frame gap allowed for the rate
func WithMinimumIFG() Option {
	return func(c *LinkConfig) { c.minIFG = true }
}

// WithFrameOverheads replaces DefaultFrameOverheads
func WithFrameOverheads(o FrameOverheads) Option {
	return func(c *LinkConfig) { c.overheads = o }
}

// LinkConfig is an immutable Ethernet link configuration
type LinkConfig struct {
	rate      LineRate
	vlan      bool
	minIFG    bool
	overheads FrameOverheads

	nominal types.Rate
	header  int
	minPay  int
	gap     int
}

// NewLinkConfig builds a configuration for rate. Without options frames
// are untagged and use the standard 12 byte inter-frame gap.
func NewLinkConfig(rate LineRate, opts ...Option) (LinkConfig, error) {
	c := LinkConfig{rate: rate, overheads: DefaultFrameOverheads()}
	for _, opt := range opts {
		opt(&c)
	}

	c.nominal = rate.Nominal()
	if c.nominal <= 0 {
		return LinkConfig{}, types.NewConfigurationError("line_rate", int(rate), "unknown line rate")
	}
	o := c.overheads
	for name, v := range map[string]int{
		"preamble": o.Preamble, "header": o.Header, "vlan_header": o.VLANHeader,
		"crc": o.CRC, "ifg": o.IFG, "min_payload": o.MinPayload, "min_payload_vlan": o.MinPayloadVLAN,
	} {
		if v < 0 {
			return LinkConfig{}, types.NewConfigurationError("frame_overheads."+name, v, "must not be negative")
		}
	}

	c.header, c.minPay = o.Header, o.MinPayload
	if c.vlan {
		c.header, c.minPay = o.VLANHeader, o.MinPayloadVLAN
	}
	c.gap = o.IFG
	if c.minIFG {
		c.gap = minimumIFG(rate)
	}
	return c, nil
}

func (c LinkConfig) LineRate() LineRate { return c.rate }
func (c LinkConfig) VLAN() bool { return c.vlan }
func (c LinkConfig) MinimumIFG() bool { return c.minIFG }
func (c LinkConfig) Overheads() FrameOverheads { return c.overheads }

// Rate is the nominal line rate
func (c LinkConfig) Rate() types.Rate {
	return c.nominal
}

// HeaderSize is the MAC header length including any VLAN tag
func (c LinkConfig) HeaderSize() int { return c.header }

// FrameOverhead is the number of non-payload bytes each frame occupies on
// the wire
func (c LinkConfig) FrameOverhead() int {
	return c.overheads.Preamble + c.header + c.overheads.CRC + c.gap
}

// wireBytes is the link time one frame with payload bytes occupies.
// Short payloads are padded up to the minimum.
func (c LinkConfig) wireBytes(payload int) int {
	if payload < c.minPay {
		payload = c.minPay
	}
	return payload + c.FrameOverhead()
}

// PacketRate returns frames per second for a given payload size
func (c LinkConfig) PacketRate(payload int) (float64, error) {
	if err := types.CheckSize(payload); err != nil {
		return 0, err
	}
	return float64(c.nominal) / (float64(c.wireBytes(payload)) * 8), nil
}

// EffectiveBandwidth returns the payload bits per second for frames
// carrying payload bytes each
func (c LinkConfig) EffectiveBandwidth(payload int) (types.Rate, error) {
	if err := types.CheckSize(payload); err != nil {
		return 0, err
	}
	return c.nominal * types.Rate(payload) / types.Rate(c.wireBytes(payload)), nil
}

// PacketRateForFrame is PacketRate for a frame size that includes the MAC
// header and CRC
func (c LinkConfig) PacketRateForFrame(frame int) (float64, error) {
	return c.PacketRate(frame - c.header - c.overheads.CRC)
}

// BandwidthForFrame returns the bits per second of whole frames, header and
// CRC included, for a frame size that includes both
func (c LinkConfig) BandwidthForFrame(frame int) (types.Rate, error) {
	pps, err := c.PacketRateForFrame(frame)
	if err != nil {
		return 0, err
	}
	return types.Rate(pps * float64(frame) * 8), nil
}

// FrameTime is the time a frame of the given size, header and CRC
// included, occupies the link
func (c LinkConfig) FrameTime(frame int) (time.Duration, error) {
	if err := types.CheckSize(frame); err != nil {
		return 0, err
	}
	bits := (float64(frame) + float64(c.overheads.Preamble+c.gap)) * 8
	return time.Duration(bits / float64(c.nominal) * float64(time.Second)), nil
}

func (c LinkConfig) String() string {
	s := c.rate.String()
	if c.vlan {
		s += " vlan"
	}
	if c.minIFG {
		s += " min-ifg"
	}
	return s
}
