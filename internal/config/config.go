package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"pcie-bw/pkg/eth"
	"pcie-bw/pkg/nic"
	"pcie-bw/pkg/pcie"
	"pcie-bw/pkg/sweep"
	"pcie-bw/pkg/types"
)

// Config is a bandwidth model profile
type Config struct {
	PCIe     PCIeConfig     `yaml:"pcie"`
	Basis    BasisConfig    `yaml:"basis"`
	Ethernet EthernetConfig `yaml:"ethernet"`
	NIC      NICConfig      `yaml:"nic"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
}

// PCIeConfig describes the PCIe link
type PCIeConfig struct {
	Generation      string             `yaml:"generation"`
	Lanes           int                `yaml:"lanes"`
	AddressWidth    int                `yaml:"address_width"`
	ECRC            bool               `yaml:"ecrc"`
	MPS             int                `yaml:"mps"`
	MRRS            int                `yaml:"mrrs"`
	RCB             int                `yaml:"rcb"`
	CompletionSplit string             `yaml:"completion_split"`
	Overheads       *pcie.TLPOverheads `yaml:"overheads,omitempty"`
}

// BasisConfig selects the reference bandwidth
type BasisConfig struct {
	Mode     string `yaml:"mode"`
	Estimate string `yaml:"estimate"`
}

// EthernetConfig describes the Ethernet link
type EthernetConfig struct {
	LineRate   string `yaml:"line_rate"`
	VLAN       bool   `yaml:"vlan"`
	MinimumIFG bool   `yaml:"min_ifg"`
}

// NICConfig holds the descriptor layer constants
type NICConfig struct {
	DescriptorSize int    `yaml:"descriptor_size"`
	DoorbellSize   int    `yaml:"doorbell_size"`
	MSISize        int    `yaml:"msi_size"`
	BatchSize      int    `yaml:"batch_size"`
	Duplex         string `yaml:"duplex"`
}

// SweepConfig controls the size sweep
type SweepConfig struct {
	Sizes           string `yaml:"sizes"`
	HeaderAllowance int    `yaml:"header_allowance"`
	Sample          int    `yaml:"sample"`
	Workers         int    `yaml:"workers"`
}

// LogConfig configures the package logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig holds the listen addresses of the serve command
type ServerConfig struct {
	Listen  string `yaml:"listen"`
	Metrics string `yaml:"metrics"`
}

// DefaultConfig is a Gen3 x8 link next to a 40GigE port, swept over
// 64..1500 byte frames
func DefaultConfig() *Config {
	opts := nic.DefaultOptions()
	return &Config{
		PCIe: PCIeConfig{
			Generation:      "gen3",
			Lanes:           8,
			AddressWidth:    64,
			MPS:             256,
			MRRS:            512,
			RCB:             64,
			CompletionSplit: "mps",
		},
		Basis: BasisConfig{
			Mode:     "tlp",
			Estimate: "nominal",
		},
		Ethernet: EthernetConfig{
			LineRate: "40GigE",
		},
		NIC: NICConfig{
			DescriptorSize: opts.DescriptorSize,
			DoorbellSize:   opts.DoorbellSize,
			MSISize:        opts.MSISize,
			BatchSize:      opts.BatchSize,
			Duplex:         opts.Duplex.String(),
		},
		Sweep: SweepConfig{
			Sizes:           fmt.Sprintf("%d-%d", sweep.DefaultMinSize, sweep.DefaultMaxSize),
			HeaderAllowance: sweep.DefaultHeaderAllowance,
			Sample:          sweep.DefaultSampleEvery,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Server: ServerConfig{
			Listen:  ":50051",
			Metrics: ":9095",
		},
	}
}

// LoadConfig loads a profile from a YAML file. Fields missing from the
// file keep their DefaultConfig value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

// Marshal renders c as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks every section by building the model
func (c *Config) Validate() error {
	_, _, err := c.Build()
	return err
}

// LinkParams converts the pcie section
func (c *Config) LinkParams() (pcie.Params, error) {
	gen, err := pcie.ParseGeneration(c.PCIe.Generation)
	if err != nil {
		return pcie.Params{}, err
	}
	split, err := pcie.ParseCompletionSplit(c.PCIe.CompletionSplit)
	if err != nil {
		return pcie.Params{}, err
	}
	return pcie.Params{
		Generation:      gen,
		Lanes:           pcie.Lanes(c.PCIe.Lanes),
		AddressWidth:    pcie.AddressWidth(c.PCIe.AddressWidth),
		ECRC:            c.PCIe.ECRC,
		MPS:             c.PCIe.MPS,
		MRRS:            c.PCIe.MRRS,
		RCB:             c.PCIe.RCB,
		CompletionSplit: split,
		Overheads:       c.PCIe.Overheads,
	}, nil
}

// NICOptions converts the nic section
func (c *Config) NICOptions() (nic.Options, error) {
	duplex, err := nic.ParseDuplexPolicy(c.NIC.Duplex)
	if err != nil {
		return nic.Options{}, err
	}
	return nic.Options{
		DescriptorSize: c.NIC.DescriptorSize,
		DoorbellSize:   c.NIC.DoorbellSize,
		MSISize:        c.NIC.MSISize,
		BatchSize:      c.NIC.BatchSize,
		Duplex:         duplex,
	}, nil
}

// Build constructs the sweep model and sweep settings described by c
func (c *Config) Build() (sweep.Model, sweep.Config, error) {
	params, err := c.LinkParams()
	if err != nil {
		return sweep.Model{}, sweep.Config{}, err
	}
	link, err := pcie.NewLinkConfig(params)
	if err != nil {
		return sweep.Model{}, sweep.Config{}, err
	}

	mode, err := pcie.ParseBasisMode(c.Basis.Mode)
	if err != nil {
		return sweep.Model{}, sweep.Config{}, err
	}
	estimate, err := pcie.ParseEstimate(c.Basis.Estimate)
	if err != nil {
		return sweep.Model{}, sweep.Config{}, err
	}
	basis, err := pcie.NewBasis(link, mode, estimate)
	if err != nil {
		return sweep.Model{}, sweep.Config{}, err
	}

	rate, err := eth.ParseLineRate(c.Ethernet.LineRate)
	if err != nil {
		return sweep.Model{}, sweep.Config{}, err
	}
	var ethOpts []eth.Option
	if c.Ethernet.VLAN {
		ethOpts = append(ethOpts, eth.WithVLAN())
	}
	if c.Ethernet.MinimumIFG {
		ethOpts = append(ethOpts, eth.WithMinimumIFG())
	}
	ethernet, err := eth.NewLinkConfig(rate, ethOpts...)
	if err != nil {
		return sweep.Model{}, sweep.Config{}, err
	}

	nicOpts, err := c.NICOptions()
	if err != nil {
		return sweep.Model{}, sweep.Config{}, err
	}
	// validated here so a bad profile fails at load time, not mid sweep
	if _, err := nic.Simple(link, basis, types.Transmit, 1, nic.WithOptions(nicOpts)); err != nil {
		return sweep.Model{}, sweep.Config{}, err
	}

	sizes, err := ParseSizeRange(c.Sweep.Sizes)
	if err != nil {
		return sweep.Model{}, sweep.Config{}, err
	}
	if c.Sweep.HeaderAllowance < 0 {
		return sweep.Model{}, sweep.Config{}, fmt.Errorf("invalid header allowance: %d", c.Sweep.HeaderAllowance)
	}
	for _, s := range sizes {
		if s <= c.Sweep.HeaderAllowance {
			return sweep.Model{}, sweep.Config{}, fmt.Errorf("size %d does not exceed the header allowance %d", s, c.Sweep.HeaderAllowance)
		}
	}
	if c.Sweep.Sample < 0 {
		return sweep.Model{}, sweep.Config{}, fmt.Errorf("invalid sample stride: %d", c.Sweep.Sample)
	}

	model := sweep.Model{Link: link, Basis: basis, Ethernet: ethernet, NIC: nicOpts}
	return model, sweep.Config{
		Sizes:           sizes,
		HeaderAllowance: c.Sweep.HeaderAllowance,
		Workers:         c.Sweep.Workers,
	}, nil
}

// ParseSizeRange parses a size list like "64-1500,9000"
func ParseSizeRange(rangeStr string) ([]int, error) {
	var sizes []int
	parts := strings.Split(rangeStr, ",")

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.Contains(part, "-") {
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) != 2 {
				return nil, fmt.Errorf("invalid range format: %s", part)
			}
			start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid start size: %s", rangeParts[0])
			}
			end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid end size: %s", rangeParts[1])
			}
			if start <= 0 || end < start || end > types.MaxSize {
				return nil, fmt.Errorf("invalid range: %s", part)
			}
			sizes = append(sizes, sweep.Range(start, end)...)
		} else {
			size, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid size: %s", part)
			}
			if size <= 0 || size > types.MaxSize {
				return nil, fmt.Errorf("invalid size: %s", part)
			}
			sizes = append(sizes, size)
		}
	}

	return sizes, nil
}
