package nic

import (
	"fmt"
	"strings"

	"pcie-bw/pkg/types"
)

// Driver is the host driver operating mode of a modern NIC
type Driver int

const (
	// KernelDriver services every packet from an interrupt handler
	KernelDriver Driver = iota + 1
	// PollMode polls descriptor rings from user space and batches
	// doorbells and descriptor transfers
	PollMode
)

func (d Driver) String() string {
	switch d {
	case 0:
		return "none"
	case KernelDriver:
		return "kernel"
	case PollMode:
		return "pmd"
	}
	return fmt.Sprintf("driver(%d)", int(d))
}

// ParseDriver accepts "kernel" or "pmd"
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kernel", "kernel-driver":
		return KernelDriver, nil
	case "pmd", "poll", "poll-mode":
		return PollMode, nil
	}
	return 0, types.NewConfigurationError("driver", s, "expected kernel or pmd")
}

// DuplexPolicy decides how the two packet streams of a Both transfer share
// the PCIe link
type DuplexPolicy int

const (
	// Independent computes each direction as if it ran alone
	Independent DuplexPolicy = iota
	// SharedLink adds the bytes of both streams on each link direction,
	// so descriptor and interrupt traffic of one stream slows the other
	SharedLink
)

func (p DuplexPolicy) String() string {
	switch p {
	case Independent:
		return "independent"
	case SharedLink:
		return "shared"
	}
	return fmt.Sprintf("duplex(%d)", int(p))
}

// ParseDuplexPolicy accepts "independent" or "shared"
func ParseDuplexPolicy(s string) (DuplexPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "independent":
		return Independent, nil
	case "shared", "shared-link":
		return SharedLink, nil
	}
	return 0, types.NewConfigurationError("duplex", s, "expected independent or shared")
}

// Options holds the descriptor layer constants of a NIC
type Options struct {
	DescriptorSize int          `yaml:"descriptor_size"`
	DoorbellSize   int          `yaml:"doorbell_size"`
	MSISize        int          `yaml:"msi_size"`
	BatchSize      int          `yaml:"batch_size"`
	Duplex         DuplexPolicy `yaml:"-"`
}

// DefaultOptions are 16 byte descriptors, 4 byte doorbell and MSI writes
// and batches of 32 packets
func DefaultOptions() Options {
	return Options{
		DescriptorSize: 16,
		DoorbellSize:   4,
		MSISize:        4,
		BatchSize:      32,
		Duplex:         Independent,
	}
}

func (o Options) validate() error {
	if o.DescriptorSize <= 0 {
		return types.NewConfigurationError("descriptor_size", o.DescriptorSize, "must be > 0")
	}
	if o.DoorbellSize <= 0 {
		return types.NewConfigurationError("doorbell_size", o.DoorbellSize, "must be > 0")
	}
	if o.MSISize <= 0 {
		return types.NewConfigurationError("msi_size", o.MSISize, "must be > 0")
	}
	if o.BatchSize <= 0 {
		return types.NewConfigurationError("batch_size", o.BatchSize, "must be > 0")
	}
	if o.Duplex != Independent && o.Duplex != SharedLink {
		return types.NewConfigurationError("duplex", int(o.Duplex), "expected independent or shared")
	}
	return nil
}

// Option adjusts Options
type Option func(*Options)

// WithOptions replaces all options at once
func WithOptions(o Options) Option {
	return func(opts *Options) { *opts = o }
}

// WithDescriptorSize sets the size of one descriptor
func WithDescriptorSize(n int) Option {
	return func(o *Options) { o.DescriptorSize = n }
}

// WithBatchSize sets the number of packets handled per poll-mode batch
func WithBatchSize(n int) Option {
	return func(o *Options) { o.BatchSize = n }
}

// WithDuplex sets the policy used for Both
func WithDuplex(p DuplexPolicy) Option {
	return func(o *Options) { o.Duplex = p }
}

func buildOptions(opts []Option) (Options, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o, o.validate()
}
