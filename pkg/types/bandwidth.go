package types

import (
	"fmt"
	"strings"
)

// Rate is a bandwidth in bits per second
type Rate float64

// Common rate units
const (
	BitPerSecond Rate = 1
	Mbps              = 1000 * 1000 * BitPerSecond
	Gbps              = 1000 * Mbps
)

// GbpsRate returns a Rate from a figure in Gb/s
func GbpsRate(v float64) Rate {
	return Rate(v) * Gbps
}

// Gbps returns the rate in Gb/s
func (r Rate) Gbps() float64 {
	return float64(r / Gbps)
}

// String formats the rate in Gb/s with two decimals
func (r Rate) String() string {
	return fmt.Sprintf("%.2f Gb/s", r.Gbps())
}

// Direction of a transfer, seen from the device
type Direction int

const (
	// Transmit is the device sending data (PCIe memory writes, NIC transmit)
	Transmit Direction = 1 << iota
	// Receive is the device taking in data (PCIe read completions, NIC receive)
	Receive
	// Both is a full-duplex transfer
	Both = Transmit | Receive
)

// Has reports whether d includes all bits of other
func (d Direction) Has(other Direction) bool {
	return other != 0 && d&other == other
}

// Valid reports whether d is one of Transmit, Receive or Both
func (d Direction) Valid() bool {
	return d == Transmit || d == Receive || d == Both
}

func (d Direction) String() string {
	switch d {
	case Transmit:
		return "tx"
	case Receive:
		return "rx"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection parses "tx", "rx" or "both"
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tx", "transmit":
		return Transmit, nil
	case "rx", "receive":
		return Receive, nil
	case "both", "bidirectional", "bi":
		return Both, nil
	}
	return 0, NewConfigurationError("direction", s, "expected tx, rx or both")
}

// TransferResult is the outcome of one overhead computation for one
// payload size. Only the fields selected by Direction are meaningful.
type TransferResult struct {
	Direction Direction
	Size      int
	Transmit  Rate
	Receive   Rate
}

// TransmitRate returns the transmit figure and whether it is set
func (r TransferResult) TransmitRate() (Rate, bool) {
	return r.Transmit, r.Direction.Has(Transmit)
}

// ReceiveRate returns the receive figure and whether it is set
func (r TransferResult) ReceiveRate() (Rate, bool) {
	return r.Receive, r.Direction.Has(Receive)
}

// Efficiency returns the transmit and receive figures as a fraction of ref.
// Unset directions report zero.
func (r TransferResult) Efficiency(ref Rate) (tx, rx float64) {
	if ref <= 0 {
		return 0, 0
	}
	if r.Direction.Has(Transmit) {
		tx = float64(r.Transmit / ref)
	}
	if r.Direction.Has(Receive) {
		rx = float64(r.Receive / ref)
	}
	return tx, rx
}
