package pcie

import "pcie-bw/pkg/types"

// TLPOverheads holds the byte counts that make up the non-payload part of
// a TLP on the wire. The defaults follow the PCIe base specification; they
// are kept in a value so a calibrated set can be swapped in per link.
type TLPOverheads struct {
	// DataLink covers STP/END framing, the sequence number and the LCRC
	DataLink int `yaml:"data_link"`
	// Header is the generic first header DW shared by all TLPs
	Header int `yaml:"header"`
	// MemAddr32 and MemAddr64 are the remaining memory request header bytes
	MemAddr32 int `yaml:"mem_addr32"`
	MemAddr64 int `yaml:"mem_addr64"`
	// Completion is the remaining completion header bytes
	Completion int `yaml:"completion"`
	// Digest is the optional ECRC trailer
	Digest int `yaml:"digest"`
}

// DefaultTLPOverheads returns the PCIe base specification sizes
func DefaultTLPOverheads() TLPOverheads {
	return TLPOverheads{
		DataLink:   8,
		Header:     4,
		MemAddr32:  8,
		MemAddr64:  12,
		Completion: 8,
		Digest:     4,
	}
}

func (o TLPOverheads) validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"data_link", o.DataLink},
		{"header", o.Header},
		{"mem_addr32", o.MemAddr32},
		{"mem_addr64", o.MemAddr64},
		{"completion", o.Completion},
		{"digest", o.Digest},
	}
	for _, f := range fields {
		if f.value < 0 {
			return types.NewConfigurationError("overheads."+f.name, f.value, "must not be negative")
		}
	}
	if o.DataLink+o.Header <= 0 {
		return types.NewConfigurationError("overheads", o.DataLink+o.Header, "per-TLP framing and header must be > 0")
	}
	return nil
}

func (o TLPOverheads) memRequest(addr AddressWidth, ecrc bool) int {
	n := o.DataLink + o.Header + o.MemAddr32
	if addr == Addr64 {
		n = o.DataLink + o.Header + o.MemAddr64
	}
	if ecrc {
		n += o.Digest
	}
	return n
}

func (o TLPOverheads) completion(ecrc bool) int {
	n := o.DataLink + o.Header + o.Completion
	if ecrc {
		n += o.Digest
	}
	return n
}
