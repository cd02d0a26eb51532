// Package nic models the end-to-end throughput of a NIC moving packets
// over PCIe, including descriptor, doorbell and interrupt traffic.
//
// Every packet costs a set of PCIe transactions. Their bytes are counted
// per link direction: upstream (device to host) and downstream (host to
// device). A packet stream runs at the rate of its busier direction.
package nic

import (
	"pcie-bw/pkg/pcie"
	"pcie-bw/pkg/types"
)

// Model names reported in Result
const (
	ModelSimple = "simple"
	ModelModern = "modern"
)

// Result is the outcome of a NIC computation
type Result struct {
	types.TransferResult
	Model  string
	Driver Driver
}

// traffic is the bytes one packet puts on each link direction
type traffic struct {
	up   float64
	down float64
}

func (t *traffic) add(o traffic) {
	t.up += o.up
	t.down += o.down
}

func (t traffic) div(n int) traffic {
	return traffic{up: t.up / float64(n), down: t.down / float64(n)}
}

// bus issues PCIe transactions on one link and accounts their bytes
type bus struct {
	cfg pcie.LinkConfig
	t   traffic
}

// dmaWrite is the device writing n bytes to host memory
func (b *bus) dmaWrite(n int) {
	b.t.up += float64(b.cfg.WriteWireBytes(n))
}

// dmaRead is the device reading n bytes of host memory
func (b *bus) dmaRead(n int) {
	b.t.up += float64(b.cfg.ReadRequestWireBytes(n))
	b.t.down += float64(b.cfg.CompletionWireBytes(n))
}

// mmioWrite is the host writing a device register
func (b *bus) mmioWrite(n int) {
	b.t.down += float64(b.cfg.WriteWireBytes(n))
}

// mmioRead is the host reading a device register
func (b *bus) mmioRead(n int) {
	b.t.down += float64(b.cfg.ReadRequestWireBytes(n))
	b.t.up += float64(b.cfg.CompletionWireBytes(n))
}

// interrupt is an MSI, a memory write from the device
func (b *bus) interrupt(n int) {
	b.t.up += float64(b.cfg.WriteWireBytes(n))
}

// packet moves the payload itself
func (b *bus) packet(dir types.Direction, size int) {
	if dir == types.Transmit {
		b.dmaRead(size)
		return
	}
	b.dmaWrite(size)
}

// costFunc returns the per-packet traffic for a single direction
type costFunc func(cfg pcie.LinkConfig, o Options, dir types.Direction, size int) traffic

// simpleCost: the driver rings the doorbell, the device fetches the
// descriptor and the packet, writes the descriptor back, raises an MSI and
// the driver reads the ring head register.
func simpleCost(cfg pcie.LinkConfig, o Options, dir types.Direction, size int) traffic {
	b := bus{cfg: cfg}
	b.mmioWrite(o.DoorbellSize)
	b.dmaRead(o.DescriptorSize)
	b.packet(dir, size)
	b.dmaWrite(o.DescriptorSize)
	b.interrupt(o.MSISize)
	b.mmioRead(o.DoorbellSize)
	return b.t
}

// kernelCost drops the head register read, completion status comes from
// the descriptor write-back.
func kernelCost(cfg pcie.LinkConfig, o Options, dir types.Direction, size int) traffic {
	b := bus{cfg: cfg}
	b.mmioWrite(o.DoorbellSize)
	b.dmaRead(o.DescriptorSize)
	b.packet(dir, size)
	b.dmaWrite(o.DescriptorSize)
	b.interrupt(o.MSISize)
	return b.t
}

// pollModeCost issues one doorbell and transfers a batch of descriptors at
// a time. No interrupts are raised.
func pollModeCost(cfg pcie.LinkConfig, o Options, dir types.Direction, size int) traffic {
	batch := bus{cfg: cfg}
	batch.mmioWrite(o.DoorbellSize)
	batch.dmaRead(o.DescriptorSize * o.BatchSize)
	batch.dmaWrite(o.DescriptorSize * o.BatchSize)

	b := bus{cfg: cfg}
	b.packet(dir, size)
	b.t.add(batch.t.div(o.BatchSize))
	return b.t
}

// Simple models a NIC with no batching. Every packet costs a doorbell, a
// descriptor fetch and write-back, an interrupt and a register read.
func Simple(cfg pcie.LinkConfig, basis pcie.Basis, dir types.Direction, size int, opts ...Option) (Result, error) {
	res, err := evaluate(cfg, basis, dir, size, simpleCost, opts)
	if err != nil {
		return Result{}, err
	}
	return Result{TransferResult: res, Model: ModelSimple}, nil
}

// Modern models a current NIC driven either from interrupts or by a
// poll-mode driver that batches descriptor handling.
func Modern(cfg pcie.LinkConfig, basis pcie.Basis, dir types.Direction, size int, driver Driver, opts ...Option) (Result, error) {
	var cost costFunc
	switch driver {
	case KernelDriver:
		cost = kernelCost
	case PollMode:
		cost = pollModeCost
	default:
		return Result{}, types.NewConfigurationError("driver", int(driver), "expected kernel or pmd")
	}
	res, err := evaluate(cfg, basis, dir, size, cost, opts)
	if err != nil {
		return Result{}, err
	}
	return Result{TransferResult: res, Model: ModelModern, Driver: driver}, nil
}

func evaluate(cfg pcie.LinkConfig, basis pcie.Basis, dir types.Direction, size int, cost costFunc, opts []Option) (types.TransferResult, error) {
	if !dir.Valid() {
		return types.TransferResult{}, types.NewConfigurationError("direction", int(dir), "expected tx, rx or both")
	}
	if err := types.CheckSize(size); err != nil {
		return types.TransferResult{}, err
	}
	o, err := buildOptions(opts)
	if err != nil {
		return types.TransferResult{}, err
	}

	ref := basis.Reference()
	res := types.TransferResult{Direction: dir, Size: size}

	if dir == types.Both && o.Duplex == SharedLink {
		t := cost(cfg, o, types.Transmit, size)
		t.add(cost(cfg, o, types.Receive, size))
		rate := throughput(ref, size, t)
		res.Transmit, res.Receive = rate, rate
		return res, nil
	}

	if dir.Has(types.Transmit) {
		res.Transmit = throughput(ref, size, cost(cfg, o, types.Transmit, size))
	}
	if dir.Has(types.Receive) {
		res.Receive = throughput(ref, size, cost(cfg, o, types.Receive, size))
	}
	return res, nil
}

// throughput is the payload rate of a stream limited by its busier link
// direction
func throughput(ref types.Rate, size int, t traffic) types.Rate {
	wire := t.up
	if t.down > wire {
		wire = t.down
	}
	if wire <= 0 {
		return 0
	}
	return ref * types.Rate(size) / types.Rate(wire)
}
