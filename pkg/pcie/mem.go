package pcie

import "pcie-bw/pkg/types"

// Write returns the effective bandwidth of a device writing size bytes to
// host memory. The payload is carried in memory write TLPs of at most MPS
// bytes.
func Write(cfg LinkConfig, basis Basis, size int) (types.TransferResult, error) {
	if err := types.CheckSize(size); err != nil {
		return types.TransferResult{}, err
	}
	return types.TransferResult{
		Direction: types.Transmit,
		Size:      size,
		Transmit:  scale(basis.Reference(), size, cfg.WriteWireBytes(size)),
	}, nil
}

// Read returns the effective bandwidth of a device reading size bytes from
// host memory. Requests of at most MRRS bytes travel in the opposite
// direction and do not consume receive bandwidth; the payload arrives in
// completions split according to the configured completion split.
func Read(cfg LinkConfig, basis Basis, size int) (types.TransferResult, error) {
	if err := types.CheckSize(size); err != nil {
		return types.TransferResult{}, err
	}
	return types.TransferResult{
		Direction: types.Receive,
		Size:      size,
		Receive:   scale(basis.Reference(), size, cfg.CompletionWireBytes(size)),
	}, nil
}

// ReadWrite models a write and a read stream of size bytes each running at
// the same time. The link is full duplex so each direction is computed on
// its own.
func ReadWrite(cfg LinkConfig, basis Basis, size int) (types.TransferResult, error) {
	w, err := Write(cfg, basis, size)
	if err != nil {
		return types.TransferResult{}, err
	}
	r, err := Read(cfg, basis, size)
	if err != nil {
		return types.TransferResult{}, err
	}
	return types.TransferResult{
		Direction: types.Both,
		Size:      size,
		Transmit:  w.Transmit,
		Receive:   r.Receive,
	}, nil
}

// scale returns ref reduced by the ratio of payload to wire bytes
func scale(ref types.Rate, payload, wire int) types.Rate {
	if wire <= 0 {
		return 0
	}
	return ref * types.Rate(payload) / types.Rate(wire)
}
