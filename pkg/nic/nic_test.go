package nic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcie-bw/pkg/pcie"
	"pcie-bw/pkg/types"
)

func setup(t *testing.T, p pcie.Params) (pcie.LinkConfig, pcie.Basis) {
	t.Helper()
	cfg, err := pcie.NewLinkConfig(p)
	require.NoError(t, err)
	basis, err := pcie.NewBasis(cfg, pcie.BasisTLP, pcie.Nominal)
	require.NoError(t, err)
	return cfg, basis
}

var sizes = []int{1, 60, 64, 128, 255, 256, 257, 512, 1024, 1496, 1500, 4096, 9000}

func TestDriverOrdering(t *testing.T) {
	for _, mps := range []int{128, 256, 4096} {
		p := pcie.DefaultParams()
		p.MPS = mps
		cfg, basis := setup(t, p)

		for _, dir := range []types.Direction{types.Transmit, types.Receive, types.Both} {
			for _, size := range sizes {
				simple, err := Simple(cfg, basis, dir, size)
				require.NoError(t, err)
				kernel, err := Modern(cfg, basis, dir, size, KernelDriver)
				require.NoError(t, err)
				pmd, err := Modern(cfg, basis, dir, size, PollMode)
				require.NoError(t, err)

				assert.GreaterOrEqual(t, float64(kernel.Transmit), float64(simple.Transmit), "tx kernel/simple %s %d", dir, size)
				assert.GreaterOrEqual(t, float64(pmd.Transmit), float64(kernel.Transmit), "tx pmd/kernel %s %d", dir, size)
				assert.GreaterOrEqual(t, float64(kernel.Receive), float64(simple.Receive), "rx kernel/simple %s %d", dir, size)
				assert.GreaterOrEqual(t, float64(pmd.Receive), float64(kernel.Receive), "rx pmd/kernel %s %d", dir, size)
			}
		}
	}
}

func TestBoundedByMemoryModel(t *testing.T) {
	cfg, basis := setup(t, pcie.DefaultParams())

	for _, size := range sizes {
		w, err := pcie.Write(cfg, basis, size)
		require.NoError(t, err)
		r, err := pcie.Read(cfg, basis, size)
		require.NoError(t, err)

		for _, driver := range []Driver{KernelDriver, PollMode} {
			res, err := Modern(cfg, basis, types.Both, size, driver)
			require.NoError(t, err)
			assert.LessOrEqual(t, float64(res.Transmit), float64(r.Receive), "%s tx %d", driver, size)
			assert.LessOrEqual(t, float64(res.Receive), float64(w.Transmit), "%s rx %d", driver, size)
			assert.Greater(t, float64(res.Transmit), 0.0)
		}
	}
}

func TestResultFields(t *testing.T) {
	cfg, basis := setup(t, pcie.DefaultParams())

	res, err := Simple(cfg, basis, types.Transmit, 64)
	require.NoError(t, err)
	assert.Equal(t, ModelSimple, res.Model)
	assert.Equal(t, Driver(0), res.Driver)
	_, ok := res.ReceiveRate()
	assert.False(t, ok)
	assert.Zero(t, res.Receive)

	res, err = Modern(cfg, basis, types.Receive, 64, PollMode)
	require.NoError(t, err)
	assert.Equal(t, ModelModern, res.Model)
	assert.Equal(t, PollMode, res.Driver)
	assert.Equal(t, types.Receive, res.Direction)
	assert.Zero(t, res.Transmit)
}

func TestSimpleTransmitCost(t *testing.T) {
	cfg, basis := setup(t, pcie.DefaultParams())

	// downstream: doorbell 4+24, descriptor completion 16+20,
	// packet completion 64+20, head read request 24
	// upstream: two read requests 48, write-back 16+24, MSI 4+24,
	// head read completion 4+20
	down := 28.0 + 36 + 84 + 24
	up := 48.0 + 40 + 28 + 24
	require.Greater(t, down, up)

	res, err := Simple(cfg, basis, types.Transmit, 64)
	require.NoError(t, err)
	assert.InDelta(t, float64(basis.Reference())*64/down, float64(res.Transmit), 1)
}

func TestDuplexPolicy(t *testing.T) {
	cfg, basis := setup(t, pcie.DefaultParams())

	for _, size := range sizes {
		ind, err := Modern(cfg, basis, types.Both, size, KernelDriver)
		require.NoError(t, err)
		shared, err := Modern(cfg, basis, types.Both, size, KernelDriver, WithDuplex(SharedLink))
		require.NoError(t, err)

		assert.Less(t, float64(shared.Transmit), float64(ind.Transmit))
		assert.Less(t, float64(shared.Receive), float64(ind.Receive))
		assert.Equal(t, shared.Transmit, shared.Receive)
	}

	// single direction is unaffected
	a, err := Simple(cfg, basis, types.Transmit, 512)
	require.NoError(t, err)
	b, err := Simple(cfg, basis, types.Transmit, 512, WithDuplex(SharedLink))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBatchSize(t *testing.T) {
	cfg, basis := setup(t, pcie.DefaultParams())

	prev := 0.0
	for _, batch := range []int{1, 4, 16, 64} {
		res, err := Modern(cfg, basis, types.Receive, 64, PollMode, WithBatchSize(batch))
		require.NoError(t, err)
		assert.Greater(t, float64(res.Receive), prev, "batch %d", batch)
		prev = float64(res.Receive)
	}
}

func TestErrors(t *testing.T) {
	cfg, basis := setup(t, pcie.DefaultParams())

	_, err := Modern(cfg, basis, types.Transmit, 64, Driver(9))
	assert.ErrorIs(t, err, types.ErrConfiguration)
	_, err = Modern(cfg, basis, types.Transmit, 64, 0)
	assert.ErrorIs(t, err, types.ErrConfiguration)
	_, err = Simple(cfg, basis, types.Direction(0), 64)
	assert.ErrorIs(t, err, types.ErrConfiguration)
	_, err = Simple(cfg, basis, types.Transmit, 64, WithBatchSize(0))
	assert.ErrorIs(t, err, types.ErrConfiguration)
	_, err = Simple(cfg, basis, types.Transmit, 64, WithDescriptorSize(-16))
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = Simple(cfg, basis, types.Both, 0)
	assert.ErrorIs(t, err, types.ErrInvalidSize)
	_, err = Modern(cfg, basis, types.Receive, -5, PollMode)
	assert.ErrorIs(t, err, types.ErrInvalidSize)

	_, err = ParseDriver("dpdk")
	assert.ErrorIs(t, err, types.ErrConfiguration)
	d, err := ParseDriver("PMD")
	require.NoError(t, err)
	assert.Equal(t, PollMode, d)
	_, err = ParseDuplexPolicy("half")
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
