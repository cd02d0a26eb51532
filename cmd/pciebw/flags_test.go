package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"pcie-bw/internal/config"
)

func TestApplyProfileFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addProfileFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--gen", "gen4", "--lanes", "16", "--ecrc", "--eth", "100GigE",
		"--duplex", "shared", "--allowance", "0", "--sizes", "64-128",
	}))

	cfg := config.DefaultConfig()
	require.NoError(t, applyProfileFlags(fs, cfg))

	assert.Equal(t, "gen4", cfg.PCIe.Generation)
	assert.Equal(t, 16, cfg.PCIe.Lanes)
	assert.True(t, cfg.PCIe.ECRC)
	assert.Equal(t, "100GigE", cfg.Ethernet.LineRate)
	assert.Equal(t, "shared", cfg.NIC.Duplex)
	assert.Equal(t, 0, cfg.Sweep.HeaderAllowance)
	assert.Equal(t, "64-128", cfg.Sweep.Sizes)

	// untouched flags keep the profile values
	assert.Equal(t, 256, cfg.PCIe.MPS)
	assert.Equal(t, 512, cfg.PCIe.MRRS)
	assert.False(t, cfg.Ethernet.VLAN)
	assert.NoError(t, cfg.Validate())
}

func TestLoadProfileFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pcie:\n  generation: gen2\n  lanes: 4\n"), 0o644))

	configPath = path
	defer func() { configPath = "" }()

	cmd := &cobra.Command{}
	addProfileFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"--lanes", "8"}))

	cfg, err := loadProfile(cmd)
	require.NoError(t, err)
	assert.Equal(t, "gen2", cfg.PCIe.Generation)
	assert.Equal(t, 8, cfg.PCIe.Lanes)
}

func TestLoadProfileInvalidFlag(t *testing.T) {
	cmd := &cobra.Command{}
	addProfileFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"--mps", "300"}))

	_, err := loadProfile(cmd)
	assert.Error(t, err)
}

func fakeDevice(t *testing.T, speed, width, maxSpeed, maxWidth string) string {
	t.Helper()
	root := t.TempDir()
	dev := filepath.Join(root, "bus", "pci", "devices", "0000:3b:00.0")
	require.NoError(t, os.MkdirAll(dev, 0o755))
	attrs := map[string]string{
		"current_link_speed": speed,
		"current_link_width": width,
		"max_link_speed":     maxSpeed,
		"max_link_width":     maxWidth,
	}
	for name, value := range attrs {
		require.NoError(t, os.WriteFile(filepath.Join(dev, name), []byte(value+"\n"), 0o644))
	}
	return root
}

func TestRunDetect(t *testing.T) {
	root := fakeDevice(t, "16.0 GT/s PCIe", "8", "16.0 GT/s PCIe", "16")

	detectPCI, detectSysfsRoot = "0000:3b:00.0", root
	defer func() { detectPCI, detectSysfsRoot = "", "" }()

	cmd := &cobra.Command{}
	addProfileFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"--eth", "100GigE"}))
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, runDetect(cmd, nil))

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &cfg))
	assert.Equal(t, "gen4", cfg.PCIe.Generation)
	assert.Equal(t, 8, cfg.PCIe.Lanes)
	assert.Equal(t, "100GigE", cfg.Ethernet.LineRate)
	assert.Equal(t, 256, cfg.PCIe.MPS)
}

func TestRunDetectRequiresDevice(t *testing.T) {
	cmd := &cobra.Command{}
	addProfileFlags(cmd.Flags())
	assert.Error(t, runDetect(cmd, nil))
}
