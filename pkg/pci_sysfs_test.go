package pkg

import (
	"os"
	"path/filepath"
	"testing"

	"pcie-bw/pkg/eth"
	"pcie-bw/pkg/pcie"
)

// fakeSysfs lays out a minimal sysfs tree with one PCI function and one
// network interface pointing at it
func fakeSysfs(t *testing.T, attrs map[string]string) string {
	t.Helper()
	root := t.TempDir()
	dev := filepath.Join(root, "bus", "pci", "devices", "0000:3b:00.0")
	if err := os.MkdirAll(dev, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, value := range attrs {
		if err := os.WriteFile(filepath.Join(dev, name), []byte(value+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink("../../../bus/pci/drivers/ice", filepath.Join(dev, "driver")); err != nil {
		t.Fatal(err)
	}

	netDir := filepath.Join(root, "class", "net", "ens1f0")
	if err := os.MkdirAll(netDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("../../../bus/pci/devices/0000:3b:00.0", filepath.Join(netDir, "device")); err != nil {
		t.Fatal(err)
	}

	virt := filepath.Join(root, "class", "net", "lo")
	if err := os.MkdirAll(virt, 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestParseLinkSpeed(t *testing.T) {
	tests := []struct {
		speed   string
		want    pcie.Generation
		wantErr bool
	}{
		{"2.5 GT/s PCIe", pcie.Gen1, false},
		{"5.0 GT/s PCIe", pcie.Gen2, false},
		{"8.0 GT/s PCIe", pcie.Gen3, false},
		{"16.0 GT/s PCIe", pcie.Gen4, false},
		{"32.0 GT/s PCIe", pcie.Gen5, false},
		{"64.0 GT/s PCIe", pcie.Gen6, false},
		{"8 GT/s", pcie.Gen3, false},
		{"Unknown", 0, true},
		{"2.5 GB/s", 0, true},
		{"12.0 GT/s PCIe", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.speed, func(t *testing.T) {
			got, err := ParseLinkSpeed(tt.speed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLinkSpeed(%q) error = %v, wantErr %v", tt.speed, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLinkSpeed(%q) = %v, want %v", tt.speed, got, tt.want)
			}
		})
	}
}

func TestReadPCIeLink(t *testing.T) {
	root := fakeSysfs(t, map[string]string{
		"current_link_speed": "8.0 GT/s PCIe",
		"current_link_width": "8",
		"max_link_speed":     "16.0 GT/s PCIe",
		"max_link_width":     "16",
	})

	status, err := ReadPCIeLink(root, "0000:3b:00.0")
	if err != nil {
		t.Fatalf("ReadPCIeLink() error = %v", err)
	}
	if status.Generation != pcie.Gen3 || status.Lanes != 8 {
		t.Errorf("link = %s %s, want gen3 x8", status.Generation, status.Lanes)
	}
	if status.MaxGeneration != pcie.Gen4 || status.MaxLanes != 16 {
		t.Errorf("max link = %s %s, want gen4 x16", status.MaxGeneration, status.MaxLanes)
	}
	if !status.Downgraded() {
		t.Error("Downgraded() = false, want true")
	}
	if status.Driver != "ice" {
		t.Errorf("Driver = %q, want ice", status.Driver)
	}
}

func TestReadPCIeLinkErrors(t *testing.T) {
	root := fakeSysfs(t, map[string]string{
		"current_link_speed": "Unknown",
		"current_link_width": "0",
	})

	if _, err := ReadPCIeLink(root, "0000:3b:00.0"); err == nil {
		t.Error("expected error for a link that is down")
	}
	if _, err := ReadPCIeLink(root, "0000:3c:00.0"); err == nil {
		t.Error("expected error for a missing device")
	}
	if _, err := ReadPCIeLink(root, "3b:00.0"); err == nil {
		t.Error("expected error for a malformed address")
	}
}

func TestNetDevicePCIAddress(t *testing.T) {
	root := fakeSysfs(t, nil)

	addr, err := NetDevicePCIAddress(root, "ens1f0")
	if err != nil {
		t.Fatalf("NetDevicePCIAddress() error = %v", err)
	}
	if addr != "0000:3b:00.0" {
		t.Errorf("NetDevicePCIAddress() = %q, want 0000:3b:00.0", addr)
	}

	if _, err := NetDevicePCIAddress(root, "lo"); err == nil {
		t.Error("expected error for an interface without a device")
	}
}

func TestIsPciAddress(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"0000:01:00.0", true},
		{"0000:af:00.1", true},
		{"0000:AF:00.1", false},
		{"01:00.0", false},
		{"0000-01-00.0", false},
	}
	for _, tt := range tests {
		if got := isPciAddress(tt.name); got != tt.want {
			t.Errorf("isPciAddress(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLineRateFromSpeed(t *testing.T) {
	tests := []struct {
		mbps uint64
		want eth.LineRate
		ok   bool
	}{
		{1000, eth.GigE, true},
		{10000, eth.TenGigE, true},
		{25000, eth.TwentyFiveGigE, true},
		{100000, eth.HundredGigE, true},
		{400000, eth.FourHundredGigE, true},
		{2500, 0, false},
		{0, 0, false},
	}
	for _, tt := range tests {
		got, ok := LineRateFromSpeed(tt.mbps)
		if got != tt.want || ok != tt.ok {
			t.Errorf("LineRateFromSpeed(%d) = %v, %v, want %v, %v", tt.mbps, got, ok, tt.want, tt.ok)
		}
	}
}
