package pkg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pcie-bw/pkg/pcie"
)

// DefaultSysfsRoot is where sysfs is mounted
const DefaultSysfsRoot = "/sys"

// PCIeLinkStatus is the negotiated and maximum link of one PCI function as
// reported by sysfs
type PCIeLinkStatus struct {
	Address    string
	Driver     string
	Speed      string
	Width      int
	MaxSpeed   string
	MaxWidth   int
	Generation pcie.Generation
	Lanes      pcie.Lanes
	// MaxGeneration and MaxLanes are zero when sysfs does not expose them
	MaxGeneration pcie.Generation
	MaxLanes      pcie.Lanes
}

// Downgraded reports whether the link trained below its capability
func (s *PCIeLinkStatus) Downgraded() bool {
	return (s.MaxGeneration != 0 && s.Generation < s.MaxGeneration) ||
		(s.MaxLanes != 0 && s.Lanes < s.MaxLanes)
}

// ReadPCIeLink reads current_link_speed, current_link_width and their max_
// counterparts for the function at address
func ReadPCIeLink(sysfsRoot, address string) (*PCIeLinkStatus, error) {
	if !isPciAddress(address) {
		return nil, fmt.Errorf("invalid PCI address: %s", address)
	}
	devicePath := filepath.Join(sysfsRoot, "bus", "pci", "devices", address)
	if _, err := os.Stat(devicePath); err != nil {
		return nil, fmt.Errorf("failed to access PCI device %s: %w", address, err)
	}

	status := &PCIeLinkStatus{Address: address}

	speed, err := readAttr(devicePath, "current_link_speed")
	if err != nil {
		return nil, fmt.Errorf("failed to read link speed: %w", err)
	}
	width, err := readAttr(devicePath, "current_link_width")
	if err != nil {
		return nil, fmt.Errorf("failed to read link width: %w", err)
	}
	status.Speed = speed
	if status.Generation, err = ParseLinkSpeed(speed); err != nil {
		return nil, err
	}
	if status.Width, err = strconv.Atoi(width); err != nil {
		return nil, fmt.Errorf("invalid link width: %s", width)
	}
	if status.Lanes, err = pcie.ParseLanes(width); err != nil {
		return nil, err
	}

	if v, err := readAttr(devicePath, "max_link_speed"); err == nil {
		status.MaxSpeed = v
		if gen, err := ParseLinkSpeed(v); err == nil {
			status.MaxGeneration = gen
		}
	}
	if v, err := readAttr(devicePath, "max_link_width"); err == nil {
		if n, err := strconv.Atoi(v); err == nil {
			status.MaxWidth = n
			if lanes, err := pcie.ParseLanes(v); err == nil {
				status.MaxLanes = lanes
			}
		}
	}

	if link, err := os.Readlink(filepath.Join(devicePath, "driver")); err == nil {
		status.Driver = filepath.Base(link)
	}

	return status, nil
}

// NetDevicePCIAddress resolves the PCI address behind a network interface
func NetDevicePCIAddress(sysfsRoot, ifname string) (string, error) {
	link, err := os.Readlink(filepath.Join(sysfsRoot, "class", "net", ifname, "device"))
	if err != nil {
		return "", fmt.Errorf("failed to resolve device of %s: %w", ifname, err)
	}
	address := filepath.Base(link)
	if !isPciAddress(address) {
		return "", fmt.Errorf("%s is not a PCI device (%s)", ifname, address)
	}
	return address, nil
}

// ParseLinkSpeed maps a sysfs link speed such as "8.0 GT/s PCIe" to the
// generation signaling at that rate
func ParseLinkSpeed(speed string) (pcie.Generation, error) {
	fields := strings.Fields(speed)
	if len(fields) < 2 || !strings.EqualFold(fields[1], "GT/s") {
		return 0, fmt.Errorf("invalid link speed: %q", speed)
	}
	rate, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid link speed: %q", speed)
	}
	for _, gen := range pcie.Generations() {
		spec, _ := gen.Spec()
		if spec.TransferRate == rate {
			return gen, nil
		}
	}
	return 0, fmt.Errorf("unsupported link speed: %q", speed)
}

func readAttr(devicePath, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(devicePath, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// isPciAddress checks for the dddd:bb:dd.f format, lower case hex
func isPciAddress(name string) bool {
	if len(name) != 12 {
		return false
	}
	if name[4] != ':' || name[7] != ':' || name[10] != '.' {
		return false
	}
	for i, c := range name {
		if i == 4 || i == 7 || i == 10 {
			continue
		}
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
