package pkg

import (
	"fmt"
	"sync"

	"github.com/safchain/ethtool"

	"pcie-bw/pkg/eth"
)

var (
	ethHandle     *ethtool.Ethtool
	ethHandleErr  error
	ethHandleOnce sync.Once
)

// speedUnknown is what drivers report while the link is down
const speedUnknown = 0xffff

// NetInterface is what ethtool reports about a network interface
type NetInterface struct {
	Name      string
	Driver    string
	BusInfo   string
	SpeedMbps uint64
	// LineRate is zero when the speed has no nominal Ethernet rate
	LineRate eth.LineRate
	RxRing   uint32
	TxRing   uint32
}

func ethtoolHandle() (*ethtool.Ethtool, error) {
	ethHandleOnce.Do(func() {
		ethHandle, ethHandleErr = ethtool.NewEthtool()
		if ethHandleErr != nil {
			WithError(ethHandleErr).Debug("failed to create ethtool handle")
		}
	})
	return ethHandle, ethHandleErr
}

// InspectInterface queries driver info, link speed and ring sizes of ifname
func InspectInterface(ifname string) (*NetInterface, error) {
	handle, err := ethtoolHandle()
	if err != nil {
		return nil, fmt.Errorf("failed to open ethtool socket: %w", err)
	}

	info := &NetInterface{Name: ifname}

	drv, err := handle.DriverInfo(ifname)
	if err != nil {
		return nil, fmt.Errorf("failed to get driver info of %s: %w", ifname, err)
	}
	info.Driver = drv.Driver
	info.BusInfo = drv.BusInfo

	settings, err := handle.CmdGetMapped(ifname)
	if err != nil {
		return nil, fmt.Errorf("failed to get link settings of %s: %w", ifname, err)
	}
	if speed, ok := settings["Speed"]; ok && speed != speedUnknown && speed != 0xffffffff {
		info.SpeedMbps = speed
		info.LineRate, _ = LineRateFromSpeed(speed)
	}

	if ring, err := handle.GetRing(ifname); err == nil {
		info.RxRing = ring.RxPending
		info.TxRing = ring.TxPending
	} else {
		WithError(err).WithField("interface", ifname).Debug("failed to get ring parameters")
	}

	WithFields(map[string]interface{}{
		"interface": ifname,
		"driver":    info.Driver,
		"bus":       info.BusInfo,
		"speed":     info.SpeedMbps,
	}).Debug("inspected interface")
	return info, nil
}

// LineRateFromSpeed maps an ethtool speed in Mb/s to a nominal line rate
func LineRateFromSpeed(mbps uint64) (eth.LineRate, bool) {
	for _, r := range eth.LineRates() {
		if uint64(r.Nominal().Gbps()*1000) == mbps {
			return r, true
		}
	}
	return 0, false
}
