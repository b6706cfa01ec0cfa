package probe

import (
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
	gnet "github.com/shirou/gopsutil/net"
)

// GopsutilProbe is the production PlatformProbe, backed by
// shirou/gopsutil.
type GopsutilProbe struct {
	diskPath string
}

// NewGopsutilProbe builds a probe that reports disk usage for diskPath
// (typically "/").
func NewGopsutilProbe(diskPath string) *GopsutilProbe {
	if diskPath == "" {
		diskPath = "/"
	}
	return &GopsutilProbe{diskPath: diskPath}
}

// Read implements PlatformProbe.
func (p *GopsutilProbe) Read() (Snapshot, error) {
	var snap Snapshot

	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		snap.CPUPct = pcts[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryTotalMB = float64(vm.Total) / (1024 * 1024)
		snap.MemoryUsedMB = float64(vm.Used) / (1024 * 1024)
		snap.MemoryPct = vm.UsedPercent
	}

	if du, err := disk.Usage(p.diskPath); err == nil {
		snap.DiskTotalGB = float64(du.Total) / (1024 * 1024 * 1024)
		snap.DiskUsedGB = float64(du.Used) / (1024 * 1024 * 1024)
		snap.DiskPct = du.UsedPercent
	}

	if temps, err := host.SensorsTemperatures(); err == nil {
		for _, t := range temps {
			if t.Temperature > 0 {
				v := t.Temperature
				snap.TemperatureC = &v
				break
			}
		}
	}

	if info, err := host.Info(); err == nil {
		snap.UptimeSec = info.Uptime
	}

	if avg, err := load.Avg(); err == nil {
		snap.Load1 = avg.Load1
		snap.Load5 = avg.Load5
		snap.Load15 = avg.Load15
	}

	if counters, err := gnet.IOCounters(true); err == nil {
		for _, c := range counters {
			if c.Name == "lo" {
				continue
			}
			snap.NetRxBytes += c.BytesRecv
			snap.NetTxBytes += c.BytesSent
		}
	}

	return snap, nil
}
