package kernel

import (
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// HostInfo describes the machine the kernel runs on.
type HostInfo struct {
	Uptime       uint64
	TotalRAM     uint64
	AvailableRAM uint64
	Procs        int
}

func availableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

func Sysinfo() (HostInfo, error) {
	uptime, err := host.Uptime()
	if err != nil {
		return HostInfo{}, err
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return HostInfo{}, err
	}
	pids, err := process.Pids()
	if err != nil {
		return HostInfo{}, err
	}
	return HostInfo{
		Uptime:       uptime,
		TotalRAM:     vm.Total,
		AvailableRAM: vm.Available,
		Procs:        len(pids),
	}, nil
}
