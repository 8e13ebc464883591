package hnx

import "fmt"

// NR is a syscall number.
type NR uint32

const (
	NR_channel_create     NR = 0x0001
	NR_channel_write      NR = 0x0002
	NR_channel_read       NR = 0x0003
	NR_handle_close       NR = 0x0004
	NR_handle_duplicate   NR = 0x0005
	NR_process_create     NR = 0x0101
	NR_process_start      NR = 0x0102
	NR_spawn_service      NR = 0x0103
	NR_thread_create      NR = 0x0201
	NR_thread_start       NR = 0x0202
	NR_vmo_create         NR = 0x0301
	NR_vmo_read           NR = 0x0302
	NR_vmo_write          NR = 0x0303
	NR_write              NR = 0x1001
	NR_read               NR = 0x1002
	NR_open               NR = 0x1003
	NR_close              NR = 0x1004
	NR_exit               NR = 0x1005
	NR_creat              NR = 0x0055
	NR_unlink             NR = 0x0057
	NR_mkdir              NR = 0x0053
	NR_rmdir              NR = 0x0054
	NR_mmap               NR = 0x005A
	NR_munmap             NR = 0x005B
	NR_mprotect           NR = 0x005C
	NR_getpid             NR = 0x0014
	NR_fork               NR = 0x0039
	NR_kill               NR = 0x003E
	NR_setpgid            NR = 0x006D
	NR_getpgid            NR = 0x0079
	NR_getppid            NR = 0x006E
	NR_wait4              NR = 0x003D
	NR_driver_register    NR = 0x07D1
	NR_driver_request_irq NR = 0x07D2
	NR_driver_map_mmio    NR = 0x07D3
	NR_driver_dma_alloc   NR = 0x07D4
	NR_socket             NR = 0x0029
	NR_bind               NR = 0x0031
	NR_connect            NR = 0x002A
	NR_listen             NR = 0x0032
	NR_accept             NR = 0x002B
	NR_send               NR = 0x002C
	NR_recv               NR = 0x002D
	NR_dlopen             NR = 0x03E9
	NR_dlclose            NR = 0x03EA
	NR_dlsym              NR = 0x03EB
	NR_yield              NR = 0x0018
	NR_ipc_wait           NR = 0x012D
	NR_ipc_wake           NR = 0x012E
	NR_ep_create          NR = 0x012F
	NR_ep_send            NR = 0x0130
	NR_ep_recv            NR = 0x0131
)

// Band is a fixed range of syscall numbers reserved for one subsystem.
type Band struct {
	Name   string
	First  NR
	Last   NR
	Domain Domain
}

func (b Band) Contains(nr NR) bool {
	return nr >= b.First && nr <= b.Last
}

// Width is the number of syscall numbers the band reserves.
func (b Band) Width() int {
	return int(b.Last-b.First) + 1
}

func (b Band) String() string {
	return fmt.Sprintf("%s[%#04x-%#04x]", b.Name, uint32(b.First), uint32(b.Last))
}

// Bands is the syscall number layout, in ascending order. The ranges never
// overlap; renumbering any of them is a major ABI change.
var Bands = []Band{
	{Name: "channel", First: 0x0001, Last: 0x000F, Domain: DomainInternal},
	{Name: "legacy", First: 0x0010, Last: 0x00FF, Domain: DomainPosix},
	{Name: "process", First: 0x0101, Last: 0x012B, Domain: DomainInternal},
	{Name: "ipc", First: 0x012C, Last: 0x01FF, Domain: DomainInternal},
	{Name: "thread", First: 0x0201, Last: 0x02FF, Domain: DomainInternal},
	{Name: "vmo", First: 0x0301, Last: 0x03E7, Domain: DomainInternal},
	{Name: "dynlink", First: 0x03E8, Last: 0x07CF, Domain: DomainInternal},
	{Name: "driver", First: 0x07D0, Last: 0x0FFF, Domain: DomainInternal},
	{Name: "posix", First: 0x1000, Last: 0x10FF, Domain: DomainPosix},
}

// BandOf returns the band containing nr.
func BandOf(nr NR) (Band, bool) {
	for _, b := range Bands {
		if b.Contains(nr) {
			return b, true
		}
	}
	return Band{}, false
}
