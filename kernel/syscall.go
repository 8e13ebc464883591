package kernel

import (
	"fmt"
	"slices"

	"github.com/wnxd/hnx"
)

// Registry maps syscall numbers to descriptors. Each band owns a slice
// indexed by the offset of the number inside the band.
type Registry struct {
	bands []hnx.Band
	table [][]*Descriptor
	descs []*Descriptor
}

// NewRegistry builds a registry over hnx.Bands. It panics when the bands
// overlap or are out of order, when a number lies outside every band, or when
// a number is registered twice.
func NewRegistry(descs []Descriptor) *Registry {
	return newRegistry(hnx.Bands, descs)
}

func newRegistry(bands []hnx.Band, descs []Descriptor) *Registry {
	for i, b := range bands {
		if b.Last < b.First {
			panic(fmt.Sprintf("syscall band %s is empty", b))
		}
		if i > 0 && b.First <= bands[i-1].Last {
			panic(fmt.Sprintf("syscall band %s overlaps %s", b, bands[i-1]))
		}
	}
	r := &Registry{
		bands: bands,
		table: make([][]*Descriptor, len(bands)),
	}
	for i, b := range bands {
		r.table[i] = make([]*Descriptor, b.Width())
	}
	for i := range descs {
		d := &descs[i]
		bi := r.bandIndex(d.NR)
		if bi < 0 {
			panic(fmt.Sprintf("syscall %s lies outside every band", d))
		}
		d.Band = bands[bi]
		slot := &r.table[bi][d.NR-d.Band.First]
		if *slot != nil {
			panic(fmt.Sprintf("syscall %s already registered as %s", d, *slot))
		}
		*slot = d
		r.descs = append(r.descs, d)
	}
	slices.SortFunc(r.descs, func(a, b *Descriptor) int {
		return int(a.NR) - int(b.NR)
	})
	return r
}

func (r *Registry) bandIndex(nr hnx.NR) int {
	for i, b := range r.bands {
		if b.Contains(nr) {
			return i
		}
	}
	return -1
}

// Get returns the descriptor registered for nr, or nil.
func (r *Registry) Get(nr hnx.NR) *Descriptor {
	bi := r.bandIndex(nr)
	if bi < 0 {
		return nil
	}
	return r.table[bi][nr-r.bands[bi].First]
}

// Descriptors returns every registered syscall ordered by number.
func (r *Registry) Descriptors() []*Descriptor {
	return slices.Clone(r.descs)
}

func (k *Kernel) syscalls() []Descriptor {
	const (
		R  = hnx.RightRead
		W  = hnx.RightWrite
		RW = hnx.RightsIO
	)
	return []Descriptor{
		{NR: hnx.NR_channel_create, Name: "channel_create", Handler: k.channel_create},
		{NR: hnx.NR_channel_write, Name: "channel_write", Args: []Arg{handle("channel", hnx.ObjChannel, W)}, Handler: k.channel_write},
		{NR: hnx.NR_channel_read, Name: "channel_read", Args: []Arg{handle("channel", hnx.ObjChannel, R), value("flags"), value("timeout")}, Handler: k.channel_read},
		{NR: hnx.NR_handle_close, Name: "handle_close", Args: []Arg{handle("handle", hnx.ObjAny, hnx.RightsNone)}, Handler: k.handle_close},
		{NR: hnx.NR_handle_duplicate, Name: "handle_duplicate", Args: []Arg{handle("handle", hnx.ObjAny, hnx.RightDuplicate), value("rights")}, Handler: k.handle_duplicate},

		{NR: hnx.NR_process_create, Name: "process_create", Handler: k.process_create},
		{NR: hnx.NR_process_start, Name: "process_start", Args: []Arg{handle("process", hnx.ObjProcess, W)}, Handler: k.process_start},
		{NR: hnx.NR_spawn_service, Name: "spawn_service", Handler: k.spawn_service},

		{NR: hnx.NR_ipc_wait, Name: "ipc_wait", Args: []Arg{handle("endpoint", hnx.ObjEndpoint, R), value("timeout")}, MinMinor: 2, Handler: k.ipc_wait},
		{NR: hnx.NR_ipc_wake, Name: "ipc_wake", Args: []Arg{handle("endpoint", hnx.ObjEndpoint, W)}, MinMinor: 2, Handler: k.ipc_wake},
		{NR: hnx.NR_ep_create, Name: "ep_create", MinMinor: 2, Handler: k.ep_create},
		{NR: hnx.NR_ep_send, Name: "ep_send", Args: []Arg{handle("endpoint", hnx.ObjEndpoint, W), value("op")}, MinMinor: 2, Handler: k.ep_send},
		{NR: hnx.NR_ep_recv, Name: "ep_recv", Args: []Arg{handle("endpoint", hnx.ObjEndpoint, R), value("timeout")}, MinMinor: 2, Handler: k.ep_recv},

		{NR: hnx.NR_thread_create, Name: "thread_create", Args: []Arg{handle("process", hnx.ObjProcess, W)}, Handler: k.thread_create},
		{NR: hnx.NR_thread_start, Name: "thread_start", Args: []Arg{handle("thread", hnx.ObjThread, W), value("entry")}, Handler: k.thread_start},

		{NR: hnx.NR_vmo_create, Name: "vmo_create", Args: []Arg{value("size")}, Handler: k.vmo_create},
		{NR: hnx.NR_vmo_read, Name: "vmo_read", Args: []Arg{handle("vmo", hnx.ObjVMO, R), value("offset"), value("len")}, Handler: k.vmo_read},
		{NR: hnx.NR_vmo_write, Name: "vmo_write", Args: []Arg{handle("vmo", hnx.ObjVMO, W), value("offset")}, Handler: k.vmo_write},

		{NR: hnx.NR_dlopen, Name: "dlopen", Handler: k.dlopen},
		{NR: hnx.NR_dlclose, Name: "dlclose", Args: []Arg{value("lib")}, Handler: k.dlclose},
		{NR: hnx.NR_dlsym, Name: "dlsym", Args: []Arg{value("lib")}, Handler: k.dlsym},

		{NR: hnx.NR_driver_register, Name: "driver_register", MinMinor: 3, Handler: k.driver_register},
		{NR: hnx.NR_driver_request_irq, Name: "driver_request_irq", Args: []Arg{value("irq")}, MinMinor: 3, Handler: k.driver_request_irq},
		{NR: hnx.NR_driver_map_mmio, Name: "driver_map_mmio", Args: []Arg{value("phys"), value("len")}, MinMinor: 3, Handler: k.driver_map_mmio},
		{NR: hnx.NR_driver_dma_alloc, Name: "driver_dma_alloc", Args: []Arg{value("size")}, MinMinor: 3, Handler: k.driver_dma_alloc},

		{NR: hnx.NR_write, Name: "write", Args: []Arg{value("fd")}, Handler: k.write},
		{NR: hnx.NR_read, Name: "read", Args: []Arg{value("fd"), value("len")}, Handler: k.read},
		{NR: hnx.NR_open, Name: "open", Args: []Arg{value("flags")}, Handler: k.open},
		{NR: hnx.NR_close, Name: "close", Args: []Arg{value("fd")}, Handler: k.close},
		{NR: hnx.NR_exit, Name: "exit", Args: []Arg{value("code")}, Handler: k.exit},

		{NR: hnx.NR_getpid, Name: "getpid", Handler: k.getpid},
		{NR: hnx.NR_yield, Name: "yield", Handler: k.yield},
		{NR: hnx.NR_socket, Name: "socket", Handler: k.socket},
		{NR: hnx.NR_connect, Name: "connect", Args: []Arg{handle("socket", hnx.ObjSocket, RW), value("port")}, Handler: k.connect},
		{NR: hnx.NR_accept, Name: "accept", Args: []Arg{handle("socket", hnx.ObjSocket, R)}, Handler: k.accept},
		{NR: hnx.NR_send, Name: "send", Args: []Arg{handle("socket", hnx.ObjSocket, W)}, Handler: k.send},
		{NR: hnx.NR_recv, Name: "recv", Args: []Arg{handle("socket", hnx.ObjSocket, R), value("len"), value("timeout")}, Handler: k.recv},
		{NR: hnx.NR_bind, Name: "bind", Args: []Arg{handle("socket", hnx.ObjSocket, W), value("port")}, Handler: k.bind},
		{NR: hnx.NR_listen, Name: "listen", Args: []Arg{handle("socket", hnx.ObjSocket, W), value("backlog")}, Handler: k.listen},
		{NR: hnx.NR_fork, Name: "fork", Handler: k.fork},
		{NR: hnx.NR_wait4, Name: "wait4", Args: []Arg{value("pid")}, Handler: k.wait4},
		{NR: hnx.NR_kill, Name: "kill", Args: []Arg{value("pid"), value("sig")}, Handler: k.kill},
		{NR: hnx.NR_mkdir, Name: "mkdir", Handler: k.mkdir},
		{NR: hnx.NR_rmdir, Name: "rmdir", Handler: k.rmdir},
		{NR: hnx.NR_creat, Name: "creat", Handler: k.creat},
		{NR: hnx.NR_unlink, Name: "unlink", Handler: k.unlink},
		{NR: hnx.NR_mmap, Name: "mmap", Args: []Arg{value("addr"), value("len"), value("prot")}, Handler: k.mmap},
		{NR: hnx.NR_munmap, Name: "munmap", Args: []Arg{value("addr"), value("len")}, Handler: k.munmap},
		{NR: hnx.NR_mprotect, Name: "mprotect", Args: []Arg{value("addr"), value("len"), value("prot")}, Handler: k.mprotect},
		{NR: hnx.NR_setpgid, Name: "setpgid", Args: []Arg{value("pid"), value("pgid")}, Handler: k.setpgid},
		{NR: hnx.NR_getppid, Name: "getppid", Handler: k.getppid},
		{NR: hnx.NR_getpgid, Name: "getpgid", Args: []Arg{value("pid")}, Handler: k.getpgid},
	}
}

// returnHandle binds obj in the caller's table and returns the handle.
func (k *Kernel) returnHandle(c *Call, obj Object, rights hnx.Rights) error {
	h, err := c.Client.handles.Create(obj, rights)
	if err != nil {
		return err
	}
	c.Return(uint64(h))
	return nil
}

func (k *Kernel) handle_close(c *Call) error {
	return c.Client.handles.Close(c.Handle(0))
}

func (k *Kernel) handle_duplicate(c *Call) error {
	h, err := c.Client.handles.Duplicate(c.Handle(0), hnx.Rights(c.Arg(1)))
	if err != nil {
		return err
	}
	c.Return(uint64(h))
	return nil
}
