package kernel

import (
	"runtime"
	"slices"
	"sync"

	"github.com/wnxd/hnx"
)

type Process struct {
	object
	rw      sync.Mutex
	name    string
	started bool
}

func newProcess(name string) *Process {
	p := &Process{name: name}
	p.init()
	return p
}

func (p *Process) Type() hnx.ObjectType {
	return hnx.ObjProcess
}

func (p *Process) Name() string {
	return p.name
}

func (p *Process) start() error {
	p.rw.Lock()
	defer p.rw.Unlock()
	if p.started {
		return hnx.ErrBadState
	}
	p.started = true
	return nil
}

func (p *Process) running() bool {
	p.rw.Lock()
	defer p.rw.Unlock()
	return p.started
}

func (p *Process) destroy() {}

// Thread keeps its process alive for as long as the thread exists.
type Thread struct {
	object
	rw      sync.Mutex
	proc    *Process
	entry   uint64
	started bool
}

func newThread(proc *Process) *Thread {
	retain(proc)
	t := &Thread{proc: proc}
	t.init()
	return t
}

func (t *Thread) Type() hnx.ObjectType {
	return hnx.ObjThread
}

func (t *Thread) start(entry uint64) error {
	if entry == 0 {
		return hnx.ErrInvalidArgs
	}
	if !t.proc.running() {
		return hnx.ErrBadState
	}
	t.rw.Lock()
	defer t.rw.Unlock()
	if t.started {
		return hnx.ErrBadState
	}
	t.started = true
	t.entry = entry
	return nil
}

func (t *Thread) destroy() {
	release(t.proc)
}

func (k *Kernel) process_create(c *Call) error {
	return k.returnHandle(c, newProcess(""), hnx.RightsBasic)
}

func (k *Kernel) process_start(c *Call) error {
	return objectArg[*Process](c, 0).start()
}

// spawn_service starts one of the configured system services.
func (k *Kernel) spawn_service(c *Call) error {
	name := string(c.Data())
	if !slices.Contains(k.cfg.Services, name) {
		return hnx.ErrNotFound
	}
	p := newProcess(name)
	p.started = true
	return k.returnHandle(c, p, hnx.RightsBasic)
}

func (k *Kernel) thread_create(c *Call) error {
	return k.returnHandle(c, newThread(objectArg[*Process](c, 0)), hnx.RightsBasic)
}

func (k *Kernel) thread_start(c *Call) error {
	return objectArg[*Thread](c, 0).start(c.Arg(1))
}

func (k *Kernel) yield(c *Call) error {
	runtime.Gosched()
	return nil
}
