package kernel

import (
	"sync"

	"github.com/wnxd/hnx"
)

// prctl is the kernel process table. Exited clients whose parent is still
// alive stay behind until the parent reaps them with wait4.
type prctl struct {
	rw      sync.RWMutex
	procs   map[int32]*Client
	nextPid int32
}

func (p *prctl) ctor() {
	p.procs = make(map[int32]*Client)
	p.nextPid = 1
}

func (p *prctl) dtor() {
	p.rw.Lock()
	p.procs = nil
	p.rw.Unlock()
}

func (p *prctl) register(c *Client, want int32) (int32, error) {
	p.rw.Lock()
	defer p.rw.Unlock()
	if p.procs == nil {
		return 0, hnx.ErrBadState
	}
	if want < 0 {
		return 0, hnx.ErrInvalidArgs
	}
	pid := want
	if pid != 0 {
		if _, ok := p.procs[pid]; ok {
			return 0, hnx.ErrAlreadyExists
		}
	} else {
		for p.procs[p.nextPid] != nil {
			p.nextPid++
		}
		pid = p.nextPid
		p.nextPid++
	}
	p.procs[pid] = c
	return pid, nil
}

// unregister runs while c is being torn down.
func (p *prctl) unregister(c *Client) {
	p.rw.Lock()
	defer p.rw.Unlock()
	if p.procs == nil {
		return
	}
	for pid, child := range p.procs {
		if child.ppid == c.pid && child.Exited() {
			delete(p.procs, pid)
		}
	}
	if parent := p.procs[c.ppid]; c.ppid == 0 || parent == nil || parent.Exited() {
		delete(p.procs, c.pid)
	}
}

// lookup returns a client that has not exited.
func (p *prctl) lookup(pid int32) (*Client, bool) {
	p.rw.RLock()
	defer p.rw.RUnlock()
	c, ok := p.procs[pid]
	if !ok || c.Exited() {
		return nil, false
	}
	return c, true
}

func (p *prctl) child(parent *Client, pid int32) (*Client, bool) {
	p.rw.RLock()
	defer p.rw.RUnlock()
	c, ok := p.procs[pid]
	if !ok || c.ppid != parent.pid {
		return nil, false
	}
	return c, true
}

func (p *prctl) reap(c *Client) {
	p.rw.Lock()
	if p.procs[c.pid] == c {
		delete(p.procs, c.pid)
	}
	p.rw.Unlock()
}

func (p *prctl) clients() []*Client {
	p.rw.RLock()
	defer p.rw.RUnlock()
	list := make([]*Client, 0, len(p.procs))
	for _, c := range p.procs {
		list = append(list, c)
	}
	return list
}

// target resolves a pid argument, 0 naming the caller.
func (k *Kernel) target(c *Call, pid int32) (*Client, error) {
	if pid == 0 || pid == c.Client.pid {
		return c.Client, nil
	}
	if pid < 0 {
		return nil, hnx.ErrInvalidArgs
	}
	t, ok := k.prctl.lookup(pid)
	if !ok {
		return nil, hnx.ErrNotFound
	}
	return t, nil
}

func (k *Kernel) getpid(c *Call) error {
	c.Return(uint64(c.Client.pid))
	return nil
}

func (k *Kernel) getppid(c *Call) error {
	c.Return(uint64(c.Client.ppid))
	return nil
}

func (k *Kernel) getpgid(c *Call) error {
	t, err := k.target(c, int32(c.Arg(0)))
	if err != nil {
		return err
	}
	c.Return(uint64(t.Pgid()))
	return nil
}

func (k *Kernel) setpgid(c *Call) error {
	t, err := k.target(c, int32(c.Arg(0)))
	if err != nil {
		return err
	}
	if t != c.Client && t.ppid != c.Client.pid {
		return hnx.ErrPermissionDenied
	}
	pgid := int32(c.Arg(1))
	switch {
	case pgid < 0:
		return hnx.ErrInvalidArgs
	case pgid == 0:
		pgid = t.pid
	}
	t.pgid.Store(pgid)
	return nil
}

func (k *Kernel) fork(c *Call) error {
	return hnx.ErrNotSupported
}

func (k *Kernel) wait4(c *Call) error {
	t, ok := k.prctl.child(c.Client, int32(c.Arg(0)))
	if !ok {
		return hnx.ErrNotFound
	}
	code, err := t.Wait(c)
	if err != nil {
		return err
	}
	k.prctl.reap(t)
	c.Return(uint64(t.pid), uint64(uint32(code)))
	return nil
}
